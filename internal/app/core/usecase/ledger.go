package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/snackbar-ledger/internal/app/core/domain"
)

// Ledger 是帳務系統的儲存介面
//
// 每次呼叫都使用實作自己持有的連線，不依賴任何全域狀態。
type Ledger interface {
	// Atomic 以單一可序列化單元執行 fn，fn 回傳錯誤時全部回滾
	Atomic(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error

	// GetAccountBalance 加總帳本計算餘額，沒有交易時為 0
	GetAccountBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)
	// Summary 由帳本推導的彙總數字
	Summary(ctx context.Context) (domain.LedgerSummary, error)

	GetTransaction(ctx context.Context, id int64) (*domain.Transaction, []domain.TransactionItem, error)
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error)

	// ListPrepQueue 依狀態列出備餐項目 (排序見 domain.SortPrepQueue)
	ListPrepQueue(ctx context.Context, status domain.PrepStatus) ([]domain.PrepQueueItem, error)
	// CompletePrepItem 標記完成，已完成的項目會被覆寫
	CompletePrepItem(ctx context.Context, itemID int64, completedBy string, at time.Time) (*domain.PrepQueueItem, error)
	// SetPrepPriority 調整待處理項目的優先度
	SetPrepPriority(ctx context.Context, itemID int64, priority domain.PrepPriority) (*domain.PrepQueueItem, error)

	// CreateAccount 建立帳戶，成功後 account.ID 會被填入
	CreateAccount(ctx context.Context, account *domain.Account) error
	// SaveProduct 新增或更新目錄商品
	SaveProduct(ctx context.Context, product *domain.Product) error
}

// LedgerTx 是 Atomic 單元內可用的操作，全部在同一個交易中生效
type LedgerTx interface {
	// LockAccount 鎖定帳戶列，讓同一帳戶的提交依序執行
	LockAccount(ctx context.Context, accountID int64) (*domain.Account, error)
	// LoadProducts 讀取並鎖定商品，回傳 ID 對應表 (不存在的 ID 不會出現在結果中)
	LoadProducts(ctx context.Context, ids []int64) (map[int64]domain.Product, error)
	// LockTransaction 鎖定原始交易
	LockTransaction(ctx context.Context, id int64) (*domain.Transaction, error)

	// InsertTransaction 寫入交易，成功後 tran.ID 會被填入
	InsertTransaction(ctx context.Context, tran *domain.Transaction) error
	// InsertItems 寫入明細，成功後各 ID 會被填入
	InsertItems(ctx context.Context, items []domain.TransactionItem) error
	// InsertPrepItems 寫入備餐項目，成功後各 ID 會被填入
	InsertPrepItems(ctx context.Context, items []domain.PrepQueueItem) error
	// DecrementInventory 扣除有追蹤庫存的商品，不檢查下限
	DecrementInventory(ctx context.Context, productID int64, quantity int) error
	// MarkAdjusted has_been_adjusted false -> true 並追加備註，已調整過回傳 ErrAlreadyAdjusted
	MarkAdjusted(ctx context.Context, originalID int64, note string) error

	// Balance 單元內可見的帳戶餘額 (含本次寫入)
	Balance(ctx context.Context, accountID int64) (decimal.Decimal, error)
}

// Publisher 事件發佈介面
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}
