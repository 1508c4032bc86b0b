package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/snackbar-ledger/internal/app/core/domain"
	"github.com/JoeShih716/snackbar-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/snackbar-ledger/pkg/wal"
)

// DefaultLockTimeout 等待寫入鎖的上限
const DefaultLockTimeout = 30 * time.Second

// MutexLedger 是一個使用 Mutex 實現的帳本
//
// 結構:
//
//	writer: 寫入者號誌，等待逾時回傳 ErrContentionTimeout
//	mu: RWMutex 保護所有資料，提交單元持有寫鎖直到提交或回滾
//	wal: Write-Ahead Log 實例 (nil 代表純記憶體)
//
// 餘額不存欄位，每次讀取都由 transactions 加總。
type MutexLedger struct {
	writer      chan struct{}
	lockTimeout time.Duration

	mu             sync.RWMutex
	accounts       map[int64]*domain.Account
	accountNumbers map[string]int64
	products       map[int64]*domain.Product
	transactions   map[int64]*domain.Transaction
	// 依寫入順序
	transactionOrder []int64
	byAccount        map[int64][]int64
	items            map[int64][]domain.TransactionItem
	prepItems        map[int64]*domain.PrepQueueItem
	seq              sequences

	// Write-Ahead Logging
	wal *wal.WAL
}

type sequences struct {
	Account     int64
	Product     int64
	Transaction int64
	Item        int64
	Prep        int64
}

// Option 設定 MutexLedger
type Option func(*MutexLedger)

// WithLockTimeout 設定等待寫入鎖的上限
func WithLockTimeout(timeout time.Duration) Option {
	return func(m *MutexLedger) {
		if timeout > 0 {
			m.lockTimeout = timeout
		}
	}
}

// NewMutexLedger 建立一個新的 MutexLedger 實例
//
// 參數:
//
//	w: Write-Ahead Log 實例，可為 nil
//	opts: 選項
//
// 回傳:
//
//	*MutexLedger: MutexLedger 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewMutexLedger(w *wal.WAL, opts ...Option) (*MutexLedger, error) {
	ledger := &MutexLedger{
		writer:         make(chan struct{}, 1),
		lockTimeout:    DefaultLockTimeout,
		accounts:       make(map[int64]*domain.Account),
		accountNumbers: make(map[string]int64),
		products:       make(map[int64]*domain.Product),
		transactions:   make(map[int64]*domain.Transaction),
		byAccount:      make(map[int64][]int64),
		items:          make(map[int64][]domain.TransactionItem),
		prepItems:      make(map[int64]*domain.PrepQueueItem),
		wal:            w,
	}
	for _, opt := range opts {
		opt(ledger)
	}
	if err := ledger.recoverFromWAL(); err != nil {
		return nil, err
	}
	return ledger, nil
}

// recoverFromWAL 從 WAL 檔案恢復帳本狀態
// 只有 NewMutexLedger 呼叫，無需 Lock (單執行緒)
func (m *MutexLedger) recoverFromWAL() error {
	if m.wal == nil {
		return nil
	}
	return m.wal.ReadAll(func(jsonRaw []byte) error {
		var rec record
		if err := json.Unmarshal(jsonRaw, &rec); err != nil {
			return err
		}
		return m.replay(&rec)
	})
}

// acquire 取得寫入者號誌
func (m *MutexLedger) acquire(ctx context.Context) error {
	timer := time.NewTimer(m.lockTimeout)
	defer timer.Stop()

	select {
	case m.writer <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", domain.ErrContentionTimeout, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%w: waited %s for ledger lock", domain.ErrContentionTimeout, m.lockTimeout)
	}
}

func (m *MutexLedger) release() {
	<-m.writer
}

// write 取得寫入權後以寫鎖執行 fn
func (m *MutexLedger) write(ctx context.Context, fn func() error) error {
	if err := m.acquire(ctx); err != nil {
		return err
	}
	defer m.release()

	m.mu.Lock()
	defer m.mu.Unlock()
	return fn()
}

// appendWAL 寫入 WAL (Critical Path)，失敗時呼叫端必須回滾
func (m *MutexLedger) appendWAL(rec *record) error {
	if m.wal == nil {
		return nil
	}
	if err := m.wal.Write(rec); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrWALWriteFailed, err)
	}
	return nil
}

// Atomic 以寫鎖執行提交單元，fn 失敗或 WAL 寫入失敗時依序回滾
func (m *MutexLedger) Atomic(ctx context.Context, fn func(ctx context.Context, tx usecase.LedgerTx) error) error {
	return m.write(ctx, func() error {
		tx := &memoryTx{ledger: m, rec: record{Kind: recordCommit}}
		if err := fn(ctx, tx); err != nil {
			tx.rollback()
			return err
		}
		// 唯讀的單元不寫 WAL
		if tx.rec.empty() {
			return nil
		}
		if err := m.appendWAL(&tx.rec); err != nil {
			tx.rollback()
			return err
		}
		return nil
	})
}

// GetAccountBalance 取得帳戶餘額
//
// 參數:
//
//	ctx: 上下文
//	accountID: 帳戶 ID
//
// 回傳:
//
//	decimal.Decimal: 帳戶餘額 (由交易加總)
//	error: 查詢錯誤 (如帳戶不存在)
func (m *MutexLedger) GetAccountBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.accounts[accountID]; !ok {
		return decimal.Zero, domain.ErrAccountNotFound
	}
	return m.balanceLocked(accountID), nil
}

func (m *MutexLedger) balanceLocked(accountID int64) decimal.Decimal {
	balance := decimal.Zero
	for _, id := range m.byAccount[accountID] {
		balance = balance.Add(m.transactions[id].Amount)
	}
	return balance
}

// Summary 由帳本推導彙總
func (m *MutexLedger) Summary(ctx context.Context) (domain.LedgerSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	balances := make(map[int64]decimal.Decimal, len(m.accounts))
	for id := range m.accounts {
		balances[id] = m.balanceLocked(id)
	}
	prepaid := decimal.Zero
	for _, tran := range m.transactions {
		if tran.Type == domain.TransactionTypePayment {
			prepaid = prepaid.Add(tran.Amount)
		}
	}
	return domain.NewLedgerSummary(balances, int64(len(m.accounts)), prepaid, int64(len(m.transactions))), nil
}

func (m *MutexLedger) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, []domain.TransactionItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tran, ok := m.transactions[id]
	if !ok {
		return nil, nil, domain.ErrTransactionNotFound
	}
	copied := *tran
	items := append([]domain.TransactionItem(nil), m.items[id]...)
	return &copied, items, nil
}

// ListTransactions 由新到舊
func (m *MutexLedger) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.transactionOrder
	if filter.AccountID != 0 {
		ids = m.byAccount[filter.AccountID]
	}
	result := make([]domain.Transaction, 0, min(len(ids), filter.Limit))
	for i := len(ids) - 1; i >= 0 && len(result) < filter.Limit; i-- {
		result = append(result, *m.transactions[ids[i]])
	}
	return result, nil
}

func (m *MutexLedger) ListPrepQueue(ctx context.Context, status domain.PrepStatus) ([]domain.PrepQueueItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]domain.PrepQueueItem, 0)
	for _, item := range m.prepItems {
		if item.Status == status {
			result = append(result, copyPrepItem(item))
		}
	}
	domain.SortPrepQueue(result, status)
	return result, nil
}

// CompletePrepItem 標記完成 (不檢查是否已完成)
func (m *MutexLedger) CompletePrepItem(ctx context.Context, itemID int64, completedBy string, at time.Time) (*domain.PrepQueueItem, error) {
	var result domain.PrepQueueItem
	err := m.write(ctx, func() error {
		item, ok := m.prepItems[itemID]
		if !ok {
			return domain.ErrPrepItemNotFound
		}
		updated := copyPrepItem(item)
		updated.Complete(completedBy, at)
		if err := m.appendWAL(&record{Kind: recordPrepUpdate, PrepItem: &updated}); err != nil {
			return err
		}
		m.prepItems[itemID] = &updated
		result = copyPrepItem(&updated)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (m *MutexLedger) SetPrepPriority(ctx context.Context, itemID int64, priority domain.PrepPriority) (*domain.PrepQueueItem, error) {
	var result domain.PrepQueueItem
	err := m.write(ctx, func() error {
		item, ok := m.prepItems[itemID]
		if !ok {
			return domain.ErrPrepItemNotFound
		}
		if item.Status != domain.PrepStatusPending {
			return domain.ErrPrepItemNotPending
		}
		updated := copyPrepItem(item)
		updated.Priority = priority
		if err := m.appendWAL(&record{Kind: recordPrepUpdate, PrepItem: &updated}); err != nil {
			return err
		}
		m.prepItems[itemID] = &updated
		result = copyPrepItem(&updated)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (m *MutexLedger) CreateAccount(ctx context.Context, account *domain.Account) error {
	return m.write(ctx, func() error {
		if _, exists := m.accountNumbers[account.Number]; exists {
			return domain.ErrAccountAlreadyExists
		}
		created := *account
		created.ID = m.seq.Account + 1
		if err := m.appendWAL(&record{Kind: recordAccount, Account: &created}); err != nil {
			return err
		}
		m.putAccount(&created)
		account.ID = created.ID
		return nil
	})
}

// SaveProduct ID 為 0 時新增，否則覆寫
func (m *MutexLedger) SaveProduct(ctx context.Context, product *domain.Product) error {
	return m.write(ctx, func() error {
		saved := *product
		if saved.ID == 0 {
			saved.ID = m.seq.Product + 1
		}
		if err := m.appendWAL(&record{Kind: recordProduct, Product: &saved}); err != nil {
			return err
		}
		m.putProduct(&saved)
		product.ID = saved.ID
		return nil
	})
}

func (m *MutexLedger) putAccount(account *domain.Account) {
	m.accounts[account.ID] = account
	m.accountNumbers[account.Number] = account.ID
	m.seq.Account = max(m.seq.Account, account.ID)
}

func (m *MutexLedger) putProduct(product *domain.Product) {
	m.products[product.ID] = product
	m.seq.Product = max(m.seq.Product, product.ID)
}

func copyPrepItem(item *domain.PrepQueueItem) domain.PrepQueueItem {
	copied := *item
	if item.CompletedAt != nil {
		at := *item.CompletedAt
		copied.CompletedAt = &at
	}
	return copied
}

var _ usecase.Ledger = (*MutexLedger)(nil)
