package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/snackbar-ledger/internal/app/core/domain"
	"github.com/JoeShih716/snackbar-ledger/internal/app/core/usecase"
)

// MySQLLedger 以 MySQL (GORM) 實作帳本
//
// 每個提交單元是一個資料庫交易，帳戶列以 SELECT ... FOR UPDATE 鎖定，
// 同一帳戶的提交因此依序執行。餘額不存欄位，每次都由 transactions 加總。
type MySQLLedger struct {
	db        *gorm.DB
	isolation sql.IsolationLevel
}

// Option 設定 MySQLLedger
type Option func(*MySQLLedger)

// WithIsolation 設定提交單元的隔離等級 (sql.LevelDefault 代表使用資料庫預設)
func WithIsolation(level sql.IsolationLevel) Option {
	return func(l *MySQLLedger) {
		l.isolation = level
	}
}

// NewMySQLLedger 建立 MySQL 帳本
//
// 參數:
//
//	db: 已連線的 *gorm.DB (通常來自 pkg/mysql.Client)
//	opts: 選項
func NewMySQLLedger(db *gorm.DB, opts ...Option) *MySQLLedger {
	ledger := &MySQLLedger{
		db:        db,
		isolation: sql.LevelSerializable,
	}
	for _, opt := range opts {
		opt(ledger)
	}
	return ledger
}

// Migrate 建立或更新資料表
func (l *MySQLLedger) Migrate(ctx context.Context) error {
	if err := l.db.WithContext(ctx).AutoMigrate(models()...); err != nil {
		return translateError(err)
	}
	return nil
}

func (l *MySQLLedger) txOptions() []*sql.TxOptions {
	if l.isolation == sql.LevelDefault {
		return nil
	}
	return []*sql.TxOptions{{Isolation: l.isolation}}
}

// transaction 以設定的隔離等級開啟資料庫交易，錯誤統一轉成 domain 分類
func (l *MySQLLedger) transaction(ctx context.Context, fn func(db *gorm.DB) error) error {
	err := l.db.WithContext(ctx).Transaction(fn, l.txOptions()...)
	return translateError(err)
}

// Atomic 在單一資料庫交易中執行 fn，fn 回傳錯誤即 ROLLBACK
func (l *MySQLLedger) Atomic(ctx context.Context, fn func(ctx context.Context, tx usecase.LedgerTx) error) error {
	return l.transaction(ctx, func(db *gorm.DB) error {
		return fn(ctx, &gormTx{db: db})
	})
}

func (l *MySQLLedger) GetAccountBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	db := l.db.WithContext(ctx)
	var count int64
	if err := db.Model(&sqlAccount{}).Where("id = ?", accountID).Count(&count).Error; err != nil {
		return decimal.Zero, translateError(err)
	}
	if count == 0 {
		return decimal.Zero, domain.ErrAccountNotFound
	}
	balance, err := sumBalance(db, accountID)
	if err != nil {
		return decimal.Zero, translateError(err)
	}
	return balance, nil
}

// sumBalance SELECT COALESCE(SUM(total_amount), 0) FROM transactions WHERE account_id = ?
func sumBalance(db *gorm.DB, accountID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := db.Model(&sqlTransaction{}).
		Select("COALESCE(SUM(total_amount), 0)").
		Where("account_id = ?", accountID).
		Row().
		Scan(&balance)
	if err != nil {
		return decimal.Zero, err
	}
	return balance.Round(domain.CurrencyPlaces), nil
}

type accountTotal struct {
	AccountID int64
	Total     decimal.Decimal
}

func (l *MySQLLedger) Summary(ctx context.Context) (domain.LedgerSummary, error) {
	db := l.db.WithContext(ctx)

	var totalAccounts, transactionCount int64
	if err := db.Model(&sqlAccount{}).Count(&totalAccounts).Error; err != nil {
		return domain.LedgerSummary{}, translateError(err)
	}
	if err := db.Model(&sqlTransaction{}).Count(&transactionCount).Error; err != nil {
		return domain.LedgerSummary{}, translateError(err)
	}

	var totals []accountTotal
	err := db.Model(&sqlTransaction{}).
		Select("account_id, COALESCE(SUM(total_amount), 0) AS total").
		Group("account_id").
		Scan(&totals).Error
	if err != nil {
		return domain.LedgerSummary{}, translateError(err)
	}
	balances := make(map[int64]decimal.Decimal, len(totals))
	for _, t := range totals {
		balances[t.AccountID] = t.Total.Round(domain.CurrencyPlaces)
	}

	var prepaid decimal.Decimal
	err = db.Model(&sqlTransaction{}).
		Select("COALESCE(SUM(total_amount), 0)").
		Where("transaction_type = ?", string(domain.TransactionTypePayment)).
		Row().
		Scan(&prepaid)
	if err != nil {
		return domain.LedgerSummary{}, translateError(err)
	}
	return domain.NewLedgerSummary(balances, totalAccounts, prepaid.Round(domain.CurrencyPlaces), transactionCount), nil
}

func (l *MySQLLedger) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, []domain.TransactionItem, error) {
	db := l.db.WithContext(ctx)
	var row sqlTransaction
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, domain.ErrTransactionNotFound
		}
		return nil, nil, translateError(err)
	}
	var rows []sqlTransactionItem
	if err := db.Where("transaction_id = ?", id).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, nil, translateError(err)
	}
	tran := row.toDomain()
	items := make([]domain.TransactionItem, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].toDomain())
	}
	return &tran, items, nil
}

// ListTransactions 由新到舊
func (l *MySQLLedger) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	query := l.db.WithContext(ctx).Model(&sqlTransaction{})
	if filter.AccountID != 0 {
		query = query.Where("account_id = ?", filter.AccountID)
	}
	var rows []sqlTransaction
	if err := query.Order("created_at DESC, id DESC").Limit(filter.Limit).Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	result := make([]domain.Transaction, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toDomain())
	}
	return result, nil
}

func (l *MySQLLedger) ListPrepQueue(ctx context.Context, status domain.PrepStatus) ([]domain.PrepQueueItem, error) {
	order := "priority ASC, ordered_at ASC, id ASC"
	if status == domain.PrepStatusCompleted {
		order = "completed_at DESC, id DESC"
	}
	var rows []sqlPrepItem
	err := l.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order(order).
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	result := make([]domain.PrepQueueItem, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toDomain())
	}
	return result, nil
}

// CompletePrepItem 標記完成 (不檢查是否已完成)
func (l *MySQLLedger) CompletePrepItem(ctx context.Context, itemID int64, completedBy string, at time.Time) (*domain.PrepQueueItem, error) {
	var result domain.PrepQueueItem
	err := l.transaction(ctx, func(db *gorm.DB) error {
		item, err := lockPrepItem(db, itemID)
		if err != nil {
			return err
		}
		item.Complete(completedBy, at)
		err = db.Model(&sqlPrepItem{}).
			Where("id = ?", itemID).
			Updates(map[string]any{
				"status":       string(item.Status),
				"completed_at": *item.CompletedAt,
				"completed_by": item.CompletedBy,
			}).Error
		if err != nil {
			return err
		}
		result = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (l *MySQLLedger) SetPrepPriority(ctx context.Context, itemID int64, priority domain.PrepPriority) (*domain.PrepQueueItem, error) {
	var result domain.PrepQueueItem
	err := l.transaction(ctx, func(db *gorm.DB) error {
		item, err := lockPrepItem(db, itemID)
		if err != nil {
			return err
		}
		if item.Status != domain.PrepStatusPending {
			return domain.ErrPrepItemNotPending
		}
		if err := db.Model(&sqlPrepItem{}).Where("id = ?", itemID).Update("priority", int(priority)).Error; err != nil {
			return err
		}
		item.Priority = priority
		result = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func lockPrepItem(db *gorm.DB, itemID int64) (domain.PrepQueueItem, error) {
	var row sqlPrepItem
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", itemID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.PrepQueueItem{}, domain.ErrPrepItemNotFound
	}
	if err != nil {
		return domain.PrepQueueItem{}, err
	}
	return row.toDomain(), nil
}

func (l *MySQLLedger) CreateAccount(ctx context.Context, account *domain.Account) error {
	err := l.transaction(ctx, func(db *gorm.DB) error {
		var count int64
		if err := db.Model(&sqlAccount{}).Where("account_number = ?", account.Number).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrAccountAlreadyExists
		}
		row := sqlAccount{
			Number:        account.Number,
			Name:          account.Name,
			Type:          string(account.Type),
			Active:        account.Active,
			FamilyMembers: account.FamilyMembers,
			Notes:         account.Notes,
			CreatedAt:     account.CreatedAt,
		}
		if err := db.Create(&row).Error; err != nil {
			return err
		}
		account.ID = row.ID
		return nil
	})
	return accountError(err)
}

// SaveProduct ID 為 0 時新增，否則覆寫
func (l *MySQLLedger) SaveProduct(ctx context.Context, product *domain.Product) error {
	row := newSQLProduct(product)
	db := l.db.WithContext(ctx)
	var err error
	if row.ID == 0 {
		err = db.Create(&row).Error
	} else {
		err = db.Save(&row).Error
	}
	if err != nil {
		return translateError(err)
	}
	product.ID = row.ID
	return nil
}

var _ usecase.Ledger = (*MySQLLedger)(nil)
