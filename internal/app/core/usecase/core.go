package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/snackbar-ledger/internal/app/core/domain"
)

// DefaultNotifyTimeout 單次事件發佈的時間上限
const DefaultNotifyTimeout = 5 * time.Second

// CoreUseCase 是核心業務邏輯層
type CoreUseCase struct {
	ledger   Ledger
	prep     *PrepQueue
	notifier *notifier
	logger   *zap.Logger
	now      func() time.Time
}

// Option 設定 CoreUseCase 的選項
type Option func(*CoreUseCase)

// WithLogger 設定 logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *CoreUseCase) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPublishers 設定提交後通知的訂閱通道
func WithPublishers(publishers ...Publisher) Option {
	return func(c *CoreUseCase) {
		c.notifier.publishers = append(c.notifier.publishers, publishers...)
	}
}

// WithNotifyTimeout 設定事件發佈逾時
func WithNotifyTimeout(timeout time.Duration) Option {
	return func(c *CoreUseCase) {
		if timeout > 0 {
			c.notifier.timeout = timeout
		}
	}
}

// WithClock 替換時間來源 (測試用)
func WithClock(now func() time.Time) Option {
	return func(c *CoreUseCase) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCoreUseCase(ledger Ledger, opts ...Option) *CoreUseCase {
	c := &CoreUseCase{
		ledger:   ledger,
		notifier: &notifier{timeout: DefaultNotifyTimeout},
		logger:   zap.NewNop(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	c.notifier.logger = c.logger.Named("notifier")
	c.prep = &PrepQueue{ledger: ledger}
	return c
}

// Close 等待尚未送出的通知
func (c *CoreUseCase) Close(ctx context.Context) error {
	return c.notifier.wait(ctx)
}

// GetBalance 取得帳戶餘額 (每次都由帳本重新加總)
func (c *CoreUseCase) GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	balance, err := c.ledger.GetAccountBalance(ctx, accountID)
	if err != nil {
		c.logFailure("get balance", err, zap.Int64("account_id", accountID))
		return decimal.Zero, err
	}
	return balance, nil
}

// Summary 帳本彙總 (總儲值、總消費、負餘額帳戶數...)
func (c *CoreUseCase) Summary(ctx context.Context) (domain.LedgerSummary, error) {
	return c.ledger.Summary(ctx)
}

// GetTransaction 取得單筆交易與明細
func (c *CoreUseCase) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, []domain.TransactionItem, error) {
	if id <= 0 {
		return nil, nil, domain.ErrTransactionNotFound
	}
	return c.ledger.GetTransaction(ctx, id)
}

// ListTransactions 依建立時間由新到舊列出交易
func (c *CoreUseCase) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	if filter.Limit <= 0 {
		filter.Limit = domain.DefaultTransactionLimit
	}
	return c.ledger.ListTransactions(ctx, filter)
}

// CreateAccount 建立帳戶並發佈 account_created
func (c *CoreUseCase) CreateAccount(ctx context.Context, account *domain.Account) error {
	if err := account.Validate(); err != nil {
		return err
	}
	account.Active = true
	account.CreatedAt = c.now()
	if err := c.ledger.CreateAccount(ctx, account); err != nil {
		c.logFailure("create account", err, zap.String("account_number", account.Number))
		return err
	}
	c.notifier.notify(domain.NewAccountCreated(account, c.now()))
	return nil
}

// SaveProduct 寫入目錄商品
func (c *CoreUseCase) SaveProduct(ctx context.Context, product *domain.Product) error {
	if err := product.Validate(); err != nil {
		return err
	}
	return c.ledger.SaveProduct(ctx, product)
}

// logFailure 使用者錯誤記 debug，可重試的錯誤記 error
func (c *CoreUseCase) logFailure(op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("op", op), zap.Error(err))
	switch {
	case errors.Is(err, domain.ErrStorageFailure):
		c.logger.Error("ledger storage failure", fields...)
	case errors.Is(err, domain.ErrContentionTimeout):
		c.logger.Warn("ledger contention timeout", fields...)
	default:
		c.logger.Debug("ledger request rejected", fields...)
	}
}
