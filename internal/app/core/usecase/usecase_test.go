package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/snackbar-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/snackbar-ledger/internal/app/core/domain"
	"github.com/JoeShih716/snackbar-ledger/internal/app/core/usecase"
)

// stepClock 每次呼叫前進一秒，讓排序可預期
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 7, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type testEnv struct {
	core    *usecase.CoreUseCase
	ledger  *memory.MutexLedger
	account *domain.Account
	candy   *domain.Product // 2.00，不需備餐，追蹤庫存
	nachos  *domain.Product // 3.50，需要備餐
}

func newTestEnv(t *testing.T, opts ...usecase.Option) *testEnv {
	t.Helper()
	ledger, err := memory.NewMutexLedger(nil)
	require.NoError(t, err)
	return setupEnv(t, ledger, opts...)
}

func setupEnv(t *testing.T, ledger *memory.MutexLedger, opts ...usecase.Option) *testEnv {
	t.Helper()
	ctx := context.Background()
	opts = append([]usecase.Option{usecase.WithClock(newStepClock().Now)}, opts...)
	core := usecase.NewCoreUseCase(ledger, opts...)
	t.Cleanup(func() { _ = core.Close(context.Background()) })

	account := &domain.Account{Number: "F-001", Name: "Garcia Family", Type: domain.AccountTypeFamily}
	require.NoError(t, core.CreateAccount(ctx, account))

	candy := &domain.Product{Name: "Candy Bar", Price: dec("2.00"), TrackInventory: true, InventoryQuantity: 20, Active: true}
	nachos := &domain.Product{Name: "Nachos", Price: dec("3.50"), RequiresPrep: true, Active: true}
	require.NoError(t, core.SaveProduct(ctx, candy))
	require.NoError(t, core.SaveProduct(ctx, nachos))

	return &testEnv{core: core, ledger: ledger, account: account, candy: candy, nachos: nachos}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (e *testEnv) purchase(lines ...domain.LineItem) domain.TransactionRequest {
	return domain.TransactionRequest{
		AccountID: e.account.ID,
		Type:      domain.TransactionTypePurchase,
		Items:     lines,
		Actor:     "cashier",
	}
}

func (e *testEnv) payment(amount string) domain.TransactionRequest {
	return domain.TransactionRequest{
		AccountID: e.account.ID,
		Type:      domain.TransactionTypePayment,
		Amount:    dec(amount),
		Actor:     "cashier",
	}
}

func (e *testEnv) refund(originalID int64, amount string) domain.TransactionRequest {
	return domain.TransactionRequest{
		AccountID:             e.account.ID,
		Type:                  domain.TransactionTypeAdjustment,
		Amount:                dec(amount),
		OriginalTransactionID: &originalID,
		Actor:                 "manager",
	}
}

func (e *testEnv) mustCommit(t *testing.T, req domain.TransactionRequest) *domain.CommittedTransaction {
	t.Helper()
	committed, err := e.core.CreateTransaction(context.Background(), req)
	require.NoError(t, err)
	return committed
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}
