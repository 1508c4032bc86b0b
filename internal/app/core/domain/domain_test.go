package domain

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchaseAmount(t *testing.T) {
	soda := Product{ID: 1, Name: "Soda", Price: decimal.RequireFromString("1.25")}
	fries := Product{ID: 2, Name: "Fries", Price: decimal.RequireFromString("3.10")}

	items := []TransactionItem{NewTransactionItem(soda, 3), NewTransactionItem(fries, 2)}
	assert.Equal(t, "3.75", items[0].LineTotal.StringFixed(2))
	assert.Equal(t, "-9.95", PurchaseAmount(items).StringFixed(2))
	assert.True(t, PurchaseAmount(nil).IsZero())
}

func TestAdjustmentNote(t *testing.T) {
	note := AdjustmentNote(12, decimal.RequireFromString("2.5"))
	assert.Equal(t, "[adjusted by transaction #12: 2.50]", note)
	assert.Equal(t, note, AppendNote("", note))
	assert.Equal(t, "cash\n"+note, AppendNote("cash", note))
}

func TestProductIDs(t *testing.T) {
	ids := ProductIDs([]LineItem{{ProductID: 3, Quantity: 1}, {ProductID: 1, Quantity: 2}, {ProductID: 3, Quantity: 1}})
	assert.Equal(t, []int64{3, 1}, ids)
}

func TestTransactionRequest_Validate(t *testing.T) {
	original := int64(0)
	tests := []struct {
		name string
		req  TransactionRequest
		want error
	}{
		{"payment ok", TransactionRequest{AccountID: 1, Type: TransactionTypePayment, Amount: decimal.RequireFromString("0.01"), Actor: "a"}, nil},
		{"payment below minimum", TransactionRequest{AccountID: 1, Type: TransactionTypePayment, Amount: decimal.RequireFromString("0.001"), Actor: "a"}, ErrAmountOutOfRange},
		{"zero adjustment", TransactionRequest{AccountID: 1, Type: TransactionTypeAdjustment, Amount: decimal.Zero, Actor: "a"}, nil},
		{"adjustment max", TransactionRequest{AccountID: 1, Type: TransactionTypeAdjustment, Amount: decimal.RequireFromString("-10000"), Actor: "a"}, nil},
		{"invalid original id", TransactionRequest{AccountID: 1, Type: TransactionTypeAdjustment, Amount: decimal.NewFromInt(1), OriginalTransactionID: &original, Actor: "a"}, ErrTransactionNotFound},
		{"invalid product id", TransactionRequest{AccountID: 1, Type: TransactionTypePurchase, Items: []LineItem{{ProductID: 0, Quantity: 1}}, Actor: "a"}, ErrProductNotFound},
		{"blank actor", TransactionRequest{AccountID: 1, Type: TransactionTypePayment, Amount: decimal.NewFromInt(1), Actor: "  "}, ErrMissingActor},
		{"missing account", TransactionRequest{Type: TransactionTypePayment, Amount: decimal.NewFromInt(1), Actor: "a"}, ErrAccountNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAccount_Validate(t *testing.T) {
	ok := Account{Number: "F-1", Name: "Lee", Type: AccountTypeFamily}
	require.NoError(t, ok.Validate())

	noName := ok
	noName.Name = " "
	assert.ErrorIs(t, noName.Validate(), ErrInvalidAccount)

	badType := ok
	badType.Type = "vip"
	assert.ErrorIs(t, badType.Validate(), ErrInvalidAccount)

	product := Product{Name: "Tea", Price: decimal.RequireFromString("-1")}
	assert.ErrorIs(t, product.Validate(), ErrInvalidProduct)

	subCent := Product{Name: "Tea", Price: decimal.RequireFromString("1.005")}
	assert.ErrorIs(t, subCent.Validate(), ErrAmountPrecision)
	cents := Product{Name: "Tea", Price: decimal.RequireFromString("1.50")}
	assert.NoError(t, cents.Validate())
}

func TestSortPrepQueue(t *testing.T) {
	base := time.Date(2026, 7, 4, 12, 0, 0, 0, time.UTC)
	at := func(minutes int) *time.Time {
		v := base.Add(time.Duration(minutes) * time.Minute)
		return &v
	}

	pending := []PrepQueueItem{
		{ID: 1, Priority: PrepPriorityNormal, OrderedAt: base.Add(time.Minute)},
		{ID: 2, Priority: PrepPriorityNormal, OrderedAt: base},
		{ID: 3, Priority: PrepPriorityRush, OrderedAt: base.Add(2 * time.Minute)},
		{ID: 4, Priority: PrepPriorityNormal, OrderedAt: base},
	}
	SortPrepQueue(pending, PrepStatusPending)
	assert.Equal(t, []int64{3, 2, 4, 1}, prepIDs(pending))

	completed := []PrepQueueItem{
		{ID: 1, CompletedAt: at(5)},
		{ID: 2, CompletedAt: at(9)},
		{ID: 3, CompletedAt: at(5)},
	}
	SortPrepQueue(completed, PrepStatusCompleted)
	assert.Equal(t, []int64{2, 3, 1}, prepIDs(completed))
}

func prepIDs(items []PrepQueueItem) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func TestNewLedgerSummary(t *testing.T) {
	balances := map[int64]decimal.Decimal{
		1: decimal.RequireFromString("12.00"),
		2: decimal.RequireFromString("-3.50"),
		3: decimal.RequireFromString("-1.25"),
		4: decimal.Zero,
	}
	s := NewLedgerSummary(balances, 4, decimal.RequireFromString("30"), 9)

	assert.Equal(t, "7.25", s.TotalRemaining.StringFixed(2))
	assert.Equal(t, "22.75", s.TotalSpent.StringFixed(2))
	assert.Equal(t, int64(2), s.NegativeBalanceAccounts)
	assert.Equal(t, "-4.75", s.TotalNegativeAmount.StringFixed(2))
	assert.Equal(t, int64(9), s.TransactionCount)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("%w: lock wait", ErrContentionTimeout)))
	assert.True(t, IsRetryable(ErrWALWriteFailed))
	assert.False(t, IsRetryable(ErrAlreadyAdjusted))
	assert.False(t, IsRetryable(ErrAmountMustBePositive))
	assert.False(t, IsRetryable(nil))
}

func TestEvent_JSON(t *testing.T) {
	committed := &CommittedTransaction{
		Transaction:  Transaction{ID: 5, AccountID: 2, Amount: decimal.RequireFromString("-4.00")},
		BalanceAfter: decimal.RequireFromString("6.00"),
	}
	event := NewTransactionCreated(committed, time.Date(2026, 7, 4, 12, 0, 0, 0, time.UTC))

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "transaction_created", raw["type"])
	assert.Equal(t, float64(5), raw["transaction_id"])
	assert.Equal(t, "-4", raw["amount"])
	assert.Equal(t, "6", raw["balance_after"])
	assert.NotContains(t, raw, "prep_item_ids")
}
