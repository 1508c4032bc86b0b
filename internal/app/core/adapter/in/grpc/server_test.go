package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/JoeShih716/snackbar-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/snackbar-ledger/internal/app/core/domain"
	"github.com/JoeShih716/snackbar-ledger/internal/app/core/usecase"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	ledger, err := memory.NewMutexLedger(nil)
	require.NoError(t, err)
	core := usecase.NewCoreUseCase(ledger)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(zap.NewNop())))
	RegisterLedgerServiceServer(srv, NewGrpcServer(core, nil))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

// seed 建立一個帳戶與兩個商品，回傳 (帳戶 ID, 洋芋片 ID, 熱狗 ID)
func seed(t *testing.T, c *Client) (float64, float64, float64) {
	t.Helper()
	ctx := WithActor(context.Background(), "admin")

	account, err := c.Call(ctx, MethodCreateAccount, map[string]any{
		"number":         "F-100",
		"name":           "Wang Family",
		"type":           "family",
		"family_members": []any{"Mei", "Jun"},
	})
	require.NoError(t, err)

	chips, err := c.Call(ctx, MethodSaveProduct, map[string]any{
		"name": "Chips", "price": "1.50", "active": true,
	})
	require.NoError(t, err)
	hotdog, err := c.Call(ctx, MethodSaveProduct, map[string]any{
		"name": "Hot Dog", "price": "2.25", "requires_prep": true, "active": true,
	})
	require.NoError(t, err)

	return account["account"].(map[string]any)["id"].(float64),
		chips["product"].(map[string]any)["id"].(float64),
		hotdog["product"].(map[string]any)["id"].(float64)
}

func TestGrpcServer_PurchaseAndBalance(t *testing.T) {
	c := newTestClient(t)
	accountID, chipsID, hotdogID := seed(t, c)
	ctx := WithActor(context.Background(), "cashier")

	resp, err := c.Call(ctx, MethodCreateTransaction, map[string]any{
		"account_id": accountID,
		"type":       "purchase",
		"items": []any{
			map[string]any{"product_id": chipsID, "quantity": 1},
			map[string]any{"product_id": hotdogID, "quantity": 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "-6.00", resp["balance_after"])
	tran := resp["transaction"].(map[string]any)
	assert.Equal(t, "-6.00", tran["amount"])
	assert.Equal(t, "cashier", tran["created_by"])
	assert.Len(t, resp["items"], 2)
	assert.Len(t, resp["prep_items"], 1)

	balance, err := c.Call(ctx, MethodGetBalance, map[string]any{"account_id": accountID})
	require.NoError(t, err)
	assert.Equal(t, "-6.00", balance["balance"])

	payment, err := c.Call(ctx, MethodCreateTransaction, map[string]any{
		"account_id": accountID,
		"type":       "payment",
		"amount":     "10.00",
	})
	require.NoError(t, err)
	assert.Equal(t, "4.00", payment["balance_after"])

	summary, err := c.Call(ctx, MethodGetSummary, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "10.00", summary["total_prepaid"])
	assert.Equal(t, "6.00", summary["total_spent"])
	assert.Equal(t, float64(2), summary["transaction_count"])

	list, err := c.Call(ctx, MethodListTransactions, map[string]any{"account_id": accountID})
	require.NoError(t, err)
	transactions := list["transactions"].([]any)
	require.Len(t, transactions, 2)
	assert.Equal(t, "payment", transactions[0].(map[string]any)["type"])
}

func TestGrpcServer_Refund(t *testing.T) {
	c := newTestClient(t)
	accountID, chipsID, _ := seed(t, c)
	ctx := WithActor(context.Background(), "manager")

	purchase, err := c.Call(ctx, MethodCreateTransaction, map[string]any{
		"account_id": accountID,
		"type":       "purchase",
		"items":      []any{map[string]any{"product_id": chipsID, "quantity": 1}},
	})
	require.NoError(t, err)
	originalID := purchase["transaction"].(map[string]any)["id"]

	refund := map[string]any{
		"account_id":              accountID,
		"type":                    "adjustment",
		"amount":                  "1.50",
		"original_transaction_id": originalID,
	}
	resp, err := c.Call(ctx, MethodCreateTransaction, refund)
	require.NoError(t, err)
	assert.Equal(t, "0.00", resp["balance_after"])

	_, err = c.Call(ctx, MethodCreateTransaction, refund)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	original, err := c.Call(ctx, MethodGetTransaction, map[string]any{"id": originalID})
	require.NoError(t, err)
	assert.Equal(t, true, original["transaction"].(map[string]any)["has_been_adjusted"])
}

func TestGrpcServer_PrepQueue(t *testing.T) {
	c := newTestClient(t)
	accountID, _, hotdogID := seed(t, c)
	ctx := WithActor(context.Background(), "kitchen")

	var itemIDs []any
	for i := 0; i < 2; i++ {
		resp, err := c.Call(ctx, MethodCreateTransaction, map[string]any{
			"account_id": accountID,
			"type":       "purchase",
			"items":      []any{map[string]any{"product_id": hotdogID, "quantity": 1}},
		})
		require.NoError(t, err)
		itemIDs = append(itemIDs, resp["prep_items"].([]any)[0].(map[string]any)["id"])
	}

	_, err := c.Call(ctx, MethodSetPrepPriority, map[string]any{"item_id": itemIDs[1], "priority": 1})
	require.NoError(t, err)

	pending, err := c.Call(ctx, MethodListPrepQueue, map[string]any{})
	require.NoError(t, err)
	items := pending["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, itemIDs[1], items[0].(map[string]any)["id"])

	done, err := c.Call(ctx, MethodCompletePrepItem, map[string]any{"item_id": itemIDs[0]})
	require.NoError(t, err)
	item := done["item"].(map[string]any)
	assert.Equal(t, "completed", item["status"])
	assert.Equal(t, "kitchen", item["completed_by"])

	completed, err := c.Call(ctx, MethodListPrepQueue, map[string]any{"status": "completed"})
	require.NoError(t, err)
	assert.Len(t, completed["items"], 1)

	_, err = c.Call(ctx, MethodListPrepQueue, map[string]any{"status": "cooking"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGrpcServer_Errors(t *testing.T) {
	c := newTestClient(t)
	accountID, chipsID, _ := seed(t, c)

	purchase := map[string]any{
		"account_id": accountID,
		"type":       "purchase",
		"items":      []any{map[string]any{"product_id": chipsID, "quantity": 1}},
	}

	tests := []struct {
		name string
		ctx  context.Context
		req  map[string]any
		want codes.Code
	}{
		{"missing actor", context.Background(), purchase, codes.InvalidArgument},
		{"unknown account", WithActor(context.Background(), "cashier"), map[string]any{
			"account_id": 999, "type": "payment", "amount": "5.00",
		}, codes.NotFound},
		{"non integer account", WithActor(context.Background(), "cashier"), map[string]any{
			"account_id": "abc", "type": "payment", "amount": "5.00",
		}, codes.InvalidArgument},
		{"bad amount", WithActor(context.Background(), "cashier"), map[string]any{
			"account_id": accountID, "type": "payment", "amount": "ten",
		}, codes.InvalidArgument},
		{"negative payment", WithActor(context.Background(), "cashier"), map[string]any{
			"account_id": accountID, "type": "payment", "amount": "-5.00",
		}, codes.InvalidArgument},
		{"unknown product", WithActor(context.Background(), "cashier"), map[string]any{
			"account_id": accountID, "type": "purchase",
			"items": []any{map[string]any{"product_id": 999, "quantity": 1}},
		}, codes.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Call(tt.ctx, MethodCreateTransaction, tt.req)
			assert.Equal(t, tt.want, status.Code(err))
		})
	}
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{domain.ErrAmountMustBePositive, codes.InvalidArgument},
		{fmt.Errorf("%w: id 3", domain.ErrProductNotFound), codes.NotFound},
		{domain.ErrAlreadyAdjusted, codes.FailedPrecondition},
		{fmt.Errorf("%w: lock wait", domain.ErrContentionTimeout), codes.Aborted},
		{domain.ErrWALWriteFailed, codes.Unavailable},
		{errors.New("boom"), codes.Internal},
		{status.Error(codes.PermissionDenied, "no"), codes.PermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, status.Code(toStatus(tt.err)))
		})
	}
}
