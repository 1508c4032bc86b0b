package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	grpc_adapter "github.com/JoeShih716/snackbar-ledger/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/snackbar-ledger/pkg/grpc"
	"github.com/JoeShih716/snackbar-ledger/pkg/logger"
)

const (
	Target = "localhost:50051"
	// RefundRacers 同時對同一筆購買送出退款的數量，只能有一筆成功
	RefundRacers = 50
	// TotalPurchases / Concurrency 購買壓測
	TotalPurchases = 10000
	Concurrency    = 100
)

func main() {
	log, err := logger.New(logger.Config{Level: "info", Encoding: "console"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	pool := grpc.NewPool(grpc.WithInterceptor(grpc.MetadataInterceptor(grpc_adapter.ActorMetadataKey, "load-driver")))
	defer pool.Close()
	conn, err := pool.GetConnection(Target)
	if err != nil {
		log.Fatal("did not connect", zap.Error(err))
	}
	client := grpc_adapter.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	accountID, productID := setup(ctx, client, log)
	refundRace(ctx, client, log, accountID, productID)
	purchaseLoad(ctx, client, log, accountID, productID)
}

// setup 建立測試帳戶與商品並先儲值
func setup(ctx context.Context, client *grpc_adapter.Client, log *zap.Logger) (float64, float64) {
	account, err := client.Call(ctx, grpc_adapter.MethodCreateAccount, map[string]any{
		"number": "LOAD-" + uuid.NewString()[:8],
		"name":   "Load Test",
		"type":   "individual",
	})
	if err != nil {
		log.Fatal("create account failed", zap.Error(err))
	}
	product, err := client.Call(ctx, grpc_adapter.MethodSaveProduct, map[string]any{
		"name":   "Soda",
		"price":  "1.25",
		"active": true,
	})
	if err != nil {
		log.Fatal("save product failed", zap.Error(err))
	}
	accountID := account["account"].(map[string]any)["id"].(float64)
	productID := product["product"].(map[string]any)["id"].(float64)

	if _, err := client.Call(ctx, grpc_adapter.MethodCreateTransaction, map[string]any{
		"account_id": accountID,
		"type":       "payment",
		"amount":     "100.00",
	}); err != nil {
		log.Fatal("payment failed", zap.Error(err))
	}
	return accountID, productID
}

// refundRace 同一筆購買同時送出多筆退款，驗證只有一筆成功
func refundRace(ctx context.Context, client *grpc_adapter.Client, log *zap.Logger, accountID, productID float64) {
	purchase, err := client.Call(ctx, grpc_adapter.MethodCreateTransaction, map[string]any{
		"account_id": accountID,
		"type":       "purchase",
		"items":      []any{map[string]any{"product_id": productID, "quantity": 2}},
	})
	if err != nil {
		log.Fatal("purchase failed", zap.Error(err))
	}
	originalID := purchase["transaction"].(map[string]any)["id"]

	var succeeded, rejected, failed atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < RefundRacers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := client.Call(ctx, grpc_adapter.MethodCreateTransaction, map[string]any{
				"account_id":              accountID,
				"type":                    "adjustment",
				"amount":                  "2.50",
				"original_transaction_id": originalID,
			})
			switch status.Code(err) {
			case codes.OK:
				succeeded.Add(1)
			case codes.FailedPrecondition:
				rejected.Add(1)
			default:
				failed.Add(1)
				log.Warn("refund failed", zap.Error(err))
			}
		}()
	}
	close(start)
	wg.Wait()

	log.Info("refund race finished",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("already_adjusted", rejected.Load()),
		zap.Int64("failed", failed.Load()),
	)
	if succeeded.Load() != 1 {
		log.Error("expected exactly one refund to succeed", zap.Int64("succeeded", succeeded.Load()))
	}
}

// purchaseLoad 並發購買並計算 TPS，最後比對餘額
func purchaseLoad(ctx context.Context, client *grpc_adapter.Client, log *zap.Logger, accountID, productID float64) {
	var wg sync.WaitGroup
	var failed atomic.Int64
	sem := make(chan struct{}, Concurrency)
	startTime := time.Now()

	for i := 0; i < TotalPurchases; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := client.Call(ctx, grpc_adapter.MethodCreateTransaction, map[string]any{
				"account_id": accountID,
				"type":       "purchase",
				"items":      []any{map[string]any{"product_id": productID, "quantity": 1}},
			})
			if err != nil {
				failed.Add(1)
				if idx%1000 == 0 {
					log.Warn("purchase failed", zap.Int("idx", idx), zap.Error(err))
				}
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(startTime)

	balance, err := client.Call(ctx, grpc_adapter.MethodGetBalance, map[string]any{"account_id": accountID})
	if err != nil {
		log.Fatal("get balance failed", zap.Error(err))
	}
	log.Info("purchase load finished",
		zap.Int("requests", TotalPurchases),
		zap.Int64("failed", failed.Load()),
		zap.Duration("elapsed", elapsed),
		zap.Float64("tps", float64(TotalPurchases)/elapsed.Seconds()),
		zap.Any("balance", balance["balance"]),
	)
}
