package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JoeShih716/snackbar-ledger/internal/app/core/domain"
)

// CreateTransaction 驗證並以單一原子單元提交交易
//
// 帳本寫入、明細、備餐項目、庫存扣除與原始交易的調整旗標
// 全部一起提交或全部回滾；提交成功後才發佈通知。
//
// 參數:
//
//	ctx: 上下文
//	req: 交易請求 (Actor 必須是呼叫端已驗證的身分)
//
// 回傳:
//
//	*domain.CommittedTransaction: 交易、明細、備餐項目與提交後餘額
//	error: ErrValidation / ErrUnknownReference / ErrAlreadyAdjusted / ErrContentionTimeout / ErrStorageFailure
func (c *CoreUseCase) CreateTransaction(ctx context.Context, req domain.TransactionRequest) (*domain.CommittedTransaction, error) {
	if err := req.Validate(); err != nil {
		c.logFailure("create transaction", err, zap.Int64("account_id", req.AccountID))
		return nil, err
	}

	var committed *domain.CommittedTransaction
	err := c.ledger.Atomic(ctx, func(ctx context.Context, tx LedgerTx) error {
		// 先鎖帳戶，同一帳戶的提交依序執行，餘額才會一致
		account, err := tx.LockAccount(ctx, req.AccountID)
		if err != nil {
			return err
		}

		now := c.now()
		result := &domain.CommittedTransaction{}
		tran := &domain.Transaction{
			AccountID: account.ID,
			Type:      req.Type,
			CreatedAt: now,
			CreatedBy: req.Actor,
			Notes:     req.Notes,
		}

		switch req.Type {
		case domain.TransactionTypePurchase:
			err = c.commitPurchase(ctx, tx, account, tran, req.Items, now, result)
		case domain.TransactionTypePayment:
			tran.Amount = req.Amount.Abs()
			err = tx.InsertTransaction(ctx, tran)
		case domain.TransactionTypeAdjustment:
			err = c.commitAdjustment(ctx, tx, tran, &req)
		default:
			err = domain.ErrInvalidTransactionType
		}
		if err != nil {
			return err
		}

		balance, err := tx.Balance(ctx, account.ID)
		if err != nil {
			return err
		}
		result.Transaction = *tran
		result.BalanceAfter = balance
		committed = result
		return nil
	})
	if err != nil {
		c.logFailure("create transaction", err,
			zap.Int64("account_id", req.AccountID),
			zap.String("type", string(req.Type)),
		)
		return nil, err
	}

	c.logger.Debug("transaction committed",
		zap.Int64("transaction_id", committed.Transaction.ID),
		zap.Int64("account_id", committed.Transaction.AccountID),
		zap.String("amount", committed.Transaction.Amount.String()),
		zap.String("balance_after", committed.BalanceAfter.String()),
	)

	events := []domain.Event{domain.NewTransactionCreated(committed, c.now())}
	if len(committed.PrepItems) > 0 {
		ids := make([]int64, 0, len(committed.PrepItems))
		for _, item := range committed.PrepItems {
			ids = append(ids, item.ID)
		}
		events = append(events, domain.NewPrepQueueUpdated(committed.Transaction.ID, domain.PrepStatusPending, ids, c.now()))
	}
	c.notifier.notify(events...)

	return committed, nil
}

// commitPurchase 以目錄價格計算金額，寫入明細、扣庫存並建立備餐項目
func (c *CoreUseCase) commitPurchase(
	ctx context.Context,
	tx LedgerTx,
	account *domain.Account,
	tran *domain.Transaction,
	lines []domain.LineItem,
	now time.Time,
	result *domain.CommittedTransaction,
) error {
	products, err := tx.LoadProducts(ctx, domain.ProductIDs(lines))
	if err != nil {
		return err
	}

	// 價格一律以目錄為準，不信任客戶端
	items := make([]domain.TransactionItem, 0, len(lines))
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			return fmt.Errorf("%w: id %d", domain.ErrProductNotFound, line.ProductID)
		}
		items = append(items, domain.NewTransactionItem(product, line.Quantity))
	}
	tran.Amount = domain.PurchaseAmount(items)

	if err := tx.InsertTransaction(ctx, tran); err != nil {
		return err
	}
	for i := range items {
		items[i].TransactionID = tran.ID
	}
	if err := tx.InsertItems(ctx, items); err != nil {
		return err
	}

	for _, item := range items {
		if !products[item.ProductID].TrackInventory {
			continue
		}
		if err := tx.DecrementInventory(ctx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}

	prepItems, err := c.prep.enqueue(ctx, tx, items, products, account.Name, now)
	if err != nil {
		return err
	}

	result.Items = items
	result.PrepItems = prepItems
	return nil
}

// commitAdjustment 寫入調整交易；若指向原始交易，在同一單元內檢查並設定調整旗標
func (c *CoreUseCase) commitAdjustment(ctx context.Context, tx LedgerTx, tran *domain.Transaction, req *domain.TransactionRequest) error {
	tran.Amount = req.Amount

	if req.OriginalTransactionID == nil {
		return tx.InsertTransaction(ctx, tran)
	}

	original, err := tx.LockTransaction(ctx, *req.OriginalTransactionID)
	if err != nil {
		return err
	}
	if original.HasBeenAdjusted {
		return domain.ErrAlreadyAdjusted
	}

	originalID := original.ID
	tran.OriginalTransactionID = &originalID
	if err := tx.InsertTransaction(ctx, tran); err != nil {
		return err
	}
	// 旗標才是依據，備註只是稽核紀錄
	return tx.MarkAdjusted(ctx, originalID, domain.AdjustmentNote(tran.ID, tran.Amount))
}
