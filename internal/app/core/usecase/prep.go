package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JoeShih716/snackbar-ledger/internal/app/core/domain"
)

// PrepQueue 廚房備餐佇列
//
// 項目只會在購買提交的原子單元內建立 (enqueue 需要 LedgerTx)，
// 之後只會被改成 completed 一次。
type PrepQueue struct {
	ledger Ledger
}

// enqueue 為需要備餐的明細建立 pending 項目，數量與購買數量相同
func (q *PrepQueue) enqueue(
	ctx context.Context,
	tx LedgerTx,
	items []domain.TransactionItem,
	products map[int64]domain.Product,
	accountName string,
	orderedAt time.Time,
) ([]domain.PrepQueueItem, error) {
	prepItems := make([]domain.PrepQueueItem, 0)
	for _, item := range items {
		if !products[item.ProductID].RequiresPrep {
			continue
		}
		prepItems = append(prepItems, domain.NewPrepQueueItem(item, accountName, orderedAt))
	}
	if len(prepItems) == 0 {
		return nil, nil
	}
	if err := tx.InsertPrepItems(ctx, prepItems); err != nil {
		return nil, err
	}
	return prepItems, nil
}

// ListPrepQueue 列出備餐項目
// pending: 急單優先，其次依下單時間 FIFO；completed: 最近完成的在前
func (c *CoreUseCase) ListPrepQueue(ctx context.Context, status domain.PrepStatus) ([]domain.PrepQueueItem, error) {
	if !status.Valid() {
		return nil, domain.ErrInvalidPrepStatus
	}
	return c.prep.ledger.ListPrepQueue(ctx, status)
}

// CompletePrepItem 標記備餐項目完成
// 對已完成的項目再次呼叫會覆寫完成人員與時間
func (c *CoreUseCase) CompletePrepItem(ctx context.Context, itemID int64, completedBy string) (*domain.PrepQueueItem, error) {
	if itemID <= 0 {
		return nil, domain.ErrPrepItemNotFound
	}
	if strings.TrimSpace(completedBy) == "" {
		return nil, domain.ErrMissingActor
	}

	item, err := c.prep.ledger.CompletePrepItem(ctx, itemID, completedBy, c.now())
	if err != nil {
		c.logFailure("complete prep item", err, zap.Int64("prep_item_id", itemID))
		return nil, err
	}
	c.notifier.notify(domain.NewPrepQueueUpdated(item.TransactionID, item.Status, []int64{item.ID}, c.now()))
	return item, nil
}

// SetPrepPriority 把待處理項目設為急單或一般
func (c *CoreUseCase) SetPrepPriority(ctx context.Context, itemID int64, priority domain.PrepPriority) (*domain.PrepQueueItem, error) {
	if itemID <= 0 {
		return nil, domain.ErrPrepItemNotFound
	}
	if !priority.Valid() {
		return nil, domain.ErrInvalidPriority
	}

	item, err := c.prep.ledger.SetPrepPriority(ctx, itemID, priority)
	if err != nil {
		c.logFailure("set prep priority", err, zap.Int64("prep_item_id", itemID))
		return nil, err
	}
	c.notifier.notify(domain.NewPrepQueueUpdated(item.TransactionID, item.Status, []int64{item.ID}, c.now()))
	return item, nil
}
