package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JoeShih716/snackbar-ledger/internal/app/core/domain"
)

// notifier 提交後的 fire-and-forget 通知
// 發佈失敗只記錄 log，不影響已提交的交易，也不阻塞呼叫端
type notifier struct {
	publishers []Publisher
	logger     *zap.Logger
	timeout    time.Duration
	wg         sync.WaitGroup
}

func (n *notifier) notify(events ...domain.Event) {
	if len(n.publishers) == 0 || len(events) == 0 {
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		for _, event := range events {
			for _, publisher := range n.publishers {
				n.publish(ctx, publisher, event)
			}
		}
	}()
}

// publish 單一訂閱通道的失敗或 panic 只影響自己，其餘通道照常送出
func (n *notifier) publish(ctx context.Context, publisher Publisher, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("publisher panicked",
				zap.String("event_id", event.ID.String()),
				zap.String("event_type", string(event.Type)),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	if err := publisher.Publish(ctx, event); err != nil {
		n.logger.Warn("failed to publish event",
			zap.String("event_id", event.ID.String()),
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
	}
}

// wait 等待所有進行中的通知，ctx 結束時放棄等待
func (n *notifier) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
