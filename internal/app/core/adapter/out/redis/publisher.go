package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JoeShih716/snackbar-ledger/internal/app/core/domain"
	"github.com/JoeShih716/snackbar-ledger/internal/app/core/usecase"
)

// DefaultChannelPrefix 預設頻道前綴
const DefaultChannelPrefix = "snackbar"

// Publisher 把提交後的事件以 JSON 發佈到 Redis Pub/Sub
type Publisher struct {
	client goredis.UniversalClient
	prefix string
}

// NewPublisher 建立 Redis 事件發佈者，prefix 為空時使用 DefaultChannelPrefix
func NewPublisher(client goredis.UniversalClient, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &Publisher{client: client, prefix: prefix}
}

// Channel 事件對應的頻道名稱: <prefix>:<event type>
func (p *Publisher) Channel(eventType domain.EventType) string {
	return p.prefix + ":" + string(eventType)
}

func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.ID, err)
	}
	if err := p.client.Publish(ctx, p.Channel(event.Type), payload).Err(); err != nil {
		return fmt.Errorf("publish event %s: %w", event.ID, err)
	}
	return nil
}

var _ usecase.Publisher = (*Publisher)(nil)
