package memory

import (
	"context"
	"sync"

	"github.com/JoeShih716/snackbar-ledger/internal/app/core/domain"
	"github.com/JoeShih716/snackbar-ledger/internal/app/core/usecase"
)

// Broker 行程內的事件分發，訂閱者各自有一個帶緩衝的 channel
// 訂閱者處理太慢時直接丟棄事件，不會阻塞發佈端
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int]chan domain.Event
	nextID      int
	buffer      int
	closed      bool
}

// NewBroker 建立 Broker，buffer 為每個訂閱者的緩衝大小
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broker{
		subscribers: make(map[int]chan domain.Event),
		buffer:      buffer,
	}
}

// Subscribe 回傳事件 channel 與取消訂閱函式
func (b *Broker) Subscribe() (<-chan domain.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan domain.Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(ch)
			}
		})
	}
}

// Publish 非阻塞送給所有訂閱者
func (b *Broker) Publish(ctx context.Context, event domain.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Close 關閉所有訂閱者的 channel，之後的 Publish 不做任何事
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}

var _ usecase.Publisher = (*Broker)(nil)
