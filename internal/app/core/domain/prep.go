package domain

import (
	"sort"
	"time"
)

// PrepStatus 備餐狀態，只允許 pending -> completed
type PrepStatus string

const (
	PrepStatusPending   PrepStatus = "pending"
	PrepStatusCompleted PrepStatus = "completed"
)

// Valid 回傳是否為支援的狀態
func (s PrepStatus) Valid() bool {
	return s == PrepStatusPending || s == PrepStatusCompleted
}

// PrepPriority 備餐優先度
type PrepPriority int

const (
	// 急單
	PrepPriorityRush PrepPriority = 1
	// 一般 (預設)
	PrepPriorityNormal PrepPriority = 2
)

// Valid 回傳是否為支援的優先度
func (p PrepPriority) Valid() bool {
	return p == PrepPriorityRush || p == PrepPriorityNormal
}

// PrepQueueItem 廚房備餐項目，由需要備餐的購買明細產生
type PrepQueueItem struct {
	ID                int64
	TransactionID     int64
	TransactionItemID int64
	ProductName       string
	Quantity          int
	AccountName       string
	Status            PrepStatus
	Priority          PrepPriority
	OrderedAt         time.Time
	CompletedAt       *time.Time
	CompletedBy       string
}

// NewPrepQueueItem 由購買明細建立待處理的備餐項目
func NewPrepQueueItem(item TransactionItem, accountName string, orderedAt time.Time) PrepQueueItem {
	return PrepQueueItem{
		TransactionID:     item.TransactionID,
		TransactionItemID: item.ID,
		ProductName:       item.ProductName,
		Quantity:          item.Quantity,
		AccountName:       accountName,
		Status:            PrepStatusPending,
		Priority:          PrepPriorityNormal,
		OrderedAt:         orderedAt,
	}
}

// Complete 標記完成
// 注意: 沒有防止重複完成，再次呼叫會覆寫 CompletedAt / CompletedBy
func (p *PrepQueueItem) Complete(completedBy string, at time.Time) {
	p.Status = PrepStatusCompleted
	p.CompletedAt = &at
	p.CompletedBy = completedBy
}

// SortPrepQueue 依狀態排序：
// pending 依優先度、下單時間由舊到新；completed 依完成時間由新到舊
func SortPrepQueue(items []PrepQueueItem, status PrepStatus) {
	switch status {
	case PrepStatusPending:
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].Priority != items[j].Priority {
				return items[i].Priority < items[j].Priority
			}
			if !items[i].OrderedAt.Equal(items[j].OrderedAt) {
				return items[i].OrderedAt.Before(items[j].OrderedAt)
			}
			return items[i].ID < items[j].ID
		})
	case PrepStatusCompleted:
		sort.SliceStable(items, func(i, j int) bool {
			a, b := completedAt(items[i]), completedAt(items[j])
			if !a.Equal(b) {
				return a.After(b)
			}
			return items[i].ID > items[j].ID
		})
	}
}

func completedAt(item PrepQueueItem) time.Time {
	if item.CompletedAt == nil {
		return time.Time{}
	}
	return *item.CompletedAt
}
