package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType 事件類型
type EventType string

const (
	EventAccountCreated     EventType = "account_created"
	EventTransactionCreated EventType = "transaction_created"
	EventPrepQueueUpdated   EventType = "prep_queue_updated"
)

// Event 提交成功後發佈給訂閱者的通知
type Event struct {
	ID            uuid.UUID        `json:"id"`
	Type          EventType        `json:"type"`
	OccurredAt    time.Time        `json:"occurred_at"`
	AccountID     int64            `json:"account_id,omitempty"`
	AccountNumber string           `json:"account_number,omitempty"`
	TransactionID int64            `json:"transaction_id,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	BalanceAfter  *decimal.Decimal `json:"balance_after,omitempty"`
	PrepItemIDs   []int64          `json:"prep_item_ids,omitempty"`
	PrepStatus    PrepStatus       `json:"prep_status,omitempty"`
}

func newEvent(t EventType, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		OccurredAt: at,
	}
}

// NewTransactionCreated {transactionId, accountId, amount, balanceAfter}
func NewTransactionCreated(c *CommittedTransaction, at time.Time) Event {
	e := newEvent(EventTransactionCreated, at)
	amount, balance := c.Transaction.Amount, c.BalanceAfter
	e.AccountID = c.Transaction.AccountID
	e.TransactionID = c.Transaction.ID
	e.Amount = &amount
	e.BalanceAfter = &balance
	return e
}

// NewPrepQueueUpdated 備餐佇列變動
func NewPrepQueueUpdated(transactionID int64, status PrepStatus, itemIDs []int64, at time.Time) Event {
	e := newEvent(EventPrepQueueUpdated, at)
	e.TransactionID = transactionID
	e.PrepStatus = status
	e.PrepItemIDs = itemIDs
	return e
}

// NewAccountCreated 新帳戶建立
func NewAccountCreated(account *Account, at time.Time) Event {
	e := newEvent(EventAccountCreated, at)
	e.AccountID = account.ID
	e.AccountNumber = account.Number
	return e
}
