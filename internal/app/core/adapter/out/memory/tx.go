package memory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/snackbar-ledger/internal/app/core/domain"
	"github.com/JoeShih716/snackbar-ledger/internal/app/core/usecase"
)

type recordKind string

const (
	recordCommit     recordKind = "commit"
	recordPrepUpdate recordKind = "prep_update"
	recordAccount    recordKind = "account"
	recordProduct    recordKind = "product"
)

// record 是寫進 WAL 的一筆紀錄，commit 代表一整個提交單元
type record struct {
	Kind        recordKind               `json:"kind"`
	Transaction *domain.Transaction      `json:"transaction,omitempty"`
	Items       []domain.TransactionItem `json:"items,omitempty"`
	PrepItems   []domain.PrepQueueItem   `json:"prep_items,omitempty"`
	Inventory   map[int64]int            `json:"inventory,omitempty"` // 商品 ID -> 扣除數量
	Adjusted    *adjustment              `json:"adjusted,omitempty"`
	PrepItem    *domain.PrepQueueItem    `json:"prep_item,omitempty"`
	Account     *domain.Account          `json:"account,omitempty"`
	Product     *domain.Product          `json:"product,omitempty"`
}

type adjustment struct {
	TransactionID int64  `json:"transaction_id"`
	Note          string `json:"note"`
}

func (r *record) empty() bool {
	return r.Transaction == nil && len(r.Items) == 0 && len(r.PrepItems) == 0 &&
		len(r.Inventory) == 0 && r.Adjusted == nil
}

// memoryTx 在持有寫鎖時直接修改資料，並記錄回滾步驟
type memoryTx struct {
	ledger *MutexLedger
	rec    record
	undo   []func()
}

func (t *memoryTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memoryTx) LockAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	account, ok := t.ledger.accounts[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (t *memoryTx) LoadProducts(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	products := make(map[int64]domain.Product, len(ids))
	for _, id := range ids {
		if product, ok := t.ledger.products[id]; ok {
			products[id] = *product
		}
	}
	return products, nil
}

func (t *memoryTx) LockTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	tran, ok := t.ledger.transactions[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrTransactionNotFound, id)
	}
	copied := *tran
	return &copied, nil
}

func (t *memoryTx) InsertTransaction(ctx context.Context, tran *domain.Transaction) error {
	m := t.ledger
	prevSeq := m.seq.Transaction
	tran.ID = prevSeq + 1

	stored := *tran
	m.insertTransaction(&stored)
	t.undo = append(t.undo, func() {
		delete(m.transactions, stored.ID)
		m.transactionOrder = m.transactionOrder[:len(m.transactionOrder)-1]
		ids := m.byAccount[stored.AccountID]
		m.byAccount[stored.AccountID] = ids[:len(ids)-1]
		m.seq.Transaction = prevSeq
	})
	t.rec.Transaction = &stored
	return nil
}

func (t *memoryTx) InsertItems(ctx context.Context, items []domain.TransactionItem) error {
	m := t.ledger
	prevSeq := m.seq.Item
	for i := range items {
		items[i].ID = prevSeq + int64(i) + 1
	}
	stored := append([]domain.TransactionItem(nil), items...)
	m.insertItems(stored)
	t.undo = append(t.undo, func() {
		for _, item := range stored {
			delete(m.items, item.TransactionID)
		}
		m.seq.Item = prevSeq
	})
	t.rec.Items = append(t.rec.Items, stored...)
	return nil
}

func (t *memoryTx) InsertPrepItems(ctx context.Context, items []domain.PrepQueueItem) error {
	m := t.ledger
	prevSeq := m.seq.Prep
	for i := range items {
		items[i].ID = prevSeq + int64(i) + 1
	}
	stored := append([]domain.PrepQueueItem(nil), items...)
	m.insertPrepItems(stored)
	t.undo = append(t.undo, func() {
		for _, item := range stored {
			delete(m.prepItems, item.ID)
		}
		m.seq.Prep = prevSeq
	})
	t.rec.PrepItems = append(t.rec.PrepItems, stored...)
	return nil
}

// DecrementInventory 不檢查下限，庫存可以變成負數
func (t *memoryTx) DecrementInventory(ctx context.Context, productID int64, quantity int) error {
	product, ok := t.ledger.products[productID]
	if !ok {
		return fmt.Errorf("%w: id %d", domain.ErrProductNotFound, productID)
	}
	if !product.TrackInventory {
		return nil
	}
	product.InventoryQuantity -= quantity
	t.undo = append(t.undo, func() { product.InventoryQuantity += quantity })

	if t.rec.Inventory == nil {
		t.rec.Inventory = make(map[int64]int)
	}
	t.rec.Inventory[productID] += quantity
	return nil
}

func (t *memoryTx) MarkAdjusted(ctx context.Context, originalID int64, note string) error {
	tran, ok := t.ledger.transactions[originalID]
	if !ok {
		return fmt.Errorf("%w: id %d", domain.ErrTransactionNotFound, originalID)
	}
	if tran.HasBeenAdjusted {
		return domain.ErrAlreadyAdjusted
	}
	prevNotes := tran.Notes
	tran.HasBeenAdjusted = true
	tran.Notes = domain.AppendNote(prevNotes, note)
	t.undo = append(t.undo, func() {
		tran.HasBeenAdjusted = false
		tran.Notes = prevNotes
	})
	t.rec.Adjusted = &adjustment{TransactionID: originalID, Note: note}
	return nil
}

func (t *memoryTx) Balance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	return t.ledger.balanceLocked(accountID), nil
}

func (m *MutexLedger) insertTransaction(tran *domain.Transaction) {
	m.transactions[tran.ID] = tran
	m.transactionOrder = append(m.transactionOrder, tran.ID)
	m.byAccount[tran.AccountID] = append(m.byAccount[tran.AccountID], tran.ID)
	m.seq.Transaction = max(m.seq.Transaction, tran.ID)
}

func (m *MutexLedger) insertItems(items []domain.TransactionItem) {
	for _, item := range items {
		m.items[item.TransactionID] = append(m.items[item.TransactionID], item)
		m.seq.Item = max(m.seq.Item, item.ID)
	}
}

func (m *MutexLedger) insertPrepItems(items []domain.PrepQueueItem) {
	for i := range items {
		item := items[i]
		m.prepItems[item.ID] = &item
		m.seq.Prep = max(m.seq.Prep, item.ID)
	}
}

// replay 把 WAL 紀錄套用回記憶體 (不寫入 WAL)
func (m *MutexLedger) replay(rec *record) error {
	switch rec.Kind {
	case recordCommit:
		if rec.Transaction == nil {
			return fmt.Errorf("wal: commit record without transaction")
		}
		m.insertTransaction(rec.Transaction)
		m.insertItems(rec.Items)
		m.insertPrepItems(rec.PrepItems)
		for productID, quantity := range rec.Inventory {
			if product, ok := m.products[productID]; ok {
				product.InventoryQuantity -= quantity
			}
		}
		if rec.Adjusted != nil {
			original, ok := m.transactions[rec.Adjusted.TransactionID]
			if !ok {
				return fmt.Errorf("wal: adjusted transaction %d not found", rec.Adjusted.TransactionID)
			}
			original.HasBeenAdjusted = true
			original.Notes = domain.AppendNote(original.Notes, rec.Adjusted.Note)
		}
	case recordPrepUpdate:
		if rec.PrepItem != nil {
			m.prepItems[rec.PrepItem.ID] = rec.PrepItem
		}
	case recordAccount:
		if rec.Account != nil {
			m.putAccount(rec.Account)
		}
	case recordProduct:
		if rec.Product != nil {
			m.putProduct(rec.Product)
		}
	default:
		return fmt.Errorf("wal: unknown record kind %q", rec.Kind)
	}
	return nil
}

var _ usecase.LedgerTx = (*memoryTx)(nil)
