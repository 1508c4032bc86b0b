package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/snackbar-ledger/internal/app/core/domain"
	"github.com/JoeShih716/snackbar-ledger/internal/app/core/usecase"
)

// gormTx 是 Atomic 單元內的操作，全部使用同一個 *gorm.DB 交易
type gormTx struct {
	db *gorm.DB
}

// forUpdate 悲觀鎖 (SELECT ... FOR UPDATE)
func (t *gormTx) forUpdate() *gorm.DB {
	return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (t *gormTx) LockAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	var row sqlAccount
	err := t.forUpdate().Where("id = ?", accountID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// LoadProducts 依 ID 由小到大鎖定，避免兩個購買互相等待對方的商品列
func (t *gormTx) LoadProducts(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	products := make(map[int64]domain.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}
	var rows []sqlProduct
	if err := t.forUpdate().Where("id IN ?", ids).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		products[rows[i].ID] = rows[i].toDomain()
	}
	return products, nil
}

func (t *gormTx) LockTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	var row sqlTransaction
	err := t.forUpdate().Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", domain.ErrTransactionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	tran := row.toDomain()
	return &tran, nil
}

func (t *gormTx) InsertTransaction(ctx context.Context, tran *domain.Transaction) error {
	row := newSQLTransaction(tran)
	row.ID = 0
	if err := t.db.Create(&row).Error; err != nil {
		return err
	}
	tran.ID = row.ID
	return nil
}

func (t *gormTx) InsertItems(ctx context.Context, items []domain.TransactionItem) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]sqlTransactionItem, 0, len(items))
	for i := range items {
		row := newSQLTransactionItem(&items[i])
		row.ID = 0
		rows = append(rows, row)
	}
	if err := t.db.Create(&rows).Error; err != nil {
		return err
	}
	for i := range rows {
		items[i].ID = rows[i].ID
	}
	return nil
}

func (t *gormTx) InsertPrepItems(ctx context.Context, items []domain.PrepQueueItem) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]sqlPrepItem, 0, len(items))
	for i := range items {
		row := newSQLPrepItem(&items[i])
		row.ID = 0
		rows = append(rows, row)
	}
	if err := t.db.Create(&rows).Error; err != nil {
		return err
	}
	for i := range rows {
		items[i].ID = rows[i].ID
	}
	return nil
}

// DecrementInventory UPDATE products SET inventory_quantity = inventory_quantity - ? (不檢查下限)
func (t *gormTx) DecrementInventory(ctx context.Context, productID int64, quantity int) error {
	return t.db.Model(&sqlProduct{}).
		Where("id = ? AND track_inventory = ?", productID, true).
		UpdateColumn("inventory_quantity", gorm.Expr("inventory_quantity - ?", quantity)).Error
}

// MarkAdjusted 以條件式 UPDATE 保證 has_been_adjusted 只會由 false 變成 true 一次
func (t *gormTx) MarkAdjusted(ctx context.Context, originalID int64, note string) error {
	var row sqlTransaction
	err := t.db.Select("id", "notes", "has_been_adjusted").Where("id = ?", originalID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: id %d", domain.ErrTransactionNotFound, originalID)
	}
	if err != nil {
		return err
	}
	if row.HasBeenAdjusted {
		return domain.ErrAlreadyAdjusted
	}

	result := t.db.Model(&sqlTransaction{}).
		Where("id = ? AND has_been_adjusted = ?", originalID, false).
		Updates(map[string]any{
			"has_been_adjusted": true,
			"notes":             domain.AppendNote(row.Notes, note),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrAlreadyAdjusted
	}
	return nil
}

func (t *gormTx) Balance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	return sumBalance(t.db, accountID)
}

var _ usecase.LedgerTx = (*gormTx)(nil)
