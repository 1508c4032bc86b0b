package mysql

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/snackbar-ledger/internal/app/core/domain"
)

// sqlAccount 對應資料庫的 accounts 表 (沒有餘額欄位)
type sqlAccount struct {
	ID            int64     `gorm:"primaryKey;autoIncrement"`
	Number        string    `gorm:"column:account_number;size:32;uniqueIndex;not null"`
	Name          string    `gorm:"column:account_name;size:100;not null"`
	Type          string    `gorm:"column:account_type;size:16;not null"`
	Active        bool      `gorm:"not null"`
	FamilyMembers []string  `gorm:"type:text;serializer:json"`
	Notes         string    `gorm:"size:500"`
	CreatedAt     time.Time `gorm:"precision:6"`
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

func (a *sqlAccount) toDomain() *domain.Account {
	return &domain.Account{
		ID:            a.ID,
		Number:        a.Number,
		Name:          a.Name,
		Type:          domain.AccountType(a.Type),
		Active:        a.Active,
		FamilyMembers: a.FamilyMembers,
		Notes:         a.Notes,
		CreatedAt:     a.CreatedAt,
	}
}

// sqlProduct 對應資料庫的 products 表
type sqlProduct struct {
	ID                int64           `gorm:"primaryKey;autoIncrement"`
	Name              string          `gorm:"size:100;not null"`
	Category          string          `gorm:"size:50"`
	Price             decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	RequiresPrep      bool            `gorm:"not null"`
	TrackInventory    bool            `gorm:"not null"`
	InventoryQuantity int             `gorm:"not null"`
	Active            bool            `gorm:"not null"`
}

func (*sqlProduct) TableName() string {
	return "products"
}

func newSQLProduct(p *domain.Product) sqlProduct {
	return sqlProduct{
		ID:                p.ID,
		Name:              p.Name,
		Category:          p.Category,
		Price:             p.Price,
		RequiresPrep:      p.RequiresPrep,
		TrackInventory:    p.TrackInventory,
		InventoryQuantity: p.InventoryQuantity,
		Active:            p.Active,
	}
}

func (p *sqlProduct) toDomain() domain.Product {
	return domain.Product{
		ID:                p.ID,
		Name:              p.Name,
		Category:          p.Category,
		Price:             p.Price,
		RequiresPrep:      p.RequiresPrep,
		TrackInventory:    p.TrackInventory,
		InventoryQuantity: p.InventoryQuantity,
		Active:            p.Active,
	}
}

// sqlTransaction 對應資料庫的 transactions 表
type sqlTransaction struct {
	ID                    int64           `gorm:"primaryKey;autoIncrement"`
	AccountID             int64           `gorm:"index;not null"`
	Type                  string          `gorm:"column:transaction_type;size:16;not null"`
	Amount                decimal.Decimal `gorm:"column:total_amount;type:decimal(10,2);not null"`
	CreatedAt             time.Time       `gorm:"precision:6;index"`
	CreatedBy             string          `gorm:"column:operator_name;size:100"`
	Notes                 string          `gorm:"type:text"`
	HasBeenAdjusted       bool            `gorm:"not null"`
	OriginalTransactionID *int64          `gorm:"index"`
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

func newSQLTransaction(t *domain.Transaction) sqlTransaction {
	return sqlTransaction{
		ID:                    t.ID,
		AccountID:             t.AccountID,
		Type:                  string(t.Type),
		Amount:                t.Amount,
		CreatedAt:             t.CreatedAt,
		CreatedBy:             t.CreatedBy,
		Notes:                 t.Notes,
		HasBeenAdjusted:       t.HasBeenAdjusted,
		OriginalTransactionID: t.OriginalTransactionID,
	}
}

func (t *sqlTransaction) toDomain() domain.Transaction {
	return domain.Transaction{
		ID:                    t.ID,
		AccountID:             t.AccountID,
		Type:                  domain.TransactionType(t.Type),
		Amount:                t.Amount,
		CreatedAt:             t.CreatedAt,
		CreatedBy:             t.CreatedBy,
		Notes:                 t.Notes,
		HasBeenAdjusted:       t.HasBeenAdjusted,
		OriginalTransactionID: t.OriginalTransactionID,
	}
}

// sqlTransactionItem 對應資料庫的 transaction_items 表
type sqlTransactionItem struct {
	ID            int64           `gorm:"primaryKey;autoIncrement"`
	TransactionID int64           `gorm:"index;not null"`
	ProductID     int64           `gorm:"not null"`
	ProductName   string          `gorm:"size:100;not null"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Quantity      int             `gorm:"not null"`
	LineTotal     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
}

func (*sqlTransactionItem) TableName() string {
	return "transaction_items"
}

func newSQLTransactionItem(i *domain.TransactionItem) sqlTransactionItem {
	return sqlTransactionItem{
		ID:            i.ID,
		TransactionID: i.TransactionID,
		ProductID:     i.ProductID,
		ProductName:   i.ProductName,
		UnitPrice:     i.UnitPrice,
		Quantity:      i.Quantity,
		LineTotal:     i.LineTotal,
	}
}

func (i *sqlTransactionItem) toDomain() domain.TransactionItem {
	return domain.TransactionItem{
		ID:            i.ID,
		TransactionID: i.TransactionID,
		ProductID:     i.ProductID,
		ProductName:   i.ProductName,
		UnitPrice:     i.UnitPrice,
		Quantity:      i.Quantity,
		LineTotal:     i.LineTotal,
	}
}

// sqlPrepItem 對應資料庫的 prep_queue 表
type sqlPrepItem struct {
	ID                int64      `gorm:"primaryKey;autoIncrement"`
	TransactionID     int64      `gorm:"index;not null"`
	TransactionItemID int64      `gorm:"not null"`
	ProductName       string     `gorm:"size:100;not null"`
	Quantity          int        `gorm:"not null"`
	AccountName       string     `gorm:"size:100;not null"`
	Status            string     `gorm:"size:16;not null;index:idx_prep_queue_status,priority:1"`
	Priority          int        `gorm:"not null;index:idx_prep_queue_status,priority:2"`
	OrderedAt         time.Time  `gorm:"precision:6;not null;index:idx_prep_queue_status,priority:3"`
	CompletedAt       *time.Time `gorm:"precision:6"`
	CompletedBy       string     `gorm:"size:100"`
}

func (*sqlPrepItem) TableName() string {
	return "prep_queue"
}

func newSQLPrepItem(p *domain.PrepQueueItem) sqlPrepItem {
	return sqlPrepItem{
		ID:                p.ID,
		TransactionID:     p.TransactionID,
		TransactionItemID: p.TransactionItemID,
		ProductName:       p.ProductName,
		Quantity:          p.Quantity,
		AccountName:       p.AccountName,
		Status:            string(p.Status),
		Priority:          int(p.Priority),
		OrderedAt:         p.OrderedAt,
		CompletedAt:       p.CompletedAt,
		CompletedBy:       p.CompletedBy,
	}
}

func (p *sqlPrepItem) toDomain() domain.PrepQueueItem {
	return domain.PrepQueueItem{
		ID:                p.ID,
		TransactionID:     p.TransactionID,
		TransactionItemID: p.TransactionItemID,
		ProductName:       p.ProductName,
		Quantity:          p.Quantity,
		AccountName:       p.AccountName,
		Status:            domain.PrepStatus(p.Status),
		Priority:          domain.PrepPriority(p.Priority),
		OrderedAt:         p.OrderedAt,
		CompletedAt:       p.CompletedAt,
		CompletedBy:       p.CompletedBy,
	}
}

// models 需要 AutoMigrate 的所有表
func models() []any {
	return []any{
		&sqlAccount{},
		&sqlProduct{},
		&sqlTransaction{},
		&sqlTransactionItem{},
		&sqlPrepItem{},
	}
}
