package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// 金額以 decimal 表示，精度：小數點後 2 位
const CurrencyPlaces = 2

// 輸入限制
const (
	MaxNotesLength = 500
	MinQuantity    = 1
	MaxQuantity    = 100
)

var (
	// MaxAmount 單筆付款/調整金額上限 (絕對值)
	MaxAmount = decimal.NewFromInt(10000)
	// MinPayment 單筆付款下限
	MinPayment = decimal.New(1, -CurrencyPlaces)
)

// TransactionType 交易類型
type TransactionType string

const (
	// 購買：金額為負
	TransactionTypePurchase TransactionType = "purchase"
	// 儲值：金額為正
	TransactionTypePayment TransactionType = "payment"
	// 調整：任意正負，可指向一筆原始交易 (退款)
	TransactionTypeAdjustment TransactionType = "adjustment"
)

// Valid 回傳是否為支援的交易類型
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypePurchase, TransactionTypePayment, TransactionTypeAdjustment:
		return true
	}
	return false
}

// Transaction 帳本中的一筆交易
//
// 建立後不可變，唯一例外是 HasBeenAdjusted 與 Notes，
// 兩者只會由之後的調整交易在同一個提交單元中更新。
type Transaction struct {
	ID        int64
	AccountID int64
	Type      TransactionType
	// Amount: 帶正負號的金額
	Amount    decimal.Decimal
	CreatedAt time.Time
	// CreatedBy: 操作人員 (由呼叫端驗證後傳入)
	CreatedBy       string
	Notes           string
	HasBeenAdjusted bool
	// OriginalTransactionID: 退款調整指向的原始交易 (單向)
	OriginalTransactionID *int64
}

// TransactionItem 交易明細，保存銷售當下的商品名稱與單價快照
type TransactionItem struct {
	ID            int64
	TransactionID int64
	ProductID     int64
	ProductName   string
	UnitPrice     decimal.Decimal
	Quantity      int
	LineTotal     decimal.Decimal
}

// NewTransactionItem 以目錄中的商品資料建立明細快照
func NewTransactionItem(product Product, quantity int) TransactionItem {
	return TransactionItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		UnitPrice:   product.Price,
		Quantity:    quantity,
		LineTotal:   product.Price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// PurchaseAmount 購買金額 = -Σ(數量 × 單價)
func PurchaseAmount(items []TransactionItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal)
	}
	return total.Neg()
}

// AdjustmentNote 追加在原始交易備註上的稽核紀錄
func AdjustmentNote(adjustmentID int64, amount decimal.Decimal) string {
	return fmt.Sprintf("[adjusted by transaction #%d: %s]", adjustmentID, amount.StringFixed(CurrencyPlaces))
}

// AppendNote 在既有備註後追加一行
func AppendNote(notes, note string) string {
	if strings.TrimSpace(notes) == "" {
		return note
	}
	return notes + "\n" + note
}

// LineItem 購買請求中的一個品項，價格一律以目錄為準
type LineItem struct {
	ProductID int64
	Quantity  int
}

// TransactionRequest 建立交易的請求
type TransactionRequest struct {
	AccountID int64
	Type      TransactionType
	// Items: 購買品項 (purchase)
	Items []LineItem
	// Amount: 請求金額 (payment/adjustment)
	Amount decimal.Decimal
	Notes  string
	// OriginalTransactionID: 退款調整的原始交易
	OriginalTransactionID *int64
	// Actor: 已驗證的操作人員身分
	Actor string
}

// Validate 寫入前的輸入檢查
func (r *TransactionRequest) Validate() error {
	if r.AccountID <= 0 {
		return ErrAccountNotFound
	}
	if strings.TrimSpace(r.Actor) == "" {
		return ErrMissingActor
	}
	if utf8.RuneCountInString(r.Notes) > MaxNotesLength {
		return ErrNotesTooLong
	}

	switch r.Type {
	case TransactionTypePurchase:
		if len(r.Items) == 0 {
			return ErrEmptyPurchase
		}
		for _, item := range r.Items {
			if item.ProductID <= 0 {
				return ErrProductNotFound
			}
			if item.Quantity < MinQuantity || item.Quantity > MaxQuantity {
				return ErrInvalidQuantity
			}
		}
	case TransactionTypePayment:
		if !r.Amount.IsPositive() {
			return ErrAmountMustBePositive
		}
		if r.Amount.LessThan(MinPayment) || r.Amount.GreaterThan(MaxAmount) {
			return ErrAmountOutOfRange
		}
		if !hasCurrencyPrecision(r.Amount) {
			return ErrAmountPrecision
		}
	case TransactionTypeAdjustment:
		if r.Amount.Abs().GreaterThan(MaxAmount) {
			return ErrAmountOutOfRange
		}
		if !hasCurrencyPrecision(r.Amount) {
			return ErrAmountPrecision
		}
		if r.OriginalTransactionID != nil && *r.OriginalTransactionID <= 0 {
			return ErrTransactionNotFound
		}
	default:
		return ErrInvalidTransactionType
	}
	return nil
}

// ProductIDs 回傳品項中不重複的商品 ID
func ProductIDs(lines []LineItem) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, item := range lines {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

func hasCurrencyPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(CurrencyPlaces))
}

// CommittedTransaction 提交成功後回傳給呼叫端的結果
type CommittedTransaction struct {
	Transaction  Transaction
	Items        []TransactionItem
	PrepItems    []PrepQueueItem
	BalanceAfter decimal.Decimal
}

// TransactionFilter 交易查詢條件
type TransactionFilter struct {
	// AccountID 為 0 代表全部帳戶
	AccountID int64
	Limit     int
}

// DefaultTransactionLimit 查詢交易預設筆數
const DefaultTransactionLimit = 100
