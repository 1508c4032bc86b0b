package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// AccountType 帳戶類型
type AccountType string

const (
	AccountTypeFamily     AccountType = "family"
	AccountTypeIndividual AccountType = "individual"
)

// Account 帳戶
//
// 沒有餘額欄位：餘額一律由帳本加總推導。
type Account struct {
	ID            int64
	Number        string
	Name          string
	Type          AccountType
	Active        bool
	FamilyMembers []string
	Notes         string
	CreatedAt     time.Time
}

// Validate 檢查帳戶資料
func (a *Account) Validate() error {
	if strings.TrimSpace(a.Number) == "" {
		return ErrInvalidAccount
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(a.Name)); n == 0 || n > 100 {
		return ErrInvalidAccount
	}
	if a.Type != AccountTypeFamily && a.Type != AccountTypeIndividual {
		return ErrInvalidAccount
	}
	if utf8.RuneCountInString(a.Notes) > MaxNotesLength {
		return ErrNotesTooLong
	}
	return nil
}

// Product 目錄商品 (由目錄協作者維護，核心只讀取並扣庫存)
type Product struct {
	ID                int64
	Name              string
	Category          string
	Price             decimal.Decimal
	RequiresPrep      bool
	TrackInventory    bool
	InventoryQuantity int
	Active            bool
}

// Validate 檢查商品資料
func (p *Product) Validate() error {
	if n := utf8.RuneCountInString(strings.TrimSpace(p.Name)); n == 0 || n > 100 {
		return ErrInvalidProduct
	}
	if p.Price.IsNegative() || p.Price.GreaterThan(MaxAmount) {
		return ErrInvalidProduct
	}
	if !hasCurrencyPrecision(p.Price) {
		return ErrAmountPrecision
	}
	return nil
}

// LedgerSummary 由帳本即時推導的彙總數字 (供報表協作者讀取)
type LedgerSummary struct {
	TotalAccounts int64
	// TotalPrepaid: 所有儲值金額總和
	TotalPrepaid decimal.Decimal
	// TotalSpent = TotalPrepaid - TotalRemaining
	TotalSpent     decimal.Decimal
	TotalRemaining decimal.Decimal
	// NegativeBalanceAccounts: 餘額為負的帳戶數
	NegativeBalanceAccounts int64
	TotalNegativeAmount     decimal.Decimal
	TransactionCount        int64
}

// NewLedgerSummary 由各帳戶餘額與儲值總額組出彙總
func NewLedgerSummary(balances map[int64]decimal.Decimal, totalAccounts int64, totalPrepaid decimal.Decimal, transactionCount int64) LedgerSummary {
	summary := LedgerSummary{
		TotalAccounts:       totalAccounts,
		TotalPrepaid:        totalPrepaid,
		TotalRemaining:      decimal.Zero,
		TotalNegativeAmount: decimal.Zero,
		TransactionCount:    transactionCount,
	}
	for _, balance := range balances {
		summary.TotalRemaining = summary.TotalRemaining.Add(balance)
		if balance.IsNegative() {
			summary.NegativeBalanceAccounts++
			summary.TotalNegativeAmount = summary.TotalNegativeAmount.Add(balance)
		}
	}
	summary.TotalSpent = summary.TotalPrepaid.Sub(summary.TotalRemaining)
	return summary
}
