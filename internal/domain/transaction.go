package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side indicates whether a transaction bought or sold shares.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Transaction is an executed trade in a user's ledger. It is never
// modified or deleted once recorded.
type Transaction struct {
	TransactionID string
	UserID        string
	Symbol        string
	Name          string
	Side          Side
	Quantity      int64
	Price         decimal.Decimal
	Total         decimal.Decimal // Price × Quantity
	BalanceAfter  decimal.Decimal
	ExecutedAt    time.Time
}

// LedgerFilter narrows a ledger listing. Zero values match everything.
type LedgerFilter struct {
	Side   Side
	Symbol string
}

// Matches reports whether tx passes the filter.
func (f LedgerFilter) Matches(tx *Transaction) bool {
	if f.Side != "" && tx.Side != f.Side {
		return false
	}
	if f.Symbol != "" && tx.Symbol != f.Symbol {
		return false
	}
	return true
}

// LedgerTotals aggregates a user's ledger.
type LedgerTotals struct {
	Count       int
	TotalBought decimal.Decimal
	TotalSold   decimal.Decimal
}

// NetInvestment is TotalBought − TotalSold.
func (t LedgerTotals) NetInvestment() decimal.Decimal {
	return t.TotalBought.Sub(t.TotalSold)
}

// Add folds tx into the totals.
func (t *LedgerTotals) Add(tx *Transaction) {
	t.Count++
	switch tx.Side {
	case SideBuy:
		t.TotalBought = t.TotalBought.Add(tx.Total)
	case SideSell:
		t.TotalSold = t.TotalSold.Add(tx.Total)
	}
}
