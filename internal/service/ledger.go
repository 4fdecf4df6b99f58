package service

import (
	"context"
	"fmt"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/store"
)

// HistoryQuery filters and pages a user's transaction history.
type HistoryQuery struct {
	Side   string
	Symbol string
	Page   int
	Limit  int
}

// HistoryPage is one page of transactions, newest first.
type HistoryPage struct {
	Transactions []*domain.Transaction
	Page
}

// LedgerService reads users' transaction ledgers.
type LedgerService struct {
	ledger store.Ledger
	users  store.Users
}

// NewLedgerService creates a LedgerService.
func NewLedgerService(ledger store.Ledger, users store.Users) *LedgerService {
	return &LedgerService{ledger: ledger, users: users}
}

// History returns one page of the user's transactions.
func (s *LedgerService) History(ctx context.Context, userID string, q HistoryQuery) (*HistoryPage, error) {
	page, limit, err := normalizePage(q.Page, q.Limit)
	if err != nil {
		return nil, err
	}
	filter := domain.LedgerFilter{
		Side:   domain.Side(q.Side),
		Symbol: domain.NormalizeSymbol(q.Symbol),
	}
	if filter.Side != "" && filter.Side != domain.SideBuy && filter.Side != domain.SideSell {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("type must be 'buy' or 'sell', got %q", q.Side),
		}
	}
	if _, err := s.users.Get(ctx, userID); err != nil {
		return nil, err
	}

	txs, total, err := s.ledger.ListByUser(ctx, userID, filter, page, limit)
	if err != nil {
		return nil, err
	}
	return &HistoryPage{Transactions: txs, Page: newPage(page, limit, total)}, nil
}

// Summary totals the user's buys and sells.
func (s *LedgerService) Summary(ctx context.Context, userID string) (domain.LedgerTotals, error) {
	if _, err := s.users.Get(ctx, userID); err != nil {
		return domain.LedgerTotals{}, err
	}
	return s.ledger.Totals(ctx, userID)
}
