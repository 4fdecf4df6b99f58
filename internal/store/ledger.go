package store

import (
	"context"
	"sync"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/google/btree"
)

// ledgerEntry orders transactions by execution time, then id.
type ledgerEntry struct {
	tx *domain.Transaction
}

func ledgerLess(a, b ledgerEntry) bool {
	if !a.tx.ExecutedAt.Equal(b.tx.ExecutedAt) {
		return a.tx.ExecutedAt.Before(b.tx.ExecutedAt)
	}
	return a.tx.TransactionID < b.tx.TransactionID
}

// LedgerStore is a thread-safe in-memory transaction ledger with one
// B-tree per user. Transactions are written only through UserStore.CommitTrade.
type LedgerStore struct {
	mu     sync.RWMutex
	byUser map[string]*btree.BTreeG[ledgerEntry]
}

// NewLedgerStore creates an empty LedgerStore.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		byUser: make(map[string]*btree.BTreeG[ledgerEntry]),
	}
}

// insert appends tx. The caller must hold s.mu.
func (s *LedgerStore) insert(tx *domain.Transaction) {
	const degree = 32
	tree, ok := s.byUser[tx.UserID]
	if !ok {
		tree = btree.NewG[ledgerEntry](degree, ledgerLess)
		s.byUser[tx.UserID] = tree
	}
	c := *tx
	tree.ReplaceOrInsert(ledgerEntry{tx: &c})
}

// ListByUser returns the user's transactions newest first. Pagination is
// 1-based; the returned count is the number matching filter before paging.
func (s *LedgerStore) ListByUser(_ context.Context, userID string, filter domain.LedgerFilter, page, limit int) ([]*domain.Transaction, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tree, ok := s.byUser[userID]
	if !ok {
		return []*domain.Transaction{}, 0, nil
	}

	filtered := make([]*domain.Transaction, 0)
	tree.Descend(func(e ledgerEntry) bool {
		if filter.Matches(e.tx) {
			c := *e.tx
			filtered = append(filtered, &c)
		}
		return true
	})
	return paginate(filtered, page, limit), len(filtered), nil
}

// Totals aggregates every transaction of the user.
func (s *LedgerStore) Totals(_ context.Context, userID string) (domain.LedgerTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var totals domain.LedgerTotals
	tree, ok := s.byUser[userID]
	if !ok {
		return totals, nil
	}
	tree.Ascend(func(e ledgerEntry) bool {
		totals.Add(e.tx)
		return true
	})
	return totals, nil
}
