// Package store holds the persistence interfaces consumed by the engine and
// services, plus thread-safe in-memory implementations of them.
package store

import (
	"context"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
)

// Instruments persists tradable instruments keyed by symbol.
type Instruments interface {
	Create(ctx context.Context, inst *domain.Instrument) error
	// Put creates or overwrites an instrument.
	Put(ctx context.Context, inst *domain.Instrument) error
	Get(ctx context.Context, symbol string) (*domain.Instrument, error)
	List(ctx context.Context) ([]*domain.Instrument, error)
	// Apply runs fn on a copy of the stored instrument and saves the copy if
	// fn returns nil. Concurrent Apply calls on one symbol are serialized.
	Apply(ctx context.Context, symbol string, fn func(*domain.Instrument) error) (*domain.Instrument, error)
}

// Users persists trading accounts.
type Users interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	// CommitTrade saves u's balance and holdings and appends tx to the
	// ledger in one step. It fails with domain.ErrVersionConflict, writing
	// nothing, if the stored version differs from u.Version. On success
	// u.Version is incremented to match the stored record.
	CommitTrade(ctx context.Context, u *domain.User, tx *domain.Transaction) error
	UpdateWatchlist(ctx context.Context, id string, fn func([]string) ([]string, error)) (*domain.User, error)
}

// Ledger reads the append-only transaction history.
type Ledger interface {
	// ListByUser returns a page of the user's transactions, newest first,
	// and the number of transactions matching filter. Pages are 1-based.
	ListByUser(ctx context.Context, userID string, filter domain.LedgerFilter, page, limit int) ([]*domain.Transaction, int, error)
	Totals(ctx context.Context, userID string) (domain.LedgerTotals, error)
}

// Events persists market events.
type Events interface {
	Create(ctx context.Context, e *domain.MarketEvent) error
	Get(ctx context.Context, id string) (*domain.MarketEvent, error)
	// ListActive returns events active at now, newest first.
	ListActive(ctx context.Context, now time.Time) ([]*domain.MarketEvent, error)
	Deactivate(ctx context.Context, id string, at time.Time) (*domain.MarketEvent, error)
}

// paginate slices items for a 1-based page.
func paginate[T any](items []T, page, limit int) []T {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		return []T{}
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

var (
	_ Instruments = (*InstrumentStore)(nil)
	_ Users       = (*UserStore)(nil)
	_ Ledger      = (*LedgerStore)(nil)
	_ Events      = (*EventStore)(nil)
)
