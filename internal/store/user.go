package store

import (
	"context"
	"sort"
	"sync"

	"github.com/efreitasn/papertrade/internal/domain"
)

// UserStore is a thread-safe in-memory store for users, keyed by user_id
// with a secondary index by username. Trades are committed together with
// their ledger entry.
type UserStore struct {
	mu         sync.RWMutex
	users      map[string]*domain.User
	byUsername map[string]string // username → user_id
	ledger     *LedgerStore
}

// NewUserStore creates an empty UserStore that records trades in ledger.
func NewUserStore(ledger *LedgerStore) *UserStore {
	return &UserStore{
		users:      make(map[string]*domain.User),
		byUsername: make(map[string]string),
		ledger:     ledger,
	}
}

// Create adds a user. It returns domain.ErrUserAlreadyExists if the id or
// the username is taken.
func (s *UserStore) Create(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.UserID]; exists {
		return domain.ErrUserAlreadyExists
	}
	if _, exists := s.byUsername[u.Username]; exists {
		return domain.ErrUserAlreadyExists
	}
	s.users[u.UserID] = u.Clone()
	s.byUsername[u.Username] = u.UserID
	return nil
}

// Get retrieves a user by ID. It returns domain.ErrUserNotFound if the
// user does not exist.
func (s *UserStore) Get(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u.Clone(), nil
}

// GetByUsername retrieves a user by username.
func (s *UserStore) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return s.users[id].Clone(), nil
}

// List returns every user ordered by creation time.
func (s *UserStore) List(_ context.Context) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

// CommitTrade writes balance and holdings and appends tx while holding both
// the user and ledger locks, so readers never observe one without the other.
// The stored watchlist is left untouched.
func (s *UserStore) CommitTrade(_ context.Context, u *domain.User, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[u.UserID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if stored.Version != u.Version {
		return domain.ErrVersionConflict
	}

	next := u.Clone()
	next.Watchlist = stored.Watchlist
	next.Version = stored.Version + 1

	s.ledger.mu.Lock()
	s.ledger.insert(tx)
	s.ledger.mu.Unlock()

	s.users[u.UserID] = next
	u.Version = next.Version
	return nil
}

// UpdateWatchlist replaces the watchlist with the result of fn.
func (s *UserStore) UpdateWatchlist(_ context.Context, id string, fn func([]string) ([]string, error)) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	list, err := fn(append([]string(nil), stored.Watchlist...))
	if err != nil {
		return nil, err
	}
	next := stored.Clone()
	next.Watchlist = list
	s.users[id] = next
	return next.Clone(), nil
}
