package store

import (
	"context"
	"sort"
	"sync"

	"github.com/efreitasn/papertrade/internal/domain"
)

// InstrumentStore is a thread-safe in-memory store for instruments,
// keyed by symbol. Callers always receive copies.
type InstrumentStore struct {
	mu          sync.RWMutex
	instruments map[string]*domain.Instrument
}

// NewInstrumentStore creates an empty InstrumentStore.
func NewInstrumentStore() *InstrumentStore {
	return &InstrumentStore{
		instruments: make(map[string]*domain.Instrument),
	}
}

// Create adds an instrument. It returns domain.ErrInstrumentAlreadyExists
// if the symbol is taken.
func (s *InstrumentStore) Create(_ context.Context, inst *domain.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.instruments[inst.Symbol]; exists {
		return domain.ErrInstrumentAlreadyExists
	}
	s.instruments[inst.Symbol] = inst.Clone()
	return nil
}

// Put creates or overwrites an instrument.
func (s *InstrumentStore) Put(_ context.Context, inst *domain.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.instruments[inst.Symbol] = inst.Clone()
	return nil
}

// Get retrieves an instrument by symbol. It returns
// domain.ErrInstrumentNotFound if the symbol is unknown.
func (s *InstrumentStore) Get(_ context.Context, symbol string) (*domain.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.instruments[symbol]
	if !ok {
		return nil, domain.ErrInstrumentNotFound
	}
	return inst.Clone(), nil
}

// List returns every instrument ordered by symbol.
func (s *InstrumentStore) List(_ context.Context) ([]*domain.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Instrument, 0, len(s.instruments))
	for _, inst := range s.instruments {
		out = append(out, inst.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// Apply runs fn on a copy of the instrument under the write lock and
// replaces the stored record with it when fn succeeds.
func (s *InstrumentStore) Apply(_ context.Context, symbol string, fn func(*domain.Instrument) error) (*domain.Instrument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instruments[symbol]
	if !ok {
		return nil, domain.ErrInstrumentNotFound
	}
	next := inst.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	s.instruments[symbol] = next
	return next.Clone(), nil
}
