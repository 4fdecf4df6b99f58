package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
)

// EventStore is a thread-safe in-memory store for market events.
type EventStore struct {
	mu     sync.RWMutex
	events map[string]*domain.MarketEvent
}

// NewEventStore creates an empty EventStore.
func NewEventStore() *EventStore {
	return &EventStore{
		events: make(map[string]*domain.MarketEvent),
	}
}

// Create adds an event.
func (s *EventStore) Create(_ context.Context, e *domain.MarketEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[e.EventID] = e.Clone()
	return nil
}

// Get retrieves an event by ID. It returns domain.ErrEventNotFound if the
// event does not exist.
func (s *EventStore) Get(_ context.Context, id string) (*domain.MarketEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	return e.Clone(), nil
}

// ListActive returns the events active at now, most recently started first.
func (s *EventStore) ListActive(_ context.Context, now time.Time) ([]*domain.MarketEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.MarketEvent, 0)
	for _, e := range s.events {
		if e.IsActive(now) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].EventID < out[j].EventID
	})
	return out, nil
}

// Deactivate marks an event inactive and sets its end time to at.
func (s *EventStore) Deactivate(_ context.Context, id string, at time.Time) (*domain.MarketEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	next := e.Clone()
	next.Active = false
	next.EndTime = at
	s.events[id] = next
	return next.Clone(), nil
}
