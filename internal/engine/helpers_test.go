package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/store"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testTime = time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC)

// published is one recorded Publish call.
type published struct {
	event string
	data  any
}

// recordingPublisher records every Publish call.
type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{event: event, data: data})
	return p.err
}

func (p *recordingPublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]published, len(p.events))
	copy(out, p.events)
	return out
}

// fixedRandom returns the same draws every time.
type fixedRandom struct {
	f float64
	n int64
}

func (r fixedRandom) Float64() float64   { return r.f }
func (r fixedRandom) Int64N(int64) int64 { return r.n }

func addInstrument(t *testing.T, s store.Instruments, symbol string, sector domain.Sector, price string) {
	t.Helper()
	inst := domain.NewInstrument(symbol, symbol+" Inc.", sector, dec(price), testTime)
	if err := s.Create(context.Background(), inst); err != nil {
		t.Fatalf("create %s: %v", symbol, err)
	}
}

func addUser(t *testing.T, s store.Users, id string, balance string) {
	t.Helper()
	u := domain.NewUser(id, "user-"+id, dec(balance), testTime)
	if err := s.Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
}

// failingInstruments fails Apply for one symbol.
type failingInstruments struct {
	store.Instruments
	failSymbol string
}

func (f *failingInstruments) Apply(ctx context.Context, symbol string, fn func(*domain.Instrument) error) (*domain.Instrument, error) {
	if symbol == f.failSymbol {
		return nil, domain.ErrPersistence
	}
	return f.Instruments.Apply(ctx, symbol, fn)
}
