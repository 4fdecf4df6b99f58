package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/store"
)

var testTime = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type published struct {
	event string
	data  any
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *recordingPublisher) Publish(_ context.Context, event string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{event, data})
	return nil
}

func (p *recordingPublisher) events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.event
	}
	return out
}

// fixture wires every service over fresh in-memory stores.
type fixture struct {
	instruments *store.InstrumentStore
	users       *store.UserStore
	ledgerStore *store.LedgerStore
	eventStore  *store.EventStore
	pub         *recordingPublisher
	simulator   *engine.Simulator

	account     *AccountService
	market      *MarketService
	ledger      *LedgerService
	leaderboard *LeaderboardService
	events      *EventService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		instruments: store.NewInstrumentStore(),
		ledgerStore: store.NewLedgerStore(),
		eventStore:  store.NewEventStore(),
		pub:         &recordingPublisher{},
	}
	f.users = store.NewUserStore(f.ledgerStore)

	logger := discardLogger()
	trader := engine.NewTrader(f.instruments, f.users, logger)
	f.simulator = engine.NewSimulator(engine.DefaultSimulatorConfig(), f.instruments, f.pub, engine.SeededRandom(1), logger)
	shocks := engine.NewShockApplier(f.instruments, f.pub, engine.DefaultShockConfig(), logger)

	f.account = NewAccountService(f.users, f.instruments, trader, domain.DefaultInitialBalance, logger)
	// Registrations are one second apart so creation order is stable.
	registered := 0
	f.account.now = func() time.Time {
		at := testTime.Add(time.Duration(registered) * time.Second)
		registered++
		return at
	}
	f.market = NewMarketService(f.instruments, f.simulator, time.Second)
	f.ledger = NewLedgerService(f.ledgerStore, f.users)
	f.leaderboard = NewLeaderboardService(f.users, f.instruments, domain.DefaultInitialBalance)
	f.events = NewEventService(f.eventStore, shocks, logger)
	f.events.now = func() time.Time { return testTime }
	t.Cleanup(func() { f.simulator.Stop() })
	return f
}

func (f *fixture) addInstrument(t *testing.T, symbol, name string, sector domain.Sector, price string) {
	t.Helper()
	inst := domain.NewInstrument(symbol, name, sector, dec(price), testTime)
	if err := f.instruments.Create(context.Background(), inst); err != nil {
		t.Fatalf("create %s: %v", symbol, err)
	}
}

// setPrice ticks an instrument to price, so its change percent moves.
func (f *fixture) setPrice(t *testing.T, symbol, price string) {
	t.Helper()
	_, err := f.instruments.Apply(context.Background(), symbol, func(inst *domain.Instrument) error {
		inst.ApplyTick(dec(price), 0, testTime.Add(time.Minute), domain.DefaultHistoryLimit)
		return nil
	})
	if err != nil {
		t.Fatalf("set price %s: %v", symbol, err)
	}
}

func (f *fixture) register(t *testing.T, username string) *domain.User {
	t.Helper()
	u, err := f.account.Register(context.Background(), username)
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return u
}

func (f *fixture) buy(t *testing.T, userID, symbol string, qty int64) {
	t.Helper()
	if _, err := f.account.Buy(context.Background(), userID, symbol, qty); err != nil {
		t.Fatalf("buy %d %s: %v", qty, symbol, err)
	}
}

// seedMarket lists one stock per sector in a few sectors.
func (f *fixture) seedMarket(t *testing.T) {
	t.Helper()
	f.addInstrument(t, "AAPL", "Apple Inc.", domain.SectorTechnology, "178.50")
	f.addInstrument(t, "MSFT", "Microsoft Corporation", domain.SectorTechnology, "378.90")
	f.addInstrument(t, "JPM", "JPMorgan Chase & Co.", domain.SectorFinance, "195.40")
	f.addInstrument(t, "XOM", "Exxon Mobil Corporation", domain.SectorEnergy, "104.20")
	f.addInstrument(t, "F", "Ford Motor Company", domain.SectorAutomotive, "12.10")
}
