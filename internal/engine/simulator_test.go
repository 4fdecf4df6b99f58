package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/store"
)

func newTestSimulator(rng RandomSource) (*Simulator, *store.InstrumentStore, *recordingPublisher) {
	insts := store.NewInstrumentStore()
	pub := &recordingPublisher{}
	sim := NewSimulator(DefaultSimulatorConfig(), insts, pub, rng, discardLogger())
	sim.now = func() time.Time { return testTime.Add(time.Minute) }
	return sim, insts, pub
}

func TestSimulator_Initialize_CreateIfAbsent(t *testing.T) {
	sim, insts, _ := newTestSimulator(fixedRandom{f: 0.5})
	ctx := context.Background()
	addInstrument(t, insts, "AAPL", domain.SectorTechnology, "200.00")

	seeds := []*domain.Instrument{
		domain.NewInstrument("AAPL", "Apple Inc.", domain.SectorTechnology, dec("178.50"), testTime),
		domain.NewInstrument("MSFT", "Microsoft Corp.", domain.SectorTechnology, dec("378.90"), testTime),
	}
	created, err := sim.Initialize(ctx, seeds)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}
	aapl, _ := insts.Get(ctx, "AAPL")
	if !aapl.Price.Equal(dec("200")) {
		t.Fatalf("existing AAPL overwritten: price %s", aapl.Price)
	}

	// Second run creates nothing.
	created, _ = sim.Initialize(ctx, seeds)
	if created != 0 {
		t.Fatalf("second Initialize created %d", created)
	}
}

func TestSimulator_Tick_UpdatesAndBroadcasts(t *testing.T) {
	// Float64 0.75 → delta = +0.01 at 2% volatility.
	sim, insts, pub := newTestSimulator(fixedRandom{f: 0.75, n: 1234})
	ctx := context.Background()
	addInstrument(t, insts, "AAPL", domain.SectorTechnology, "178.50")
	addInstrument(t, insts, "KO", domain.SectorRetail, "62.15")

	res, err := sim.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Updated != 2 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}

	aapl, _ := insts.Get(ctx, "AAPL")
	// 178.50 × 1.01 = 180.285 → 180.29
	if !aapl.Price.Equal(dec("180.29")) {
		t.Fatalf("Price = %s, want 180.29", aapl.Price)
	}
	if !aapl.PreviousPrice.Equal(dec("178.50")) || !aapl.Change.Equal(dec("1.79")) {
		t.Fatalf("prev = %s change = %s", aapl.PreviousPrice, aapl.Change)
	}
	if aapl.Volume != 1234 {
		t.Fatalf("Volume = %d, want 1234", aapl.Volume)
	}
	last := aapl.History[len(aapl.History)-1]
	if !last.Price.Equal(aapl.Price) {
		t.Fatalf("last history price %s != price %s", last.Price, aapl.Price)
	}

	events := pub.all()
	if len(events) != 1 || events[0].event != EventMarketUpdate {
		t.Fatalf("events = %+v", events)
	}
	quotes, ok := events[0].data.([]QuoteUpdate)
	if !ok || len(quotes) != 2 {
		t.Fatalf("payload = %#v", events[0].data)
	}
	if quotes[0].Symbol != "AAPL" || quotes[0].Price != 180.29 || quotes[0].Sector != "Technology" {
		t.Fatalf("quote = %+v", quotes[0])
	}
}

func TestSimulator_Tick_PriceFloor(t *testing.T) {
	// Float64 0 → delta = -volatility.
	sim, insts, _ := newTestSimulator(fixedRandom{f: 0})
	sim.cfg.Volatility = 0.9
	ctx := context.Background()
	addInstrument(t, insts, "PENNY", domain.SectorEnergy, "1.50")

	for i := 0; i < 3; i++ {
		if _, err := sim.Tick(ctx); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	got, _ := insts.Get(ctx, "PENNY")
	if !got.Price.Equal(dec("1")) {
		t.Fatalf("Price = %s, want floor 1.00", got.Price)
	}
}

func TestSimulator_Tick_SkipsFailedInstrument(t *testing.T) {
	insts := store.NewInstrumentStore()
	pub := &recordingPublisher{}
	failing := &failingInstruments{Instruments: insts, failSymbol: "KO"}
	sim := NewSimulator(DefaultSimulatorConfig(), failing, pub, fixedRandom{f: 0.75}, discardLogger())
	ctx := context.Background()
	addInstrument(t, insts, "AAPL", domain.SectorTechnology, "178.50")
	addInstrument(t, insts, "KO", domain.SectorRetail, "62.15")

	res, err := sim.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Updated != 1 || res.Failed != 1 {
		t.Fatalf("result = %+v", res)
	}
	ko, _ := insts.Get(ctx, "KO")
	if !ko.Price.Equal(dec("62.15")) || len(ko.History) != 1 {
		t.Fatalf("failed instrument changed: %+v", ko)
	}

	quotes := pub.all()[0].data.([]QuoteUpdate)
	if len(quotes) != 2 || quotes[1].Symbol != "KO" || quotes[1].Price != 62.15 {
		t.Fatalf("broadcast = %+v", quotes)
	}
}

func TestSimulator_Tick_PublishErrorIsNotFatal(t *testing.T) {
	sim, insts, pub := newTestSimulator(fixedRandom{f: 0.5})
	pub.err = errors.New("no subscribers")
	addInstrument(t, insts, "AAPL", domain.SectorTechnology, "178.50")

	if _, err := sim.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
}

func TestSimulator_StartIsIdempotent(t *testing.T) {
	sim, insts, pub := newTestSimulator(fixedRandom{f: 0.5})
	addInstrument(t, insts, "AAPL", domain.SectorTechnology, "178.50")
	ctx := context.Background()

	if started, err := sim.Start(ctx, 10*time.Millisecond); err != nil || !started {
		t.Fatalf("first Start = %v, %v", started, err)
	}
	if started, err := sim.Start(ctx, 10*time.Millisecond); err != nil || started {
		t.Fatalf("second Start should be a no-op, got %v, %v", started, err)
	}
	if !sim.Running() {
		t.Fatal("expected Running() = true")
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(pub.all()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(pub.all()) < 2 {
		t.Fatalf("expected at least 2 ticks, got %d", len(pub.all()))
	}

	if !sim.Stop() {
		t.Fatal("Stop returned false while running")
	}
	if sim.Running() {
		t.Fatal("expected Running() = false after Stop")
	}
	after := len(pub.all())
	time.Sleep(30 * time.Millisecond)
	if len(pub.all()) != after {
		t.Fatal("ticks continued after Stop")
	}
	if sim.Stop() {
		t.Fatal("second Stop should return false")
	}

	st := sim.Status()
	if st.Ticks < 2 || st.Interval != 10*time.Millisecond {
		t.Fatalf("status = %+v", st)
	}
}

func TestSimulator_ParentCancelStopsLoop(t *testing.T) {
	sim, _, _ := newTestSimulator(fixedRandom{f: 0.5})
	ctx, cancel := context.WithCancel(context.Background())

	if _, err := sim.Start(ctx, time.Hour); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for sim.Running() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if sim.Running() {
		t.Fatal("loop still running after parent cancel")
	}
	if started, err := sim.Start(context.Background(), time.Hour); err != nil || !started {
		t.Fatalf("restart after cancel = %v, %v", started, err)
	}
	sim.Stop()
}

func TestSimulator_StartRejectsNonPositiveInterval(t *testing.T) {
	sim, _, _ := newTestSimulator(fixedRandom{f: 0.5})
	for _, interval := range []time.Duration{0, -time.Second} {
		started, err := sim.Start(context.Background(), interval)
		if !errors.Is(err, ErrInvalidInterval) || started {
			t.Fatalf("Start(%v) = %v, %v, want ErrInvalidInterval", interval, started, err)
		}
	}
	if sim.Running() {
		t.Fatal("rejected Start left the loop running")
	}
}
