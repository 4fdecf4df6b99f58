package engine

import (
	"context"
	"testing"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/store"
)

func newTestShockApplier(mode domain.ShockMode) (*ShockApplier, *store.InstrumentStore, *recordingPublisher) {
	insts := store.NewInstrumentStore()
	pub := &recordingPublisher{}
	cfg := DefaultShockConfig()
	cfg.Mode = mode
	a := NewShockApplier(insts, pub, cfg, discardLogger())
	a.now = func() time.Time { return testTime.Add(time.Hour) }
	return a, insts, pub
}

func TestShockApplier_TechCrash(t *testing.T) {
	a, insts, pub := newTestShockApplier(domain.ShockRebase)
	ctx := context.Background()
	addInstrument(t, insts, "AAPL", domain.SectorTechnology, "178.50")
	addInstrument(t, insts, "JPM", domain.SectorFinance, "198.40")

	n, err := a.Apply(ctx, Shock{
		Type:          domain.EventNegative,
		Sectors:       []domain.Sector{domain.SectorTechnology},
		ImpactPercent: dec("-20"),
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if n != 1 {
		t.Fatalf("affected = %d, want 1", n)
	}

	aapl, _ := insts.Get(ctx, "AAPL")
	if !aapl.Price.Equal(dec("142.80")) {
		t.Fatalf("Price = %s, want 142.80", aapl.Price)
	}
	if !aapl.PreviousPrice.Equal(dec("142.80")) {
		t.Fatalf("PreviousPrice = %s, want 142.80", aapl.PreviousPrice)
	}
	if !aapl.Change.IsZero() || !aapl.ChangePercent.IsZero() {
		t.Fatalf("change = %s (%s%%), want 0", aapl.Change, aapl.ChangePercent)
	}
	if last := aapl.History[len(aapl.History)-1]; !last.Price.Equal(dec("142.80")) {
		t.Fatalf("last history = %s", last.Price)
	}

	jpm, _ := insts.Get(ctx, "JPM")
	if !jpm.Price.Equal(dec("198.40")) {
		t.Fatalf("untargeted sector moved to %s", jpm.Price)
	}

	events := pub.all()
	if len(events) != 2 || events[0].event != EventMarketUpdate || events[1].event != EventMarketEvent {
		t.Fatalf("events = %+v", events)
	}
	snapshot := events[0].data.([]QuoteUpdate)
	if len(snapshot) != 2 {
		t.Fatalf("market-update has %d quotes, want every instrument", len(snapshot))
	}
	for _, q := range snapshot {
		if q.Symbol == "AAPL" && q.Price != 142.80 {
			t.Fatalf("market-update AAPL = %v, want shocked price", q.Price)
		}
	}
	payload := events[1].data.(MarketEventUpdate)
	if payload.Type != "negative" || payload.ImpactPercent != -20 || payload.Affected != 1 {
		t.Fatalf("payload = %+v", payload)
	}
	if len(payload.Sectors) != 1 || payload.Sectors[0] != "Technology" {
		t.Fatalf("sectors = %v", payload.Sectors)
	}
	if len(payload.Stocks) != 1 || payload.Stocks[0].Price != 142.80 {
		t.Fatalf("stocks = %+v", payload.Stocks)
	}
}

func TestShockApplier_TrackMode(t *testing.T) {
	a, insts, _ := newTestShockApplier(domain.ShockTrack)
	ctx := context.Background()
	addInstrument(t, insts, "AAPL", domain.SectorTechnology, "178.50")

	if _, err := a.Apply(ctx, Shock{
		Type:          domain.EventNegative,
		Sectors:       []domain.Sector{domain.SectorTechnology},
		ImpactPercent: dec("-20"),
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	aapl, _ := insts.Get(ctx, "AAPL")
	if !aapl.PreviousPrice.Equal(dec("178.50")) {
		t.Fatalf("PreviousPrice = %s, want 178.50", aapl.PreviousPrice)
	}
	if !aapl.Change.Equal(dec("-35.70")) || !aapl.ChangePercent.Equal(dec("-20")) {
		t.Fatalf("change = %s (%s%%)", aapl.Change, aapl.ChangePercent)
	}
}

func TestShockApplier_MultipleSectorsAndFailures(t *testing.T) {
	insts := store.NewInstrumentStore()
	pub := &recordingPublisher{}
	failing := &failingInstruments{Instruments: insts, failSymbol: "XOM"}
	a := NewShockApplier(failing, pub, ShockConfig{HistoryLimit: domain.DefaultHistoryLimit}, discardLogger())
	ctx := context.Background()
	addInstrument(t, insts, "XOM", domain.SectorEnergy, "104.25")
	addInstrument(t, insts, "CVX", domain.SectorEnergy, "152.60")
	addInstrument(t, insts, "T", domain.SectorTelecom, "17.85")
	addInstrument(t, insts, "KO", domain.SectorRetail, "62.15")

	n, err := a.Apply(ctx, Shock{
		Type:          domain.EventPositive,
		Sectors:       []domain.Sector{domain.SectorEnergy, domain.SectorTelecom},
		ImpactPercent: dec("10"),
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if n != 2 {
		t.Fatalf("affected = %d, want 2 (CVX, T)", n)
	}
	cvx, _ := insts.Get(ctx, "CVX")
	if !cvx.Price.Equal(dec("167.86")) {
		t.Fatalf("CVX = %s, want 167.86", cvx.Price)
	}
	xom, _ := insts.Get(ctx, "XOM")
	if !xom.Price.Equal(dec("104.25")) {
		t.Fatalf("failed XOM changed to %s", xom.Price)
	}
}

func TestShockApplier_NoMatchingSector(t *testing.T) {
	a, insts, pub := newTestShockApplier(domain.ShockRebase)
	addInstrument(t, insts, "AAPL", domain.SectorTechnology, "178.50")

	n, err := a.Apply(context.Background(), Shock{
		Type:          domain.EventNeutral,
		Sectors:       []domain.Sector{domain.SectorHealthcare},
		ImpactPercent: dec("5"),
	})
	if err != nil || n != 0 {
		t.Fatalf("Apply = %d, %v", n, err)
	}
	events := pub.all()
	if len(events) != 2 || events[0].event != EventMarketUpdate || events[1].event != EventMarketEvent {
		t.Fatalf("events = %+v, want market-update then market-event", events)
	}
}

func TestShockApplier_ClampsToPriceFloor(t *testing.T) {
	a, insts, _ := newTestShockApplier(domain.ShockTrack)
	ctx := context.Background()
	addInstrument(t, insts, "PENNY", domain.SectorRetail, "1.10")

	if _, err := a.Apply(ctx, Shock{
		Type:          domain.EventNegative,
		Sectors:       []domain.Sector{domain.SectorRetail},
		ImpactPercent: dec("-20"),
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	penny, _ := insts.Get(ctx, "PENNY")
	if !penny.Price.Equal(DefaultShockConfig().PriceFloor) {
		t.Fatalf("Price = %s, want floor %s", penny.Price, DefaultShockConfig().PriceFloor)
	}
	if !penny.Change.Equal(dec("-0.10")) {
		t.Fatalf("Change = %s, want -0.10", penny.Change)
	}
}

// listFailingInstruments fails every List call after the first.
type listFailingInstruments struct {
	store.Instruments
	lists int
}

func (l *listFailingInstruments) List(ctx context.Context) ([]*domain.Instrument, error) {
	l.lists++
	if l.lists > 1 {
		return nil, domain.ErrPersistence
	}
	return l.Instruments.List(ctx)
}

func TestShockApplier_SnapshotFallsBackWhenRelistFails(t *testing.T) {
	insts := store.NewInstrumentStore()
	pub := &recordingPublisher{}
	a := NewShockApplier(&listFailingInstruments{Instruments: insts}, pub, DefaultShockConfig(), discardLogger())
	addInstrument(t, insts, "AAPL", domain.SectorTechnology, "178.50")
	addInstrument(t, insts, "JPM", domain.SectorFinance, "198.40")

	if _, err := a.Apply(context.Background(), Shock{
		Type:          domain.EventNegative,
		Sectors:       []domain.Sector{domain.SectorTechnology},
		ImpactPercent: dec("-20"),
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	events := pub.all()
	if len(events) != 2 || events[0].event != EventMarketUpdate {
		t.Fatalf("events = %+v", events)
	}
	prices := map[string]float64{}
	for _, q := range events[0].data.([]QuoteUpdate) {
		prices[q.Symbol] = q.Price
	}
	if prices["AAPL"] != 142.80 || prices["JPM"] != 198.40 {
		t.Fatalf("snapshot prices = %v", prices)
	}
}
