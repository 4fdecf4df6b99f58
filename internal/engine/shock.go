package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/store"
)

// Shock is a one-time percentage move applied to every instrument in a
// set of sectors.
type Shock struct {
	Type          domain.EventType
	Title         string
	Sectors       []domain.Sector
	ImpactPercent decimal.Decimal
}

// ShockConfig holds how shocks reprice instruments.
type ShockConfig struct {
	Mode         domain.ShockMode
	PriceFloor   decimal.Decimal // shocked prices never drop below this
	HistoryLimit int
}

// DefaultShockConfig returns rebase mode with the simulator's floor and
// history limit.
func DefaultShockConfig() ShockConfig {
	sim := DefaultSimulatorConfig()
	return ShockConfig{
		Mode:         domain.ShockRebase,
		PriceFloor:   sim.PriceFloor,
		HistoryLimit: sim.HistoryLimit,
	}
}

// ShockApplier applies market-event shocks and broadcasts them.
type ShockApplier struct {
	instruments store.Instruments
	publisher   Publisher
	cfg         ShockConfig
	logger      *slog.Logger
	now         func() time.Time
}

// NewShockApplier creates a ShockApplier. An empty mode means ShockRebase.
func NewShockApplier(instruments store.Instruments, publisher Publisher, cfg ShockConfig, logger *slog.Logger) *ShockApplier {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if cfg.Mode == "" {
		cfg.Mode = domain.ShockRebase
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ShockApplier{
		instruments: instruments,
		publisher:   publisher,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Apply shocks every instrument whose sector is in shock.Sectors and
// returns how many were updated. A failure on one instrument is logged
// and does not stop the others. Subscribers first get a market-update
// with every quote, then a market-event carrying the affected quotes.
func (a *ShockApplier) Apply(ctx context.Context, shock Shock) (int, error) {
	insts, err := a.instruments.List(ctx)
	if err != nil {
		return 0, err
	}

	targets := domain.NewSectorSet(shock.Sectors...)
	at := a.now()
	affected := make([]*domain.Instrument, 0)
	for _, inst := range insts {
		if !targets.Contains(inst.Sector) {
			continue
		}
		updated, err := a.instruments.Apply(ctx, inst.Symbol, func(cur *domain.Instrument) error {
			cur.ApplyShock(a.shockedPrice(cur.Price, shock.ImpactPercent), a.cfg.Mode, at, a.cfg.HistoryLimit)
			return nil
		})
		if err != nil {
			a.logger.Warn("shock skipped instrument", "symbol", inst.Symbol, "error", err)
			continue
		}
		affected = append(affected, updated)
	}

	sectors := make([]string, 0, len(shock.Sectors))
	for _, s := range shock.Sectors {
		sectors = append(sectors, string(s))
	}
	payload := MarketEventUpdate{
		Type:          string(shock.Type),
		Title:         shock.Title,
		Sectors:       sectors,
		ImpactPercent: shock.ImpactPercent.InexactFloat64(),
		Affected:      len(affected),
		Stocks:        quoteUpdates(affected),
		AppliedAt:     at,
	}
	a.publishSnapshot(ctx, insts, affected)
	if err := a.publisher.Publish(ctx, EventMarketEvent, payload); err != nil {
		a.logger.Warn("market-event broadcast failed", "error", err)
	}
	a.logger.Info("shock applied", "type", shock.Type, "sectors", sectors,
		"impact_percent", shock.ImpactPercent.String(), "affected", len(affected))
	return len(affected), nil
}

// shockedPrice applies percent to price and clamps the result to the floor.
func (a *ShockApplier) shockedPrice(price, percent decimal.Decimal) decimal.Decimal {
	next := domain.ApplyPercent(price, percent)
	if next.LessThan(a.cfg.PriceFloor) {
		return a.cfg.PriceFloor
	}
	return next
}

// publishSnapshot broadcasts a market-update with the stored quotes. If the
// store cannot be listed, the affected instruments replace their entries in
// the pre-shock listing.
func (a *ShockApplier) publishSnapshot(ctx context.Context, before, affected []*domain.Instrument) {
	all, err := a.instruments.List(ctx)
	if err != nil {
		a.logger.Warn("re-listing instruments after shock failed", "error", err)
		updated := make(map[string]*domain.Instrument, len(affected))
		for _, inst := range affected {
			updated[inst.Symbol] = inst
		}
		all = make([]*domain.Instrument, 0, len(before))
		for _, inst := range before {
			if u, ok := updated[inst.Symbol]; ok {
				inst = u
			}
			all = append(all, inst)
		}
	}
	if err := a.publisher.Publish(ctx, EventMarketUpdate, quoteUpdates(all)); err != nil {
		a.logger.Warn("market-update broadcast failed", "error", err)
	}
}
