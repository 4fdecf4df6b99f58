package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/store"
)

const (
	// SearchLimit caps the results of a stock search.
	SearchLimit = 10
	// MoversLimit is the length of the gainers and losers lists.
	MoversLimit = 5
	// MinTickInterval bounds how fast the simulation may be started.
	MinTickInterval = 100 * time.Millisecond
)

// StockSort orders a stock listing.
type StockSort string

const (
	SortSymbol    StockSort = "symbol"
	SortPriceAsc  StockSort = "price_asc"
	SortPriceDesc StockSort = "price_desc"
	SortGainers   StockSort = "gainers"
	SortLosers    StockSort = "losers"
)

// ParseStockSort validates a sort mode. The empty string selects
// SortSymbol.
func ParseStockSort(s string) (StockSort, error) {
	switch StockSort(s) {
	case "":
		return SortSymbol, nil
	case SortSymbol, SortPriceAsc, SortPriceDesc, SortGainers, SortLosers:
		return StockSort(s), nil
	}
	return "", &domain.ValidationError{
		Message: fmt.Sprintf("sort must be one of: symbol, price_asc, price_desc, gainers, losers, got %q", s),
	}
}

// StockQuery filters and pages a stock listing. Zero values select every
// sector, symbol order, and the first page of DefaultPageLimit entries.
type StockQuery struct {
	Sector string
	Sort   StockSort
	Page   int
	Limit  int
}

// StockPage is one page of a stock listing.
type StockPage struct {
	Stocks []*domain.Instrument
	Page
}

// Movers lists the biggest gainers and losers of the last tick.
type Movers struct {
	Gainers []*domain.Instrument
	Losers  []*domain.Instrument
}

// SectorStats aggregates the instruments of one sector.
type SectorStats struct {
	Sector    domain.Sector
	Count     int
	AvgChange decimal.Decimal
}

// MarketStats summarizes the whole market.
type MarketStats struct {
	TotalStocks  int
	MarketChange decimal.Decimal // average change percent
	Sectors      []SectorStats
}

// MarketService answers stock queries and controls the simulation loop.
type MarketService struct {
	instruments     store.Instruments
	simulator       *engine.Simulator
	defaultInterval time.Duration
}

// NewMarketService creates a MarketService. defaultInterval is used when
// the simulation is started without an explicit interval.
func NewMarketService(instruments store.Instruments, simulator *engine.Simulator, defaultInterval time.Duration) *MarketService {
	return &MarketService{
		instruments:     instruments,
		simulator:       simulator,
		defaultInterval: defaultInterval,
	}
}

// List returns one page of stocks.
func (s *MarketService) List(ctx context.Context, q StockQuery) (*StockPage, error) {
	page, limit, err := normalizePage(q.Page, q.Limit)
	if err != nil {
		return nil, err
	}
	order, err := ParseStockSort(string(q.Sort))
	if err != nil {
		return nil, err
	}
	var sector domain.Sector
	if q.Sector != "" {
		if sector, err = domain.ParseSector(q.Sector); err != nil {
			return nil, &domain.ValidationError{Message: err.Error()}
		}
	}

	insts, err := s.instruments.List(ctx)
	if err != nil {
		return nil, err
	}
	if sector != "" {
		filtered := insts[:0]
		for _, inst := range insts {
			if inst.Sector == sector {
				filtered = append(filtered, inst)
			}
		}
		insts = filtered
	}
	sortInstruments(insts, order)

	return &StockPage{
		Stocks: pageSlice(insts, page, limit),
		Page:   newPage(page, limit, len(insts)),
	}, nil
}

// Get returns one stock.
func (s *MarketService) Get(ctx context.Context, symbol string) (*domain.Instrument, error) {
	return s.instruments.Get(ctx, domain.NormalizeSymbol(symbol))
}

// Search matches query case-insensitively against symbols and names and
// returns at most SearchLimit stocks in symbol order.
func (s *MarketService) Search(ctx context.Context, query string) ([]*domain.Instrument, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, &domain.ValidationError{Message: "search query must not be empty"}
	}

	insts, err := s.instruments.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Instrument, 0, SearchLimit)
	for _, inst := range insts {
		if strings.Contains(strings.ToLower(inst.Symbol), needle) ||
			strings.Contains(strings.ToLower(inst.Name), needle) {
			out = append(out, inst)
			if len(out) == SearchLimit {
				break
			}
		}
	}
	return out, nil
}

// Sectors returns the sectors that have at least one listed stock.
func (s *MarketService) Sectors(ctx context.Context) ([]domain.Sector, error) {
	insts, err := s.instruments.List(ctx)
	if err != nil {
		return nil, err
	}
	present := make(domain.SectorSet)
	for _, inst := range insts {
		present[inst.Sector] = struct{}{}
	}
	out := make([]domain.Sector, 0, len(present))
	for _, sec := range domain.Sectors() {
		if present.Contains(sec) {
			out = append(out, sec)
		}
	}
	return out, nil
}

// Movers returns the top gainers and losers by change percent.
func (s *MarketService) Movers(ctx context.Context) (*Movers, error) {
	insts, err := s.instruments.List(ctx)
	if err != nil {
		return nil, err
	}
	n := min(MoversLimit, len(insts))

	sortInstruments(insts, SortGainers)
	gainers := append([]*domain.Instrument(nil), insts[:n]...)
	sortInstruments(insts, SortLosers)
	losers := append([]*domain.Instrument(nil), insts[:n]...)

	return &Movers{Gainers: gainers, Losers: losers}, nil
}

// Prices returns the current price of every stock keyed by symbol.
func (s *MarketService) Prices(ctx context.Context) (map[string]decimal.Decimal, error) {
	return priceMap(ctx, s.instruments)
}

// Stats averages the change percent across the market and per sector.
func (s *MarketService) Stats(ctx context.Context) (*MarketStats, error) {
	insts, err := s.instruments.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &MarketStats{TotalStocks: len(insts)}
	if len(insts) == 0 {
		stats.Sectors = []SectorStats{}
		return stats, nil
	}

	var total decimal.Decimal
	sums := make(map[domain.Sector]decimal.Decimal)
	counts := make(map[domain.Sector]int)
	for _, inst := range insts {
		total = total.Add(inst.ChangePercent)
		sums[inst.Sector] = sums[inst.Sector].Add(inst.ChangePercent)
		counts[inst.Sector]++
	}
	stats.MarketChange = domain.RoundMoney(total.Div(decimal.NewFromInt(int64(len(insts)))))

	stats.Sectors = make([]SectorStats, 0, len(counts))
	for _, sec := range domain.Sectors() {
		n, ok := counts[sec]
		if !ok {
			continue
		}
		stats.Sectors = append(stats.Sectors, SectorStats{
			Sector:    sec,
			Count:     n,
			AvgChange: domain.RoundMoney(sums[sec].Div(decimal.NewFromInt(int64(n)))),
		})
	}
	return stats, nil
}

// SimulationStatus reports whether the price loop is running.
func (s *MarketService) SimulationStatus() engine.SimulatorStatus {
	return s.simulator.Status()
}

// StartSimulation starts the price loop. A zero interval selects the
// default. The loop outlives ctx; it runs until StopSimulation. It returns
// false if the loop was already running.
func (s *MarketService) StartSimulation(ctx context.Context, interval time.Duration) (bool, error) {
	if interval == 0 {
		interval = s.defaultInterval
	}
	if interval < MinTickInterval {
		return false, &domain.ValidationError{
			Message: fmt.Sprintf("interval must be at least %v", MinTickInterval),
		}
	}
	return s.simulator.Start(context.WithoutCancel(ctx), interval)
}

// StopSimulation stops the price loop. It returns false if the loop was
// not running.
func (s *MarketService) StopSimulation() bool {
	return s.simulator.Stop()
}

// sortInstruments orders insts in place. Ties fall back to symbol order.
func sortInstruments(insts []*domain.Instrument, order StockSort) {
	var cmp func(a, b *domain.Instrument) int
	switch order {
	case SortPriceAsc:
		cmp = func(a, b *domain.Instrument) int { return a.Price.Cmp(b.Price) }
	case SortPriceDesc:
		cmp = func(a, b *domain.Instrument) int { return b.Price.Cmp(a.Price) }
	case SortGainers:
		cmp = func(a, b *domain.Instrument) int { return b.ChangePercent.Cmp(a.ChangePercent) }
	case SortLosers:
		cmp = func(a, b *domain.Instrument) int { return a.ChangePercent.Cmp(b.ChangePercent) }
	default:
		cmp = func(a, b *domain.Instrument) int { return 0 }
	}
	sort.SliceStable(insts, func(i, j int) bool {
		if c := cmp(insts[i], insts[j]); c != 0 {
			return c < 0
		}
		return insts[i].Symbol < insts[j].Symbol
	})
}
