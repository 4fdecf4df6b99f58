// Package catalog loads the seed instruments the market is initialized with.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed instruments.yaml
var defaultCatalog []byte

// Seed is a validated catalog entry.
type Seed struct {
	Symbol      string
	Name        string
	Sector      domain.Sector
	Price       decimal.Decimal
	MarketCap   string
	Description string
}

type entry struct {
	Symbol      string `yaml:"symbol"`
	Name        string `yaml:"name"`
	Price       string `yaml:"price"`
	Sector      string `yaml:"sector"`
	MarketCap   string `yaml:"market_cap"`
	Description string `yaml:"description"`
}

type file struct {
	Instruments []entry `yaml:"instruments"`
}

// Default returns the embedded seed catalog.
func Default() ([]Seed, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file, or the embedded catalog when path is empty.
func Load(path string) ([]Seed, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	seeds, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return seeds, nil
}

// Parse decodes and validates a YAML catalog. Every symbol must be valid
// and unique, every sector known, and every price positive.
func Parse(data []byte) ([]Seed, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	if len(f.Instruments) == 0 {
		return nil, fmt.Errorf("catalog has no instruments")
	}

	seen := make(map[string]bool, len(f.Instruments))
	seeds := make([]Seed, 0, len(f.Instruments))
	for i, e := range f.Instruments {
		symbol := domain.NormalizeSymbol(e.Symbol)
		if !domain.ValidSymbol(symbol) {
			return nil, fmt.Errorf("entry %d: invalid symbol %q", i, e.Symbol)
		}
		if seen[symbol] {
			return nil, fmt.Errorf("entry %d: duplicate symbol %s", i, symbol)
		}
		seen[symbol] = true

		if e.Name == "" {
			return nil, fmt.Errorf("%s: name is required", symbol)
		}
		sector, err := domain.ParseSector(e.Sector)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", symbol, err)
		}
		price, err := decimal.NewFromString(e.Price)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid price %q", symbol, e.Price)
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("%s: price must be positive", symbol)
		}

		seeds = append(seeds, Seed{
			Symbol:      symbol,
			Name:        e.Name,
			Sector:      sector,
			Price:       domain.RoundMoney(price),
			MarketCap:   e.MarketCap,
			Description: e.Description,
		})
	}
	return seeds, nil
}

// Instrument lists the seed at its catalog price.
func (s Seed) Instrument(at time.Time) *domain.Instrument {
	inst := domain.NewInstrument(s.Symbol, s.Name, s.Sector, s.Price, at)
	inst.MarketCap = s.MarketCap
	inst.Description = s.Description
	return inst
}

// HistorySpread is the maximum relative distance of a generated history
// point from the listing price, in either direction.
const HistorySpread = 0.025

// InstrumentWithHistory lists the seed with points synthetic history
// entries one minute apart, ending one minute before at. Each point lies
// within HistorySpread of the catalog price; rnd returns values in [0, 1).
func (s Seed) InstrumentWithHistory(at time.Time, points int, rnd func() float64) *domain.Instrument {
	inst := s.Instrument(at)
	if points <= 0 {
		return inst
	}
	history := make([]domain.PricePoint, 0, points)
	for i := 0; i < points; i++ {
		factor := decimal.NewFromFloat(1 + (rnd()*2-1)*HistorySpread)
		history = append(history, domain.PricePoint{
			Price:     domain.RoundMoney(s.Price.Mul(factor)),
			Timestamp: at.Add(-time.Duration(points-i) * time.Minute),
		})
	}
	inst.History = history
	return inst
}
