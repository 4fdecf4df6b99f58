package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultHistoryLimit is the number of price points kept per instrument.
const DefaultHistoryLimit = 100

// PricePoint is a single entry in an instrument's price history.
type PricePoint struct {
	Price     decimal.Decimal
	Timestamp time.Time
}

// ShockMode selects how a market-event shock sets PreviousPrice.
type ShockMode string

const (
	// ShockRebase treats the shock as an instantaneous re-basing:
	// PreviousPrice is set to the shocked price, so Change reads 0.
	ShockRebase ShockMode = "rebase"
	// ShockTrack keeps the pre-shock price as PreviousPrice, like a tick.
	ShockTrack ShockMode = "track"
)

// ParseShockMode validates a shock mode name.
func ParseShockMode(s string) (ShockMode, error) {
	switch ShockMode(s) {
	case ShockRebase, ShockTrack:
		return ShockMode(s), nil
	}
	return "", fmt.Errorf("unknown shock mode %q, must be one of: rebase, track", s)
}

// Instrument is a tradable synthetic stock. Price, PreviousPrice, Change,
// ChangePercent, History, and Volume form one record and are always
// updated together.
type Instrument struct {
	Symbol        string
	Name          string
	Sector        Sector
	Price         decimal.Decimal
	PreviousPrice decimal.Decimal
	Change        decimal.Decimal
	ChangePercent decimal.Decimal
	Volume        int64
	MarketCap     string
	Description   string
	History       []PricePoint // oldest first
	UpdatedAt     time.Time
}

// NewInstrument creates an instrument at its listing price. PreviousPrice
// starts equal to Price and the history holds the listing point.
func NewInstrument(symbol, name string, sector Sector, price decimal.Decimal, at time.Time) *Instrument {
	p := RoundMoney(price)
	return &Instrument{
		Symbol:        NormalizeSymbol(symbol),
		Name:          name,
		Sector:        sector,
		Price:         p,
		PreviousPrice: p,
		History:       []PricePoint{{Price: p, Timestamp: at}},
		UpdatedAt:     at,
	}
}

// Clone returns a deep copy, so callers can mutate it without touching
// the stored record.
func (i *Instrument) Clone() *Instrument {
	c := *i
	c.History = make([]PricePoint, len(i.History))
	copy(c.History, i.History)
	return &c
}

// ApplyTick moves the instrument to newPrice as one simulated step.
// PreviousPrice becomes the price before the step, the new price is
// appended to the history, and volumeDelta is added to Volume.
func (i *Instrument) ApplyTick(newPrice decimal.Decimal, volumeDelta int64, at time.Time, historyLimit int) {
	i.PreviousPrice = i.Price
	i.Price = RoundMoney(newPrice)
	i.recompute()
	i.appendHistory(at, historyLimit)
	if volumeDelta > 0 {
		i.Volume += volumeDelta
	}
	i.UpdatedAt = at
}

// ApplyShock sets the instrument to a shocked price. The history gets the
// new point in both modes; mode only decides PreviousPrice.
func (i *Instrument) ApplyShock(newPrice decimal.Decimal, mode ShockMode, at time.Time, historyLimit int) {
	before := i.Price
	i.Price = RoundMoney(newPrice)
	if mode == ShockTrack {
		i.PreviousPrice = before
	} else {
		i.PreviousPrice = i.Price
	}
	i.recompute()
	i.appendHistory(at, historyLimit)
	i.UpdatedAt = at
}

// Reprice overwrites the price and previous price directly and clears the
// history down to the new point. Used by admin resets.
func (i *Instrument) Reprice(price decimal.Decimal, at time.Time) {
	p := RoundMoney(price)
	i.Price = p
	i.PreviousPrice = p
	i.recompute()
	i.History = []PricePoint{{Price: p, Timestamp: at}}
	i.UpdatedAt = at
}

func (i *Instrument) recompute() {
	i.Change = RoundMoney(i.Price.Sub(i.PreviousPrice))
	i.ChangePercent = PercentChange(i.Change, i.PreviousPrice)
}

func (i *Instrument) appendHistory(at time.Time, limit int) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	i.History = append(i.History, PricePoint{Price: i.Price, Timestamp: at})
	if over := len(i.History) - limit; over > 0 {
		trimmed := make([]PricePoint, limit)
		copy(trimmed, i.History[over:])
		i.History = trimmed
	}
}

// Quote is the broadcast projection of an instrument.
type Quote struct {
	Symbol        string
	Name          string
	Price         decimal.Decimal
	Change        decimal.Decimal
	ChangePercent decimal.Decimal
	Volume        int64
	Sector        Sector
}

// Quote projects the instrument for market-update broadcasts.
func (i *Instrument) Quote() Quote {
	return Quote{
		Symbol:        i.Symbol,
		Name:          i.Name,
		Price:         i.Price,
		Change:        i.Change,
		ChangePercent: i.ChangePercent,
		Volume:        i.Volume,
		Sector:        i.Sector,
	}
}
