package engine

import (
	"context"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
)

// Broadcast event names.
const (
	EventMarketUpdate = "market-update"
	EventMarketEvent  = "market-event"
)

// Publisher broadcasts a named event to every subscriber. Delivery is
// best effort; a later tick supersedes a missed update.
type Publisher interface {
	Publish(ctx context.Context, event string, data any) error
}

// QuoteUpdate is one instrument in a market-update payload.
type QuoteUpdate struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
	Sector        string  `json:"sector"`
}

func quoteUpdate(inst *domain.Instrument) QuoteUpdate {
	q := inst.Quote()
	return QuoteUpdate{
		Symbol:        q.Symbol,
		Name:          q.Name,
		Price:         q.Price.InexactFloat64(),
		Change:        q.Change.InexactFloat64(),
		ChangePercent: q.ChangePercent.InexactFloat64(),
		Volume:        q.Volume,
		Sector:        string(q.Sector),
	}
}

func quoteUpdates(insts []*domain.Instrument) []QuoteUpdate {
	out := make([]QuoteUpdate, 0, len(insts))
	for _, inst := range insts {
		out = append(out, quoteUpdate(inst))
	}
	return out
}

// MarketEventUpdate is the market-event payload.
type MarketEventUpdate struct {
	Type          string        `json:"type"`
	Title         string        `json:"title,omitempty"`
	Sectors       []string      `json:"sectors"`
	ImpactPercent float64       `json:"impact_percent"`
	Affected      int           `json:"affected"`
	Stocks        []QuoteUpdate `json:"stocks"`
	AppliedAt     time.Time     `json:"applied_at"`
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
