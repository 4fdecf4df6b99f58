package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxImpactPercent bounds the absolute shock a market event may apply.
const MaxImpactPercent = 20

// EventType labels the direction of a market event.
type EventType string

const (
	EventPositive EventType = "positive"
	EventNegative EventType = "negative"
	EventNeutral  EventType = "neutral"
)

// ValidEventType reports whether t is a known event type.
func ValidEventType(t EventType) bool {
	switch t {
	case EventPositive, EventNegative, EventNeutral:
		return true
	}
	return false
}

// MarketEvent is a scripted event that shocks the prices of one or more
// sectors when it is created.
type MarketEvent struct {
	EventID       string
	Title         string
	Description   string
	Type          EventType
	Sectors       []Sector
	ImpactPercent decimal.Decimal
	StartTime     time.Time
	EndTime       time.Time
	Active        bool
	CreatedAt     time.Time
}

// IsActive reports whether the event is flagged active and has not
// reached its end time.
func (e *MarketEvent) IsActive(now time.Time) bool {
	if !e.Active {
		return false
	}
	return e.EndTime.IsZero() || now.Before(e.EndTime)
}

// Clone returns a copy that shares no slices with e.
func (e *MarketEvent) Clone() *MarketEvent {
	c := *e
	c.Sectors = append([]Sector(nil), e.Sectors...)
	return &c
}
