package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/store"
)

// DefaultEventDuration is how long an event stays active when the request
// gives no duration.
const DefaultEventDuration = time.Hour

// CreateEventRequest represents the input for creating a market event.
type CreateEventRequest struct {
	Title         string
	Description   string
	Type          string
	Sectors       []string
	ImpactPercent float64
	Duration      time.Duration
}

// EventResult is a created event and the number of stocks it shocked.
type EventResult struct {
	Event    *domain.MarketEvent
	Affected int
}

// EventService creates market events and applies their price shocks.
type EventService struct {
	events store.Events
	shocks *engine.ShockApplier
	logger *slog.Logger
	now    func() time.Time
}

// NewEventService creates an EventService.
func NewEventService(events store.Events, shocks *engine.ShockApplier, logger *slog.Logger) *EventService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventService{
		events: events,
		shocks: shocks,
		logger: logger,
		now:    time.Now,
	}
}

// Create validates and stores the event, then shocks every stock in its
// sectors. A zero impact records the event without moving prices.
func (s *EventService) Create(ctx context.Context, req CreateEventRequest) (*EventResult, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, &domain.ValidationError{Message: "title is required"}
	}

	eventType := domain.EventType(req.Type)
	if eventType == "" {
		eventType = domain.EventNeutral
	}
	if !domain.ValidEventType(eventType) {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("type must be one of: positive, negative, neutral, got %q", req.Type),
		}
	}

	if len(req.Sectors) == 0 {
		return nil, &domain.ValidationError{Message: "at least one sector is required"}
	}
	sectors := make([]domain.Sector, 0, len(req.Sectors))
	seen := make(domain.SectorSet)
	for _, name := range req.Sectors {
		sec, err := domain.ParseSector(name)
		if err != nil {
			return nil, &domain.ValidationError{Message: err.Error()}
		}
		if seen.Contains(sec) {
			return nil, &domain.ValidationError{Message: fmt.Sprintf("duplicate sector: %s", sec)}
		}
		seen[sec] = struct{}{}
		sectors = append(sectors, sec)
	}

	impact, err := domain.ParseMoney(req.ImpactPercent)
	if err != nil {
		return nil, &domain.ValidationError{Message: "impact must have at most 2 decimal places"}
	}
	if impact.Abs().GreaterThan(decimal.NewFromInt(domain.MaxImpactPercent)) {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("impact must be between -%d and %d", domain.MaxImpactPercent, domain.MaxImpactPercent),
		}
	}

	duration := req.Duration
	if duration == 0 {
		duration = DefaultEventDuration
	}
	if duration < 0 {
		return nil, &domain.ValidationError{Message: "duration must be positive"}
	}

	now := s.now()
	event := &domain.MarketEvent{
		EventID:       uuid.New().String(),
		Title:         title,
		Description:   req.Description,
		Type:          eventType,
		Sectors:       sectors,
		ImpactPercent: impact,
		StartTime:     now,
		EndTime:       now.Add(duration),
		Active:        true,
		CreatedAt:     now,
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, err
	}

	affected := 0
	if !impact.IsZero() {
		affected, err = s.shocks.Apply(ctx, engine.Shock{
			Type:          eventType,
			Title:         title,
			Sectors:       sectors,
			ImpactPercent: impact,
		})
		if err != nil {
			return nil, err
		}
	}
	s.logger.Info("market event created", "event_id", event.EventID, "type", eventType,
		"impact_percent", impact.String(), "affected", affected)
	return &EventResult{Event: event, Affected: affected}, nil
}

// Get returns one event.
func (s *EventService) Get(ctx context.Context, id string) (*domain.MarketEvent, error) {
	return s.events.Get(ctx, id)
}

// Active lists events that are active now, newest first.
func (s *EventService) Active(ctx context.Context) ([]*domain.MarketEvent, error) {
	return s.events.ListActive(ctx, s.now())
}

// End deactivates an event. Prices are not restored.
func (s *EventService) End(ctx context.Context, id string) (*domain.MarketEvent, error) {
	e, err := s.events.Deactivate(ctx, id, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("market event ended", "event_id", id)
	return e, nil
}
