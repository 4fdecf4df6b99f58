package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
)

// EventStore persists market events.
type EventStore struct {
	db *sql.DB
}

const eventColumns = `event_id, title, description, type, sectors, impact_percent,
	start_time, end_time, active, created_at`

func scanEvent(row rowScanner) (*domain.MarketEvent, error) {
	var (
		e                   domain.MarketEvent
		sectors             string
		start, end, created sql.NullInt64
	)
	if err := row.Scan(&e.EventID, &e.Title, &e.Description, &e.Type, &sectors,
		&e.ImpactPercent, &start, &end, &e.Active, &created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sectors), &e.Sectors); err != nil {
		return nil, err
	}
	e.StartTime = fromNanos(start)
	e.EndTime = fromNanos(end)
	e.CreatedAt = fromNanos(created)
	return &e, nil
}

func (s *EventStore) Create(ctx context.Context, e *domain.MarketEvent) error {
	sectors, err := toJSON(e.Sectors)
	if err != nil {
		return persistence("encode sectors", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO market_events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.Title, e.Description, string(e.Type), sectors, e.ImpactPercent.String(),
		toNanos(e.StartTime), toNanos(e.EndTime), e.Active, toNanos(e.CreatedAt),
	)
	if err != nil {
		return persistence("create event", err)
	}
	return nil
}

func (s *EventStore) Get(ctx context.Context, id string) (*domain.MarketEvent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM market_events WHERE event_id = ?`, id)
	e, err := scanEvent(row)
	if isNoRows(err) {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, persistence("get event", err)
	}
	return e, nil
}

func (s *EventStore) ListActive(ctx context.Context, now time.Time) ([]*domain.MarketEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM market_events
		WHERE active = 1 AND (end_time IS NULL OR end_time > ?)
		ORDER BY start_time DESC, event_id`, now.UnixNano())
	if err != nil {
		return nil, persistence("list events", err)
	}
	defer rows.Close()

	out := make([]*domain.MarketEvent, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, persistence("scan event", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("list events", err)
	}
	return out, nil
}

// Deactivate marks the event inactive with end time at.
func (s *EventStore) Deactivate(ctx context.Context, id string, at time.Time) (*domain.MarketEvent, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE market_events SET active = 0, end_time = ? WHERE event_id = ?`,
		toNanos(at), id)
	if err != nil {
		return nil, persistence("deactivate event", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, persistence("deactivate event", err)
	}
	if n == 0 {
		return nil, domain.ErrEventNotFound
	}
	return s.Get(ctx, id)
}
