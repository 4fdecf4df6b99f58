package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/efreitasn/papertrade/internal/domain"
)

// InstrumentStore persists instruments in the instruments table.
type InstrumentStore struct {
	db *sql.DB
}

const instrumentColumns = `symbol, name, sector, price, previous_price, change, change_percent,
	volume, market_cap, description, history, updated_at`

func scanInstrument(row rowScanner) (*domain.Instrument, error) {
	var (
		inst    domain.Instrument
		history string
		updated sql.NullInt64
	)
	if err := row.Scan(&inst.Symbol, &inst.Name, &inst.Sector, &inst.Price,
		&inst.PreviousPrice, &inst.Change, &inst.ChangePercent, &inst.Volume,
		&inst.MarketCap, &inst.Description, &history, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(history), &inst.History); err != nil {
		return nil, err
	}
	inst.UpdatedAt = fromNanos(updated)
	return &inst, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func writeInstrument(ctx context.Context, ex execer, verb string, inst *domain.Instrument) error {
	history, err := toJSON(inst.History)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, verb+` INTO instruments (`+instrumentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.Symbol, inst.Name, string(inst.Sector), inst.Price.String(),
		inst.PreviousPrice.String(), inst.Change.String(), inst.ChangePercent.String(),
		inst.Volume, inst.MarketCap, inst.Description, history, toNanos(inst.UpdatedAt),
	)
	return err
}

// Create inserts an instrument. It returns domain.ErrInstrumentAlreadyExists
// if the symbol is taken.
func (s *InstrumentStore) Create(ctx context.Context, inst *domain.Instrument) error {
	err := writeInstrument(ctx, s.db, "INSERT", inst)
	if isUniqueViolation(err) {
		return domain.ErrInstrumentAlreadyExists
	}
	if err != nil {
		return persistence("create instrument", err)
	}
	return nil
}

// Put creates or overwrites an instrument.
func (s *InstrumentStore) Put(ctx context.Context, inst *domain.Instrument) error {
	if err := writeInstrument(ctx, s.db, "INSERT OR REPLACE", inst); err != nil {
		return persistence("put instrument", err)
	}
	return nil
}

func (s *InstrumentStore) Get(ctx context.Context, symbol string) (*domain.Instrument, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+instrumentColumns+` FROM instruments WHERE symbol = ?`, symbol)
	inst, err := scanInstrument(row)
	if isNoRows(err) {
		return nil, domain.ErrInstrumentNotFound
	}
	if err != nil {
		return nil, persistence("get instrument", err)
	}
	return inst, nil
}

func (s *InstrumentStore) List(ctx context.Context) ([]*domain.Instrument, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+instrumentColumns+` FROM instruments ORDER BY symbol`)
	if err != nil {
		return nil, persistence("list instruments", err)
	}
	defer rows.Close()

	out := make([]*domain.Instrument, 0)
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, persistence("scan instrument", err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("list instruments", err)
	}
	return out, nil
}

// Apply reads, mutates, and rewrites one instrument inside a transaction.
func (s *InstrumentStore) Apply(ctx context.Context, symbol string, fn func(*domain.Instrument) error) (*domain.Instrument, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, persistence("begin", err)
	}
	defer rollback(tx)

	row := tx.QueryRowContext(ctx, `SELECT `+instrumentColumns+` FROM instruments WHERE symbol = ?`, symbol)
	inst, err := scanInstrument(row)
	if isNoRows(err) {
		return nil, domain.ErrInstrumentNotFound
	}
	if err != nil {
		return nil, persistence("get instrument", err)
	}

	if err := fn(inst); err != nil {
		return nil, err
	}
	if err := writeInstrument(ctx, tx, "INSERT OR REPLACE", inst); err != nil {
		return nil, persistence("update instrument", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, persistence("commit", err)
	}
	return inst, nil
}
