// Package sqlite implements the store interfaces on a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/store"
	_ "modernc.org/sqlite"
)

// DB owns the database handle and hands out the per-aggregate stores.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and migrates the
// schema. The pool holds a single connection, so transactions are
// serialized inside the process.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema migration: %w", err)
	}
	return &DB{db: db}, nil
}

// Close releases the database handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks that the database answers.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Instruments returns the instrument store.
func (d *DB) Instruments() *InstrumentStore {
	return &InstrumentStore{db: d.db}
}

// Users returns the user store.
func (d *DB) Users() *UserStore {
	return &UserStore{db: d.db}
}

// Ledger returns the transaction ledger.
func (d *DB) Ledger() *LedgerStore {
	return &LedgerStore{db: d.db}
}

// Events returns the market event store.
func (d *DB) Events() *EventStore {
	return &EventStore{db: d.db}
}

var (
	_ store.Instruments = (*InstrumentStore)(nil)
	_ store.Users       = (*UserStore)(nil)
	_ store.Ledger      = (*LedgerStore)(nil)
	_ store.Events      = (*EventStore)(nil)
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrPersistence, op, err)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// Times are stored as unix nanoseconds; the zero time is stored as NULL.
func toNanos(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNanos(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.Unix(0, n.Int64).UTC()
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}
