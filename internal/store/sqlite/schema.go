package sqlite

const schemaDDL = `
CREATE TABLE IF NOT EXISTS instruments (
	symbol          TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	sector          TEXT NOT NULL,
	price           TEXT NOT NULL,
	previous_price  TEXT NOT NULL,
	change          TEXT NOT NULL DEFAULT '0',
	change_percent  TEXT NOT NULL DEFAULT '0',
	volume          INTEGER NOT NULL DEFAULT 0,
	market_cap      TEXT NOT NULL DEFAULT '',
	description     TEXT NOT NULL DEFAULT '',
	history         TEXT NOT NULL DEFAULT '[]',
	updated_at      INTEGER
);

CREATE INDEX IF NOT EXISTS idx_instruments_sector ON instruments(sector);

CREATE TABLE IF NOT EXISTS users (
	user_id     TEXT PRIMARY KEY,
	username    TEXT NOT NULL UNIQUE,
	balance     TEXT NOT NULL,
	holdings    TEXT NOT NULL DEFAULT '{}',
	watchlist   TEXT NOT NULL DEFAULT '[]',
	version     INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	transaction_id  TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL REFERENCES users(user_id),
	symbol          TEXT NOT NULL,
	name            TEXT NOT NULL DEFAULT '',
	side            TEXT NOT NULL,
	quantity        INTEGER NOT NULL,
	price           TEXT NOT NULL,
	total           TEXT NOT NULL,
	balance_after   TEXT NOT NULL,
	executed_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, executed_at);

CREATE TABLE IF NOT EXISTS market_events (
	event_id        TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	type            TEXT NOT NULL,
	sectors         TEXT NOT NULL DEFAULT '[]',
	impact_percent  TEXT NOT NULL,
	start_time      INTEGER NOT NULL,
	end_time        INTEGER,
	active          INTEGER NOT NULL DEFAULT 1,
	created_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_market_events_active ON market_events(active, start_time);
`
