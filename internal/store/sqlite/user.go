package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/efreitasn/papertrade/internal/domain"
)

// UserStore persists users in the users table and commits trades together
// with their transactions row.
type UserStore struct {
	db *sql.DB
}

const userColumns = `user_id, username, balance, holdings, watchlist, version, created_at, updated_at`

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u                domain.User
		holdings, watch  string
		created, updated sql.NullInt64
	)
	if err := row.Scan(&u.UserID, &u.Username, &u.Balance, &holdings, &watch,
		&u.Version, &created, &updated); err != nil {
		return nil, err
	}
	u.Holdings = make(map[string]*domain.Holding)
	if err := json.Unmarshal([]byte(holdings), &u.Holdings); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(watch), &u.Watchlist); err != nil {
		return nil, err
	}
	if u.Watchlist == nil {
		u.Watchlist = []string{}
	}
	u.CreatedAt = fromNanos(created)
	u.UpdatedAt = fromNanos(updated)
	return &u, nil
}

// Create inserts a user. It returns domain.ErrUserAlreadyExists if the id
// or the username is taken.
func (s *UserStore) Create(ctx context.Context, u *domain.User) error {
	holdings, err := toJSON(u.Holdings)
	if err != nil {
		return persistence("encode holdings", err)
	}
	watch, err := toJSON(u.Watchlist)
	if err != nil {
		return persistence("encode watchlist", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.UserID, u.Username, u.Balance.String(), holdings, watch, u.Version,
		toNanos(u.CreatedAt), toNanos(u.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return domain.ErrUserAlreadyExists
	}
	if err != nil {
		return persistence("create user", err)
	}
	return nil
}

func (s *UserStore) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.getBy(ctx, "user_id", id)
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getBy(ctx, "username", username)
}

func (s *UserStore) getBy(ctx context.Context, column, value string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value)
	u, err := scanUser(row)
	if isNoRows(err) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, persistence("get user", err)
	}
	return u, nil
}

func (s *UserStore) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, user_id`)
	if err != nil {
		return nil, persistence("list users", err)
	}
	defer rows.Close()

	out := make([]*domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, persistence("scan user", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("list users", err)
	}
	return out, nil
}

// CommitTrade updates balance and holdings with a version check and inserts
// the transaction in the same database transaction.
func (s *UserStore) CommitTrade(ctx context.Context, u *domain.User, t *domain.Transaction) error {
	holdings, err := toJSON(u.Holdings)
	if err != nil {
		return persistence("encode holdings", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence("begin", err)
	}
	defer rollback(tx)

	res, err := tx.ExecContext(ctx, `
		UPDATE users SET balance = ?, holdings = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND version = ?`,
		u.Balance.String(), holdings, toNanos(u.UpdatedAt), u.UserID, u.Version,
	)
	if err != nil {
		return persistence("update user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistence("update user", err)
	}
	if n == 0 {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE user_id = ?`, u.UserID).Scan(&one)
		if isNoRows(err) {
			return domain.ErrUserNotFound
		}
		if err != nil {
			return persistence("get user", err)
		}
		return domain.ErrVersionConflict
	}

	if err := insertTransaction(ctx, tx, t); err != nil {
		return persistence("insert transaction", err)
	}
	if err := tx.Commit(); err != nil {
		return persistence("commit", err)
	}
	u.Version++
	return nil
}

func (s *UserStore) UpdateWatchlist(ctx context.Context, id string, fn func([]string) ([]string, error)) (*domain.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, persistence("begin", err)
	}
	defer rollback(tx)

	row := tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, id)
	u, err := scanUser(row)
	if isNoRows(err) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, persistence("get user", err)
	}

	list, err := fn(u.Watchlist)
	if err != nil {
		return nil, err
	}
	watch, err := toJSON(list)
	if err != nil {
		return nil, persistence("encode watchlist", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET watchlist = ? WHERE user_id = ?`, watch, id); err != nil {
		return nil, persistence("update watchlist", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, persistence("commit", err)
	}
	u.Watchlist = list
	return u, nil
}
