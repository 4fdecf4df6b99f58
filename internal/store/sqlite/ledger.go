package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/efreitasn/papertrade/internal/domain"
)

// LedgerStore reads the transactions table.
type LedgerStore struct {
	db *sql.DB
}

const transactionColumns = `transaction_id, user_id, symbol, name, side, quantity, price,
	total, balance_after, executed_at`

func insertTransaction(ctx context.Context, ex execer, t *domain.Transaction) error {
	_, err := ex.ExecContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TransactionID, t.UserID, t.Symbol, t.Name, string(t.Side), t.Quantity,
		t.Price.String(), t.Total.String(), t.BalanceAfter.String(), toNanos(t.ExecutedAt),
	)
	return err
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		t        domain.Transaction
		executed sql.NullInt64
	)
	if err := row.Scan(&t.TransactionID, &t.UserID, &t.Symbol, &t.Name, &t.Side,
		&t.Quantity, &t.Price, &t.Total, &t.BalanceAfter, &executed); err != nil {
		return nil, err
	}
	t.ExecutedAt = fromNanos(executed)
	return &t, nil
}

func ledgerWhere(userID string, f domain.LedgerFilter) (string, []any) {
	clauses := []string{"user_id = ?"}
	args := []any{userID}
	if f.Side != "" {
		clauses = append(clauses, "side = ?")
		args = append(args, string(f.Side))
	}
	if f.Symbol != "" {
		clauses = append(clauses, "symbol = ?")
		args = append(args, f.Symbol)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListByUser returns a page of the user's transactions, newest first.
func (s *LedgerStore) ListByUser(ctx context.Context, userID string, filter domain.LedgerFilter, page, limit int) ([]*domain.Transaction, int, error) {
	where, args := ledgerWhere(userID, filter)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, persistence("count transactions", err)
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		return []*domain.Transaction{}, total, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions`+where+`
		ORDER BY executed_at DESC, transaction_id DESC LIMIT ? OFFSET ?`,
		append(args, limit, (page-1)*limit)...)
	if err != nil {
		return nil, 0, persistence("list transactions", err)
	}
	defer rows.Close()

	out := make([]*domain.Transaction, 0, limit)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, persistence("scan transaction", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, persistence("list transactions", err)
	}
	return out, total, nil
}

// Totals sums the user's ledger in decimal arithmetic.
func (s *LedgerStore) Totals(ctx context.Context, userID string) (domain.LedgerTotals, error) {
	var totals domain.LedgerTotals
	rows, err := s.db.QueryContext(ctx, `SELECT side, total FROM transactions WHERE user_id = ?`, userID)
	if err != nil {
		return totals, persistence("sum transactions", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.Side, &t.Total); err != nil {
			return totals, persistence("scan transaction", err)
		}
		totals.Add(&t)
	}
	if err := rows.Err(); err != nil {
		return totals, persistence("sum transactions", err)
	}
	return totals, nil
}
