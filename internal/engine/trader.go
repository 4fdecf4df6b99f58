package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/store"
)

// maxCommitAttempts bounds the optimistic retries when another writer
// moved the user's version between read and commit.
const maxCommitAttempts = 5

// TradeResult is the outcome of an executed buy or sell.
type TradeResult struct {
	Transaction *domain.Transaction
	Balance     decimal.Decimal
	Holding     *domain.Holding // nil once the position is closed
}

// Trader executes market buys and sells at the current instrument price.
type Trader struct {
	instruments store.Instruments
	users       store.Users
	locks       *keyedMutex
	logger      *slog.Logger
	now         func() time.Time
}

// NewTrader creates a Trader.
func NewTrader(instruments store.Instruments, users store.Users, logger *slog.Logger) *Trader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trader{
		instruments: instruments,
		users:       users,
		locks:       newKeyedMutex(),
		logger:      logger,
		now:         time.Now,
	}
}

// Buy purchases quantity shares of symbol for the user.
func (t *Trader) Buy(ctx context.Context, userID, symbol string, quantity int64) (*TradeResult, error) {
	return t.execute(ctx, domain.SideBuy, userID, symbol, quantity)
}

// Sell disposes of quantity shares of symbol held by the user.
func (t *Trader) Sell(ctx context.Context, userID, symbol string, quantity int64) (*TradeResult, error) {
	return t.execute(ctx, domain.SideSell, userID, symbol, quantity)
}

// execute reads the instrument price once, then applies the trade to a
// fresh copy of the user under the per-user lock. The store's version
// check catches writers outside this process; on conflict the user is
// re-read and the trade re-validated at the same price.
func (t *Trader) execute(ctx context.Context, side domain.Side, userID, symbol string, quantity int64) (*TradeResult, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	symbol = domain.NormalizeSymbol(symbol)

	inst, err := t.instruments.Get(ctx, symbol)
	if err != nil {
		return nil, err
	}
	price := inst.Price

	unlock := t.locks.Lock(userID)
	defer unlock()

	for attempt := 1; ; attempt++ {
		u, err := t.users.Get(ctx, userID)
		if err != nil {
			return nil, err
		}

		tx, err := t.apply(u, inst, side, price, quantity)
		if err != nil {
			return nil, err
		}

		err = t.users.CommitTrade(ctx, u, tx)
		if errors.Is(err, domain.ErrVersionConflict) && attempt < maxCommitAttempts {
			t.logger.Debug("trade commit conflict, retrying", "user_id", userID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}

		t.logger.Info("trade executed",
			"user_id", userID, "side", side, "symbol", symbol,
			"quantity", quantity, "price", price.String(), "total", tx.Total.String())

		var holding *domain.Holding
		if h, ok := u.Holdings[symbol]; ok {
			hc := *h
			holding = &hc
		}
		return &TradeResult{Transaction: tx, Balance: u.Balance, Holding: holding}, nil
	}
}

// apply mutates u for the trade and builds its transaction record.
func (t *Trader) apply(u *domain.User, inst *domain.Instrument, side domain.Side, price decimal.Decimal, quantity int64) (*domain.Transaction, error) {
	total := domain.RoundMoney(price.Mul(decimal.NewFromInt(quantity)))

	switch side {
	case domain.SideBuy:
		if u.Balance.LessThan(total) {
			return nil, domain.ErrInsufficientFunds
		}
		u.Balance = domain.RoundMoney(u.Balance.Sub(total))
		u.AddShares(inst.Symbol, inst.Name, quantity, price)
	case domain.SideSell:
		if u.HeldQuantity(inst.Symbol) < quantity {
			return nil, domain.ErrInsufficientShares
		}
		u.Balance = domain.RoundMoney(u.Balance.Add(total))
		u.RemoveShares(inst.Symbol, quantity)
	}

	at := t.now()
	u.UpdatedAt = at
	return &domain.Transaction{
		TransactionID: uuid.New().String(),
		UserID:        u.UserID,
		Symbol:        inst.Symbol,
		Name:          inst.Name,
		Side:          side,
		Quantity:      quantity,
		Price:         price,
		Total:         total,
		BalanceAfter:  u.Balance,
		ExecutedAt:    at,
	}, nil
}
