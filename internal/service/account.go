package service

import (
	"context"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/store"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,32}$`)

// HoldingDetail is one user's position in one instrument.
type HoldingDetail struct {
	Owned        bool
	Symbol       string
	Quantity     int64
	AvgPrice     decimal.Decimal
	CurrentPrice decimal.Decimal
	CurrentValue decimal.Decimal
	Invested     decimal.Decimal
	PnL          decimal.Decimal
	PnLPercent   decimal.Decimal
}

// AccountService handles user accounts, trades, portfolios, and
// watchlists.
type AccountService struct {
	users          store.Users
	instruments    store.Instruments
	trader         *engine.Trader
	initialBalance decimal.Decimal
	logger         *slog.Logger
	now            func() time.Time
}

// NewAccountService creates an AccountService. New users start with
// initialBalance in cash.
func NewAccountService(
	users store.Users,
	instruments store.Instruments,
	trader *engine.Trader,
	initialBalance decimal.Decimal,
	logger *slog.Logger,
) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		users:          users,
		instruments:    instruments,
		trader:         trader,
		initialBalance: initialBalance,
		logger:         logger,
		now:            time.Now,
	}
}

// InitialBalance returns the starting cash of every account.
func (s *AccountService) InitialBalance() decimal.Decimal {
	return s.initialBalance
}

// Register creates a user with the initial balance.
func (s *AccountService) Register(ctx context.Context, username string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if !usernameRegex.MatchString(username) {
		return nil, &domain.ValidationError{
			Message: "username must be 3 to 32 characters of letters, digits, '_', '.', or '-'",
		}
	}

	u := domain.NewUser(uuid.New().String(), username, s.initialBalance, s.now())
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", u.UserID, "username", u.Username)
	return u, nil
}

// GetUser returns the user with the given ID.
func (s *AccountService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.Get(ctx, userID)
}

// Buy purchases shares at the current price.
func (s *AccountService) Buy(ctx context.Context, userID, symbol string, quantity int64) (*engine.TradeResult, error) {
	return s.trader.Buy(ctx, userID, symbol, quantity)
}

// Sell disposes of shares at the current price.
func (s *AccountService) Sell(ctx context.Context, userID, symbol string, quantity int64) (*engine.TradeResult, error) {
	return s.trader.Sell(ctx, userID, symbol, quantity)
}

// Portfolio values every holding of the user at current prices.
func (s *AccountService) Portfolio(ctx context.Context, userID string) (*domain.Valuation, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	prices, err := priceMap(ctx, s.instruments)
	if err != nil {
		return nil, err
	}
	v := domain.Valuate(u, prices, s.initialBalance)
	return &v, nil
}

// Holding reports the user's position in symbol. The instrument must
// exist; a user without shares gets Owned == false.
func (s *AccountService) Holding(ctx context.Context, userID, symbol string) (*HoldingDetail, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	inst, err := s.instruments.Get(ctx, domain.NormalizeSymbol(symbol))
	if err != nil {
		return nil, err
	}

	h, ok := u.Holdings[inst.Symbol]
	if !ok {
		return &HoldingDetail{Symbol: inst.Symbol, CurrentPrice: inst.Price}, nil
	}

	v := domain.Valuate(&domain.User{Holdings: map[string]*domain.Holding{h.Symbol: h}},
		map[string]decimal.Decimal{inst.Symbol: inst.Price}, decimal.Zero)
	p := v.Positions[0]
	return &HoldingDetail{
		Owned:        true,
		Symbol:       p.Symbol,
		Quantity:     p.Quantity,
		AvgPrice:     p.AvgPrice,
		CurrentPrice: p.CurrentPrice,
		CurrentValue: p.CurrentValue,
		Invested:     p.Invested,
		PnL:          p.PnL,
		PnLPercent:   p.PnLPercent,
	}, nil
}

// Watchlist returns the watched instruments in the order they were added.
// Symbols that no longer resolve are skipped.
func (s *AccountService) Watchlist(ctx context.Context, userID string) ([]*domain.Instrument, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Instrument, 0, len(u.Watchlist))
	for _, sym := range u.Watchlist {
		inst, err := s.instruments.Get(ctx, sym)
		if domain.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// AddToWatchlist appends symbol to the user's watchlist and returns the
// new list.
func (s *AccountService) AddToWatchlist(ctx context.Context, userID, symbol string) ([]string, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if _, err := s.instruments.Get(ctx, symbol); err != nil {
		return nil, err
	}
	u, err := s.users.UpdateWatchlist(ctx, userID, func(list []string) ([]string, error) {
		if slices.Contains(list, symbol) {
			return nil, domain.ErrAlreadyInWatchlist
		}
		return append(list, symbol), nil
	})
	if err != nil {
		return nil, err
	}
	return u.Watchlist, nil
}

// RemoveFromWatchlist drops symbol from the user's watchlist and returns
// the new list.
func (s *AccountService) RemoveFromWatchlist(ctx context.Context, userID, symbol string) ([]string, error) {
	symbol = domain.NormalizeSymbol(symbol)
	u, err := s.users.UpdateWatchlist(ctx, userID, func(list []string) ([]string, error) {
		i := slices.Index(list, symbol)
		if i < 0 {
			return nil, domain.ErrNotInWatchlist
		}
		return slices.Delete(list, i, i+1), nil
	})
	if err != nil {
		return nil, err
	}
	return u.Watchlist, nil
}
