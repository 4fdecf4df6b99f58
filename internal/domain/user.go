package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultInitialBalance is the cash a new user starts with.
var DefaultInitialBalance = decimal.NewFromInt(100000)

// Holding represents a user's position in a single instrument.
// Quantity is always > 0 while the holding exists.
type Holding struct {
	Symbol   string
	Name     string // copied at first acquisition
	Quantity int64
	AvgPrice decimal.Decimal // weighted average across all buys
}

// User is a trading account. The trading engine owns Balance and Holdings;
// Version increases by one on every committed trade.
type User struct {
	UserID    string
	Username  string
	Balance   decimal.Decimal
	Holdings  map[string]*Holding // symbol → holding
	Watchlist []string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser creates a user holding only cash.
func NewUser(id, username string, balance decimal.Decimal, at time.Time) *User {
	return &User{
		UserID:    id,
		Username:  username,
		Balance:   RoundMoney(balance),
		Holdings:  make(map[string]*Holding),
		Watchlist: []string{},
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// Clone returns a deep copy of the user.
func (u *User) Clone() *User {
	c := *u
	c.Holdings = make(map[string]*Holding, len(u.Holdings))
	for sym, h := range u.Holdings {
		hc := *h
		c.Holdings[sym] = &hc
	}
	c.Watchlist = append([]string(nil), u.Watchlist...)
	return &c
}

// HeldQuantity returns the quantity held for symbol, or 0 if none.
func (u *User) HeldQuantity(symbol string) int64 {
	h, ok := u.Holdings[symbol]
	if !ok {
		return 0
	}
	return h.Quantity
}

// SortedHoldings returns holdings ordered by symbol.
func (u *User) SortedHoldings() []*Holding {
	out := make([]*Holding, 0, len(u.Holdings))
	for _, h := range u.Holdings {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// AddShares records a buy of quantity shares at price, recomputing the
// weighted-average acquisition price.
func (u *User) AddShares(symbol, name string, quantity int64, price decimal.Decimal) {
	h, ok := u.Holdings[symbol]
	if !ok {
		u.Holdings[symbol] = &Holding{
			Symbol:   symbol,
			Name:     name,
			Quantity: quantity,
			AvgPrice: price,
		}
		return
	}
	qty := decimal.NewFromInt(quantity)
	existing := decimal.NewFromInt(h.Quantity)
	cost := h.AvgPrice.Mul(existing).Add(price.Mul(qty))
	h.Quantity += quantity
	h.AvgPrice = cost.Div(decimal.NewFromInt(h.Quantity))
}

// RemoveShares records a sell of quantity shares. The holding is deleted
// once its quantity reaches zero. The caller must check HeldQuantity first.
func (u *User) RemoveShares(symbol string, quantity int64) {
	h, ok := u.Holdings[symbol]
	if !ok {
		return
	}
	h.Quantity -= quantity
	if h.Quantity <= 0 {
		delete(u.Holdings, symbol)
	}
}

// Watching reports whether symbol is on the watchlist.
func (u *User) Watching(symbol string) bool {
	for _, s := range u.Watchlist {
		if s == symbol {
			return true
		}
	}
	return false
}
