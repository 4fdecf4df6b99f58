package domain

import "github.com/shopspring/decimal"

// Position is a holding marked to a price.
type Position struct {
	Symbol       string
	Name         string
	Quantity     int64
	AvgPrice     decimal.Decimal
	CurrentPrice decimal.Decimal
	CurrentValue decimal.Decimal
	Invested     decimal.Decimal
	PnL          decimal.Decimal
	PnLPercent   decimal.Decimal
}

// Valuation is a read-only snapshot of a user's portfolio.
type Valuation struct {
	Positions      []Position
	Balance        decimal.Decimal
	HoldingsValue  decimal.Decimal
	TotalValue     decimal.Decimal // Balance + HoldingsValue
	TotalInvested  decimal.Decimal
	TotalPnL       decimal.Decimal // TotalValue − (InitialBalance + TotalInvested)
	NetGain        decimal.Decimal // TotalValue − InitialBalance
	NetGainPercent decimal.Decimal
	InitialBalance decimal.Decimal
}

// Valuate marks every holding of u to prices. A holding whose symbol has
// no price is marked at its own average price.
func Valuate(u *User, prices map[string]decimal.Decimal, initialBalance decimal.Decimal) Valuation {
	v := Valuation{
		Balance:        u.Balance,
		InitialBalance: initialBalance,
		Positions:      make([]Position, 0, len(u.Holdings)),
	}
	for _, h := range u.SortedHoldings() {
		price, ok := prices[h.Symbol]
		if !ok {
			price = h.AvgPrice
		}
		qty := decimal.NewFromInt(h.Quantity)
		value := price.Mul(qty)
		invested := h.AvgPrice.Mul(qty)
		pnl := value.Sub(invested)

		v.Positions = append(v.Positions, Position{
			Symbol:       h.Symbol,
			Name:         h.Name,
			Quantity:     h.Quantity,
			AvgPrice:     RoundMoney(h.AvgPrice),
			CurrentPrice: price,
			CurrentValue: RoundMoney(value),
			Invested:     RoundMoney(invested),
			PnL:          RoundMoney(pnl),
			PnLPercent:   ratioPercent(pnl, invested),
		})
		v.HoldingsValue = v.HoldingsValue.Add(value)
		v.TotalInvested = v.TotalInvested.Add(invested)
	}

	total := u.Balance.Add(v.HoldingsValue)
	v.TotalValue = RoundMoney(total)
	v.HoldingsValue = RoundMoney(v.HoldingsValue)
	v.TotalPnL = RoundMoney(total.Sub(initialBalance.Add(v.TotalInvested)))
	v.TotalInvested = RoundMoney(v.TotalInvested)
	gain := total.Sub(initialBalance)
	v.NetGain = RoundMoney(gain)
	v.NetGainPercent = ratioPercent(gain, initialBalance)
	return v
}

func ratioPercent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return RoundMoney(part.Div(whole).Mul(hundred))
}
