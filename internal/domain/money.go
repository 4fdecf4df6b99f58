package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places kept for prices, balances,
// and percentages.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds d to MoneyPlaces decimal places, half away from zero.
// Stored values always pass through here so they are exact 2-place decimals.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// ParseMoney converts a float64 amount to a decimal. It returns an error if
// the input carries more than 2 decimal places.
func ParseMoney(f float64) (decimal.Decimal, error) {
	d := decimal.NewFromFloat(f)
	if !d.Equal(RoundMoney(d)) {
		return decimal.Zero, fmt.Errorf("monetary values must have at most 2 decimal places")
	}
	return d, nil
}

// PercentChange returns change / previous × 100 rounded to MoneyPlaces.
// It returns 0 when previous is 0.
func PercentChange(change, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		return decimal.Zero
	}
	return RoundMoney(change.Div(previous).Mul(hundred))
}

// ApplyPercent returns price × (1 + percent/100), rounded.
func ApplyPercent(price, percent decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(percent.Div(hundred))
	return RoundMoney(price.Mul(factor))
}
