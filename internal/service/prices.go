package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/store"
)

// priceMap reads the current price of every instrument.
func priceMap(ctx context.Context, instruments store.Instruments) (map[string]decimal.Decimal, error) {
	insts, err := instruments.List(ctx)
	if err != nil {
		return nil, err
	}
	prices := make(map[string]decimal.Decimal, len(insts))
	for _, inst := range insts {
		prices[inst.Symbol] = inst.Price
	}
	return prices, nil
}
