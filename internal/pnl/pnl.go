// Package pnl computes realized profit/loss for a single trade. Every
// aggregate in the system (equity curve, goals, risk, prop evaluation,
// exports) goes through this one formula so they always agree.
package pnl

import (
	"github.com/shopspring/decimal"

	"tradejournal/internal/models"
)

type Input struct {
	EntryPrice decimal.Decimal
	ExitPrice  *decimal.Decimal
	Quantity   int64
	Direction  string
	Fees       decimal.Decimal
	// Multiplier below or at zero (or absent) is treated as 1.
	Multiplier *decimal.Decimal
}

// Realized returns the realized P/L rounded to 2 decimals, or nil when the
// position is still open (no exit price). No unrealized P/L is computed.
func Realized(in Input) *decimal.Decimal {
	if in.ExitPrice == nil {
		return nil
	}
	sign := decimal.NewFromInt(1)
	if in.Direction == models.DirectionShort {
		sign = decimal.NewFromInt(-1)
	}
	mult := decimal.NewFromInt(1)
	if in.Multiplier != nil && in.Multiplier.GreaterThan(decimal.Zero) {
		mult = *in.Multiplier
	}
	out := in.ExitPrice.Sub(in.EntryPrice).
		Mul(sign).
		Mul(decimal.NewFromInt(in.Quantity)).
		Mul(mult).
		Sub(in.Fees).
		Round(2)
	return &out
}

// ForTrade applies Realized to a persisted trade row, pulling the contract
// multiplier off the preloaded instrument.
func ForTrade(t models.Trade) *decimal.Decimal {
	var mult *decimal.Decimal
	if t.Instrument.ID != 0 {
		m := t.Instrument.Multiplier()
		mult = &m
	}
	return Realized(Input{
		EntryPrice: t.EntryPrice,
		ExitPrice:  t.ExitPrice,
		Quantity:   t.Quantity,
		Direction:  t.Direction,
		Fees:       t.Fees,
		Multiplier: mult,
	})
}
