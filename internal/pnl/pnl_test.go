package pnl

import (
	"testing"

	"github.com/shopspring/decimal"

	"tradejournal/internal/models"
)

func dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

func TestRealized_OpenPosition(t *testing.T) {
	got := Realized(Input{
		EntryPrice: dec("100"),
		Quantity:   1,
		Direction:  models.DirectionLong,
	})
	if got != nil {
		t.Fatalf("expected nil for open position, got %s", got.String())
	}
}

func TestRealized_Formula(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want string
	}{
		{
			name: "long with fees",
			in: Input{
				EntryPrice: dec("100"),
				ExitPrice:  decPtr("110"),
				Quantity:   1,
				Direction:  models.DirectionLong,
				Fees:       dec("2"),
			},
			want: "8",
		},
		{
			name: "short multi quantity",
			in: Input{
				EntryPrice: dec("100"),
				ExitPrice:  decPtr("90"),
				Quantity:   3,
				Direction:  models.DirectionShort,
			},
			want: "30",
		},
		{
			name: "contract multiplier",
			in: Input{
				EntryPrice: dec("4500"),
				ExitPrice:  decPtr("4510"),
				Quantity:   2,
				Direction:  models.DirectionLong,
				Multiplier: decPtr("50"),
			},
			want: "1000",
		},
		{
			name: "non-positive multiplier defaults to 1",
			in: Input{
				EntryPrice: dec("10"),
				ExitPrice:  decPtr("12"),
				Quantity:   5,
				Direction:  models.DirectionLong,
				Multiplier: decPtr("0"),
			},
			want: "10",
		},
		{
			name: "losing short",
			in: Input{
				EntryPrice: dec("50"),
				ExitPrice:  decPtr("55"),
				Quantity:   1,
				Direction:  models.DirectionShort,
				Fees:       dec("1"),
			},
			want: "-6",
		},
		{
			name: "rounds to 2 decimals",
			in: Input{
				EntryPrice: dec("1.111"),
				ExitPrice:  decPtr("1.234"),
				Quantity:   1,
				Direction:  models.DirectionLong,
			},
			want: "0.12",
		},
	}
	for _, tt := range tests {
		got := Realized(tt.in)
		if got == nil {
			t.Fatalf("%s: expected %s, got nil", tt.name, tt.want)
		}
		if got.Cmp(dec(tt.want)) != 0 {
			t.Fatalf("%s: got %s want %s", tt.name, got.String(), tt.want)
		}
	}
}

func TestForTrade_UsesInstrumentMultiplier(t *testing.T) {
	trade := models.Trade{
		Direction:  models.DirectionLong,
		EntryPrice: dec("100"),
		ExitPrice:  decPtr("101"),
		Quantity:   1,
		Instrument: models.Instrument{ID: 1, ContractMultiplier: decPtr("20")},
	}
	got := ForTrade(trade)
	if got == nil || got.Cmp(dec("20")) != 0 {
		t.Fatalf("got %v want 20", got)
	}
}
