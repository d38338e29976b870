package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Instrument is shared, immutable reference data. ContractMultiplier is the
// per-point monetary value (nil or non-positive means 1).
type Instrument struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Symbol string `gorm:"type:varchar(30);not null;uniqueIndex" json:"symbol"`

	ContractMultiplier *decimal.Decimal `gorm:"type:numeric(20,6)" json:"contract_multiplier"`
	Currency           string           `gorm:"type:varchar(10);not null;default:USD" json:"currency"`
	TickSize           decimal.Decimal  `gorm:"type:numeric(20,10);not null;default:0.01" json:"tick_size"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
}

func (Instrument) TableName() string {
	return "instruments"
}

// Multiplier returns the effective contract multiplier.
func (i Instrument) Multiplier() decimal.Decimal {
	if i.ContractMultiplier == nil || i.ContractMultiplier.LessThanOrEqual(decimal.Zero) {
		return decimal.NewFromInt(1)
	}
	return *i.ContractMultiplier
}
