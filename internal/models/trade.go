package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DirectionLong  = "LONG"
	DirectionShort = "SHORT"

	TradeStatusOpen      = "OPEN"
	TradeStatusClosed    = "CLOSED"
	TradeStatusCancelled = "CANCELLED"
)

// Trade is a single journal entry. ExitPrice and ExitAt are both set or both
// nil; the row transitions to CLOSED once they are set. Soft deletion marks
// the row CANCELLED and stamps DeletedAt so it can be restored.
type Trade struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint64 `gorm:"not null;index:idx_trades_user_status" json:"user_id"`

	InstrumentID uint64     `gorm:"not null;index" json:"instrument_id"`
	Instrument   Instrument `gorm:"foreignKey:InstrumentID" json:"instrument"`

	Direction string `gorm:"type:varchar(10);not null" json:"direction"`
	Status    string `gorm:"type:varchar(20);not null;index:idx_trades_user_status" json:"status"`

	EntryPrice decimal.Decimal  `gorm:"type:numeric(30,10);not null" json:"entry_price"`
	ExitPrice  *decimal.Decimal `gorm:"type:numeric(30,10)" json:"exit_price"`
	Quantity   int64            `gorm:"not null" json:"quantity"`
	Fees       decimal.Decimal  `gorm:"type:numeric(30,10);not null;default:0" json:"fees"`

	EntryAt time.Time  `gorm:"type:timestamptz;not null;index" json:"entry_at"`
	ExitAt  *time.Time `gorm:"type:timestamptz;index" json:"exit_at"`

	Notes string `gorm:"type:text" json:"notes"`
	Tags  []Tag  `gorm:"many2many:trade_tags" json:"tags"`

	DeletedAt *time.Time `gorm:"type:timestamptz;index" json:"deleted_at"`
	CreatedAt time.Time  `gorm:"type:timestamptz;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time  `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Trade) TableName() string {
	return "trades"
}

// Closed reports whether the trade has a realized result.
func (t Trade) Closed() bool {
	return t.Status == TradeStatusClosed && t.ExitPrice != nil && t.ExitAt != nil
}
