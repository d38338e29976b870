package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyEquity is fully derived from trades + settings and rebuilt by the
// equity builder; it is never hand-edited.
// Invariant: CumulativeEquity(day N) = CumulativeEquity(day N-1) + RealizedPnL(day N).
type DailyEquity struct {
	ID     uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint64    `gorm:"not null;uniqueIndex:idx_daily_equity_user_day" json:"user_id"`
	Day    time.Time `gorm:"type:date;not null;uniqueIndex:idx_daily_equity_user_day;index" json:"day"`

	RealizedPnL      decimal.Decimal `gorm:"column:realized_pnl;type:numeric(30,10);not null;default:0" json:"realized_pnl"`
	CumulativeEquity decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"cumulative_equity"`
	TradeCount       int             `gorm:"not null;default:0" json:"trade_count"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (DailyEquity) TableName() string {
	return "daily_equity"
}
