package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// JournalSettings holds one row per user and seeds the equity curve and the
// risk thresholds. Created lazily on first access.
type JournalSettings struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint64 `gorm:"not null;uniqueIndex" json:"user_id"`

	InitialEquity        decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"initial_equity"`
	RiskPerTradePct      float64         `gorm:"not null;default:1" json:"risk_per_trade_pct"`
	MaxDailyLossPct      float64         `gorm:"not null;default:3" json:"max_daily_loss_pct"`
	MaxConsecutiveLosses int             `gorm:"not null;default:5" json:"max_consecutive_losses"`

	LastRebuildAt   *time.Time `gorm:"type:timestamptz" json:"last_rebuild_at"`
	LastValidatedAt *time.Time `gorm:"type:timestamptz" json:"last_validated_at"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (JournalSettings) TableName() string {
	return "journal_settings"
}
