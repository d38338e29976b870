package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PropPhase1 = "PHASE1"
	PropPhase2 = "PHASE2"
	PropFunded = "FUNDED"

	PropStatusActive = "ACTIVE"
	PropStatusPassed = "PASSED"
	PropStatusFailed = "FAILED"
)

// PropEvaluation tracks a prop-firm challenge. At most one ACTIVE row exists
// per user (enforced by query discipline). A PASSED PHASE1/PHASE2 row spawns
// a new ACTIVE successor with the phase advanced.
type PropEvaluation struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint64 `gorm:"not null;index:idx_prop_user_status" json:"user_id"`

	FirmName string `gorm:"type:varchar(80);not null" json:"firm_name"`
	Phase    string `gorm:"type:varchar(10);not null" json:"phase"`
	Status   string `gorm:"type:varchar(10);not null;index:idx_prop_user_status" json:"status"`

	AccountSize    decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"account_size"`
	ProfitTarget   decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"profit_target"`
	MaxDailyLoss   decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"max_daily_loss"`
	MaxOverallLoss decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"max_overall_loss"`

	Trailing           bool             `gorm:"not null;default:false" json:"trailing"`
	MinTradingDays     int              `gorm:"not null;default:0" json:"min_trading_days"`
	ConsistencyBand    float64          `gorm:"not null;default:0" json:"consistency_band"`
	MaxSingleTradeRisk *decimal.Decimal `gorm:"type:numeric(30,10)" json:"max_single_trade_risk"`

	CumulativeProfit decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"cumulative_profit"`
	PeakEquity       decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"peak_equity"`

	StartDate time.Time  `gorm:"type:timestamptz;not null" json:"start_date"`
	EndDate   *time.Time `gorm:"type:timestamptz" json:"end_date"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (PropEvaluation) TableName() string {
	return "prop_evaluations"
}
