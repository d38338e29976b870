package models

import "time"

const (
	GoalTotalPnL         = "TOTAL_PNL"
	GoalTradeCount       = "TRADE_COUNT"
	GoalWinRate          = "WIN_RATE"
	GoalProfitFactor     = "PROFIT_FACTOR"
	GoalExpectancy       = "EXPECTANCY"
	GoalAvgLossCap       = "AVG_LOSS_CAP"
	GoalDailyGreenStreak = "DAILY_GREEN_STREAK"
	GoalRolling30DPnL    = "ROLLING_30D_PNL"
	GoalRollingWindowPnL = "ROLLING_WINDOW_PNL"
)

// Goal tracks a user target. CurrentValue is derived on every recalculation;
// AchievedAt is set once and never cleared even if CurrentValue later
// regresses below target.
type Goal struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint64 `gorm:"not null;index" json:"user_id"`

	Type   string `gorm:"type:varchar(30);not null;index" json:"type"`
	Period string `gorm:"type:varchar(20);not null;default:custom" json:"period"`

	TargetValue  float64 `gorm:"not null" json:"target_value"`
	CurrentValue float64 `gorm:"not null;default:0" json:"current_value"`

	StartDate  time.Time `gorm:"type:timestamptz;not null" json:"start_date"`
	EndDate    time.Time `gorm:"type:timestamptz;not null" json:"end_date"`
	WindowDays int       `gorm:"not null;default:0" json:"window_days"`

	AchievedAt *time.Time `gorm:"type:timestamptz" json:"achieved_at"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Goal) TableName() string {
	return "goals"
}

// GoalTypes lists every supported goal kind.
func GoalTypes() []string {
	return []string{
		GoalTotalPnL,
		GoalTradeCount,
		GoalWinRate,
		GoalProfitFactor,
		GoalExpectancy,
		GoalAvgLossCap,
		GoalDailyGreenStreak,
		GoalRolling30DPnL,
		GoalRollingWindowPnL,
	}
}
