package models

import "time"

const (
	BreachDailyLoss         = "DAILY_LOSS"
	BreachConsecutiveLosses = "MAX_CONSECUTIVE_LOSSES"
)

// RiskBreachLog is append-only. Duplicate insertion of the same breach type is
// suppressed within a cooldown window per day by the evaluator, not by the DB.
type RiskBreachLog struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint64 `gorm:"not null;index:idx_breach_user_type" json:"user_id"`

	BreachType string  `gorm:"type:varchar(40);not null;index:idx_breach_user_type" json:"breach_type"`
	Message    string  `gorm:"type:text" json:"message"`
	Value      float64 `gorm:"not null" json:"value"`
	Limit      float64 `gorm:"column:limit_value;not null" json:"limit"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index" json:"created_at"`
}

func (RiskBreachLog) TableName() string {
	return "risk_breach_logs"
}
