package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tradejournal/internal/models"
)

// Repository is the single persistence contract the core components share.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Trades
	InsertTrade(ctx context.Context, item *models.Trade) error
	UpdateTrade(ctx context.Context, item *models.Trade) error
	GetTradeByID(ctx context.Context, userID, id uint64) (*models.Trade, error)
	SoftDeleteTrade(ctx context.Context, userID, id uint64, at time.Time) error
	RestoreTrade(ctx context.Context, userID, id uint64, status string) error
	ListTrades(ctx context.Context, params ListTradesParams) ([]models.Trade, error)
	CountTrades(ctx context.Context, params ListTradesParams) (int64, error)
	// ListClosedTrades returns non-deleted CLOSED trades with a non-nil exit
	// price, ordered by exit time ascending.
	ListClosedTrades(ctx context.Context, userID uint64, since *time.Time) ([]models.Trade, error)
	ListUserIDsWithTrades(ctx context.Context) ([]uint64, error)

	// Instruments (read-only reference data plus seeding)
	GetInstrumentByID(ctx context.Context, id uint64) (*models.Instrument, error)
	UpsertInstrument(ctx context.Context, item *models.Instrument) error
	ListInstruments(ctx context.Context) ([]models.Instrument, error)

	// Tags
	UpsertTag(ctx context.Context, item *models.Tag) error
	ListTags(ctx context.Context, userID uint64) ([]models.Tag, error)

	// Journal settings
	GetJournalSettings(ctx context.Context, userID uint64) (*models.JournalSettings, error)
	SaveJournalSettings(ctx context.Context, item *models.JournalSettings) error

	// Daily equity
	DeleteDailyEquityTx(ctx context.Context, tx *gorm.DB, userID uint64, from *time.Time) error
	UpsertDailyEquityTx(ctx context.Context, tx *gorm.DB, rows []models.DailyEquity) error
	ListDailyEquity(ctx context.Context, userID uint64, params ListDailyEquityParams) ([]models.DailyEquity, error)
	GetLastDailyEquityBefore(ctx context.Context, userID uint64, day time.Time) (*models.DailyEquity, error)

	// Goals
	InsertGoal(ctx context.Context, item *models.Goal) error
	GetGoalByID(ctx context.Context, userID, id uint64) (*models.Goal, error)
	ListGoals(ctx context.Context, params ListGoalsParams) ([]models.Goal, error)
	ListActiveGoals(ctx context.Context, userID uint64, at time.Time) ([]models.Goal, error)
	UpdateGoalProgress(ctx context.Context, id uint64, currentValue float64, achievedAt *time.Time) error
	DeleteGoal(ctx context.Context, userID, id uint64) error

	// Risk breach log
	InsertRiskBreach(ctx context.Context, item *models.RiskBreachLog) error
	CountRiskBreaches(ctx context.Context, userID uint64, breachType string, since time.Time) (int64, error)
	ListRiskBreaches(ctx context.Context, userID uint64, limit int) ([]models.RiskBreachLog, error)

	// Prop evaluations
	InsertPropEvaluation(ctx context.Context, item *models.PropEvaluation) error
	GetActivePropEvaluation(ctx context.Context, userID uint64) (*models.PropEvaluation, error)
	ListPropEvaluations(ctx context.Context, userID uint64) ([]models.PropEvaluation, error)
	UpdatePropEvaluationStatus(ctx context.Context, id uint64, status string, endDate *time.Time) error
	UpdatePropEvaluationProgress(ctx context.Context, id uint64, cumulativeProfit, peakEquity decimal.Decimal) error

	// Export jobs
	InsertExportJob(ctx context.Context, item *models.ExportJob) error
	GetExportJob(ctx context.Context, userID, id uint64) (*models.ExportJob, error)
	GetExportJobByID(ctx context.Context, id uint64) (*models.ExportJob, error)
	ListExportJobs(ctx context.Context, params ListExportJobsParams) ([]models.ExportJob, error)
	CountExportJobs(ctx context.Context, params ListExportJobsParams) (int64, error)
	CountActiveExportJobs(ctx context.Context, userID uint64) (int64, error)
	ListEligibleQueuedJobs(ctx context.Context, now time.Time, limit int) ([]models.ExportJob, error)
	// MarkExportJobRunning claims a queued job; it reports false when the row
	// was no longer queued (claimed by another tick).
	MarkExportJobRunning(ctx context.Context, id uint64, at time.Time) (bool, error)
	RequeueStaleExportJobs(ctx context.Context, runningBefore time.Time) (int64, error)
	RequeueExportJob(ctx context.Context, id uint64, attemptCount int, nextAttemptAt time.Time, lastErr string) error
	MarkExportJobCompleted(ctx context.Context, id uint64, result ExportResultUpdate) error
	MarkExportJobFailed(ctx context.Context, id uint64, errMsg string, at time.Time) error
	// ConsumeDownloadToken stamps the consumption time; it reports false when
	// the token was already consumed.
	ConsumeDownloadToken(ctx context.Context, id uint64, at time.Time) (bool, error)

	// Export performance instrumentation
	InsertExportJobPerformance(ctx context.Context, item *models.ExportJobPerformance) error
	PruneExportJobPerformance(ctx context.Context, before time.Time) (int64, error)
}

type ListTradesParams struct {
	UserID         uint64
	Limit          int
	Offset         int
	Status         *string
	Since          *time.Time
	Until          *time.Time
	TagIDs         []uint64
	IncludeDeleted bool
	ClosedOnly     bool
	OrderBy        string
	Asc            *bool
}

type ListDailyEquityParams struct {
	From  *time.Time
	Until *time.Time
	Limit int
}

type ListGoalsParams struct {
	UserID  uint64
	Limit   int
	Offset  int
	Type    *string
	OrderBy string
	Asc     *bool
}

type ListExportJobsParams struct {
	UserID  *uint64
	Limit   int
	Offset  int
	Status  *string
	OrderBy string
	Asc     *bool
}

type ExportResultUpdate struct {
	Filename      string
	ContentType   string
	PayloadBase64 string
	CompletedAt   time.Time
}
