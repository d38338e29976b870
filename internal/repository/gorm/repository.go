package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradejournal/internal/models"
	"tradejournal/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- Trades ------------------------------------------------------------------

func (s *Store) InsertTrade(ctx context.Context, item *models.Trade) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) UpdateTrade(ctx context.Context, item *models.Trade) error {
	if s == nil || s.db == nil || item == nil || item.ID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) GetTradeByID(ctx context.Context, userID, id uint64) (*models.Trade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Trade
	err := s.db.WithContext(ctx).
		Preload("Instrument").
		Preload("Tags").
		Where("user_id = ?", userID).
		Where("id = ?", id).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SoftDeleteTrade(ctx context.Context, userID, id uint64, at time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Where("user_id = ?", userID).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Updates(map[string]any{
			"status":     models.TradeStatusCancelled,
			"deleted_at": at,
		}).Error
}

func (s *Store) RestoreTrade(ctx context.Context, userID, id uint64, status string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Where("user_id = ?", userID).
		Where("id = ?", id).
		Where("deleted_at IS NOT NULL").
		Updates(map[string]any{
			"status":     status,
			"deleted_at": nil,
		}).Error
}

func tradesQuery(db *gorm.DB, params repository.ListTradesParams) *gorm.DB {
	query := db.Model(&models.Trade{}).Where("user_id = ?", params.UserID)
	if !params.IncludeDeleted {
		query = query.Where("deleted_at IS NULL")
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.ClosedOnly {
		query = query.Where("status = ?", models.TradeStatusClosed).
			Where("exit_price IS NOT NULL")
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("entry_at >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("entry_at <= ?", *params.Until)
	}
	if len(params.TagIDs) > 0 {
		query = query.Where(
			"id IN (SELECT trade_id FROM trade_tags WHERE tag_id IN ?)",
			params.TagIDs,
		)
	}
	return query
}

func (s *Store) ListTrades(ctx context.Context, params repository.ListTradesParams) ([]models.Trade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := tradesQuery(s.db.WithContext(ctx), params).
		Preload("Instrument").
		Preload("Tags")
	query = applyOrder(query, params.OrderBy, params.Asc, "entry_at")
	limit := params.Limit
	if limit > 0 {
		query = query.Limit(limit).Offset(normalizeOffset(params.Offset))
	}
	var items []models.Trade
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountTrades(ctx context.Context, params repository.ListTradesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := tradesQuery(s.db.WithContext(ctx), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListClosedTrades(ctx context.Context, userID uint64, since *time.Time) ([]models.Trade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Preload("Instrument").
		Preload("Tags").
		Where("user_id = ?", userID).
		Where("deleted_at IS NULL").
		Where("status = ?", models.TradeStatusClosed).
		Where("exit_price IS NOT NULL").
		Where("exit_at IS NOT NULL")
	if since != nil && !since.IsZero() {
		query = query.Where("exit_at >= ?", *since)
	}
	var items []models.Trade
	if err := query.Order("exit_at asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListUserIDsWithTrades(ctx context.Context) ([]uint64, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var ids []uint64
	err := s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Distinct("user_id").
		Order("user_id asc").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// --- Instruments -------------------------------------------------------------

func (s *Store) GetInstrumentByID(ctx context.Context, id uint64) (*models.Instrument, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Instrument
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertInstrument(ctx context.Context, item *models.Instrument) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.Symbol) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"contract_multiplier",
			"currency",
			"tick_size",
		}),
	}).Create(item).Error
}

func (s *Store) ListInstruments(ctx context.Context) ([]models.Instrument, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Instrument
	if err := s.db.WithContext(ctx).Order("symbol asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Tags --------------------------------------------------------------------

func (s *Store) UpsertTag(ctx context.Context, item *models.Tag) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.Name) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "name"}},
		DoNothing: true,
	}).Create(item).Error
}

func (s *Store) ListTags(ctx context.Context, userID uint64) ([]models.Tag, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Tag
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("name asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- Journal settings --------------------------------------------------------

func (s *Store) GetJournalSettings(ctx context.Context, userID uint64) (*models.JournalSettings, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.JournalSettings
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SaveJournalSettings(ctx context.Context, item *models.JournalSettings) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"initial_equity",
			"risk_per_trade_pct",
			"max_daily_loss_pct",
			"max_consecutive_losses",
			"last_rebuild_at",
			"last_validated_at",
			"updated_at",
		}),
	}).Create(item).Error
}

// --- Daily equity ------------------------------------------------------------

func (s *Store) DeleteDailyEquityTx(ctx context.Context, tx *gorm.DB, userID uint64, from *time.Time) error {
	if s == nil {
		return nil
	}
	db := tx
	if db == nil {
		db = s.db.WithContext(ctx)
	}
	query := db.Where("user_id = ?", userID)
	if from != nil && !from.IsZero() {
		query = query.Where("day >= ?", from.Format("2006-01-02"))
	}
	return query.Delete(&models.DailyEquity{}).Error
}

func (s *Store) UpsertDailyEquityTx(ctx context.Context, tx *gorm.DB, rows []models.DailyEquity) error {
	if s == nil || len(rows) == 0 {
		return nil
	}
	db := tx
	if db == nil {
		db = s.db.WithContext(ctx)
	}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "day"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"realized_pnl",
			"cumulative_equity",
			"trade_count",
			"updated_at",
		}),
	}).Create(&rows).Error
}

func (s *Store) ListDailyEquity(ctx context.Context, userID uint64, params repository.ListDailyEquityParams) ([]models.DailyEquity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.DailyEquity{}).
		Where("user_id = ?", userID)
	if params.From != nil && !params.From.IsZero() {
		query = query.Where("day >= ?", params.From.Format("2006-01-02"))
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("day <= ?", params.Until.Format("2006-01-02"))
	}
	if params.Limit > 0 {
		query = query.Limit(params.Limit)
	}
	var items []models.DailyEquity
	if err := query.Order("day asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetLastDailyEquityBefore(ctx context.Context, userID uint64, day time.Time) (*models.DailyEquity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.DailyEquity
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("day < ?", day.Format("2006-01-02")).
		Order("day desc").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- Goals -------------------------------------------------------------------

func (s *Store) InsertGoal(ctx context.Context, item *models.Goal) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetGoalByID(ctx context.Context, userID, id uint64) (*models.Goal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Goal
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("id = ?", id).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListGoals(ctx context.Context, params repository.ListGoalsParams) ([]models.Goal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.Goal{}).
		Where("user_id = ?", params.UserID)
	if params.Type != nil && strings.TrimSpace(*params.Type) != "" {
		query = query.Where("type = ?", strings.TrimSpace(*params.Type))
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 100)
	var items []models.Goal
	if err := query.Limit(limit).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListActiveGoals(ctx context.Context, userID uint64, at time.Time) ([]models.Goal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Goal
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("start_date <= ?", at).
		Where("end_date >= ?", at).
		Order("created_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateGoalProgress(ctx context.Context, id uint64, currentValue float64, achievedAt *time.Time) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	updates := map[string]any{"current_value": currentValue}
	if achievedAt != nil {
		updates["achieved_at"] = *achievedAt
	}
	return s.db.WithContext(ctx).
		Model(&models.Goal{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (s *Store) DeleteGoal(ctx context.Context, userID, id uint64) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("id = ?", id).
		Delete(&models.Goal{}).Error
}

// --- Risk breach log ---------------------------------------------------------

func (s *Store) InsertRiskBreach(ctx context.Context, item *models.RiskBreachLog) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) CountRiskBreaches(ctx context.Context, userID uint64, breachType string, since time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	query := s.db.WithContext(ctx).
		Model(&models.RiskBreachLog{}).
		Where("user_id = ?", userID).
		Where("created_at >= ?", since)
	if strings.TrimSpace(breachType) != "" {
		query = query.Where("breach_type = ?", strings.TrimSpace(breachType))
	}
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListRiskBreaches(ctx context.Context, userID uint64, limit int) ([]models.RiskBreachLog, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.RiskBreachLog
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(normalizeLimit(limit, 50)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- Prop evaluations --------------------------------------------------------

func (s *Store) InsertPropEvaluation(ctx context.Context, item *models.PropEvaluation) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetActivePropEvaluation(ctx context.Context, userID uint64) (*models.PropEvaluation, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.PropEvaluation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("status = ?", models.PropStatusActive).
		Order("created_at desc").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListPropEvaluations(ctx context.Context, userID uint64) ([]models.PropEvaluation, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.PropEvaluation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdatePropEvaluationStatus(ctx context.Context, id uint64, status string, endDate *time.Time) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	updates := map[string]any{"status": status}
	if endDate != nil {
		updates["end_date"] = *endDate
	}
	return s.db.WithContext(ctx).
		Model(&models.PropEvaluation{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (s *Store) UpdatePropEvaluationProgress(ctx context.Context, id uint64, cumulativeProfit, peakEquity decimal.Decimal) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.PropEvaluation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"cumulative_profit": cumulativeProfit,
			"peak_equity":       peakEquity,
		}).Error
}

// --- Export jobs -------------------------------------------------------------

func (s *Store) InsertExportJob(ctx context.Context, item *models.ExportJob) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetExportJob(ctx context.Context, userID, id uint64) (*models.ExportJob, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.ExportJob
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("id = ?", id).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetExportJobByID(ctx context.Context, id uint64) (*models.ExportJob, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.ExportJob
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func exportJobsQuery(db *gorm.DB, params repository.ListExportJobsParams) *gorm.DB {
	query := db.Model(&models.ExportJob{})
	if params.UserID != nil {
		query = query.Where("user_id = ?", *params.UserID)
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	return query
}

func (s *Store) ListExportJobs(ctx context.Context, params repository.ListExportJobsParams) ([]models.ExportJob, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := exportJobsQuery(s.db.WithContext(ctx), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 50)
	var items []models.ExportJob
	if err := query.Limit(limit).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountExportJobs(ctx context.Context, params repository.ListExportJobsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := exportJobsQuery(s.db.WithContext(ctx), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) CountActiveExportJobs(ctx context.Context, userID uint64) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := s.db.WithContext(ctx).
		Model(&models.ExportJob{}).
		Where("user_id = ?", userID).
		Where("status IN ?", []string{models.ExportStatusQueued, models.ExportStatusRunning}).
		Count(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListEligibleQueuedJobs(ctx context.Context, now time.Time, limit int) ([]models.ExportJob, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}
	var items []models.ExportJob
	err := s.db.WithContext(ctx).
		Where("status = ?", models.ExportStatusQueued).
		Where("next_attempt_at IS NULL OR next_attempt_at <= ?", now).
		Order("created_at asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) MarkExportJobRunning(ctx context.Context, id uint64, at time.Time) (bool, error) {
	if s == nil || s.db == nil || id == 0 {
		return false, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.ExportJob{}).
		Where("id = ?", id).
		Where("status = ?", models.ExportStatusQueued).
		Updates(map[string]any{
			"status":     models.ExportStatusRunning,
			"started_at": at,
		})
	return res.RowsAffected > 0, res.Error
}

func (s *Store) RequeueStaleExportJobs(ctx context.Context, runningBefore time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.ExportJob{}).
		Where("status = ?", models.ExportStatusRunning).
		Where("started_at < ?", runningBefore).
		Updates(map[string]any{
			"status":        models.ExportStatusQueued,
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"started_at":    nil,
		})
	return res.RowsAffected, res.Error
}

func (s *Store) RequeueExportJob(ctx context.Context, id uint64, attemptCount int, nextAttemptAt time.Time, lastErr string) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.ExportJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          models.ExportStatusQueued,
			"attempt_count":   attemptCount,
			"next_attempt_at": nextAttemptAt,
			"error":           lastErr,
			"started_at":      nil,
		}).Error
}

func (s *Store) MarkExportJobCompleted(ctx context.Context, id uint64, result repository.ExportResultUpdate) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.ExportJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         models.ExportStatusCompleted,
			"filename":       result.Filename,
			"content_type":   result.ContentType,
			"payload_base64": result.PayloadBase64,
			"completed_at":   result.CompletedAt,
			"error":          "",
		}).Error
}

func (s *Store) MarkExportJobFailed(ctx context.Context, id uint64, errMsg string, at time.Time) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.ExportJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       models.ExportStatusFailed,
			"error":        errMsg,
			"completed_at": at,
		}).Error
}

func (s *Store) ConsumeDownloadToken(ctx context.Context, id uint64, at time.Time) (bool, error) {
	if s == nil || s.db == nil || id == 0 {
		return false, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.ExportJob{}).
		Where("id = ?", id).
		Where("download_token_consumed_at IS NULL").
		Update("download_token_consumed_at", at)
	return res.RowsAffected > 0, res.Error
}

// --- Export performance ------------------------------------------------------

func (s *Store) InsertExportJobPerformance(ctx context.Context, item *models.ExportJobPerformance) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) PruneExportJobPerformance(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&models.ExportJobPerformance{})
	return res.RowsAffected, res.Error
}

// --- helpers -----------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
