// Package equity rebuilds and validates the per-day realized P/L and
// cumulative equity series derived from closed trades.
package equity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tradejournal/internal/config"
	"tradejournal/internal/models"
	"tradejournal/internal/pnl"
	"tradejournal/internal/repository"
)

type Builder struct {
	Repo   repository.Repository
	Logger *zap.Logger
	Config config.EquityConfig
}

// Rebuild recomputes the daily equity series for one user. With a nil from it
// drops and rebuilds everything; otherwise it seeds cumulative equity from the
// last row strictly before from and recomputes only days >= from. The delete
// and the upserts run in a single transaction so a day range is never
// half-written.
func (b *Builder) Rebuild(ctx context.Context, userID uint64, from *time.Time) error {
	if b == nil || b.Repo == nil {
		return nil
	}
	baseline, err := b.baselineEquity(ctx, userID)
	if err != nil {
		return err
	}

	seed := baseline
	var since *time.Time
	if from != nil && !from.IsZero() {
		day := DayStart(*from)
		since = &day
		prev, err := b.Repo.GetLastDailyEquityBefore(ctx, userID, day)
		if err != nil {
			return err
		}
		if prev != nil {
			seed = prev.CumulativeEquity
		}
	}

	trades, err := b.Repo.ListClosedTrades(ctx, userID, since)
	if err != nil {
		return err
	}
	rows := buildRows(userID, trades, seed)

	if err := b.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := b.Repo.DeleteDailyEquityTx(ctx, tx, userID, since); err != nil {
			return err
		}
		return b.Repo.UpsertDailyEquityTx(ctx, tx, rows)
	}); err != nil {
		return err
	}

	b.stampRebuilt(ctx, userID)
	return nil
}

// RebuildFromDate normalizes date to its UTC day start and rebuilds forward.
// Called after any trade close/edit so only the affected range is touched.
func (b *Builder) RebuildFromDate(ctx context.Context, userID uint64, date time.Time) error {
	day := DayStart(date)
	return b.Rebuild(ctx, userID, &day)
}

// RebuildAll walks every user with trades sequentially. Administrative use
// only; fine at small scale.
func (b *Builder) RebuildAll(ctx context.Context) error {
	if b == nil || b.Repo == nil {
		return nil
	}
	ids, err := b.Repo.ListUserIDsWithTrades(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := b.Rebuild(ctx, id, nil); err != nil {
			if b.Logger != nil {
				b.Logger.Warn("equity rebuild failed", zap.Uint64("user_id", id), zap.Error(err))
			}
		}
	}
	return nil
}

// Discrepancy describes one stored day whose money fields disagree with the
// in-memory recomputation beyond the tolerance.
type Discrepancy struct {
	Day      time.Time       `json:"day"`
	Field    string          `json:"field"`
	Stored   decimal.Decimal `json:"stored"`
	Expected decimal.Decimal `json:"expected"`
}

type Report struct {
	Discrepancies []Discrepancy `json:"discrepancies"`
	MissingDays   []time.Time   `json:"missing_days"`
	ExtraDays     []time.Time   `json:"extra_days"`
	CheckedDays   int           `json:"checked_days"`
}

func (r Report) Clean() bool {
	return len(r.Discrepancies) == 0 && len(r.MissingDays) == 0 && len(r.ExtraDays) == 0
}

// Validate recomputes the full series in memory and diffs it against the
// stored rows. It never mutates anything.
func (b *Builder) Validate(ctx context.Context, userID uint64) (Report, error) {
	if b == nil || b.Repo == nil {
		return Report{}, nil
	}
	baseline, err := b.baselineEquity(ctx, userID)
	if err != nil {
		return Report{}, err
	}
	trades, err := b.Repo.ListClosedTrades(ctx, userID, nil)
	if err != nil {
		return Report{}, err
	}
	expected := buildRows(userID, trades, baseline)

	stored, err := b.Repo.ListDailyEquity(ctx, userID, repository.ListDailyEquityParams{})
	if err != nil {
		return Report{}, err
	}

	tolerance := decimal.NewFromFloat(b.Config.Tolerance)
	if tolerance.LessThanOrEqual(decimal.Zero) {
		tolerance = decimal.NewFromFloat(0.009)
	}

	storedByDay := make(map[string]models.DailyEquity, len(stored))
	for _, row := range stored {
		storedByDay[dayKey(row.Day)] = row
	}
	expectedByDay := make(map[string]models.DailyEquity, len(expected))

	report := Report{CheckedDays: len(expected)}
	for _, want := range expected {
		expectedByDay[dayKey(want.Day)] = want
		got, ok := storedByDay[dayKey(want.Day)]
		if !ok {
			report.MissingDays = append(report.MissingDays, want.Day)
			continue
		}
		if got.RealizedPnL.Sub(want.RealizedPnL).Abs().GreaterThan(tolerance) {
			report.Discrepancies = append(report.Discrepancies, Discrepancy{
				Day: want.Day, Field: "realized_pnl",
				Stored: got.RealizedPnL, Expected: want.RealizedPnL,
			})
		}
		if got.CumulativeEquity.Sub(want.CumulativeEquity).Abs().GreaterThan(tolerance) {
			report.Discrepancies = append(report.Discrepancies, Discrepancy{
				Day: want.Day, Field: "cumulative_equity",
				Stored: got.CumulativeEquity, Expected: want.CumulativeEquity,
			})
		}
		if got.TradeCount != want.TradeCount {
			report.Discrepancies = append(report.Discrepancies, Discrepancy{
				Day: want.Day, Field: "trade_count",
				Stored:   decimal.NewFromInt(int64(got.TradeCount)),
				Expected: decimal.NewFromInt(int64(want.TradeCount)),
			})
		}
	}
	for _, row := range stored {
		if _, ok := expectedByDay[dayKey(row.Day)]; !ok {
			report.ExtraDays = append(report.ExtraDays, row.Day)
		}
	}
	return report, nil
}

func (b *Builder) baselineEquity(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	settings, err := b.Repo.GetJournalSettings(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load settings: %w", err)
	}
	if settings == nil {
		return decimal.NewFromFloat(b.Config.DefaultInitialEquity), nil
	}
	return settings.InitialEquity, nil
}

func (b *Builder) stampRebuilt(ctx context.Context, userID uint64) {
	settings, err := b.Repo.GetJournalSettings(ctx, userID)
	if err != nil || settings == nil {
		return
	}
	now := time.Now().UTC()
	settings.LastRebuildAt = &now
	if err := b.Repo.SaveJournalSettings(ctx, settings); err != nil && b.Logger != nil {
		b.Logger.Warn("stamp rebuild time failed", zap.Uint64("user_id", userID), zap.Error(err))
	}
}

// buildRows groups closed trades by UTC calendar day of exit, sums realized
// P/L per day and walks days ascending accumulating cumulative equity from
// seed.
func buildRows(userID uint64, trades []models.Trade, seed decimal.Decimal) []models.DailyEquity {
	type dayAgg struct {
		pnl   decimal.Decimal
		count int
	}
	byDay := map[string]*dayAgg{}
	var keys []string
	for _, trade := range trades {
		realized := pnl.ForTrade(trade)
		if realized == nil || trade.ExitAt == nil {
			continue
		}
		key := dayKey(DayStart(*trade.ExitAt))
		agg, ok := byDay[key]
		if !ok {
			agg = &dayAgg{pnl: decimal.Zero}
			byDay[key] = agg
			keys = append(keys, key)
		}
		agg.pnl = agg.pnl.Add(*realized)
		agg.count++
	}
	sort.Strings(keys)

	rows := make([]models.DailyEquity, 0, len(keys))
	cumulative := seed
	for _, key := range keys {
		day, _ := time.ParseInLocation("2006-01-02", key, time.UTC)
		agg := byDay[key]
		cumulative = cumulative.Add(agg.pnl)
		rows = append(rows, models.DailyEquity{
			UserID:           userID,
			Day:              day,
			RealizedPnL:      agg.pnl,
			CumulativeEquity: cumulative,
			TradeCount:       agg.count,
		})
	}
	return rows
}

// DayStart truncates a timestamp to its UTC calendar day.
func DayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
