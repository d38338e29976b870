package equity

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tradejournal/internal/config"
	"tradejournal/internal/models"
	"tradejournal/internal/repository"
)

// stubRepo keeps the daily equity table in memory. Only the methods the
// builder touches are implemented; anything else panics via the embedded nil
// interface.
type stubRepo struct {
	repository.Repository
	settings *models.JournalSettings
	trades   []models.Trade
	rows     map[string]models.DailyEquity
}

func newStubRepo(trades []models.Trade) *stubRepo {
	initial := decimal.NewFromInt(10000)
	return &stubRepo{
		settings: &models.JournalSettings{UserID: 1, InitialEquity: initial},
		trades:   trades,
		rows:     map[string]models.DailyEquity{},
	}
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (s *stubRepo) GetJournalSettings(ctx context.Context, userID uint64) (*models.JournalSettings, error) {
	return s.settings, nil
}

func (s *stubRepo) SaveJournalSettings(ctx context.Context, item *models.JournalSettings) error {
	s.settings = item
	return nil
}

func (s *stubRepo) ListClosedTrades(ctx context.Context, userID uint64, since *time.Time) ([]models.Trade, error) {
	var out []models.Trade
	for _, trade := range s.trades {
		if !trade.Closed() {
			continue
		}
		if since != nil && trade.ExitAt.Before(*since) {
			continue
		}
		out = append(out, trade)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExitAt.Before(*out[j].ExitAt) })
	return out, nil
}

func (s *stubRepo) ListUserIDsWithTrades(ctx context.Context) ([]uint64, error) {
	if len(s.trades) == 0 {
		return nil, nil
	}
	return []uint64{1}, nil
}

func (s *stubRepo) DeleteDailyEquityTx(ctx context.Context, tx *gorm.DB, userID uint64, from *time.Time) error {
	for key, row := range s.rows {
		if from == nil || !row.Day.Before(*from) {
			delete(s.rows, key)
		}
	}
	return nil
}

func (s *stubRepo) UpsertDailyEquityTx(ctx context.Context, tx *gorm.DB, rows []models.DailyEquity) error {
	for _, row := range rows {
		s.rows[dayKey(row.Day)] = row
	}
	return nil
}

func (s *stubRepo) ListDailyEquity(ctx context.Context, userID uint64, params repository.ListDailyEquityParams) ([]models.DailyEquity, error) {
	var out []models.DailyEquity
	for _, row := range s.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (s *stubRepo) GetLastDailyEquityBefore(ctx context.Context, userID uint64, day time.Time) (*models.DailyEquity, error) {
	var best *models.DailyEquity
	for key := range s.rows {
		row := s.rows[key]
		if !row.Day.Before(day) {
			continue
		}
		if best == nil || row.Day.After(best.Day) {
			copied := row
			best = &copied
		}
	}
	return best, nil
}

func closedTrade(day time.Time, entry, exit string, qty int64, direction string) models.Trade {
	e, _ := decimal.NewFromString(entry)
	x, _ := decimal.NewFromString(exit)
	exitAt := day.Add(15 * time.Hour)
	return models.Trade{
		UserID:     1,
		Direction:  direction,
		Status:     models.TradeStatusClosed,
		EntryPrice: e,
		ExitPrice:  &x,
		Quantity:   qty,
		EntryAt:    day.Add(14 * time.Hour),
		ExitAt:     &exitAt,
	}
}

func day(s string) time.Time {
	t, _ := time.ParseInLocation("2006-01-02", s, time.UTC)
	return t
}

func newBuilder(repo repository.Repository) *Builder {
	return &Builder{
		Repo:   repo,
		Config: config.EquityConfig{DefaultInitialEquity: 10000, Tolerance: 0.009},
	}
}

func TestRebuild_CumulativeInvariant(t *testing.T) {
	repo := newStubRepo([]models.Trade{
		closedTrade(day("2026-01-05"), "100", "110", 1, models.DirectionLong), // +10
		closedTrade(day("2026-01-05"), "100", "95", 1, models.DirectionLong),  // -5
		closedTrade(day("2026-01-07"), "50", "40", 2, models.DirectionShort),  // +20
	})
	b := newBuilder(repo)
	if err := b.Rebuild(context.Background(), 1, nil); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	rows, _ := repo.ListDailyEquity(context.Background(), 1, repository.ListDailyEquityParams{})
	if len(rows) != 2 {
		t.Fatalf("rows=%d want 2", len(rows))
	}
	if rows[0].RealizedPnL.Cmp(decimal.NewFromInt(5)) != 0 {
		t.Fatalf("day1 pnl=%s want 5", rows[0].RealizedPnL)
	}
	if rows[0].CumulativeEquity.Cmp(decimal.NewFromInt(10005)) != 0 {
		t.Fatalf("day1 equity=%s want 10005", rows[0].CumulativeEquity)
	}
	if rows[0].TradeCount != 2 {
		t.Fatalf("day1 count=%d want 2", rows[0].TradeCount)
	}
	if rows[1].CumulativeEquity.Cmp(decimal.NewFromInt(10025)) != 0 {
		t.Fatalf("day2 equity=%s want 10025", rows[1].CumulativeEquity)
	}
}

func TestRebuild_Idempotent(t *testing.T) {
	repo := newStubRepo([]models.Trade{
		closedTrade(day("2026-02-01"), "10", "12", 3, models.DirectionLong),
		closedTrade(day("2026-02-02"), "10", "9", 1, models.DirectionLong),
	})
	b := newBuilder(repo)
	ctx := context.Background()
	if err := b.Rebuild(ctx, 1, nil); err != nil {
		t.Fatalf("first rebuild: %v", err)
	}
	first, _ := repo.ListDailyEquity(ctx, 1, repository.ListDailyEquityParams{})
	if err := b.Rebuild(ctx, 1, nil); err != nil {
		t.Fatalf("second rebuild: %v", err)
	}
	second, _ := repo.ListDailyEquity(ctx, 1, repository.ListDailyEquityParams{})

	if len(first) != len(second) {
		t.Fatalf("row count changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Day.Equal(second[i].Day) ||
			first[i].RealizedPnL.Cmp(second[i].RealizedPnL) != 0 ||
			first[i].CumulativeEquity.Cmp(second[i].CumulativeEquity) != 0 ||
			first[i].TradeCount != second[i].TradeCount {
			t.Fatalf("row %d differs after second rebuild", i)
		}
	}
}

func TestRebuildFromDate_SeedsFromPriorRow(t *testing.T) {
	repo := newStubRepo([]models.Trade{
		closedTrade(day("2026-03-01"), "100", "120", 1, models.DirectionLong), // +20
		closedTrade(day("2026-03-03"), "100", "90", 1, models.DirectionLong),  // -10
	})
	b := newBuilder(repo)
	ctx := context.Background()
	if err := b.Rebuild(ctx, 1, nil); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	// Partial rebuild from the second day must not touch the first row and
	// must chain its cumulative equity.
	if err := b.RebuildFromDate(ctx, 1, day("2026-03-03").Add(3*time.Hour)); err != nil {
		t.Fatalf("incremental rebuild: %v", err)
	}
	rows, _ := repo.ListDailyEquity(ctx, 1, repository.ListDailyEquityParams{})
	if len(rows) != 2 {
		t.Fatalf("rows=%d want 2", len(rows))
	}
	if rows[1].CumulativeEquity.Cmp(decimal.NewFromInt(10010)) != 0 {
		t.Fatalf("chained equity=%s want 10010", rows[1].CumulativeEquity)
	}
}

func TestValidate_CleanAfterRebuild(t *testing.T) {
	repo := newStubRepo([]models.Trade{
		closedTrade(day("2026-04-01"), "10", "11", 10, models.DirectionLong),
		closedTrade(day("2026-04-02"), "10", "12", 1, models.DirectionShort),
	})
	b := newBuilder(repo)
	ctx := context.Background()
	if err := b.Rebuild(ctx, 1, nil); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	report, err := b.Validate(ctx, 1)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !report.Clean() {
		t.Fatalf("expected clean report, got %+v", report)
	}
}

func TestValidate_DetectsDrift(t *testing.T) {
	repo := newStubRepo([]models.Trade{
		closedTrade(day("2026-05-01"), "10", "11", 10, models.DirectionLong),
	})
	b := newBuilder(repo)
	ctx := context.Background()
	if err := b.Rebuild(ctx, 1, nil); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	// Corrupt the stored row beyond tolerance.
	key := dayKey(day("2026-05-01"))
	row := repo.rows[key]
	row.RealizedPnL = row.RealizedPnL.Add(decimal.NewFromFloat(0.5))
	repo.rows[key] = row

	report, err := b.Validate(ctx, 1)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(report.Discrepancies) == 0 {
		t.Fatalf("expected discrepancy, got %+v", report)
	}
}
