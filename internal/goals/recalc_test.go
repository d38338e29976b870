package goals

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradejournal/internal/models"
	"tradejournal/internal/repository"
)

type stubRepo struct {
	repository.Repository

	mu      sync.Mutex
	goals   []models.Goal
	trades  []models.Trade
	recalcs int
}

func (s *stubRepo) ListActiveGoals(ctx context.Context, userID uint64, at time.Time) ([]models.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Goal, len(s.goals))
	copy(out, s.goals)
	return out, nil
}

func (s *stubRepo) ListClosedTrades(ctx context.Context, userID uint64, since *time.Time) ([]models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recalcs++
	return s.trades, nil
}

func (s *stubRepo) UpdateGoalProgress(ctx context.Context, id uint64, currentValue float64, achievedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.goals {
		if s.goals[i].ID != id {
			continue
		}
		s.goals[i].CurrentValue = currentValue
		if achievedAt != nil {
			at := *achievedAt
			s.goals[i].AchievedAt = &at
		}
	}
	return nil
}

func closedTradeAt(exitAt time.Time, pnlValue string) models.Trade {
	// entry 0, exit = pnl, qty 1 long: realized equals exit price.
	exit, _ := decimal.NewFromString(pnlValue)
	return models.Trade{
		UserID:     1,
		Direction:  models.DirectionLong,
		Status:     models.TradeStatusClosed,
		EntryPrice: decimal.Zero,
		ExitPrice:  &exit,
		Quantity:   1,
		EntryAt:    exitAt.Add(-time.Hour),
		ExitAt:     &exitAt,
	}
}

func activeGoal(id uint64, goalType string, target float64) models.Goal {
	now := time.Now().UTC()
	return models.Goal{
		ID:          id,
		UserID:      1,
		Type:        goalType,
		TargetValue: target,
		StartDate:   now.AddDate(0, -1, 0),
		EndDate:     now.AddDate(0, 1, 0),
	}
}

func TestComputeAggregates_SharedFigures(t *testing.T) {
	now := time.Now().UTC()
	trades := []models.Trade{
		closedTradeAt(now.Add(-48*time.Hour), "100"),
		closedTradeAt(now.Add(-24*time.Hour), "-40"),
		closedTradeAt(now.Add(-2*time.Hour), "60"),
	}
	agg := computeAggregates(trades, now, 180)
	if agg.totalPnL != 120 {
		t.Fatalf("totalPnL=%v want 120", agg.totalPnL)
	}
	if agg.tradeCount != 3 {
		t.Fatalf("tradeCount=%d want 3", agg.tradeCount)
	}
	wantWinRate := 2.0 / 3.0
	if math.Abs(agg.winRate-wantWinRate) > 1e-9 {
		t.Fatalf("winRate=%v want %v", agg.winRate, wantWinRate)
	}
	if math.Abs(agg.profitFactor-4) > 1e-9 {
		t.Fatalf("profitFactor=%v want 4", agg.profitFactor)
	}
	// expectancy = winRate*avgWin - (1-winRate)*avgLoss = 2/3*80 - 1/3*40
	wantExpectancy := wantWinRate*80 - (1-wantWinRate)*40
	if math.Abs(agg.expectancy-wantExpectancy) > 1e-9 {
		t.Fatalf("expectancy=%v want %v", agg.expectancy, wantExpectancy)
	}
}

func TestComputeAggregates_ProfitFactorInfinity(t *testing.T) {
	now := time.Now().UTC()
	agg := computeAggregates([]models.Trade{
		closedTradeAt(now.Add(-time.Hour), "50"),
	}, now, 180)
	if !math.IsInf(agg.profitFactor, 1) {
		t.Fatalf("profitFactor=%v want +Inf", agg.profitFactor)
	}
}

func TestComputeAggregates_StreakBreaksOnEmptyToday(t *testing.T) {
	now := time.Now().UTC()
	// Green days yesterday and the day before, nothing today.
	agg := computeAggregates([]models.Trade{
		closedTradeAt(now.AddDate(0, 0, -1), "10"),
		closedTradeAt(now.AddDate(0, 0, -2), "10"),
	}, now, 180)
	if agg.greenStreak != 0 {
		t.Fatalf("greenStreak=%d want 0 (no trades today breaks the streak)", agg.greenStreak)
	}

	// A winning trade today extends back through the green days.
	agg = computeAggregates([]models.Trade{
		closedTradeAt(now, "5"),
		closedTradeAt(now.AddDate(0, 0, -1), "10"),
		closedTradeAt(now.AddDate(0, 0, -2), "-3"),
	}, now, 180)
	if agg.greenStreak != 2 {
		t.Fatalf("greenStreak=%d want 2", agg.greenStreak)
	}
}

func TestRollingPnL_Memoized(t *testing.T) {
	now := time.Now().UTC()
	agg := computeAggregates([]models.Trade{
		closedTradeAt(now.AddDate(0, 0, -5), "10"),
		closedTradeAt(now.AddDate(0, 0, -45), "99"),
	}, now, 180)
	if got := agg.rollingPnL(30); got != 10 {
		t.Fatalf("rolling30=%v want 10", got)
	}
	if got := agg.rollingPnL(60); got != 109 {
		t.Fatalf("rolling60=%v want 109", got)
	}
	// Cached value must be stable.
	if got := agg.rollingPnL(30); got != 10 {
		t.Fatalf("rolling30 cached=%v want 10", got)
	}
}

func TestRecalc_AchievedAtMonotonic(t *testing.T) {
	now := time.Now().UTC()
	repo := &stubRepo{
		goals: []models.Goal{activeGoal(1, models.GoalTotalPnL, 100)},
		trades: []models.Trade{
			closedTradeAt(now.Add(-time.Hour), "150"),
		},
	}
	engine := &Engine{Repo: repo}
	ctx := context.Background()

	if err := engine.Recalc(ctx, 1); err != nil {
		t.Fatalf("recalc: %v", err)
	}
	if repo.goals[0].AchievedAt == nil {
		t.Fatalf("expected achievedAt set at 150 >= 100")
	}
	achieved := *repo.goals[0].AchievedAt

	// Regress below target; achievedAt must survive.
	repo.mu.Lock()
	repo.trades = []models.Trade{closedTradeAt(now.Add(-time.Hour), "10")}
	repo.mu.Unlock()
	if err := engine.Recalc(ctx, 1); err != nil {
		t.Fatalf("recalc: %v", err)
	}
	if repo.goals[0].CurrentValue != 10 {
		t.Fatalf("currentValue=%v want 10", repo.goals[0].CurrentValue)
	}
	if repo.goals[0].AchievedAt == nil || !repo.goals[0].AchievedAt.Equal(achieved) {
		t.Fatalf("achievedAt changed after regression: %v", repo.goals[0].AchievedAt)
	}
}

func TestRecalc_AvgLossCapInverted(t *testing.T) {
	now := time.Now().UTC()
	repo := &stubRepo{
		goals: []models.Goal{activeGoal(1, models.GoalAvgLossCap, 50)},
		trades: []models.Trade{
			closedTradeAt(now.Add(-2*time.Hour), "-30"),
			closedTradeAt(now.Add(-time.Hour), "80"),
		},
	}
	engine := &Engine{Repo: repo}
	if err := engine.Recalc(context.Background(), 1); err != nil {
		t.Fatalf("recalc: %v", err)
	}
	if repo.goals[0].CurrentValue != 30 {
		t.Fatalf("currentValue=%v want 30", repo.goals[0].CurrentValue)
	}
	if repo.goals[0].AchievedAt == nil {
		t.Fatalf("avg loss 30 <= cap 50 should be achieved")
	}
}

func TestScheduler_DebouncesBursts(t *testing.T) {
	repo := &stubRepo{
		goals: []models.Goal{activeGoal(1, models.GoalTradeCount, 5)},
	}
	engine := &Engine{Repo: repo}
	sched := NewScheduler(engine, nil, 20*time.Millisecond)
	defer sched.Close()

	for i := 0; i < 10; i++ {
		sched.Schedule(1)
	}
	time.Sleep(120 * time.Millisecond)

	repo.mu.Lock()
	recalcs := repo.recalcs
	repo.mu.Unlock()
	if recalcs != 1 {
		t.Fatalf("recalcs=%d want 1 (burst collapsed)", recalcs)
	}
}

func TestScheduler_CloseCancelsPending(t *testing.T) {
	repo := &stubRepo{goals: []models.Goal{activeGoal(1, models.GoalTradeCount, 5)}}
	engine := &Engine{Repo: repo}
	sched := NewScheduler(engine, nil, 50*time.Millisecond)
	sched.Schedule(1)
	sched.Close()
	time.Sleep(100 * time.Millisecond)

	repo.mu.Lock()
	recalcs := repo.recalcs
	repo.mu.Unlock()
	if recalcs != 0 {
		t.Fatalf("recalcs=%d want 0 after Close", recalcs)
	}
}
