// Package goals recomputes goal progress for a user from the full closed
// trade set, and debounces mutation-triggered recomputation.
package goals

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"tradejournal/internal/config"
	"tradejournal/internal/models"
	"tradejournal/internal/pnl"
	"tradejournal/internal/repository"
)

type Engine struct {
	Repo   repository.Repository
	Logger *zap.Logger
	Config config.GoalsConfig
}

// Recalc reloads every active goal and recomputes its current value from the
// shared aggregates. AchievedAt is set the first time the achievement
// condition holds and never cleared afterwards.
func (e *Engine) Recalc(ctx context.Context, userID uint64) error {
	if e == nil || e.Repo == nil {
		return nil
	}
	now := time.Now().UTC()
	goals, err := e.Repo.ListActiveGoals(ctx, userID, now)
	if err != nil {
		return err
	}
	if len(goals) == 0 {
		return nil
	}
	trades, err := e.Repo.ListClosedTrades(ctx, userID, nil)
	if err != nil {
		return err
	}

	lookback := e.Config.StreakLookback
	if lookback <= 0 {
		lookback = 180
	}
	agg := computeAggregates(trades, now, lookback)

	for _, goal := range goals {
		current := agg.valueFor(goal)
		var achievedAt *time.Time
		if goal.AchievedAt == nil && achieved(goal, current) {
			at := now
			achievedAt = &at
		}
		if err := e.Repo.UpdateGoalProgress(ctx, goal.ID, current, achievedAt); err != nil {
			return err
		}
	}
	return nil
}

func achieved(goal models.Goal, current float64) bool {
	if goal.Type == models.GoalAvgLossCap {
		return current <= goal.TargetValue
	}
	return current >= goal.TargetValue
}

type aggregates struct {
	totalPnL     float64
	tradeCount   int
	winRate      float64
	profitFactor float64
	expectancy   float64
	avgLoss      float64
	greenStreak  int

	now          time.Time
	pnlByDay     map[string]float64
	tradeByDay   map[string]int
	exitTimes    []time.Time
	exitPnLs     []float64
	rollingCache map[int]float64
}

// computeAggregates walks the closed trade set once and derives every shared
// figure the goal types need. Rolling-window sums are memoized per window
// length since multiple goals can share one.
func computeAggregates(trades []models.Trade, now time.Time, streakLookback int) *aggregates {
	agg := &aggregates{
		now:          now,
		pnlByDay:     map[string]float64{},
		tradeByDay:   map[string]int{},
		rollingCache: map[int]float64{},
	}

	var wins, losses int
	var grossProfit, grossLoss float64
	for _, trade := range trades {
		realized := pnl.ForTrade(trade)
		if realized == nil || trade.ExitAt == nil {
			continue
		}
		v, _ := realized.Float64()
		agg.totalPnL += v
		agg.tradeCount++
		if v > 0 {
			wins++
			grossProfit += v
		} else if v < 0 {
			losses++
			grossLoss += -v
		}
		key := trade.ExitAt.UTC().Format("2006-01-02")
		agg.pnlByDay[key] += v
		agg.tradeByDay[key]++
		agg.exitTimes = append(agg.exitTimes, trade.ExitAt.UTC())
		agg.exitPnLs = append(agg.exitPnLs, v)
	}

	if agg.tradeCount > 0 {
		agg.winRate = float64(wins) / float64(agg.tradeCount)
	}
	switch {
	case grossLoss == 0 && grossProfit > 0:
		agg.profitFactor = math.Inf(1)
	case grossLoss == 0:
		agg.profitFactor = 0
	default:
		agg.profitFactor = grossProfit / grossLoss
	}
	var avgWin float64
	if wins > 0 {
		avgWin = grossProfit / float64(wins)
	}
	if losses > 0 {
		agg.avgLoss = grossLoss / float64(losses)
	}
	agg.expectancy = agg.winRate*avgWin - (1-agg.winRate)*agg.avgLoss

	// Walk backward from today; a day with no trades or non-positive P/L ends
	// the streak. Today having no trades breaks it immediately, it is not
	// skipped.
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for i := 0; i < streakLookback; i++ {
		key := day.Format("2006-01-02")
		if agg.tradeByDay[key] == 0 || agg.pnlByDay[key] <= 0 {
			break
		}
		agg.greenStreak++
		day = day.AddDate(0, 0, -1)
	}

	return agg
}

func (a *aggregates) rollingPnL(windowDays int) float64 {
	if windowDays <= 0 {
		windowDays = 30
	}
	if v, ok := a.rollingCache[windowDays]; ok {
		return v
	}
	cutoff := a.now.AddDate(0, 0, -windowDays)
	var sum float64
	for i, at := range a.exitTimes {
		if at.Before(cutoff) {
			continue
		}
		sum += a.exitPnLs[i]
	}
	a.rollingCache[windowDays] = sum
	return sum
}

func (a *aggregates) valueFor(goal models.Goal) float64 {
	switch goal.Type {
	case models.GoalTotalPnL:
		return a.totalPnL
	case models.GoalTradeCount:
		return float64(a.tradeCount)
	case models.GoalWinRate:
		return a.winRate * 100
	case models.GoalProfitFactor:
		return a.profitFactor
	case models.GoalExpectancy:
		return a.expectancy
	case models.GoalAvgLossCap:
		return a.avgLoss
	case models.GoalDailyGreenStreak:
		return float64(a.greenStreak)
	case models.GoalRolling30DPnL:
		return a.rollingPnL(30)
	case models.GoalRollingWindowPnL:
		return a.rollingPnL(goal.WindowDays)
	default:
		return 0
	}
}
