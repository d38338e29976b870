// Package risk detects per-user risk breaches (daily loss percentage and
// consecutive-loss streaks) and gates new trade creation on hard breaches.
package risk

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tradejournal/internal/config"
	"tradejournal/internal/models"
	"tradejournal/internal/pnl"
	"tradejournal/internal/repository"
)

type Breach struct {
	Type    string  `json:"type"`
	Message string  `json:"message"`
	Value   float64 `json:"value"`
	Limit   float64 `json:"limit"`
}

type Evaluator struct {
	Repo   repository.Repository
	Logger *zap.Logger
	Config config.RiskConfig
}

// Evaluate computes today's breaches. Detection always returns the full list;
// persistence to the breach log is suppressed to at most one row per breach
// type per suppression window per day so rapid successive trade edits do not
// produce alert storms.
func (e *Evaluator) Evaluate(ctx context.Context, userID uint64) ([]Breach, error) {
	if e == nil || e.Repo == nil {
		return nil, nil
	}
	settings, err := e.Repo.GetJournalSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, nil
	}
	trades, err := e.Repo.ListClosedTrades(ctx, userID, nil)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	breaches := detect(settings, trades, dayStart, e.defaultConsecutiveLosses())
	for _, breach := range breaches {
		e.logBreach(ctx, userID, breach, now, dayStart)
	}
	return breaches, nil
}

// detect is the pure half of Evaluate: today's realized loss against the
// dynamic equity baseline (initial equity plus all realized P/L strictly
// before today), and the longest run of consecutive losing trades among
// today's closed trades in exit order.
func detect(settings *models.JournalSettings, trades []models.Trade, dayStart time.Time, defaultStreak int) []Breach {
	var todayPnL, priorPnL float64
	var run, maxRun int
	for _, trade := range trades {
		realized := pnl.ForTrade(trade)
		if realized == nil || trade.ExitAt == nil {
			continue
		}
		v, _ := realized.Float64()
		if trade.ExitAt.Before(dayStart) {
			priorPnL += v
			continue
		}
		todayPnL += v
		if v < 0 {
			run++
			if run > maxRun {
				maxRun = run
			}
		} else {
			run = 0
		}
	}

	var breaches []Breach

	initial, _ := settings.InitialEquity.Float64()
	baseline := initial + priorPnL
	if settings.MaxDailyLossPct > 0 && baseline > 0 && todayPnL < 0 {
		lossPct := -todayPnL / baseline * 100
		if lossPct > settings.MaxDailyLossPct {
			breaches = append(breaches, Breach{
				Type:    models.BreachDailyLoss,
				Message: fmt.Sprintf("daily loss %.2f%% exceeds limit %.2f%%", lossPct, settings.MaxDailyLossPct),
				Value:   lossPct,
				Limit:   settings.MaxDailyLossPct,
			})
		}
	}

	threshold := settings.MaxConsecutiveLosses
	if threshold <= 0 {
		threshold = defaultStreak
	}
	if threshold > 0 && maxRun >= threshold {
		breaches = append(breaches, Breach{
			Type:    models.BreachConsecutiveLosses,
			Message: fmt.Sprintf("%d consecutive losing trades reached limit %d", maxRun, threshold),
			Value:   float64(maxRun),
			Limit:   float64(threshold),
		})
	}
	return breaches
}

func (e *Evaluator) logBreach(ctx context.Context, userID uint64, breach Breach, now, dayStart time.Time) {
	window := e.Config.BreachSuppressionWindow
	if window <= 0 {
		window = 30 * time.Minute
	}
	since := now.Add(-window)
	if since.Before(dayStart) {
		since = dayStart
	}
	count, err := e.Repo.CountRiskBreaches(ctx, userID, breach.Type, since)
	if err != nil {
		if e.Logger != nil {
			e.Logger.Warn("breach suppression check failed", zap.Error(err))
		}
		return
	}
	if count > 0 {
		return
	}
	err = e.Repo.InsertRiskBreach(ctx, &models.RiskBreachLog{
		UserID:     userID,
		BreachType: breach.Type,
		Message:    breach.Message,
		Value:      breach.Value,
		Limit:      breach.Limit,
		CreatedAt:  now,
	})
	if err != nil && e.Logger != nil {
		e.Logger.Warn("breach log insert failed", zap.Error(err))
	}
}

// HasActiveHardBreach reports whether a DAILY_LOSS breach was logged today.
// This is the one breach type that blocks new trade creation; consecutive
// loss breaches are advisory only.
func (e *Evaluator) HasActiveHardBreach(ctx context.Context, userID uint64) (bool, error) {
	if e == nil || e.Repo == nil {
		return false, nil
	}
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	count, err := e.Repo.CountRiskBreaches(ctx, userID, models.BreachDailyLoss, dayStart)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Schedule runs an evaluation in the background. The triggering trade
// mutation never waits for, or fails because of, the evaluation.
func (e *Evaluator) Schedule(userID uint64) {
	if e == nil || e.Repo == nil || userID == 0 {
		return
	}
	go func() {
		if _, err := e.Evaluate(context.Background(), userID); err != nil && e.Logger != nil {
			e.Logger.Warn("risk evaluation failed", zap.Uint64("user_id", userID), zap.Error(err))
		}
	}()
}

func (e *Evaluator) defaultConsecutiveLosses() int {
	if e.Config.DefaultMaxConsecutiveLoss > 0 {
		return e.Config.DefaultMaxConsecutiveLoss
	}
	return 5
}
