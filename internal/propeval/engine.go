// Package propeval tracks prop-firm challenge progress and applies the
// PHASE1 -> PHASE2 -> FUNDED rollover rules.
package propeval

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradejournal/internal/models"
	"tradejournal/internal/pnl"
	"tradejournal/internal/repository"
)

const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelBlock = "BLOCK"

	AlertTargetReached      = "target_reached"
	AlertNearTarget         = "near_target"
	AlertDailyLossNear      = "daily_loss_near"
	AlertDailyLossExceeded  = "daily_loss_exceeded"
	AlertOverallLossNear    = "overall_loss_near"
	AlertOverallLossExceed  = "overall_loss_exceeded"
	AlertInconsistentDay    = "inconsistent_day"
	AlertNearTrailingBreach = "near_trailing_breach"
	AlertTrailingBreach     = "trailing_breach"

	ActionNone   = "none"
	ActionFailed = "failed"
	ActionPhase2 = "rolledToPhase2"
	ActionFunded = "rolledToFunded"
)

type Alert struct {
	Code    string `json:"code"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

type Progress struct {
	Evaluation models.PropEvaluation `json:"evaluation"`

	CumulativeProfit decimal.Decimal `json:"cumulative_profit"`
	PeakEquity       decimal.Decimal `json:"peak_equity"`
	CurrentEquity    decimal.Decimal `json:"current_equity"`
	TodayPnL         decimal.Decimal `json:"today_pnl"`
	TodayLoss        decimal.Decimal `json:"today_loss"`
	// RealizedDrawdown is current equity minus peak equity, always <= 0.
	RealizedDrawdown decimal.Decimal `json:"realized_drawdown"`

	RemainingTarget      decimal.Decimal `json:"remaining_target"`
	RemainingDailyLoss   decimal.Decimal `json:"remaining_daily_loss"`
	RemainingOverallLoss decimal.Decimal `json:"remaining_overall_loss"`

	DaysTraded            int      `json:"days_traded"`
	ProjectedDaysToTarget *float64 `json:"projected_days_to_target"`

	Alerts []Alert `json:"alerts"`
}

type Engine struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

// ComputeProgress aggregates closed trades since the active evaluation's
// start date. A nil result with nil error means no ACTIVE evaluation exists,
// which is a valid steady state, not an error.
func (e *Engine) ComputeProgress(ctx context.Context, userID uint64) (*Progress, error) {
	if e == nil || e.Repo == nil {
		return nil, nil
	}
	eval, err := e.Repo.GetActivePropEvaluation(ctx, userID)
	if err != nil {
		return nil, err
	}
	if eval == nil {
		return nil, nil
	}
	trades, err := e.Repo.ListClosedTrades(ctx, userID, &eval.StartDate)
	if err != nil {
		return nil, err
	}
	progress := compute(*eval, trades, time.Now().UTC())

	// Persist the running snapshot; failures are non-fatal.
	err = e.Repo.UpdatePropEvaluationProgress(ctx, eval.ID, progress.CumulativeProfit, progress.PeakEquity)
	if err != nil && e.Logger != nil {
		e.Logger.Warn("prop progress snapshot failed", zap.Uint64("evaluation_id", eval.ID), zap.Error(err))
	}
	return progress, nil
}

func compute(eval models.PropEvaluation, trades []models.Trade, now time.Time) *Progress {
	cumulative := decimal.Zero
	peakProfit := decimal.Zero
	dayPnL := map[string]decimal.Decimal{}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	todayPnL := decimal.Zero
	for _, trade := range trades {
		realized := pnl.ForTrade(trade)
		if realized == nil || trade.ExitAt == nil {
			continue
		}
		cumulative = cumulative.Add(*realized)
		if cumulative.GreaterThan(peakProfit) {
			peakProfit = cumulative
		}
		key := trade.ExitAt.UTC().Format("2006-01-02")
		dayPnL[key] = dayPnL[key].Add(*realized)
		if !trade.ExitAt.Before(dayStart) {
			todayPnL = todayPnL.Add(*realized)
		}
	}

	equity := eval.AccountSize.Add(cumulative)
	peakEquity := eval.AccountSize.Add(peakProfit)

	todayLoss := decimal.Zero
	if todayPnL.IsNegative() {
		todayLoss = todayPnL.Neg()
	}
	overallLoss := decimal.Zero
	if cumulative.IsNegative() {
		overallLoss = cumulative.Neg()
	}

	progress := &Progress{
		Evaluation:           eval,
		CumulativeProfit:     cumulative,
		PeakEquity:           peakEquity,
		CurrentEquity:        equity,
		TodayPnL:             todayPnL,
		TodayLoss:            todayLoss,
		RealizedDrawdown:     equity.Sub(peakEquity),
		RemainingTarget:      eval.ProfitTarget.Sub(cumulative),
		RemainingDailyLoss:   eval.MaxDailyLoss.Sub(todayLoss),
		RemainingOverallLoss: eval.MaxOverallLoss.Sub(overallLoss),
		DaysTraded:           len(dayPnL),
	}

	if progress.DaysTraded > 0 && cumulative.IsPositive() && progress.RemainingTarget.IsPositive() {
		avg := cumulative.Div(decimal.NewFromInt(int64(progress.DaysTraded)))
		if avg.IsPositive() {
			days, _ := progress.RemainingTarget.Div(avg).Float64()
			progress.ProjectedDaysToTarget = &days
		}
	}

	progress.Alerts = buildAlerts(eval, progress, dayPnL)
	return progress
}

func buildAlerts(eval models.PropEvaluation, p *Progress, dayPnL map[string]decimal.Decimal) []Alert {
	var alerts []Alert

	if !p.RemainingTarget.IsPositive() && eval.ProfitTarget.IsPositive() {
		alerts = append(alerts, Alert{
			Code:    AlertTargetReached,
			Level:   LevelInfo,
			Message: fmt.Sprintf("profit target %s reached", eval.ProfitTarget),
		})
	} else if p.ProjectedDaysToTarget != nil && *p.ProjectedDaysToTarget < 3 {
		alerts = append(alerts, Alert{
			Code:    AlertNearTarget,
			Level:   LevelInfo,
			Message: fmt.Sprintf("projected %.1f days to target", *p.ProjectedDaysToTarget),
		})
	}

	if eval.MaxDailyLoss.IsPositive() {
		switch {
		case p.TodayLoss.GreaterThanOrEqual(eval.MaxDailyLoss):
			alerts = append(alerts, Alert{
				Code:    AlertDailyLossExceeded,
				Level:   LevelBlock,
				Message: fmt.Sprintf("today's loss %s exceeds daily limit %s", p.TodayLoss, eval.MaxDailyLoss),
			})
		case p.TodayLoss.GreaterThanOrEqual(eval.MaxDailyLoss.Mul(decimal.NewFromFloat(0.8))):
			alerts = append(alerts, Alert{
				Code:    AlertDailyLossNear,
				Level:   LevelWarn,
				Message: fmt.Sprintf("today's loss %s is at 80%% of daily limit %s", p.TodayLoss, eval.MaxDailyLoss),
			})
		}
	}

	if eval.MaxOverallLoss.IsPositive() {
		overallLoss := eval.MaxOverallLoss.Sub(p.RemainingOverallLoss)
		switch {
		case overallLoss.GreaterThanOrEqual(eval.MaxOverallLoss):
			alerts = append(alerts, Alert{
				Code:    AlertOverallLossExceed,
				Level:   LevelBlock,
				Message: fmt.Sprintf("overall loss %s exceeds limit %s", overallLoss, eval.MaxOverallLoss),
			})
		case overallLoss.GreaterThanOrEqual(eval.MaxOverallLoss.Mul(decimal.NewFromFloat(0.8))):
			alerts = append(alerts, Alert{
				Code:    AlertOverallLossNear,
				Level:   LevelWarn,
				Message: fmt.Sprintf("overall loss %s is at 80%% of limit %s", overallLoss, eval.MaxOverallLoss),
			})
		}
	}

	if eval.ConsistencyBand > 0 && len(dayPnL) > 1 {
		top := decimal.Zero
		for _, v := range dayPnL {
			if v.Abs().GreaterThan(top) {
				top = v.Abs()
			}
		}
		threshold := top.Mul(decimal.NewFromFloat(eval.ConsistencyBand)).Mul(decimal.NewFromFloat(0.25))
		for day, v := range dayPnL {
			if v.Abs().LessThan(threshold) {
				alerts = append(alerts, Alert{
					Code:    AlertInconsistentDay,
					Level:   LevelInfo,
					Message: fmt.Sprintf("day %s P/L %s is under 25%% of the band-scaled top day", day, v),
				})
				break
			}
		}
	}

	if eval.Trailing && eval.MaxOverallLoss.IsPositive() {
		floor := p.PeakEquity.Sub(eval.MaxOverallLoss)
		headroom := p.CurrentEquity.Sub(floor)
		switch {
		case !headroom.IsPositive():
			alerts = append(alerts, Alert{
				Code:    AlertTrailingBreach,
				Level:   LevelBlock,
				Message: fmt.Sprintf("equity %s breached trailing floor %s", p.CurrentEquity, floor),
			})
		case headroom.LessThanOrEqual(eval.MaxOverallLoss.Mul(decimal.NewFromFloat(0.2))):
			alerts = append(alerts, Alert{
				Code:    AlertNearTrailingBreach,
				Level:   LevelWarn,
				Message: fmt.Sprintf("equity %s within %s of trailing floor %s", p.CurrentEquity, headroom, floor),
			})
		}
	}

	return alerts
}

// EvaluateAndMaybeRollover re-derives progress and applies the terminal
// transitions. Once an evaluation is PASSED or FAILED, later calls find no
// ACTIVE row and return ActionNone, so the operation is idempotent in effect.
func (e *Engine) EvaluateAndMaybeRollover(ctx context.Context, userID uint64) (string, error) {
	if e == nil || e.Repo == nil {
		return ActionNone, nil
	}
	progress, err := e.ComputeProgress(ctx, userID)
	if err != nil {
		return ActionNone, err
	}
	if progress == nil {
		return ActionNone, nil
	}
	eval := progress.Evaluation
	now := time.Now().UTC()

	for _, alert := range progress.Alerts {
		if alert.Level != LevelBlock {
			continue
		}
		if err := e.Repo.UpdatePropEvaluationStatus(ctx, eval.ID, models.PropStatusFailed, &now); err != nil {
			return ActionNone, err
		}
		if e.Logger != nil {
			e.Logger.Info("prop evaluation failed",
				zap.Uint64("evaluation_id", eval.ID),
				zap.String("reason", alert.Code),
			)
		}
		return ActionFailed, nil
	}

	if eval.Phase == models.PropFunded {
		return ActionNone, nil
	}
	if progress.RemainingTarget.IsPositive() || progress.DaysTraded < eval.MinTradingDays {
		return ActionNone, nil
	}

	if err := e.Repo.UpdatePropEvaluationStatus(ctx, eval.ID, models.PropStatusPassed, &now); err != nil {
		return ActionNone, err
	}
	successor := successorOf(eval, now)
	if err := e.Repo.InsertPropEvaluation(ctx, &successor); err != nil {
		return ActionNone, err
	}
	if e.Logger != nil {
		e.Logger.Info("prop evaluation passed",
			zap.Uint64("evaluation_id", eval.ID),
			zap.String("next_phase", successor.Phase),
		)
	}
	if successor.Phase == models.PropFunded {
		return ActionFunded, nil
	}
	return ActionPhase2, nil
}

// successorOf carries the account parameters forward. PHASE1 advances to
// PHASE2 unchanged; PHASE2 advances to FUNDED with the profit target and
// minimum trading days reset to zero.
func successorOf(eval models.PropEvaluation, now time.Time) models.PropEvaluation {
	next := models.PropEvaluation{
		UserID:             eval.UserID,
		FirmName:           eval.FirmName,
		Status:             models.PropStatusActive,
		AccountSize:        eval.AccountSize,
		ProfitTarget:       eval.ProfitTarget,
		MaxDailyLoss:       eval.MaxDailyLoss,
		MaxOverallLoss:     eval.MaxOverallLoss,
		Trailing:           eval.Trailing,
		MinTradingDays:     eval.MinTradingDays,
		ConsistencyBand:    eval.ConsistencyBand,
		MaxSingleTradeRisk: eval.MaxSingleTradeRisk,
		StartDate:          now,
	}
	if eval.Phase == models.PropPhase1 {
		next.Phase = models.PropPhase2
	} else {
		next.Phase = models.PropFunded
		next.ProfitTarget = decimal.Zero
		next.MinTradingDays = 0
	}
	return next
}
