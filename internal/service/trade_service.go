package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradejournal/internal/config"
	"tradejournal/internal/equity"
	"tradejournal/internal/goals"
	"tradejournal/internal/models"
	"tradejournal/internal/pnl"
	"tradejournal/internal/repository"
	"tradejournal/internal/risk"
)

var (
	// ErrRiskBlocked rejects a trade while a hard daily-loss breach is active.
	ErrRiskBlocked = errors.New("trading blocked by active risk breach")
	// ErrTradeRiskExceeded rejects a single trade whose exposure crosses the
	// per-trade risk limit. Distinct from ErrRiskBlocked so callers can map
	// the two to different error codes.
	ErrTradeRiskExceeded  = errors.New("trade exceeds per-trade risk limit")
	ErrExitFieldsMismatch = errors.New("exit price and exit time must both be set or both be empty")
	ErrTradeNotFound      = errors.New("trade not found")
	ErrInstrumentNotFound = errors.New("instrument not found")
	ErrInvalidDirection   = errors.New("direction must be LONG or SHORT")
)

// TradeService owns trade mutations and fans out the derived-state refresh
// (goals, risk, daily equity) after each change. The fan-out is best effort;
// a failed recompute never fails the trade operation itself.
type TradeService struct {
	Repo   repository.Repository
	Goals  *goals.Scheduler
	Risk   *risk.Evaluator
	Equity *equity.Builder
	Logger *zap.Logger
	Config config.RiskConfig
}

type TradeInput struct {
	InstrumentID uint64           `json:"instrument_id"`
	Direction    string           `json:"direction"`
	Quantity     int64            `json:"quantity"`
	EntryPrice   decimal.Decimal  `json:"entry_price"`
	ExitPrice    *decimal.Decimal `json:"exit_price"`
	EntryAt      time.Time        `json:"entry_at"`
	ExitAt       *time.Time       `json:"exit_at"`
	Fees         decimal.Decimal  `json:"fees"`
	Notes        string           `json:"notes"`
	TagIDs       []uint64         `json:"tag_ids"`
}

func (in TradeInput) validate() error {
	if in.Direction != models.DirectionLong && in.Direction != models.DirectionShort {
		return ErrInvalidDirection
	}
	if (in.ExitPrice == nil) != (in.ExitAt == nil) {
		return ErrExitFieldsMismatch
	}
	return nil
}

func (s *TradeService) Create(ctx context.Context, userID uint64, in TradeInput) (*models.Trade, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	instrument, err := s.Repo.GetInstrumentByID(ctx, in.InstrumentID)
	if err != nil {
		return nil, err
	}
	if instrument == nil {
		return nil, ErrInstrumentNotFound
	}

	blocked, err := s.Risk.HasActiveHardBreach(ctx, userID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrRiskBlocked
	}
	settings, err := s.ensureSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkPerTradeRisk(ctx, userID, in, *instrument, settings); err != nil {
		return nil, err
	}

	item := &models.Trade{
		UserID:       userID,
		InstrumentID: in.InstrumentID,
		Direction:    in.Direction,
		Status:       models.TradeStatusOpen,
		EntryPrice:   in.EntryPrice,
		ExitPrice:    in.ExitPrice,
		Quantity:     in.Quantity,
		Fees:         in.Fees,
		EntryAt:      in.EntryAt.UTC(),
		ExitAt:       in.ExitAt,
		Notes:        in.Notes,
		Tags:         tagRefs(userID, in.TagIDs),
	}
	if item.ExitPrice != nil {
		item.Status = models.TradeStatusClosed
	}
	if err := s.Repo.InsertTrade(ctx, item); err != nil {
		return nil, err
	}
	item.Instrument = *instrument
	s.fanOut(userID, item)
	return item, nil
}

func (s *TradeService) Update(ctx context.Context, userID, id uint64, in TradeInput) (*models.Trade, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	item, err := s.Repo.GetTradeByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrTradeNotFound
	}
	instrument, err := s.Repo.GetInstrumentByID(ctx, in.InstrumentID)
	if err != nil {
		return nil, err
	}
	if instrument == nil {
		return nil, ErrInstrumentNotFound
	}

	item.InstrumentID = in.InstrumentID
	item.Direction = in.Direction
	item.EntryPrice = in.EntryPrice
	item.ExitPrice = in.ExitPrice
	item.Quantity = in.Quantity
	item.Fees = in.Fees
	item.EntryAt = in.EntryAt.UTC()
	item.ExitAt = in.ExitAt
	item.Notes = in.Notes
	item.Tags = tagRefs(userID, in.TagIDs)
	if item.ExitPrice != nil {
		item.Status = models.TradeStatusClosed
	} else {
		item.Status = models.TradeStatusOpen
	}
	if err := s.Repo.UpdateTrade(ctx, item); err != nil {
		return nil, err
	}
	item.Instrument = *instrument
	s.fanOut(userID, item)
	return item, nil
}

func (s *TradeService) SoftDelete(ctx context.Context, userID, id uint64) error {
	item, err := s.Repo.GetTradeByID(ctx, userID, id)
	if err != nil {
		return err
	}
	if item == nil {
		return ErrTradeNotFound
	}
	if err := s.Repo.SoftDeleteTrade(ctx, userID, id, time.Now().UTC()); err != nil {
		return err
	}
	s.fanOut(userID, item)
	return nil
}

func (s *TradeService) Restore(ctx context.Context, userID, id uint64) (*models.Trade, error) {
	item, err := s.Repo.GetTradeByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrTradeNotFound
	}
	status := models.TradeStatusOpen
	if item.ExitPrice != nil && item.ExitAt != nil {
		status = models.TradeStatusClosed
	}
	if err := s.Repo.RestoreTrade(ctx, userID, id, status); err != nil {
		return nil, err
	}
	item.Status = status
	item.DeletedAt = nil
	s.fanOut(userID, item)
	return item, nil
}

func (s *TradeService) Get(ctx context.Context, userID, id uint64) (*models.Trade, error) {
	item, err := s.Repo.GetTradeByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrTradeNotFound
	}
	return item, nil
}

func (s *TradeService) List(ctx context.Context, params repository.ListTradesParams) ([]models.Trade, int64, error) {
	items, err := s.Repo.ListTrades(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repo.CountTrades(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// RealizedPnL exposes the per-trade figure for DTO assembly.
func (s *TradeService) RealizedPnL(t models.Trade) *decimal.Decimal {
	return pnl.ForTrade(t)
}

// ensureSettings creates the per-user settings row on first access, seeded
// from config defaults.
func (s *TradeService) ensureSettings(ctx context.Context, userID uint64) (*models.JournalSettings, error) {
	settings, err := s.Repo.GetJournalSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if settings != nil {
		return settings, nil
	}
	settings = &models.JournalSettings{
		UserID:               userID,
		InitialEquity:        decimal.NewFromInt(10000),
		RiskPerTradePct:      s.Config.DefaultRiskPerTradePct,
		MaxDailyLossPct:      s.Config.DefaultMaxDailyLossPct,
		MaxConsecutiveLosses: s.Config.DefaultMaxConsecutiveLoss,
	}
	if err := s.Repo.SaveJournalSettings(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// checkPerTradeRisk rejects a new trade whose notional exposure exceeds the
// configured fraction of initial equity.
func (s *TradeService) checkPerTradeRisk(ctx context.Context, userID uint64, in TradeInput, instrument models.Instrument, settings *models.JournalSettings) error {
	if settings == nil || settings.RiskPerTradePct <= 0 {
		return nil
	}
	exposure := in.EntryPrice.Mul(decimal.NewFromInt(in.Quantity)).Mul(instrument.Multiplier()).Abs()
	limit := settings.InitialEquity.Mul(decimal.NewFromFloat(settings.RiskPerTradePct / 100))
	if exposure.GreaterThan(limit) {
		return ErrTradeRiskExceeded
	}
	return nil
}

// fanOut refreshes derived state after a trade mutation. Goal recalculation
// is debounced, risk evaluation is fire and forget, and the equity series is
// rebuilt from the trade's exit day only when there is a realized result.
func (s *TradeService) fanOut(userID uint64, item *models.Trade) {
	if s.Goals != nil {
		s.Goals.Schedule(userID)
	}
	if s.Risk != nil {
		s.Risk.Schedule(userID)
	}
	if s.Equity != nil && item != nil && item.ExitAt != nil {
		from := equity.DayStart(*item.ExitAt)
		go func() {
			if err := s.Equity.RebuildFromDate(context.Background(), userID, from); err != nil && s.Logger != nil {
				s.Logger.Warn("equity rebuild failed", zap.Uint64("user_id", userID), zap.Error(err))
			}
		}()
	}
}

func tagRefs(userID uint64, ids []uint64) []models.Tag {
	if len(ids) == 0 {
		return nil
	}
	out := make([]models.Tag, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Tag{ID: id, UserID: userID})
	}
	return out
}
