package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradejournal/internal/models"
	"tradejournal/internal/repository"
	"tradejournal/internal/risk"
)

type stubRepo struct {
	repository.Repository

	instruments map[uint64]models.Instrument
	settings    map[uint64]*models.JournalSettings
	trades      map[uint64]*models.Trade
	nextID      uint64

	hardBreaches int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		instruments: map[uint64]models.Instrument{},
		settings:    map[uint64]*models.JournalSettings{},
		trades:      map[uint64]*models.Trade{},
	}
}

func (s *stubRepo) GetInstrumentByID(ctx context.Context, id uint64) (*models.Instrument, error) {
	item, ok := s.instruments[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *stubRepo) GetJournalSettings(ctx context.Context, userID uint64) (*models.JournalSettings, error) {
	item, ok := s.settings[userID]
	if !ok {
		return nil, nil
	}
	out := *item
	return &out, nil
}

func (s *stubRepo) SaveJournalSettings(ctx context.Context, item *models.JournalSettings) error {
	s.settings[item.UserID] = item
	return nil
}

func (s *stubRepo) InsertTrade(ctx context.Context, item *models.Trade) error {
	s.nextID++
	item.ID = s.nextID
	copied := *item
	s.trades[item.ID] = &copied
	return nil
}

func (s *stubRepo) UpdateTrade(ctx context.Context, item *models.Trade) error {
	copied := *item
	s.trades[item.ID] = &copied
	return nil
}

func (s *stubRepo) GetTradeByID(ctx context.Context, userID, id uint64) (*models.Trade, error) {
	item, ok := s.trades[id]
	if !ok || item.UserID != userID {
		return nil, nil
	}
	out := *item
	return &out, nil
}

func (s *stubRepo) SoftDeleteTrade(ctx context.Context, userID, id uint64, at time.Time) error {
	item := s.trades[id]
	item.Status = models.TradeStatusCancelled
	item.DeletedAt = &at
	return nil
}

func (s *stubRepo) RestoreTrade(ctx context.Context, userID, id uint64, status string) error {
	item := s.trades[id]
	item.Status = status
	item.DeletedAt = nil
	return nil
}

func (s *stubRepo) CountRiskBreaches(ctx context.Context, userID uint64, breachType string, since time.Time) (int64, error) {
	if breachType == models.BreachDailyLoss {
		return s.hardBreaches, nil
	}
	return 0, nil
}

func (s *stubRepo) InsertRiskBreach(ctx context.Context, item *models.RiskBreachLog) error {
	return nil
}

func (s *stubRepo) ListClosedTrades(ctx context.Context, userID uint64, since *time.Time) ([]models.Trade, error) {
	return nil, nil
}

func newTestService(repo *stubRepo) *TradeService {
	return &TradeService{
		Repo: repo,
		Risk: &risk.Evaluator{Repo: repo},
	}
}

func baseInput() TradeInput {
	return TradeInput{
		InstrumentID: 1,
		Direction:    models.DirectionLong,
		Quantity:     1,
		EntryPrice:   decimal.NewFromInt(50),
		EntryAt:      time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC),
	}
}

func seedInstrument(repo *stubRepo) {
	repo.instruments[1] = models.Instrument{ID: 1, Symbol: "ES"}
}

func TestCreateOpenTrade(t *testing.T) {
	repo := newStubRepo()
	seedInstrument(repo)
	svc := newTestService(repo)

	item, err := svc.Create(context.Background(), 7, baseInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if item.Status != models.TradeStatusOpen {
		t.Fatalf("status = %q, want OPEN", item.Status)
	}
	if repo.settings[7] == nil {
		t.Fatalf("first access should create journal settings")
	}
}

func TestCreateClosedTradeSetsStatus(t *testing.T) {
	repo := newStubRepo()
	seedInstrument(repo)
	svc := newTestService(repo)

	in := baseInput()
	exit := decimal.NewFromInt(55)
	exitAt := in.EntryAt.Add(time.Hour)
	in.ExitPrice = &exit
	in.ExitAt = &exitAt

	item, err := svc.Create(context.Background(), 7, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if item.Status != models.TradeStatusClosed {
		t.Fatalf("status = %q, want CLOSED", item.Status)
	}
	if got := svc.RealizedPnL(*item); got == nil || !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("pnl = %v, want 5", got)
	}
}

func TestCreateRejectsExitFieldMismatch(t *testing.T) {
	repo := newStubRepo()
	seedInstrument(repo)
	svc := newTestService(repo)

	in := baseInput()
	exit := decimal.NewFromInt(55)
	in.ExitPrice = &exit // ExitAt left nil

	if _, err := svc.Create(context.Background(), 7, in); !errors.Is(err, ErrExitFieldsMismatch) {
		t.Fatalf("err = %v, want ErrExitFieldsMismatch", err)
	}
}

func TestCreateBlockedByActiveBreach(t *testing.T) {
	repo := newStubRepo()
	seedInstrument(repo)
	repo.hardBreaches = 1
	svc := newTestService(repo)

	if _, err := svc.Create(context.Background(), 7, baseInput()); !errors.Is(err, ErrRiskBlocked) {
		t.Fatalf("err = %v, want ErrRiskBlocked", err)
	}
	if len(repo.trades) != 0 {
		t.Fatalf("blocked create must not persist a trade")
	}
}

func TestCreateRejectsOversizedTrade(t *testing.T) {
	repo := newStubRepo()
	seedInstrument(repo)
	repo.settings[7] = &models.JournalSettings{
		UserID:          7,
		InitialEquity:   decimal.NewFromInt(10000),
		RiskPerTradePct: 1, // exposure cap 100
	}
	svc := newTestService(repo)

	in := baseInput()
	in.Quantity = 10 // 50 * 10 = 500 exposure

	if _, err := svc.Create(context.Background(), 7, in); !errors.Is(err, ErrTradeRiskExceeded) {
		t.Fatalf("err = %v, want ErrTradeRiskExceeded", err)
	}
}

func TestSoftDeleteAndRestore(t *testing.T) {
	repo := newStubRepo()
	seedInstrument(repo)
	svc := newTestService(repo)

	in := baseInput()
	exit := decimal.NewFromInt(55)
	exitAt := in.EntryAt.Add(time.Hour)
	in.ExitPrice = &exit
	in.ExitAt = &exitAt
	item, err := svc.Create(context.Background(), 7, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.SoftDelete(context.Background(), 7, item.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if repo.trades[item.ID].DeletedAt == nil {
		t.Fatalf("soft delete should stamp DeletedAt")
	}

	restored, err := svc.Restore(context.Background(), 7, item.ID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.Status != models.TradeStatusClosed {
		t.Fatalf("restored status = %q, want CLOSED for a trade with exit fields", restored.Status)
	}
}
