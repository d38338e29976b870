package export

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradejournal/internal/config"
	"tradejournal/internal/models"
	"tradejournal/internal/repository"
)

type stubRepo struct {
	repository.Repository

	mu     sync.Mutex
	jobs   map[uint64]*models.ExportJob
	nextID uint64
	perf   []models.ExportJobPerformance

	trades        []models.Trade
	listFailures  int
	listCallCount int
}

func newStubRepo() *stubRepo {
	return &stubRepo{jobs: map[uint64]*models.ExportJob{}}
}

func (s *stubRepo) InsertExportJob(ctx context.Context, item *models.ExportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	item.ID = s.nextID
	item.CreatedAt = time.Now().UTC()
	copied := *item
	s.jobs[item.ID] = &copied
	return nil
}

func (s *stubRepo) GetExportJob(ctx context.Context, userID, id uint64) (*models.ExportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.UserID != userID {
		return nil, nil
	}
	out := *job
	return &out, nil
}

func (s *stubRepo) GetExportJobByID(ctx context.Context, id uint64) (*models.ExportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	out := *job
	return &out, nil
}

func (s *stubRepo) CountActiveExportJobs(ctx context.Context, userID uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, job := range s.jobs {
		if job.UserID == userID &&
			(job.Status == models.ExportStatusQueued || job.Status == models.ExportStatusRunning) {
			n++
		}
	}
	return n, nil
}

func (s *stubRepo) ListEligibleQueuedJobs(ctx context.Context, now time.Time, limit int) ([]models.ExportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ExportJob
	for _, job := range s.jobs {
		if job.Status != models.ExportStatusQueued {
			continue
		}
		if job.NextAttemptAt != nil && job.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, *job)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *stubRepo) MarkExportJobRunning(ctx context.Context, id uint64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != models.ExportStatusQueued {
		return false, nil
	}
	job.Status = models.ExportStatusRunning
	job.StartedAt = &at
	return true, nil
}

func (s *stubRepo) RequeueStaleExportJobs(ctx context.Context, runningBefore time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, job := range s.jobs {
		if job.Status == models.ExportStatusRunning && job.StartedAt != nil && job.StartedAt.Before(runningBefore) {
			job.Status = models.ExportStatusQueued
			job.AttemptCount++
			n++
		}
	}
	return n, nil
}

func (s *stubRepo) RequeueExportJob(ctx context.Context, id uint64, attemptCount int, nextAttemptAt time.Time, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	job.Status = models.ExportStatusQueued
	job.AttemptCount = attemptCount
	job.NextAttemptAt = &nextAttemptAt
	job.Error = lastErr
	return nil
}

func (s *stubRepo) MarkExportJobCompleted(ctx context.Context, id uint64, result repository.ExportResultUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	job.Status = models.ExportStatusCompleted
	job.Filename = result.Filename
	job.ContentType = result.ContentType
	job.PayloadBase64 = result.PayloadBase64
	job.CompletedAt = &result.CompletedAt
	job.Error = ""
	return nil
}

func (s *stubRepo) MarkExportJobFailed(ctx context.Context, id uint64, errMsg string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	job.Status = models.ExportStatusFailed
	job.Error = errMsg
	job.CompletedAt = &at
	return nil
}

func (s *stubRepo) ConsumeDownloadToken(ctx context.Context, id uint64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	if job.DownloadTokenConsumedAt != nil {
		return false, nil
	}
	job.DownloadTokenConsumedAt = &at
	return true, nil
}

func (s *stubRepo) InsertExportJobPerformance(ctx context.Context, item *models.ExportJobPerformance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perf = append(s.perf, *item)
	return nil
}

func (s *stubRepo) CountTrades(ctx context.Context, params repository.ListTradesParams) (int64, error) {
	return int64(len(s.trades)), nil
}

func (s *stubRepo) ListTrades(ctx context.Context, params repository.ListTradesParams) ([]models.Trade, error) {
	s.mu.Lock()
	s.listCallCount++
	fail := s.listCallCount <= s.listFailures
	s.mu.Unlock()
	if fail {
		return nil, errors.New("transient query failure")
	}
	if params.Limit > 0 {
		if params.Offset >= len(s.trades) {
			return nil, nil
		}
		end := params.Offset + params.Limit
		if end > len(s.trades) {
			end = len(s.trades)
		}
		return s.trades[params.Offset:end], nil
	}
	return s.trades, nil
}

func sampleTrade(id uint64) models.Trade {
	exit := decimal.NewFromInt(110)
	exitAt := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	return models.Trade{
		ID:         id,
		UserID:     7,
		Instrument: models.Instrument{Symbol: "ES"},
		Direction:  models.DirectionLong,
		Status:     models.TradeStatusClosed,
		EntryPrice: decimal.NewFromInt(100),
		ExitPrice:  &exit,
		Quantity:   1,
		EntryAt:    exitAt.Add(-time.Hour),
		ExitAt:     &exitAt,
	}
}

func testConfig() config.ExportConfig {
	return config.ExportConfig{
		TokenSecret:      "test-secret",
		TokenTTL:         10 * time.Minute,
		PollInterval:     time.Second,
		BatchSize:        5,
		MaxAttempts:      3,
		StaleAfter:       15 * time.Second,
		MaxActivePerUser: 5,
		StreamThreshold:  5000,
		MemorySoftLimit:  32 << 20,
		BackoffBase:      500 * time.Millisecond,
		BackoffCap:       30 * time.Second,
	}
}

func newTestService(repo *stubRepo, cfg config.ExportConfig) *Service {
	return NewService(repo, &Builder{Repo: repo}, zap.NewNop(), cfg)
}

func TestEnqueueRejectsInvalidTypeAndFormat(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo, testConfig())

	_, err := svc.Enqueue(context.Background(), 7, "bogus", FormatCSV, Params{})
	require.ErrorIs(t, err, ErrInvalidType)

	_, err = svc.Enqueue(context.Background(), 7, TypeTrades, "pdf", Params{})
	require.ErrorIs(t, err, ErrInvalidFormat)

	require.Empty(t, repo.jobs, "rejected requests must never reach the queue")
}

func TestEnqueueRateLimit(t *testing.T) {
	repo := newStubRepo()
	cfg := testConfig()
	cfg.MaxActivePerUser = 2
	svc := newTestService(repo, cfg)

	for i := 0; i < 2; i++ {
		_, err := svc.Enqueue(context.Background(), 7, TypeTrades, FormatCSV, Params{})
		require.NoError(t, err)
	}
	_, err := svc.Enqueue(context.Background(), 7, TypeTrades, FormatCSV, Params{})
	require.ErrorIs(t, err, ErrRateLimited)

	// A different user is unaffected by the first user's backlog.
	_, err = svc.Enqueue(context.Background(), 8, TypeTrades, FormatCSV, Params{})
	require.NoError(t, err)
}

func TestWorkerRetriesThenCompletes(t *testing.T) {
	repo := newStubRepo()
	repo.trades = []models.Trade{sampleTrade(1)}
	repo.listFailures = 2
	svc := newTestService(repo, testConfig())

	res, err := svc.Enqueue(context.Background(), 7, TypeTrades, FormatCSV, Params{})
	require.NoError(t, err)
	jobID := res.Job.ID

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.ProcessNow(context.Background(), jobID))
	}

	job := repo.jobs[jobID]
	require.Equal(t, models.ExportStatusCompleted, job.Status)
	require.Equal(t, 2, job.AttemptCount, "two retries recorded before success")
	require.NotEmpty(t, job.PayloadBase64)
	require.Equal(t, "text/csv", job.ContentType)
	require.Len(t, repo.perf, 1)
}

func TestWorkerExhaustsRetries(t *testing.T) {
	repo := newStubRepo()
	repo.trades = []models.Trade{sampleTrade(1)}
	repo.listFailures = 10
	svc := newTestService(repo, testConfig())

	res, err := svc.Enqueue(context.Background(), 7, TypeTrades, FormatCSV, Params{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.ProcessNow(context.Background(), res.Job.ID))
	}

	job := repo.jobs[res.Job.ID]
	require.Equal(t, models.ExportStatusFailed, job.Status)
	require.Contains(t, job.Error, "transient query failure")
}

func TestZeroSoftLimitFailsImmediately(t *testing.T) {
	repo := newStubRepo()
	repo.trades = []models.Trade{sampleTrade(1)}
	cfg := testConfig()
	cfg.StreamThreshold = 0
	cfg.MemorySoftLimit = 0
	svc := newTestService(repo, cfg)

	res, err := svc.Enqueue(context.Background(), 7, TypeTrades, FormatCSV, Params{})
	require.NoError(t, err)

	require.NoError(t, svc.ProcessNow(context.Background(), res.Job.ID))

	job := repo.jobs[res.Job.ID]
	require.Equal(t, models.ExportStatusFailed, job.Status)
	require.Contains(t, job.Error, "memory soft limit")
	require.Equal(t, 0, job.AttemptCount, "soft-limit failures are not retried")
}

func TestBackoffSchedule(t *testing.T) {
	svc := newTestService(newStubRepo(), testConfig())
	require.Equal(t, time.Second, svc.backoff(1))
	require.Equal(t, 2*time.Second, svc.backoff(2))
	require.Equal(t, 4*time.Second, svc.backoff(3))
	require.Equal(t, 30*time.Second, svc.backoff(20))
}

func TestStaleRunningJobsAreRequeued(t *testing.T) {
	repo := newStubRepo()
	repo.trades = []models.Trade{sampleTrade(1)}
	svc := newTestService(repo, testConfig())

	res, err := svc.Enqueue(context.Background(), 7, TypeTrades, FormatCSV, Params{})
	require.NoError(t, err)

	stale := time.Now().UTC().Add(-time.Minute)
	job := repo.jobs[res.Job.ID]
	job.Status = models.ExportStatusRunning
	job.StartedAt = &stale

	svc.tick(context.Background())

	final := repo.jobs[res.Job.ID]
	require.Equal(t, models.ExportStatusCompleted, final.Status)
	require.Equal(t, 1, final.AttemptCount, "stale recovery counts as a spent attempt")
}

func TestRedeemTokenSingleUse(t *testing.T) {
	repo := newStubRepo()
	repo.trades = []models.Trade{sampleTrade(1)}
	svc := newTestService(repo, testConfig())

	res, err := svc.Enqueue(context.Background(), 7, TypeTrades, FormatCSV, Params{})
	require.NoError(t, err)
	require.Len(t, res.Token, 32)
	require.NoError(t, svc.ProcessNow(context.Background(), res.Job.ID))

	job, err := svc.Redeem(context.Background(), 7, res.Job.ID, res.Token)
	require.NoError(t, err)
	require.NotEmpty(t, job.PayloadBase64)

	_, err = svc.Redeem(context.Background(), 7, res.Job.ID, res.Token)
	require.ErrorIs(t, err, ErrTokenConsumed)
}

func TestRedeemRejectsBadAndExpiredTokens(t *testing.T) {
	repo := newStubRepo()
	repo.trades = []models.Trade{sampleTrade(1)}
	svc := newTestService(repo, testConfig())

	res, err := svc.Enqueue(context.Background(), 7, TypeTrades, FormatCSV, Params{})
	require.NoError(t, err)
	require.NoError(t, svc.ProcessNow(context.Background(), res.Job.ID))

	_, err = svc.Redeem(context.Background(), 7, res.Job.ID, "0123456789abcdef0123456789abcdef")
	require.ErrorIs(t, err, ErrTokenInvalid)

	svc.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }
	_, err = svc.Redeem(context.Background(), 7, res.Job.ID, res.Token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestRedeemRequiresCompletedJob(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo, testConfig())

	res, err := svc.Enqueue(context.Background(), 7, TypeTrades, FormatCSV, Params{})
	require.NoError(t, err)

	_, err = svc.Redeem(context.Background(), 7, res.Job.ID, res.Token)
	require.ErrorIs(t, err, ErrJobNotReady)
}
