package export

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"tradejournal/internal/config"
	"tradejournal/internal/models"
	"tradejournal/internal/repository"
)

// Service owns the export job lifecycle: enqueue, the polling worker and
// download redemption.
type Service struct {
	Repo    repository.Repository
	Builder *Builder
	Logger  *zap.Logger
	Cfg     config.ExportConfig

	now func() time.Time
}

func NewService(repo repository.Repository, builder *Builder, logger *zap.Logger, cfg config.ExportConfig) *Service {
	return &Service{
		Repo:    repo,
		Builder: builder,
		Logger:  logger,
		Cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// EnqueueResult carries the job row plus the one-time download token. The
// token itself is never stored; only its expiry is.
type EnqueueResult struct {
	Job   models.ExportJob `json:"job"`
	Token string           `json:"token"`
}

// Enqueue validates the request, applies the per-user active-job cap and
// persists a queued job.
func (s *Service) Enqueue(ctx context.Context, userID uint64, typ, format string, params Params) (*EnqueueResult, error) {
	if !validType(typ) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}
	if !validFormat(format) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
	// The chart render only makes sense as an image, and an image only makes
	// sense for the chart type.
	if (typ == TypeChartEquity) != (format == FormatPNG) {
		return nil, fmt.Errorf("%w: %q is not valid for type %q", ErrInvalidFormat, format, typ)
	}

	active, err := s.Repo.CountActiveExportJobs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.Cfg.MaxActivePerUser > 0 && active >= int64(s.Cfg.MaxActivePerUser) {
		return nil, fmt.Errorf("%w: %d active", ErrRateLimited, active)
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	now := s.now()
	expiry := now.Add(s.Cfg.TokenTTL)
	job := models.ExportJob{
		UserID:                 userID,
		Type:                   typ,
		Format:                 format,
		ParamsJSON:             datatypes.JSON(raw),
		RequestID:              uuid.NewString(),
		Status:                 models.ExportStatusQueued,
		DownloadTokenExpiresAt: &expiry,
	}
	if err := s.Repo.InsertExportJob(ctx, &job); err != nil {
		return nil, err
	}
	return &EnqueueResult{Job: job, Token: Token(s.Cfg.TokenSecret, job.ID, expiry)}, nil
}

// Run polls until the context ends. Each tick first reclaims jobs stuck in
// running, then claims a batch of eligible queued jobs oldest first.
func (s *Service) Run(ctx context.Context) {
	interval := s.Cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	now := s.now()
	requeued, err := s.Repo.RequeueStaleExportJobs(ctx, now.Add(-s.Cfg.StaleAfter))
	if err != nil {
		s.Logger.Warn("stale export recovery failed", zap.Error(err))
	} else if requeued > 0 {
		s.Logger.Warn("requeued stale export jobs", zap.Int64("count", requeued))
	}

	batch := s.Cfg.BatchSize
	if batch <= 0 {
		batch = 5
	}
	jobs, err := s.Repo.ListEligibleQueuedJobs(ctx, now, batch)
	if err != nil {
		s.Logger.Warn("export queue poll failed", zap.Error(err))
		return
	}
	for i := range jobs {
		s.process(ctx, &jobs[i])
	}
}

// ProcessNow runs one job synchronously, claim included. It exists so tests
// and admin tooling can drive the queue without the polling loop.
func (s *Service) ProcessNow(ctx context.Context, jobID uint64) error {
	job, err := s.Repo.GetExportJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("export job %d not found", jobID)
	}
	s.process(ctx, job)
	return nil
}

func (s *Service) process(ctx context.Context, job *models.ExportJob) {
	claimed, err := s.Repo.MarkExportJobRunning(ctx, job.ID, s.now())
	if err != nil {
		s.Logger.Warn("export claim failed", zap.Uint64("job_id", job.ID), zap.Error(err))
		return
	}
	if !claimed {
		return
	}

	started := s.now()
	payload, contentType, rowCount, streamed, err := s.build(ctx, job)
	if err != nil {
		s.fail(ctx, job, err)
		// A job left running after the failure path would wedge the queue
		// slot until stale recovery; force the terminal state here.
		s.forceFailIfRunning(ctx, job.ID, err)
		return
	}

	completedAt := s.now()
	result := repository.ExportResultUpdate{
		Filename:      Filename(job.Type, job.Format, completedAt),
		ContentType:   contentType,
		PayloadBase64: base64.StdEncoding.EncodeToString(payload),
		CompletedAt:   completedAt,
	}
	if err := s.Repo.MarkExportJobCompleted(ctx, job.ID, result); err != nil {
		s.Logger.Warn("export completion write failed", zap.Uint64("job_id", job.ID), zap.Error(err))
		return
	}

	perf := models.ExportJobPerformance{
		JobID:        job.ID,
		DurationMs:   completedAt.Sub(started).Milliseconds(),
		PayloadBytes: int64(len(payload)),
		RowCount:     rowCount,
		Streamed:     streamed,
	}
	if err := s.Repo.InsertExportJobPerformance(ctx, &perf); err != nil {
		s.Logger.Warn("export perf row failed", zap.Uint64("job_id", job.ID), zap.Error(err))
	}
	s.Logger.Info("export job completed",
		zap.Uint64("job_id", job.ID),
		zap.String("request_id", job.RequestID),
		zap.String("type", job.Type),
		zap.Int64("payload_bytes", perf.PayloadBytes),
		zap.Int("rows", rowCount),
	)
}

func (s *Service) build(ctx context.Context, job *models.ExportJob) (payload []byte, contentType string, rowCount int, streamed bool, err error) {
	var params Params
	if len(job.ParamsJSON) > 0 {
		if err := json.Unmarshal(job.ParamsJSON, &params); err != nil {
			return nil, "", 0, false, fmt.Errorf("bad params: %w", err)
		}
	}

	var table Table
	if job.Type == TypeTrades {
		estimate, err := s.Builder.EstimateRows(ctx, job.UserID, job.Type, params)
		if err != nil {
			return nil, "", 0, false, err
		}
		if s.Cfg.StreamThreshold >= 0 && estimate > int64(s.Cfg.StreamThreshold) {
			stream := s.Builder.TradeStream(job.UserID, params)
			rows, err := s.drain(ctx, stream)
			if err != nil {
				return nil, "", 0, true, err
			}
			table = Table{Headers: stream.Headers, Rows: rows}
			streamed = true
		}
	}
	if !streamed {
		table, err = s.Builder.BuildTable(ctx, job.UserID, job.Type, params)
		if err != nil {
			return nil, "", 0, false, err
		}
	}

	payload, contentType, err = Serialize(table, job.Format)
	if err != nil {
		return nil, "", 0, streamed, err
	}
	return payload, contentType, len(table.Rows), streamed, nil
}

// drain consumes a stream chunk by chunk, checking the accumulated size
// against the soft limit before retaining each chunk.
func (s *Service) drain(ctx context.Context, stream *Stream) ([][]string, error) {
	var rows [][]string
	var accumulated int64
	for {
		chunk, err := stream.Next(ctx)
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			return rows, nil
		}
		for _, row := range chunk {
			for _, cell := range row {
				accumulated += int64(len(cell))
			}
		}
		if accumulated > s.Cfg.MemorySoftLimit {
			return nil, fmt.Errorf("%w: %d bytes accumulated, limit %d", ErrMemorySoftLimit, accumulated, s.Cfg.MemorySoftLimit)
		}
		rows = append(rows, chunk...)
	}
}

func (s *Service) fail(ctx context.Context, job *models.ExportJob, buildErr error) {
	now := s.now()
	attempt := job.AttemptCount + 1

	// Memory-limit failures are deterministic; retrying cannot change the
	// outcome, so they go terminal on the first hit with the attempt counter
	// untouched.
	if errors.Is(buildErr, ErrMemorySoftLimit) {
		if err := s.Repo.MarkExportJobFailed(ctx, job.ID, buildErr.Error(), now); err != nil {
			s.Logger.Warn("export fail write failed", zap.Uint64("job_id", job.ID), zap.Error(err))
		}
		s.Logger.Warn("export job failed terminally",
			zap.Uint64("job_id", job.ID), zap.String("reason", buildErr.Error()))
		return
	}

	maxAttempts := s.Cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if attempt >= maxAttempts {
		if err := s.Repo.MarkExportJobFailed(ctx, job.ID, buildErr.Error(), now); err != nil {
			s.Logger.Warn("export fail write failed", zap.Uint64("job_id", job.ID), zap.Error(err))
		}
		s.Logger.Warn("export job exhausted retries",
			zap.Uint64("job_id", job.ID), zap.Int("attempts", attempt), zap.Error(buildErr))
		return
	}

	next := now.Add(s.backoff(attempt))
	if err := s.Repo.RequeueExportJob(ctx, job.ID, attempt, next, buildErr.Error()); err != nil {
		s.Logger.Warn("export requeue failed", zap.Uint64("job_id", job.ID), zap.Error(err))
		return
	}
	s.Logger.Info("export job requeued",
		zap.Uint64("job_id", job.ID), zap.Int("attempt", attempt), zap.Time("next_attempt_at", next))
}

// backoff is base doubled per attempt, capped.
func (s *Service) backoff(attempt int) time.Duration {
	base := s.Cfg.BackoffBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	ceiling := s.Cfg.BackoffCap
	if ceiling <= 0 {
		ceiling = 30 * time.Second
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	return d
}

func (s *Service) forceFailIfRunning(ctx context.Context, jobID uint64, cause error) {
	job, err := s.Repo.GetExportJobByID(ctx, jobID)
	if err != nil || job == nil {
		return
	}
	if job.Status != models.ExportStatusRunning {
		return
	}
	msg := fmt.Sprintf("worker left job running: %v", cause)
	if err := s.Repo.MarkExportJobFailed(ctx, jobID, msg, s.now()); err != nil {
		s.Logger.Warn("export force-fail write failed", zap.Uint64("job_id", jobID), zap.Error(err))
	}
}

// Redeem exchanges a valid download token for the completed job row. The
// token is single use; consumption is recorded before the payload is
// returned so a concurrent duplicate request loses the race.
func (s *Service) Redeem(ctx context.Context, userID, jobID uint64, token string) (*models.ExportJob, error) {
	job, err := s.Repo.GetExportJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("export job %d not found", jobID)
	}
	if job.Status != models.ExportStatusCompleted || job.PayloadBase64 == "" {
		return nil, ErrJobNotReady
	}
	if job.DownloadTokenExpiresAt == nil {
		return nil, ErrTokenInvalid
	}
	now := s.now()
	if err := verifyToken(s.Cfg.TokenSecret, job.ID, *job.DownloadTokenExpiresAt, token, now); err != nil {
		return nil, err
	}
	if job.DownloadTokenConsumedAt != nil {
		return nil, ErrTokenConsumed
	}
	ok, err := s.Repo.ConsumeDownloadToken(ctx, job.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTokenConsumed
	}
	return job, nil
}
