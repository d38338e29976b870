package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tradejournal/internal/config"
	cronrunner "tradejournal/internal/cron"
	"tradejournal/internal/db"
	"tradejournal/internal/equity"
	"tradejournal/internal/export"
	"tradejournal/internal/goals"
	"tradejournal/internal/handler"
	"tradejournal/internal/logger"
	"tradejournal/internal/propeval"
	gormrepository "tradejournal/internal/repository/gorm"
	"tradejournal/internal/risk"
	"tradejournal/internal/service"
)

func main() {
	cfgPath := os.Getenv("TJ_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("TJ_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	equityBuilder := &equity.Builder{Repo: store, Logger: logger, Config: cfg.Equity}
	goalEngine := &goals.Engine{Repo: store, Logger: logger, Config: cfg.Goals}
	goalScheduler := goals.NewScheduler(goalEngine, logger, cfg.Goals.DebounceInterval)
	defer goalScheduler.Close()
	riskEvaluator := &risk.Evaluator{Repo: store, Logger: logger, Config: cfg.Risk}
	propEngine := &propeval.Engine{Repo: store, Logger: logger}

	exportBuilder := &export.Builder{Repo: store, Logger: logger}
	exportSvc := export.NewService(store, exportBuilder, logger, cfg.Export)
	if cfg.Export.TokenSecret == "" {
		logger.Warn("export token secret is empty, download tokens are forgeable")
	}

	tradeSvc := &service.TradeService{
		Repo:   store,
		Goals:  goalScheduler,
		Risk:   riskEvaluator,
		Equity: equityBuilder,
		Logger: logger,
		Config: cfg.Risk,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)

	authed := engine.Group("")
	authed.Use(handler.UserAuth())
	(&handler.TradeHandler{Service: tradeSvc}).Register(authed)
	(&handler.CatalogHandler{Repo: store}).Register(authed)
	(&handler.SettingsHandler{Repo: store, Builder: equityBuilder}).Register(authed)
	(&handler.EquityHandler{Repo: store, Builder: equityBuilder}).Register(authed)
	(&handler.GoalHandler{Repo: store, Engine: goalEngine}).Register(authed)
	(&handler.RiskHandler{Repo: store, Evaluator: riskEvaluator}).Register(authed)
	(&handler.PropHandler{Repo: store, Engine: propEngine}).Register(authed)
	(&handler.ExportHandler{Service: exportSvc, Repo: store}).Register(authed)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		retention := time.Duration(cfg.Cron.PerformanceRetentionDays) * 24 * time.Hour
		_, err = cronRunner.Add(cfg.Cron.PerformancePrune, func(ctx context.Context) {
			pruned, err := store.PruneExportJobPerformance(ctx, time.Now().UTC().Add(-retention))
			if err != nil {
				logger.Warn("cron perf prune failed", zap.Error(err))
				return
			}
			logger.Info("cron perf prune ok", zap.Int64("pruned", pruned))
		})
		if err != nil {
			logger.Fatal("cron perf prune spec invalid", zap.Error(err))
		}
		_, err = cronRunner.Add(cfg.Cron.EquityAudit, func(ctx context.Context) {
			userIDs, err := store.ListUserIDsWithTrades(ctx)
			if err != nil {
				logger.Warn("cron equity audit failed", zap.Error(err))
				return
			}
			for _, userID := range userIDs {
				report, err := equityBuilder.Validate(ctx, userID)
				if err != nil {
					logger.Warn("cron equity audit user failed", zap.Uint64("user_id", userID), zap.Error(err))
					continue
				}
				if !report.Clean() {
					logger.Warn("equity series drift detected",
						zap.Uint64("user_id", userID),
						zap.Int("discrepancies", len(report.Discrepancies)),
						zap.Int("missing_days", len(report.MissingDays)),
						zap.Int("extra_days", len(report.ExtraDays)),
					)
				}
			}
			logger.Info("cron equity audit ok", zap.Int("users", len(userIDs)))
		})
		if err != nil {
			logger.Fatal("cron equity audit spec invalid", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	// One-shot full recompute, for recovery after bulk imports or bad data.
	if v := os.Getenv("TJ_REBUILD_EQUITY_ON_START"); strings.EqualFold(v, "true") || v == "1" {
		go func() {
			if err := equityBuilder.RebuildAll(ctx); err != nil {
				logger.Warn("startup equity rebuild failed", zap.Error(err))
			}
		}()
	}

	go exportSvc.Run(ctx)

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-User-ID")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
