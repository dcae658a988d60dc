// Package main is the entry point for the Cycle Progress Hub background
// worker.
//
// The worker runs the periodic jobs that keep durable history fresh:
// archiving the current cycle's activities with a rebuilt timeline cache,
// and recording rollup snapshots that power trend views. The API server
// stays authoritative for live state; the worker only reconciles from the
// remote cycle service into local persistence.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cycle-hub/cycle-progress-hub/config"
	"github.com/cycle-hub/cycle-progress-hub/internal/infrastructure/external/cycleapi"
	"github.com/cycle-hub/cycle-progress-hub/internal/infrastructure/persistence/postgres"
	"github.com/cycle-hub/cycle-progress-hub/internal/infrastructure/persistence/redis"
	"github.com/cycle-hub/cycle-progress-hub/internal/infrastructure/scheduler"
	"github.com/cycle-hub/cycle-progress-hub/internal/infrastructure/scheduler/jobs"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required for the worker")
	}
	if !cfg.Scheduler.Enabled {
		return errors.New("scheduler is disabled, nothing to run (set SCHEDULER_ENABLED=true)")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting Cycle Progress Hub worker",
		"version", cfg.App.Version,
		"env", string(cfg.App.Environment),
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE (PostgreSQL archive)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// The worker migrates too, it may start before the API server.
	log.Info("running database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	cycleRepo := postgres.NewCycleRepository(dbConn)
	activityRepo := postgres.NewActivityRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS CACHE (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var progressCache *redis.ProgressCache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		cache, err := redis.NewCache(redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			log.Warn("failed to connect to Redis, cache rebuilds disabled", "error", err)
		} else {
			defer cache.Close()
			progressCache = redis.NewProgressCache(cache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. CYCLE SERVICE CLIENT
	// ─────────────────────────────────────────────────────────────────────────
	clientConfig := cycleapi.DefaultClientConfig(cfg.CycleAPI.BaseURL)
	clientConfig.APIKey = cfg.CycleAPI.APIKey
	clientConfig.Timeout = cfg.CycleAPI.RequestTimeout
	clientConfig.Logger = log
	clientConfig.Debug = cfg.App.Debug
	clientConfig.RateLimiterConfig.RequestsPerSecond = float64(cfg.CycleAPI.RateLimit) / 60.0
	clientConfig.RateLimiterConfig.BurstSize = cfg.CycleAPI.RateLimitBurst

	cycleClient := cycleapi.NewClient(clientConfig)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. SCHEDULER AND JOBS
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   log,
		Timezone: cfg.App.Location,
	})

	featureCtx := &config.FeatureContext{UserID: cfg.App.UserID}

	if cfg.Features.IsEnabled(config.FeatureActivityArchive, featureCtx) {
		var timeline jobs.TimelineCache
		if progressCache != nil {
			timeline = progressCache
		}

		reconcileConfig := jobs.DefaultReconcileActivitiesConfig()
		reconcileConfig.Timeout = cfg.Scheduler.JobTimeout

		reconcile := jobs.NewReconcileActivitiesJob(
			cycleClient, cycleRepo, activityRepo, timeline, log, reconcileConfig)
		if err := sched.Register(reconcile, scheduler.NewIntervalSchedule(cfg.Scheduler.ReconcileInterval)); err != nil {
			return fmt.Errorf("failed to register reconcile job: %w", err)
		}
		log.Info("registered job", "job", reconcile.Name(), "interval", cfg.Scheduler.ReconcileInterval.String())
	} else {
		log.Info("activity archive disabled by feature flag")
	}

	if cfg.Features.IsEnabled(config.FeatureRollupSnapshots, featureCtx) {
		cronSchedule, err := scheduler.ParseCronExpression(cfg.Scheduler.RollupSnapshotCron)
		if err != nil {
			return fmt.Errorf("invalid rollup snapshot cron %q: %w", cfg.Scheduler.RollupSnapshotCron, err)
		}

		var sink jobs.RollupSink
		if progressCache != nil {
			sink = progressCache
		}

		snapshot := jobs.NewSnapshotRollupJob(
			cycleClient, cycleRepo, sink, log, cfg.Scheduler.JobTimeout)
		if err := sched.Register(snapshot, cronSchedule); err != nil {
			return fmt.Errorf("failed to register rollup snapshot job: %w", err)
		}
		log.Info("registered job", "job", snapshot.Name(), "cron", cfg.Scheduler.RollupSnapshotCron)
	} else {
		log.Info("rollup snapshots disabled by feature flag")
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	log.Info("Cycle Progress Hub worker is running")

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	log.Info("stopping scheduler, waiting for running jobs...")
	if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
		log.Error("scheduler stop failed", "error", err)
	}

	log.Info("shutdown completed")
	return nil
}

// setupLogger builds the process-wide structured logger.
func setupLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Observability.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.App.Debug,
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler).With("app", cfg.App.Name+"-worker")
	slog.SetDefault(log)
	return log
}
