// Package main is the entry point for the Cycle Progress Hub API server.
//
// The hub keeps one user's development-cycle progress in an in-memory store
// loaded from the remote cycle service, serves it over a REST API, and
// persists rollups, evidence, and XP awards through domain events so history
// survives restarts. Goal updates apply locally first and confirm against
// the remote service in the background.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cycle-hub/cycle-progress-hub/config"
	"github.com/cycle-hub/cycle-progress-hub/internal/application/eventhandler"
	"github.com/cycle-hub/cycle-progress-hub/internal/application/query"
	"github.com/cycle-hub/cycle-progress-hub/internal/application/store"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/activity"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/competency"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/cycle"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/xp"
	"github.com/cycle-hub/cycle-progress-hub/internal/infrastructure/external/cycleapi"
	"github.com/cycle-hub/cycle-progress-hub/internal/infrastructure/messaging"
	"github.com/cycle-hub/cycle-progress-hub/internal/infrastructure/persistence/postgres"
	"github.com/cycle-hub/cycle-progress-hub/internal/infrastructure/persistence/redis"
	httpserver "github.com/cycle-hub/cycle-progress-hub/internal/interface/http"
	"github.com/cycle-hub/cycle-progress-hub/internal/interface/http/handlers"
	"github.com/cycle-hub/cycle-progress-hub/pkg/logger"
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

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting Cycle Progress Hub",
		"version", cfg.App.Version,
		"env", string(cfg.App.Environment),
		"user_id", cfg.App.UserID,
		"timezone", cfg.App.Timezone,
	)

	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE (PostgreSQL archive, optional in development)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		dbConn       *postgres.Connection
		cycleRepo    cycle.Repository
		activityRepo activity.Repository
		compRepo     competency.Repository
		xpRepo       xp.Repository
	)

	if cfg.Database.URL != "" {
		log.Info("connecting to database...")
		dbConn, err = postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
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

		log.Info("running database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		cycleRepo = postgres.NewCycleRepository(dbConn)
		activityRepo = postgres.NewActivityRepository(dbConn)
		compRepo = postgres.NewCompetencyRepository(dbConn)
		xpRepo = postgres.NewXPLedgerRepository(dbConn)
		healthChecker.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
		log.Info("database ready")
	} else {
		log.Warn("DATABASE_URL not set, archive and history persistence disabled")
	}

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
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
		} else {
			defer cache.Close()
			progressCache = redis.NewProgressCache(cache)
			healthChecker.AddCheck("cache", handlers.NewCacheCheck(cache))
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
	healthChecker.AddCheck("cycle_service", handlers.NewExternalAPICheck(cycleClient))

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	// The store publishes while holding its state lock, handlers must not
	// run inline.
	busConfig.AsyncMode = true
	eventBus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. PROGRESS STORE
	// ─────────────────────────────────────────────────────────────────────────
	featureCtx := &config.FeatureContext{UserID: cfg.App.UserID}
	scoring := selectScoring(cfg.Features, featureCtx, log)

	progressStore := store.New(cycleClient, eventBus, store.Config{
		UserID:      cfg.App.UserID,
		SyncTimeout: cfg.CycleAPI.SyncTimeout,
		Scoring:     scoring,
		Logger:      log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 8. EVENT HANDLERS (persistence and cache refresh)
	// ─────────────────────────────────────────────────────────────────────────
	var rollupCache eventhandler.RollupCache
	var xpCache eventhandler.XPCache
	if progressCache != nil {
		rollupCache = progressCache
		xpCache = progressCache
	}

	if cycleRepo != nil {
		rolledUp := eventhandler.NewOnCycleRolledUpHandler(
			cycleRepo, rollupCache, log, eventhandler.DefaultCycleRolledUpConfig())
		if err := eventBus.Subscribe(shared.EventCycleRolledUp, rolledUp.Handle); err != nil {
			return fmt.Errorf("failed to subscribe rollup handler: %w", err)
		}
	}
	if compRepo != nil {
		evidenceAdded := eventhandler.NewOnEvidenceAddedHandler(
			progressStore, compRepo, log, 5*time.Second)
		if err := eventBus.Subscribe(shared.EventEvidenceAdded, evidenceAdded.Handle); err != nil {
			return fmt.Errorf("failed to subscribe evidence handler: %w", err)
		}
	}
	if xpRepo != nil {
		xpAwarded := eventhandler.NewOnXPAwardedHandler(
			xpRepo, xpCache, nil, log, eventhandler.DefaultXPAwardedConfig())
		if err := eventBus.Subscribe(shared.EventXPAwarded, xpAwarded.Handle); err != nil {
			return fmt.Errorf("failed to subscribe xp handler: %w", err)
		}
	}
	levelUp := eventhandler.NewOnLevelUpHandler(log)
	if err := eventBus.Subscribe(shared.EventLevelUp, levelUp.Handle); err != nil {
		return fmt.Errorf("failed to subscribe level-up handler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. INITIAL LOAD
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("loading progress state from cycle service...")
	loadCtx, loadCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := progressStore.Load(loadCtx); err != nil {
		// The hub can still serve health checks and archived reads, the
		// store stays empty until the next successful refresh.
		log.Warn("initial load failed, starting with empty state", "error", err)
	}
	loadCancel()

	// ─────────────────────────────────────────────────────────────────────────
	// 10. QUERY HANDLERS (CQRS read side)
	// ─────────────────────────────────────────────────────────────────────────
	overviewHandler := query.NewGetProgressOverviewHandler(progressStore, cycleRepo)
	timelineHandler := query.NewGetTimelineHandler(progressStore, activityRepo)
	xpHandler := query.NewGetXPSummaryHandler(progressStore, xpRepo, nil)
	competenciesHandler := query.NewGetCompetenciesHandler(progressStore, compRepo)

	// ─────────────────────────────────────────────────────────────────────────
	// 11. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	serverConfig := httpserver.DefaultConfig()
	serverConfig.Host = cfg.HTTP.Host
	serverConfig.Port = cfg.HTTP.Port
	serverConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	serverConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	serverConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	serverConfig.EnableCORS = cfg.HTTP.EnableCORS
	serverConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverConfig.APIKeys = cfg.HTTP.APIKeys
	serverConfig.EnableMetrics = cfg.Observability.MetricsEnabled

	httpLog := logger.New(logger.Options{
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.App.Debug,
	})

	server := httpserver.NewServer(serverConfig, httpserver.Dependencies{
		GetProgressOverviewHandler: overviewHandler,
		GetTimelineHandler:         timelineHandler,
		GetXPSummaryHandler:        xpHandler,
		GetCompetenciesHandler:     competenciesHandler,
		Store:                      progressStore,
		UserID:                     cfg.App.UserID,
		Logger:                     httpLog,
		HealthChecker:              healthChecker,
	})

	errCh := server.StartAsync()
	log.Info("Cycle Progress Hub is running", "addr", cfg.HTTP.Addr())

	// ─────────────────────────────────────────────────────────────────────────
	// 12. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", "error", err)
	}

	// Let in-flight goal syncs reconcile before the process exits.
	progressStore.Wait()

	log.Info("shutdown completed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// selectScoring resolves the evidence scoring strategy from the scoring
// experiment. Unknown variants fall back to the flat default.
func selectScoring(ff *config.FeatureFlags, fctx *config.FeatureContext, log *slog.Logger) competency.ScoringStrategy {
	variant := ff.GetVariant(config.FeatureScoringStrategy, fctx)
	log.Info("scoring strategy selected", "variant", variant)

	switch variant {
	case config.ScoringVariantWeighted:
		return competency.NewWeightedScoring()
	case config.ScoringVariantUniform:
		return competency.NewFlatStepScoring()
	default:
		return nil
	}
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

	log := slog.New(handler).With("app", cfg.App.Name)
	slog.SetDefault(log)
	return log
}
