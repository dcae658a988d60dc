// Package eventhandler contains the domain event subscribers that turn
// store events into durable side effects: archiving rollups, appending the
// XP ledger, and persisting evidence. The store never waits on them; every
// handler degrades to a logged error.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/cycle"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON CYCLE ROLLED UP HANDLER
//
// Every goal mutation recomputes the cycle rollup and publishes it. This
// handler records the observation:
// 1. Appends the rollup to the archive for trend views
// 2. Refreshes the hot rollup cache read by the HTTP surface
// ═══════════════════════════════════════════════════════════════════════════

// RollupCache is the hot-path cache the handler refreshes. Implemented by
// the Redis progress cache.
type RollupCache interface {
	SetRollup(ctx context.Context, cycleID string, r cycle.Rollup, at time.Time) error
}

// OnCycleRolledUpHandler archives rollup observations.
type OnCycleRolledUpHandler struct {
	cycles cycle.Repository
	cache  RollupCache
	logger *slog.Logger
	config CycleRolledUpConfig
}

// CycleRolledUpConfig contains configuration for the handler.
type CycleRolledUpConfig struct {
	// PersistHistory appends every observation to the archive. Disable to
	// keep only the cache fresh.
	PersistHistory bool

	// Timeout bounds each storage call.
	Timeout time.Duration
}

// DefaultCycleRolledUpConfig returns the default configuration.
func DefaultCycleRolledUpConfig() CycleRolledUpConfig {
	return CycleRolledUpConfig{
		PersistHistory: true,
		Timeout:        5 * time.Second,
	}
}

// NewOnCycleRolledUpHandler creates the handler. Either dependency may be
// nil; the corresponding step is skipped.
func NewOnCycleRolledUpHandler(
	cycles cycle.Repository,
	cache RollupCache,
	logger *slog.Logger,
	config CycleRolledUpConfig,
) *OnCycleRolledUpHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	return &OnCycleRolledUpHandler{
		cycles: cycles,
		cache:  cache,
		logger: logger.With("handler", "on_cycle_rolled_up"),
		config: config,
	}
}

// Handle implements shared.EventHandler.
func (h *OnCycleRolledUpHandler) Handle(event shared.Event) error {
	rollupEvent, ok := event.(shared.CycleRolledUpEvent)
	if !ok {
		h.logger.Warn("received non-CycleRolledUpEvent", "event_type", event.EventType())
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	rollup := cycle.Rollup{
		ProgressPercentage: rollupEvent.ProgressPercentage,
		CompletedCount:     rollupEvent.CompletedGoals,
		TotalCount:         rollupEvent.TotalGoals,
		DaysRemaining:      rollupEvent.DaysRemaining,
	}
	observedAt := rollupEvent.OccurredAt()

	if h.cache != nil {
		if err := h.cache.SetRollup(ctx, rollupEvent.CycleID, rollup, observedAt); err != nil {
			h.logger.Error("failed to refresh rollup cache",
				"cycle_id", rollupEvent.CycleID,
				"error", err,
			)
		}
	}

	if h.cycles != nil && h.config.PersistHistory {
		if err := h.cycles.SaveRollup(ctx, rollupEvent.CycleID, rollup, observedAt); err != nil {
			return fmt.Errorf("save rollup: %w", err)
		}
	}

	h.logger.Debug("rollup recorded",
		"cycle_id", rollupEvent.CycleID,
		"progress", rollupEvent.ProgressPercentage,
		"completed", rollupEvent.CompletedGoals,
		"total", rollupEvent.TotalGoals,
	)

	return nil
}
