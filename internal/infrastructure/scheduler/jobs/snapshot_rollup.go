package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/cycle"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/goal"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT ROLLUP JOB
// ══════════════════════════════════════════════════════════════════════════════

// RollupSource fetches the data needed to recompute a cycle rollup.
type RollupSource interface {
	CurrentCycle(ctx context.Context) (*cycle.Cycle, error)
	Goals(ctx context.Context, cycleID string) ([]*goal.Goal, []shared.Anomaly, error)
}

// RollupSink receives freshly computed rollups.
type RollupSink interface {
	SetRollup(ctx context.Context, cycleID string, r cycle.Rollup, at time.Time) error
}

// SnapshotRollupJob recomputes the current cycle's rollup from the remote
// goal list and records the observation, building the history behind trend
// views. Unlike the store's in-memory rollup, these snapshots persist
// across restarts.
type SnapshotRollupJob struct {
	source RollupSource
	cycles cycle.Repository
	cache  RollupSink
	logger *slog.Logger

	timeout time.Duration
}

// NewSnapshotRollupJob creates a new rollup snapshot job. A zero timeout
// disables the per-run deadline.
func NewSnapshotRollupJob(
	source RollupSource,
	cycles cycle.Repository,
	cache RollupSink,
	logger *slog.Logger,
	timeout time.Duration,
) *SnapshotRollupJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &SnapshotRollupJob{
		source:  source,
		cycles:  cycles,
		cache:   cache,
		logger:  logger,
		timeout: timeout,
	}
}

// Name returns the job name.
func (j *SnapshotRollupJob) Name() string {
	return "snapshot_rollup"
}

// Description returns a human-readable description.
func (j *SnapshotRollupJob) Description() string {
	return "Recomputes and records the current cycle's rollup"
}

// Run executes the snapshot job.
func (j *SnapshotRollupJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	current, err := j.source.CurrentCycle(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNoActiveCycle) {
			j.logger.Info("no active cycle, skipping rollup snapshot")
			return nil
		}
		return fmt.Errorf("failed to fetch current cycle: %w", err)
	}

	goals, anomalies, err := j.source.Goals(ctx, current.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch goals for cycle %s: %w", current.ID, err)
	}
	for _, a := range anomalies {
		j.logger.Warn("goal anomaly during rollup snapshot",
			"record_id", a.RecordID,
			"field", a.Field,
			"reason", a.Reason,
		)
	}

	now := time.Now().UTC()
	rollup := cycle.Aggregate(current, goals, now)

	if err := j.cycles.SaveRollup(ctx, current.ID, rollup, now); err != nil {
		return fmt.Errorf("failed to record rollup for cycle %s: %w", current.ID, err)
	}

	if j.cache != nil {
		if err := j.cache.SetRollup(ctx, current.ID, rollup, now); err != nil {
			j.logger.Warn("failed to refresh rollup cache",
				"cycle_id", current.ID,
				"error", err,
			)
		}
	}

	j.logger.Info("rollup snapshot recorded",
		"cycle_id", current.ID,
		"progress_pct", rollup.ProgressPercentage,
		"completed", rollup.CompletedCount,
		"total", rollup.TotalCount,
		"days_remaining", rollup.DaysRemaining,
	)

	return nil
}
