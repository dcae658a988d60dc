// Package jobs contains implementations of scheduled jobs for Cycle Progress
// Hub. Each job keeps the local archive and hot caches aligned with the
// remote cycle service.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/activity"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/cycle"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE ACTIVITIES JOB
// ══════════════════════════════════════════════════════════════════════════════

// CycleSource fetches cycle data from the remote cycle service.
type CycleSource interface {
	// CurrentCycle returns the user's active cycle, or
	// shared.ErrNoActiveCycle when there is none.
	CurrentCycle(ctx context.Context) (*cycle.Cycle, error)

	// RawActivities returns the full activity entities of a cycle along
	// with anomalies flagged during mapping.
	RawActivities(ctx context.Context, cycleID string) ([]*activity.Activity, []shared.Anomaly, error)
}

// TimelineCache stores the bucketed activity timeline of a cycle.
type TimelineCache interface {
	SetTimeline(ctx context.Context, cycleID string, timeline map[activity.Bucket][]activity.Normalized) error
}

// ReconcileActivitiesJob pulls the current cycle's activity log from the
// remote service, persists the raw records, and rebuilds the cached
// timeline. The remote service is the source of truth for activities; the
// local archive exists so timeline views survive remote outages.
type ReconcileActivitiesJob struct {
	source       CycleSource
	cycleRepo    cycle.Repository
	activityRepo activity.Repository
	timeline     TimelineCache
	logger       *slog.Logger
	config       ReconcileActivitiesConfig

	lastStats atomic.Value // *ReconcileStats
}

// ReconcileActivitiesConfig contains configuration for the reconcile job.
type ReconcileActivitiesConfig struct {
	// Timeout is the maximum duration for one reconcile run.
	Timeout time.Duration

	// MaxFailureRate aborts the run with an error when more than this
	// share of activities fail to persist.
	MaxFailureRate float64
}

// DefaultReconcileActivitiesConfig returns sensible defaults.
func DefaultReconcileActivitiesConfig() ReconcileActivitiesConfig {
	return ReconcileActivitiesConfig{
		Timeout:        2 * time.Minute,
		MaxFailureRate: 0.5,
	}
}

// ReconcileStats contains statistics from a reconcile run.
type ReconcileStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	CycleID     string
	Fetched     int
	Saved       int
	Failed      int
	Anomalies   int
}

// NewReconcileActivitiesJob creates a new reconcile job.
func NewReconcileActivitiesJob(
	source CycleSource,
	cycleRepo cycle.Repository,
	activityRepo activity.Repository,
	timeline TimelineCache,
	logger *slog.Logger,
	config ReconcileActivitiesConfig,
) *ReconcileActivitiesJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxFailureRate <= 0 {
		config.MaxFailureRate = 0.5
	}

	return &ReconcileActivitiesJob{
		source:       source,
		cycleRepo:    cycleRepo,
		activityRepo: activityRepo,
		timeline:     timeline,
		logger:       logger,
		config:       config,
	}
}

// Name returns the job name.
func (j *ReconcileActivitiesJob) Name() string {
	return "reconcile_activities"
}

// Description returns a human-readable description.
func (j *ReconcileActivitiesJob) Description() string {
	return "Archives the current cycle's activities and rebuilds the timeline cache"
}

// Run executes the reconcile job.
func (j *ReconcileActivitiesJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &ReconcileStats{StartedAt: startedAt}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	current, err := j.source.CurrentCycle(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNoActiveCycle) {
			j.logger.Info("no active cycle, nothing to reconcile")
			j.finish(stats)
			return nil
		}
		return fmt.Errorf("failed to fetch current cycle: %w", err)
	}
	stats.CycleID = current.ID

	if err := j.cycleRepo.Save(ctx, current); err != nil {
		return fmt.Errorf("failed to save cycle %s: %w", current.ID, err)
	}

	raw, anomalies, err := j.source.RawActivities(ctx, current.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch activities for cycle %s: %w", current.ID, err)
	}
	stats.Fetched = len(raw)
	stats.Anomalies = len(anomalies)

	normalized := make([]activity.Normalized, 0, len(raw))
	for _, act := range raw {
		if err := j.activityRepo.Save(ctx, act); err != nil {
			stats.Failed++
			j.logger.Error("failed to archive activity",
				"activity_id", act.ID,
				"cycle_id", current.ID,
				"error", err,
			)
			continue
		}
		stats.Saved++
		normalized = append(normalized, act.Normalize())
	}

	if j.timeline != nil {
		grouped := activity.GroupByBucket(normalized, time.Now().UTC())
		if err := j.timeline.SetTimeline(ctx, current.ID, grouped); err != nil {
			j.logger.Warn("failed to refresh timeline cache",
				"cycle_id", current.ID,
				"error", err,
			)
		}
	}

	j.finish(stats)

	j.logger.Info("reconcile_activities job completed",
		"cycle_id", current.ID,
		"duration", stats.Duration.String(),
		"fetched", stats.Fetched,
		"saved", stats.Saved,
		"failed", stats.Failed,
		"anomalies", stats.Anomalies,
	)

	if stats.Fetched > 0 {
		failureRate := float64(stats.Failed) / float64(stats.Fetched)
		if failureRate > j.config.MaxFailureRate {
			return fmt.Errorf("archiving failed for %d of %d activities", stats.Failed, stats.Fetched)
		}
	}

	return nil
}

func (j *ReconcileActivitiesJob) finish(stats *ReconcileStats) {
	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
	j.lastStats.Store(stats)
}

// LastStats returns statistics from the last reconcile run.
func (j *ReconcileActivitiesJob) LastStats() *ReconcileStats {
	stats := j.lastStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*ReconcileStats)
}
