package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/activity"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/cycle"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/goal"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeSource struct {
	cycle    *cycle.Cycle
	cycleErr error

	acts      []*activity.Activity
	actAnoms  []shared.Anomaly
	goals     []*goal.Goal
	goalAnoms []shared.Anomaly
}

func (f *fakeSource) CurrentCycle(ctx context.Context) (*cycle.Cycle, error) {
	if f.cycleErr != nil {
		return nil, f.cycleErr
	}
	return f.cycle, nil
}

func (f *fakeSource) RawActivities(ctx context.Context, cycleID string) ([]*activity.Activity, []shared.Anomaly, error) {
	return f.acts, f.actAnoms, nil
}

func (f *fakeSource) Goals(ctx context.Context, cycleID string) ([]*goal.Goal, []shared.Anomaly, error) {
	return f.goals, f.goalAnoms, nil
}

type fakeCycleRepo struct {
	cycle.Repository

	saved   []*cycle.Cycle
	rollups []cycle.Rollup
}

func (f *fakeCycleRepo) Save(ctx context.Context, c *cycle.Cycle) error {
	f.saved = append(f.saved, c)
	return nil
}

func (f *fakeCycleRepo) SaveRollup(ctx context.Context, cycleID string, r cycle.Rollup, at time.Time) error {
	f.rollups = append(f.rollups, r)
	return nil
}

type fakeActivityRepo struct {
	activity.Repository

	saved   []*activity.Activity
	failIDs map[string]bool
}

func (f *fakeActivityRepo) Save(ctx context.Context, act *activity.Activity) error {
	if f.failIDs[act.ID] {
		return errors.New("disk full")
	}
	f.saved = append(f.saved, act)
	return nil
}

type fakeTimeline struct {
	cycleID string
	grouped map[activity.Bucket][]activity.Normalized
	err     error
}

func (f *fakeTimeline) SetTimeline(ctx context.Context, cycleID string, timeline map[activity.Bucket][]activity.Normalized) error {
	if f.err != nil {
		return f.err
	}
	f.cycleID = cycleID
	f.grouped = timeline
	return nil
}

type fakeRollupSink struct {
	rollups []cycle.Rollup
}

func (f *fakeRollupSink) SetRollup(ctx context.Context, cycleID string, r cycle.Rollup, at time.Time) error {
	f.rollups = append(f.rollups, r)
	return nil
}

func activeCycle() *cycle.Cycle {
	return &cycle.Cycle{
		ID:        "cycle-1",
		UserID:    "user-1",
		Name:      "Q4 Growth",
		Status:    cycle.StatusActive,
		StartDate: time.Now().UTC().AddDate(0, 0, -10),
		EndDate:   time.Now().UTC().AddDate(0, 0, 20),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE ACTIVITIES
// ══════════════════════════════════════════════════════════════════════════════

func TestReconcileActivitiesJob(t *testing.T) {
	ctx := context.Background()

	t.Run("archives activities and rebuilds the timeline", func(t *testing.T) {
		now := time.Now().UTC()
		source := &fakeSource{
			cycle: activeCycle(),
			acts: []*activity.Activity{
				{ID: "act-1", CycleID: "cycle-1", Type: activity.TypeMentoring, Title: "Mentoring", CreatedAt: now},
				{ID: "act-2", CycleID: "cycle-1", Type: activity.TypeGeneric, Title: "Reading", CreatedAt: now},
			},
		}
		cycles := &fakeCycleRepo{}
		acts := &fakeActivityRepo{}
		timeline := &fakeTimeline{}

		job := NewReconcileActivitiesJob(source, cycles, acts, timeline, nil, DefaultReconcileActivitiesConfig())
		require.NoError(t, job.Run(ctx))

		require.Len(t, cycles.saved, 1)
		assert.Len(t, acts.saved, 2)
		assert.Equal(t, "cycle-1", timeline.cycleID)
		require.NotNil(t, timeline.grouped)

		stats := job.LastStats()
		require.NotNil(t, stats)
		assert.Equal(t, 2, stats.Fetched)
		assert.Equal(t, 2, stats.Saved)
		assert.Equal(t, 0, stats.Failed)
	})

	t.Run("no active cycle is a clean no-op", func(t *testing.T) {
		source := &fakeSource{cycleErr: shared.ErrNoActiveCycle}
		job := NewReconcileActivitiesJob(source, &fakeCycleRepo{}, &fakeActivityRepo{}, nil, nil, DefaultReconcileActivitiesConfig())
		assert.NoError(t, job.Run(ctx))
	})

	t.Run("partial persist failures stay under the failure budget", func(t *testing.T) {
		now := time.Now().UTC()
		source := &fakeSource{
			cycle: activeCycle(),
			acts: []*activity.Activity{
				{ID: "act-1", CycleID: "cycle-1", Type: activity.TypeGeneric, CreatedAt: now},
				{ID: "act-2", CycleID: "cycle-1", Type: activity.TypeGeneric, CreatedAt: now},
				{ID: "act-3", CycleID: "cycle-1", Type: activity.TypeGeneric, CreatedAt: now},
			},
		}
		acts := &fakeActivityRepo{failIDs: map[string]bool{"act-2": true}}

		job := NewReconcileActivitiesJob(source, &fakeCycleRepo{}, acts, nil, nil, DefaultReconcileActivitiesConfig())
		require.NoError(t, job.Run(ctx))

		stats := job.LastStats()
		require.NotNil(t, stats)
		assert.Equal(t, 2, stats.Saved)
		assert.Equal(t, 1, stats.Failed)
	})

	t.Run("exceeding the failure budget fails the run", func(t *testing.T) {
		now := time.Now().UTC()
		source := &fakeSource{
			cycle: activeCycle(),
			acts: []*activity.Activity{
				{ID: "act-1", CycleID: "cycle-1", Type: activity.TypeGeneric, CreatedAt: now},
				{ID: "act-2", CycleID: "cycle-1", Type: activity.TypeGeneric, CreatedAt: now},
			},
		}
		acts := &fakeActivityRepo{failIDs: map[string]bool{"act-1": true, "act-2": true}}

		job := NewReconcileActivitiesJob(source, &fakeCycleRepo{}, acts, nil, nil, DefaultReconcileActivitiesConfig())
		assert.Error(t, job.Run(ctx))
	})

	t.Run("timeline cache failure does not fail the run", func(t *testing.T) {
		now := time.Now().UTC()
		source := &fakeSource{
			cycle: activeCycle(),
			acts: []*activity.Activity{
				{ID: "act-1", CycleID: "cycle-1", Type: activity.TypeGeneric, CreatedAt: now},
			},
		}
		timeline := &fakeTimeline{err: errors.New("redis down")}

		job := NewReconcileActivitiesJob(source, &fakeCycleRepo{}, &fakeActivityRepo{}, timeline, nil, DefaultReconcileActivitiesConfig())
		assert.NoError(t, job.Run(ctx))
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT ROLLUP
// ══════════════════════════════════════════════════════════════════════════════

func TestSnapshotRollupJob(t *testing.T) {
	ctx := context.Background()

	t.Run("records the rollup and refreshes the cache", func(t *testing.T) {
		source := &fakeSource{
			cycle: activeCycle(),
			goals: []*goal.Goal{
				{
					ID: "goal-1", CycleID: "cycle-1", Kind: goal.KindQuantity,
					Quantity: &goal.QuantityFields{TargetNumber: 10, CurrentNumber: 10},
				},
				{
					ID: "goal-2", CycleID: "cycle-1", Kind: goal.KindDeadline,
					Deadline: &goal.DeadlineFields{Deadline: time.Now().UTC().AddDate(0, 0, 5)},
				},
			},
		}
		cycles := &fakeCycleRepo{}
		sink := &fakeRollupSink{}

		job := NewSnapshotRollupJob(source, cycles, sink, nil, time.Minute)
		require.NoError(t, job.Run(ctx))

		require.Len(t, cycles.rollups, 1)
		assert.Equal(t, 1, cycles.rollups[0].CompletedCount)
		assert.Equal(t, 2, cycles.rollups[0].TotalCount)

		require.Len(t, sink.rollups, 1)
		assert.Equal(t, cycles.rollups[0], sink.rollups[0])
	})

	t.Run("no active cycle is a clean no-op", func(t *testing.T) {
		source := &fakeSource{cycleErr: shared.ErrNoActiveCycle}
		cycles := &fakeCycleRepo{}

		job := NewSnapshotRollupJob(source, cycles, nil, nil, 0)
		require.NoError(t, job.Run(ctx))
		assert.Empty(t, cycles.rollups)
	})
}
