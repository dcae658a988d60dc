package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cycle-hub/cycle-progress-hub/internal/application/store"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/activity"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/competency"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/cycle"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/goal"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/xp"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeRemote struct {
	cycle *cycle.Cycle
	goals []*goal.Goal
	acts  []activity.Normalized
}

func (f *fakeRemote) CurrentCycle(ctx context.Context) (*cycle.Cycle, error) {
	if f.cycle == nil {
		return nil, shared.ErrNoActiveCycle
	}
	return f.cycle, nil
}

func (f *fakeRemote) CreateCycle(ctx context.Context, draft *cycle.Cycle) (*cycle.Cycle, error) {
	f.cycle = draft
	return draft, nil
}

func (f *fakeRemote) Goals(ctx context.Context, cycleID string) ([]*goal.Goal, []shared.Anomaly, error) {
	return f.goals, nil, nil
}

func (f *fakeRemote) PatchGoalProgress(ctx context.Context, goalID string, p goal.Patch) (*goal.Goal, error) {
	return nil, nil
}

func (f *fakeRemote) Activities(ctx context.Context, cycleID string) ([]activity.Normalized, []shared.Anomaly, error) {
	return f.acts, nil, nil
}

func (f *fakeRemote) LogActivity(ctx context.Context, draft *activity.Activity) (*activity.Activity, []shared.Anomaly, error) {
	return draft, nil, nil
}

func (f *fakeRemote) DeleteActivity(ctx context.Context, activityID string) error {
	return nil
}

func (f *fakeRemote) PostCompetencyEvidence(ctx context.Context, competencyID string, ev competency.Evidence) (*competency.Progress, error) {
	return nil, nil
}

type fakeCycleRepo struct {
	cycle.Repository

	rollup    cycle.Rollup
	rollupAt  time.Time
	rollupErr error
}

func (f *fakeCycleRepo) LatestRollup(ctx context.Context, cycleID string) (cycle.Rollup, time.Time, error) {
	if f.rollupErr != nil {
		return cycle.Rollup{}, time.Time{}, f.rollupErr
	}
	return f.rollup, f.rollupAt, nil
}

type fakeActivityRepo struct {
	activity.Repository

	acts []*activity.Activity
}

func (f *fakeActivityRepo) ListByCycle(ctx context.Context, cycleID string) ([]*activity.Activity, error) {
	return f.acts, nil
}

type fakeXPRepo struct {
	xp.Repository

	entries []xp.Entry
}

func (f *fakeXPRepo) History(ctx context.Context, userID string) ([]xp.Entry, error) {
	return f.entries, nil
}

type fakeCompetencyRepo struct {
	competency.Repository

	progressions []*competency.Progress
}

func (f *fakeCompetencyRepo) GetProgress(ctx context.Context, competencyID, userID string) (*competency.Progress, error) {
	for _, p := range f.progressions {
		if p.CompetencyID == competencyID {
			return p, nil
		}
	}
	return nil, shared.ErrCompetencyNotFound
}

func (f *fakeCompetencyRepo) ListProgressByUser(ctx context.Context, userID string) ([]*competency.Progress, error) {
	return f.progressions, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURES
// ══════════════════════════════════════════════════════════════════════════════

func loadedStore(t *testing.T, remote *fakeRemote) *store.Store {
	t.Helper()
	s := store.New(remote, nil, store.Config{UserID: "user-1"})
	require.NoError(t, s.Load(context.Background()))
	return s
}

func overviewRemote() *fakeRemote {
	return &fakeRemote{
		cycle: &cycle.Cycle{
			ID:        "cycle-1",
			UserID:    "user-1",
			Name:      "Q4 Growth",
			Status:    cycle.StatusActive,
			Duration:  cycle.DurationThreeMonths,
			StartDate: time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		},
		goals: []*goal.Goal{
			{
				ID:      "goal-1",
				CycleID: "cycle-1",
				Kind:    goal.KindQuantity,
				Title:   "Read books",
				Quantity: &goal.QuantityFields{
					TargetNumber:  10,
					CurrentNumber: 5,
					Unit:          "books",
				},
			},
			{
				ID:      "goal-2",
				CycleID: "cycle-1",
				Kind:    goal.KindDeadline,
				Title:   "Ship the report",
				Deadline: &goal.DeadlineFields{
					Deadline:  time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC),
					Completed: true,
				},
			},
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS OVERVIEW
// ══════════════════════════════════════════════════════════════════════════════

func TestGetProgressOverview(t *testing.T) {
	ctx := context.Background()

	t.Run("returns cycle, rollup, and goals from the snapshot", func(t *testing.T) {
		s := loadedStore(t, overviewRemote())
		h := NewGetProgressOverviewHandler(s, nil)

		res, err := h.Handle(ctx, GetProgressOverviewQuery{IncludeGoals: true})
		require.NoError(t, err)

		require.NotNil(t, res.Cycle)
		assert.Equal(t, "cycle-1", res.Cycle.ID)
		assert.Equal(t, "active", res.Cycle.Status)

		assert.Equal(t, 2, res.Rollup.TotalCount)
		assert.Equal(t, 1, res.Rollup.CompletedCount)

		require.Len(t, res.Goals, 2)
		assert.Equal(t, 50.0, res.Goals[0].ProgressPercentage)
		require.NotNil(t, res.Goals[0].Quantity)
		assert.Equal(t, "books", res.Goals[0].Quantity.Unit)
		assert.True(t, res.Goals[1].Completed)
	})

	t.Run("no active cycle is a not-found error", func(t *testing.T) {
		s := store.New(&fakeRemote{}, nil, store.Config{UserID: "user-1"})
		require.NoError(t, s.Load(ctx))

		h := NewGetProgressOverviewHandler(s, nil)
		_, err := h.Handle(ctx, GetProgressOverviewQuery{})
		assert.ErrorIs(t, err, shared.ErrNoActiveCycle)
	})

	t.Run("includes archived rollup when requested", func(t *testing.T) {
		s := loadedStore(t, overviewRemote())
		archivedAt := time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)
		repo := &fakeCycleRepo{
			rollup:   cycle.Rollup{ProgressPercentage: 25, TotalCount: 2},
			rollupAt: archivedAt,
		}
		h := NewGetProgressOverviewHandler(s, repo)

		res, err := h.Handle(ctx, GetProgressOverviewQuery{IncludeRollupHistory: true})
		require.NoError(t, err)
		require.NotNil(t, res.ArchivedRollup)
		assert.Equal(t, 25, res.ArchivedRollup.ProgressPercentage)
		require.NotNil(t, res.ArchivedAt)
		assert.Equal(t, archivedAt, *res.ArchivedAt)
	})

	t.Run("missing rollup history is not an error", func(t *testing.T) {
		s := loadedStore(t, overviewRemote())
		repo := &fakeCycleRepo{rollupErr: shared.ErrCycleNotFound}
		h := NewGetProgressOverviewHandler(s, repo)

		res, err := h.Handle(ctx, GetProgressOverviewQuery{IncludeRollupHistory: true})
		require.NoError(t, err)
		assert.Nil(t, res.ArchivedRollup)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// TIMELINE
// ══════════════════════════════════════════════════════════════════════════════

func TestGetTimeline(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	remote := overviewRemote()
	remote.acts = []activity.Normalized{
		{ID: "act-1", Type: activity.TypeMentoring, Title: "Mentoring", Timestamp: now},
		{ID: "act-2", Type: activity.TypeOneOnOne, Title: "1:1", Timestamp: now},
		{ID: "act-3", Type: activity.TypeMentoring, Title: "Mentoring", Timestamp: now.AddDate(0, 0, -40)},
	}

	t.Run("groups live activities into buckets", func(t *testing.T) {
		s := loadedStore(t, remote)
		h := NewGetTimelineHandler(s, nil)

		res, err := h.Handle(ctx, GetTimelineQuery{})
		require.NoError(t, err)

		assert.Equal(t, "live", res.Source)
		assert.Equal(t, 3, res.TotalCount)
		require.Len(t, res.Buckets, 2)
		assert.Equal(t, string(activity.BucketToday), res.Buckets[0].Bucket)
		assert.Equal(t, 2, res.Buckets[0].Count)
		assert.Equal(t, string(activity.BucketOlder), res.Buckets[1].Bucket)
	})

	t.Run("filters by type", func(t *testing.T) {
		s := loadedStore(t, remote)
		h := NewGetTimelineHandler(s, nil)

		res, err := h.Handle(ctx, GetTimelineQuery{Type: "mentoring"})
		require.NoError(t, err)

		assert.Equal(t, 2, res.TotalCount)
		for _, b := range res.Buckets {
			for _, e := range b.Entries {
				assert.Equal(t, "mentoring", e.Type)
			}
		}
	})

	t.Run("rejects unknown buckets and types", func(t *testing.T) {
		s := loadedStore(t, remote)
		h := NewGetTimelineHandler(s, nil)

		_, err := h.Handle(ctx, GetTimelineQuery{Bucket: "fortnight"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)

		_, err = h.Handle(ctx, GetTimelineQuery{Type: "karaoke"})
		assert.Error(t, err)
	})

	t.Run("archive reads require a cycle id", func(t *testing.T) {
		s := loadedStore(t, remote)
		h := NewGetTimelineHandler(s, &fakeActivityRepo{})

		_, err := h.Handle(ctx, GetTimelineQuery{FromArchive: true})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("reads normalized entries from the archive", func(t *testing.T) {
		s := loadedStore(t, remote)
		repo := &fakeActivityRepo{acts: []*activity.Activity{
			{
				ID:        "act-9",
				CycleID:   "cycle-1",
				Type:      activity.TypeMentoring,
				Title:     "Mentoring",
				CreatedAt: now.Add(-2 * time.Hour),
			},
		}}
		h := NewGetTimelineHandler(s, repo)

		res, err := h.Handle(ctx, GetTimelineQuery{FromArchive: true, CycleID: "cycle-1"})
		require.NoError(t, err)

		assert.Equal(t, "archive", res.Source)
		require.Len(t, res.Buckets, 1)
		require.Len(t, res.Buckets[0].Entries, 1)
		assert.Equal(t, "act-9", res.Buckets[0].Entries[0].ID)
		// Missing mentoring payload gets the placeholder on normalize.
		assert.Equal(t, activity.UnknownMentor, res.Buckets[0].Entries[0].Person)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// XP SUMMARY
// ══════════════════════════════════════════════════════════════════════════════

func TestGetXPSummary(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a user id", func(t *testing.T) {
		s := loadedStore(t, overviewRemote())
		h := NewGetXPSummaryHandler(s, nil, nil)

		_, err := h.Handle(ctx, GetXPSummaryQuery{})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("serves the live ledger", func(t *testing.T) {
		s := loadedStore(t, overviewRemote())
		h := NewGetXPSummaryHandler(s, nil, nil)

		res, err := h.Handle(ctx, GetXPSummaryQuery{UserID: "user-1"})
		require.NoError(t, err)

		assert.Equal(t, "live", res.Source)
		assert.Equal(t, 1, res.Level)
		assert.Equal(t, 0, res.TotalXP)
		assert.Positive(t, res.XPToNextLevel)
	})

	t.Run("replays the persisted ledger", func(t *testing.T) {
		awardedAt := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
		repo := &fakeXPRepo{entries: []xp.Entry{
			{SourceID: "goal-1", SourceKind: xp.SourceGoalCompleted, Amount: 150, AwardedAt: awardedAt},
			{SourceID: "cert-1", SourceKind: xp.SourceCertification, Amount: 100, AwardedAt: awardedAt.Add(time.Hour)},
		}}
		s := loadedStore(t, overviewRemote())
		h := NewGetXPSummaryHandler(s, repo, nil)

		res, err := h.Handle(ctx, GetXPSummaryQuery{
			UserID:          "user-1",
			FromLedgerStore: true,
			IncludeHistory:  true,
		})
		require.NoError(t, err)

		assert.Equal(t, "ledger_store", res.Source)
		assert.Equal(t, 250, res.TotalXP)
		// sqrt(250/100) floors to 1, so level 2.
		assert.Equal(t, 2, res.Level)

		require.Len(t, res.History, 2)
		// Newest first.
		assert.Equal(t, "cert-1", res.History[0].SourceID)
		assert.Equal(t, "goal-1", res.History[1].SourceID)
	})

	t.Run("persisted reads without a ledger store fail", func(t *testing.T) {
		s := loadedStore(t, overviewRemote())
		h := NewGetXPSummaryHandler(s, nil, nil)

		_, err := h.Handle(ctx, GetXPSummaryQuery{UserID: "user-1", FromLedgerStore: true})
		assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPETENCIES
// ══════════════════════════════════════════════════════════════════════════════

func TestGetCompetencies(t *testing.T) {
	ctx := context.Background()

	t.Run("lists tracked progressions from the store", func(t *testing.T) {
		s := loadedStore(t, overviewRemote())
		_, err := s.TrackCompetency("comp-1", 2, 4)
		require.NoError(t, err)

		h := NewGetCompetenciesHandler(s, nil)
		res, err := h.Handle(ctx, GetCompetenciesQuery{UserID: "user-1"})
		require.NoError(t, err)

		assert.Equal(t, "live", res.Source)
		require.Len(t, res.Progressions, 1)
		assert.Equal(t, "comp-1", res.Progressions[0].CompetencyID)
		assert.Equal(t, 2, res.Progressions[0].CurrentLevel)
		assert.True(t, res.Progressions[0].ActiveInCycle)
	})

	t.Run("single unknown competency yields an empty result", func(t *testing.T) {
		s := loadedStore(t, overviewRemote())
		h := NewGetCompetenciesHandler(s, nil)

		res, err := h.Handle(ctx, GetCompetenciesQuery{UserID: "user-1", CompetencyID: "nope"})
		require.NoError(t, err)
		assert.Empty(t, res.Progressions)
	})

	t.Run("reads the archive with evidence", func(t *testing.T) {
		s := loadedStore(t, overviewRemote())
		repo := &fakeCompetencyRepo{progressions: []*competency.Progress{
			{
				CompetencyID: "comp-1",
				UserID:       "user-1",
				CurrentLevel: 3,
				TargetLevel:  5,
				ProgressPct:  40,
				Evidence: []competency.Evidence{
					{ID: "ev-1", Type: competency.EvidenceCourse, Title: "Go course"},
				},
			},
			{
				CompetencyID:  "comp-2",
				UserID:        "user-1",
				CurrentLevel:  1,
				TargetLevel:   2,
				ActiveInCycle: true,
			},
		}}
		h := NewGetCompetenciesHandler(s, repo)

		res, err := h.Handle(ctx, GetCompetenciesQuery{
			UserID:          "user-1",
			FromArchive:     true,
			IncludeEvidence: true,
		})
		require.NoError(t, err)

		assert.Equal(t, "archive", res.Source)
		require.Len(t, res.Progressions, 2)
		assert.Equal(t, 1, res.Progressions[0].EvidenceCount)
		require.Len(t, res.Progressions[0].Evidence, 1)
		assert.Equal(t, "ev-1", res.Progressions[0].Evidence[0].ID)

		// ActiveOnly drops the archived-only progression.
		res, err = h.Handle(ctx, GetCompetenciesQuery{UserID: "user-1", FromArchive: true, ActiveOnly: true})
		require.NoError(t, err)
		require.Len(t, res.Progressions, 1)
		assert.Equal(t, "comp-2", res.Progressions[0].CompetencyID)
	})
}
