package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
	mu sync.Mutex

	cycle       *cycle.Cycle
	cycleErr    error
	goals       []*goal.Goal
	goalAnoms   []shared.Anomaly
	acts        []activity.Normalized
	actAnoms    []shared.Anomaly
	actsErr     error
	logged      []*activity.Activity
	logErr      error
	deleted     []string
	deleteErr   error
	evidence    []competency.Evidence
	evidenceErr error

	patchCalls int
	patchFn    func(call int, goalID string, p goal.Patch) (*goal.Goal, error)
}

func (f *fakeRemote) CurrentCycle(ctx context.Context) (*cycle.Cycle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cycleErr != nil {
		return nil, f.cycleErr
	}
	return f.cycle, nil
}

func (f *fakeRemote) CreateCycle(ctx context.Context, draft *cycle.Cycle) (*cycle.Cycle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cycle = draft
	return draft, nil
}

func (f *fakeRemote) Goals(ctx context.Context, cycleID string) ([]*goal.Goal, []shared.Anomaly, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.goals, f.goalAnoms, nil
}

func (f *fakeRemote) PatchGoalProgress(ctx context.Context, goalID string, p goal.Patch) (*goal.Goal, error) {
	f.mu.Lock()
	f.patchCalls++
	call := f.patchCalls
	fn := f.patchFn
	f.mu.Unlock()

	if fn != nil {
		return fn(call, goalID, p)
	}
	return nil, nil
}

func (f *fakeRemote) Activities(ctx context.Context, cycleID string) ([]activity.Normalized, []shared.Anomaly, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.actsErr != nil {
		return nil, nil, f.actsErr
	}
	return f.acts, f.actAnoms, nil
}

func (f *fakeRemote) LogActivity(ctx context.Context, draft *activity.Activity) (*activity.Activity, []shared.Anomaly, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.logErr != nil {
		return nil, nil, f.logErr
	}
	f.logged = append(f.logged, draft)
	return draft, nil, nil
}

func (f *fakeRemote) DeleteActivity(ctx context.Context, activityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, activityID)
	return nil
}

func (f *fakeRemote) PostCompetencyEvidence(ctx context.Context, competencyID string, ev competency.Evidence) (*competency.Progress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.evidenceErr != nil {
		return nil, f.evidenceErr
	}
	f.evidence = append(f.evidence, ev)
	return nil, nil
}

type capturingBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *capturingBus) Publish(event shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *capturingBus) typesSeen() map[shared.EventType]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := make(map[shared.EventType]int)
	for _, e := range b.events {
		seen[e.EventType()]++
	}
	return seen
}

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURES
// ══════════════════════════════════════════════════════════════════════════════

func f64(v float64) *float64 { return &v }

func boolPtr(v bool) *bool { return &v }

func testCycle() *cycle.Cycle {
	return &cycle.Cycle{
		ID:        "cycle-1",
		UserID:    "user-1",
		Name:      "Q4 Growth",
		Status:    cycle.StatusActive,
		Duration:  cycle.DurationThreeMonths,
		StartDate: time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		GoalIDs:   []string{"goal-1", "goal-2"},
	}
}

func quantityGoal(current float64) *goal.Goal {
	return &goal.Goal{
		ID:      "goal-1",
		CycleID: "cycle-1",
		Kind:    goal.KindQuantity,
		Title:   "Read books",
		Quantity: &goal.QuantityFields{
			TargetNumber:  10,
			CurrentNumber: current,
			Unit:          "books",
		},
	}
}

func deadlineGoal() *goal.Goal {
	return &goal.Goal{
		ID:      "goal-2",
		CycleID: "cycle-1",
		Kind:    goal.KindDeadline,
		Title:   "Ship the report",
		Deadline: &goal.DeadlineFields{
			Deadline: time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC),
		},
	}
}

func newLoadedStore(t *testing.T, remote *fakeRemote, bus shared.EventPublisher) *Store {
	t.Helper()
	if remote.cycle == nil {
		remote.cycle = testCycle()
		remote.goals = []*goal.Goal{quantityGoal(3), deadlineGoal()}
	}
	s := New(remote, bus, Config{
		UserID:      "user-1",
		SyncTimeout: 2 * time.Second,
	})
	require.NoError(t, s.Load(context.Background()))
	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// LOADING
// ══════════════════════════════════════════════════════════════════════════════

func TestStoreLoad(t *testing.T) {
	t.Run("populates snapshot from remote state", func(t *testing.T) {
		remote := &fakeRemote{
			cycle: testCycle(),
			goals: []*goal.Goal{quantityGoal(3), deadlineGoal()},
			acts: []activity.Normalized{
				{ID: "act-1", Type: activity.TypeMentoring, Title: "Mentoring"},
			},
		}
		s := New(remote, nil, Config{UserID: "user-1"})
		require.NoError(t, s.Load(context.Background()))

		snap := s.Snapshot()
		require.NotNil(t, snap.Cycle)
		assert.Equal(t, "cycle-1", snap.Cycle.ID)
		assert.Len(t, snap.Goals, 2)
		assert.Len(t, snap.Activities, 1)
		assert.Equal(t, 2, snap.Rollup.TotalCount)
		assert.Equal(t, 0, snap.Rollup.CompletedCount)
	})

	t.Run("no active cycle is empty state not error", func(t *testing.T) {
		remote := &fakeRemote{cycleErr: shared.ErrNoActiveCycle}
		s := New(remote, nil, Config{UserID: "user-1"})
		require.NoError(t, s.Load(context.Background()))

		snap := s.Snapshot()
		assert.Nil(t, snap.Cycle)
		assert.Empty(t, snap.Goals)
		assert.Equal(t, cycle.Rollup{}, snap.Rollup)
	})

	t.Run("activity fetch failure degrades with anomaly", func(t *testing.T) {
		remote := &fakeRemote{
			cycle:   testCycle(),
			goals:   []*goal.Goal{quantityGoal(3)},
			actsErr: shared.ErrServiceUnavailable,
		}
		s := New(remote, nil, Config{UserID: "user-1"})
		require.NoError(t, s.Load(context.Background()))

		snap := s.Snapshot()
		assert.Len(t, snap.Goals, 1)
		assert.Empty(t, snap.Activities)
		require.Len(t, snap.Anomalies, 1)
		assert.Equal(t, "activity", snap.Anomalies[0].Domain)
	})

	t.Run("reload resets ui state", func(t *testing.T) {
		remote := &fakeRemote{}
		s := newLoadedStore(t, remote, nil)
		require.NoError(t, s.OpenModal(ModalGoalEditor, ""))
		require.NoError(t, s.SelectGoal("goal-1"))

		require.NoError(t, s.Load(context.Background()))

		ui := s.UI()
		assert.Equal(t, ModalNone, ui.ActiveModal)
		assert.Empty(t, ui.SelectedGoalID)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// GOAL PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

func TestUpdateGoalProgress(t *testing.T) {
	t.Run("rejects unknown goal", func(t *testing.T) {
		s := newLoadedStore(t, &fakeRemote{}, nil)
		err := s.UpdateGoalProgress("no-such-goal", goal.Patch{CurrentNumber: f64(5)})
		assert.ErrorIs(t, err, shared.ErrGoalNotFound)
	})

	t.Run("rejects empty patch", func(t *testing.T) {
		s := newLoadedStore(t, &fakeRemote{}, nil)
		err := s.UpdateGoalProgress("goal-1", goal.Patch{})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("rejects foreign variant fields", func(t *testing.T) {
		s := newLoadedStore(t, &fakeRemote{}, nil)
		err := s.UpdateGoalProgress("goal-1", goal.Patch{Completed: boolPtr(true)})
		assert.ErrorIs(t, err, shared.ErrGoalPatchMismatch)
	})

	t.Run("applies optimistically before sync completes", func(t *testing.T) {
		release := make(chan struct{})
		remote := &fakeRemote{
			patchFn: func(call int, goalID string, p goal.Patch) (*goal.Goal, error) {
				<-release
				return nil, nil
			},
		}
		s := newLoadedStore(t, remote, nil)

		require.NoError(t, s.UpdateGoalProgress("goal-1", goal.Patch{CurrentNumber: f64(7)}))

		g, err := s.Goal("goal-1")
		require.NoError(t, err)
		assert.InDelta(t, 7, g.Quantity.CurrentNumber, 0.0001)

		state, ok := s.SyncState("goal-1")
		require.True(t, ok)
		assert.Equal(t, SyncPending, state.Status)

		close(release)
		s.Wait()

		state, _ = s.SyncState("goal-1")
		assert.Equal(t, SyncConfirmed, state.Status)
	})

	t.Run("completion transition awards xp and updates rollup", func(t *testing.T) {
		bus := &capturingBus{}
		s := newLoadedStore(t, &fakeRemote{}, bus)

		require.NoError(t, s.UpdateGoalProgress("goal-2", goal.Patch{Completed: boolPtr(true)}))
		s.Wait()

		snap := s.Snapshot()
		assert.Equal(t, 1, snap.Rollup.CompletedCount)
		assert.Equal(t, 50, snap.Rollup.ProgressPercentage)
		assert.Equal(t, xp.AwardFor(xp.SourceGoalCompleted), snap.TotalXP)
		assert.Equal(t, 2, snap.Level)

		seen := bus.typesSeen()
		assert.Equal(t, 1, seen[shared.EventGoalCompleted])
		assert.Equal(t, 1, seen[shared.EventXPAwarded])
		assert.Equal(t, 1, seen[shared.EventLevelUp])
	})

	t.Run("completion xp awarded once across repeated patches", func(t *testing.T) {
		s := newLoadedStore(t, &fakeRemote{}, nil)

		require.NoError(t, s.UpdateGoalProgress("goal-1", goal.Patch{CurrentNumber: f64(10)}))
		require.NoError(t, s.UpdateGoalProgress("goal-1", goal.Patch{CurrentNumber: f64(12)}))
		s.Wait()

		snap := s.Snapshot()
		assert.Equal(t, xp.AwardFor(xp.SourceGoalCompleted), snap.TotalXP)
	})

	t.Run("toggling completion off and back awards no second entry", func(t *testing.T) {
		bus := &capturingBus{}
		s := newLoadedStore(t, &fakeRemote{}, bus)

		require.NoError(t, s.UpdateGoalProgress("goal-2", goal.Patch{Completed: boolPtr(true)}))
		require.NoError(t, s.UpdateGoalProgress("goal-2", goal.Patch{Completed: boolPtr(false)}))
		require.NoError(t, s.UpdateGoalProgress("goal-2", goal.Patch{Completed: boolPtr(true)}))
		s.Wait()

		snap := s.Snapshot()
		assert.Equal(t, xp.AwardFor(xp.SourceGoalCompleted), snap.TotalXP)
		assert.Equal(t, 1, bus.typesSeen()[shared.EventXPAwarded])
	})

	t.Run("goal loaded complete earns nothing from a toggle", func(t *testing.T) {
		done := deadlineGoal()
		done.Deadline.Completed = true
		remote := &fakeRemote{
			cycle: testCycle(),
			goals: []*goal.Goal{quantityGoal(3), done},
		}
		s := newLoadedStore(t, remote, nil)

		require.NoError(t, s.UpdateGoalProgress("goal-2", goal.Patch{Completed: boolPtr(false)}))
		require.NoError(t, s.UpdateGoalProgress("goal-2", goal.Patch{Completed: boolPtr(true)}))
		s.Wait()

		assert.Equal(t, shared.XP(0), s.Snapshot().TotalXP)
	})

	t.Run("remote failure keeps local edit and marks failed", func(t *testing.T) {
		bus := &capturingBus{}
		remote := &fakeRemote{
			patchFn: func(call int, goalID string, p goal.Patch) (*goal.Goal, error) {
				return nil, shared.ErrServiceUnavailable
			},
		}
		s := newLoadedStore(t, remote, bus)

		require.NoError(t, s.UpdateGoalProgress("goal-1", goal.Patch{CurrentNumber: f64(9)}))
		s.Wait()

		g, err := s.Goal("goal-1")
		require.NoError(t, err)
		assert.InDelta(t, 9, g.Quantity.CurrentNumber, 0.0001)

		state, ok := s.SyncState("goal-1")
		require.True(t, ok)
		assert.Equal(t, SyncFailed, state.Status)
		assert.NotEmpty(t, state.LastError)
		assert.Equal(t, 1, bus.typesSeen()[shared.EventGoalUpdateFailed])
	})

	t.Run("slow remote times out into failed state", func(t *testing.T) {
		remote := &fakeRemote{
			patchFn: func(call int, goalID string, p goal.Patch) (*goal.Goal, error) {
				time.Sleep(100 * time.Millisecond)
				return nil, context.DeadlineExceeded
			},
		}
		remote.cycle = testCycle()
		remote.goals = []*goal.Goal{quantityGoal(3)}
		s := New(remote, nil, Config{UserID: "user-1", SyncTimeout: 10 * time.Millisecond})
		require.NoError(t, s.Load(context.Background()))

		require.NoError(t, s.UpdateGoalProgress("goal-1", goal.Patch{CurrentNumber: f64(4)}))
		s.Wait()

		state, _ := s.SyncState("goal-1")
		assert.Equal(t, SyncFailed, state.Status)
	})
}

// Two rapid edits of the same goal: the first response comes back after the
// second edit and must not overwrite the newer local state.
func TestUpdateGoalProgressStaleResponse(t *testing.T) {
	firstEntered := make(chan struct{})
	releaseFirst := make(chan struct{})

	remote := &fakeRemote{}
	remote.patchFn = func(call int, goalID string, p goal.Patch) (*goal.Goal, error) {
		if call == 1 {
			close(firstEntered)
			<-releaseFirst
			// Authoritative echo of the first, now superseded, patch.
			return quantityGoal(5), nil
		}
		return quantityGoal(7), nil
	}

	s := newLoadedStore(t, remote, nil)

	require.NoError(t, s.UpdateGoalProgress("goal-1", goal.Patch{CurrentNumber: f64(5)}))
	<-firstEntered
	require.NoError(t, s.UpdateGoalProgress("goal-1", goal.Patch{CurrentNumber: f64(7)}))

	// Both edits are local already; the second is queued behind the first.
	g, err := s.Goal("goal-1")
	require.NoError(t, err)
	assert.InDelta(t, 7, g.Quantity.CurrentNumber, 0.0001)

	close(releaseFirst)
	s.Wait()

	g, err = s.Goal("goal-1")
	require.NoError(t, err)
	assert.InDelta(t, 7, g.Quantity.CurrentNumber, 0.0001,
		"stale first response must not overwrite the newer edit")

	state, ok := s.SyncState("goal-1")
	require.True(t, ok)
	assert.Equal(t, SyncConfirmed, state.Status)
	assert.Equal(t, uint64(2), state.Version)
	assert.Zero(t, state.QueueDepth)
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPETENCIES
// ══════════════════════════════════════════════════════════════════════════════

func TestStoreCompetencies(t *testing.T) {
	t.Run("track then add evidence advances progress and books xp", func(t *testing.T) {
		remote := &fakeRemote{}
		s := newLoadedStore(t, remote, nil)

		_, err := s.TrackCompetency("comp-go", 2, 4)
		require.NoError(t, err)

		res, err := s.AddEvidence(context.Background(), "comp-go", competency.Evidence{
			Type:  competency.EvidenceProject,
			Title: "Shipped the ingestion service",
		})
		require.NoError(t, err)
		assert.Equal(t, 20, res.Progress.ProgressPct)
		assert.False(t, res.LeveledUp)

		snap := s.Snapshot()
		assert.Equal(t, xp.AwardFor(xp.SourceEvidence), snap.TotalXP)
		require.Len(t, remote.evidence, 1)
		assert.NotEmpty(t, remote.evidence[0].ID)
	})

	t.Run("level up grants bonus xp", func(t *testing.T) {
		bus := &capturingBus{}
		s := newLoadedStore(t, &fakeRemote{}, bus)

		_, err := s.TrackCompetency("comp-go", 2, 4)
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			_, err := s.AddEvidence(context.Background(), "comp-go", competency.Evidence{
				Type:  competency.EvidenceCourse,
				Title: "Course module",
			})
			require.NoError(t, err)
		}

		p, err := s.CompetencyProgress("comp-go")
		require.NoError(t, err)
		assert.Equal(t, 3, p.CurrentLevel)
		assert.Equal(t, 0, p.ProgressPct)

		want := 5*xp.AwardFor(xp.SourceEvidence) + xp.AwardFor(xp.SourceCompetencyLevelUp)
		assert.Equal(t, want, s.Snapshot().TotalXP)
		assert.Equal(t, 1, bus.typesSeen()[shared.EventCompetencyLevelUp])
	})

	t.Run("duplicate tracking rejected", func(t *testing.T) {
		s := newLoadedStore(t, &fakeRemote{}, nil)
		_, err := s.TrackCompetency("comp-go", 1, 3)
		require.NoError(t, err)
		_, err = s.TrackCompetency("comp-go", 1, 3)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("evidence against untracked competency rejected", func(t *testing.T) {
		s := newLoadedStore(t, &fakeRemote{}, nil)
		_, err := s.AddEvidence(context.Background(), "comp-ghost", competency.Evidence{
			Type:  competency.EvidenceCourse,
			Title: "Course",
		})
		assert.ErrorIs(t, err, shared.ErrCompetencyNotFound)
	})

	t.Run("remote push failure keeps evidence and records anomaly", func(t *testing.T) {
		remote := &fakeRemote{evidenceErr: shared.ErrServiceUnavailable}
		s := newLoadedStore(t, remote, nil)

		_, err := s.TrackCompetency("comp-go", 1, 3)
		require.NoError(t, err)

		res, err := s.AddEvidence(context.Background(), "comp-go", competency.Evidence{
			Type:  competency.EvidenceFeedback,
			Title: "Peer feedback",
		})
		require.NoError(t, err)
		assert.Equal(t, 20, res.Progress.ProgressPct)

		anomalies := s.Anomalies()
		require.Len(t, anomalies, 1)
		assert.Equal(t, "competency", anomalies[0].Domain)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// UI STATE
// ══════════════════════════════════════════════════════════════════════════════

func TestStoreUIState(t *testing.T) {
	t.Run("opening a modal replaces the previous one", func(t *testing.T) {
		s := newLoadedStore(t, &fakeRemote{}, nil)

		require.NoError(t, s.OpenModal(ModalCycleWizard, ""))
		require.NoError(t, s.OpenModal(ModalEvidenceForm, ""))
		assert.Equal(t, ModalEvidenceForm, s.UI().ActiveModal)

		s.CloseModal()
		assert.Equal(t, ModalNone, s.UI().ActiveModal)
	})

	t.Run("opening with a selection preselects the goal", func(t *testing.T) {
		s := newLoadedStore(t, &fakeRemote{}, nil)

		require.NoError(t, s.OpenModal(ModalGoalEditor, "goal-1"))
		assert.Equal(t, "goal-1", s.UI().SelectedGoalID)

		err := s.OpenModal(ModalGoalEditor, "goal-404")
		assert.ErrorIs(t, err, shared.ErrGoalNotFound)
	})

	t.Run("unknown modal kind rejected", func(t *testing.T) {
		s := newLoadedStore(t, &fakeRemote{}, nil)
		err := s.OpenModal(ModalKind("popup_of_doom"), "")
		assert.ErrorIs(t, err, shared.ErrUnknownVariant)
	})

	t.Run("close all and reset clear everything", func(t *testing.T) {
		s := newLoadedStore(t, &fakeRemote{}, nil)

		require.NoError(t, s.OpenModal(ModalGoalEditor, "goal-1"))
		s.CloseAll()
		ui := s.UI()
		assert.Equal(t, ModalNone, ui.ActiveModal)
		assert.Empty(t, ui.SelectedGoalID)

		s.SetFilters(Filters{HideCompleted: true})
		s.ResetUI()
		assert.False(t, s.UI().Filters.HideCompleted)
	})

	t.Run("selection requires a loaded goal", func(t *testing.T) {
		s := newLoadedStore(t, &fakeRemote{}, nil)

		assert.ErrorIs(t, s.SelectGoal("goal-404"), shared.ErrGoalNotFound)
		require.NoError(t, s.SelectGoal("goal-1"))
		assert.Equal(t, "goal-1", s.UI().SelectedGoalID)

		s.ClearSelection()
		assert.Empty(t, s.UI().SelectedGoalID)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// CYCLE CREATION
// ══════════════════════════════════════════════════════════════════════════════

func TestStoreCreateCycle(t *testing.T) {
	remote := &fakeRemote{cycleErr: shared.ErrNoActiveCycle}
	s := New(remote, nil, Config{UserID: "user-1"})
	require.NoError(t, s.Load(context.Background()))

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 3, 0)
	created, err := s.CreateCycle(context.Background(), "H1 Focus", cycle.DurationThreeMonths, start, end, 1000)
	require.NoError(t, err)
	assert.Equal(t, cycle.StatusPlanned, created.Status)
	assert.Equal(t, shared.XP(1000), created.XPTarget)

	snap := s.Snapshot()
	require.NotNil(t, snap.Cycle)
	assert.Equal(t, created.ID, snap.Cycle.ID)

	_, err = s.CreateCycle(context.Background(), "   ", cycle.DurationThreeMonths, start, end, 0)
	assert.Error(t, err)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY LOGGING
// ══════════════════════════════════════════════════════════════════════════════

func TestStoreLogActivity(t *testing.T) {
	t.Run("logged activity lands on the timeline with table XP", func(t *testing.T) {
		remote := &fakeRemote{}
		bus := &capturingBus{}
		s := newLoadedStore(t, remote, bus)

		draft, err := activity.NewActivity("cycle-1", activity.TypeMentoring, "Session with Dana")
		require.NoError(t, err)
		draft.Mentoring = &activity.MentoringDetails{MentorName: "Dana", Rating: 5}

		stored, err := s.LogActivity(context.Background(), draft)
		require.NoError(t, err)
		assert.Equal(t, xp.AwardFor(xp.SourceMentoring), stored.XPAwarded)

		snap := s.Snapshot()
		require.Len(t, snap.Activities, 1)
		assert.Equal(t, "Dana", snap.Activities[0].Person)
		assert.Equal(t, xp.AwardFor(xp.SourceMentoring), snap.TotalXP)
		assert.Equal(t, 1, bus.typesSeen()[shared.EventXPAwarded])
	})

	t.Run("no active cycle rejects the write", func(t *testing.T) {
		remote := &fakeRemote{cycleErr: shared.ErrNoActiveCycle}
		s := New(remote, nil, Config{UserID: "user-1"})
		require.NoError(t, s.Load(context.Background()))

		draft := &activity.Activity{Type: activity.TypeGeneric, Title: "Anything"}
		_, err := s.LogActivity(context.Background(), draft)
		assert.ErrorIs(t, err, shared.ErrNoActiveCycle)
	})

	t.Run("remote failure leaves the timeline untouched", func(t *testing.T) {
		remote := &fakeRemote{logErr: shared.ErrServiceUnavailable}
		s := newLoadedStore(t, remote, nil)

		draft, err := activity.NewActivity("cycle-1", activity.TypeOneOnOne, "Weekly 1:1")
		require.NoError(t, err)
		_, err = s.LogActivity(context.Background(), draft)
		assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
		assert.Empty(t, s.Snapshot().Activities)
	})
}

func TestStoreDeleteActivity(t *testing.T) {
	seed := []activity.Normalized{
		{ID: "act-1", Type: activity.TypeMentoring, Title: "Session", XPAwarded: 60},
		{ID: "act-2", Type: activity.TypeGeneric, Title: "Note"},
	}

	t.Run("removes locally and remotely, ledger untouched", func(t *testing.T) {
		remote := &fakeRemote{acts: seed}
		s := newLoadedStore(t, remote, nil)
		before := s.Snapshot().TotalXP

		require.NoError(t, s.DeleteActivity(context.Background(), "act-1"))

		snap := s.Snapshot()
		require.Len(t, snap.Activities, 1)
		assert.Equal(t, "act-2", snap.Activities[0].ID)
		assert.Equal(t, before, snap.TotalXP)
		assert.Equal(t, []string{"act-1"}, remote.deleted)
	})

	t.Run("remote not-found still drops the local entry", func(t *testing.T) {
		remote := &fakeRemote{acts: seed, deleteErr: shared.ErrActivityNotFound}
		s := newLoadedStore(t, remote, nil)

		err := s.DeleteActivity(context.Background(), "act-2")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.Len(t, s.Snapshot().Activities, 1)
	})

	t.Run("transient failure keeps the entry", func(t *testing.T) {
		remote := &fakeRemote{acts: seed, deleteErr: shared.ErrNetwork}
		s := newLoadedStore(t, remote, nil)

		err := s.DeleteActivity(context.Background(), "act-1")
		assert.ErrorIs(t, err, shared.ErrNetwork)
		assert.Len(t, s.Snapshot().Activities, 2)
	})
}

func TestSnapshotIsolation(t *testing.T) {
	s := newLoadedStore(t, &fakeRemote{}, nil)

	snap := s.Snapshot()
	snap.Goals[0].Quantity.CurrentNumber = 999
	snap.Cycle.Name = "tampered"

	g, err := s.Goal("goal-1")
	require.NoError(t, err)
	assert.InDelta(t, 3, g.Quantity.CurrentNumber, 0.0001)
	assert.Equal(t, "Q4 Growth", s.Snapshot().Cycle.Name)
}
