// Package store holds the client-side progress state: the current cycle,
// its goals, tracked competencies, the activity timeline, and the XP ledger.
// All reads and writes go through one mutex, so callers observe a single
// consistent snapshot; remote synchronization happens on per-goal workers
// that reconcile back under the same lock.
package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/activity"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/competency"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/cycle"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/goal"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/xp"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// RemoteService is the slice of the cycle service the store needs.
// *cycleapi.Client satisfies it.
type RemoteService interface {
	CurrentCycle(ctx context.Context) (*cycle.Cycle, error)
	CreateCycle(ctx context.Context, draft *cycle.Cycle) (*cycle.Cycle, error)
	Goals(ctx context.Context, cycleID string) ([]*goal.Goal, []shared.Anomaly, error)
	PatchGoalProgress(ctx context.Context, goalID string, patch goal.Patch) (*goal.Goal, error)
	Activities(ctx context.Context, cycleID string) ([]activity.Normalized, []shared.Anomaly, error)
	LogActivity(ctx context.Context, draft *activity.Activity) (*activity.Activity, []shared.Anomaly, error)
	DeleteActivity(ctx context.Context, activityID string) error
	PostCompetencyEvidence(ctx context.Context, competencyID string, ev competency.Evidence) (*competency.Progress, error)
}

// Config tunes the store. Zero values fall back to sane defaults.
type Config struct {
	UserID string

	// SyncTimeout bounds each remote goal patch. A request that exceeds it
	// marks the goal's sync state failed.
	SyncTimeout time.Duration

	// Scoring selects the evidence scoring strategy. Nil means flat steps.
	Scoring competency.ScoringStrategy

	// Curve selects the XP level curve. Nil means the quadratic default.
	Curve xp.Curve

	Logger *slog.Logger

	// Clock overrides time.Now for deterministic tests.
	Clock func() time.Time
}

const defaultSyncTimeout = 10 * time.Second

// Store is the explicit state container for one user's progress view.
// Construct one per user session; there is no package-level instance.
type Store struct {
	mu sync.Mutex
	wg sync.WaitGroup

	remote  RemoteService
	bus     shared.EventPublisher
	tracker *competency.Tracker
	logger  *slog.Logger
	clock   func() time.Time

	userID      string
	syncTimeout time.Duration

	current      *cycle.Cycle
	goals        map[string]*goal.Goal
	goalOrder    []string
	syncs        map[string]*goalSync
	awardedGoals map[string]struct{}
	competencies map[string]*competency.Progress
	activities   []activity.Normalized
	anomalies    []shared.Anomaly
	ledger       *xp.Ledger
	rollup       cycle.Rollup
	ui           UIState
}

// New creates an empty store. Events are published to bus when it is
// non-nil; a nil bus disables publishing, which tests use freely.
func New(remote RemoteService, bus shared.EventPublisher, cfg Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	timeout := cfg.SyncTimeout
	if timeout <= 0 {
		timeout = defaultSyncTimeout
	}

	return &Store{
		remote:       remote,
		bus:          bus,
		tracker:      competency.NewTracker(cfg.Scoring),
		logger:       logger,
		clock:        clock,
		userID:       cfg.UserID,
		syncTimeout:  timeout,
		goals:        make(map[string]*goal.Goal),
		syncs:        make(map[string]*goalSync),
		awardedGoals: make(map[string]struct{}),
		competencies: make(map[string]*competency.Progress),
		ledger:       xp.NewLedger(cfg.UserID, cfg.Curve),
	}
}

// Wait blocks until all in-flight goal syncs have drained. Used on
// shutdown and by tests.
func (s *Store) Wait() {
	s.wg.Wait()
}

// ══════════════════════════════════════════════════════════════════════════════
// LOADING
// ══════════════════════════════════════════════════════════════════════════════

// Load fetches the current cycle with its goals and activities and replaces
// the local state. Having no active cycle is not an error: the store comes
// back empty and the caller renders the empty state. Unmappable goals and
// activities are skipped and reported as anomalies, never failing the load.
func (s *Store) Load(ctx context.Context) error {
	c, err := s.remote.CurrentCycle(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNoActiveCycle) {
			s.mu.Lock()
			s.resetCycleLocked(nil, nil, nil, nil)
			s.mu.Unlock()
			return nil
		}
		return err
	}

	goals, goalAnomalies, err := s.remote.Goals(ctx, c.ID)
	if err != nil {
		return err
	}

	activities, actAnomalies, err := s.remote.Activities(ctx, c.ID)
	if err != nil {
		// Degrade: the cycle and goals are usable without the timeline.
		s.logger.Warn("activity fetch failed, loading without timeline",
			"cycle_id", c.ID,
			"error", err)
		actAnomalies = append(actAnomalies,
			shared.NewAnomaly("activity", c.ID, "timeline", err.Error()))
		activities = nil
	}

	anomalies := append(goalAnomalies, actAnomalies...)

	s.mu.Lock()
	s.resetCycleLocked(c, goals, activities, anomalies)
	s.mu.Unlock()

	s.logger.Info("cycle loaded",
		"cycle_id", c.ID,
		"goals", len(goals),
		"activities", len(activities),
		"anomalies", len(anomalies))
	return nil
}

// resetCycleLocked replaces the per-cycle state. The XP ledger and tracked
// competencies belong to the user, not the cycle, and survive a reload.
func (s *Store) resetCycleLocked(c *cycle.Cycle, goals []*goal.Goal, acts []activity.Normalized, anomalies []shared.Anomaly) {
	s.current = c
	s.goals = make(map[string]*goal.Goal, len(goals))
	s.goalOrder = s.goalOrder[:0]
	for _, g := range goals {
		if _, dup := s.goals[g.ID]; dup {
			continue
		}
		s.goals[g.ID] = g
		s.goalOrder = append(s.goalOrder, g.ID)

		// Goals that arrive complete already earned their XP in an
		// earlier session; toggling them must not award again.
		if goal.IsComplete(g) {
			s.awardedGoals[g.ID] = struct{}{}
		}
	}
	s.syncs = make(map[string]*goalSync)
	s.activities = acts
	s.anomalies = anomalies
	s.ui.reset()
	s.recomputeRollupLocked()
}

// CreateCycle creates a cycle on the remote service and makes it current.
func (s *Store) CreateCycle(ctx context.Context, name string, duration cycle.DurationClass, start, end time.Time, xpTarget shared.XP) (*cycle.Cycle, error) {
	draft, err := cycle.NewCycle(s.userID, name, duration, start, end)
	if err != nil {
		return nil, err
	}
	draft.XPTarget = xpTarget

	created, err := s.remote.CreateCycle(ctx, draft)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.resetCycleLocked(created, nil, nil, nil)
	s.mu.Unlock()

	s.logger.Info("cycle created", "cycle_id", created.ID, "name", created.Name)
	return created, nil
}

// RefreshActivities refetches the activity timeline for the current cycle.
func (s *Store) RefreshActivities(ctx context.Context) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return shared.ErrNoActiveCycle
	}
	cycleID := s.current.ID
	s.mu.Unlock()

	acts, anomalies, err := s.remote.Activities(ctx, cycleID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.activities = acts
	s.anomalies = append(s.anomalies, anomalies...)
	s.mu.Unlock()
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITIES
// ══════════════════════════════════════════════════════════════════════════════

// activityAwardKinds maps activity variants to their award source kinds.
var activityAwardKinds = map[activity.Type]xp.SourceKind{
	activity.TypeOneOnOne:      xp.SourceOneOnOne,
	activity.TypeMentoring:     xp.SourceMentoring,
	activity.TypeCertification: xp.SourceCertification,
	activity.TypeGeneric:       xp.SourceActivity,
}

// LogActivity records an activity on the remote service and, on success,
// prepends it to the local timeline and awards the matching XP.
func (s *Store) LogActivity(ctx context.Context, draft *activity.Activity) (*activity.Activity, error) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil, shared.ErrNoActiveCycle
	}
	if draft.CycleID == "" {
		draft.CycleID = s.current.ID
	}
	s.mu.Unlock()

	if !draft.Type.IsValid() {
		return nil, shared.ErrInvalidActivityVariant
	}

	stored, anomalies, err := s.remote.LogActivity(ctx, draft)
	if err != nil {
		return nil, err
	}

	award := stored.XPAwarded
	if award == 0 {
		award = xp.AwardFor(activityAwardKinds[stored.Type])
		stored.XPAwarded = award
	}

	s.mu.Lock()
	s.activities = append([]activity.Normalized{stored.Normalize()}, s.activities...)
	s.anomalies = append(s.anomalies, anomalies...)
	s.awardLocked(xp.Entry{
		SourceID:   stored.ID,
		SourceKind: activityAwardKinds[stored.Type],
		Amount:     award,
		AwardedAt:  s.clock(),
	})
	s.mu.Unlock()

	s.logger.Info("activity logged",
		"activity_id", stored.ID,
		"type", string(stored.Type),
		"xp", int(award))
	return stored, nil
}

// DeleteActivity removes an activity remotely and locally. Earned XP stays
// in the ledger; awards are append-only. A remote NotFound still removes
// the local entry, the record is gone either way.
func (s *Store) DeleteActivity(ctx context.Context, activityID string) error {
	err := s.remote.DeleteActivity(ctx, activityID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}

	s.mu.Lock()
	kept := make([]activity.Normalized, 0, len(s.activities))
	for _, a := range s.activities {
		if a.ID != activityID {
			kept = append(kept, a)
		}
	}
	s.activities = kept
	s.mu.Unlock()
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// GOAL PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// UpdateGoalProgress applies a patch to a goal optimistically and queues the
// remote sync. The local state updates immediately and the call returns
// without waiting for the network; per-goal workers serialize the remote
// patches so two edits of the same goal can never interleave. A remote
// failure marks the goal's sync state failed but keeps the local edit.
func (s *Store) UpdateGoalProgress(goalID string, patch goal.Patch) error {
	if patch.IsEmpty() {
		return shared.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.goals[goalID]
	if !ok {
		return shared.ErrGoalNotFound
	}
	if err := patch.ValidateFor(g); err != nil {
		return err
	}

	wasComplete := goal.IsComplete(g)
	updated := patch.Apply(g)
	s.goals[goalID] = updated

	gs := s.syncs[goalID]
	if gs == nil {
		gs = &goalSync{}
		s.syncs[goalID] = gs
	}
	gs.version++
	gs.status = SyncPending
	gs.lastError = ""
	gs.queue = append(gs.queue, syncJob{version: gs.version, patch: patch})

	cycleID := updated.CycleID
	progress := goal.Progress(updated)
	s.publishLocked(shared.NewGoalUpdatedEvent(
		cycleID, goalID, progress.Float64(), goal.IsComplete(updated), gs.version))

	if !wasComplete && goal.IsComplete(updated) {
		s.onGoalCompletedLocked(updated)
	}
	s.recomputeRollupLocked()

	if !gs.inFlight {
		gs.inFlight = true
		s.wg.Add(1)
		go s.runSyncLoop(goalID)
	}
	return nil
}

// onGoalCompletedLocked awards completion XP and publishes the completion
// event. Completion is awarded on the optimistic transition; a later sync
// failure flags the goal but does not claw the award back. The award fires
// once per goal: the ledger does not deduplicate, so toggling a goal
// incomplete and back must not mint a second entry with the same source id.
func (s *Store) onGoalCompletedLocked(g *goal.Goal) {
	s.publishLocked(shared.NewGoalCompletedEvent(g.CycleID, g.ID, g.Title))

	if _, done := s.awardedGoals[g.ID]; done {
		return
	}
	s.awardedGoals[g.ID] = struct{}{}
	s.awardLocked(xp.Entry{
		SourceID:   g.ID,
		SourceKind: xp.SourceGoalCompleted,
		AwardedAt:  s.clock(),
	})
}

// awardLocked appends a ledger entry, mirrors the award on the cycle, and
// publishes XP and level-up events.
func (s *Store) awardLocked(e xp.Entry) {
	levelBefore := s.ledger.Level()
	if err := s.ledger.Award(e); err != nil {
		s.logger.Warn("xp award rejected",
			"source_id", e.SourceID,
			"source_kind", string(e.SourceKind),
			"error", err)
		return
	}
	awarded := s.ledger.Entries()[len(s.ledger.Entries())-1]

	if s.current != nil {
		if err := s.current.AwardXP(awarded.Amount); err != nil {
			s.logger.Warn("cycle xp mirror failed", "error", err)
		}
	}

	s.publishLocked(shared.NewXPAwardedEvent(
		s.userID, awarded.SourceID, string(awarded.SourceKind),
		int(awarded.Amount), int(s.ledger.TotalXP())))

	if after := s.ledger.Level(); after > levelBefore {
		s.publishLocked(shared.NewLevelUpEvent(s.userID, levelBefore, after, int(s.ledger.TotalXP())))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPETENCIES
// ══════════════════════════════════════════════════════════════════════════════

// TrackCompetency starts a local progression for a competency.
func (s *Store) TrackCompetency(competencyID string, currentLevel, targetLevel int) (*competency.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.competencies[competencyID]; ok {
		return nil, shared.ErrAlreadyExists
	}

	p, err := competency.NewProgress(competencyID, s.userID, currentLevel, targetLevel)
	if err != nil {
		return nil, err
	}
	p.ActiveInCycle = true
	p.StartDate = s.clock()
	s.competencies[competencyID] = p
	return p.Clone(), nil
}

// AddEvidence appends evidence to a tracked competency, advances the
// progression, books the XP, and pushes the record to the remote service.
// Validation failures reject the submission; a remote failure after a valid
// local apply degrades to an anomaly so the evidence is not lost.
func (s *Store) AddEvidence(ctx context.Context, competencyID string, ev competency.Evidence) (competency.Result, error) {
	s.mu.Lock()
	p, ok := s.competencies[competencyID]
	if !ok {
		s.mu.Unlock()
		return competency.Result{}, shared.ErrCompetencyNotFound
	}

	res, err := s.tracker.AddEvidence(p, ev)
	if err != nil {
		s.mu.Unlock()
		return competency.Result{}, err
	}
	s.competencies[competencyID] = res.Progress

	stored := res.Progress.Evidence[len(res.Progress.Evidence)-1]
	award := stored.XPAwarded
	if award == 0 {
		award = xp.AwardFor(xp.SourceEvidence)
	}
	s.publishLocked(shared.NewEvidenceAddedEvent(
		competencyID, stored.ID, string(stored.Type),
		int(award), res.Progress.ProgressPct))

	s.awardLocked(xp.Entry{
		SourceID:   stored.ID,
		SourceKind: xp.SourceEvidence,
		Amount:     award,
		AwardedAt:  s.clock(),
	})
	if res.LeveledUp {
		s.publishLocked(shared.NewCompetencyLevelUpEvent(
			competencyID, res.NewLevel-1, res.NewLevel, res.Progress.TargetLevel))
		s.awardLocked(xp.Entry{
			SourceID:   competencyID,
			SourceKind: xp.SourceCompetencyLevelUp,
			AwardedAt:  s.clock(),
		})
	}
	s.mu.Unlock()

	if _, err := s.remote.PostCompetencyEvidence(ctx, competencyID, stored); err != nil {
		s.logger.Warn("evidence push failed, kept locally",
			"competency_id", competencyID,
			"evidence_id", stored.ID,
			"error", err)
		s.mu.Lock()
		s.anomalies = append(s.anomalies,
			shared.NewAnomaly("competency", competencyID, "evidence", err.Error()))
		s.mu.Unlock()
	}
	return res, nil
}

// CompetencyProgress returns a copy of one tracked progression.
func (s *Store) CompetencyProgress(competencyID string) (*competency.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.competencies[competencyID]
	if !ok {
		return nil, shared.ErrCompetencyNotFound
	}
	return p.Clone(), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// VIEWS
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot is a consistent read of the whole store taken under one lock.
type Snapshot struct {
	Cycle  *cycle.Cycle
	Goals  []*goal.Goal
	Rollup cycle.Rollup

	Activities []activity.Normalized
	Timeline   map[activity.Bucket][]activity.Normalized

	Competencies []*competency.Progress

	TotalXP             shared.XP
	Level               int
	LevelTitle          string
	ProgressToNextLevel float64

	UI        UIState
	Anomalies []shared.Anomaly
}

// Snapshot returns a deep copy of the current state. Mutating the returned
// value never affects the store.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Rollup:              s.rollup,
		TotalXP:             s.ledger.TotalXP(),
		Level:               s.ledger.Level(),
		LevelTitle:          s.ledger.Title(),
		ProgressToNextLevel: s.ledger.ProgressToNextLevel(),
		UI:                  s.ui,
	}

	if s.current != nil {
		c := *s.current
		c.GoalIDs = append([]string(nil), s.current.GoalIDs...)
		snap.Cycle = &c
	}
	for _, id := range s.goalOrder {
		snap.Goals = append(snap.Goals, s.goals[id].Clone())
	}
	snap.Activities = append([]activity.Normalized(nil), s.activities...)
	snap.Timeline = activity.GroupByBucket(s.activities, s.clock())
	for _, p := range s.competencies {
		snap.Competencies = append(snap.Competencies, p.Clone())
	}
	snap.Anomalies = append([]shared.Anomaly(nil), s.anomalies...)
	return snap
}

// Goal returns a copy of one goal.
func (s *Store) Goal(goalID string) (*goal.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.goals[goalID]
	if !ok {
		return nil, shared.ErrGoalNotFound
	}
	return g.Clone(), nil
}

// Rollup returns the aggregate view of the current cycle.
func (s *Store) Rollup() cycle.Rollup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollup
}

// Anomalies returns the degradations collected since the last load.
func (s *Store) Anomalies() []shared.Anomaly {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]shared.Anomaly(nil), s.anomalies...)
}

// ══════════════════════════════════════════════════════════════════════════════
// INTERNAL
// ══════════════════════════════════════════════════════════════════════════════

func (s *Store) recomputeRollupLocked() {
	if s.current == nil {
		s.rollup = cycle.Rollup{}
		return
	}
	goals := make([]*goal.Goal, 0, len(s.goalOrder))
	for _, id := range s.goalOrder {
		goals = append(goals, s.goals[id])
	}
	s.rollup = cycle.Aggregate(s.current, goals, s.clock())
	s.publishLocked(shared.NewCycleRolledUpEvent(
		s.current.ID,
		s.rollup.ProgressPercentage,
		s.rollup.CompletedCount,
		s.rollup.TotalCount,
		s.rollup.DaysRemaining))
}

// publishLocked emits an event if a bus is wired. Publish errors are logged
// and swallowed: event delivery is best-effort and never blocks state.
func (s *Store) publishLocked(event shared.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(event); err != nil {
		s.logger.Error("event publish failed",
			"event_type", string(event.EventType()),
			"error", err)
	}
}
