package store

import (
	"context"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/goal"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GOAL SYNC STATE
// ══════════════════════════════════════════════════════════════════════════════

// SyncStatus is the remote reconciliation state of one goal. An optimistic
// local edit starts pending; the remote acknowledgement confirms it; a
// failed or timed-out request marks it failed. Failure never rolls the
// local edit back, it only flags the goal so the caller can retry.
type SyncStatus string

const (
	SyncPending   SyncStatus = "pending"
	SyncConfirmed SyncStatus = "confirmed"
	SyncFailed    SyncStatus = "failed"
)

// GoalSyncState is a read-only snapshot of one goal's sync bookkeeping.
type GoalSyncState struct {
	Status     SyncStatus
	Version    uint64
	QueueDepth int
	LastError  string
}

// syncJob is one queued remote patch. Version is the local goal version the
// patch produced; a response whose job version is below the current version
// has been superseded and is discarded.
type syncJob struct {
	version uint64
	patch   goal.Patch
}

// goalSync serializes remote patches for a single goal. Edits enqueue jobs;
// one worker drains the queue in order, so same-goal requests never race.
type goalSync struct {
	version   uint64
	status    SyncStatus
	lastError string
	queue     []syncJob
	inFlight  bool
}

// SyncState reports the sync bookkeeping for a goal. The second return is
// false when the goal has never been edited locally.
func (s *Store) SyncState(goalID string) (GoalSyncState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gs, ok := s.syncs[goalID]
	if !ok {
		return GoalSyncState{}, false
	}
	return GoalSyncState{
		Status:     gs.status,
		Version:    gs.version,
		QueueDepth: len(gs.queue),
		LastError:  gs.lastError,
	}, true
}

// runSyncLoop drains the patch queue of one goal. It runs until the queue
// is empty and marks itself done so the next edit restarts it. Remote calls
// use a detached context with the configured timeout: an in-flight request
// outlives the intent that triggered it and is never cancelled mid-air.
func (s *Store) runSyncLoop(goalID string) {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		gs := s.syncs[goalID]
		if gs == nil || len(gs.queue) == 0 {
			if gs != nil {
				gs.inFlight = false
			}
			s.mu.Unlock()
			return
		}
		job := gs.queue[0]
		gs.queue = gs.queue[1:]
		cycleID := ""
		if s.current != nil {
			cycleID = s.current.ID
		}
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.syncTimeout)
		authoritative, err := s.remote.PatchGoalProgress(ctx, goalID, job.patch)
		cancel()

		s.mu.Lock()
		gs = s.syncs[goalID]
		if gs == nil || job.version < gs.version {
			// A newer local edit exists; this response is stale either way.
			// The job carrying the newer state is behind us in the queue.
			s.mu.Unlock()
			continue
		}

		if err != nil {
			gs.status = SyncFailed
			gs.lastError = err.Error()
			s.logger.Warn("goal sync failed",
				"goal_id", goalID,
				"version", job.version,
				"error", err)
			s.publishLocked(shared.NewGoalUpdateFailedEvent(cycleID, goalID, err.Error()))
			s.mu.Unlock()
			continue
		}

		gs.status = SyncConfirmed
		gs.lastError = ""
		if authoritative != nil {
			s.goals[goalID] = authoritative
			s.recomputeRollupLocked()
		}
		s.logger.Debug("goal sync confirmed",
			"goal_id", goalID,
			"version", job.version)
		s.publishLocked(shared.NewGoalSyncConfirmedEvent(cycleID, goalID, job.version))
		s.mu.Unlock()
	}
}
