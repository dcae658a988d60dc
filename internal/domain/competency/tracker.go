package competency

import (
	"time"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL TRACKER
// ══════════════════════════════════════════════════════════════════════════════

// Tracker advances competency progressions by evidence. Progress is a pure
// fold over the ordered evidence list: non-decreasing within a level, capped
// at 100, with the level-up reset modeled as an explicit transition.
type Tracker struct {
	scoring ScoringStrategy
}

// NewTracker creates a tracker with the given scoring strategy. A nil
// strategy falls back to the flat +20 step.
func NewTracker(scoring ScoringStrategy) *Tracker {
	if scoring == nil {
		scoring = NewFlatStepScoring()
	}
	return &Tracker{scoring: scoring}
}

// Result describes the outcome of one evidence submission.
type Result struct {
	Progress *Progress

	// LeveledUp is set when the submission completed the current level.
	LeveledUp bool

	// NewLevel holds the level reached when LeveledUp is set.
	NewLevel int
}

// AddEvidence appends the evidence and recomputes progress. The input record
// is not mutated; callers own the returned copy. Submissions against a
// completed progression are rejected.
func (t *Tracker) AddEvidence(p *Progress, ev Evidence) (Result, error) {
	if err := ev.Validate(); err != nil {
		return Result{}, err
	}
	if p.IsComplete() {
		return Result{}, shared.ErrProgressionComplete
	}

	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Date.IsZero() {
		ev.Date = time.Now().UTC()
	}

	updated := p.Clone()
	updated.Evidence = append(updated.Evidence, ev)

	leveledUp := t.advance(updated, ev)

	res := Result{Progress: updated, LeveledUp: leveledUp}
	if leveledUp {
		res.NewLevel = updated.CurrentLevel
	}
	return res, nil
}

// Rebuild replays an ordered evidence list against a fresh progression and
// returns the resulting state. Replaying the same list always reproduces the
// same (level, progress) pair.
func (t *Tracker) Rebuild(competencyID, userID string, startLevel, targetLevel int, evidence []Evidence) (*Progress, error) {
	p, err := NewProgress(competencyID, userID, startLevel, targetLevel)
	if err != nil {
		return nil, err
	}
	for _, ev := range evidence {
		res, err := t.AddEvidence(p, ev)
		if err != nil {
			return nil, err
		}
		p = res.Progress
	}
	return p, nil
}

// advance applies one evidence step. Reaching 100 below the target level is
// an explicit level-up transition: the level increments and progress resets
// to 0 against the next level. At the target level the progression parks at
// 100 and becomes terminal.
func (t *Tracker) advance(p *Progress, ev Evidence) bool {
	step := t.scoring.StepFor(ev)
	p.ProgressPct += step
	if p.ProgressPct > 100 {
		p.ProgressPct = 100
	}

	if p.ProgressPct < 100 {
		return false
	}
	if p.CurrentLevel >= p.TargetLevel {
		// Terminal: target level fully evidenced.
		return false
	}

	p.CurrentLevel++
	p.ProgressPct = 0
	return true
}
