package xp

import (
	"time"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD SOURCES
// ══════════════════════════════════════════════════════════════════════════════

// SourceKind identifies what earned an award.
type SourceKind string

const (
	SourceGoalCompleted     SourceKind = "goal_completed"
	SourceCycleCompleted    SourceKind = "cycle_completed"
	SourceMilestone         SourceKind = "milestone_completed"
	SourceCompetencyLevelUp SourceKind = "competency_level_up"
	SourceEvidence          SourceKind = "evidence_added"
	SourceOneOnOne          SourceKind = "one_on_one"
	SourceMentoring         SourceKind = "mentoring_session"
	SourceCertification     SourceKind = "certification"
	SourceActivity          SourceKind = "activity"
)

// DefaultAwards is the standard XP grant per source kind. Callers may
// override per award; the table is the fallback when an amount is absent.
var DefaultAwards = map[SourceKind]shared.XP{
	SourceGoalCompleted:     150,
	SourceCycleCompleted:    300,
	SourceMilestone:         100,
	SourceCompetencyLevelUp: 75,
	SourceEvidence:          25,
	SourceOneOnOne:          45,
	SourceMentoring:         60,
	SourceCertification:     100,
	SourceActivity:          10,
}

// AwardFor looks up the standard grant for a source kind, 0 when unknown.
func AwardFor(kind SourceKind) shared.XP {
	return DefaultAwards[kind]
}

// Entry is one immutable ledger record. The SourceID must be unique per
// logical award: the ledger does not deduplicate, so a caller resubmitting
// the same source id doubles the grant.
type Entry struct {
	SourceID   string
	SourceKind SourceKind
	Amount     shared.XP
	AwardedAt  time.Time
}

// Validate checks the entry on the write path.
func (e Entry) Validate() error {
	if e.SourceID == "" {
		return shared.ErrMissingSourceID
	}
	if e.Amount <= 0 {
		return shared.ErrInvalidXPAmount
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// Ledger accumulates XP awards for one user. Total, level, and progress are
// pure folds over the entry list; entries are never edited or removed.
//
// Ledger is not safe for concurrent use; the owning store serializes access.
type Ledger struct {
	userID  string
	curve   Curve
	entries []Entry
	total   shared.XP
}

// NewLedger creates an empty ledger. A nil curve falls back to the default
// quadratic curve.
func NewLedger(userID string, curve Curve) *Ledger {
	if curve == nil {
		curve = QuadraticCurve{}
	}
	return &Ledger{
		userID:  userID,
		curve:   curve,
		entries: []Entry{},
	}
}

// Replay rebuilds a ledger from persisted entries, validating each.
func Replay(userID string, curve Curve, entries []Entry) (*Ledger, error) {
	l := NewLedger(userID, curve)
	for _, e := range entries {
		if err := l.Award(e); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// UserID returns the ledger owner.
func (l *Ledger) UserID() string { return l.userID }

// Award appends an entry. A zero timestamp is stamped with the current time.
func (l *Ledger) Award(e Entry) error {
	if e.Amount == 0 {
		e.Amount = AwardFor(e.SourceKind)
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if e.AwardedAt.IsZero() {
		e.AwardedAt = time.Now().UTC()
	}
	l.entries = append(l.entries, e)
	l.total = l.total.Add(e.Amount)
	return nil
}

// TotalXP returns the folded XP total.
func (l *Ledger) TotalXP() shared.XP { return l.total }

// Level returns the current level per the configured curve.
func (l *Ledger) Level() int { return l.curve.LevelFor(l.total) }

// Title returns the display title for the current level.
func (l *Ledger) Title() string { return TitleFor(l.Level()) }

// ProgressToNextLevel returns the share of the current level band already
// earned, always in [0,100). Reaching 100 means the next level has begun,
// so the value wraps to 0 at each threshold.
func (l *Ledger) ProgressToNextLevel() float64 {
	level := l.Level()
	floor := l.curve.ThresholdFor(level)
	next := l.curve.ThresholdFor(level + 1)

	span := next - floor
	if span <= 0 {
		// Curve tops out here; report the band as untouched.
		return 0
	}

	progress := float64(l.total-floor) / float64(span) * 100
	if progress < 0 {
		return 0
	}
	if progress >= 100 {
		return 0
	}
	return progress
}

// XPToNextLevel returns how much XP is missing until the next level, 0 when
// the curve tops out.
func (l *Ledger) XPToNextLevel() shared.XP {
	next := l.curve.ThresholdFor(l.Level() + 1)
	if next <= l.total {
		return 0
	}
	return next - l.total
}

// Entries returns a copy of the ledger history in award order.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}
