// Package competency models leveled skill areas and the per-user progression
// advanced by submitting evidence. Competencies themselves are reference
// data; only the per-user progress records mutate.
package competency

import (
	"strings"
	"time"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

const (
	// MinLevel / MaxLevel bound the competency ladder.
	MinLevel = 1
	MaxLevel = 5
)

// ══════════════════════════════════════════════════════════════════════════════
// REFERENCE DATA
// ══════════════════════════════════════════════════════════════════════════════

// Category groups competencies by the kind of skill they describe.
type Category string

const (
	CategoryTechnical  Category = "technical"
	CategoryLeadership Category = "leadership"
	CategoryBehavioral Category = "behavioral"
	CategoryBusiness   Category = "business"
)

// IsValid checks that the category is one of the closed set.
func (c Category) IsValid() bool {
	switch c {
	case CategoryTechnical, CategoryLeadership, CategoryBehavioral, CategoryBusiness:
		return true
	default:
		return false
	}
}

// Level describes one rung of a competency ladder.
type Level struct {
	// Level is the rung number, 1 through 5.
	Level int

	Name        string
	Description string

	// Behaviors expected at this level.
	Behaviors []string

	// EvidenceHints suggest how to demonstrate the level.
	EvidenceHints []string
}

// Competency is a skill or behavior area tracked across cycles.
type Competency struct {
	ID          string
	Name        string
	Description string
	Category    Category

	// Levels is the ordered ladder, rung 1 first.
	Levels []Level

	// IsCore marks company-essential competencies.
	IsCore bool

	// IsCustom marks company-authored (vs. catalog) competencies.
	IsCustom bool
}

// ══════════════════════════════════════════════════════════════════════════════
// EVIDENCE
// ══════════════════════════════════════════════════════════════════════════════

// EvidenceType classifies an evidence artifact. The "1on1" spelling is the
// wire tag used by the remote service.
type EvidenceType string

const (
	EvidenceProject       EvidenceType = "project"
	EvidenceCourse        EvidenceType = "course"
	EvidenceCertification EvidenceType = "certification"
	EvidenceFeedback      EvidenceType = "feedback"
	EvidenceOneOnOne      EvidenceType = "1on1"
	EvidenceMilestone     EvidenceType = "milestone"
)

// IsValid checks that the evidence type is one of the closed set.
func (t EvidenceType) IsValid() bool {
	switch t {
	case EvidenceProject, EvidenceCourse, EvidenceCertification,
		EvidenceFeedback, EvidenceOneOnOne, EvidenceMilestone:
		return true
	default:
		return false
	}
}

// ParseEvidenceType parses a raw evidence type tag. Unknown tags are
// rejected on the write path.
func ParseEvidenceType(raw string) (EvidenceType, error) {
	t := EvidenceType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.IsValid() {
		return "", shared.ErrInvalidEvidenceType
	}
	return t, nil
}

// Evidence is one timestamped artifact supporting competency advancement.
// Evidence is append-only; records are never edited after submission.
type Evidence struct {
	ID          string
	Type        EvidenceType
	Title       string
	Description string
	Date        time.Time

	// VerifiedBy is the user id of an optional verifier.
	VerifiedBy string

	// XPAwarded is the award granted for this evidence.
	XPAwarded shared.XP
}

// Validate checks the evidence on the write path.
func (e Evidence) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return shared.ErrInvalidEvidenceTitle
	}
	if !e.Type.IsValid() {
		return shared.ErrInvalidEvidenceType
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PER-USER PROGRESSION
// ══════════════════════════════════════════════════════════════════════════════

// Progress is one user's progression against one competency. Progress is
// recomputed from the evidence list, never set directly.
type Progress struct {
	CompetencyID string
	UserID       string

	// CurrentLevel / TargetLevel bound the active progression.
	CurrentLevel int
	TargetLevel  int

	// ProgressPct advances toward the next level, 0 through 100.
	ProgressPct int

	// Evidence keeps submission order.
	Evidence []Evidence

	// ActiveInCycle marks progressions pursued in the current cycle.
	ActiveInCycle bool

	StartDate time.Time
}

// NewProgress starts a progression at the given level toward the target.
func NewProgress(competencyID, userID string, currentLevel, targetLevel int) (*Progress, error) {
	if currentLevel < MinLevel || currentLevel > MaxLevel ||
		targetLevel < MinLevel || targetLevel > MaxLevel {
		return nil, shared.ErrInvalidLevel
	}
	if targetLevel < currentLevel {
		return nil, shared.ErrTargetBelowCurrent
	}
	return &Progress{
		CompetencyID: competencyID,
		UserID:       userID,
		CurrentLevel: currentLevel,
		TargetLevel:  targetLevel,
		Evidence:     []Evidence{},
		StartDate:    time.Now().UTC(),
	}, nil
}

// IsComplete reports whether the progression has reached its terminal state.
func (p *Progress) IsComplete() bool {
	return p.CurrentLevel == p.TargetLevel && p.ProgressPct >= 100
}

// Clone creates a deep copy of the progression.
func (p *Progress) Clone() *Progress {
	clone := *p
	clone.Evidence = make([]Evidence, len(p.Evidence))
	copy(clone.Evidence, p.Evidence)
	return &clone
}
