// Package goal contains the goal domain model: a closed tagged union over the
// three goal shapes (quantity, deadline, improvement) and the pure progress
// calculator that turns one goal into a percentage and completion flag.
package goal

import (
	"strings"
	"time"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VARIANT TAGS
// ══════════════════════════════════════════════════════════════════════════════

// Kind is the variant tag of a goal. Exactly one variant is active per goal.
type Kind string

const (
	// KindQuantity - "complete N units" goals (projects, features, people).
	KindQuantity Kind = "quantity"

	// KindDeadline - "achieve X by date" goals; completion is an explicit flag.
	KindDeadline Kind = "deadline"

	// KindImprovement - "move a metric from A to B" goals, in either direction.
	KindImprovement Kind = "improvement"
)

// IsValid checks that the kind is one of the closed set.
func (k Kind) IsValid() bool {
	switch k {
	case KindQuantity, KindDeadline, KindImprovement:
		return true
	default:
		return false
	}
}

// ParseKind parses a raw variant tag. Unknown tags are a validation error:
// write paths must reject them rather than silently defaulting.
func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if !k.IsValid() {
		return "", shared.ErrInvalidGoalVariant
	}
	return k, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// VARIANT FIELDS
// ══════════════════════════════════════════════════════════════════════════════

// QuantityFields holds the payload of a quantity goal.
type QuantityFields struct {
	// TargetNumber is the amount to reach. Zero means "no target yet".
	TargetNumber float64

	// CurrentNumber is the amount reached so far.
	CurrentNumber float64

	// Unit labels the counted thing, e.g. "projects".
	Unit string
}

// DeadlineFields holds the payload of a deadline goal.
type DeadlineFields struct {
	// Deadline is informational only; it never auto-completes the goal.
	Deadline time.Time

	// Completed is the sole driver of the goal's progress.
	Completed bool
}

// ImprovementFields holds the payload of an improvement goal.
type ImprovementFields struct {
	// InitialValue is the metric's starting point.
	InitialValue float64

	// TargetValue is the metric's destination. May be below InitialValue
	// for decreasing goals (e.g. "reduce open bugs from 40 to 10").
	TargetValue float64

	// CurrentValue is the metric's latest reading.
	CurrentValue float64

	// Metric labels the measured thing, e.g. "test coverage".
	Metric string
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: GOAL
// ══════════════════════════════════════════════════════════════════════════════

// Goal is one goal inside a development cycle. The Kind tag selects which of
// the variant field structs is populated; the other two are nil.
type Goal struct {
	// ID - opaque stable identifier assigned by the remote service.
	ID string

	// CycleID - the owning cycle.
	CycleID string

	// Kind - active variant tag.
	Kind Kind

	// Title - short human-readable name.
	Title string

	// Description - optional longer text.
	Description string

	// Quantity is populated iff Kind == KindQuantity.
	Quantity *QuantityFields

	// Deadline is populated iff Kind == KindDeadline.
	Deadline *DeadlineFields

	// Improvement is populated iff Kind == KindImprovement.
	Improvement *ImprovementFields

	// CreatedAt / UpdatedAt - remote service timestamps.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the tagged-union invariant: exactly one variant struct is
// populated and it matches the Kind tag.
func (g *Goal) Validate() error {
	if g.ID == "" {
		return shared.NewDomainError("goal", "Validate", shared.ErrInvalidID, "goal id is required")
	}
	if strings.TrimSpace(g.Title) == "" {
		return shared.NewDomainError("goal", "Validate", shared.ErrEmptyValue, "goal title is required")
	}
	if !g.Kind.IsValid() {
		return shared.ErrInvalidGoalVariant
	}

	populated := 0
	if g.Quantity != nil {
		populated++
	}
	if g.Deadline != nil {
		populated++
	}
	if g.Improvement != nil {
		populated++
	}
	if populated != 1 {
		return shared.NewDomainError("goal", "Validate", shared.ErrVariantMismatch,
			"exactly one variant payload must be populated")
	}

	switch g.Kind {
	case KindQuantity:
		if g.Quantity == nil {
			return shared.ErrGoalPatchMismatch
		}
	case KindDeadline:
		if g.Deadline == nil {
			return shared.ErrGoalPatchMismatch
		}
	case KindImprovement:
		if g.Improvement == nil {
			return shared.ErrGoalPatchMismatch
		}
	}

	return nil
}

// Clone creates a deep copy of the goal.
func (g *Goal) Clone() *Goal {
	if g == nil {
		return nil
	}
	clone := *g
	if g.Quantity != nil {
		q := *g.Quantity
		clone.Quantity = &q
	}
	if g.Deadline != nil {
		d := *g.Deadline
		clone.Deadline = &d
	}
	if g.Improvement != nil {
		i := *g.Improvement
		clone.Improvement = &i
	}
	return &clone
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS PATCH
// ══════════════════════════════════════════════════════════════════════════════

// Patch is a partial progress update for a goal. Only fields matching the
// goal's variant may be set; a patch carrying foreign-variant fields is
// rejected before it reaches the remote service.
type Patch struct {
	// Quantity variant
	CurrentNumber *float64

	// Deadline variant
	Completed *bool

	// Improvement variant
	CurrentValue *float64
}

// IsEmpty reports whether the patch carries no changes.
func (p Patch) IsEmpty() bool {
	return p.CurrentNumber == nil && p.Completed == nil && p.CurrentValue == nil
}

// ValidateFor checks the patch against the goal's variant. Mismatched fields
// are a validation error on the write path.
func (p Patch) ValidateFor(g *Goal) error {
	if p.IsEmpty() {
		return shared.NewDomainError("goal", "Patch", shared.ErrEmptyValue, "patch carries no fields")
	}

	switch g.Kind {
	case KindQuantity:
		if p.Completed != nil || p.CurrentValue != nil {
			return shared.ErrGoalPatchMismatch
		}
		if p.CurrentNumber != nil && *p.CurrentNumber < 0 {
			return shared.NewDomainError("goal", "Patch", shared.ErrNegativeValue, "currentNumber cannot be negative")
		}
	case KindDeadline:
		if p.CurrentNumber != nil || p.CurrentValue != nil {
			return shared.ErrGoalPatchMismatch
		}
	case KindImprovement:
		if p.CurrentNumber != nil || p.Completed != nil {
			return shared.ErrGoalPatchMismatch
		}
	default:
		return shared.ErrInvalidGoalVariant
	}

	return nil
}

// Apply returns a copy of the goal with the patch applied. The receiver is
// not mutated; callers own the returned copy.
func (p Patch) Apply(g *Goal) *Goal {
	updated := g.Clone()
	switch updated.Kind {
	case KindQuantity:
		if p.CurrentNumber != nil {
			updated.Quantity.CurrentNumber = *p.CurrentNumber
		}
	case KindDeadline:
		if p.Completed != nil {
			updated.Deadline.Completed = *p.Completed
		}
	case KindImprovement:
		if p.CurrentValue != nil {
			updated.Improvement.CurrentValue = *p.CurrentValue
		}
	}
	updated.UpdatedAt = time.Now().UTC()
	return updated
}
