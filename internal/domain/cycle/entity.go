// Package cycle models a bounded development period: its lifecycle state
// machine and the derived rollup computed from its child goals.
package cycle

import (
	"strings"
	"time"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS STATE MACHINE
// ══════════════════════════════════════════════════════════════════════════════

// Status is the lifecycle state of a cycle.
type Status string

const (
	StatusPlanned   Status = "planned"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// IsValid checks that the status is one of the closed set.
func (s Status) IsValid() bool {
	switch s {
	case StatusPlanned, StatusActive, StatusPaused, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status admits no further transitions.
// Terminal cycles are archived, never deleted.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo checks whether moving to the target status is allowed.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPlanned:
		return target == StatusActive || target == StatusCancelled
	case StatusActive:
		return target == StatusPaused || target == StatusCompleted || target == StatusCancelled
	case StatusPaused:
		return target == StatusActive || target == StatusCancelled
	default:
		return false
	}
}

// ParseStatus parses a raw status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", shared.NewDomainError("cycle", "ParseStatus", shared.ErrInvalidInput,
			"unrecognized cycle status")
	}
	return s, nil
}

// DurationClass is the coarse length category chosen in the creation wizard.
// The tags are the wire vocabulary; they go out verbatim on cycle creation
// and into the archive untranslated.
type DurationClass string

const (
	DurationOneMonth    DurationClass = "1month"
	DurationThreeMonths DurationClass = "3months"
	DurationSixMonths   DurationClass = "6months"
)

// IsValid checks that the duration class is one of the closed set.
func (d DurationClass) IsValid() bool {
	switch d {
	case DurationOneMonth, DurationThreeMonths, DurationSixMonths:
		return true
	default:
		return false
	}
}

// ParseDurationClass parses a raw duration tag. Unknown tags are rejected
// so a mislabeled cycle never reaches the archive.
func ParseDurationClass(raw string) (DurationClass, error) {
	d := DurationClass(strings.ToLower(strings.TrimSpace(raw)))
	if !d.IsValid() {
		return "", shared.NewDomainError("cycle", "Validate", shared.ErrUnknownVariant,
			"unrecognized duration class "+raw)
	}
	return d, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: CYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Cycle is one development period owned by a single user. Progress and days
// remaining are derived by the aggregator, never stored authoritatively.
type Cycle struct {
	ID       string
	UserID   string
	Name     string
	Status   Status
	Duration DurationClass

	StartDate time.Time
	EndDate   time.Time

	// GoalIDs lists the child goals; goal entities live with the store.
	GoalIDs []string

	XPEarned shared.XP
	XPTarget shared.XP

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCycle creates a cycle in the planned state.
func NewCycle(userID, name string, duration DurationClass, start, end time.Time) (*Cycle, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("cycle", "NewCycle", shared.ErrEmptyValue, "cycle name is required")
	}
	if !duration.IsValid() {
		return nil, shared.NewDomainError("cycle", "NewCycle", shared.ErrUnknownVariant,
			"unrecognized duration class "+string(duration))
	}
	if !end.After(start) {
		return nil, shared.ErrCycleBadInterval
	}

	now := time.Now().UTC()
	return &Cycle{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		Status:    StatusPlanned,
		Duration:  duration,
		StartDate: start,
		EndDate:   end,
		GoalIDs:   []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// TransitionTo moves the cycle to a new lifecycle state, enforcing the
// state machine. Terminal cycles reject every transition.
func (c *Cycle) TransitionTo(target Status) error {
	if !target.IsValid() {
		return shared.NewDomainError("cycle", "TransitionTo", shared.ErrInvalidInput,
			"unrecognized cycle status")
	}
	if c.Status.IsTerminal() {
		return shared.ErrCycleArchived
	}
	if !c.Status.CanTransitionTo(target) {
		return shared.ErrCycleBadStatus
	}
	c.Status = target
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// Activate starts a planned or paused cycle.
func (c *Cycle) Activate() error { return c.TransitionTo(StatusActive) }

// Complete finishes an active cycle. The cycle becomes read-only.
func (c *Cycle) Complete() error { return c.TransitionTo(StatusCompleted) }

// Cancel abandons a non-terminal cycle. The cycle becomes read-only.
func (c *Cycle) Cancel() error { return c.TransitionTo(StatusCancelled) }

// AttachGoal registers a child goal id. Duplicate ids are ignored.
func (c *Cycle) AttachGoal(goalID string) error {
	if c.Status.IsTerminal() {
		return shared.ErrCycleArchived
	}
	for _, id := range c.GoalIDs {
		if id == goalID {
			return nil
		}
	}
	c.GoalIDs = append(c.GoalIDs, goalID)
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// AwardXP adds earned XP to the cycle's tally.
func (c *Cycle) AwardXP(amount shared.XP) error {
	if c.Status.IsTerminal() {
		return shared.ErrCycleArchived
	}
	if !amount.IsValid() {
		return shared.ErrInvalidXPAmount
	}
	c.XPEarned = c.XPEarned.Add(amount)
	c.UpdatedAt = time.Now().UTC()
	return nil
}
