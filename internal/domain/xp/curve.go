// Package xp implements the experience ledger: an append-only list of awards
// folded into a total, a level derived from a configurable curve, and the
// progress toward the next level.
package xp

import (
	"math"
	"sort"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL CURVES
// ══════════════════════════════════════════════════════════════════════════════

// Curve maps total XP to a level. The exact shape is configuration, not
// engine logic; the engine only requires that thresholds are monotonically
// increasing so the level never decreases as XP grows.
type Curve interface {
	// LevelFor returns the level reached at the given total XP. Levels
	// start at 1.
	LevelFor(total shared.XP) int

	// ThresholdFor returns the total XP at which the given level begins.
	// ThresholdFor(1) is always 0.
	ThresholdFor(level int) shared.XP
}

// QuadraticCurve is the default: level = floor(sqrt(total/100)) + 1, so the
// XP needed to leave a level grows quadratically. Level 2 starts at 100 XP,
// level 10 at 8,100, level 100 at 980,100.
type QuadraticCurve struct{}

func (QuadraticCurve) LevelFor(total shared.XP) int {
	if total < 0 {
		return 1
	}
	return int(math.Floor(math.Sqrt(float64(total)/100))) + 1
}

func (QuadraticCurve) ThresholdFor(level int) shared.XP {
	if level <= 1 {
		return 0
	}
	n := level - 1
	return shared.XP(n * n * 100)
}

// StepCurve is a table-driven curve for deployments that tune thresholds by
// hand. Thresholds[i] is the total XP at which level i+2 begins.
type StepCurve struct {
	thresholds []shared.XP
}

// NewStepCurve builds a curve from explicit thresholds. Thresholds must be
// positive and strictly increasing.
func NewStepCurve(thresholds []shared.XP) (StepCurve, error) {
	if len(thresholds) == 0 {
		return StepCurve{}, shared.ErrInvalidLevelCurve
	}
	prev := shared.XP(0)
	for _, th := range thresholds {
		if th <= prev {
			return StepCurve{}, shared.ErrInvalidLevelCurve
		}
		prev = th
	}
	copied := make([]shared.XP, len(thresholds))
	copy(copied, thresholds)
	return StepCurve{thresholds: copied}, nil
}

func (c StepCurve) LevelFor(total shared.XP) int {
	// First threshold strictly above the total marks the current level.
	idx := sort.Search(len(c.thresholds), func(i int) bool {
		return c.thresholds[i] > total
	})
	return idx + 1
}

func (c StepCurve) ThresholdFor(level int) shared.XP {
	if level <= 1 {
		return 0
	}
	if level-2 >= len(c.thresholds) {
		return c.thresholds[len(c.thresholds)-1]
	}
	return c.thresholds[level-2]
}

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL TITLES
// ══════════════════════════════════════════════════════════════════════════════

// TitleFor returns the display title for a level.
func TitleFor(level int) string {
	switch {
	case level <= 10:
		return "Junior Professional"
	case level <= 25:
		return "Mid-Level Professional"
	case level <= 40:
		return "Senior Specialist"
	case level <= 55:
		return "Tech Lead"
	case level <= 70:
		return "Senior Architect"
	case level <= 85:
		return "Team Mentor"
	default:
		return "Master Professional"
	}
}
