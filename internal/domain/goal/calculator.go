package goal

import (
	"math"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS CALCULATOR
// ══════════════════════════════════════════════════════════════════════════════

// Progress computes the goal's completion percentage, clamped to [0, 100].
// The function is pure: same goal, same answer, no side effects.
//
// Per variant:
//   - quantity:    current/target * 100; a zero target yields 0, never NaN.
//   - deadline:    100 when the completed flag is set, otherwise 0. The
//     deadline date itself never drives progress.
//   - improvement: distance covered between initial and target, in either
//     direction. initial == target degenerates to the completed check.
func Progress(g *Goal) shared.Percentage {
	switch g.Kind {
	case KindQuantity:
		return quantityProgress(g.Quantity)
	case KindDeadline:
		return deadlineProgress(g.Deadline)
	case KindImprovement:
		return improvementProgress(g.Improvement)
	default:
		return shared.NewPercentage(0)
	}
}

// IsComplete reports whether the goal has reached its target.
func IsComplete(g *Goal) bool {
	switch g.Kind {
	case KindQuantity:
		q := g.Quantity
		return q != nil && q.TargetNumber > 0 && q.CurrentNumber >= q.TargetNumber
	case KindDeadline:
		return g.Deadline != nil && g.Deadline.Completed
	case KindImprovement:
		i := g.Improvement
		if i == nil {
			return false
		}
		if i.TargetValue < i.InitialValue {
			return i.CurrentValue <= i.TargetValue
		}
		return i.CurrentValue >= i.TargetValue
	default:
		return false
	}
}

func quantityProgress(q *QuantityFields) shared.Percentage {
	if q == nil || q.TargetNumber <= 0 {
		return shared.NewPercentage(0)
	}
	return shared.NewPercentage(q.CurrentNumber / q.TargetNumber * 100)
}

func deadlineProgress(d *DeadlineFields) shared.Percentage {
	if d != nil && d.Completed {
		return shared.NewPercentage(100)
	}
	return shared.NewPercentage(0)
}

func improvementProgress(i *ImprovementFields) shared.Percentage {
	if i == nil {
		return shared.NewPercentage(0)
	}

	span := i.TargetValue - i.InitialValue
	if span == 0 {
		// Degenerate goal: initial already equals target.
		if i.CurrentValue >= i.TargetValue {
			return shared.NewPercentage(100)
		}
		return shared.NewPercentage(0)
	}

	covered := (i.CurrentValue - i.InitialValue) / span * 100
	if math.IsNaN(covered) {
		return shared.NewPercentage(0)
	}
	return shared.NewPercentage(covered)
}
