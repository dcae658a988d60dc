package cycle

import (
	"math"
	"time"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/goal"
)

// ══════════════════════════════════════════════════════════════════════════════
// CYCLE ROLLUP
// ══════════════════════════════════════════════════════════════════════════════

// Rollup is the derived view of a cycle computed from its child goals.
// It is recomputed on every goal mutation and never mutated directly.
type Rollup struct {
	// ProgressPercentage - share of completed goals, rounded to an integer.
	ProgressPercentage int

	// DaysRemaining - whole days until the cycle's end date, never negative.
	DaysRemaining int

	// CompletedCount / TotalCount - goal completion tally.
	CompletedCount int
	TotalCount     int

	// XPEarned / XPTarget passed through for rendering alongside progress.
	XPEarned int
	XPTarget int
}

// Aggregate computes the cycle rollup from the goal list at the given
// instant. A cycle with no goals has 0% progress rather than NaN.
func Aggregate(c *Cycle, goals []*goal.Goal, now time.Time) Rollup {
	completed := 0
	for _, g := range goals {
		if goal.IsComplete(g) {
			completed++
		}
	}

	progress := 0
	if len(goals) > 0 {
		progress = int(math.Round(float64(completed) / float64(len(goals)) * 100))
	}

	return Rollup{
		ProgressPercentage: progress,
		DaysRemaining:      DaysRemaining(c.EndDate, now),
		CompletedCount:     completed,
		TotalCount:         len(goals),
		XPEarned:           int(c.XPEarned),
		XPTarget:           int(c.XPTarget),
	}
}

// DaysRemaining counts whole days from now to the end date, rounding any
// partial day up. A cycle past its end date reports 0, never a negative.
func DaysRemaining(end, now time.Time) int {
	remaining := end.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Hours() / 24))
}
