package goal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quantityGoal(current, target float64) *Goal {
	return &Goal{
		ID:      "goal-q1",
		CycleID: "cycle-1",
		Kind:    KindQuantity,
		Title:   "Ship portfolio projects",
		Quantity: &QuantityFields{
			TargetNumber:  target,
			CurrentNumber: current,
			Unit:          "projects",
		},
	}
}

func improvementGoal(initial, target, current float64) *Goal {
	return &Goal{
		ID:      "goal-i1",
		CycleID: "cycle-1",
		Kind:    KindImprovement,
		Title:   "Raise code review score",
		Improvement: &ImprovementFields{
			InitialValue: initial,
			TargetValue:  target,
			CurrentValue: current,
			Metric:       "score",
		},
	}
}

func deadlineGoal(completed bool) *Goal {
	return &Goal{
		ID:      "goal-d1",
		CycleID: "cycle-1",
		Kind:    KindDeadline,
		Title:   "Pass certification exam",
		Deadline: &DeadlineFields{
			Deadline:  time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
			Completed: completed,
		},
	}
}

func TestProgress_Quantity(t *testing.T) {
	t.Run("partial progress", func(t *testing.T) {
		p := Progress(quantityGoal(2, 5))
		assert.InDelta(t, 40.0, p.Float64(), 0.0001)
	})

	t.Run("zero target yields zero not NaN", func(t *testing.T) {
		p := Progress(quantityGoal(3, 0))
		assert.Equal(t, 0.0, p.Float64())
	})

	t.Run("overshoot clamps to 100", func(t *testing.T) {
		p := Progress(quantityGoal(7, 5))
		assert.Equal(t, 100.0, p.Float64())
	})

	t.Run("negative current clamps to 0", func(t *testing.T) {
		p := Progress(quantityGoal(-1, 5))
		assert.Equal(t, 0.0, p.Float64())
	})
}

func TestProgress_Deadline(t *testing.T) {
	t.Run("completed flag drives progress", func(t *testing.T) {
		assert.Equal(t, 100.0, Progress(deadlineGoal(true)).Float64())
		assert.Equal(t, 0.0, Progress(deadlineGoal(false)).Float64())
	})

	t.Run("past deadline does not auto-complete", func(t *testing.T) {
		g := deadlineGoal(false)
		g.Deadline.Deadline = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, 0.0, Progress(g).Float64())
		assert.False(t, IsComplete(g))
	})
}

func TestProgress_Improvement(t *testing.T) {
	t.Run("increasing metric", func(t *testing.T) {
		p := Progress(improvementGoal(7.2, 8.5, 7.8))
		assert.InDelta(t, 46.1538, p.Float64(), 0.001)
	})

	t.Run("decreasing metric", func(t *testing.T) {
		p := Progress(improvementGoal(40, 10, 25))
		assert.InDelta(t, 50.0, p.Float64(), 0.0001)
	})

	t.Run("regression below initial clamps to 0", func(t *testing.T) {
		p := Progress(improvementGoal(7.2, 8.5, 6.0))
		assert.Equal(t, 0.0, p.Float64())
	})

	t.Run("initial equals target", func(t *testing.T) {
		assert.Equal(t, 100.0, Progress(improvementGoal(5, 5, 5)).Float64())
		assert.Equal(t, 0.0, Progress(improvementGoal(5, 5, 4)).Float64())
	})
}

func TestProgress_Monotonic(t *testing.T) {
	// Raising the quantity current value never lowers progress.
	prev := -1.0
	for current := 0.0; current <= 10; current++ {
		p := Progress(quantityGoal(current, 8)).Float64()
		require.GreaterOrEqual(t, p, prev)
		prev = p
	}
}

func TestIsComplete(t *testing.T) {
	assert.True(t, IsComplete(quantityGoal(5, 5)))
	assert.False(t, IsComplete(quantityGoal(4, 5)))
	assert.False(t, IsComplete(quantityGoal(0, 0)))

	assert.True(t, IsComplete(deadlineGoal(true)))
	assert.False(t, IsComplete(deadlineGoal(false)))

	assert.True(t, IsComplete(improvementGoal(7.2, 8.5, 8.5)))
	assert.True(t, IsComplete(improvementGoal(40, 10, 9)))
	assert.False(t, IsComplete(improvementGoal(40, 10, 25)))
}

func TestGoalValidate(t *testing.T) {
	t.Run("valid goal", func(t *testing.T) {
		require.NoError(t, quantityGoal(2, 5).Validate())
	})

	t.Run("unknown variant tag rejected", func(t *testing.T) {
		g := quantityGoal(2, 5)
		g.Kind = "mystery"
		assert.Error(t, g.Validate())
	})

	t.Run("payload must match tag", func(t *testing.T) {
		g := quantityGoal(2, 5)
		g.Kind = KindDeadline
		assert.Error(t, g.Validate())
	})

	t.Run("two payloads rejected", func(t *testing.T) {
		g := quantityGoal(2, 5)
		g.Deadline = &DeadlineFields{}
		assert.Error(t, g.Validate())
	})
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("  Quantity ")
	require.NoError(t, err)
	assert.Equal(t, KindQuantity, k)

	_, err = ParseKind("milestone")
	assert.Error(t, err)
}

func TestPatchValidateFor(t *testing.T) {
	current := 3.0
	done := true
	value := 7.9

	t.Run("matching patch accepted", func(t *testing.T) {
		p := Patch{CurrentNumber: &current}
		require.NoError(t, p.ValidateFor(quantityGoal(2, 5)))
	})

	t.Run("foreign variant field rejected", func(t *testing.T) {
		p := Patch{Completed: &done}
		assert.Error(t, p.ValidateFor(quantityGoal(2, 5)))

		p = Patch{CurrentNumber: &current}
		assert.Error(t, p.ValidateFor(deadlineGoal(false)))

		p = Patch{Completed: &done}
		assert.Error(t, p.ValidateFor(improvementGoal(7.2, 8.5, 7.8)))
	})

	t.Run("empty patch rejected", func(t *testing.T) {
		assert.Error(t, Patch{}.ValidateFor(quantityGoal(2, 5)))
	})

	t.Run("negative quantity rejected", func(t *testing.T) {
		neg := -2.0
		p := Patch{CurrentNumber: &neg}
		assert.Error(t, p.ValidateFor(quantityGoal(2, 5)))
	})

	t.Run("apply does not mutate the original", func(t *testing.T) {
		g := improvementGoal(7.2, 8.5, 7.8)
		updated := Patch{CurrentValue: &value}.Apply(g)
		assert.Equal(t, 7.8, g.Improvement.CurrentValue)
		assert.Equal(t, 7.9, updated.Improvement.CurrentValue)
	})
}
