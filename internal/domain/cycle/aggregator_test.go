package cycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/goal"
)

func testCycle(t *testing.T, start, end time.Time) *Cycle {
	t.Helper()
	c, err := NewCycle("user-1", "Q4 growth", DurationThreeMonths, start, end)
	require.NoError(t, err)
	return c
}

func completedGoal(id string) *goal.Goal {
	return &goal.Goal{
		ID:       id,
		Kind:     goal.KindDeadline,
		Title:    "done goal",
		Deadline: &goal.DeadlineFields{Completed: true},
	}
}

func openGoal(id string) *goal.Goal {
	return &goal.Goal{
		ID:       id,
		Kind:     goal.KindQuantity,
		Title:    "open goal",
		Quantity: &goal.QuantityFields{TargetNumber: 5, CurrentNumber: 1},
	}
}

func TestAggregate(t *testing.T) {
	start := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	c := testCycle(t, start, end)

	t.Run("one of four goals complete yields 25", func(t *testing.T) {
		goals := []*goal.Goal{
			completedGoal("g1"), openGoal("g2"), openGoal("g3"), openGoal("g4"),
		}
		r := Aggregate(c, goals, start)
		assert.Equal(t, 25, r.ProgressPercentage)
		assert.Equal(t, 1, r.CompletedCount)
		assert.Equal(t, 4, r.TotalCount)
	})

	t.Run("no goals yields zero not NaN", func(t *testing.T) {
		r := Aggregate(c, nil, start)
		assert.Equal(t, 0, r.ProgressPercentage)
		assert.Equal(t, 0, r.TotalCount)
	})

	t.Run("rounds to nearest integer", func(t *testing.T) {
		goals := []*goal.Goal{completedGoal("g1"), openGoal("g2"), openGoal("g3")}
		r := Aggregate(c, goals, start)
		assert.Equal(t, 33, r.ProgressPercentage)

		goals = []*goal.Goal{completedGoal("g1"), completedGoal("g2"), openGoal("g3")}
		r = Aggregate(c, goals, start)
		assert.Equal(t, 67, r.ProgressPercentage)
	})
}

func TestDaysRemaining(t *testing.T) {
	end := time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC)

	t.Run("partial day rounds up", func(t *testing.T) {
		now := time.Date(2025, 10, 15, 18, 0, 0, 0, time.UTC)
		assert.Equal(t, 5, DaysRemaining(end, now))
	})

	t.Run("exact whole days", func(t *testing.T) {
		now := time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, 5, DaysRemaining(end, now))
	})

	t.Run("past end date floors at zero", func(t *testing.T) {
		now := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, 0, DaysRemaining(end, now))
	})
}

func TestCycleLifecycle(t *testing.T) {
	start := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	t.Run("planned to active to completed", func(t *testing.T) {
		c := testCycle(t, start, end)
		require.NoError(t, c.Activate())
		assert.Equal(t, StatusActive, c.Status)
		require.NoError(t, c.Complete())
		assert.Equal(t, StatusCompleted, c.Status)
	})

	t.Run("paused cycle can resume", func(t *testing.T) {
		c := testCycle(t, start, end)
		require.NoError(t, c.Activate())
		require.NoError(t, c.TransitionTo(StatusPaused))
		require.NoError(t, c.Activate())
	})

	t.Run("terminal cycle rejects mutation", func(t *testing.T) {
		c := testCycle(t, start, end)
		require.NoError(t, c.Activate())
		require.NoError(t, c.Cancel())

		assert.Error(t, c.Activate())
		assert.Error(t, c.AttachGoal("g1"))
		assert.Error(t, c.AwardXP(50))
	})

	t.Run("planned cycle cannot complete directly", func(t *testing.T) {
		c := testCycle(t, start, end)
		assert.Error(t, c.Complete())
	})

	t.Run("end before start rejected", func(t *testing.T) {
		_, err := NewCycle("user-1", "bad", DurationThreeMonths, end, start)
		assert.Error(t, err)
	})

	t.Run("unknown duration class rejected", func(t *testing.T) {
		_, err := NewCycle("user-1", "bad", DurationClass("quarter"), start, end)
		assert.Error(t, err)
	})

	t.Run("duration tags parse case-insensitively", func(t *testing.T) {
		for _, raw := range []string{"1month", "3months", "6months", " 6Months "} {
			d, err := ParseDurationClass(raw)
			require.NoError(t, err)
			assert.True(t, d.IsValid())
		}
		_, err := ParseDurationClass("forever")
		assert.Error(t, err)
	})

	t.Run("attach goal deduplicates", func(t *testing.T) {
		c := testCycle(t, start, end)
		require.NoError(t, c.AttachGoal("g1"))
		require.NoError(t, c.AttachGoal("g1"))
		assert.Len(t, c.GoalIDs, 1)
	})
}
