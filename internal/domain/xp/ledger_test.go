package xp

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

func TestQuadraticCurve(t *testing.T) {
	c := QuadraticCurve{}

	tests := []struct {
		total shared.XP
		level int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{399, 2},
		{400, 3},
		{8100, 10},
		{980100, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.level, c.LevelFor(tt.total), "total=%d", tt.total)
	}

	assert.Equal(t, shared.XP(0), c.ThresholdFor(1))
	assert.Equal(t, shared.XP(100), c.ThresholdFor(2))
	assert.Equal(t, shared.XP(400), c.ThresholdFor(3))
}

func TestStepCurve(t *testing.T) {
	t.Run("levels follow the table", func(t *testing.T) {
		c, err := NewStepCurve([]shared.XP{50, 200, 500})
		require.NoError(t, err)

		assert.Equal(t, 1, c.LevelFor(0))
		assert.Equal(t, 1, c.LevelFor(49))
		assert.Equal(t, 2, c.LevelFor(50))
		assert.Equal(t, 3, c.LevelFor(200))
		assert.Equal(t, 4, c.LevelFor(9999))
	})

	t.Run("non-increasing thresholds rejected", func(t *testing.T) {
		_, err := NewStepCurve([]shared.XP{100, 100})
		assert.Error(t, err)
		_, err = NewStepCurve(nil)
		assert.Error(t, err)
	})
}

func TestLedgerAward(t *testing.T) {
	t.Run("total is a fold over entries", func(t *testing.T) {
		l := NewLedger("user-1", nil)
		require.NoError(t, l.Award(Entry{SourceID: "g1", SourceKind: SourceGoalCompleted, Amount: 150}))
		require.NoError(t, l.Award(Entry{SourceID: "e1", SourceKind: SourceEvidence, Amount: 25}))
		assert.Equal(t, shared.XP(175), l.TotalXP())
		assert.Len(t, l.Entries(), 2)
	})

	t.Run("zero amount falls back to the award table", func(t *testing.T) {
		l := NewLedger("user-1", nil)
		require.NoError(t, l.Award(Entry{SourceID: "c1", SourceKind: SourceCycleCompleted}))
		assert.Equal(t, shared.XP(300), l.TotalXP())
	})

	t.Run("missing source id rejected", func(t *testing.T) {
		l := NewLedger("user-1", nil)
		err := l.Award(Entry{SourceKind: SourceEvidence, Amount: 25})
		assert.Error(t, err)
	})

	t.Run("negative amount rejected", func(t *testing.T) {
		l := NewLedger("user-1", nil)
		err := l.Award(Entry{SourceID: "x", SourceKind: SourceEvidence, Amount: -5})
		assert.Error(t, err)
	})

	t.Run("duplicate source ids are not deduplicated", func(t *testing.T) {
		l := NewLedger("user-1", nil)
		require.NoError(t, l.Award(Entry{SourceID: "g1", Amount: 100}))
		require.NoError(t, l.Award(Entry{SourceID: "g1", Amount: 100}))
		assert.Equal(t, shared.XP(200), l.TotalXP())
	})
}

func TestLedgerLevelNonDecreasing(t *testing.T) {
	l := NewLedger("user-1", nil)
	prev := l.Level()
	for i := 0; i < 50; i++ {
		require.NoError(t, l.Award(Entry{
			SourceID: fmt.Sprintf("a%d", i),
			Amount:   35,
		}))
		level := l.Level()
		assert.GreaterOrEqual(t, level, prev)
		prev = level
	}
}

func TestLedgerProgressToNextLevel(t *testing.T) {
	t.Run("always within the half-open band", func(t *testing.T) {
		l := NewLedger("user-1", nil)
		for i := 0; i < 40; i++ {
			require.NoError(t, l.Award(Entry{SourceID: fmt.Sprintf("a%d", i), Amount: 25}))
			p := l.ProgressToNextLevel()
			assert.GreaterOrEqual(t, p, 0.0)
			assert.Less(t, p, 100.0)
		}
	})

	t.Run("wraps to zero exactly at a threshold", func(t *testing.T) {
		l := NewLedger("user-1", nil)
		require.NoError(t, l.Award(Entry{SourceID: "a", Amount: 100}))
		assert.Equal(t, 2, l.Level())
		assert.Equal(t, 0.0, l.ProgressToNextLevel())
	})

	t.Run("halfway through a band", func(t *testing.T) {
		l := NewLedger("user-1", nil)
		// Level 2 spans 100..400; 250 total is halfway.
		require.NoError(t, l.Award(Entry{SourceID: "a", Amount: 250}))
		assert.InDelta(t, 50.0, l.ProgressToNextLevel(), 0.0001)
		assert.Equal(t, shared.XP(150), l.XPToNextLevel())
	})

	t.Run("topped-out step curve reports zero", func(t *testing.T) {
		c, err := NewStepCurve([]shared.XP{100})
		require.NoError(t, err)
		l := NewLedger("user-1", c)
		require.NoError(t, l.Award(Entry{SourceID: "a", Amount: 500}))
		assert.Equal(t, 2, l.Level())
		assert.Equal(t, 0.0, l.ProgressToNextLevel())
		assert.Equal(t, shared.XP(0), l.XPToNextLevel())
	})
}

func TestLedgerReplay(t *testing.T) {
	entries := []Entry{
		{SourceID: "g1", SourceKind: SourceGoalCompleted, Amount: 150},
		{SourceID: "m1", SourceKind: SourceMilestone, Amount: 100},
		{SourceID: "e1", SourceKind: SourceEvidence, Amount: 25},
	}

	first, err := Replay("user-1", nil, entries)
	require.NoError(t, err)
	second, err := Replay("user-1", nil, entries)
	require.NoError(t, err)

	assert.Equal(t, first.TotalXP(), second.TotalXP())
	assert.Equal(t, first.Level(), second.Level())
	assert.Equal(t, shared.XP(275), first.TotalXP())
}

func TestTitleFor(t *testing.T) {
	assert.Equal(t, "Junior Professional", TitleFor(1))
	assert.Equal(t, "Mid-Level Professional", TitleFor(11))
	assert.Equal(t, "Senior Specialist", TitleFor(40))
	assert.Equal(t, "Tech Lead", TitleFor(41))
	assert.Equal(t, "Master Professional", TitleFor(90))
}
