package competency

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedbackEvidence(n int) Evidence {
	return Evidence{
		Type:      EvidenceFeedback,
		Title:     fmt.Sprintf("peer feedback %d", n),
		XPAwarded: 25,
	}
}

func newTestProgress(t *testing.T, current, target int) *Progress {
	t.Helper()
	p, err := NewProgress("comp-1", "user-1", current, target)
	require.NoError(t, err)
	return p
}

func TestTrackerAddEvidence(t *testing.T) {
	tracker := NewTracker(nil)

	t.Run("each evidence adds the flat step", func(t *testing.T) {
		p := newTestProgress(t, 1, 3)

		res, err := tracker.AddEvidence(p, feedbackEvidence(1))
		require.NoError(t, err)
		assert.Equal(t, 20, res.Progress.ProgressPct)
		assert.False(t, res.LeveledUp)

		res, err = tracker.AddEvidence(res.Progress, feedbackEvidence(2))
		require.NoError(t, err)
		assert.Equal(t, 40, res.Progress.ProgressPct)
	})

	t.Run("fifth evidence levels up and resets progress", func(t *testing.T) {
		p := newTestProgress(t, 1, 3)
		var res Result
		var err error
		for i := 1; i <= 5; i++ {
			res, err = tracker.AddEvidence(p, feedbackEvidence(i))
			require.NoError(t, err)
			p = res.Progress
		}

		assert.True(t, res.LeveledUp)
		assert.Equal(t, 2, res.NewLevel)
		assert.Equal(t, 2, p.CurrentLevel)
		assert.Equal(t, 0, p.ProgressPct)
	})

	t.Run("target level parks at 100 and rejects more evidence", func(t *testing.T) {
		p := newTestProgress(t, 2, 2)
		for i := 1; i <= 5; i++ {
			res, err := tracker.AddEvidence(p, feedbackEvidence(i))
			require.NoError(t, err)
			assert.False(t, res.LeveledUp)
			p = res.Progress
		}

		assert.Equal(t, 2, p.CurrentLevel)
		assert.Equal(t, 100, p.ProgressPct)
		assert.True(t, p.IsComplete())

		_, err := tracker.AddEvidence(p, feedbackEvidence(6))
		assert.Error(t, err)
	})

	t.Run("input record is not mutated", func(t *testing.T) {
		p := newTestProgress(t, 1, 3)
		_, err := tracker.AddEvidence(p, feedbackEvidence(1))
		require.NoError(t, err)
		assert.Equal(t, 0, p.ProgressPct)
		assert.Empty(t, p.Evidence)
	})

	t.Run("evidence gets an id and keeps submission order", func(t *testing.T) {
		p := newTestProgress(t, 1, 3)
		res, err := tracker.AddEvidence(p, feedbackEvidence(1))
		require.NoError(t, err)
		res, err = tracker.AddEvidence(res.Progress, feedbackEvidence(2))
		require.NoError(t, err)

		evs := res.Progress.Evidence
		require.Len(t, evs, 2)
		assert.NotEmpty(t, evs[0].ID)
		assert.Equal(t, "peer feedback 1", evs[0].Title)
		assert.Equal(t, "peer feedback 2", evs[1].Title)
	})

	t.Run("untitled evidence rejected", func(t *testing.T) {
		p := newTestProgress(t, 1, 3)
		_, err := tracker.AddEvidence(p, Evidence{Type: EvidenceCourse})
		assert.Error(t, err)
	})

	t.Run("unknown evidence type rejected", func(t *testing.T) {
		p := newTestProgress(t, 1, 3)
		_, err := tracker.AddEvidence(p, Evidence{Type: "osmosis", Title: "x"})
		assert.Error(t, err)
	})
}

func TestTrackerReplayDeterminism(t *testing.T) {
	tracker := NewTracker(nil)

	evidence := make([]Evidence, 7)
	for i := range evidence {
		evidence[i] = feedbackEvidence(i + 1)
	}

	first, err := tracker.Rebuild("comp-1", "user-1", 1, 3, evidence)
	require.NoError(t, err)
	second, err := tracker.Rebuild("comp-1", "user-1", 1, 3, evidence)
	require.NoError(t, err)

	assert.Equal(t, first.CurrentLevel, second.CurrentLevel)
	assert.Equal(t, first.ProgressPct, second.ProgressPct)
	assert.Equal(t, 2, first.CurrentLevel)
	assert.Equal(t, 40, first.ProgressPct)
}

func TestTrackerProgressMonotonicWithinLevel(t *testing.T) {
	tracker := NewTracker(NewWeightedScoring())
	p := newTestProgress(t, 1, 5)

	prevLevel, prevPct := p.CurrentLevel, p.ProgressPct
	types := []EvidenceType{
		EvidenceFeedback, EvidenceProject, EvidenceCourse,
		EvidenceCertification, EvidenceOneOnOne, EvidenceMilestone,
	}
	for i := 0; i < 12; i++ {
		res, err := tracker.AddEvidence(p, Evidence{
			Type:  types[i%len(types)],
			Title: fmt.Sprintf("artifact %d", i),
		})
		require.NoError(t, err)
		p = res.Progress

		if p.CurrentLevel == prevLevel {
			assert.GreaterOrEqual(t, p.ProgressPct, prevPct)
		} else {
			assert.Equal(t, prevLevel+1, p.CurrentLevel)
			assert.Equal(t, 0, p.ProgressPct)
		}
		assert.LessOrEqual(t, p.ProgressPct, 100)
		prevLevel, prevPct = p.CurrentLevel, p.ProgressPct
	}
}

func TestWeightedScoring(t *testing.T) {
	s := NewWeightedScoring()
	assert.Equal(t, 40, s.StepFor(Evidence{Type: EvidenceCertification}))
	assert.Equal(t, 10, s.StepFor(Evidence{Type: EvidenceFeedback}))
	assert.Equal(t, DefaultEvidenceStep, s.StepFor(Evidence{Type: "unknown"}))
}

func TestNewProgressValidation(t *testing.T) {
	_, err := NewProgress("comp-1", "user-1", 0, 3)
	assert.Error(t, err)

	_, err = NewProgress("comp-1", "user-1", 3, 6)
	assert.Error(t, err)

	_, err = NewProgress("comp-1", "user-1", 4, 2)
	assert.Error(t, err)
}

func TestParseEvidenceType(t *testing.T) {
	tt, err := ParseEvidenceType(" 1on1 ")
	require.NoError(t, err)
	assert.Equal(t, EvidenceOneOnOne, tt)

	_, err = ParseEvidenceType("webinar")
	assert.Error(t, err)
}
