package cycleapi

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/activity"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/cycle"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/goal"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

func TestFlexTimeUnmarshal(t *testing.T) {
	t.Run("rfc3339 string", func(t *testing.T) {
		var f FlexTime
		require.NoError(t, json.Unmarshal([]byte(`"2025-10-14T09:30:00Z"`), &f))
		assert.True(t, f.Valid)
		assert.Equal(t, time.Date(2025, 10, 14, 9, 30, 0, 0, time.UTC), f.Time)
	})

	t.Run("epoch seconds number", func(t *testing.T) {
		var f FlexTime
		require.NoError(t, json.Unmarshal([]byte(`1760434200`), &f))
		assert.True(t, f.Valid)
		assert.Equal(t, int64(1760434200), f.Time.Unix())
	})

	t.Run("epoch millis number", func(t *testing.T) {
		var f FlexTime
		require.NoError(t, json.Unmarshal([]byte(`1760434200000`), &f))
		assert.True(t, f.Valid)
		assert.Equal(t, int64(1760434200), f.Time.Unix())
	})

	t.Run("garbage never errors", func(t *testing.T) {
		var f FlexTime
		require.NoError(t, json.Unmarshal([]byte(`"next tuesday"`), &f))
		assert.False(t, f.Valid)

		require.NoError(t, json.Unmarshal([]byte(`{"weird": true}`), &f))
		assert.False(t, f.Valid)
	})
}

func TestGoalFromDTO(t *testing.T) {
	m := NewMapper(nil)

	t.Run("quantity goal maps", func(t *testing.T) {
		target, current := 5.0, 2.0
		dto := &GoalDTO{
			ID: "g1", CycleID: "c1", Type: "quantity", Title: "Ship projects",
			TargetNumber: &target, CurrentNumber: &current, Unit: "projects",
		}
		g, err := m.GoalFromDTO(dto)
		require.NoError(t, err)
		assert.Equal(t, goal.KindQuantity, g.Kind)
		assert.Equal(t, 5.0, g.Quantity.TargetNumber)
	})

	t.Run("unknown type tag rejected", func(t *testing.T) {
		dto := &GoalDTO{ID: "g2", CycleID: "c1", Type: "vision", Title: "Be great"}
		_, err := m.GoalFromDTO(dto)
		assert.Error(t, err)
	})

	t.Run("list skips bad records with anomalies", func(t *testing.T) {
		done := true
		dtos := []GoalDTO{
			{ID: "g1", CycleID: "c1", Type: "deadline", Title: "Certify", Completed: &done},
			{ID: "g2", CycleID: "c1", Type: "vision", Title: "Be great"},
		}
		goals, anomalies := m.GoalsFromDTO(dtos)
		require.Len(t, goals, 1)
		assert.Equal(t, "g1", goals[0].ID)
		require.Len(t, anomalies, 1)
		assert.Equal(t, "g2", anomalies[0].RecordID)
	})
}

func TestCycleFromDTO(t *testing.T) {
	m := NewMapper(nil)

	dto := &CycleDTO{
		ID: "c1", UserID: "u1", Name: "Q4", Status: "active", Duration: "3months",
		StartDate: time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		XPEarned:  120,
	}
	c, err := m.CycleFromDTO(dto)
	require.NoError(t, err)
	assert.Equal(t, cycle.StatusActive, c.Status)
	assert.Equal(t, cycle.DurationThreeMonths, c.Duration)
	assert.NotNil(t, c.GoalIDs)

	dto.Status = "limbo"
	_, err = m.CycleFromDTO(dto)
	assert.Error(t, err)

	// A mislabeled duration must be caught here, not by the archive's
	// CHECK constraint on a later insert.
	dto.Status = "active"
	dto.Duration = "quarter"
	_, err = m.CycleFromDTO(dto)
	assert.ErrorIs(t, err, shared.ErrUnknownVariant)
}

func TestNormalizeActivities(t *testing.T) {
	m := NewMapper(nil)
	now := time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)

	t.Run("well formed record maps cleanly", func(t *testing.T) {
		raw := []byte(`{
			"id": "a1", "cycle_id": "c1", "type": "MENTORING",
			"title": "Session with Riley", "xp_earned": 60,
			"created_at": "2025-10-14T10:00:00Z",
			"mentoring": {"mentor_name": "Riley", "topics": ["tests"], "next_steps": ["pair more"]}
		}`)
		var dto ActivityDTO
		require.NoError(t, json.Unmarshal(raw, &dto))

		normalized, anomalies := m.NormalizeActivities([]ActivityDTO{dto}, now)
		require.Len(t, normalized, 1)
		assert.Empty(t, anomalies)
		assert.Equal(t, "Riley", normalized[0].Person)
		assert.Equal(t, activity.TypeMentoring, normalized[0].Type)
	})

	t.Run("malformed record degrades without failing", func(t *testing.T) {
		raw := []byte(`{
			"id": "a2", "cycle_id": "c1", "type": "KARAOKE",
			"title": "??", "created_at": "whenever"
		}`)
		var dto ActivityDTO
		require.NoError(t, json.Unmarshal(raw, &dto))

		normalized, anomalies := m.NormalizeActivities([]ActivityDTO{dto}, now)
		require.Len(t, normalized, 1)
		assert.Equal(t, activity.TypeGeneric, normalized[0].Type)
		assert.Equal(t, now, normalized[0].Timestamp)

		// One anomaly for the type, one for the timestamp.
		assert.Len(t, anomalies, 2)
	})

	t.Run("missing variant payload yields placeholder", func(t *testing.T) {
		dto := ActivityDTO{
			ID: "a3", CycleID: "c1", Type: "ONE_ON_ONE", Title: "Sync",
			CreatedAt: FlexTime{Time: now, Valid: true},
		}
		normalized, anomalies := m.NormalizeActivities([]ActivityDTO{dto}, now)
		require.Len(t, normalized, 1)
		assert.Equal(t, activity.UnknownParticipant, normalized[0].Person)
		assert.Len(t, anomalies, 1)
	})
}
