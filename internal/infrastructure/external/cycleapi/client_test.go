package cycleapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/goal"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

func newTestClient(baseURL string) *Client {
	cfg := DefaultClientConfig(baseURL)
	cfg.RateLimiterConfig.MinInterval = 0
	cfg.RateLimiterConfig.RequestsPerSecond = 1000
	return NewClient(cfg)
}

func TestPatchGoalProgress(t *testing.T) {
	current := 3.0

	t.Run("success returns authoritative goal", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPatch, r.Method)
			assert.Equal(t, "/goals/g1/progress", r.URL.Path)

			var patch GoalPatchDTO
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
			require.NotNil(t, patch.CurrentNumber)
			assert.Equal(t, 3.0, *patch.CurrentNumber)

			target := 5.0
			resp := APIResponse[GoalDTO]{
				Success: true,
				Data: GoalDTO{
					ID: "g1", CycleID: "c1", Type: "quantity", Title: "Ship projects",
					TargetNumber: &target, CurrentNumber: patch.CurrentNumber,
				},
			}
			json.NewEncoder(w).Encode(resp)
		}))
		defer srv.Close()

		c := newTestClient(srv.URL)
		g, err := c.PatchGoalProgress(context.Background(), "g1", goal.Patch{CurrentNumber: &current})
		require.NoError(t, err)
		assert.Equal(t, 3.0, g.Quantity.CurrentNumber)
	})

	t.Run("404 maps to not found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(APIErrorDTO{Code: CodeNotFound, Message: "goal not found"})
		}))
		defer srv.Close()

		c := newTestClient(srv.URL)
		_, err := c.PatchGoalProgress(context.Background(), "gone", goal.Patch{CurrentNumber: &current})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("422 maps to validation error and is not retried", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(APIErrorDTO{
				Code: CodeValidation, Message: "patch does not match goal variant", Field: "current_number",
			})
		}))
		defer srv.Close()

		c := newTestClient(srv.URL)
		done := true
		_, err := c.PatchGoalProgress(context.Background(), "g1", goal.Patch{Completed: &done})
		assert.ErrorIs(t, err, shared.ErrValidation)
		assert.Equal(t, 1, calls)
	})
}

func TestCurrentCycle(t *testing.T) {
	t.Run("null data means no active cycle", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success": true, "data": null}`))
		}))
		defer srv.Close()

		c := newTestClient(srv.URL)
		_, err := c.CurrentCycle(context.Background())
		assert.ErrorIs(t, err, shared.ErrNoActiveCycle)
	})

	t.Run("cycle round trips", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success": true, "data": {
				"id": "c1", "user_id": "u1", "name": "Q4", "status": "active", "duration": "3months",
				"start_date": "2025-10-01T00:00:00Z", "end_date": "2025-12-31T00:00:00Z",
				"xp_earned": 120
			}}`))
		}))
		defer srv.Close()

		c := newTestClient(srv.URL)
		cy, err := c.CurrentCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "c1", cy.ID)
		assert.Equal(t, 120, int(cy.XPEarned))
	})
}

func TestActivitiesDegradesGracefully(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cycles/c1/activities", r.URL.Path)
		w.Write([]byte(`{"success": true, "data": [
			{"id": "a1", "cycle_id": "c1", "type": "MENTORING", "title": "Session",
			 "created_at": 1760434200,
			 "mentoring": {"mentor_name": "Riley"}},
			{"id": "a2", "cycle_id": "c1", "type": "???", "title": "???", "created_at": "???"}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	normalized, anomalies, err := c.Activities(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, normalized, 2)
	assert.Equal(t, "Riley", normalized[0].Person)
	assert.NotEmpty(t, anomalies)
}

func TestGoalsSkipsUnknownVariants(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "data": [
			{"id": "g1", "cycle_id": "c1", "type": "deadline", "title": "Certify", "completed": false},
			{"id": "g2", "cycle_id": "c1", "type": "aspiration", "title": "Dream big"}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	goals, anomalies, err := c.Goals(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, "g1", goals[0].ID)
	require.Len(t, anomalies, 1)
}
