// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"time"

	"github.com/cycle-hub/cycle-progress-hub/internal/application/store"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/cycle"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/goal"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS OVERVIEW QUERY
// The main dashboard read: current cycle, its rollup, and the goal list in
// one consistent snapshot. Falls back to the local archive when the store
// has no live cycle yet.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressOverviewQuery contains the overview request parameters.
type GetProgressOverviewQuery struct {
	// IncludeGoals includes the full goal list, not just the tally.
	IncludeGoals bool

	// IncludeAnomalies includes degradations collected during the last load.
	IncludeAnomalies bool

	// IncludeRollupHistory includes the latest archived rollup observation
	// alongside the live one, so clients can show a trend.
	IncludeRollupHistory bool
}

// CycleDTO describes the current cycle.
type CycleDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Duration string `json:"duration"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	XPEarned int `json:"xp_earned"`
	XPTarget int `json:"xp_target"`
}

// RollupDTO is the aggregate progress view.
type RollupDTO struct {
	ProgressPercentage int `json:"progress_percentage"`
	DaysRemaining      int `json:"days_remaining"`
	CompletedCount     int `json:"completed_count"`
	TotalCount         int `json:"total_count"`
	XPEarned           int `json:"xp_earned"`
	XPTarget           int `json:"xp_target"`
}

// GoalDTO is one goal with its derived progress. Exactly one of the variant
// payloads is set, matching Kind.
type GoalDTO struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	ProgressPercentage float64 `json:"progress_percentage"`
	Completed          bool    `json:"completed"`

	Quantity    *QuantityDTO    `json:"quantity,omitempty"`
	Deadline    *DeadlineDTO    `json:"deadline,omitempty"`
	Improvement *ImprovementDTO `json:"improvement,omitempty"`

	SyncStatus string `json:"sync_status,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// QuantityDTO is the quantity-variant payload.
type QuantityDTO struct {
	Current float64 `json:"current"`
	Target  float64 `json:"target"`
	Unit    string  `json:"unit,omitempty"`
}

// DeadlineDTO is the deadline-variant payload.
type DeadlineDTO struct {
	Deadline  time.Time `json:"deadline"`
	Completed bool      `json:"completed"`
}

// ImprovementDTO is the improvement-variant payload.
type ImprovementDTO struct {
	Initial float64 `json:"initial"`
	Target  float64 `json:"target"`
	Current float64 `json:"current"`
	Metric  string  `json:"metric,omitempty"`
}

// AnomalyDTO is one degradation recorded while normalizing remote data.
type AnomalyDTO struct {
	Domain   string    `json:"domain"`
	RecordID string    `json:"record_id,omitempty"`
	Field    string    `json:"field,omitempty"`
	Reason   string    `json:"reason"`
	At       time.Time `json:"at"`
}

// GetProgressOverviewResult contains the overview response.
type GetProgressOverviewResult struct {
	Cycle  *CycleDTO `json:"cycle"`
	Rollup RollupDTO `json:"rollup"`

	Goals []GoalDTO `json:"goals,omitempty"`

	// ArchivedRollup is the last persisted observation, if requested and
	// present. ArchivedAt is when it was taken.
	ArchivedRollup *RollupDTO `json:"archived_rollup,omitempty"`
	ArchivedAt     *time.Time `json:"archived_at,omitempty"`

	Anomalies []AnomalyDTO `json:"anomalies,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// GetProgressOverviewHandler serves the overview from the live store, with
// the cycle archive as history source.
type GetProgressOverviewHandler struct {
	store   *store.Store
	archive cycle.Repository
}

// NewGetProgressOverviewHandler creates a new handler. The archive may be
// nil; history is then simply omitted.
func NewGetProgressOverviewHandler(s *store.Store, archive cycle.Repository) *GetProgressOverviewHandler {
	return &GetProgressOverviewHandler{store: s, archive: archive}
}

// Handle executes the query.
func (h *GetProgressOverviewHandler) Handle(ctx context.Context, q GetProgressOverviewQuery) (*GetProgressOverviewResult, error) {
	snap := h.store.Snapshot()
	if snap.Cycle == nil {
		return nil, shared.ErrNoActiveCycle
	}

	result := &GetProgressOverviewResult{
		Cycle:       buildCycleDTO(snap.Cycle),
		Rollup:      buildRollupDTO(snap.Rollup),
		GeneratedAt: time.Now().UTC(),
	}

	if q.IncludeGoals {
		result.Goals = make([]GoalDTO, 0, len(snap.Goals))
		for _, g := range snap.Goals {
			dto := buildGoalDTO(g)
			if state, ok := h.store.SyncState(g.ID); ok {
				dto.SyncStatus = string(state.Status)
			}
			result.Goals = append(result.Goals, dto)
		}
	}

	if q.IncludeAnomalies {
		result.Anomalies = buildAnomalyDTOs(snap.Anomalies)
	}

	if q.IncludeRollupHistory && h.archive != nil {
		archived, at, err := h.archive.LatestRollup(ctx, snap.Cycle.ID)
		if err == nil {
			dto := buildRollupDTO(archived)
			result.ArchivedRollup = &dto
			result.ArchivedAt = &at
		} else if !errors.Is(err, shared.ErrCycleNotFound) {
			return nil, err
		}
	}

	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DTO BUILDERS
// Shared by the other query handlers in this package.
// ══════════════════════════════════════════════════════════════════════════════

func buildCycleDTO(c *cycle.Cycle) *CycleDTO {
	return &CycleDTO{
		ID:        c.ID,
		Name:      c.Name,
		Status:    string(c.Status),
		Duration:  string(c.Duration),
		StartDate: c.StartDate,
		EndDate:   c.EndDate,
		XPEarned:  int(c.XPEarned),
		XPTarget:  int(c.XPTarget),
	}
}

func buildRollupDTO(r cycle.Rollup) RollupDTO {
	return RollupDTO{
		ProgressPercentage: r.ProgressPercentage,
		DaysRemaining:      r.DaysRemaining,
		CompletedCount:     r.CompletedCount,
		TotalCount:         r.TotalCount,
		XPEarned:           r.XPEarned,
		XPTarget:           r.XPTarget,
	}
}

func buildGoalDTO(g *goal.Goal) GoalDTO {
	dto := GoalDTO{
		ID:                 g.ID,
		Kind:               string(g.Kind),
		Title:              g.Title,
		Description:        g.Description,
		ProgressPercentage: goal.Progress(g).Float64(),
		Completed:          goal.IsComplete(g),
		UpdatedAt:          g.UpdatedAt,
	}

	switch g.Kind {
	case goal.KindQuantity:
		if g.Quantity != nil {
			dto.Quantity = &QuantityDTO{
				Current: g.Quantity.CurrentNumber,
				Target:  g.Quantity.TargetNumber,
				Unit:    g.Quantity.Unit,
			}
		}
	case goal.KindDeadline:
		if g.Deadline != nil {
			dto.Deadline = &DeadlineDTO{
				Deadline:  g.Deadline.Deadline,
				Completed: g.Deadline.Completed,
			}
		}
	case goal.KindImprovement:
		if g.Improvement != nil {
			dto.Improvement = &ImprovementDTO{
				Initial: g.Improvement.InitialValue,
				Target:  g.Improvement.TargetValue,
				Current: g.Improvement.CurrentValue,
				Metric:  g.Improvement.Metric,
			}
		}
	}

	return dto
}

func buildAnomalyDTOs(anomalies []shared.Anomaly) []AnomalyDTO {
	if len(anomalies) == 0 {
		return nil
	}
	out := make([]AnomalyDTO, len(anomalies))
	for i, a := range anomalies {
		out[i] = AnomalyDTO{
			Domain:   a.Domain,
			RecordID: a.RecordID,
			Field:    a.Field,
			Reason:   a.Reason,
			At:       a.ObservedAt,
		}
	}
	return out
}
