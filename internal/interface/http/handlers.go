// Package http implements the REST API for Cycle Progress Hub.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cycle-hub/cycle-progress-hub/internal/application/query"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/activity"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/competency"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/cycle"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/goal"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
	"github.com/cycle-hub/cycle-progress-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Cycle Progress Hub API",
		"version":     "v1",
		"description": "REST API for Cycle Progress Hub - development cycle progress, competencies, and XP",
		"endpoints": map[string]string{
			"health":       "/health",
			"progress":     "/api/v1/progress",
			"goals":        "/api/v1/goals",
			"timeline":     "/api/v1/timeline",
			"xp":           "/api/v1/xp",
			"competencies": "/api/v1/competencies",
		},
		"documentation": "https://github.com/cycle-hub/cycle-progress-hub",
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	// Default health response
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleMetrics handles the metrics endpoint.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds": s.Uptime().Seconds(),
		"running":        s.IsRunning(),
	}

	writeJSON(w, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetProgress handles GET /api/v1/progress
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetProgressOverviewHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Progress handler not configured")
		return
	}

	q := query.GetProgressOverviewQuery{
		IncludeGoals:         getQueryParam(r, "include_goals", "true") == "true",
		IncludeAnomalies:     getQueryParamBool(r, "include_anomalies"),
		IncludeRollupHistory: getQueryParamBool(r, "include_history"),
	}

	result, err := s.deps.GetProgressOverviewHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err, "failed to get progress overview")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetGoals handles GET /api/v1/goals
func (s *Server) handleGetGoals(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetProgressOverviewHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Progress handler not configured")
		return
	}

	result, err := s.deps.GetProgressOverviewHandler.Handle(r.Context(), query.GetProgressOverviewQuery{IncludeGoals: true})
	if err != nil {
		s.writeDomainError(w, err, "failed to get goals")
		return
	}

	meta := &ResponseMeta{TotalCount: len(result.Goals)}
	writeJSONWithMeta(w, r, http.StatusOK, result.Goals, meta)
}

// handleGetGoal handles GET /api/v1/goals/{id}
func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	goalID := r.PathValue("id")
	if goalID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Goal ID is required")
		return
	}

	result, err := s.deps.GetProgressOverviewHandler.Handle(r.Context(), query.GetProgressOverviewQuery{IncludeGoals: true})
	if err != nil {
		s.writeDomainError(w, err, "failed to get goal")
		return
	}

	for _, g := range result.Goals {
		if g.ID == goalID {
			writeJSON(w, http.StatusOK, g)
			return
		}
	}

	writeJSONError(w, http.StatusNotFound, "not_found", "Goal not found")
}

// goalSyncDTO is the reconciliation state of one goal.
type goalSyncDTO struct {
	GoalID     string `json:"goal_id"`
	Status     string `json:"status"`
	Version    uint64 `json:"version"`
	QueueDepth int    `json:"queue_depth"`
	LastError  string `json:"last_error,omitempty"`
}

// handleGetGoalSync handles GET /api/v1/goals/{id}/sync
func (s *Server) handleGetGoalSync(w http.ResponseWriter, r *http.Request) {
	goalID := r.PathValue("id")
	if goalID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Goal ID is required")
		return
	}

	state, ok := s.deps.Store.SyncState(goalID)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "not_found", "No sync state for goal")
		return
	}

	writeJSON(w, http.StatusOK, goalSyncDTO{
		GoalID:     goalID,
		Status:     string(state.Status),
		Version:    state.Version,
		QueueDepth: state.QueueDepth,
		LastError:  state.LastError,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// TIMELINE HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleGetTimeline handles GET /api/v1/timeline
func (s *Server) handleGetTimeline(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetTimelineHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Timeline handler not configured")
		return
	}

	q := query.GetTimelineQuery{
		Bucket:      getQueryParam(r, "bucket", ""),
		Type:        getQueryParam(r, "type", ""),
		Limit:       getQueryParamInt(r, "limit", 0),
		FromArchive: getQueryParam(r, "source", "live") == "archive",
		CycleID:     getQueryParam(r, "cycle_id", ""),
	}

	result, err := s.deps.GetTimelineHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err, "failed to get timeline")
		return
	}

	meta := &ResponseMeta{TotalCount: result.TotalCount}
	writeJSONWithMeta(w, r, http.StatusOK, result, meta)
}

// ══════════════════════════════════════════════════════════════════════════════
// XP HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleGetXP handles GET /api/v1/xp
func (s *Server) handleGetXP(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetXPSummaryHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "XP handler not configured")
		return
	}

	q := query.GetXPSummaryQuery{
		UserID:          s.deps.UserID,
		IncludeHistory:  getQueryParamBool(r, "include_history"),
		HistoryLimit:    getQueryParamInt(r, "limit", 0),
		FromLedgerStore: getQueryParam(r, "source", "live") == "ledger_store",
	}

	result, err := s.deps.GetXPSummaryHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err, "failed to get xp summary")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPETENCY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetCompetencies handles GET /api/v1/competencies
func (s *Server) handleGetCompetencies(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetCompetenciesHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Competency handler not configured")
		return
	}

	q := query.GetCompetenciesQuery{
		UserID:          s.deps.UserID,
		CompetencyID:    getQueryParam(r, "competency_id", ""),
		ActiveOnly:      getQueryParamBool(r, "active_only"),
		IncludeEvidence: getQueryParamBool(r, "include_evidence"),
		FromArchive:     getQueryParam(r, "source", "live") == "archive",
	}

	result, err := s.deps.GetCompetenciesHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err, "failed to get competencies")
		return
	}

	meta := &ResponseMeta{TotalCount: len(result.Progressions)}
	writeJSONWithMeta(w, r, http.StatusOK, result, meta)
}

// ══════════════════════════════════════════════════════════════════════════════
// ANOMALIES HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleGetAnomalies handles GET /api/v1/anomalies
func (s *Server) handleGetAnomalies(w http.ResponseWriter, r *http.Request) {
	anomalies := s.deps.Store.Anomalies()

	out := make([]map[string]interface{}, len(anomalies))
	for i, a := range anomalies {
		out[i] = map[string]interface{}{
			"domain":      a.Domain,
			"record_id":   a.RecordID,
			"field":       a.Field,
			"reason":      a.Reason,
			"observed_at": a.ObservedAt,
		}
	}

	meta := &ResponseMeta{TotalCount: len(out)}
	writeJSONWithMeta(w, r, http.StatusOK, out, meta)
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// createCycleRequest is the POST /api/v1/cycles payload.
type createCycleRequest struct {
	Name      string    `json:"name"`
	Duration  string    `json:"duration"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	XPTarget  int       `json:"xp_target"`
}

// handleCreateCycle handles POST /api/v1/cycles
func (s *Server) handleCreateCycle(w http.ResponseWriter, r *http.Request) {
	var req createCycleRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	duration, err := cycle.ParseDurationClass(req.Duration)
	if err != nil {
		s.writeDomainError(w, err, "unknown cycle duration class")
		return
	}

	created, err := s.deps.Store.CreateCycle(r.Context(), req.Name, duration, req.StartDate, req.EndDate, shared.XP(req.XPTarget))
	if err != nil {
		s.writeDomainError(w, err, "failed to create cycle")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":         created.ID,
		"name":       created.Name,
		"status":     string(created.Status),
		"duration":   string(created.Duration),
		"start_date": created.StartDate,
		"end_date":   created.EndDate,
		"xp_target":  int(created.XPTarget),
	})
}

// patchGoalRequest is the PATCH /api/v1/goals/{id}/progress payload. Only
// the field matching the goal's variant may be set.
type patchGoalRequest struct {
	CurrentNumber *float64 `json:"current_number,omitempty"`
	Completed     *bool    `json:"completed,omitempty"`
	CurrentValue  *float64 `json:"current_value,omitempty"`
}

// handlePatchGoalProgress handles PATCH /api/v1/goals/{id}/progress
func (s *Server) handlePatchGoalProgress(w http.ResponseWriter, r *http.Request) {
	goalID := r.PathValue("id")
	if goalID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Goal ID is required")
		return
	}

	var req patchGoalRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	patch := goal.Patch{
		CurrentNumber: req.CurrentNumber,
		Completed:     req.Completed,
		CurrentValue:  req.CurrentValue,
	}

	if err := s.deps.Store.UpdateGoalProgress(goalID, patch); err != nil {
		s.writeDomainError(w, err, "failed to patch goal progress")
		return
	}

	// The local apply is immediate; the remote patch confirms asynchronously.
	resp := map[string]interface{}{"goal_id": goalID, "applied": true}
	if state, ok := s.deps.Store.SyncState(goalID); ok {
		resp["sync_status"] = string(state.Status)
		resp["version"] = state.Version
	}

	writeJSON(w, http.StatusAccepted, resp)
}

// trackCompetencyRequest is the POST /api/v1/competencies/{id}/track payload.
type trackCompetencyRequest struct {
	CurrentLevel int `json:"current_level"`
	TargetLevel  int `json:"target_level"`
}

// handleTrackCompetency handles POST /api/v1/competencies/{id}/track
func (s *Server) handleTrackCompetency(w http.ResponseWriter, r *http.Request) {
	competencyID := r.PathValue("id")
	if competencyID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Competency ID is required")
		return
	}

	var req trackCompetencyRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	p, err := s.deps.Store.TrackCompetency(competencyID, req.CurrentLevel, req.TargetLevel)
	if err != nil {
		s.writeDomainError(w, err, "failed to track competency")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"competency_id": p.CompetencyID,
		"current_level": p.CurrentLevel,
		"target_level":  p.TargetLevel,
		"progress_pct":  p.ProgressPct,
	})
}

// addEvidenceRequest is the POST /api/v1/competencies/{id}/evidence payload.
type addEvidenceRequest struct {
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date,omitempty"`
	VerifiedBy  string    `json:"verified_by,omitempty"`
}

// handleAddEvidence handles POST /api/v1/competencies/{id}/evidence
func (s *Server) handleAddEvidence(w http.ResponseWriter, r *http.Request) {
	competencyID := r.PathValue("id")
	if competencyID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Competency ID is required")
		return
	}

	var req addEvidenceRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	evType, err := competency.ParseEvidenceType(req.Type)
	if err != nil {
		s.writeDomainError(w, err, "invalid evidence type")
		return
	}

	ev := competency.Evidence{
		Type:        evType,
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		VerifiedBy:  req.VerifiedBy,
	}

	res, err := s.deps.Store.AddEvidence(r.Context(), competencyID, ev)
	if err != nil {
		s.writeDomainError(w, err, "failed to add evidence")
		return
	}

	stored := res.Progress.Evidence[len(res.Progress.Evidence)-1]
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"evidence_id":   stored.ID,
		"competency_id": res.Progress.CompetencyID,
		"progress_pct":  res.Progress.ProgressPct,
		"current_level": res.Progress.CurrentLevel,
		"leveled_up":    res.LeveledUp,
		"new_level":     res.NewLevel,
	})
}

// logActivityRequest is the POST /api/v1/activities payload. The variant
// payload matching Type is set, the others omitted.
type logActivityRequest struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	OneOnOne *struct {
		ParticipantName   string   `json:"participant_name,omitempty"`
		WorkingOn         []string `json:"working_on,omitempty"`
		GeneralNotes      string   `json:"general_notes,omitempty"`
		PositivePoints    []string `json:"positive_points,omitempty"`
		ImprovementPoints []string `json:"improvement_points,omitempty"`
	} `json:"one_on_one,omitempty"`

	Mentoring *struct {
		MentorName string   `json:"mentor_name,omitempty"`
		Topics     []string `json:"topics,omitempty"`
		NextSteps  []string `json:"next_steps,omitempty"`
		Rating     int      `json:"rating,omitempty"`
	} `json:"mentoring,omitempty"`

	Certification *struct {
		Platform       string   `json:"platform,omitempty"`
		Skills         []string `json:"skills,omitempty"`
		CertificateURL string   `json:"certificate_url,omitempty"`
	} `json:"certification,omitempty"`
}

// handleLogActivity handles POST /api/v1/activities
func (s *Server) handleLogActivity(w http.ResponseWriter, r *http.Request) {
	var req logActivityRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	typ, err := activity.ParseType(req.Type)
	if err != nil {
		s.writeDomainError(w, err, "invalid activity type")
		return
	}

	draft, err := activity.NewActivity("", typ, req.Title)
	if err != nil {
		s.writeDomainError(w, err, "invalid activity")
		return
	}
	draft.Description = req.Description
	if p := req.OneOnOne; p != nil {
		draft.OneOnOne = &activity.OneOnOneDetails{
			ParticipantName:   p.ParticipantName,
			WorkingOn:         p.WorkingOn,
			GeneralNotes:      p.GeneralNotes,
			PositivePoints:    p.PositivePoints,
			ImprovementPoints: p.ImprovementPoints,
		}
	}
	if p := req.Mentoring; p != nil {
		draft.Mentoring = &activity.MentoringDetails{
			MentorName: p.MentorName,
			Topics:     p.Topics,
			NextSteps:  p.NextSteps,
			Rating:     p.Rating,
		}
	}
	if p := req.Certification; p != nil {
		draft.Certification = &activity.CertificationDetails{
			Platform:       p.Platform,
			Skills:         p.Skills,
			CertificateURL: p.CertificateURL,
		}
	}

	stored, err := s.deps.Store.LogActivity(r.Context(), draft)
	if err != nil {
		s.writeDomainError(w, err, "failed to log activity")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"activity_id": stored.ID,
		"type":        string(stored.Type),
		"xp_awarded":  int(stored.XPAwarded),
		"created_at":  stored.CreatedAt,
	})
}

// handleDeleteActivity handles DELETE /api/v1/activities/{id}
func (s *Server) handleDeleteActivity(w http.ResponseWriter, r *http.Request) {
	activityID := r.PathValue("id")
	if activityID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Activity ID is required")
		return
	}

	if err := s.deps.Store.DeleteActivity(r.Context(), activityID); err != nil {
		s.writeDomainError(w, err, "failed to delete activity")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleRefreshActivities handles POST /api/v1/activities/refresh
func (s *Server) handleRefreshActivities(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.RefreshActivities(r.Context()); err != nil {
		s.writeDomainError(w, err, "failed to refresh activities")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody reads and decodes a JSON request body, writing the error
// response itself on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to read request body")
		return false
	}
	defer r.Body.Close()

	if err := json.Unmarshal(body, v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return false
	}
	return true
}

// writeDomainError maps a domain error onto an HTTP status and logs it.
func (s *Server) writeDomainError(w http.ResponseWriter, err error, message string) {
	status := http.StatusInternalServerError
	code := "internal_error"

	switch {
	case errors.Is(err, shared.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, shared.ErrAlreadyExists):
		status, code = http.StatusConflict, "already_exists"
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrEmptyValue),
		errors.Is(err, shared.ErrNegativeValue),
		errors.Is(err, shared.ErrValueOutOfRange),
		errors.Is(err, shared.ErrUnknownVariant),
		errors.Is(err, shared.ErrVariantMismatch),
		errors.Is(err, shared.ErrInvalidFormat):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, shared.ErrTerminalState),
		errors.Is(err, shared.ErrStateTransition),
		errors.Is(err, shared.ErrInvalidState):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, shared.ErrRateLimited):
		status, code = http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, shared.ErrServiceUnavailable),
		errors.Is(err, shared.ErrNetwork),
		errors.Is(err, shared.ErrTimeout):
		status, code = http.StatusBadGateway, "upstream_unavailable"
	}

	if status >= 500 {
		s.logger.Error(message, logger.Err(err))
	}

	writeJSONErrorWithDetails(w, status, code, message, err.Error())
}
