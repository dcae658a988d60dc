// Package cycleapi implements the remote cycle service client.
// This package handles all communication with the persistence service,
// including fetching cycles, goals, activities, and submitting progress
// updates and competency evidence.
package cycleapi

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cycle-hub/cycle-progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// API RESPONSE WRAPPERS
// ══════════════════════════════════════════════════════════════════════════════

// APIResponse represents a generic API response wrapper.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

// Meta contains pagination and additional metadata.
type Meta struct {
	Total      int `json:"total,omitempty"`
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
}

// APIErrorDTO is the error body returned by the service on 4xx/5xx.
type APIErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Error implements the error interface.
func (e *APIErrorDTO) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Well-known error codes returned by the service.
const (
	CodeNotFound    = "NOT_FOUND"
	CodeValidation  = "VALIDATION_ERROR"
	CodeServerError = "SERVER_ERROR"
	CodeUnavailable = "TEMPORARILY_UNAVAILABLE"
)

// ══════════════════════════════════════════════════════════════════════════════
// FLEXIBLE TIMESTAMP
// ══════════════════════════════════════════════════════════════════════════════

// FlexTime is a timestamp that may arrive as an RFC 3339 string, a bare
// date, or an epoch number in seconds or milliseconds. Unparseable values
// never fail decoding; they leave Valid unset so the normalizer can
// substitute a default and flag the anomaly.
type FlexTime struct {
	Time  time.Time
	Valid bool

	// Raw keeps the original token for anomaly reporting.
	Raw string
}

// UnmarshalJSON implements lenient timestamp decoding.
func (f *FlexTime) UnmarshalJSON(data []byte) error {
	f.Raw = string(data)

	var asNumber int64
	if err := json.Unmarshal(data, &asNumber); err == nil {
		f.Time = timeutil.FromEpoch(asNumber)
		f.Valid = true
		return nil
	}

	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		if t, ok := timeutil.ParseTimestamp(asString); ok {
			f.Time = t
			f.Valid = true
		}
		return nil
	}

	// Unknown shape: leave invalid, never error.
	return nil
}

// MarshalJSON emits RFC 3339 or null.
func (f FlexTime) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Time.UTC().Format(time.RFC3339))
}

// ══════════════════════════════════════════════════════════════════════════════
// CYCLE DTOs
// ══════════════════════════════════════════════════════════════════════════════

// CycleDTO represents a cycle as returned by the service.
type CycleDTO struct {
	// ID is the opaque stable identifier
	ID string `json:"id"`

	// UserID is the owning user
	UserID string `json:"user_id"`

	// Name is the cycle's display name
	Name string `json:"name"`

	// Status is the lifecycle state string
	Status string `json:"status"`

	// Duration is the coarse length category
	Duration string `json:"duration,omitempty"`

	// StartDate / EndDate bound the cycle
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	// GoalIDs lists the child goals
	GoalIDs []string `json:"goal_ids,omitempty"`

	// XPEarned / XPTarget are the cycle's XP tallies
	XPEarned int `json:"xp_earned"`
	XPTarget int `json:"xp_target,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CycleCreateDTO is the payload for creating a cycle.
type CycleCreateDTO struct {
	Name      string    `json:"name"`
	Duration  string    `json:"duration,omitempty"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	XPTarget  int       `json:"xp_target,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// GOAL DTOs
// ══════════════════════════════════════════════════════════════════════════════

// GoalDTO represents a goal as returned by the service. The wire format is
// flat: the Type tag selects which variant fields are meaningful.
type GoalDTO struct {
	ID          string `json:"id"`
	CycleID     string `json:"cycle_id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// quantity variant
	TargetNumber  *float64 `json:"target_number,omitempty"`
	CurrentNumber *float64 `json:"current_number,omitempty"`
	Unit          string   `json:"unit,omitempty"`

	// deadline variant
	Deadline  *time.Time `json:"deadline,omitempty"`
	Completed *bool      `json:"completed,omitempty"`

	// improvement variant
	InitialValue *float64 `json:"initial_value,omitempty"`
	TargetValue  *float64 `json:"target_value,omitempty"`
	CurrentValue *float64 `json:"current_value,omitempty"`
	Metric       string   `json:"metric,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GoalPatchDTO is the partial progress update sent to the service. Only
// the field matching the goal's variant may be set.
type GoalPatchDTO struct {
	CurrentNumber *float64 `json:"current_number,omitempty"`
	Completed     *bool    `json:"completed,omitempty"`
	CurrentValue  *float64 `json:"current_value,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY DTOs
// ══════════════════════════════════════════════════════════════════════════════

// ActivityDTO represents an activity as returned by the service. The list
// endpoint is heterogeneous: payload objects may be missing or half-filled,
// and CreatedAt arrives in whatever format the recording client used. The
// normalizer is responsible for degrading gracefully.
type ActivityDTO struct {
	ID          string `json:"id"`
	CycleID     string `json:"cycle_id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	XPEarned  int      `json:"xp_earned"`
	CreatedAt FlexTime `json:"created_at"`

	OneOnOne      *OneOnOneDTO      `json:"one_on_one,omitempty"`
	Mentoring     *MentoringDTO     `json:"mentoring,omitempty"`
	Certification *CertificationDTO `json:"certification,omitempty"`
}

// ActivityCreateDTO is the payload for logging a new activity. The variant
// payload matching Type is set, the others omitted.
type ActivityCreateDTO struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	OneOnOne      *OneOnOneDTO      `json:"one_on_one,omitempty"`
	Mentoring     *MentoringDTO     `json:"mentoring,omitempty"`
	Certification *CertificationDTO `json:"certification,omitempty"`
}

// OneOnOneDTO is the 1:1 variant payload.
type OneOnOneDTO struct {
	ParticipantName   string   `json:"participant_name,omitempty"`
	WorkingOn         []string `json:"working_on,omitempty"`
	GeneralNotes      string   `json:"general_notes,omitempty"`
	PositivePoints    []string `json:"positive_points,omitempty"`
	ImprovementPoints []string `json:"improvement_points,omitempty"`
}

// MentoringDTO is the mentoring variant payload.
type MentoringDTO struct {
	MentorName string   `json:"mentor_name,omitempty"`
	Topics     []string `json:"topics,omitempty"`
	NextSteps  []string `json:"next_steps,omitempty"`
	Rating     int      `json:"rating,omitempty"`
}

// CertificationDTO is the certification variant payload.
type CertificationDTO struct {
	Platform       string   `json:"platform,omitempty"`
	Skills         []string `json:"skills,omitempty"`
	CertificateURL string   `json:"certificate_url,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPETENCY DTOs
// ══════════════════════════════════════════════════════════════════════════════

// EvidenceDTO is the payload for submitting competency evidence.
type EvidenceDTO struct {
	ID          string    `json:"id,omitempty"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
	VerifiedBy  string    `json:"verified_by,omitempty"`
	XPAwarded   int       `json:"xp_awarded,omitempty"`
}

// CompetencyProgressDTO is the per-user progression state returned after an
// evidence submission.
type CompetencyProgressDTO struct {
	CompetencyID  string        `json:"competency_id"`
	UserID        string        `json:"user_id"`
	CurrentLevel  int           `json:"current_level"`
	TargetLevel   int           `json:"target_level"`
	Progress      int           `json:"progress"`
	Evidences     []EvidenceDTO `json:"evidences,omitempty"`
	ActiveInCycle bool          `json:"active_in_cycle"`
	StartDate     time.Time     `json:"start_date"`
}
