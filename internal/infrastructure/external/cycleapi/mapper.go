// Package cycleapi implements the remote cycle service client.
package cycleapi

import (
	"errors"
	"log/slog"
	"time"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/activity"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/competency"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/cycle"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/goal"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

// ErrNilDTO is returned when a nil DTO is passed to a mapper.
var ErrNilDTO = errors.New("nil DTO")

// ══════════════════════════════════════════════════════════════════════════════
// MAPPER - DTO to Domain Entity transformations
// ══════════════════════════════════════════════════════════════════════════════

// Mapper handles transformation between service DTOs and domain entities.
// This follows the Anti-Corruption Layer pattern from DDD, protecting our
// domain from external API changes. Read paths degrade gracefully and flag
// anomalies; write-path validation lives in the domain layer.
type Mapper struct {
	logger *slog.Logger
}

// NewMapper creates a new Mapper instance.
func NewMapper(logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{logger: logger}
}

// ══════════════════════════════════════════════════════════════════════════════
// CYCLE MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// CycleFromDTO converts a CycleDTO to a domain Cycle entity. An unknown
// status or duration string is a hard error: the state machine cannot run
// on a guessed state, and a mislabeled duration would bounce off the
// archive's constraint later.
func (m *Mapper) CycleFromDTO(dto *CycleDTO) (*cycle.Cycle, error) {
	if dto == nil {
		return nil, ErrNilDTO
	}

	status, err := cycle.ParseStatus(dto.Status)
	if err != nil {
		return nil, err
	}

	duration, err := cycle.ParseDurationClass(dto.Duration)
	if err != nil {
		return nil, err
	}

	goalIDs := dto.GoalIDs
	if goalIDs == nil {
		goalIDs = []string{}
	}

	return &cycle.Cycle{
		ID:        dto.ID,
		UserID:    dto.UserID,
		Name:      dto.Name,
		Status:    status,
		Duration:  duration,
		StartDate: dto.StartDate,
		EndDate:   dto.EndDate,
		GoalIDs:   goalIDs,
		XPEarned:  shared.XP(dto.XPEarned),
		XPTarget:  shared.XP(dto.XPTarget),
		CreatedAt: dto.CreatedAt,
		UpdatedAt: dto.UpdatedAt,
	}, nil
}

// CycleToCreateDTO converts a draft domain cycle into the creation payload.
func (m *Mapper) CycleToCreateDTO(c *cycle.Cycle) CycleCreateDTO {
	return CycleCreateDTO{
		Name:      c.Name,
		Duration:  string(c.Duration),
		StartDate: c.StartDate,
		EndDate:   c.EndDate,
		XPTarget:  int(c.XPTarget),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// GOAL MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// GoalFromDTO converts a GoalDTO to the domain tagged union. Unknown type
// tags are an error; callers on the read path decide whether to skip the
// record (flagging an anomaly) or fail the operation.
func (m *Mapper) GoalFromDTO(dto *GoalDTO) (*goal.Goal, error) {
	if dto == nil {
		return nil, ErrNilDTO
	}

	kind, err := goal.ParseKind(dto.Type)
	if err != nil {
		return nil, err
	}

	g := &goal.Goal{
		ID:          dto.ID,
		CycleID:     dto.CycleID,
		Kind:        kind,
		Title:       dto.Title,
		Description: dto.Description,
		CreatedAt:   dto.CreatedAt,
		UpdatedAt:   dto.UpdatedAt,
	}

	switch kind {
	case goal.KindQuantity:
		g.Quantity = &goal.QuantityFields{
			TargetNumber:  deref(dto.TargetNumber),
			CurrentNumber: deref(dto.CurrentNumber),
			Unit:          dto.Unit,
		}
	case goal.KindDeadline:
		fields := &goal.DeadlineFields{Completed: dto.Completed != nil && *dto.Completed}
		if dto.Deadline != nil {
			fields.Deadline = *dto.Deadline
		}
		g.Deadline = fields
	case goal.KindImprovement:
		g.Improvement = &goal.ImprovementFields{
			InitialValue: deref(dto.InitialValue),
			TargetValue:  deref(dto.TargetValue),
			CurrentValue: deref(dto.CurrentValue),
			Metric:       dto.Metric,
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// GoalsFromDTO converts a heterogeneous goal list, skipping records that
// fail to map and flagging each as an anomaly.
func (m *Mapper) GoalsFromDTO(dtos []GoalDTO) ([]*goal.Goal, []shared.Anomaly) {
	goals := make([]*goal.Goal, 0, len(dtos))
	var anomalies []shared.Anomaly

	for i := range dtos {
		g, err := m.GoalFromDTO(&dtos[i])
		if err != nil {
			a := shared.NewAnomaly("goal", dtos[i].ID, "type", err.Error())
			anomalies = append(anomalies, a)
			m.logger.Warn("skipping unmappable goal",
				"goal_id", dtos[i].ID,
				"type", dtos[i].Type,
				"error", err)
			continue
		}
		goals = append(goals, g)
	}

	return goals, anomalies
}

// PatchToDTO converts a domain patch to the wire format.
func (m *Mapper) PatchToDTO(p goal.Patch) GoalPatchDTO {
	return GoalPatchDTO{
		CurrentNumber: p.CurrentNumber,
		Completed:     p.Completed,
		CurrentValue:  p.CurrentValue,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY NORMALIZATION
// ══════════════════════════════════════════════════════════════════════════════

// ActivityFromDTO converts one raw activity into the domain entity,
// substituting safe defaults for everything malformed. Never fails: an
// unrecognized type degrades to the generic variant, an unparseable
// timestamp becomes now. Each substitution is flagged.
func (m *Mapper) ActivityFromDTO(dto *ActivityDTO, now time.Time) (*activity.Activity, []shared.Anomaly) {
	var anomalies []shared.Anomaly

	typ, err := activity.ParseType(dto.Type)
	if err != nil {
		typ = activity.TypeGeneric
		anomalies = append(anomalies, shared.NewAnomaly("activity", dto.ID, "type",
			"unrecognized type tag "+dto.Type+", defaulted to generic"))
	}

	createdAt := dto.CreatedAt.Time
	if !dto.CreatedAt.Valid {
		createdAt = now
		anomalies = append(anomalies, shared.NewAnomaly("activity", dto.ID, "created_at",
			"unparseable timestamp "+dto.CreatedAt.Raw+", substituted now"))
	}

	a := &activity.Activity{
		ID:          dto.ID,
		CycleID:     dto.CycleID,
		Type:        typ,
		Title:       dto.Title,
		Description: dto.Description,
		XPAwarded:   shared.XP(dto.XPEarned),
		CreatedAt:   createdAt,
	}

	switch typ {
	case activity.TypeOneOnOne:
		if dto.OneOnOne != nil {
			a.OneOnOne = &activity.OneOnOneDetails{
				ParticipantName:   dto.OneOnOne.ParticipantName,
				WorkingOn:         dto.OneOnOne.WorkingOn,
				GeneralNotes:      dto.OneOnOne.GeneralNotes,
				PositivePoints:    dto.OneOnOne.PositivePoints,
				ImprovementPoints: dto.OneOnOne.ImprovementPoints,
			}
		} else {
			anomalies = append(anomalies, shared.NewAnomaly("activity", dto.ID, "one_on_one",
				"missing variant payload, substituted placeholders"))
		}
	case activity.TypeMentoring:
		if dto.Mentoring != nil {
			a.Mentoring = &activity.MentoringDetails{
				MentorName: dto.Mentoring.MentorName,
				Topics:     dto.Mentoring.Topics,
				NextSteps:  dto.Mentoring.NextSteps,
				Rating:     dto.Mentoring.Rating,
			}
		} else {
			anomalies = append(anomalies, shared.NewAnomaly("activity", dto.ID, "mentoring",
				"missing variant payload, substituted placeholders"))
		}
	case activity.TypeCertification:
		if dto.Certification != nil {
			a.Certification = &activity.CertificationDetails{
				Platform:       dto.Certification.Platform,
				Skills:         dto.Certification.Skills,
				CertificateURL: dto.Certification.CertificateURL,
			}
		} else {
			anomalies = append(anomalies, shared.NewAnomaly("activity", dto.ID, "certification",
				"missing variant payload, substituted placeholders"))
		}
	}

	return a, anomalies
}

// ActivityToCreateDTO converts a draft activity into the create payload.
func (m *Mapper) ActivityToCreateDTO(a *activity.Activity) ActivityCreateDTO {
	dto := ActivityCreateDTO{
		Type:        string(a.Type),
		Title:       a.Title,
		Description: a.Description,
	}

	if d := a.OneOnOne; d != nil {
		dto.OneOnOne = &OneOnOneDTO{
			ParticipantName:   d.ParticipantName,
			WorkingOn:         d.WorkingOn,
			GeneralNotes:      d.GeneralNotes,
			PositivePoints:    d.PositivePoints,
			ImprovementPoints: d.ImprovementPoints,
		}
	}
	if d := a.Mentoring; d != nil {
		dto.Mentoring = &MentoringDTO{
			MentorName: d.MentorName,
			Topics:     d.Topics,
			NextSteps:  d.NextSteps,
			Rating:     d.Rating,
		}
	}
	if d := a.Certification; d != nil {
		dto.Certification = &CertificationDTO{
			Platform:       d.Platform,
			Skills:         d.Skills,
			CertificateURL: d.CertificateURL,
		}
	}
	return dto
}

// NormalizeActivities maps a raw activity list into uniform timeline
// records. Malformed records degrade instead of failing; anomalies are
// logged and returned for observability.
func (m *Mapper) NormalizeActivities(dtos []ActivityDTO, now time.Time) ([]activity.Normalized, []shared.Anomaly) {
	normalized := make([]activity.Normalized, 0, len(dtos))
	var all []shared.Anomaly

	for i := range dtos {
		a, anomalies := m.ActivityFromDTO(&dtos[i], now)
		normalized = append(normalized, a.Normalize())
		all = append(all, anomalies...)
	}

	for _, a := range all {
		m.logger.Warn("activity normalization anomaly",
			"record_id", a.RecordID,
			"field", a.Field,
			"reason", a.Reason)
	}

	return normalized, all
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPETENCY MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// EvidenceToDTO converts domain evidence to the wire format.
func (m *Mapper) EvidenceToDTO(ev competency.Evidence) EvidenceDTO {
	return EvidenceDTO{
		ID:          ev.ID,
		Type:        string(ev.Type),
		Title:       ev.Title,
		Description: ev.Description,
		Date:        ev.Date,
		VerifiedBy:  ev.VerifiedBy,
		XPAwarded:   int(ev.XPAwarded),
	}
}

// ProgressFromDTO converts a CompetencyProgressDTO to the domain record.
// Evidence with unknown types is kept as-is on this read path: the service
// already accepted it, so dropping it would desync the progress fold.
func (m *Mapper) ProgressFromDTO(dto *CompetencyProgressDTO) (*competency.Progress, error) {
	if dto == nil {
		return nil, ErrNilDTO
	}

	evidence := make([]competency.Evidence, 0, len(dto.Evidences))
	for _, e := range dto.Evidences {
		evidence = append(evidence, competency.Evidence{
			ID:          e.ID,
			Type:        competency.EvidenceType(e.Type),
			Title:       e.Title,
			Description: e.Description,
			Date:        e.Date,
			VerifiedBy:  e.VerifiedBy,
			XPAwarded:   shared.XP(e.XPAwarded),
		})
	}

	return &competency.Progress{
		CompetencyID:  dto.CompetencyID,
		UserID:        dto.UserID,
		CurrentLevel:  dto.CurrentLevel,
		TargetLevel:   dto.TargetLevel,
		ProgressPct:   dto.Progress,
		Evidence:      evidence,
		ActiveInCycle: dto.ActiveInCycle,
		StartDate:     dto.StartDate,
	}, nil
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
