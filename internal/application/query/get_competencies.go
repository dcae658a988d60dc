package query

import (
	"context"
	"errors"
	"time"

	"github.com/cycle-hub/cycle-progress-hub/internal/application/store"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/competency"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET COMPETENCIES QUERY
// Lists competency progressions with their evidence trail. The live store
// covers progressions tracked this session; the repository covers the full
// persisted set.
// ══════════════════════════════════════════════════════════════════════════════

// GetCompetenciesQuery contains the competency request parameters.
type GetCompetenciesQuery struct {
	// UserID identifies whose progressions to read.
	UserID string

	// CompetencyID restricts the response to one progression.
	CompetencyID string

	// ActiveOnly restricts the response to progressions pursued in the
	// current cycle.
	ActiveOnly bool

	// IncludeEvidence includes the evidence records per progression.
	IncludeEvidence bool

	// FromArchive reads the persisted set instead of the live store.
	FromArchive bool
}

// Validate checks the parameters.
func (q *GetCompetenciesQuery) Validate() error {
	if q.UserID == "" {
		return shared.NewDomainError("query", "GetCompetencies", shared.ErrInvalidInput, "user id is required")
	}
	return nil
}

// EvidenceDTO is one evidence record.
type EvidenceDTO struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
	VerifiedBy  string    `json:"verified_by,omitempty"`
	XPAwarded   int       `json:"xp_awarded"`
}

// CompetencyProgressDTO is one progression.
type CompetencyProgressDTO struct {
	CompetencyID string `json:"competency_id"`

	CurrentLevel int `json:"current_level"`
	TargetLevel  int `json:"target_level"`
	ProgressPct  int `json:"progress_pct"`

	Complete      bool `json:"complete"`
	ActiveInCycle bool `json:"active_in_cycle"`

	EvidenceCount int           `json:"evidence_count"`
	Evidence      []EvidenceDTO `json:"evidence,omitempty"`

	StartDate time.Time `json:"start_date"`
}

// GetCompetenciesResult contains the competency response.
type GetCompetenciesResult struct {
	UserID       string                  `json:"user_id"`
	Progressions []CompetencyProgressDTO `json:"progressions"`

	Source      string    `json:"source"`
	GeneratedAt time.Time `json:"generated_at"`
}

// GetCompetenciesHandler serves competency reads.
type GetCompetenciesHandler struct {
	store   *store.Store
	archive competency.Repository
}

// NewGetCompetenciesHandler creates a new handler. The archive may be nil;
// archive reads then fail.
func NewGetCompetenciesHandler(s *store.Store, archive competency.Repository) *GetCompetenciesHandler {
	return &GetCompetenciesHandler{store: s, archive: archive}
}

// Handle executes the query.
func (h *GetCompetenciesHandler) Handle(ctx context.Context, q GetCompetenciesQuery) (*GetCompetenciesResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	progressions, source, err := h.collect(ctx, q)
	if err != nil {
		return nil, err
	}

	result := &GetCompetenciesResult{
		UserID:      q.UserID,
		Source:      source,
		GeneratedAt: time.Now().UTC(),
	}

	for _, p := range progressions {
		if q.ActiveOnly && !p.ActiveInCycle {
			continue
		}
		result.Progressions = append(result.Progressions, buildCompetencyDTO(p, q.IncludeEvidence))
	}

	return result, nil
}

// collect gathers the raw progressions from the selected source.
func (h *GetCompetenciesHandler) collect(ctx context.Context, q GetCompetenciesQuery) ([]*competency.Progress, string, error) {
	if q.FromArchive {
		if h.archive == nil {
			return nil, "", shared.NewDomainError("query", "GetCompetencies", shared.ErrServiceUnavailable, "competency archive not configured")
		}
		if q.CompetencyID != "" {
			p, err := h.archive.GetProgress(ctx, q.CompetencyID, q.UserID)
			if err != nil {
				return nil, "", err
			}
			return []*competency.Progress{p}, "archive", nil
		}
		all, err := h.archive.ListProgressByUser(ctx, q.UserID)
		if err != nil {
			return nil, "", err
		}
		return all, "archive", nil
	}

	if q.CompetencyID != "" {
		p, err := h.store.CompetencyProgress(q.CompetencyID)
		if err != nil {
			if errors.Is(err, shared.ErrCompetencyNotFound) {
				return nil, "live", nil
			}
			return nil, "", err
		}
		return []*competency.Progress{p}, "live", nil
	}

	snap := h.store.Snapshot()
	return snap.Competencies, "live", nil
}

func buildCompetencyDTO(p *competency.Progress, includeEvidence bool) CompetencyProgressDTO {
	dto := CompetencyProgressDTO{
		CompetencyID:  p.CompetencyID,
		CurrentLevel:  p.CurrentLevel,
		TargetLevel:   p.TargetLevel,
		ProgressPct:   p.ProgressPct,
		Complete:      p.IsComplete(),
		ActiveInCycle: p.ActiveInCycle,
		EvidenceCount: len(p.Evidence),
		StartDate:     p.StartDate,
	}

	if includeEvidence {
		dto.Evidence = make([]EvidenceDTO, len(p.Evidence))
		for i, ev := range p.Evidence {
			dto.Evidence[i] = EvidenceDTO{
				ID:          ev.ID,
				Type:        string(ev.Type),
				Title:       ev.Title,
				Description: ev.Description,
				Date:        ev.Date,
				VerifiedBy:  ev.VerifiedBy,
				XPAwarded:   int(ev.XPAwarded),
			}
		}
	}

	return dto
}
