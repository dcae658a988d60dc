package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/competency"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON EVIDENCE ADDED HANDLER
//
// Persists evidence submissions and the derived progression snapshot. The
// event carries identifiers only; the full records come from the progress
// source (the store), which the handler reads after the fact.
// ═══════════════════════════════════════════════════════════════════════════

// ProgressSource exposes the current progression of a competency.
// *store.Store satisfies it.
type ProgressSource interface {
	CompetencyProgress(competencyID string) (*competency.Progress, error)
}

// OnEvidenceAddedHandler persists evidence and progression snapshots.
type OnEvidenceAddedHandler struct {
	source       ProgressSource
	competencies competency.Repository
	logger       *slog.Logger
	timeout      time.Duration
}

// NewOnEvidenceAddedHandler creates the handler.
func NewOnEvidenceAddedHandler(
	source ProgressSource,
	competencies competency.Repository,
	logger *slog.Logger,
	timeout time.Duration,
) *OnEvidenceAddedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &OnEvidenceAddedHandler{
		source:       source,
		competencies: competencies,
		logger:       logger.With("handler", "on_evidence_added"),
		timeout:      timeout,
	}
}

// Handle implements shared.EventHandler.
func (h *OnEvidenceAddedHandler) Handle(event shared.Event) error {
	evidenceEvent, ok := event.(shared.EvidenceAddedEvent)
	if !ok {
		h.logger.Warn("received non-EvidenceAddedEvent", "event_type", event.EventType())
		return nil
	}
	if h.source == nil || h.competencies == nil {
		return nil
	}

	progress, err := h.source.CompetencyProgress(evidenceEvent.CompetencyID)
	if err != nil {
		return fmt.Errorf("read progression: %w", err)
	}

	var stored *competency.Evidence
	for i := range progress.Evidence {
		if progress.Evidence[i].ID == evidenceEvent.EvidenceID {
			stored = &progress.Evidence[i]
			break
		}
	}
	if stored == nil {
		// Progression changed under us; the next snapshot save covers it.
		h.logger.Warn("evidence no longer present in progression",
			"competency_id", evidenceEvent.CompetencyID,
			"evidence_id", evidenceEvent.EvidenceID,
		)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.competencies.AppendEvidence(ctx, progress.CompetencyID, progress.UserID, *stored); err != nil {
		return fmt.Errorf("append evidence: %w", err)
	}
	if err := h.competencies.SaveProgress(ctx, progress); err != nil {
		return fmt.Errorf("save progression: %w", err)
	}

	h.logger.Debug("evidence persisted",
		"competency_id", evidenceEvent.CompetencyID,
		"evidence_id", evidenceEvent.EvidenceID,
		"progress_pct", progress.ProgressPct,
	)

	return nil
}
