package query

import (
	"context"
	"time"

	"github.com/cycle-hub/cycle-progress-hub/internal/application/store"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/xp"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET XP SUMMARY QUERY
// Level, title, and progress toward the next level, with the recent award
// history. The live ledger is authoritative for the session; the persisted
// ledger backs the history view across restarts.
// ══════════════════════════════════════════════════════════════════════════════

// GetXPSummaryQuery contains the XP summary request parameters.
type GetXPSummaryQuery struct {
	// UserID identifies whose ledger to read.
	UserID string

	// IncludeHistory includes recent ledger entries.
	IncludeHistory bool

	// HistoryLimit caps returned entries, newest first. Zero means 20.
	HistoryLimit int

	// FromLedgerStore reads the persisted ledger instead of the session
	// ledger. Useful right after startup, before the first load completes.
	FromLedgerStore bool
}

// Validate checks and normalizes the parameters.
func (q *GetXPSummaryQuery) Validate() error {
	if q.UserID == "" {
		return shared.NewDomainError("query", "GetXPSummary", shared.ErrInvalidInput, "user id is required")
	}
	if q.HistoryLimit <= 0 {
		q.HistoryLimit = 20
	}
	if q.HistoryLimit > 200 {
		q.HistoryLimit = 200
	}
	return nil
}

// XPEntryDTO is one ledger record.
type XPEntryDTO struct {
	SourceID   string    `json:"source_id"`
	SourceKind string    `json:"source_kind"`
	Amount     int       `json:"amount"`
	AwardedAt  time.Time `json:"awarded_at"`
}

// GetXPSummaryResult contains the XP summary response.
type GetXPSummaryResult struct {
	UserID string `json:"user_id"`

	TotalXP    int    `json:"total_xp"`
	Level      int    `json:"level"`
	LevelTitle string `json:"level_title"`

	// ProgressToNextLevel is the fraction of the current level band
	// already earned, 0 through 1.
	ProgressToNextLevel float64 `json:"progress_to_next_level"`

	// XPToNextLevel is the remaining XP until the next level threshold.
	XPToNextLevel int `json:"xp_to_next_level"`

	History []XPEntryDTO `json:"history,omitempty"`

	Source      string    `json:"source"`
	GeneratedAt time.Time `json:"generated_at"`
}

// GetXPSummaryHandler serves XP reads.
type GetXPSummaryHandler struct {
	store  *store.Store
	ledger xp.Repository
	curve  xp.Curve
}

// NewGetXPSummaryHandler creates a new handler. The ledger repository may
// be nil; persisted reads then fail. A nil curve falls back to the
// quadratic default.
func NewGetXPSummaryHandler(s *store.Store, ledger xp.Repository, curve xp.Curve) *GetXPSummaryHandler {
	if curve == nil {
		curve = xp.QuadraticCurve{}
	}
	return &GetXPSummaryHandler{store: s, ledger: ledger, curve: curve}
}

// Handle executes the query.
func (h *GetXPSummaryHandler) Handle(ctx context.Context, q GetXPSummaryQuery) (*GetXPSummaryResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if q.FromLedgerStore {
		return h.handleFromStore(ctx, q)
	}

	snap := h.store.Snapshot()
	toNext := h.curve.ThresholdFor(snap.Level+1) - snap.TotalXP
	if toNext < 0 {
		toNext = 0
	}
	result := &GetXPSummaryResult{
		UserID:              q.UserID,
		TotalXP:             int(snap.TotalXP),
		Level:               snap.Level,
		LevelTitle:          snap.LevelTitle,
		ProgressToNextLevel: snap.ProgressToNextLevel,
		XPToNextLevel:       int(toNext),
		Source:              "live",
		GeneratedAt:         time.Now().UTC(),
	}

	if q.IncludeHistory && h.ledger != nil {
		entries, err := h.ledger.History(ctx, q.UserID)
		if err != nil {
			return nil, err
		}
		result.History = buildXPHistory(entries, q.HistoryLimit)
	}

	return result, nil
}

// handleFromStore rebuilds the ledger from persisted history and folds the
// summary out of it.
func (h *GetXPSummaryHandler) handleFromStore(ctx context.Context, q GetXPSummaryQuery) (*GetXPSummaryResult, error) {
	if h.ledger == nil {
		return nil, shared.NewDomainError("query", "GetXPSummary", shared.ErrServiceUnavailable, "xp ledger store not configured")
	}

	entries, err := h.ledger.History(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	replayed, err := xp.Replay(q.UserID, h.curve, entries)
	if err != nil {
		return nil, err
	}

	result := &GetXPSummaryResult{
		UserID:              q.UserID,
		TotalXP:             int(replayed.TotalXP()),
		Level:               replayed.Level(),
		LevelTitle:          replayed.Title(),
		ProgressToNextLevel: replayed.ProgressToNextLevel(),
		XPToNextLevel:       int(replayed.XPToNextLevel()),
		Source:              "ledger_store",
		GeneratedAt:         time.Now().UTC(),
	}

	if q.IncludeHistory {
		result.History = buildXPHistory(entries, q.HistoryLimit)
	}

	return result, nil
}

// buildXPHistory returns the newest entries first, capped at limit.
func buildXPHistory(entries []xp.Entry, limit int) []XPEntryDTO {
	if len(entries) == 0 {
		return nil
	}
	out := make([]XPEntryDTO, 0, limit)
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := entries[i]
		out = append(out, XPEntryDTO{
			SourceID:   e.SourceID,
			SourceKind: string(e.SourceKind),
			Amount:     int(e.Amount),
			AwardedAt:  e.AwardedAt,
		})
	}
	return out
}
