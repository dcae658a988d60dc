package competency

import "context"

// Repository persists competency progressions and their evidence. Evidence
// is append-only; progress rows are derived and overwritten freely.
type Repository interface {
	// SaveProgress upserts a progression snapshot.
	SaveProgress(ctx context.Context, p *Progress) error

	// GetProgress returns one progression.
	// Returns shared.ErrCompetencyNotFound when absent.
	GetProgress(ctx context.Context, competencyID, userID string) (*Progress, error)

	// ListProgressByUser returns all progressions of a user.
	ListProgressByUser(ctx context.Context, userID string) ([]*Progress, error)

	// AppendEvidence stores one evidence record.
	AppendEvidence(ctx context.Context, competencyID, userID string, ev Evidence) error
}
