package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/competency"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPETENCY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CompetencyRepository implements competency.Repository for PostgreSQL.
// Progress rows are derived snapshots and are overwritten freely; evidence
// rows are append-only.
type CompetencyRepository struct {
	conn *Connection
}

// NewCompetencyRepository creates a new CompetencyRepository.
func NewCompetencyRepository(conn *Connection) *CompetencyRepository {
	return &CompetencyRepository{conn: conn}
}

// SaveProgress upserts a progression snapshot.
func (r *CompetencyRepository) SaveProgress(ctx context.Context, p *competency.Progress) error {
	query := `
		INSERT INTO competency_progress (
			competency_id, user_id, current_level, target_level,
			progress_pct, active_in_cycle, start_date, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (competency_id, user_id) DO UPDATE SET
			current_level = EXCLUDED.current_level,
			target_level = EXCLUDED.target_level,
			progress_pct = EXCLUDED.progress_pct,
			active_in_cycle = EXCLUDED.active_in_cycle,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.conn.Exec(ctx, query,
		p.CompetencyID,
		p.UserID,
		p.CurrentLevel,
		p.TargetLevel,
		p.ProgressPct,
		p.ActiveInCycle,
		p.StartDate,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save competency progress: %w", err)
	}

	return nil
}

// GetProgress returns one progression with its evidence.
func (r *CompetencyRepository) GetProgress(ctx context.Context, competencyID, userID string) (*competency.Progress, error) {
	query := `
		SELECT competency_id, user_id, current_level, target_level,
			   progress_pct, active_in_cycle, start_date
		FROM competency_progress
		WHERE competency_id = $1 AND user_id = $2
	`

	var p competency.Progress
	err := r.conn.QueryRow(ctx, query, competencyID, userID).Scan(
		&p.CompetencyID,
		&p.UserID,
		&p.CurrentLevel,
		&p.TargetLevel,
		&p.ProgressPct,
		&p.ActiveInCycle,
		&p.StartDate,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCompetencyNotFound
		}
		return nil, fmt.Errorf("failed to get competency progress: %w", err)
	}

	evidence, err := r.listEvidence(ctx, competencyID, userID)
	if err != nil {
		return nil, err
	}
	p.Evidence = evidence

	return &p, nil
}

// ListProgressByUser returns all progressions of a user, without evidence.
func (r *CompetencyRepository) ListProgressByUser(ctx context.Context, userID string) ([]*competency.Progress, error) {
	query := `
		SELECT competency_id, user_id, current_level, target_level,
			   progress_pct, active_in_cycle, start_date
		FROM competency_progress
		WHERE user_id = $1
		ORDER BY start_date
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list competency progress: %w", err)
	}
	defer rows.Close()

	var progressions []*competency.Progress
	for rows.Next() {
		var p competency.Progress
		if err := rows.Scan(
			&p.CompetencyID,
			&p.UserID,
			&p.CurrentLevel,
			&p.TargetLevel,
			&p.ProgressPct,
			&p.ActiveInCycle,
			&p.StartDate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan competency progress: %w", err)
		}
		progressions = append(progressions, &p)
	}

	return progressions, rows.Err()
}

// AppendEvidence stores one evidence record. Re-appending the same evidence
// ID is a no-op.
func (r *CompetencyRepository) AppendEvidence(ctx context.Context, competencyID, userID string, ev competency.Evidence) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO competency_evidence (
			id, competency_id, user_id, type, title, description,
			date, verified_by, xp_awarded
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.conn.Exec(ctx, query,
		ev.ID,
		competencyID,
		userID,
		string(ev.Type),
		ev.Title,
		ev.Description,
		ev.Date,
		ev.VerifiedBy,
		int(ev.XPAwarded),
	)
	if err != nil {
		return fmt.Errorf("failed to append evidence: %w", err)
	}

	return nil
}

// listEvidence returns the evidence of one progression in submission order.
func (r *CompetencyRepository) listEvidence(ctx context.Context, competencyID, userID string) ([]competency.Evidence, error) {
	query := `
		SELECT id, type, title, description, date, verified_by, xp_awarded
		FROM competency_evidence
		WHERE competency_id = $1 AND user_id = $2
		ORDER BY date, id
	`

	rows, err := r.conn.Query(ctx, query, competencyID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence: %w", err)
	}
	defer rows.Close()

	var evidence []competency.Evidence
	for rows.Next() {
		var ev competency.Evidence
		var evType string
		var xpAwarded int

		if err := rows.Scan(
			&ev.ID,
			&evType,
			&ev.Title,
			&ev.Description,
			&ev.Date,
			&ev.VerifiedBy,
			&xpAwarded,
		); err != nil {
			return nil, fmt.Errorf("failed to scan evidence: %w", err)
		}
		ev.Type = competency.EvidenceType(evType)
		ev.XPAwarded = shared.XP(xpAwarded)
		evidence = append(evidence, ev)
	}

	return evidence, rows.Err()
}
