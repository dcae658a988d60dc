package postgres

import (
	"context"
	"fmt"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/xp"
)

// ══════════════════════════════════════════════════════════════════════════════
// XP LEDGER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// XPLedgerRepository implements xp.Repository for PostgreSQL. The table is
// append-only; a unique constraint on (user_id, source_id) makes replayed
// awards idempotent.
type XPLedgerRepository struct {
	conn *Connection
}

// NewXPLedgerRepository creates a new XPLedgerRepository.
func NewXPLedgerRepository(conn *Connection) *XPLedgerRepository {
	return &XPLedgerRepository{conn: conn}
}

// Append stores one ledger entry. Re-appending the same source for the same
// user is a no-op, so event redelivery does not double-award.
func (r *XPLedgerRepository) Append(ctx context.Context, userID string, e xp.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO xp_ledger (user_id, source_id, source_kind, amount, awarded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, source_id) DO NOTHING
	`

	_, err := r.conn.Exec(ctx, query,
		userID,
		e.SourceID,
		string(e.SourceKind),
		int(e.Amount),
		e.AwardedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	return nil
}

// History returns the user's entries in award order.
func (r *XPLedgerRepository) History(ctx context.Context, userID string) ([]xp.Entry, error) {
	query := `
		SELECT source_id, source_kind, amount, awarded_at
		FROM xp_ledger
		WHERE user_id = $1
		ORDER BY awarded_at, source_id
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger history: %w", err)
	}
	defer rows.Close()

	var entries []xp.Entry
	for rows.Next() {
		var e xp.Entry
		var kind string
		var amount int

		if err := rows.Scan(&e.SourceID, &kind, &amount, &e.AwardedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.SourceKind = xp.SourceKind(kind)
		e.Amount = shared.XP(amount)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Total returns the summed XP without loading the history.
func (r *XPLedgerRepository) Total(ctx context.Context, userID string) (shared.XP, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM xp_ledger
		WHERE user_id = $1
	`

	var total int
	if err := r.conn.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum ledger: %w", err)
	}

	return shared.XP(total), nil
}
