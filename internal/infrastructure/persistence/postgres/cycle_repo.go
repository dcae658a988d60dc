package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/cycle"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CYCLE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CycleRepository implements cycle.Repository for PostgreSQL.
type CycleRepository struct {
	conn *Connection
}

// NewCycleRepository creates a new CycleRepository.
func NewCycleRepository(conn *Connection) *CycleRepository {
	return &CycleRepository{conn: conn}
}

// Save upserts a cycle.
func (r *CycleRepository) Save(ctx context.Context, c *cycle.Cycle) error {
	query := `
		INSERT INTO cycles (
			id, user_id, name, status, duration, start_date, end_date,
			goal_ids, xp_earned, xp_target, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			duration = EXCLUDED.duration,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			goal_ids = EXCLUDED.goal_ids,
			xp_earned = EXCLUDED.xp_earned,
			xp_target = EXCLUDED.xp_target,
			updated_at = EXCLUDED.updated_at
	`

	goalIDs, err := json.Marshal(c.GoalIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal goal ids: %w", err)
	}

	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = r.conn.Exec(ctx, query,
		c.ID,
		c.UserID,
		c.Name,
		string(c.Status),
		string(c.Duration),
		c.StartDate,
		c.EndDate,
		goalIDs,
		int(c.XPEarned),
		int(c.XPTarget),
		c.CreatedAt,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save cycle: %w", err)
	}

	return nil
}

// GetByID returns a cycle by ID.
func (r *CycleRepository) GetByID(ctx context.Context, id string) (*cycle.Cycle, error) {
	query := `
		SELECT id, user_id, name, status, duration, start_date, end_date,
			   goal_ids, xp_earned, xp_target, created_at, updated_at
		FROM cycles
		WHERE id = $1
	`

	row := r.conn.QueryRow(ctx, query, id)
	return r.scanCycle(row)
}

// GetCurrentByUser returns the user's newest non-terminal cycle.
func (r *CycleRepository) GetCurrentByUser(ctx context.Context, userID string) (*cycle.Cycle, error) {
	query := `
		SELECT id, user_id, name, status, duration, start_date, end_date,
			   goal_ids, xp_earned, xp_target, created_at, updated_at
		FROM cycles
		WHERE user_id = $1 AND status NOT IN ($2, $3)
		ORDER BY start_date DESC
		LIMIT 1
	`

	row := r.conn.QueryRow(ctx, query, userID,
		string(cycle.StatusCompleted), string(cycle.StatusCancelled))
	c, err := r.scanCycle(row)
	if err != nil {
		if errors.Is(err, shared.ErrCycleNotFound) {
			return nil, shared.ErrNoActiveCycle
		}
		return nil, err
	}
	return c, nil
}

// ListByUser returns all cycles of a user, newest first.
func (r *CycleRepository) ListByUser(ctx context.Context, userID string) ([]*cycle.Cycle, error) {
	query := `
		SELECT id, user_id, name, status, duration, start_date, end_date,
			   goal_ids, xp_earned, xp_target, created_at, updated_at
		FROM cycles
		WHERE user_id = $1
		ORDER BY start_date DESC
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}
	defer rows.Close()

	var cycles []*cycle.Cycle
	for rows.Next() {
		c, err := r.scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}

	return cycles, rows.Err()
}

// SaveRollup appends a rollup observation.
func (r *CycleRepository) SaveRollup(ctx context.Context, cycleID string, rollup cycle.Rollup, at time.Time) error {
	query := `
		INSERT INTO cycle_rollups (
			cycle_id, progress_pct, days_remaining, completed_count,
			total_count, xp_earned, xp_target, observed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.conn.Exec(ctx, query,
		cycleID,
		rollup.ProgressPercentage,
		rollup.DaysRemaining,
		rollup.CompletedCount,
		rollup.TotalCount,
		rollup.XPEarned,
		rollup.XPTarget,
		at,
	)
	if err != nil {
		return fmt.Errorf("failed to save rollup: %w", err)
	}

	return nil
}

// LatestRollup returns the most recent rollup observation for a cycle.
func (r *CycleRepository) LatestRollup(ctx context.Context, cycleID string) (cycle.Rollup, time.Time, error) {
	query := `
		SELECT progress_pct, days_remaining, completed_count,
			   total_count, xp_earned, xp_target, observed_at
		FROM cycle_rollups
		WHERE cycle_id = $1
		ORDER BY observed_at DESC
		LIMIT 1
	`

	var rollup cycle.Rollup
	var observedAt time.Time

	err := r.conn.QueryRow(ctx, query, cycleID).Scan(
		&rollup.ProgressPercentage,
		&rollup.DaysRemaining,
		&rollup.CompletedCount,
		&rollup.TotalCount,
		&rollup.XPEarned,
		&rollup.XPTarget,
		&observedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return cycle.Rollup{}, time.Time{}, shared.ErrCycleNotFound
		}
		return cycle.Rollup{}, time.Time{}, fmt.Errorf("failed to get latest rollup: %w", err)
	}

	return rollup, observedAt, nil
}

// scanCycle scans a cycle row.
func (r *CycleRepository) scanCycle(row pgx.Row) (*cycle.Cycle, error) {
	var (
		c           cycle.Cycle
		status      string
		duration    string
		goalIDsJSON []byte
		xpEarned    int
		xpTarget    int
	)

	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Name,
		&status,
		&duration,
		&c.StartDate,
		&c.EndDate,
		&goalIDsJSON,
		&xpEarned,
		&xpTarget,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCycleNotFound
		}
		return nil, fmt.Errorf("failed to scan cycle: %w", err)
	}

	parsedStatus, err := cycle.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("stored cycle %s: %w", c.ID, err)
	}
	c.Status = parsedStatus
	c.Duration = cycle.DurationClass(duration)
	c.XPEarned = shared.XP(xpEarned)
	c.XPTarget = shared.XP(xpTarget)

	if len(goalIDsJSON) > 0 {
		if err := json.Unmarshal(goalIDsJSON, &c.GoalIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal goal ids: %w", err)
		}
	}
	if c.GoalIDs == nil {
		c.GoalIDs = []string{}
	}

	return &c, nil
}
