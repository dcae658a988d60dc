package cycle

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Contracts for the local cycle archive. Implementations live in
// infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository persists cycles and their rollup history. The remote service
// owns the live cycle; this archive keeps the local copy that survives the
// remote being unreachable and feeds historical views.
type Repository interface {
	// Save upserts a cycle.
	Save(ctx context.Context, c *Cycle) error

	// GetByID returns a cycle. Returns shared.ErrCycleNotFound when absent.
	GetByID(ctx context.Context, id string) (*Cycle, error)

	// GetCurrentByUser returns the user's newest non-terminal cycle.
	// Returns shared.ErrNoActiveCycle when the user has none.
	GetCurrentByUser(ctx context.Context, userID string) (*Cycle, error)

	// ListByUser returns all cycles of a user, newest first.
	ListByUser(ctx context.Context, userID string) ([]*Cycle, error)

	// SaveRollup appends a rollup observation for trend views.
	SaveRollup(ctx context.Context, cycleID string, r Rollup, at time.Time) error

	// LatestRollup returns the most recent rollup observation.
	// Returns shared.ErrCycleNotFound when none was recorded.
	LatestRollup(ctx context.Context, cycleID string) (Rollup, time.Time, error)
}
