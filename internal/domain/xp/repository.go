package xp

import (
	"context"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

// Repository persists the XP ledger. The ledger itself is rebuilt by
// replaying history through NewLedger + Replay, so the storage contract is
// append and read, never update.
type Repository interface {
	// Append stores one ledger entry for the user.
	Append(ctx context.Context, userID string, e Entry) error

	// History returns the user's entries in award order.
	History(ctx context.Context, userID string) ([]Entry, error)

	// Total returns the summed XP without loading the history.
	Total(ctx context.Context, userID string) (shared.XP, error)
}
