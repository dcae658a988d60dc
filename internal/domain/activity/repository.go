package activity

import (
	"context"
	"time"
)

// Repository persists logged activities. Implementations must return
// shared.ErrActivityNotFound when an activity does not exist.
type Repository interface {
	// Save inserts or replaces an activity.
	Save(ctx context.Context, act *Activity) error

	// GetByID fetches a single activity.
	GetByID(ctx context.Context, id string) (*Activity, error)

	// ListByCycle returns the activities of a cycle, oldest first.
	ListByCycle(ctx context.Context, cycleID string) ([]*Activity, error)

	// ListByCycleSince returns the activities of a cycle created at or
	// after the given time, oldest first.
	ListByCycleSince(ctx context.Context, cycleID string, since time.Time) ([]*Activity, error)

	// Delete removes an activity.
	Delete(ctx context.Context, id string) error
}
