package redis

import (
	"context"
	"time"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/activity"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/cycle"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

// ProgressCache keeps hot read views in Redis: the latest rollup per
// cycle, per-user XP totals, and bucketed activity timelines. Event
// handlers write through it; read surfaces consult it before falling
// back to PostgreSQL.
type ProgressCache struct {
	cache *Cache
}

// NewProgressCache creates a new ProgressCache.
func NewProgressCache(cache *Cache) *ProgressCache {
	return &ProgressCache{cache: cache}
}

// cachedRollup is the stored shape of a rollup observation.
type cachedRollup struct {
	ProgressPercentage int       `json:"progress_pct"`
	DaysRemaining      int       `json:"days_remaining"`
	CompletedCount     int       `json:"completed_count"`
	TotalCount         int       `json:"total_count"`
	XPEarned           int       `json:"xp_earned"`
	XPTarget           int       `json:"xp_target"`
	ObservedAt         time.Time `json:"observed_at"`
}

// cachedXP is the stored shape of a user's XP total.
type cachedXP struct {
	Total     int       `json:"total"`
	Level     int       `json:"level"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetRollup stores the latest rollup view of a cycle.
func (p *ProgressCache) SetRollup(ctx context.Context, cycleID string, r cycle.Rollup, at time.Time) error {
	return p.cache.Set(ctx, RollupKey(cycleID), cachedRollup{
		ProgressPercentage: r.ProgressPercentage,
		DaysRemaining:      r.DaysRemaining,
		CompletedCount:     r.CompletedCount,
		TotalCount:         r.TotalCount,
		XPEarned:           r.XPEarned,
		XPTarget:           r.XPTarget,
		ObservedAt:         at,
	}, TTLRollupCache)
}

// GetRollup fetches the cached rollup view of a cycle.
// Returns ErrCacheMiss when nothing is cached.
func (p *ProgressCache) GetRollup(ctx context.Context, cycleID string) (cycle.Rollup, time.Time, error) {
	var stored cachedRollup
	if err := p.cache.Get(ctx, RollupKey(cycleID), &stored); err != nil {
		return cycle.Rollup{}, time.Time{}, err
	}
	return cycle.Rollup{
		ProgressPercentage: stored.ProgressPercentage,
		DaysRemaining:      stored.DaysRemaining,
		CompletedCount:     stored.CompletedCount,
		TotalCount:         stored.TotalCount,
		XPEarned:           stored.XPEarned,
		XPTarget:           stored.XPTarget,
	}, stored.ObservedAt, nil
}

// SetXP stores a user's XP total and derived level.
func (p *ProgressCache) SetXP(ctx context.Context, userID string, total shared.XP, level int) error {
	return p.cache.Set(ctx, XPKey(userID), cachedXP{
		Total:     int(total),
		Level:     level,
		UpdatedAt: time.Now(),
	}, TTLXPCache)
}

// GetXP fetches a user's cached XP total and level.
// Returns ErrCacheMiss when nothing is cached.
func (p *ProgressCache) GetXP(ctx context.Context, userID string) (shared.XP, int, error) {
	var stored cachedXP
	if err := p.cache.Get(ctx, XPKey(userID), &stored); err != nil {
		return 0, 0, err
	}
	return shared.XP(stored.Total), stored.Level, nil
}

// SetTimeline stores the bucketed activity timeline of a cycle.
func (p *ProgressCache) SetTimeline(ctx context.Context, cycleID string, timeline map[activity.Bucket][]activity.Normalized) error {
	return p.cache.Set(ctx, TimelineKey(cycleID), timeline, TTLTimelineCache)
}

// GetTimeline fetches the cached activity timeline of a cycle.
// Returns ErrCacheMiss when nothing is cached.
func (p *ProgressCache) GetTimeline(ctx context.Context, cycleID string) (map[activity.Bucket][]activity.Normalized, error) {
	var timeline map[activity.Bucket][]activity.Normalized
	if err := p.cache.Get(ctx, TimelineKey(cycleID), &timeline); err != nil {
		return nil, err
	}
	return timeline, nil
}

// InvalidateCycle removes every cached view derived from a cycle.
// Called when a cycle is replaced or reloaded from the remote service.
func (p *ProgressCache) InvalidateCycle(ctx context.Context, cycleID string) error {
	return p.cache.Delete(ctx, RollupKey(cycleID), TimelineKey(cycleID))
}

// InvalidateUser removes a user's cached XP total.
func (p *ProgressCache) InvalidateUser(ctx context.Context, userID string) error {
	return p.cache.Delete(ctx, XPKey(userID), CurrentCycleKey(userID))
}
