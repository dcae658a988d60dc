package query

import (
	"context"
	"time"

	"github.com/cycle-hub/cycle-progress-hub/internal/application/store"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/activity"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TIMELINE QUERY
// Serves the bucketed activity timeline. The live store covers the current
// cycle; the activity archive covers everything reconciliation has saved,
// which survives restarts and remote outages.
// ══════════════════════════════════════════════════════════════════════════════

// GetTimelineQuery contains the timeline request parameters.
type GetTimelineQuery struct {
	// Bucket restricts the response to one recency bucket. Empty means all.
	Bucket string

	// Type restricts the response to one activity type. Empty means all.
	Type string

	// Limit caps entries per bucket. Zero means the default of 50.
	Limit int

	// FromArchive reads the persisted archive instead of the live store.
	// Requires CycleID.
	FromArchive bool

	// CycleID selects the cycle for archive reads.
	CycleID string
}

// Validate checks and normalizes the parameters.
func (q *GetTimelineQuery) Validate() error {
	if q.Bucket != "" && !activity.Bucket(q.Bucket).IsValid() {
		return shared.NewDomainError("query", "GetTimeline", shared.ErrInvalidInput, "unknown bucket: "+q.Bucket)
	}
	if q.Type != "" {
		if _, err := activity.ParseType(q.Type); err != nil {
			return err
		}
	}
	if q.FromArchive && q.CycleID == "" {
		return shared.NewDomainError("query", "GetTimeline", shared.ErrInvalidInput, "archive reads require a cycle id")
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Limit > 500 {
		q.Limit = 500
	}
	return nil
}

// TimelineEntryDTO is one flattened activity record.
type TimelineEntryDTO struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Title   string   `json:"title"`
	Person  string   `json:"person,omitempty"`
	Topics  []string `json:"topics,omitempty"`
	Outcome string   `json:"outcome,omitempty"`
	Rating  int      `json:"rating,omitempty"`

	XPAwarded int       `json:"xp_awarded"`
	Timestamp time.Time `json:"timestamp"`
}

// TimelineBucketDTO is one recency bucket with its entries in feed order.
type TimelineBucketDTO struct {
	Bucket  string             `json:"bucket"`
	Count   int                `json:"count"`
	Entries []TimelineEntryDTO `json:"entries"`
}

// GetTimelineResult contains the timeline response.
type GetTimelineResult struct {
	Buckets []TimelineBucketDTO `json:"buckets"`

	// TotalCount is the number of entries across all buckets before the
	// per-bucket limit was applied.
	TotalCount int `json:"total_count"`

	Source      string    `json:"source"`
	GeneratedAt time.Time `json:"generated_at"`
}

// GetTimelineHandler serves timeline reads.
type GetTimelineHandler struct {
	store   *store.Store
	archive activity.Repository
}

// NewGetTimelineHandler creates a new handler. The archive may be nil when
// the deployment runs without persistence; archive reads then fail.
func NewGetTimelineHandler(s *store.Store, archive activity.Repository) *GetTimelineHandler {
	return &GetTimelineHandler{store: s, archive: archive}
}

// Handle executes the query.
func (h *GetTimelineHandler) Handle(ctx context.Context, q GetTimelineQuery) (*GetTimelineResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	var items []activity.Normalized
	source := "live"
	if q.FromArchive {
		if h.archive == nil {
			return nil, shared.NewDomainError("query", "GetTimeline", shared.ErrServiceUnavailable, "activity archive not configured")
		}
		stored, err := h.archive.ListByCycle(ctx, q.CycleID)
		if err != nil {
			return nil, err
		}
		items = make([]activity.Normalized, 0, len(stored))
		for _, a := range stored {
			items = append(items, a.Normalize())
		}
		source = "archive"
	} else {
		snap := h.store.Snapshot()
		items = snap.Activities
	}

	if q.Type != "" {
		filtered := items[:0]
		for _, n := range items {
			if string(n.Type) == q.Type {
				filtered = append(filtered, n)
			}
		}
		items = filtered
	}

	grouped := activity.GroupByBucket(items, now)

	result := &GetTimelineResult{
		TotalCount:  len(items),
		Source:      source,
		GeneratedAt: now,
	}

	for _, b := range activity.Buckets() {
		if q.Bucket != "" && string(b) != q.Bucket {
			continue
		}
		entries := grouped[b]
		if len(entries) == 0 {
			continue
		}
		if len(entries) > q.Limit {
			entries = entries[:q.Limit]
		}
		dto := TimelineBucketDTO{
			Bucket:  string(b),
			Count:   len(entries),
			Entries: make([]TimelineEntryDTO, len(entries)),
		}
		for i, n := range entries {
			dto.Entries[i] = buildTimelineEntryDTO(n)
		}
		result.Buckets = append(result.Buckets, dto)
	}

	return result, nil
}

func buildTimelineEntryDTO(n activity.Normalized) TimelineEntryDTO {
	return TimelineEntryDTO{
		ID:        n.ID,
		Type:      string(n.Type),
		Title:     n.Title,
		Person:    n.Person,
		Topics:    n.Topics,
		Outcome:   n.Outcome,
		Rating:    n.Rating,
		XPAwarded: int(n.XPAwarded),
		Timestamp: n.Timestamp,
	}
}
