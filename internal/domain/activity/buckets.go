package activity

import (
	"time"

	"github.com/cycle-hub/cycle-progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TIMELINE BUCKETS
// ══════════════════════════════════════════════════════════════════════════════

// Bucket is the calendar group an activity falls into on the timeline.
type Bucket string

const (
	BucketToday     Bucket = "today"
	BucketYesterday Bucket = "yesterday"
	BucketThisWeek  Bucket = "this_week"
	BucketThisMonth Bucket = "this_month"
	BucketOlder     Bucket = "older"
)

// IsValid checks that the bucket is one of the closed set.
func (b Bucket) IsValid() bool {
	switch b {
	case BucketToday, BucketYesterday, BucketThisWeek, BucketThisMonth, BucketOlder:
		return true
	default:
		return false
	}
}

// Buckets lists all buckets in display order.
func Buckets() []Bucket {
	return []Bucket{BucketToday, BucketYesterday, BucketThisWeek, BucketThisMonth, BucketOlder}
}

// BucketFor assigns a timestamp to its bucket by whole-day difference from
// now: 0 is today, 1 yesterday, 2-7 this week, 8-30 this month, beyond that
// older. Future timestamps land in today.
func BucketFor(ts, now time.Time) Bucket {
	days := timeutil.WholeDaysSince(ts, now)
	switch {
	case days == 0:
		return BucketToday
	case days == 1:
		return BucketYesterday
	case days <= 7:
		return BucketThisWeek
	case days <= 30:
		return BucketThisMonth
	default:
		return BucketOlder
	}
}

// GroupByBucket partitions normalized activities into their buckets,
// preserving input order within each bucket.
func GroupByBucket(items []Normalized, now time.Time) map[Bucket][]Normalized {
	groups := make(map[Bucket][]Normalized)
	for _, item := range items {
		b := BucketFor(item.Timestamp, now)
		groups[b] = append(groups[b], item)
	}
	return groups
}
