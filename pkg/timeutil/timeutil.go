// Package timeutil provides day-granularity time math for activity bucketing
// and cycle date calculations, plus lenient timestamp parsing for remote
// payloads whose date fields arrive in mixed formats.
// No external dependencies - uses only standard library.
package timeutil

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatDateTimeSeconds includes seconds.
	FormatDateTimeSeconds = "2006-01-02 15:04:05"
	// FormatHumanDate is a human-readable format.
	FormatHumanDate = "2 January 2006"
	// FormatShortDate is a short format (Jan 2).
	FormatShortDate = "Jan 2"
)

// StartOfDay returns the start of the day (00:00:00) in UTC.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in UTC.
func EndOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 999999999, time.UTC)
}

// WholeDaysSince returns the number of whole 24-hour windows elapsed from t
// to now. Future timestamps return 0 rather than a negative count.
func WholeDaysSince(t, now time.Time) int {
	elapsed := now.Sub(t)
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed.Hours() / 24)
}

// CeilDays returns the duration in days, rounding any partial day up.
// Non-positive durations return 0.
func CeilDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours() / 24))
}

// SameDay checks whether two instants fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	au, bu := a.UTC(), b.UTC()
	return au.Year() == bu.Year() && au.YearDay() == bu.YearDay()
}

// timestampLayouts are the accepted string layouts, tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	FormatDateTimeSeconds,
	FormatDateTime,
	FormatDate,
}

// ParseTimestamp parses a timestamp that may arrive as an RFC 3339 string,
// a bare date, or an epoch value in seconds or milliseconds. The second
// return value is false when no representation matched.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}

	if epoch, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return FromEpoch(epoch), true
	}

	return time.Time{}, false
}

// FromEpoch converts an epoch value to a time, treating magnitudes above
// 1e12 as milliseconds and the rest as seconds.
func FromEpoch(v int64) time.Time {
	const millisCutoff = 1_000_000_000_000
	if v >= millisCutoff || v <= -millisCutoff {
		return time.UnixMilli(v).UTC()
	}
	return time.Unix(v, 0).UTC()
}

// FormatDateStr formats a time as a date string (YYYY-MM-DD) in UTC.
func FormatDateStr(t time.Time) string {
	return t.UTC().Format(FormatDate)
}
