package shared

import (
	"fmt"
	"math"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Percentage represents a progress percentage clamped to [0,100].
type Percentage float64

// NewPercentage clamps the given value into [0,100].
func NewPercentage(v float64) Percentage {
	if math.IsNaN(v) {
		return 0
	}
	return Percentage(math.Min(100, math.Max(0, v)))
}

// Float64 returns the raw float value.
func (p Percentage) Float64() float64 {
	return float64(p)
}

// Rounded returns the percentage rounded to the nearest integer.
func (p Percentage) Rounded() int {
	return int(math.Round(float64(p)))
}

// IsFull reports whether the percentage has saturated at 100.
func (p Percentage) IsFull() bool {
	return p >= 100
}

// XP represents experience points.
type XP int

// IsValid checks that XP is non-negative.
func (x XP) IsValid() bool {
	return x >= 0
}

// Add sums two XP values.
func (x XP) Add(delta XP) XP {
	return x + delta
}

// ══════════════════════════════════════════════════════════════════════════════
// ANOMALIES
// ══════════════════════════════════════════════════════════════════════════════

// Anomaly records a malformed read input that was substituted with a safe
// default instead of failing the pipeline. Anomalies are warnings, not errors:
// they exist for observability only and never stop execution.
type Anomaly struct {
	// Domain names the pipeline that observed the anomaly, e.g. "activity".
	Domain string

	// RecordID identifies the offending record, if known.
	RecordID string

	// Field is the specific field that was malformed.
	Field string

	// Reason describes what was wrong with the input.
	Reason string

	// ObservedAt is when the anomaly was detected.
	ObservedAt time.Time
}

// NewAnomaly creates an anomaly record stamped with the current time.
func NewAnomaly(domain, recordID, field, reason string) Anomaly {
	return Anomaly{
		Domain:     domain,
		RecordID:   recordID,
		Field:      field,
		Reason:     reason,
		ObservedAt: time.Now().UTC(),
	}
}

// String returns a log-friendly representation.
func (a Anomaly) String() string {
	return fmt.Sprintf("anomaly[%s] record=%s field=%s: %s", a.Domain, a.RecordID, a.Field, a.Reason)
}
