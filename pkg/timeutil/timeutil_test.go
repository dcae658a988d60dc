package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWholeDaysSince(t *testing.T) {
	now := time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, WholeDaysSince(now, now))
	assert.Equal(t, 0, WholeDaysSince(now.Add(-23*time.Hour), now))
	assert.Equal(t, 1, WholeDaysSince(now.Add(-25*time.Hour), now))
	assert.Equal(t, 30, WholeDaysSince(now.AddDate(0, 0, -30), now))

	// Future timestamps clamp to zero.
	assert.Equal(t, 0, WholeDaysSince(now.Add(48*time.Hour), now))
}

func TestCeilDays(t *testing.T) {
	assert.Equal(t, 0, CeilDays(0))
	assert.Equal(t, 0, CeilDays(-time.Hour))
	assert.Equal(t, 1, CeilDays(time.Hour))
	assert.Equal(t, 1, CeilDays(24*time.Hour))
	assert.Equal(t, 2, CeilDays(25*time.Hour))
}

func TestParseTimestamp(t *testing.T) {
	t.Run("rfc3339", func(t *testing.T) {
		ts, ok := ParseTimestamp("2025-10-14T09:30:00Z")
		require.True(t, ok)
		assert.Equal(t, time.Date(2025, 10, 14, 9, 30, 0, 0, time.UTC), ts)
	})

	t.Run("bare date", func(t *testing.T) {
		ts, ok := ParseTimestamp("2025-10-14")
		require.True(t, ok)
		assert.Equal(t, time.Date(2025, 10, 14, 0, 0, 0, 0, time.UTC), ts)
	})

	t.Run("epoch seconds", func(t *testing.T) {
		ts, ok := ParseTimestamp("1760434200")
		require.True(t, ok)
		assert.Equal(t, int64(1760434200), ts.Unix())
	})

	t.Run("epoch milliseconds", func(t *testing.T) {
		ts, ok := ParseTimestamp("1760434200000")
		require.True(t, ok)
		assert.Equal(t, int64(1760434200), ts.Unix())
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, ok := ParseTimestamp("not-a-date")
		assert.False(t, ok)
		_, ok = ParseTimestamp("")
		assert.False(t, ok)
	})
}

func TestSameDay(t *testing.T) {
	a := time.Date(2025, 10, 15, 0, 5, 0, 0, time.UTC)
	b := time.Date(2025, 10, 15, 23, 55, 0, 0, time.UTC)
	c := time.Date(2025, 10, 16, 0, 5, 0, 0, time.UTC)

	assert.True(t, SameDay(a, b))
	assert.False(t, SameDay(b, c))
}
