package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronExpression(t *testing.T) {
	t.Run("accepts the standard forms", func(t *testing.T) {
		for _, expr := range []string{
			EveryMinute,
			Every5Minutes,
			EveryHour,
			EveryDayMidnight,
			"0 21 * * *",
			"30 9 * * 1-5",
			"0 0 1,15 * *",
			"0-30/10 * * * *",
		} {
			_, err := ParseCronExpression(expr)
			assert.NoError(t, err, expr)
		}
	})

	t.Run("rejects malformed expressions", func(t *testing.T) {
		for _, expr := range []string{
			"",
			"* * * *",
			"* * * * * *",
			"61 * * * *",
			"* 25 * * *",
			"x * * * *",
			"*/0 * * * *",
		} {
			_, err := ParseCronExpression(expr)
			assert.Error(t, err, expr)
		}
	})

	t.Run("String returns the raw expression", func(t *testing.T) {
		ce := MustParseCronExpression("0 21 * * *")
		assert.Equal(t, "0 21 * * *", ce.String())
	})
}

func TestCronExpressionNext(t *testing.T) {
	// Monday 2025-11-03 10:17 UTC.
	base := time.Date(2025, 11, 3, 10, 17, 30, 0, time.UTC)

	t.Run("every minute advances to the next whole minute", func(t *testing.T) {
		ce := MustParseCronExpression(EveryMinute)
		next := ce.Next(base)
		assert.Equal(t, time.Date(2025, 11, 3, 10, 18, 0, 0, time.UTC), next)
	})

	t.Run("hourly fires at the top of the next hour", func(t *testing.T) {
		ce := MustParseCronExpression(EveryHour)
		next := ce.Next(base)
		assert.Equal(t, time.Date(2025, 11, 3, 11, 0, 0, 0, time.UTC), next)
	})

	t.Run("daily time earlier than now rolls to tomorrow", func(t *testing.T) {
		ce := MustParseCronExpression("0 9 * * *")
		next := ce.Next(base)
		assert.Equal(t, time.Date(2025, 11, 4, 9, 0, 0, 0, time.UTC), next)
	})

	t.Run("weekday field skips the weekend", func(t *testing.T) {
		// Friday 2025-11-07 22:00, next weekday run is Monday.
		friday := time.Date(2025, 11, 7, 22, 0, 0, 0, time.UTC)
		ce := MustParseCronExpression("30 9 * * 1-5")
		next := ce.Next(friday)
		assert.Equal(t, time.Date(2025, 11, 10, 9, 30, 0, 0, time.UTC), next)
		assert.Equal(t, time.Monday, next.Weekday())
	})

	t.Run("step schedule matches only the step minutes", func(t *testing.T) {
		ce := MustParseCronExpression(Every15Minutes)
		next := ce.Next(base)
		require.Equal(t, 30, next.Minute())

		next = ce.Next(next)
		assert.Equal(t, 45, next.Minute())
	})
}

func TestIntervalSchedule(t *testing.T) {
	s := NewIntervalSchedule(10 * time.Minute)
	base := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, base.Add(10*time.Minute), s.Next(base))
	assert.NotEmpty(t, s.String())
}
