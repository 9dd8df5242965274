package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClock(t *testing.T) {
	start := time.Date(2025, 3, 9, 23, 30, 0, 0, time.UTC)
	c := NewMockClock(start)

	c.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), c.Now())
	assert.Equal(t, time.Hour, c.Since(start))

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestToday(t *testing.T) {
	bst := time.FixedZone("BST", 3600)
	local := time.Date(2025, 6, 10, 0, 30, 0, 0, bst)

	assert.Equal(t, "2025-06-10", Today(local).Format(DateLayout))
	assert.Equal(t, "2025-06-09", Today(local.UTC()).Format(DateLayout))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-09", nil)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, d.Location())
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("09/03/2025", time.UTC)
	assert.Error(t, err)
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2025, 3, 9, 22, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysBetween(a, time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, DaysBetween(a, a))
	assert.Equal(t, -2, DaysBetween(a, time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)))
}
