//go:build unit

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock_UtcNowIsUTC(t *testing.T) {
	c := NewRealClock()

	now := c.UtcNow()

	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now(), now, time.Second)
}

func TestRealClockIn_UsesLocation(t *testing.T) {
	loc := time.FixedZone("JST", 9*60*60)
	c := NewRealClockIn(loc)

	assert.Equal(t, loc, c.Now().Location())
}

func TestMockClock(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.FixedZone("JST", 9*60*60))
	c := NewMockClock(start)

	assert.Equal(t, start, c.Now())
	assert.Equal(t, start.UTC(), c.UtcNow())

	c.Add(90 * time.Minute)
	assert.Equal(t, start.Add(90*time.Minute), c.Now())

	later := start.Add(48 * time.Hour)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}
