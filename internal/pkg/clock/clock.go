package clock

import (
	"sync"
	"time"
)

// Clock is the only source of "now" for domain and handler code.
type Clock interface {
	UtcNow() time.Time
	Now() time.Time
}

type RealClock struct {
	location *time.Location
}

func NewRealClock() Clock {
	return &RealClock{location: time.Local}
}

// NewRealClockIn reports local time in loc instead of the process zone.
func NewRealClockIn(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return &RealClock{location: loc}
}

func (c *RealClock) UtcNow() time.Time {
	return time.Now().UTC()
}

func (c *RealClock) Now() time.Time {
	return time.Now().In(c.location)
}

type MockClock struct {
	mu          sync.RWMutex
	currentTime time.Time
}

func NewMockClock(t time.Time) *MockClock {
	return &MockClock{currentTime: t}
}

func (c *MockClock) UtcNow() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentTime.UTC()
}

func (c *MockClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentTime
}

func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentTime = t
}

func (c *MockClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentTime = c.currentTime.Add(d)
}
