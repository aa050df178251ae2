package clock

import (
	"sync"
	"time"
)

// Clock is a controllable clock for tests and local runs.
// It is safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
	loc *time.Location
}

func New(now time.Time, loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{now: now.In(loc), loc: loc}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Location() *time.Location { return c.loc }

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.In(c.loc)
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
