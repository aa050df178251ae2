package clock

import "time"

// SystemClock returns the current wall-clock time in the business location.
type SystemClock struct {
	loc *time.Location
}

func NewSystemClock(loc *time.Location) SystemClock {
	if loc == nil {
		loc = time.Local
	}
	return SystemClock{loc: loc}
}

func (c SystemClock) Now() time.Time { return time.Now().In(c.loc) }

func (c SystemClock) Location() *time.Location { return c.loc }
