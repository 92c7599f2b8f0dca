package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock provides the current instant as an Epoch.
type Clock interface {
	// Now returns the current instant, tagged in the clock's scale
	Now() Epoch

	// Since returns the absolute duration elapsed since e
	Since(e Epoch) time.Duration
}

// SystemClock reads wall time from a clockwork clock and tags it in a
// chosen scale (UTC by default).
type SystemClock struct {
	wall  clockwork.Clock
	scale Scale
}

// NewSystemClock creates a SystemClock backed by the real wall clock.
func NewSystemClock() *SystemClock {
	return NewSystemClockFrom(clockwork.NewRealClock())
}

// NewSystemClockFrom wraps an existing clockwork clock, typically a fake one in tests.
func NewSystemClockFrom(wall clockwork.Clock) *SystemClock {
	return &SystemClock{wall: wall, scale: UTC}
}

// In returns a copy of the clock that tags readings in scale s.
func (c *SystemClock) In(s Scale) *SystemClock {
	return &SystemClock{wall: c.wall, scale: s}
}

// Now returns the current wall time as an epoch.
func (c *SystemClock) Now() Epoch {
	return FromTime(c.wall.Now()).ToScale(c.scale)
}

// Since returns the duration elapsed since e.
func (c *SystemClock) Since(e Epoch) time.Duration {
	return c.Now().Sub(e)
}
