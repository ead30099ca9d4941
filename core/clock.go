package core

import "time"

// Clock tracks wall time and the delta between consecutive render ticks.
type Clock struct {
	last time.Time
	dt   time.Duration
}

func NewClock() *Clock {
	return &Clock{last: time.Now()}
}

// Tick advances the clock and returns the elapsed time since the previous
// tick. The first call returns the time since construction.
func (c *Clock) Tick() time.Duration {
	now := time.Now()
	c.dt = now.Sub(c.last)
	c.last = now
	return c.dt
}

func (c *Clock) Dt() time.Duration {
	return c.dt
}

// NowMs returns the current wall time in milliseconds, the unit used by the
// tween buffer.
func NowMs() float64 {
	return float64(time.Now().UnixNano()) / 1e6
}
