// internal/sched/tickclock.go

package sched

import (
	"sync/atomic"
)

// TickClock is the simulation's logical clock. It only moves forward, one
// tick at a time, and is read atomically so observers on other goroutines
// can sample it.
type TickClock struct {
	start int64
	now   atomic.Int64
}

// NewTickClock creates a clock positioned at start.
func NewTickClock(start int64) *TickClock {
	c := &TickClock{start: start}
	c.now.Store(start)
	return c
}

// Advance moves the clock one tick forward and returns the new tick.
func (c *TickClock) Advance() int64 {
	return c.now.Add(1)
}

// Now returns the current tick.
func (c *TickClock) Now() int64 {
	return c.now.Load()
}

// Start returns the tick the clock was created at.
func (c *TickClock) Start() int64 {
	return c.start
}

// Elapsed returns the number of ticks advanced since Start.
func (c *TickClock) Elapsed() int64 {
	return c.now.Load() - c.start
}
