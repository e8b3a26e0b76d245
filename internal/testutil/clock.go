package testutil

import (
	"sync"
	"time"
)

// Clock provides a thread-safe fixed wall clock for tests.
//
// Components that take a `now func() time.Time` accept Clock.Now, so
// audit timestamps become deterministic and assertable.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock frozen at the given instant.
func NewClock(at time.Time) *Clock {
	return &Clock{now: at.UTC()}
}

// Now returns the current frozen instant.
//
// Thread-safe: uses mutex to protect the time value.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
//
// Monotonic as long as d is non-negative.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set replaces the current instant.
//
// Used for test reuse across scenarios.
func (c *Clock) Set(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = at.UTC()
}
