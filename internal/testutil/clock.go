// Package testutil holds test doubles shared across packages.
package testutil

import (
	"sync"
	"time"
)

// Clock is a thread-safe fake wall clock. Components that take a now
// function (the dispatch channel's visibility timeout, the lock's lease
// arithmetic) accept Clock.Now so tests control time instead of sleeping.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time. The method value Clock.Now satisfies
// the func() time.Time option hooks.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set jumps the clock to t. Moving backwards is allowed; lease-expiry
// tests use it to model clock skew.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
