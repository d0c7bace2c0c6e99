// Package pause provides the cooperative suspension gate shared by the
// scheduler and sequencer. Pausing is resumable and preserves in-flight
// progress; it is deliberately separate from context cancellation, which
// is terminal.
package pause

import (
	"context"
	"sync"
)

// Controller is a cooperative gate. Workers call Wait at their checkpoints
// and block while the gate is paused. All methods are safe for concurrent
// use and idempotent.
type Controller struct {
	mu        sync.Mutex
	resumed   chan struct{} // open while paused, closed on resume
	destroyed bool
}

func NewController() *Controller {
	return &Controller{}
}

// Pause arms the gate. Redundant calls are no-ops, as is pausing a
// destroyed controller.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed || c.resumed != nil {
		return
	}
	c.resumed = make(chan struct{})
}

// Resume releases all waiters. Redundant calls are no-ops.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resumed == nil {
		return
	}
	close(c.resumed)
	c.resumed = nil
}

// Paused reports whether the gate is currently armed.
func (c *Controller) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resumed != nil
}

// Wait blocks until the gate is resumed, the context is cancelled, or the
// controller is destroyed. Returns the context error on cancellation so
// callers treat it like any other checkpoint failure.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	ch := c.resumed
	c.mu.Unlock()
	if ch == nil {
		return ctx.Err()
	}
	select {
	case <-ch:
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Destroy force-releases any waiters and disables the gate permanently.
// Used on task deletion so nothing is left blocked forever.
func (c *Controller) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed = true
	if c.resumed != nil {
		close(c.resumed)
		c.resumed = nil
	}
}
