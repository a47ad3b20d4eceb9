package packetio

import (
	"context"
	"sync"
)

// Condition is a predicate-gated wait/signal primitive. Like sync.Cond it is
// bound to a Locker which callers hold around Await, Signal and Cancel;
// unlike sync.Cond a wait can be abandoned through a context and every waiter
// can be failed with a cause.
//
// Conditions are level-triggered: a waiter re-checks the predicate after each
// wakeup, so spurious wakeups are harmless and no signal is lost.
type Condition struct {
	L sync.Locker

	pred    func() bool
	wake    chan struct{}
	waiters int
	cause   error
}

// NewCondition returns a condition guarded by l that is satisfied when pred
// reports true. pred is always evaluated with l held.
func NewCondition(l sync.Locker, pred func() bool) *Condition {
	return &Condition{L: l, pred: pred, wake: make(chan struct{})}
}

// Check reports whether the predicate currently holds.
func (c *Condition) Check() bool {
	return c.pred()
}

// Await returns once the predicate holds. If it does not hold on entry,
// onSuspend (if non-nil) runs once before the first suspension. Await returns
// the cause passed to Cancel, or the context's cause if ctx ends first.
//
// The caller must hold c.L; it is released while suspended and re-acquired
// before Await returns.
func (c *Condition) Await(ctx context.Context, onSuspend func()) error {
	for {
		if c.cause != nil {
			return c.cause
		}
		if c.pred() {
			return nil
		}
		if onSuspend != nil {
			onSuspend()
			onSuspend = nil
			continue
		}
		if err := context.Cause(ctx); err != nil {
			return err
		}

		wake := c.wake
		c.waiters++
		c.L.Unlock()
		select {
		case <-wake:
		case <-ctx.Done():
		}
		c.L.Lock()
		c.waiters--
	}
}

// Signal wakes every current waiter so it re-checks the predicate.
func (c *Condition) Signal() {
	if c.waiters == 0 {
		return
	}
	close(c.wake)
	c.wake = make(chan struct{})
}

// Cancel fails every current and future waiter with cause.
func (c *Condition) Cancel(cause error) {
	if c.cause == nil {
		c.cause = cause
	}
	c.Signal()
}
