// Package cond implements a condition variable whose Wait method can be
// abandoned when a context ends.
package cond

import (
	"context"
	"sync"
)

// A Cond is a condition variable bound to a caller-supplied lock. Unlike
// [sync.Cond], the lock must be held when calling Signal and Broadcast as well
// as Wait.
//
// A zero Cond is ready for use, but must not be copied after first use.
type Cond struct {
	// The wake channel is lazily initialized by the first waiter.  It holds
	// at most one pending signal; Broadcast closes and replaces it.
	wake chan struct{}
}

// Wait unlocks l, blocks until c is signaled or ctx ends, and then relocks l
// before returning. It reports nil if it was woken, or ctx.Err() if ctx ended
// first.
//
// As with [sync.Cond], a wakeup is a hint: the caller must recheck its
// condition in a loop.
func (c *Cond) Wait(ctx context.Context, l sync.Locker) error {
	if c.wake == nil {
		c.wake = make(chan struct{}, 1)
	}
	wake := c.wake
	l.Unlock()
	defer l.Lock()
	select {
	case <-wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Signal wakes one goroutine waiting on c, if there is one. If no goroutine
// is waiting, the signal is retained and the next call to Wait returns
// immediately.
func (c *Cond) Signal() {
	if c.wake == nil {
		c.wake = make(chan struct{}, 1)
	}
	select {
	case c.wake <- struct{}{}:
	default:
		// A signal is already pending.
	}
}

// Broadcast wakes all goroutines waiting on c.
func (c *Cond) Broadcast() {
	if c.wake != nil {
		close(c.wake)
	}
	c.wake = make(chan struct{}, 1)
}
