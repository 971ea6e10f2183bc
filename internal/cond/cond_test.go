package cond_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/creachadair/rendezvous/internal/cond"
	"github.com/fortytw2/leaktest"
)

func TestCond(t *testing.T) {
	defer leaktest.Check(t)()
	bg := context.Background()

	t.Run("PendingSignal", func(t *testing.T) {
		var μ sync.Mutex
		var c cond.Cond

		μ.Lock()
		defer μ.Unlock()

		// A signal with no waiter is kept for the next Wait.
		c.Signal()
		c.Signal() // does not block
		if err := c.Wait(bg, &μ); err != nil {
			t.Errorf("Wait: unexpected error: %v", err)
		}
		if μ.TryLock() {
			t.Error("Wait returned without the lock held")
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		var μ sync.Mutex
		var c cond.Cond

		ctx, cancel := context.WithTimeout(bg, 10*time.Millisecond)
		defer cancel()

		μ.Lock()
		defer μ.Unlock()
		if err := c.Wait(ctx, &μ); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Wait: got %v, want %v", err, context.DeadlineExceeded)
		}
		if μ.TryLock() {
			t.Error("Wait returned without the lock held")
		}
	})

	t.Run("Signal", func(t *testing.T) {
		var μ sync.Mutex
		var c cond.Cond
		var ready bool

		done := make(chan struct{})
		go func() {
			defer close(done)
			μ.Lock()
			defer μ.Unlock()
			for !ready {
				if err := c.Wait(bg, &μ); err != nil {
					t.Errorf("Wait: unexpected error: %v", err)
					return
				}
			}
		}()

		time.Sleep(5 * time.Millisecond)
		μ.Lock()
		ready = true
		c.Signal()
		μ.Unlock()

		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Fatal("Timed out waiting for Signal to wake the waiter")
		}
	})

	t.Run("Broadcast", func(t *testing.T) {
		var μ sync.Mutex
		var c cond.Cond
		var gen int

		const numWaiters = 5
		var start, stop sync.WaitGroup
		for range numWaiters {
			start.Add(1)
			stop.Add(1)
			go func() {
				defer stop.Done()
				μ.Lock()
				defer μ.Unlock()
				start.Done()
				for gen == 0 {
					c.Wait(bg, &μ)
				}
			}()
		}
		start.Wait()

		μ.Lock()
		gen++
		c.Broadcast()
		μ.Unlock()
		stop.Wait()
	})
}
