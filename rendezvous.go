// Package rendezvous implements a synchronous channel on which a speaker and a
// listener meet to exchange a single value.
package rendezvous

import (
	"context"
	"errors"
	"sync"

	"github.com/creachadair/rendezvous/internal/cond"
)

// ErrClosed is the sentinel error reported by a channel that is closed before
// a value could be exchanged.
var ErrClosed = errors.New("channel is closed")

// A Channel is a rendezvous point at which goroutines calling [Channel.Speak]
// hand values to goroutines calling [Channel.Listen], one at a time. Neither
// side proceeds alone: each successful Speak is paired with exactly one
// successful Listen that returns the spoken value.
//
// At most one speaker and one listener are admitted to a round at a time;
// other callers wait their turn. By default, the order in which waiting
// callers are admitted is unspecified. Use [NewFIFO] to admit them in the
// order they arrived.
//
// A zero Channel is ready for use, but must not be copied after first use.
type Channel[T any] struct {
	μ sync.Mutex

	// Wait queues, each bound to μ.
	speakAdmit  cond.Cond // speakers waiting for the sending slot
	listenAdmit cond.Cond // listeners waiting for the receiving slot
	receiving   cond.Cond // the admitted listener, waiting for a speaker
	sending     cond.Cond // the admitted speaker, waiting for its receipt

	speaker  bool // a speaker holds the sending slot
	listener bool // a listener holds the receiving slot
	received bool // the admitted listener has taken payload
	payload  T    // the value being exchanged, valid while speaker is set
	closed   bool

	fifo                bool // admit callers in arrival order
	speakers, listeners turnstile

	stats Stats

	// If set, trace is called with μ held whenever a slot is taken or given
	// back. It is used to instrument tests.
	trace func(role string, held bool)
}

// Stats is a snapshot of the activity on a [Channel].
type Stats struct {
	Rounds    uint64 // completed exchanges
	Aborted   uint64 // calls that gave up because their context ended
	Rejected  uint64 // calls that failed because the channel was closed
	Speakers  int    // goroutines currently in Speak
	Listeners int    // goroutines currently in Listen
	Closed    bool   // whether the channel is closed
}

// New constructs a new idle [Channel]. Waiting speakers and listeners are
// admitted in no particular order.
func New[T any]() *Channel[T] { return new(Channel[T]) }

// NewFIFO constructs a new idle [Channel] that admits waiting speakers and
// listeners in the order they called Speak and Listen. Callers that give up
// before their turn are skipped.
func NewFIFO[T any]() *Channel[T] { return &Channel[T]{fifo: true} }

// Speak blocks until v has been delivered to exactly one listener, and then
// returns nil. If ctx ends or c is closed before a listener has received v,
// Speak reports an error and v is not delivered. If a listener received v,
// Speak reports success even if ctx has ended.
func (c *Channel[T]) Speak(ctx context.Context, v T) error {
	c.μ.Lock()
	defer c.μ.Unlock()
	c.stats.Speakers++
	defer func() { c.stats.Speakers-- }()

	if err := c.admitSpeakerLocked(ctx); err != nil {
		return err
	}
	c.speaker = true
	c.payload = v
	c.traceLocked("speaker", true)

	for !(c.listener && c.received) {
		if c.closed {
			c.stats.Rejected++
			c.releaseSpeakerLocked()
			return ErrClosed
		}
		c.receiving.Signal() // wake a listener that arrived before us
		if err := c.sending.Wait(ctx, &c.μ); err != nil {
			if c.listener && c.received {
				break // delivered anyway
			}
			c.stats.Aborted++
			c.releaseSpeakerLocked()
			return err
		}
	}

	// The listener has the value: End the round and free both slots.
	c.traceLocked("listener", false)
	c.traceLocked("speaker", false)
	c.speaker, c.listener, c.received = false, false, false
	var zero T
	c.payload = zero
	c.stats.Rounds++
	c.wakeLocked(&c.speakAdmit)
	c.wakeLocked(&c.listenAdmit)
	return nil
}

// Listen blocks until a speaker is available, and returns the value it
// spoke. If ctx ends or c is closed before a speaker arrives, Listen returns
// a zero value and an error. Once a speaker has been found, Listen succeeds
// even if ctx has ended.
func (c *Channel[T]) Listen(ctx context.Context) (T, error) {
	var zero T

	c.μ.Lock()
	defer c.μ.Unlock()
	c.stats.Listeners++
	defer func() { c.stats.Listeners-- }()

	if err := c.admitListenerLocked(ctx); err != nil {
		return zero, err
	}
	c.listener = true
	c.traceLocked("listener", true)

	for !c.speaker {
		if c.closed {
			c.stats.Rejected++
			c.releaseListenerLocked()
			return zero, ErrClosed
		}
		if err := c.receiving.Wait(ctx, &c.μ); err != nil {
			if c.speaker {
				break // a speaker arrived as we gave up
			}
			c.stats.Aborted++
			c.releaseListenerLocked()
			return zero, err
		}
	}

	// A speaker holds the sending slot, so payload is current. The speaker
	// clears our slot when it observes the receipt.
	v := c.payload
	c.received = true
	c.sending.Signal()
	return v, nil
}

// Close closes c, causing all pending and future calls to Speak and Listen to
// report [ErrClosed]. A speaker whose value was already received when c is
// closed completes normally. If c is already closed, Close returns ErrClosed.
func (c *Channel[T]) Close() error {
	c.μ.Lock()
	defer c.μ.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	c.speakAdmit.Broadcast()
	c.listenAdmit.Broadcast()
	c.receiving.Broadcast()
	c.sending.Broadcast()
	return nil
}

// Stats returns a snapshot of the current statistics for c.
func (c *Channel[T]) Stats() Stats {
	c.μ.Lock()
	defer c.μ.Unlock()
	s := c.stats
	s.Closed = c.closed
	return s
}

// admitSpeakerLocked blocks until the caller may take the sending slot.
// The caller must hold c.μ.
func (c *Channel[T]) admitSpeakerLocked(ctx context.Context) error {
	return c.admitLocked(ctx, &c.speaker, &c.speakers, &c.speakAdmit)
}

// admitListenerLocked blocks until the caller may take the receiving slot.
// The caller must hold c.μ.
func (c *Channel[T]) admitListenerLocked(ctx context.Context) error {
	return c.admitLocked(ctx, &c.listener, &c.listeners, &c.listenAdmit)
}

// admitLocked waits on q until the slot indicated by *busy is free and, in
// FIFO mode, the caller's ticket from ts is being served. On success the
// caller is responsible for setting *busy. The caller must hold c.μ.
func (c *Channel[T]) admitLocked(ctx context.Context, busy *bool, ts *turnstile, q *cond.Cond) error {
	if c.closed {
		c.stats.Rejected++
		return ErrClosed
	} else if err := ctx.Err(); err != nil {
		c.stats.Aborted++
		return err
	}

	var ticket uint64
	if c.fifo {
		ticket = ts.take()
	}
	for {
		if c.closed {
			c.stats.Rejected++
			c.abandonLocked(ticket, ts, q)
			return ErrClosed
		}
		if !*busy && (!c.fifo || ts.isTurn(ticket)) {
			break
		}
		if err := q.Wait(ctx, &c.μ); err != nil {
			c.stats.Aborted++
			c.abandonLocked(ticket, ts, q)
			return err
		}
	}
	if c.fifo {
		ts.advance()
	}
	return nil
}

// abandonLocked gives up a caller's place in line for admission via q. Since
// the caller may have consumed a wakeup meant for another waiter, the next
// waiter is woken. The caller must hold c.μ.
func (c *Channel[T]) abandonLocked(ticket uint64, ts *turnstile, q *cond.Cond) {
	if c.fifo {
		if ts.abandon(ticket) {
			q.Broadcast()
		}
		return
	}
	q.Signal()
}

// releaseSpeakerLocked gives up the sending slot without completing a round.
// The caller must hold c.μ.
func (c *Channel[T]) releaseSpeakerLocked() {
	c.traceLocked("speaker", false)
	c.speaker = false
	var zero T
	c.payload = zero
	c.wakeLocked(&c.speakAdmit)
}

// releaseListenerLocked gives up the receiving slot before a speaker has
// arrived. The caller must hold c.μ.
func (c *Channel[T]) releaseListenerLocked() {
	c.traceLocked("listener", false)
	c.listener = false
	c.wakeLocked(&c.listenAdmit)
}

// wakeLocked wakes the waiters on admission queue q after a slot is freed.
// In FIFO mode every waiter must recheck its ticket, so all are woken.
func (c *Channel[T]) wakeLocked(q *cond.Cond) {
	if c.fifo {
		q.Broadcast()
	} else {
		q.Signal()
	}
}

func (c *Channel[T]) traceLocked(role string, held bool) {
	if c.trace != nil {
		c.trace(role, held)
	}
}
