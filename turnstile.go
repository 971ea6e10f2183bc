package rendezvous

import "github.com/creachadair/mds/mapset"

// A turnstile issues numbered tickets to the goroutines contending for one
// role, and admits them in ticket order. The zero value is ready for use.
type turnstile struct {
	next    uint64             // the next ticket to issue
	serving uint64             // the ticket whose holder may be admitted
	gone    mapset.Set[uint64] // tickets abandoned before their turn
}

// take issues a new ticket.
func (ts *turnstile) take() uint64 {
	t := ts.next
	ts.next++
	return t
}

// isTurn reports whether ticket t is the one being served.
func (ts *turnstile) isTurn(t uint64) bool { return t == ts.serving }

// advance moves service past the current ticket, skipping any tickets that
// have been abandoned.
func (ts *turnstile) advance() {
	ts.serving++
	for ts.gone.Has(ts.serving) {
		ts.gone.Remove(ts.serving)
		ts.serving++
	}
}

// abandon gives up ticket t. It reports whether the ticket being served
// changed as a result, in which case the waiters should be woken.
func (ts *turnstile) abandon(t uint64) bool {
	if t == ts.serving {
		ts.advance()
		return true
	}
	if ts.gone == nil {
		ts.gone = mapset.New[uint64]()
	}
	ts.gone.Add(t)
	return false
}
