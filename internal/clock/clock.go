// Package clock implements the node's Lamport logical clock: a single
// monotonic counter advanced on send, on receipt of a peer's
// timestamp, and (during recovery) raised to reflect persisted
// history without inflating it.
package clock

import "sync/atomic"

// Clock is a lock-free Lamport counter. All operations retry under a
// compare-and-swap loop rather than blocking; wrap-around of the
// underlying uint64 is not handled; it is treated as unbounded for the
// process lifetime.
type Clock struct {
	counter uint64
}

// New returns a Clock starting at 0.
func New() *Clock {
	return &Clock{}
}

// TickSend atomically increments the counter and returns the new
// value. Every TickSend result is strictly greater than any prior
// TickSend/TickRecv result on this node.
func (c *Clock) TickSend() uint64 {
	for {
		old := atomic.LoadUint64(&c.counter)
		next := old + 1
		if atomic.CompareAndSwapUint64(&c.counter, old, next) {
			return next
		}
	}
}

// TickRecv atomically sets counter to max(counter, tsIn)+1 and
// returns it. The result is strictly greater than both the prior
// clock value and tsIn.
func (c *Clock) TickRecv(tsIn uint64) uint64 {
	for {
		old := atomic.LoadUint64(&c.counter)
		base := old
		if tsIn > base {
			base = tsIn
		}
		next := base + 1
		if atomic.CompareAndSwapUint64(&c.counter, old, next) {
			return next
		}
	}
}

// TickObserve atomically raises the counter to at least tsIn, without
// incrementing. Used by recovery replay so the clock reflects
// persisted history without inflating it.
func (c *Clock) TickObserve(tsIn uint64) {
	for {
		old := atomic.LoadUint64(&c.counter)
		if tsIn <= old {
			return
		}
		if atomic.CompareAndSwapUint64(&c.counter, old, tsIn) {
			return
		}
	}
}

// Now reads the counter without mutation. Diagnostics only.
func (c *Clock) Now() uint64 {
	return atomic.LoadUint64(&c.counter)
}
