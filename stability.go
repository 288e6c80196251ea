package fold

import "time"

// swapRing is a fixed-size ring buffer of reducer-swap timestamps, used to
// detect consumers that recreate their reducer functions on every poll.
// Access is guarded by the owning Accumulator's mutex.
type swapRing struct {
	times []time.Time
	head  int
	count int
}

// newSwapRing creates a swap ring with the given capacity.
// If size is 0, the ring is disabled.
func newSwapRing(size int) *swapRing {
	if size <= 0 {
		return nil
	}
	return &swapRing{
		times: make([]time.Time, size),
	}
}

// push records a swap timestamp.
func (r *swapRing) push(t time.Time) {
	if r == nil {
		return
	}
	r.times[r.head] = t
	r.head = (r.head + 1) % len(r.times)
	if r.count < len(r.times) {
		r.count++
	}
}

// within returns how many recorded swaps happened inside the window ending
// at now.
func (r *swapRing) within(now time.Time, window time.Duration) int {
	if r == nil {
		return 0
	}
	n := 0
	start := (r.head - r.count + len(r.times)) % len(r.times)
	for i := 0; i < r.count; i++ {
		t := r.times[(start+i)%len(r.times)]
		if now.Sub(t) <= window {
			n++
		}
	}
	return n
}
