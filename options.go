package fold

import (
	"time"

	"github.com/zoobzio/clockz"
)

// DefaultSwapThreshold is the number of reducer swaps inside the stability
// window that triggers the ReducersUnstable warning.
const DefaultSwapThreshold = 4

// DefaultSwapWindow is the default stability window for reducer-swap
// detection.
const DefaultSwapWindow = 10 * time.Second

// options holds instance configuration for an Accumulator.
type options struct {
	syncMode      bool
	clock         clockz.Clock
	metrics       MetricsProvider
	swapThreshold int
	swapWindow    time.Duration
}

// Option configures an Accumulator.
type Option func(*options)

// WithSyncMode enables synchronous processing for testing.
// In sync mode, pipeline updates are not consumed by a background
// goroutine; call Process() to handle them deterministically.
func WithSyncMode() Option {
	return func(o *options) {
		o.syncMode = true
	}
}

// WithClock sets a custom clock for time operations.
// Use this with clockz.FakeClock for deterministic stability-window testing.
func WithClock(clock clockz.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithMetrics sets a metrics provider receiving accumulator callbacks.
func WithMetrics(m MetricsProvider) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithStabilityWindow tunes the reducer-swap warning: the ReducersUnstable
// signal fires when reducer functions are replaced threshold times inside
// window. A threshold of 0 disables the diagnostic.
func WithStabilityWindow(threshold int, window time.Duration) Option {
	return func(o *options) {
		o.swapThreshold = threshold
		o.swapWindow = window
	}
}
