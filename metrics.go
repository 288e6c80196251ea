package fold

import "time"

// Skip reasons reported to MetricsProvider.OnUpdateSkipped and attached to
// UpdateSkipped signals.
const (
	// SkipDuplicateBatch means the update carried the same batch
	// generation as the last processed update.
	SkipDuplicateBatch = "duplicate-batch"

	// SkipNoRelevantMessages means a non-empty batch filtered down to zero
	// messages for the consumer's topics.
	SkipNoRelevantMessages = "no-relevant-messages"
)

// MetricsProvider allows integration with metrics systems like Prometheus, StatsD, etc.
// Implement this interface to receive callbacks on key accumulator events.
type MetricsProvider interface {
	// OnUpdateAccepted is called when a pipeline update produced a new
	// reduced value. Messages is the relevant message count after
	// filtering.
	OnUpdateAccepted(messages int)

	// OnUpdateSkipped is called when a pipeline update bailed out.
	// Reason is SkipDuplicateBatch or SkipNoRelevantMessages.
	OnUpdateSkipped(reason string)

	// OnReduce is called after reducer functions ran for an update.
	// Duration is the time taken to fold the filtered batch.
	OnReduce(duration time.Duration)

	// OnSubscriptionsReplaced is called when the subscription list is
	// re-registered with the pipeline.
	OnSubscriptionsReplaced(count int)

	// OnBackfillRequested is called when a subscription change triggers
	// a backfill request.
	OnBackfillRequested()
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Use this as an embedded type to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnUpdateAccepted(_ int)            {}
func (NoOpMetricsProvider) OnUpdateSkipped(_ string)          {}
func (NoOpMetricsProvider) OnReduce(_ time.Duration)          {}
func (NoOpMetricsProvider) OnSubscriptionsReplaced(_ int)     {}
func (NoOpMetricsProvider) OnBackfillRequested()              {}
