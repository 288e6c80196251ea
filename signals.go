package fold

import "github.com/zoobzio/capitan"

// Accumulator lifecycle signals.
var (
	// AccumulatorStarted is emitted when an Accumulator begins watching
	// the pipeline.
	AccumulatorStarted = capitan.NewSignal(
		"fold.accumulator.started",
		"Accumulator watching started",
	)

	// AccumulatorClosed is emitted when an Accumulator retracts its
	// subscriptions and stops.
	AccumulatorClosed = capitan.NewSignal(
		"fold.accumulator.closed",
		"Accumulator closed, subscriptions retracted",
	)
)

// Update processing signals.
var (
	// UpdateAccepted is emitted when a pipeline update produced a new
	// reduced value.
	UpdateAccepted = capitan.NewSignal(
		"fold.update.accepted",
		"Pipeline update reduced into state",
	)

	// UpdateSkipped is emitted when a pipeline update bailed out without
	// touching the reduced value.
	UpdateSkipped = capitan.NewSignal(
		"fold.update.skipped",
		"Pipeline update bailed out",
	)

	// SeekReset is emitted when a seek-epoch change discards accumulated
	// state.
	SeekReset = capitan.NewSignal(
		"fold.seek.reset",
		"Accumulated state discarded after seek",
	)
)

// Subscription management signals.
var (
	// SubscriptionsReplaced is emitted when a consumer's full subscription
	// list is re-registered with the pipeline.
	SubscriptionsReplaced = capitan.NewSignal(
		"fold.subscriptions.replaced",
		"Subscription list replaced",
	)

	// BackfillRequested is emitted when a subscription change triggers a
	// backfill request.
	BackfillRequested = capitan.NewSignal(
		"fold.backfill.requested",
		"Backfill requested from pipeline",
	)

	// SubscriptionRejected is emitted when the memory pipeline drops an
	// invalid subscription record.
	SubscriptionRejected = capitan.NewSignal(
		"fold.subscription.rejected",
		"Invalid subscription dropped",
	)
)

// Reducer diagnostics signals.
var (
	// ReducersSwapped is emitted when a consumer replaces its reducer
	// functions; accumulated state is migrated through Restore(prev).
	ReducersSwapped = capitan.NewSignal(
		"fold.reducers.swapped",
		"Reducer functions replaced",
	)

	// ReducersUnstable is a warning emitted when reducer functions change
	// so often that the consumer is likely recreating them on every poll.
	ReducersUnstable = capitan.NewSignal(
		"fold.reducers.unstable",
		"Reducer functions changing too frequently",
	)
)
