package fold

import "github.com/zoobzio/capitan"

// Field keys for Accumulator events.
var (
	// KeyConsumerID is the stable per-instance consumer identifier.
	KeyConsumerID = capitan.NewStringKey("consumer_id")

	// KeyTopic is the topic of a subscription or message.
	KeyTopic = capitan.NewStringKey("topic")

	// KeySubscriptionCount is the size of a replaced subscription list.
	KeySubscriptionCount = capitan.NewIntKey("subscription_count")

	// KeyMessageCount is the number of relevant messages in an accepted
	// update.
	KeyMessageCount = capitan.NewIntKey("message_count")

	// KeyGeneration is the reduced-value generation after an update.
	KeyGeneration = capitan.NewIntKey("generation")

	// KeySeekTime is the seek epoch that triggered a state reset.
	KeySeekTime = capitan.NewIntKey("seek_time")

	// KeyReason is why an update was skipped.
	KeyReason = capitan.NewStringKey("reason")

	// KeyError is the error message when a record is rejected.
	KeyError = capitan.NewStringKey("error")

	// KeySwapCount is the number of reducer swaps inside the stability
	// window when the unstable warning fires.
	KeySwapCount = capitan.NewIntKey("swap_count")

	// KeyWindow is the stability window duration.
	KeyWindow = capitan.NewDurationKey("window")
)
