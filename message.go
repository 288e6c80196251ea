package fold

import "time"

// Format selects which representation of a topic's messages a consumer
// receives from the pipeline.
type Format string

const (
	// FormatParsedMessages delivers fully parsed message payloads.
	FormatParsedMessages Format = "parsedMessages"

	// FormatBobjects delivers pre-decoded binary-object payloads, an
	// alternative to the parsed form chosen for performance.
	FormatBobjects Format = "bobjects"
)

// Message is a single time-stamped, topic-tagged record delivered by the
// pipeline. Batches are ordered slices of Message, delivered atomically per
// pipeline update. The binary-object form uses the same record shape; which
// form a batch is in is determined by the ActiveData channel it arrived on.
type Message struct {
	Topic       string
	ReceiveTime time.Time
	Data        any
}

// TopicRequest names a topic a consumer wants delivered. A non-zero Scale
// marks a compressed-image decimation request; identity is the topic string
// and scale is incidental metadata.
type TopicRequest struct {
	Topic string
	Scale float64
}

// Requester identifies the consumer on whose behalf subscriptions are made.
// It is attached uniformly to every subscription an Accumulator derives.
type Requester struct {
	Type string
	Name string
}
