package fold

// ImageEncoding is the encoding tag attached to scaled compressed-image
// subscriptions.
const ImageEncoding = "image/compressed"

// Subscription is the value-type record registered with the pipeline for a
// single topic. A consumer's subscriptions are always replaced wholesale,
// never merged incrementally; merging across consumers is the pipeline's job.
type Subscription struct {
	Topic              string `validate:"required"`
	Requester          *Requester
	Format             Format `validate:"oneof=parsedMessages bobjects"`
	PreloadingFallback bool
	Encoding           string
	Scale              float64 `validate:"gte=0"`
}

// equal compares two subscriptions by value, including the requester.
func (s Subscription) equal(o Subscription) bool {
	if s.Topic != o.Topic ||
		s.Format != o.Format ||
		s.PreloadingFallback != o.PreloadingFallback ||
		s.Encoding != o.Encoding ||
		s.Scale != o.Scale {
		return false
	}
	if (s.Requester == nil) != (o.Requester == nil) {
		return false
	}
	return s.Requester == nil || *s.Requester == *o.Requester
}

// deriveSubscriptions builds the full replacement subscription list for a
// consumer's current topic requests. Scaled requests additionally carry the
// compressed-image encoding tag and the requested scale.
func deriveSubscriptions(topics []TopicRequest, format Format, preloading bool, requester *Requester) []Subscription {
	subs := make([]Subscription, 0, len(topics))
	for _, req := range topics {
		sub := Subscription{
			Topic:              req.Topic,
			Requester:          requester,
			Format:             format,
			PreloadingFallback: preloading,
		}
		if req.Scale > 0 {
			sub.Encoding = ImageEncoding
			sub.Scale = req.Scale
		}
		subs = append(subs, sub)
	}
	return subs
}

// subscriptionsEqual reports whether two subscription lists are equal by
// value and order. Backfill is only requested when this returns false.
func subscriptionsEqual(a, b []Subscription) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].equal(b[i]) {
			return false
		}
	}
	return true
}
