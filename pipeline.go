package fold

import "context"

// ActiveData is the pipeline-pushed view of the current playback session.
type ActiveData struct {
	// Messages is the current batch in parsed form.
	Messages []Message

	// Bobjects is the current batch in binary-object form.
	Bobjects []Message

	// LastSeekTime is the current seek epoch. Accumulated state derived
	// before a different epoch is stale and must be rebuilt from empty.
	LastSeekTime int64

	// Generation increments once per distinct delivered batch. Consumers
	// use it to recognize redundant notifications and bail out without
	// re-reducing.
	Generation uint64
}

// PlayerState is one pipeline update. Active is nil when no session is
// loaded; consumers observe that as an empty batch and a zero seek epoch,
// never as an error.
type PlayerState struct {
	Active *ActiveData
}

// BatchFor returns the current batch in the requested format, or nil when
// no session is loaded.
func (s PlayerState) BatchFor(f Format) []Message {
	if s.Active == nil {
		return nil
	}
	if f == FormatBobjects {
		return s.Active.Bobjects
	}
	return s.Active.Messages
}

// SeekTime returns the current seek epoch, or 0 when no session is loaded.
func (s PlayerState) SeekTime() int64 {
	if s.Active == nil {
		return 0
	}
	return s.Active.LastSeekTime
}

// generation returns the batch generation, or 0 when no session is loaded.
func (s PlayerState) generation() uint64 {
	if s.Active == nil {
		return 0
	}
	return s.Active.Generation
}

// Pipeline is the external collaborator that owns message buffering,
// seeking, and backfill. The Accumulator only issues commands against it
// and consumes its pushed state; the pipeline's internal state machine is
// a separate subsystem.
type Pipeline interface {
	// SetSubscriptions replaces the full set of active subscriptions for
	// consumerID. Registration is last-writer-wins per consumer and the
	// list must become visible atomically, never merged incrementally.
	// A nil or empty list retracts the consumer entirely.
	SetSubscriptions(consumerID string, subs []Subscription)

	// RequestBackfill asks the pipeline to redeliver the latest relevant
	// historical data for all currently active subscriptions, so that
	// paused or just-seeked playback supplies new subscriptions
	// immediately rather than waiting for the next live tick.
	RequestBackfill()

	// Watch begins observing pipeline updates and returns a channel that
	// emits the current PlayerState on every delivery. The channel is
	// closed when the context is canceled. Notifications may be
	// redundant; consumers must select idempotently.
	Watch(ctx context.Context) (<-chan PlayerState, error)
}
