package fold

import (
	"context"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/zoobzio/capitan"
)

// validate is the shared validator instance.
var validate = validator.New()

// watchBuffer is the per-watcher notification buffer. A watcher that falls
// this far behind starts losing intermediate states; selection is
// idempotent, so only the latest state matters.
const watchBuffer = 64

// MemoryPipeline is an in-process Pipeline for tests, examples, and the
// replay package. It keeps a per-consumer subscription table with
// last-writer-wins whole-list replacement, retains the latest message per
// topic for backfill, and fans each delivered state out to every watcher.
//
// The production player that owns real buffering and seeking is a separate
// subsystem; MemoryPipeline only honors the Pipeline contract.
type MemoryPipeline struct {
	mu             sync.Mutex
	subs           map[string][]Subscription
	latestParsed   map[string]Message
	latestBobjects map[string]Message
	messages       []Message
	bobjects       []Message
	seekTime       int64
	generation     uint64
	watchers       []chan PlayerState
}

// NewMemoryPipeline creates an empty MemoryPipeline with no session loaded.
func NewMemoryPipeline() *MemoryPipeline {
	return &MemoryPipeline{
		subs:           make(map[string][]Subscription),
		latestParsed:   make(map[string]Message),
		latestBobjects: make(map[string]Message),
	}
}

// SetSubscriptions replaces the full subscription set for consumerID.
// Invalid records are dropped with a SubscriptionRejected signal; an empty
// or nil list retracts the consumer.
func (p *MemoryPipeline) SetSubscriptions(consumerID string, subs []Subscription) {
	valid := make([]Subscription, 0, len(subs))
	for _, sub := range subs {
		if err := validate.Struct(sub); err != nil {
			capitan.Emit(context.Background(), SubscriptionRejected,
				KeyConsumerID.Field(consumerID),
				KeyTopic.Field(sub.Topic),
				KeyError.Field(err.Error()),
			)
			continue
		}
		valid = append(valid, sub)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(valid) == 0 {
		delete(p.subs, consumerID)
		return
	}
	p.subs[consumerID] = valid
}

// SubscriptionsFor returns a copy of the active subscription list for
// consumerID, or nil if the consumer is retracted.
func (p *MemoryPipeline) SubscriptionsFor(consumerID string) []Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	subs, ok := p.subs[consumerID]
	if !ok {
		return nil
	}
	out := make([]Subscription, len(subs))
	copy(out, subs)
	return out
}

// RequestBackfill redelivers the retained latest message per subscribed
// topic as a fresh batch with a new generation. If nothing relevant is
// retained, no state is delivered.
func (p *MemoryPipeline) RequestBackfill() {
	p.mu.Lock()
	defer p.mu.Unlock()

	parsedTopics := make(map[string]struct{})
	bobjectTopics := make(map[string]struct{})
	for _, subs := range p.subs {
		for _, sub := range subs {
			if sub.Format == FormatBobjects {
				bobjectTopics[sub.Topic] = struct{}{}
			} else {
				parsedTopics[sub.Topic] = struct{}{}
			}
		}
	}

	parsed := retainedBatch(p.latestParsed, parsedTopics)
	bobjects := retainedBatch(p.latestBobjects, bobjectTopics)
	if len(parsed) == 0 && len(bobjects) == 0 {
		return
	}

	p.messages = parsed
	p.bobjects = bobjects
	p.generation++
	p.notifyLocked()
}

// Watch registers a new watcher and returns its state channel. The channel
// is closed when the context is canceled.
func (p *MemoryPipeline) Watch(ctx context.Context) (<-chan PlayerState, error) {
	ch := make(chan PlayerState, watchBuffer)

	p.mu.Lock()
	p.watchers = append(p.watchers, ch)
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		for i, w := range p.watchers {
			if w == ch {
				p.watchers = append(p.watchers[:i], p.watchers[i+1:]...)
				break
			}
		}
		close(ch)
		p.mu.Unlock()
	}()

	return ch, nil
}

// Publish delivers a parsed-form batch to all watchers and retains each
// message as the latest for its topic.
func (p *MemoryPipeline) Publish(msgs ...Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.messages = msgs
	p.bobjects = nil
	p.generation++
	for _, m := range msgs {
		p.latestParsed[m.Topic] = m
	}
	p.notifyLocked()
}

// PublishBobjects delivers a binary-object-form batch to all watchers and
// retains each message as the latest for its topic.
func (p *MemoryPipeline) PublishBobjects(msgs ...Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.bobjects = msgs
	p.messages = nil
	p.generation++
	for _, m := range msgs {
		p.latestBobjects[m.Topic] = m
	}
	p.notifyLocked()
}

// SeekTo changes the seek epoch and delivers an empty batch, signaling that
// accumulated historical state is stale.
func (p *MemoryPipeline) SeekTo(epoch int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seekTime = epoch
	p.messages = nil
	p.bobjects = nil
	p.generation++
	p.notifyLocked()
}

// notifyLocked fans the current state out to all watchers without
// blocking; a full watcher loses this intermediate state. Sending and
// channel close both happen under p.mu, so a closed watcher channel is
// never written to. The caller must hold p.mu.
func (p *MemoryPipeline) notifyLocked() {
	state := PlayerState{
		Active: &ActiveData{
			Messages:     p.messages,
			Bobjects:     p.bobjects,
			LastSeekTime: p.seekTime,
			Generation:   p.generation,
		},
	}
	for _, ch := range p.watchers {
		select {
		case ch <- state:
		default:
		}
	}
}

// retainedBatch assembles the latest retained message for each requested
// topic, ordered by receive time then topic for determinism.
func retainedBatch(latest map[string]Message, topics map[string]struct{}) []Message {
	if len(topics) == 0 {
		return nil
	}
	out := make([]Message, 0, len(topics))
	for topic := range topics {
		if m, ok := latest[topic]; ok {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReceiveTime.Equal(out[j].ReceiveTime) {
			return out[i].ReceiveTime.Before(out[j].ReceiveTime)
		}
		return out[i].Topic < out[j].Topic
	})
	return out
}
