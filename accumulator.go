package fold

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// Configuration errors returned by New and SetConfig.
var (
	// ErrNoReducer indicates none of AddMessage, AddMessages, AddBobjects
	// was supplied.
	ErrNoReducer = errors.New("exactly one of AddMessage, AddMessages, AddBobjects must be set: got none")

	// ErrMultipleReducers indicates more than one reducer shape was
	// supplied.
	ErrMultipleReducers = errors.New("exactly one of AddMessage, AddMessages, AddBobjects must be set: got multiple")

	// ErrNoRestore indicates the required Restore function is missing.
	ErrNoRestore = errors.New("Restore is required")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("accumulator already started")

	// ErrClosed is returned when Start is called after Close.
	ErrClosed = errors.New("accumulator closed")
)

// Config declares what an Accumulator consumes and how it folds messages
// into state. Exactly one of AddMessage, AddMessages, AddBobjects must be
// set; supplying zero or several is a construction error.
type Config[T any] struct {
	// Topics lists the topic requests this consumer wants delivered.
	Topics []TopicRequest

	// Restore produces a fresh T. It receives nil on first seeding and
	// after a seek, or the previous value when reducer functions change,
	// allowing new reducers to reinterpret accumulated state.
	Restore func(prev *T) T

	// AddMessage folds a single message into T, in arrival order.
	AddMessage func(T, Message) T

	// AddMessages folds a whole non-empty batch into T at once.
	AddMessages func(T, []Message) T

	// AddBobjects folds a whole non-empty batch of binary-object-form
	// messages into T at once.
	AddBobjects func(T, []Message) T

	// PreloadingFallback marks this consumer as willing to be excluded
	// from live delivery when every consumer of a topic is
	// preloading-only. Passed through to the pipeline as a hint.
	PreloadingFallback bool

	// Requester optionally identifies the hosting consumer; it is
	// attached to every subscription this Accumulator derives.
	Requester *Requester
}

// format returns the delivery format implied by the configured reducer.
func (c Config[T]) format() Format {
	if c.AddBobjects != nil {
		return FormatBobjects
	}
	return FormatParsedMessages
}

// validate enforces the exactly-one-reducer rule.
func (c Config[T]) validate() error {
	if c.Restore == nil {
		return ErrNoRestore
	}
	n := 0
	if c.AddMessage != nil {
		n++
	}
	if c.AddMessages != nil {
		n++
	}
	if c.AddBobjects != nil {
		n++
	}
	switch {
	case n == 0:
		return ErrNoReducer
	case n > 1:
		return ErrMultipleReducers
	}
	return nil
}

// reducerIdentity captures the function pointers of a config's reducers so
// swaps can be detected deterministically rather than by incidental object
// identity.
type reducerIdentity struct {
	restore     uintptr
	addMessage  uintptr
	addMessages uintptr
	addBobjects uintptr
}

func (c Config[T]) identity() reducerIdentity {
	return reducerIdentity{
		restore:     fnptr(c.Restore),
		addMessage:  fnptr(c.AddMessage),
		addMessages: fnptr(c.AddMessages),
		addBobjects: fnptr(c.AddBobjects),
	}
}

func fnptr(fn any) uintptr {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return 0
	}
	return v.Pointer()
}

// Accumulator owns one reduced value of type T, evolves it through the
// configured reducer functions fed by a subscription it manages against a
// Pipeline, and exposes the value with an explicit generation counter.
//
// Value() and Generation() may be read repeatedly and cheaply; Generation
// changes only when new input (a new seek epoch or new relevant messages)
// was actually processed, so a consumer observing an unchanged generation
// between two reads is guaranteed it missed nothing.
type Accumulator[T any] struct {
	pipeline      Pipeline
	id            string
	clock         clockz.Clock
	syncMode      bool
	metrics       MetricsProvider
	swapThreshold int

	state atomic.Int32

	mu           sync.Mutex
	cfg          Config[T]
	identity     reducerIdentity
	topicSet     map[string]struct{}
	subs         []Subscription
	value        T
	generation   uint64
	lastSeekTime int64
	lastBatchGen uint64
	seenUpdate   bool
	migrate      bool
	started      bool
	closed       bool
	swaps        *swapRing
	swapWindow   time.Duration
	unstable     bool

	// For sync mode: channel to receive updates
	updates <-chan PlayerState
}

// New creates an Accumulator for the given pipeline and configuration.
//
// The reduced value is seeded immediately with Restore(nil). A stable
// consumer identifier is generated once here and used for every
// subscription registration for the life of the instance.
//
// Supplying zero or more than one of AddMessage, AddMessages, AddBobjects
// is a fatal configuration error, reported here and never deferred to the
// first message.
//
// Example:
//
//	acc, err := fold.New[[]string](pipeline, fold.Config[[]string]{
//	    Topics:  []fold.TopicRequest{{Topic: "/camera/info"}},
//	    Restore: func(prev *[]string) []string { return nil },
//	    AddMessage: func(v []string, m fold.Message) []string {
//	        return append(v, m.Topic)
//	    },
//	})
func New[T any](pipeline Pipeline, cfg Config[T], opts ...Option) (*Accumulator[T], error) {
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := &options{
		clock:         clockz.RealClock,
		swapThreshold: DefaultSwapThreshold,
		swapWindow:    DefaultSwapWindow,
	}
	for _, opt := range opts {
		opt(o)
	}

	a := &Accumulator[T]{
		pipeline:      pipeline,
		id:            uuid.NewString(),
		clock:         o.clock,
		syncMode:      o.syncMode,
		metrics:       o.metrics,
		swapThreshold: o.swapThreshold,
		cfg:           cfg,
		identity:      cfg.identity(),
		topicSet:      topicSet(cfg.Topics),
		subs:          deriveSubscriptions(cfg.Topics, cfg.format(), cfg.PreloadingFallback, cfg.Requester),
		swaps:         newSwapRing(o.swapThreshold),
		swapWindow:    o.swapWindow,
	}
	a.value = cfg.Restore(nil)
	a.state.Store(int32(StateCreated))

	return a, nil
}

func topicSet(topics []TopicRequest) map[string]struct{} {
	set := make(map[string]struct{}, len(topics))
	for _, req := range topics {
		set[req.Topic] = struct{}{}
	}
	return set
}

// ID returns the stable consumer identifier used for subscription
// registration.
func (a *Accumulator[T]) ID() string {
	return a.id
}

// State returns the current lifecycle state of the Accumulator.
func (a *Accumulator[T]) State() State {
	return State(a.state.Load())
}

// Value returns the current reduced value.
func (a *Accumulator[T]) Value() T {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.value
}

// Generation returns the reduced-value generation. It increments exactly
// when Value changes.
func (a *Accumulator[T]) Generation() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generation
}

// Subscriptions returns a copy of the currently derived subscription list.
func (a *Accumulator[T]) Subscriptions() []Subscription {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Subscription, len(a.subs))
	copy(out, a.subs)
	return out
}

// Start registers the derived subscriptions with the pipeline, requests an
// initial backfill, and begins consuming updates.
//
// In sync mode, Start only registers and stores the update channel; use
// Process() to handle updates deterministically.
//
// Start can only be called once. Subsequent calls return an error.
func (a *Accumulator[T]) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	if a.started {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	a.started = true
	a.mu.Unlock()

	updates, err := a.pipeline.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start pipeline watch: %w", err)
	}

	// Registration happens under the lock so it is ordered against any
	// concurrent reconfiguration or Close retraction.
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	subs := a.subs
	a.pipeline.SetSubscriptions(a.id, subs)
	capitan.Emit(ctx, SubscriptionsReplaced,
		KeyConsumerID.Field(a.id),
		KeySubscriptionCount.Field(len(subs)),
	)
	if a.metrics != nil {
		a.metrics.OnSubscriptionsReplaced(len(subs))
	}
	if len(subs) > 0 {
		a.requestBackfill(ctx)
	}
	a.mu.Unlock()

	a.state.Store(int32(StateRunning))
	capitan.Emit(ctx, AccumulatorStarted,
		KeyConsumerID.Field(a.id),
		KeySubscriptionCount.Field(len(subs)),
	)

	if a.syncMode {
		a.updates = updates
		return nil
	}

	go a.watch(ctx, updates)

	return nil
}

// Process handles the next pending pipeline update, if any.
// This is only available in sync mode and is used for deterministic
// testing. Returns false if no update is available or the channel is
// closed.
func (a *Accumulator[T]) Process(ctx context.Context) bool {
	if !a.syncMode {
		return false
	}

	select {
	case st, ok := <-a.updates:
		if !ok {
			return false
		}
		a.apply(ctx, st)
		return true
	default:
		return false
	}
}

// Close retracts this consumer's subscriptions with a single empty-list
// registration. It is idempotent and safe on every exit path; no reducer
// runs after Close returns.
func (a *Accumulator[T]) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.state.Store(int32(StateClosed))
	// Retract under the lock: an in-flight reconfiguration holds the lock
	// through its own registration, so the empty list always lands last.
	a.pipeline.SetSubscriptions(a.id, nil)
	a.mu.Unlock()

	capitan.Emit(context.Background(), AccumulatorClosed,
		KeyConsumerID.Field(a.id),
	)
}

// SetTopics replaces the consumer's topic requests. If the derived
// subscription list changes by value, the full replacement list is
// re-registered and a single backfill is requested.
func (a *Accumulator[T]) SetTopics(ctx context.Context, topics []TopicRequest) {
	a.mu.Lock()
	a.cfg.Topics = topics
	a.topicSet = topicSet(topics)
	a.resubscribeLocked(ctx)
}

// SetConfig replaces the full consumer configuration. The exactly-one
// reducer rule is re-validated; a reducer swap schedules a
// Restore(previous) migration before the next batch is folded.
func (a *Accumulator[T]) SetConfig(ctx context.Context, cfg Config[T]) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	a.mu.Lock()
	if id := cfg.identity(); id != a.identity {
		a.identity = id
		a.migrate = true
		a.recordSwapLocked(ctx)
	}
	a.cfg = cfg
	a.topicSet = topicSet(cfg.Topics)
	a.resubscribeLocked(ctx)
	return nil
}

// resubscribeLocked re-derives the subscription list and, when it changed
// by value, replaces it with the pipeline and requests backfill. The
// pipeline commands run while still holding a.mu, so two reconfigurations
// register in lock order and Close's retraction cannot be overtaken by an
// in-flight registration. The caller must hold a.mu; the lock is released
// here.
func (a *Accumulator[T]) resubscribeLocked(ctx context.Context) {
	defer a.mu.Unlock()

	subs := deriveSubscriptions(a.cfg.Topics, a.cfg.format(), a.cfg.PreloadingFallback, a.cfg.Requester)
	changed := !subscriptionsEqual(a.subs, subs)
	a.subs = subs

	if !changed || !a.started || a.closed {
		return
	}

	a.pipeline.SetSubscriptions(a.id, subs)
	capitan.Emit(ctx, SubscriptionsReplaced,
		KeyConsumerID.Field(a.id),
		KeySubscriptionCount.Field(len(subs)),
	)
	if a.metrics != nil {
		a.metrics.OnSubscriptionsReplaced(len(subs))
	}
	a.requestBackfill(ctx)
}

func (a *Accumulator[T]) requestBackfill(ctx context.Context) {
	a.pipeline.RequestBackfill()
	capitan.Emit(ctx, BackfillRequested,
		KeyConsumerID.Field(a.id),
	)
	if a.metrics != nil {
		a.metrics.OnBackfillRequested()
	}
}

// recordSwapLocked tracks reducer replacements for the stability
// diagnostic. Swapping reducers is legal and state is migrated correctly
// regardless; crossing the threshold inside the window only fires a
// warning signal.
func (a *Accumulator[T]) recordSwapLocked(ctx context.Context) {
	capitan.Emit(ctx, ReducersSwapped,
		KeyConsumerID.Field(a.id),
	)
	now := a.clock.Now()
	if !a.noteSwapLocked(now) {
		return
	}
	capitan.Emit(ctx, ReducersUnstable,
		KeyConsumerID.Field(a.id),
		KeySwapCount.Field(a.swaps.within(now, a.swapWindow)),
		KeyWindow.Field(a.swapWindow),
	)
}

// noteSwapLocked records a swap timestamp and reports whether it opened a
// new instability episode. The warning fires once per episode: it rearms
// only after the windowed swap count falls back below the threshold.
func (a *Accumulator[T]) noteSwapLocked(now time.Time) bool {
	if a.swapThreshold <= 0 {
		return false
	}
	a.swaps.push(now)
	if a.swaps.within(now, a.swapWindow) < a.swapThreshold {
		a.unstable = false
		return false
	}
	fired := !a.unstable
	a.unstable = true
	return fired
}

// watch consumes pipeline updates until the context is canceled or the
// channel closes, then retracts subscriptions.
func (a *Accumulator[T]) watch(ctx context.Context, updates <-chan PlayerState) {
	defer a.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			a.apply(ctx, st)
		}
	}
}

// apply runs selection and reduction for one pipeline update.
//
// Selection bails out when the batch generation matches the last processed
// update, or when a non-empty batch filters down to zero relevant messages
// and this is not the very first selection. Bail-outs leave all
// bookkeeping untouched, so a seek carried by a suppressed update is
// picked up by the next accepted one.
func (a *Accumulator[T]) apply(ctx context.Context, st PlayerState) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}

	gen := st.generation()
	if a.seenUpdate && gen == a.lastBatchGen {
		a.skipLocked(ctx, SkipDuplicateBatch)
		return
	}

	batch := st.BatchFor(a.cfg.format())
	filtered := filterTopics(batch, a.topicSet)
	if a.seenUpdate && len(batch) > 0 && len(filtered) == 0 {
		a.skipLocked(ctx, SkipNoRelevantMessages)
		return
	}

	// Accepted: bookkeeping advances even when the batch is empty, so the
	// first selection seeds correctly and later empty updates still carry
	// seek changes.
	a.seenUpdate = true
	a.lastBatchGen = gen

	changed := false
	if seek := st.SeekTime(); seek != a.lastSeekTime {
		a.lastSeekTime = seek
		a.value = a.cfg.Restore(nil)
		a.migrate = false
		changed = true
		capitan.Emit(ctx, SeekReset,
			KeyConsumerID.Field(a.id),
			KeySeekTime.Field(int(seek)),
		)
	} else if a.migrate {
		prev := a.value
		a.value = a.cfg.Restore(&prev)
		a.migrate = false
		changed = true
	}

	// Zero-length batches never invoke batch reducers.
	if len(filtered) > 0 {
		start := a.clock.Now()
		switch {
		case a.cfg.AddMessage != nil:
			v := a.value
			for _, msg := range filtered {
				v = a.cfg.AddMessage(v, msg)
			}
			a.value = v
		case a.cfg.AddMessages != nil:
			a.value = a.cfg.AddMessages(a.value, filtered)
		case a.cfg.AddBobjects != nil:
			a.value = a.cfg.AddBobjects(a.value, filtered)
		}
		changed = true
		if a.metrics != nil {
			a.metrics.OnReduce(a.clock.Now().Sub(start))
		}
	}

	if !changed {
		return
	}

	a.generation++
	capitan.Emit(ctx, UpdateAccepted,
		KeyConsumerID.Field(a.id),
		KeyMessageCount.Field(len(filtered)),
		KeyGeneration.Field(int(a.generation)),
	)
	if a.metrics != nil {
		a.metrics.OnUpdateAccepted(len(filtered))
	}
}

func (a *Accumulator[T]) skipLocked(ctx context.Context, reason string) {
	capitan.Emit(ctx, UpdateSkipped,
		KeyConsumerID.Field(a.id),
		KeyReason.Field(reason),
	)
	if a.metrics != nil {
		a.metrics.OnUpdateSkipped(reason)
	}
}

// filterTopics returns the messages whose topic the consumer currently
// requests, preserving arrival order.
func filterTopics(batch []Message, topics map[string]struct{}) []Message {
	if len(batch) == 0 {
		return nil
	}
	out := make([]Message, 0, len(batch))
	for _, msg := range batch {
		if _, ok := topics[msg.Topic]; ok {
			out = append(out, msg)
		}
	}
	return out
}
