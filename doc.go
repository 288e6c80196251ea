// Package fold bridges a push-based, seekable message pipeline to
// pull-based consumers that hold accumulated, reducer-defined state.
//
// The core type is Accumulator, which manages one subscription set against
// a Pipeline, folds delivered message batches into a value of type T
// through consumer-supplied reducer functions, and exposes that value with
// an explicit generation counter so callers can detect real change without
// recomputation.
//
// # Accumulator
//
// An Accumulator processes each pipeline update through a fixed sequence:
//
//	Select (filter + bail-out) → Seek reset / reducer migration → Fold → Expose
//
// Selection is idempotent and cheap: redundant notifications (same batch
// generation) and batches with no relevant messages bail out without
// touching the reduced value, so the pipeline may notify as often as it
// likes.
//
// # Reducers
//
// Exactly one reducer shape is active per Accumulator for its lifetime:
//
//   - AddMessage folds one message at a time, in arrival order
//   - AddMessages folds a whole non-empty batch at once
//   - AddBobjects folds a whole non-empty batch of binary-object messages
//
// Restore produces the baseline value: from nothing at construction and
// after a seek, or from the previous value when the consumer swaps its
// reducer functions mid-stream.
//
// # Subscriptions
//
// The Accumulator derives a full replacement subscription list from its
// topic requests and registers it under a stable consumer identifier.
// Whenever the list changes by value, it is re-registered wholesale and a
// single backfill is requested. Close retracts the consumer with one
// empty-list registration.
//
// # Pipeline
//
// The Pipeline interface abstracts the player that owns buffering,
// seeking, and backfill. The package provides MemoryPipeline for testing
// and in-process use; the replay subpackage plays recorded message logs
// through one.
//
// # Example
//
//	type Counts map[string]int
//
//	acc, err := fold.New[Counts](pipeline, fold.Config[Counts]{
//	    Topics:  []fold.TopicRequest{{Topic: "/gps/fix"}},
//	    Restore: func(prev *Counts) Counts { return Counts{} },
//	    AddMessage: func(c Counts, m fold.Message) Counts {
//	        c[m.Topic]++
//	        return c
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := acc.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer acc.Close()
package fold
