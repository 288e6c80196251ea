package fold

// State represents the lifecycle state of an Accumulator.
type State int32

const (
	// StateCreated indicates the Accumulator has been constructed but is
	// not yet watching the pipeline. The reduced value is the seeded
	// Restore(nil) baseline.
	StateCreated State = iota

	// StateRunning indicates the Accumulator is registered with the
	// pipeline and processing updates.
	StateRunning

	// StateClosed indicates the Accumulator has retracted its
	// subscriptions. No reducer runs after this point.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
