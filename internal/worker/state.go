package worker

// State is the single process-wide worker lifecycle value. The worker
// goroutine is the only writer; connection handlers read snapshots when
// answering health queries.
type State int32

const (
	// StateUninitialized holds only between construction and Start.
	StateUninitialized State = iota
	// StateLoading means engine initialization is in progress. Requests
	// submitted now are queued, not rejected.
	StateLoading
	// StateReady means the engine is idle and the queue is being drained.
	StateReady
	// StateBusy means one request currently holds the engine.
	StateBusy
	// StateDraining means the stop sentinel has been consumed; terminal.
	StateDraining
	// StateStopped means the worker goroutine has exited; terminal.
	StateStopped
	// StateFailed means engine initialization failed; every request is
	// answered with a model-unavailable failure. Terminal for serving.
	StateFailed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
