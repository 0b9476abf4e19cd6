package transcribe

import "context"

// Availability reports what the engine could do right now.
type Availability int

const (
	// AvailabilityLoading means the engine has not finished its warm-up run.
	AvailabilityLoading Availability = iota
	// AvailabilityReady means the engine is idle and can accept a file.
	AvailabilityReady
	// AvailabilityBusy means a transcription is in progress.
	AvailabilityBusy
)

// String returns the lowercase availability name.
func (a Availability) String() string {
	switch a {
	case AvailabilityReady:
		return "ready"
	case AvailabilityBusy:
		return "busy"
	default:
		return "loading"
	}
}

// Adapter is the capability surface of the transcription engine.
//
// Initialize performs the slow one-time model load. Run transcribes one
// audio file and returns the plain transcript text. Both calls block and
// may take minutes; callers own the decision to run them off the
// connection-handling goroutines.
type Adapter interface {
	Initialize(ctx context.Context) error
	Run(ctx context.Context, path string) (string, error)
	Status() Availability
}
