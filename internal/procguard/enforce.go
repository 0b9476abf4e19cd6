package procguard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"pinktranscriber/internal/logging"
)

// ErrSingletonConflict reports a competing process that could not be
// terminated. The daemon must not bind the endpoint when this is returned.
var ErrSingletonConflict = errors.New("competing daemon could not be terminated")

// Termination policies.
const (
	// PolicyGraceful sends SIGTERM, waits up to the grace period, then
	// SIGKILLs stragglers.
	PolicyGraceful = "graceful"
	// PolicyImmediate SIGKILLs without warning.
	PolicyImmediate = "immediate"
)

const alivePollInterval = 50 * time.Millisecond

// Options configures the startup sweep.
type Options struct {
	Markers []string
	Policy  string
	Grace   time.Duration
	Logger  *slog.Logger
}

// Enforce clears every competing daemon tree so exactly one candidate is
// free to bind the transport endpoint. Process termination is
// irreversible; callers run this once, before bind.
func Enforce(ctx context.Context, opts Options) error {
	logger := logging.NewComponentLogger(opts.Logger, "procguard")

	snapshot, err := Snapshot()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSingletonConflict, err)
	}
	doomed := Plan(snapshot, opts.Markers, os.Getpid())
	if len(doomed) == 0 {
		logger.Debug("no competing daemons found")
		return nil
	}

	logger.Info("terminating competing daemons",
		logging.Int("process_count", len(doomed)),
		logging.String("policy", opts.Policy),
		logging.String(logging.FieldEventType, "singleton_sweep"),
	)

	graceful := opts.Policy != PolicyImmediate
	for _, pid := range doomed {
		if err := signalProcess(pid, graceful); err != nil {
			return fmt.Errorf("%w: signal pid %d: %v", ErrSingletonConflict, pid, err)
		}
	}

	if graceful {
		if waitForExit(ctx, doomed, opts.Grace) {
			return nil
		}
		// Stragglers get the forced kill.
		for _, pid := range doomed {
			if !processAlive(pid) {
				continue
			}
			logger.Warn("competitor ignored terminate signal, forcing",
				logging.Int("pid", pid),
				logging.String(logging.FieldEventType, "singleton_force_kill"),
				logging.String(logging.FieldErrorHint, "a previous daemon was hung; its in-flight work is lost"),
			)
			if err := signalProcess(pid, false); err != nil {
				return fmt.Errorf("%w: kill pid %d: %v", ErrSingletonConflict, pid, err)
			}
		}
	}

	if !waitForExit(ctx, doomed, opts.Grace) {
		return fmt.Errorf("%w: processes still alive after forced kill", ErrSingletonConflict)
	}
	return nil
}

// waitForExit polls until every doomed pid is gone or the bound elapses.
func waitForExit(ctx context.Context, pids []int, bound time.Duration) bool {
	deadline := time.Now().Add(bound)
	for {
		alive := false
		for _, pid := range pids {
			if processAlive(pid) {
				alive = true
				break
			}
		}
		if !alive {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(alivePollInterval):
		}
	}
}
