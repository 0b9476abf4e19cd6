package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"pinktranscriber/internal/config"
	"pinktranscriber/internal/journal"
	"pinktranscriber/internal/logging"
	"pinktranscriber/internal/procguard"
	"pinktranscriber/internal/server"
	"pinktranscriber/internal/transcribe"
	"pinktranscriber/internal/transport"
	"pinktranscriber/internal/worker"
)

// Daemon owns the serving side of the line protocol: one endpoint, one
// worker, and the journal observing request outcomes.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	adapter transcribe.Adapter
	journal *journal.Journal

	endpoint transport.Endpoint
	listener net.Listener
	worker   *worker.Worker
	server   *server.Server

	lockPath string
	lock     *flock.Flock

	running     atomic.Bool
	releaseOnce sync.Once
	downOnce    sync.Once
	done        chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// Option mutates daemon construction.
type Option func(*Daemon)

// WithJournal attaches a request journal. Without one, request
// outcomes are not persisted.
func WithJournal(j *journal.Journal) Option {
	return func(d *Daemon) {
		d.journal = j
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, adapter transcribe.Adapter, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || adapter == nil || logger == nil {
		return nil, errors.New("daemon requires config, adapter, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "pink-transcriberd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		adapter:  adapter,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start sweeps competing instances, binds the endpoint, and launches
// the worker and the accept loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !ok {
		return errors.New("another pink-transcriber daemon holds the instance lock")
	}

	if d.cfg.Singleton.Enabled {
		err := procguard.Enforce(ctx, procguard.Options{
			Markers: d.cfg.Singleton.Markers,
			Policy:  d.cfg.Singleton.Termination,
			Grace:   d.cfg.SingletonGrace(),
			Logger:  d.logger,
		})
		if err != nil {
			_ = d.lock.Unlock()
			return fmt.Errorf("singleton sweep: %w", err)
		}
	}

	endpoint, err := transport.Select(d.cfg.Transport)
	if err != nil {
		_ = d.lock.Unlock()
		return err
	}
	listener, err := endpoint.Listen()
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("bind %s: %w", endpoint, err)
	}

	// The serving context must not inherit the caller's cancellation: a
	// termination signal begins the drain, it does not abort handlers
	// still waiting on queued work. d.cancel fires in shutdown once the
	// drain wait is over.
	d.ctx, d.cancel = context.WithCancel(context.WithoutCancel(ctx))
	d.endpoint = endpoint
	d.listener = listener

	var workerOpts []worker.Option
	if d.journal != nil {
		workerOpts = append(workerOpts, worker.WithObserver(d.journal))
	}
	d.worker = worker.New(d.adapter, d.logger, workerOpts...)
	d.worker.Start(d.ctx)

	d.server = server.New(d.ctx, listener, d.worker, d.logger, d.cfg.HandshakeTimeout())
	d.server.Serve()

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String(logging.FieldEndpoint, endpoint.String()),
		logging.String("lock", d.lockPath),
	)
	return nil
}

// Running reports whether Start succeeded and Shutdown has not finished.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Endpoint returns the bound endpoint, nil before Start.
func (d *Daemon) Endpoint() transport.Endpoint {
	return d.endpoint
}

// Done is closed when shutdown has completed.
func (d *Daemon) Done() <-chan struct{} {
	return d.done
}

// Shutdown drains in-flight and queued work, then releases the
// endpoint. Repeated calls are no-ops; concurrent callers all block
// until the first invocation finishes. Cancelling ctx abandons the
// drain wait early without skipping the release steps.
func (d *Daemon) Shutdown(ctx context.Context) {
	d.downOnce.Do(func() {
		defer close(d.done)
		d.shutdown(ctx)
	})
	<-d.done
}

func (d *Daemon) shutdown(ctx context.Context) {
	if !d.running.Load() {
		return
	}
	d.logger.Info("shutdown started", logging.String(logging.FieldEventType, "shutdown"))

	// New connections stop first so the drain below sees a frozen queue.
	d.server.StopAccepting()
	d.worker.BeginDrain()

	grace := d.cfg.ShutdownGrace()
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-d.worker.Stopped():
	case <-timer.C:
		d.logger.Warn("shutdown grace expired with work outstanding",
			logging.String(logging.FieldState, d.worker.State().String()),
			logging.Duration("grace", grace),
			logging.String(logging.FieldEventType, "drain_timeout"),
			logging.String("impact", "clients still waiting receive no response"),
		)
	case <-ctx.Done():
		d.logger.Warn("shutdown wait interrupted",
			logging.String(logging.FieldState, d.worker.State().String()),
			logging.String(logging.FieldEventType, "drain_interrupted"),
		)
	}

	d.releaseEndpoint()
	d.cancel()
	d.server.Close()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release instance lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// releaseEndpoint removes the endpoint artifact exactly once, no
// matter how many shutdown paths reach it.
func (d *Daemon) releaseEndpoint() {
	d.releaseOnce.Do(func() {
		_ = d.listener.Close()
		if err := d.endpoint.Cleanup(); err != nil {
			d.logger.Warn("endpoint cleanup failed",
				logging.Error(err),
				logging.String(logging.FieldEndpoint, d.endpoint.String()),
				logging.String(logging.FieldErrorHint, "remove the socket file manually before the next start"),
			)
			return
		}
		d.logger.Debug("endpoint released", logging.String(logging.FieldEndpoint, d.endpoint.String()))
	})
}

// Close shuts the daemon down and closes the journal.
func (d *Daemon) Close() error {
	if d.running.Load() {
		d.Shutdown(context.Background())
	}
	if d.journal != nil {
		return d.journal.Close()
	}
	return nil
}
