package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"pinktranscriber/internal/logging"
	"pinktranscriber/internal/transcribe"
)

var (
	// ErrDraining reports a submission after shutdown began.
	ErrDraining = errors.New("worker is draining")
	// ErrModelUnavailable reports that engine initialization failed and
	// transcription requests can never succeed in this daemon run.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrNotRunning reports a submission before Start.
	ErrNotRunning = errors.New("worker not running")
)

// Response carries a finished request's transcript or failure back to
// the originating connection handler.
type Response struct {
	Text string
	Err  error
}

// Request is one queued transcription. The sequence number is assigned
// at submission and breaks FIFO ties; it is unique by construction.
type Request struct {
	Seq         uint64
	ID          string
	Path        string
	SubmittedAt time.Time

	sentinel bool
	response chan Response
}

// Response returns the channel the worker delivers on. The channel is
// buffered so a handler that disconnected early never blocks the worker;
// its response is simply discarded.
func (r *Request) Response() <-chan Response {
	return r.response
}

// Observer receives request lifecycle notifications. RequestQueued runs
// on the submitting goroutine after the request is enqueued, outside the
// queue lock; RequestStarted and RequestFinished run inline on the
// worker goroutine and should return promptly.
type Observer interface {
	RequestQueued(id, path string, at time.Time)
	RequestStarted(id string, at time.Time)
	RequestFinished(id string, err error, at time.Time)
}

type nopObserver struct{}

func (nopObserver) RequestQueued(string, string, time.Time) {}
func (nopObserver) RequestStarted(string, time.Time)        {}
func (nopObserver) RequestFinished(string, error, time.Time) {
}

// Worker owns the engine and drains the request queue sequentially.
type Worker struct {
	adapter  transcribe.Adapter
	logger   *slog.Logger
	observer Observer

	mu      sync.Mutex
	queue   []*Request
	nextSeq uint64
	closed  bool
	started bool

	wake    chan struct{}
	stopped chan struct{}
	state   atomic.Int32
}

// Option configures a Worker.
type Option func(*Worker)

// WithObserver wires a request lifecycle observer (the journal).
func WithObserver(observer Observer) Option {
	return func(w *Worker) {
		if observer != nil {
			w.observer = observer
		}
	}
}

// New constructs a worker. Start must be called before submissions.
func New(adapter transcribe.Adapter, logger *slog.Logger, opts ...Option) *Worker {
	w := &Worker{
		adapter:  adapter,
		logger:   logging.NewComponentLogger(logger, "worker"),
		observer: nopObserver{},
		wake:     make(chan struct{}, 1),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.state.Store(int32(StateUninitialized))
	return w
}

// State returns a consistent snapshot of the worker state without
// blocking the worker.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Stopped is closed once the worker goroutine has exited.
func (w *Worker) Stopped() <-chan struct{} {
	return w.stopped
}

// Start launches engine initialization and the drain loop. Connections
// may submit immediately; work queued during loading is processed once
// the engine is ready.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go w.run(ctx)
}

// Submit appends a transcription request to the queue. It fails fast
// with ErrDraining once shutdown has begun so late connections still get
// their one failure response.
func (w *Worker) Submit(path string) (*Request, error) {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil, ErrNotRunning
	}
	if w.closed {
		w.mu.Unlock()
		return nil, ErrDraining
	}
	w.nextSeq++
	req := &Request{
		Seq:         w.nextSeq,
		ID:          uuid.NewString(),
		Path:        path,
		SubmittedAt: time.Now(),
		response:    make(chan Response, 1),
	}
	w.queue = append(w.queue, req)
	w.kick()
	w.mu.Unlock()

	// The journal write behind the observer can stall on a busy database;
	// it must never hold up other submitters or BeginDrain.
	w.observer.RequestQueued(req.ID, req.Path, req.SubmittedAt)
	w.logger.Debug("request queued",
		logging.String(logging.FieldRequestID, req.ID),
		logging.Uint64(logging.FieldRequestSeq, req.Seq),
		logging.String(logging.FieldSource, req.Path),
	)
	return req, nil
}

// BeginDrain appends the stop sentinel behind all queued work. Idempotent;
// the worker finishes everything submitted before this call, then stops.
func (w *Worker) BeginDrain() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	if !w.started {
		// Never ran; nothing will drain the queue.
		w.state.Store(int32(StateStopped))
		close(w.stopped)
		return
	}
	w.queue = append(w.queue, &Request{sentinel: true})
	w.kick()
}

func (w *Worker) kick() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Worker) pop(ctx context.Context) *Request {
	for {
		w.mu.Lock()
		if len(w.queue) > 0 {
			req := w.queue[0]
			w.queue = w.queue[1:]
			w.mu.Unlock()
			return req
		}
		w.mu.Unlock()
		select {
		case <-w.wake:
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Worker) run(ctx context.Context) {
	defer func() {
		w.state.Store(int32(StateStopped))
		close(w.stopped)
	}()

	// Engine calls are deliberately detached from the shutdown context:
	// once dequeued, a request runs to completion or failure, and the
	// shutdown coordinator bounds how long it is willing to wait.
	engineCtx := context.WithoutCancel(ctx)

	w.state.Store(int32(StateLoading))
	initErr := w.adapter.Initialize(engineCtx)
	if initErr != nil {
		w.state.Store(int32(StateFailed))
		logging.ErrorWithContext(w.logger, "engine initialization failed", "engine_init_failed",
			logging.Error(initErr),
			logging.String(logging.FieldErrorHint, "check that uvx is installed and the model directory is writable"),
		)
	} else {
		w.state.Store(int32(StateReady))
	}

	for {
		req := w.pop(ctx)
		if req == nil {
			return
		}
		if req.sentinel {
			w.state.Store(int32(StateDraining))
			w.logger.Info("drain sentinel consumed, worker stopping",
				logging.String(logging.FieldEventType, "worker_drained"))
			return
		}
		if initErr != nil {
			w.finish(req, Response{Err: ErrModelUnavailable})
			continue
		}
		w.process(engineCtx, req)
	}
}

func (w *Worker) process(ctx context.Context, req *Request) {
	w.state.Store(int32(StateBusy))
	started := time.Now()
	w.observer.RequestStarted(req.ID, started)
	w.logger.Info("transcription started",
		logging.String(logging.FieldRequestID, req.ID),
		logging.Uint64(logging.FieldRequestSeq, req.Seq),
		logging.String(logging.FieldSource, req.Path),
	)

	text, err := w.adapter.Run(ctx, req.Path)
	w.state.Store(int32(StateReady))

	if err != nil {
		// Per-request engine failures are isolated: this request gets its
		// failure response and the next queued request proceeds normally.
		logging.ErrorWithContext(w.logger, "transcription failed", "transcription_failed",
			logging.String(logging.FieldRequestID, req.ID),
			logging.String(logging.FieldSource, req.Path),
			logging.Error(err),
		)
		w.finish(req, Response{Err: err})
		return
	}

	w.logger.Info("transcription finished",
		logging.String(logging.FieldRequestID, req.ID),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "transcription_done"),
	)
	w.finish(req, Response{Text: text})
}

func (w *Worker) finish(req *Request, resp Response) {
	w.observer.RequestFinished(req.ID, resp.Err, time.Now())
	req.response <- resp
}
