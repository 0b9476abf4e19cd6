// Package server accepts client connections on the transport endpoint
// and runs the one-exchange line protocol over each of them.
//
// Acceptance is concurrent and never blocks on in-flight transcription
// work: each connection gets its own goroutine, health probes are
// answered from a worker state snapshot without queueing, and
// transcription requests suspend only their own handler while waiting
// for the worker.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"pinktranscriber/internal/logging"
	"pinktranscriber/internal/worker"
)

// Server owns the accept loop. It does not own the listener's endpoint
// artifact; releasing that is the shutdown coordinator's job.
type Server struct {
	listener  net.Listener
	worker    *worker.Worker
	logger    *slog.Logger
	handshake time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopOnce  sync.Once
	closeOnce sync.Once
}

// New configures a server over an already-bound listener.
func New(ctx context.Context, listener net.Listener, w *worker.Worker, logger *slog.Logger, handshakeTimeout time.Duration) *Server {
	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		listener:  listener,
		worker:    w,
		logger:    logging.NewComponentLogger(logger, "server"),
		handshake: handshakeTimeout,
		ctx:       serverCtx,
		cancel:    cancel,
	}
}

// Serve starts accepting connections until StopAccepting or Close.
func (s *Server) Serve() {
	s.logger.Debug("accepting connections", logging.String(logging.FieldEndpoint, s.listener.Addr().String()))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "accept_failed"),
					logging.String("impact", "one client connection was dropped"),
					logging.String(logging.FieldErrorHint, "check socket permissions; restart the daemon if this repeats"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.handle(c)
			}(conn)
		}
	}()
}

// StopAccepting closes the listener so no further connections are
// accepted. Already-accepted connections keep running; their handlers
// finish on their own.
func (s *Server) StopAccepting() {
	s.stopOnce.Do(func() {
		_ = s.listener.Close()
	})
}

// Close stops acceptance, aborts handlers still waiting on the worker,
// and waits for every handler goroutine to exit.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.StopAccepting()
		s.cancel()
		s.wg.Wait()
	})
}
