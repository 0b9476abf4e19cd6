package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"pinktranscriber/internal/logging"
	"pinktranscriber/internal/protocol"
	"pinktranscriber/internal/worker"
)

// handle runs one full exchange: read a line, answer it, close.
func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	if s.handshake > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.handshake))
	}
	line, err := protocol.ReadLine(bufio.NewReaderSize(conn, 4096))
	if err != nil {
		switch {
		case errors.Is(err, protocol.ErrLineTooLong),
			errors.Is(err, protocol.ErrInvalidUTF8),
			errors.Is(err, protocol.ErrUnterminatedLine):
			s.reply(conn, protocol.EncodeFailure(protocol.MsgInvalidPath))
		case errors.Is(err, io.EOF):
			// Client connected and went away; nothing to answer.
		default:
			s.logger.Debug("request read failed", logging.Error(err))
		}
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	if line == protocol.HealthProbe {
		s.reply(conn, s.healthLine())
		return
	}

	if msg, ok := validateRequestPath(line); !ok {
		s.reply(conn, protocol.EncodeFailure(msg))
		return
	}

	req, err := s.worker.Submit(line)
	if err != nil {
		s.reply(conn, protocol.EncodeFailure(submitFailureMessage(err)))
		return
	}

	select {
	case resp := <-req.Response():
		if resp.Err != nil {
			s.reply(conn, protocol.EncodeFailure(responseFailureMessage(resp.Err)))
			return
		}
		s.reply(conn, protocol.FlattenText(resp.Text))
	case <-s.ctx.Done():
		// Shutdown abandoned the wait; the worker's eventual response for
		// this request is discarded.
		s.reply(conn, protocol.EncodeFailure(protocol.MsgShuttingDown))
	}
}

// reply writes exactly one response line. Write failures terminate the
// handler without retry.
func (s *Server) reply(conn net.Conn, line string) {
	if s.handshake > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.handshake))
	}
	if err := protocol.WriteLine(conn, line); err != nil {
		s.logger.Debug("response write failed", logging.Error(err))
	}
}

// healthLine maps the worker state snapshot onto the wire vocabulary.
// Health answers never pass through the queue.
func (s *Server) healthLine() string {
	switch s.worker.State() {
	case worker.StateReady:
		return string(protocol.HealthReady)
	case worker.StateBusy:
		return string(protocol.HealthBusy)
	case worker.StateUninitialized, worker.StateLoading:
		return string(protocol.HealthLoading)
	case worker.StateFailed:
		return protocol.EncodeFailure(protocol.MsgModelUnavailable)
	default:
		return protocol.EncodeFailure(protocol.MsgShuttingDown)
	}
}

func submitFailureMessage(err error) string {
	if errors.Is(err, worker.ErrDraining) || errors.Is(err, worker.ErrNotRunning) {
		return protocol.MsgShuttingDown
	}
	return err.Error()
}

func responseFailureMessage(err error) string {
	if errors.Is(err, worker.ErrModelUnavailable) {
		return protocol.MsgModelUnavailable
	}
	return protocol.FlattenText(err.Error())
}

// validateRequestPath rejects anything the worker should never see. The
// failure messages are part of the wire contract.
func validateRequestPath(line string) (string, bool) {
	if line == "" {
		return protocol.MsgInvalidPath, false
	}
	if !filepath.IsAbs(line) {
		return protocol.MsgInvalidPath, false
	}
	info, err := os.Lstat(line)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return protocol.MsgFileNotFound, false
		}
		return protocol.MsgFileNotReadable, false
	}
	if !info.Mode().IsRegular() {
		return protocol.MsgNotAFile, false
	}
	if !fileReadable(line) {
		return protocol.MsgFileNotReadable, false
	}
	if !protocol.FormatSupported(line) {
		return protocol.MsgUnsupportedFormat, false
	}
	return "", true
}
