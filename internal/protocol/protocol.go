package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// HealthProbe is the reserved request line that asks for daemon
// availability instead of a transcription.
const HealthProbe = "HEALTH"

// ErrorPrefix starts every failure response line.
const ErrorPrefix = "ERROR:"

// MaxLineBytes bounds a single request or response line. Transcripts stay
// well under this; anything longer on the request side is not a plausible
// file path.
const MaxLineBytes = 64 * 1024

// Health is the daemon availability token carried on the wire.
type Health string

const (
	HealthReady   Health = "OK"
	HealthLoading Health = "LOADING"
	HealthBusy    Health = "BUSY"
)

// Canonical failure messages. Clients match on these strings, so they are
// part of the wire contract.
const (
	MsgInvalidPath       = "invalid path"
	MsgFileNotFound      = "file not found"
	MsgNotAFile          = "not a file"
	MsgFileNotReadable   = "file not readable"
	MsgUnsupportedFormat = "unsupported format"
	MsgModelUnavailable  = "model unavailable"
	MsgShuttingDown      = "shutting down"
)

var (
	// ErrLineTooLong reports a request or response line exceeding MaxLineBytes.
	ErrLineTooLong = errors.New("protocol: line exceeds maximum length")
	// ErrUnterminatedLine reports a peer that closed the connection before
	// sending the terminating newline.
	ErrUnterminatedLine = errors.New("protocol: connection closed before newline")
	// ErrInvalidUTF8 reports a request line that is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("protocol: line is not valid UTF-8")
)

// supportedExtensions mirrors the audio container formats the engine
// accepts. Lowercase with leading dot.
var supportedExtensions = map[string]struct{}{
	".aiff": {},
	".flac": {},
	".m4a":  {},
	".mp3":  {},
	".ogg":  {},
	".opus": {},
	".wav":  {},
}

// SupportedExtensions returns the accepted audio file extensions in sorted order.
func SupportedExtensions() []string {
	out := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// FormatSupported reports whether the path names an audio format the engine
// accepts. Matching is case-insensitive on the extension.
func FormatSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := supportedExtensions[ext]
	return ok
}

// ReadLine reads one newline-terminated line, returning it without the
// terminator. CR before the newline is tolerated for clients written with
// CRLF conventions. Lines longer than MaxLineBytes fail with ErrLineTooLong;
// a connection closed mid-line fails with ErrUnterminatedLine.
func ReadLine(br *bufio.Reader) (string, error) {
	var buf []byte
	for {
		chunk, err := br.ReadSlice('\n')
		buf = append(buf, chunk...)
		if len(buf) > MaxLineBytes {
			return "", ErrLineTooLong
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) {
			if len(buf) == 0 {
				return "", io.EOF
			}
			return "", ErrUnterminatedLine
		}
		return "", err
	}
	line := strings.TrimSuffix(string(buf), "\n")
	line = strings.TrimSuffix(line, "\r")
	if !utf8.ValidString(line) {
		return "", ErrInvalidUTF8
	}
	return line, nil
}

// WriteLine writes line with the terminating newline. The line must not
// contain embedded newlines; flatten transcripts with FlattenText first.
func WriteLine(w io.Writer, line string) error {
	if strings.ContainsAny(line, "\n\r") {
		return fmt.Errorf("protocol: refusing to write embedded newline in %q", line)
	}
	_, err := io.WriteString(w, line+"\n")
	return err
}

// FlattenText collapses a transcript into the single line the protocol
// carries: newlines become spaces, runs of whitespace collapse, and the
// result is trimmed.
func FlattenText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// EncodeFailure renders msg as a failure response line.
func EncodeFailure(msg string) string {
	return ErrorPrefix + " " + strings.TrimSpace(msg)
}

// ParseFailure extracts the message from a failure response line.
func ParseFailure(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, ErrorPrefix)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// ParseHealthReply interprets the daemon's answer to a HEALTH probe.
func ParseHealthReply(line string) (Health, error) {
	switch Health(line) {
	case HealthReady, HealthLoading, HealthBusy:
		return Health(line), nil
	}
	if msg, ok := ParseFailure(line); ok {
		return "", &RemoteError{Message: msg}
	}
	return "", fmt.Errorf("protocol: unexpected health reply %q", line)
}

// ParseTranscribeReply interprets the daemon's answer to a transcription
// request: the transcript on success, a RemoteError on failure.
func ParseTranscribeReply(line string) (string, error) {
	if msg, ok := ParseFailure(line); ok {
		return "", &RemoteError{Message: msg}
	}
	return line, nil
}

// RemoteError carries a failure message produced by the daemon.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}
