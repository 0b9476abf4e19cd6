// Package protocol implements the newline-delimited wire format spoken
// between pink-transcriber clients and the daemon.
//
// A connection carries exactly one exchange: the client sends a single
// UTF-8 line naming an absolute audio file path (or the HEALTH probe), and
// the daemon answers with a single line holding the transcript, an
// availability token, or an ERROR message. Both sides close after the
// response.
//
// The canonical failure messages live here so the daemon, the client, and
// the tests agree on the exact bytes crossing the socket.
package protocol
