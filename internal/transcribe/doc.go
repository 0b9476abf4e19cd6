// Package transcribe defines the capability surface of the speech-to-text
// engine and provides the faster-whisper implementation the daemon ships
// with.
//
// The Adapter interface is deliberately narrow: initialize once, run one
// file at a time, report availability. The worker goroutine is the only
// component that ever holds an Adapter, so implementations do not need to
// be safe for concurrent Run calls.
//
// The Whisper implementation shells out through uvx so the Python engine
// never links into the daemon process. Tests swap the command runner to
// avoid spawning real processes.
package transcribe
