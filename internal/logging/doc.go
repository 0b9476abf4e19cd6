// Package logging assembles the structured slog loggers shared by the
// pink-transcriber daemon and CLI.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context helpers so connection handlers and the
// transcription worker can tag log lines with request identifiers without
// threading extra arguments through every call. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape and routing.
package logging
