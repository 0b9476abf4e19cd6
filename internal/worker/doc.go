// Package worker serializes all access to the transcription engine.
//
// One goroutine owns the engine handle for its entire lifetime and drains
// an in-memory FIFO queue of transcription requests, one at a time, in
// strict submission order. Exclusivity is structural: no other component
// ever references the engine, so no lock guards it.
//
// Connection handlers submit requests and suspend on the per-request
// response channel; health queries read the worker state snapshot without
// queueing. Shutdown enqueues a sentinel behind the pending work so the
// worker stops only after draining.
package worker
