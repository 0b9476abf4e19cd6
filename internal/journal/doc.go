// Package journal records transcription request outcomes in SQLite so
// operators can answer "what has this daemon been doing" after the fact.
//
// The journal is strictly observational: it stores ids, paths, states,
// and timings, never transcript text, and a journal write failure is
// logged and swallowed rather than failing the request it describes.
// The daemon runs fine with the journal disabled.
package journal
