// Package main hosts the pink-transcriber CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into
// line-protocol exchanges with the daemon, daemon lifecycle control,
// request history queries, and configuration scaffolding. It centralizes
// configuration resolution and endpoint discovery so subcommands can
// focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the
// internal packages first, then surface it through dedicated commands
// or flags here.
package main
