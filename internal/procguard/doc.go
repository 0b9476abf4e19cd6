// Package procguard enforces the single-daemon guarantee at startup.
//
// Before the transport endpoint is bound, the daemon snapshots the OS
// process table, finds every process whose command line carries one of
// the project identity markers, climbs each match to the top of its own
// marker-matching process tree (absorbing wrapper and launcher
// processes), and terminates the whole tree. The planning step is a pure
// function over the snapshot so it can be tested without touching the OS;
// only Enforce talks to the kernel.
//
// Failure to clear a competitor is fatal: binding the endpoint while
// another instance might still hold it would break the singleton
// invariant the rest of the system relies on.
package procguard
