// Package daemon coordinates the long-running pink-transcriber process.
//
// It wires configuration, the transport endpoint, the single-worker
// request queue, and the request journal into one lifecycle with
// flock-based locking plus a process-table sweep to guarantee a single
// serving instance. Shutdown is the package's main job: stop accepting,
// drain the queue through a sentinel, bound the wait with a grace
// window, and release the endpoint artifact exactly once.
//
// Keep orchestration logic here: the protocol handler lives in server,
// queue mechanics in worker, and engine details in transcribe.
package daemon
