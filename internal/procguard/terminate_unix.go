//go:build unix

package procguard

import (
	"errors"

	"golang.org/x/sys/unix"
)

// signalProcess asks pid to exit. A process that is already gone counts
// as success; the snapshot is racy by nature.
func signalProcess(pid int, graceful bool) error {
	sig := unix.SIGKILL
	if graceful {
		sig = unix.SIGTERM
	}
	err := unix.Kill(pid, sig)
	if err == nil || errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

// processAlive probes pid with the null signal.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to someone else; it still
	// counts as alive for singleton purposes.
	return errors.Is(err, unix.EPERM)
}
