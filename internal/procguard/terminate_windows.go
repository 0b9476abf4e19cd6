//go:build windows

package procguard

import (
	"errors"
	"os"
)

// Windows has no graceful terminate signal; both policies kill outright.
func signalProcess(pid int, _ bool) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		// Already gone.
		return nil
	}
	defer proc.Release()
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// processAlive reports whether a handle to pid can still be opened.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	proc.Release()
	return true
}
