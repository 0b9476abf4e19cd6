//go:build linux

package procguard

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Snapshot reads the live process table from /proc. Processes that vanish
// mid-scan are skipped; the table is inherently racy and the enforcement
// step tolerates already-dead targets.
func Snapshot() ([]Process, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("read /proc: %w", err)
	}

	snapshot := make([]Process, 0, len(entries))
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid <= 0 {
			continue
		}
		proc, ok := readProcEntry(pid)
		if !ok {
			continue
		}
		snapshot = append(snapshot, proc)
	}
	return snapshot, nil
}

func readProcEntry(pid int) (Process, bool) {
	cmdline, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "cmdline"))
	if err != nil {
		return Process{}, false
	}
	command := strings.TrimSpace(string(bytes.ReplaceAll(cmdline, []byte{0}, []byte{' '})))
	if command == "" {
		// Kernel threads have an empty cmdline; fall back to comm so the
		// snapshot stays complete for parent-chain walks.
		if comm, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "comm")); err == nil {
			command = strings.TrimSpace(string(comm))
		}
	}

	ppid, ok := readPPID(pid)
	if !ok {
		return Process{}, false
	}
	return Process{PID: pid, PPID: ppid, Command: command}, true
}

func readPPID(pid int) (int, bool) {
	stat, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return 0, false
	}
	// Field 4 follows the parenthesized comm, which may itself contain
	// spaces and parentheses; cut at the last close paren.
	idx := bytes.LastIndexByte(stat, ')')
	if idx < 0 || idx+2 >= len(stat) {
		return 0, false
	}
	fields := strings.Fields(string(stat[idx+2:]))
	if len(fields) < 2 {
		return 0, false
	}
	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, false
	}
	return ppid, true
}
