//go:build !linux

package procguard

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Snapshot shells out to ps where /proc is unavailable. The output format
// is fixed by the -o spec so parsing stays stable across BSD userlands.
func Snapshot() ([]Process, error) {
	output, err := exec.Command("ps", "-axo", "pid=,ppid=,command=").Output()
	if err != nil {
		return nil, fmt.Errorf("ps snapshot: %w", err)
	}
	return parsePSOutput(string(output)), nil
}

func parsePSOutput(output string) []Process {
	var snapshot []Process
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		ppid, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		snapshot = append(snapshot, Process{
			PID:     pid,
			PPID:    ppid,
			Command: strings.Join(fields[2:], " "),
		})
	}
	return snapshot
}
