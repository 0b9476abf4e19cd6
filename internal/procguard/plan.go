package procguard

import "strings"

// Process is one row of a process-table snapshot.
type Process struct {
	PID     int
	PPID    int
	Command string
}

// Plan computes the termination plan for a snapshot: every process that
// belongs to a competing daemon tree, listed root-first so a supervising
// launcher cannot respawn its child mid-kill.
//
// A process competes when its command line contains any marker. From each
// match the plan climbs the parent chain while the parent also matches a
// marker; the highest matching ancestor is the tree root, and the root's
// entire subtree is doomed. Any tree that contains selfPID is our own
// launcher chain and is skipped.
func Plan(snapshot []Process, markers []string, selfPID int) []int {
	byPID := make(map[int]Process, len(snapshot))
	children := make(map[int][]int, len(snapshot))
	for _, proc := range snapshot {
		byPID[proc.PID] = proc
		children[proc.PPID] = append(children[proc.PPID], proc.PID)
	}

	matches := func(command string) bool {
		for _, marker := range markers {
			if marker != "" && strings.Contains(command, marker) {
				return true
			}
		}
		return false
	}

	roots := make(map[int]struct{})
	for _, proc := range snapshot {
		if proc.PID == selfPID || !matches(proc.Command) {
			continue
		}
		root := proc.PID
		seen := map[int]struct{}{root: {}}
		for {
			parent, ok := byPID[byPID[root].PPID]
			if !ok || !matches(parent.Command) {
				break
			}
			if _, cycle := seen[parent.PID]; cycle {
				break
			}
			seen[parent.PID] = struct{}{}
			root = parent.PID
		}
		roots[root] = struct{}{}
	}

	var doomed []int
	claimed := make(map[int]struct{})
	for _, proc := range snapshot {
		if _, ok := roots[proc.PID]; !ok {
			continue
		}
		subtree := collectSubtree(proc.PID, children)
		if containsPID(subtree, selfPID) {
			continue
		}
		for _, pid := range subtree {
			if _, dup := claimed[pid]; dup {
				continue
			}
			claimed[pid] = struct{}{}
			doomed = append(doomed, pid)
		}
	}
	return doomed
}

// collectSubtree returns pid and all its descendants in breadth-first
// order, which keeps parents ahead of children in the kill sequence.
// Snapshots taken mid-churn can contain pid-reuse cycles, so membership
// is tracked.
func collectSubtree(pid int, children map[int][]int) []int {
	out := []int{pid}
	seen := map[int]struct{}{pid: {}}
	for i := 0; i < len(out); i++ {
		for _, child := range children[out[i]] {
			if _, dup := seen[child]; dup {
				continue
			}
			seen[child] = struct{}{}
			out = append(out, child)
		}
	}
	return out
}

func containsPID(pids []int, pid int) bool {
	for _, candidate := range pids {
		if candidate == pid {
			return true
		}
	}
	return false
}
