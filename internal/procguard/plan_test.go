package procguard_test

import (
	"testing"

	"pinktranscriber/internal/procguard"
)

var markers = []string{"pink-transcriber", "pink_transcriber"}

func TestPlanIgnoresUnrelatedProcesses(t *testing.T) {
	snapshot := []procguard.Process{
		{PID: 1, PPID: 0, Command: "/sbin/init"},
		{PID: 200, PPID: 1, Command: "/usr/bin/bash"},
		{PID: 300, PPID: 200, Command: "vim notes.txt"},
	}
	if doomed := procguard.Plan(snapshot, markers, 999); len(doomed) != 0 {
		t.Fatalf("expected empty plan, got %v", doomed)
	}
}

func TestPlanTargetsCompetingDaemon(t *testing.T) {
	snapshot := []procguard.Process{
		{PID: 1, PPID: 0, Command: "/sbin/init"},
		{PID: 40, PPID: 1, Command: "/usr/local/bin/pink-transcriberd"},
	}
	doomed := procguard.Plan(snapshot, markers, 999)
	if len(doomed) != 1 || doomed[0] != 40 {
		t.Fatalf("plan = %v, want [40]", doomed)
	}
}

func TestPlanClimbsToLauncherRoot(t *testing.T) {
	// A wrapper script re-execs the real daemon as a child. Killing only
	// the child would let the wrapper respawn it, so the plan must doom
	// the wrapper first.
	snapshot := []procguard.Process{
		{PID: 1, PPID: 0, Command: "/sbin/init"},
		{PID: 50, PPID: 1, Command: "/usr/bin/bash"},
		{PID: 60, PPID: 50, Command: "sh /opt/pink_transcriber/launch.sh"},
		{PID: 70, PPID: 60, Command: "/opt/pink_transcriber/bin/pink-transcriberd"},
		{PID: 80, PPID: 70, Command: "uvx whisper-ctranslate2 --model large-v3"},
	}
	doomed := procguard.Plan(snapshot, markers, 999)
	want := []int{60, 70, 80}
	if len(doomed) != len(want) {
		t.Fatalf("plan = %v, want %v", doomed, want)
	}
	for i, pid := range want {
		if doomed[i] != pid {
			t.Fatalf("plan = %v, want %v (root before descendants)", doomed, want)
		}
	}
}

func TestPlanExcludesSelf(t *testing.T) {
	snapshot := []procguard.Process{
		{PID: 1, PPID: 0, Command: "/sbin/init"},
		{PID: 90, PPID: 1, Command: "/usr/local/bin/pink-transcriberd"},
	}
	if doomed := procguard.Plan(snapshot, markers, 90); len(doomed) != 0 {
		t.Fatalf("plan must never doom the scanning process, got %v", doomed)
	}
}

func TestPlanSkipsOwnLauncherChain(t *testing.T) {
	// The sweep runs from inside a freshly launched daemon whose own
	// wrapper also matches a marker. That tree is not a competitor.
	const selfPID = 71
	snapshot := []procguard.Process{
		{PID: 1, PPID: 0, Command: "/sbin/init"},
		{PID: 61, PPID: 1, Command: "sh /opt/pink_transcriber/launch.sh"},
		{PID: selfPID, PPID: 61, Command: "/opt/pink_transcriber/bin/pink-transcriberd"},
		{PID: 45, PPID: 1, Command: "/usr/local/bin/pink-transcriberd --stale"},
	}
	doomed := procguard.Plan(snapshot, markers, selfPID)
	if len(doomed) != 1 || doomed[0] != 45 {
		t.Fatalf("plan = %v, want only the stale competitor [45]", doomed)
	}
}

func TestPlanSurvivesParentCycles(t *testing.T) {
	// A snapshot taken mid-churn can contain pid reuse that looks like a
	// parent cycle; the climb must still terminate.
	snapshot := []procguard.Process{
		{PID: 10, PPID: 20, Command: "pink-transcriberd"},
		{PID: 20, PPID: 10, Command: "pink_transcriber wrapper"},
	}
	doomed := procguard.Plan(snapshot, markers, 999)
	if len(doomed) == 0 {
		t.Fatal("expected the cyclic tree to be doomed")
	}
}
