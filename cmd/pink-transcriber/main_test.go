package main

import (
	"path/filepath"
	"strings"
	"testing"

	"pinktranscriber/internal/testsupport"
)

func TestTranscribeCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	audio := filepath.Join(t.TempDir(), "meeting.wav")
	testsupport.WriteAudioFile(t, audio, 256)

	out, err := runCLI(t, []string{audio}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if strings.TrimSpace(out) != "transcript of meeting.wav" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestTranscribeCommandValidatesBeforeSending(t *testing.T) {
	env := setupCLITestEnv(t)
	// Nothing listens here; a validation failure must surface before any
	// connection attempt could.
	deadSocket := filepath.Join(t.TempDir(), "nobody-home.sock")

	missing := filepath.Join(t.TempDir(), "nope.wav")
	_, err := runCLI(t, []string{missing}, deadSocket, env.configPath)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "file not found") {
		t.Fatalf("unexpected error %v", err)
	}

	notes := filepath.Join(t.TempDir(), "notes.txt")
	testsupport.WriteAudioFile(t, notes, 64)
	_, err = runCLI(t, []string{notes}, deadSocket, env.configPath)
	if err == nil {
		t.Fatal("expected error for unsupported extension")
	}
	if !strings.Contains(err.Error(), "unsupported format") {
		t.Fatalf("unexpected error %v", err)
	}
	if !strings.Contains(err.Error(), ".wav") {
		t.Fatalf("error should list the supported formats, got %v", err)
	}
}

func TestTranscribeCommandReportsRemoteFailure(t *testing.T) {
	env := setupCLITestEnv(t)

	broken := filepath.Join(t.TempDir(), "broken.wav")
	testsupport.WriteAudioFile(t, broken, 64)
	_, err := runCLI(t, []string{broken}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected error for failed transcription")
	}
	if !strings.Contains(err.Error(), "transcription failed") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestHealthFlag(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, []string{"--health"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("--health: %v", err)
	}
	if strings.TrimSpace(out) != "OK" {
		t.Fatalf("health output %q, want OK", out)
	}
}

func TestHealthFlagWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	deadSocket := filepath.Join(t.TempDir(), "nobody-home.sock")

	_, err := runCLI(t, []string{"--health"}, deadSocket, env.configPath)
	if err == nil {
		t.Fatal("expected error when no daemon is listening")
	}
	if !strings.Contains(err.Error(), "pink-transcriber start") {
		t.Fatalf("error should point at the start command, got %v", err)
	}
}

func TestHistoryCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	audio := filepath.Join(t.TempDir(), "call.wav")
	testsupport.WriteAudioFile(t, audio, 128)
	if _, err := runCLI(t, []string{audio}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("transcribe: %v", err)
	}

	out, err := runCLI(t, []string{"history"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "call.wav")
	requireContains(t, out, "Done")

	out, err = runCLI(t, []string{"history", "stats"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history stats: %v", err)
	}
	requireContains(t, out, "Done")
	requireContains(t, out, "1")
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "ready")
	requireContains(t, out, "== Request Journal ==")
}

func TestStatusCommandWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	deadSocket := filepath.Join(t.TempDir(), "nobody-home.sock")

	out, err := runCLI(t, []string{"status"}, deadSocket, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "not running")
}

func TestConfigCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, []string{"config", "show"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[transport]")
	requireContains(t, out, env.cfg.Transport.SocketPath)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, err = runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	out, err = runCLI(t, []string{"config", "path"}, "", "")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	requireContains(t, out, "config.toml")
}
