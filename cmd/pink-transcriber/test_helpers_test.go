package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"pinktranscriber/internal/client"
	"pinktranscriber/internal/config"
	"pinktranscriber/internal/daemon"
	"pinktranscriber/internal/journal"
	"pinktranscriber/internal/logging"
	"pinktranscriber/internal/protocol"
	"pinktranscriber/internal/testsupport"
	"pinktranscriber/internal/transcribe"
	"pinktranscriber/internal/transport"
)

type echoAdapter struct{}

func (echoAdapter) Initialize(context.Context) error { return nil }

func (echoAdapter) Run(_ context.Context, path string) (string, error) {
	if filepath.Base(path) == "broken.wav" {
		return "", errors.New("decode failed")
	}
	return "transcript of " + filepath.Base(path), nil
}

func (echoAdapter) Status() transcribe.Availability { return transcribe.AvailabilityReady }

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	socketPath string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	homeDir := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(homeDir, ".config", "pink-transcriber", "config.toml")
	writeTestConfig(t, configPath, cfg)

	j, err := journal.Open(cfg.Journal.Path, logging.NewNop())
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}

	d, err := daemon.New(cfg, echoAdapter{}, logging.NewNop(), daemon.WithJournal(j))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	env := &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		socketPath: cfg.Transport.SocketPath,
		configPath: configPath,
	}
	env.awaitReady(t)
	return env
}

func (env *cliTestEnv) awaitReady(t *testing.T) {
	t.Helper()
	endpoint, err := transport.Select(env.cfg.Transport)
	if err != nil {
		t.Fatalf("transport.Select: %v", err)
	}
	c := client.New(endpoint)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if health, err := c.Health(); err == nil && health == protocol.HealthReady {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("daemon never became ready")
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	encoded, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, socketPath, configPath string) (string, error) {
	t.Helper()

	full := append([]string(nil), args...)
	if socketPath != "" {
		full = append(full, "--socket", socketPath)
	}
	if configPath != "" {
		full = append(full, "--config", configPath)
	}

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(full)

	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !bytes.Contains([]byte(output), []byte(want)) {
		t.Fatalf("output %q does not contain %q", output, want)
	}
}
