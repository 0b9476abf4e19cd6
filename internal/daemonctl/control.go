// Package daemonctl orchestrates the daemon process from the CLI:
// launching it detached, probing readiness, and stopping it with
// escalation when it ignores the polite signal.
package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"pinktranscriber/internal/client"
	"pinktranscriber/internal/config"
	"pinktranscriber/internal/protocol"
	"pinktranscriber/internal/transport"
)

// ErrDaemonNotRunning indicates no daemon answers on the endpoint.
var ErrDaemonNotRunning = errors.New("daemon not running")

const probeInterval = 200 * time.Millisecond

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	SocketPath string
	ConfigPath string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	Health   protocol.Health
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	ForcedKill bool
	PID        int
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// Launch starts a detached daemon process running the hidden daemon
// subcommand of the given executable.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if socket := strings.TrimSpace(opts.SocketPath); socket != "" {
		args = append(args, "--socket", socket)
	}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForReady polls the endpoint until the daemon answers a health
// probe. Any well-formed reply counts; a daemon still loading its model
// is reachable.
func WaitForReady(endpoint transport.Endpoint, timeout time.Duration) (protocol.Health, error) {
	c := client.New(endpoint)
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		health, err := c.Health()
		if err == nil {
			return health, nil
		}
		var remote *protocol.RemoteError
		if errors.As(err, &remote) {
			// The daemon is up; it is just reporting a failure state.
			return "", err
		}
		lastErr = err
		time.Sleep(probeInterval)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return "", fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless one already answers on the
// endpoint.
func EnsureStarted(endpoint transport.Endpoint, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	c := client.New(endpoint)
	if health, err := c.Health(); err == nil {
		return StartResult{State: StartStateAlreadyRunning, Health: health}, nil
	}

	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	health, err := WaitForReady(endpoint, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, Launched: true, Health: health}, nil
}

// WaitForShutdown waits for the endpoint to stop answering.
func WaitForShutdown(endpoint transport.Endpoint, timeout time.Duration) error {
	c := client.New(endpoint)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !reachable(c) {
			return nil
		}
		time.Sleep(probeInterval)
	}
	return fmt.Errorf("daemon did not stop within %s", timeout)
}

// StopAndTerminate signals the daemon to stop and force-kills the
// process if it is still alive after gracePeriod. The daemon drains
// in-flight work on the polite signal; the forced kill abandons it.
func StopAndTerminate(endpoint transport.Endpoint, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	pid, pidErr := readPIDFile(pidFilePath(cfg))
	running := reachable(client.New(endpoint))
	if !running && pid == 0 {
		if pidErr != nil && !errors.Is(pidErr, os.ErrNotExist) {
			return StopResult{}, pidErr
		}
		return StopResult{}, ErrDaemonNotRunning
	}
	if pid == 0 {
		return StopResult{}, fmt.Errorf("daemon is reachable but its pid file %s is missing", pidFilePath(cfg))
	}

	result := StopResult{PID: pid}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return result, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if !running {
			// Stale pid file from an earlier run.
			_ = os.Remove(pidFilePath(cfg))
			return StopResult{}, ErrDaemonNotRunning
		}
		return result, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}

	if err := WaitForShutdown(endpoint, gracePeriod); err == nil {
		return result, nil
	}

	killedPID, killErr := ForceKillProcess(pidFilePath(cfg), lockFilePath(cfg), pid)
	if killErr != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", killErr)
	}
	if cfg != nil && endpoint.Network() == "unix" {
		_ = os.Remove(endpoint.Address())
	}
	result.ForcedKill = true
	result.PID = killedPID
	return result, nil
}

// Restart stops the daemon if running, then ensures it is started.
func Restart(endpoint transport.Endpoint, cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(endpoint, cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(endpoint, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}

	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

// ForceKillProcess sends SIGKILL to the daemon process and cleans pid
// and lock files.
func ForceKillProcess(pidPath, lockPath string, fallbackPID int) (int, error) {
	pid, err := readPIDFile(pidPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, err
	}
	if pid == 0 {
		pid = fallbackPID
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, nil
}

// StatusSnapshot aggregates what the CLI can learn about a daemon
// without a dedicated control channel.
type StatusSnapshot struct {
	Reachable bool
	Health    protocol.Health
	Failure   string
	PID       int
	Endpoint  string
	LogDir    string
}

// BuildStatusSnapshot probes the endpoint and reads the pid file.
func BuildStatusSnapshot(endpoint transport.Endpoint, cfg *config.Config) StatusSnapshot {
	snapshot := StatusSnapshot{Endpoint: endpoint.String()}
	if cfg != nil {
		snapshot.LogDir = cfg.Paths.LogDir
	}
	if pid, err := readPIDFile(pidFilePath(cfg)); err == nil {
		snapshot.PID = pid
	}

	health, err := client.New(endpoint).Health()
	if err == nil {
		snapshot.Reachable = true
		snapshot.Health = health
		return snapshot
	}
	var remote *protocol.RemoteError
	if errors.As(err, &remote) {
		snapshot.Reachable = true
		snapshot.Failure = remote.Message
	}
	return snapshot
}

func reachable(c *client.Client) bool {
	_, err := c.Health()
	if err == nil {
		return true
	}
	var remote *protocol.RemoteError
	return errors.As(err, &remote)
}

func pidFilePath(cfg *config.Config) string {
	if cfg == nil || strings.TrimSpace(cfg.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(cfg.Paths.LogDir, "pink-transcriberd.pid")
}

func lockFilePath(cfg *config.Config) string {
	if cfg == nil || strings.TrimSpace(cfg.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(cfg.Paths.LogDir, "pink-transcriberd.lock")
}

func readPIDFile(path string) (int, error) {
	if path == "" {
		return 0, os.ErrNotExist
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(value)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("malformed pid file %q", path)
	}
	return pid, nil
}
