package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for daemon state. Log files, the
// pid file, and the instance lock all live under LogDir.
type Paths struct {
	LogDir string `toml:"log_dir"`
}

// Transport selects and configures the local endpoint clients dial.
// Kind "auto" picks a unix socket everywhere except Windows, which gets
// loopback TCP.
type Transport struct {
	Kind       string `toml:"kind"`
	SocketPath string `toml:"socket_path"`
	TCPAddress string `toml:"tcp_address"`
}

// Model configures the faster-whisper engine the worker drives.
type Model struct {
	Name        string `toml:"name"`
	Device      string `toml:"device"`
	ComputeType string `toml:"compute_type"`
	BeamSize    int    `toml:"beam_size"`
	Language    string `toml:"language"`
	Dir         string `toml:"dir"`
}

// Server tunes connection handling and shutdown behavior.
type Server struct {
	HandshakeTimeoutSeconds int `toml:"handshake_timeout"`
	ShutdownGraceSeconds    int `toml:"shutdown_grace"`
}

// Singleton controls the startup sweep that terminates competing daemon
// instances before the endpoint is bound.
type Singleton struct {
	Enabled      bool     `toml:"enabled"`
	Markers      []string `toml:"markers"`
	Termination  string   `toml:"termination"`
	GraceSeconds int      `toml:"grace_seconds"`
}

// Journal configures the on-disk request journal. The journal records
// request outcomes only; transcripts are never persisted.
type Journal struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for pink-transcriber.
//
// Configuration sections by subsystem:
//   - Paths: log, pid, and lock file placement
//   - Transport: unix socket vs loopback TCP endpoint selection
//   - Model: faster-whisper engine settings and model cache directory
//   - Server: connection handshake timeout and shutdown grace window
//   - Singleton: competing-instance markers and termination policy
//   - Journal: request outcome persistence
//   - Logging: log format, level, and retention
type Config struct {
	Paths     Paths     `toml:"paths"`
	Transport Transport `toml:"transport"`
	Model     Model     `toml:"model"`
	Server    Server    `toml:"server"`
	Singleton Singleton `toml:"singleton"`
	Journal   Journal   `toml:"journal"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/pink-transcriber/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("pink-transcriber.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	if c.Journal.Enabled && strings.TrimSpace(c.Journal.Path) != "" {
		if err := os.MkdirAll(filepath.Dir(c.Journal.Path), 0o755); err != nil {
			return fmt.Errorf("create journal directory %q: %w", filepath.Dir(c.Journal.Path), err)
		}
	}
	return nil
}

// HandshakeTimeout returns the per-connection request read deadline.
func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.Server.HandshakeTimeoutSeconds) * time.Second
}

// ShutdownGrace returns how long shutdown waits for in-flight work to drain.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Server.ShutdownGraceSeconds) * time.Second
}

// SingletonGrace returns how long the singleton sweep waits between the
// polite terminate signal and the forced kill.
func (c *Config) SingletonGrace() time.Duration {
	return time.Duration(c.Singleton.GraceSeconds) * time.Second
}

// ResolveModelDir returns the model cache directory, creating it if needed.
// Resolution order: explicit configuration (or PINK_TRANSCRIBER_MODEL_DIR),
// then a models directory next to the executable when writable, then the
// per-user data directory.
func (c *Config) ResolveModelDir() (string, error) {
	if dir := strings.TrimSpace(c.Model.Dir); dir != "" {
		expanded, err := expandPath(dir)
		if err != nil {
			return "", fmt.Errorf("model.dir: %w", err)
		}
		if err := os.MkdirAll(expanded, 0o755); err != nil {
			return "", fmt.Errorf("create model directory %q: %w", expanded, err)
		}
		return expanded, nil
	}

	if exe, err := os.Executable(); err == nil {
		local := filepath.Join(filepath.Dir(exe), "models")
		if dirWritable(local) {
			return local, nil
		}
	}

	fallback := defaultModelDir()
	expanded, err := expandPath(fallback)
	if err != nil {
		return "", fmt.Errorf("model directory fallback: %w", err)
	}
	if err := os.MkdirAll(expanded, 0o755); err != nil {
		return "", fmt.Errorf("create model directory %q: %w", expanded, err)
	}
	return expanded, nil
}

// dirWritable probes dir by touching a marker file, matching the behavior
// installers expect: a read-only install tree silently falls through to the
// per-user directory.
func dirWritable(dir string) bool {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false
	}
	probe := filepath.Join(dir, ".write_test")
	file, err := os.Create(probe)
	if err != nil {
		return false
	}
	file.Close()
	os.Remove(probe)
	return true
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
