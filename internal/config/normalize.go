package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTransport()
	c.normalizeModel()
	c.normalizeServer()
	c.normalizeSingleton()
	if err := c.normalizeJournal(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTransport() {
	c.Transport.Kind = strings.ToLower(strings.TrimSpace(c.Transport.Kind))
	if c.Transport.Kind == "" {
		c.Transport.Kind = defaultTransportKind
	}
	c.Transport.SocketPath = strings.TrimSpace(c.Transport.SocketPath)
	if c.Transport.SocketPath == "" {
		c.Transport.SocketPath = defaultSocketPath
	}
	c.Transport.TCPAddress = strings.TrimSpace(c.Transport.TCPAddress)
	if c.Transport.TCPAddress == "" {
		c.Transport.TCPAddress = defaultTCPAddress
	}
}

func (c *Config) normalizeModel() {
	c.Model.Name = strings.TrimSpace(c.Model.Name)
	if c.Model.Name == "" {
		c.Model.Name = defaultModelName
	}
	c.Model.Device = strings.ToLower(strings.TrimSpace(c.Model.Device))
	if c.Model.Device == "" {
		c.Model.Device = defaultDevice
	}
	c.Model.ComputeType = strings.ToLower(strings.TrimSpace(c.Model.ComputeType))
	if c.Model.BeamSize <= 0 {
		c.Model.BeamSize = defaultBeamSize
	}
	c.Model.Language = strings.ToLower(strings.TrimSpace(c.Model.Language))
	c.Model.Dir = strings.TrimSpace(c.Model.Dir)
	if c.Model.Dir == "" {
		if value, ok := os.LookupEnv("PINK_TRANSCRIBER_MODEL_DIR"); ok {
			c.Model.Dir = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeServer() {
	if c.Server.HandshakeTimeoutSeconds <= 0 {
		c.Server.HandshakeTimeoutSeconds = defaultHandshakeTimeoutSeconds
	}
	if c.Server.ShutdownGraceSeconds <= 0 {
		c.Server.ShutdownGraceSeconds = defaultShutdownGraceSeconds
	}
}

func (c *Config) normalizeSingleton() {
	c.Singleton.Termination = strings.ToLower(strings.TrimSpace(c.Singleton.Termination))
	if c.Singleton.Termination == "" {
		c.Singleton.Termination = defaultTermination
	}
	if c.Singleton.GraceSeconds <= 0 {
		c.Singleton.GraceSeconds = defaultSingletonGraceSeconds
	}
	markers := make([]string, 0, len(c.Singleton.Markers))
	seen := make(map[string]struct{}, len(c.Singleton.Markers))
	for _, marker := range c.Singleton.Markers {
		trimmed := strings.TrimSpace(marker)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		markers = append(markers, trimmed)
	}
	if len(markers) == 0 {
		markers = append([]string(nil), defaultSingletonMarkers...)
	}
	c.Singleton.Markers = markers
}

func (c *Config) normalizeJournal() error {
	var err error
	if strings.TrimSpace(c.Journal.Path) == "" {
		c.Journal.Path = defaultJournalPath
	}
	if c.Journal.Path, err = expandPath(c.Journal.Path); err != nil {
		return fmt.Errorf("journal.path: %w", err)
	}
	return nil
}

// normalizeLogging applies the legacy VERBOSE switch the launcher scripts
// export; DEV is honoured for installs that predate the rename.
func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	for _, name := range []string{"VERBOSE", "DEV"} {
		if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) == "1" {
			c.Logging.Level = "debug"
			break
		}
	}
}
