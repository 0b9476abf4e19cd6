package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTransport(); err != nil {
		return err
	}
	if err := c.validateModel(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSingleton(); err != nil {
		return err
	}
	if err := c.validateJournal(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTransport() error {
	switch c.Transport.Kind {
	case "auto", "unix", "tcp":
	default:
		return fmt.Errorf("transport.kind must be auto, unix, or tcp (got %q)", c.Transport.Kind)
	}
	if c.Transport.SocketPath == "" {
		return errors.New("transport.socket_path must be set")
	}
	host, port, err := net.SplitHostPort(c.Transport.TCPAddress)
	if err != nil {
		return fmt.Errorf("transport.tcp_address: %w", err)
	}
	if port == "" {
		return errors.New("transport.tcp_address must include a port")
	}
	if !isLoopbackHost(host) {
		return fmt.Errorf("transport.tcp_address must bind a loopback address (got %q)", host)
	}
	return nil
}

// isLoopbackHost keeps the TCP fallback from ever exposing the daemon off the
// local machine.
func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (c *Config) validateModel() error {
	if c.Model.Name == "" {
		return errors.New("model.name must be set")
	}
	switch c.Model.Device {
	case "auto", "cuda", "cpu":
	default:
		return fmt.Errorf("model.device must be auto, cuda, or cpu (got %q)", c.Model.Device)
	}
	if c.Model.BeamSize <= 0 {
		return errors.New("model.beam_size must be positive")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.HandshakeTimeoutSeconds <= 0 {
		return errors.New("server.handshake_timeout must be positive (seconds)")
	}
	if c.Server.ShutdownGraceSeconds <= 0 {
		return errors.New("server.shutdown_grace must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateSingleton() error {
	if !c.Singleton.Enabled {
		return nil
	}
	if len(c.Singleton.Markers) == 0 {
		return errors.New("singleton.markers must include at least one marker when singleton.enabled is true")
	}
	switch c.Singleton.Termination {
	case "graceful", "immediate":
	default:
		return fmt.Errorf("singleton.termination must be graceful or immediate (got %q)", c.Singleton.Termination)
	}
	if c.Singleton.GraceSeconds <= 0 {
		return errors.New("singleton.grace_seconds must be positive")
	}
	return nil
}

func (c *Config) validateJournal() error {
	if c.Journal.Enabled && strings.TrimSpace(c.Journal.Path) == "" {
		return errors.New("journal.path must be set when journal.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	return nil
}
