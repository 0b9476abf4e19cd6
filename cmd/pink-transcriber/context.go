package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"pinktranscriber/internal/config"
	"pinktranscriber/internal/transport"
)

type commandContext struct {
	socketFlag *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(socketFlag, configFlag *string) *commandContext {
	return &commandContext{
		socketFlag: socketFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if socket := c.socketOverride(); socket != "" {
			cfg.Transport.Kind = "unix"
			cfg.Transport.SocketPath = socket
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) socketOverride() string {
	if c.socketFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.socketFlag)
}

// endpoint resolves the transport endpoint clients should dial,
// honoring the --socket override.
func (c *commandContext) endpoint() (transport.Endpoint, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return transport.Select(cfg.Transport)
}

func wrapDaemonError(err error, endpoint fmt.Stringer) error {
	switch {
	case errors.Is(err, syscall.ENOENT) || errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("no daemon at %s; start one with `pink-transcriber start`", endpoint)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("daemon at %s refused the connection; restart it with `pink-transcriber restart`", endpoint)
	default:
		return err
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
