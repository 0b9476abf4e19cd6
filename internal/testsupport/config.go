package testsupport

import (
	"path/filepath"
	"testing"

	"pinktranscriber/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options. The singleton
// sweep is disabled so tests never touch the process table.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Transport.Kind = "unix"
	cfgVal.Transport.SocketPath = filepath.Join(base, "daemon.sock")
	cfgVal.Journal.Path = filepath.Join(base, "journal.db")
	cfgVal.Singleton.Enabled = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithTransportKind overrides the endpoint kind on the test config.
func WithTransportKind(kind string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transport.Kind = kind
	}
}

// WithTCPAddress points the test config at a loopback TCP endpoint.
func WithTCPAddress(address string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transport.Kind = "tcp"
		b.cfg.Transport.TCPAddress = address
	}
}

// WithShutdownGrace overrides the shutdown grace window, in seconds.
func WithShutdownGrace(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.ShutdownGraceSeconds = seconds
	}
}

// WithJournalDisabled turns off request journaling for the test.
func WithJournalDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Journal.Enabled = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
