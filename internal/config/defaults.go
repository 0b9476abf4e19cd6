package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultLogDir           = "~/.local/share/pink-transcriber/logs"
	defaultLogRetentionDays = 60
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"

	defaultTransportKind = "auto"
	defaultSocketPath    = "/tmp/pink-transcriber.sock"
	defaultTCPAddress    = "127.0.0.1:19876"

	defaultModelName  = "large-v3"
	defaultDevice     = "auto"
	defaultBeamSize   = 5
	defaultModelDirXD = "pink-transcriber/models"

	defaultHandshakeTimeoutSeconds = 30
	defaultShutdownGraceSeconds    = 2

	defaultTermination           = "graceful"
	defaultSingletonGraceSeconds = 2

	defaultJournalPath = "~/.local/share/pink-transcriber/journal.db"
)

// defaultSingletonMarkers match any process belonging to a pink-transcriber
// install, including the launchd/systemd labels the packaging uses.
var defaultSingletonMarkers = []string{
	"pink-transcriber",
	"pink_transcriber",
	"Pink Transcriber",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Transport: Transport{
			Kind:       defaultTransportKind,
			SocketPath: defaultSocketPath,
			TCPAddress: defaultTCPAddress,
		},
		Model: Model{
			Name:     defaultModelName,
			Device:   defaultDevice,
			BeamSize: defaultBeamSize,
		},
		Server: Server{
			HandshakeTimeoutSeconds: defaultHandshakeTimeoutSeconds,
			ShutdownGraceSeconds:    defaultShutdownGraceSeconds,
		},
		Singleton: Singleton{
			Enabled:      true,
			Markers:      append([]string(nil), defaultSingletonMarkers...),
			Termination:  defaultTermination,
			GraceSeconds: defaultSingletonGraceSeconds,
		},
		Journal: Journal{
			Enabled: true,
			Path:    defaultJournalPath,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

func defaultModelDir() string {
	if base, ok := os.LookupEnv("XDG_DATA_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, defaultModelDirXD)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.local/share/" + defaultModelDirXD
	}
	return filepath.Join(home, ".local", "share", defaultModelDirXD)
}
