// Package daemonrun hosts the daemon process runtime: logging setup,
// pid file, signal handling, and the daemon lifecycle loop.
package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"pinktranscriber/internal/config"
	"pinktranscriber/internal/daemon"
	"pinktranscriber/internal/journal"
	"pinktranscriber/internal/logging"
	"pinktranscriber/internal/transcribe"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the pink-transcriber daemon runtime loop and blocks until
// a termination signal arrives and shutdown completes. A second signal
// during shutdown abandons the drain wait.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Registered alongside NotifyContext so repeat signals stay visible
	// after the context has already fired.
	repeat := make(chan os.Signal, 2)
	signal.Notify(repeat, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(repeat)

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("pink-transcriber-%s.log", runID))
	logger, err := logging.New(logging.Options{
		Level:            resolveLevel(opts.LogLevel, cfg),
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update pink-transcriber.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, cfg.Paths.LogDir, "pink-transcriber-*.log", logPath)

	pidPath := filepath.Join(cfg.Paths.LogDir, "pink-transcriberd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	modelDir, err := cfg.ResolveModelDir()
	if err != nil {
		logger.Error("resolve model directory", logging.Error(err))
		return err
	}
	adapter := transcribe.NewWhisper(transcribe.Config{
		Model:       cfg.Model.Name,
		Device:      cfg.Model.Device,
		ComputeType: cfg.Model.ComputeType,
		BeamSize:    cfg.Model.BeamSize,
		Language:    cfg.Model.Language,
		ModelDir:    modelDir,
	}, logger)

	var daemonOpts []daemon.Option
	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path, logger)
		if err != nil {
			logging.WarnWithContext(logger, "request journal unavailable", "journal_open_failed",
				logging.Error(err),
				logging.String("path", cfg.Journal.Path),
				logging.String(logging.FieldImpact, "request history will not be recorded"),
				logging.String(logging.FieldErrorHint, "check journal path permissions or disable the journal"),
			)
		} else {
			daemonOpts = append(daemonOpts, daemon.WithJournal(j))
		}
	}

	d, err := daemon.New(cfg, adapter, logger, daemonOpts...)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check endpoint availability and log directory access"),
		)
		return err
	}
	logger.Info("daemon ready",
		logging.String(logging.FieldEndpoint, d.Endpoint().String()),
		logging.String("run_id", runID),
		logging.Int("pid", os.Getpid()),
	)

	<-signalCtx.Done()

	// The signal that fired the context also landed in repeat; discard
	// it so only a genuine second signal abandons the drain.
	select {
	case <-repeat:
	default:
	}

	drainCtx, cancelDrain := context.WithCancel(context.Background())
	defer cancelDrain()
	go func() {
		select {
		case <-repeat:
			logger.Warn("second signal received, abandoning drain",
				logging.String(logging.FieldEventType, "shutdown_hurried"))
			cancelDrain()
		case <-drainCtx.Done():
		}
	}()

	d.Shutdown(drainCtx)
	return nil
}

func resolveLevel(flagLevel string, cfg *config.Config) string {
	if strings.TrimSpace(flagLevel) != "" {
		return flagLevel
	}
	if os.Getenv("VERBOSE") != "" {
		return "debug"
	}
	return cfg.Logging.Level
}

// ensureCurrentLogPointer keeps a stable pink-transcriber.log name
// pointing at the newest per-run log file.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "pink-transcriber.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
