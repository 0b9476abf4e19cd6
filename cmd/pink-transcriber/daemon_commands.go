package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pinktranscriber/internal/config"
	"pinktranscriber/internal/daemonctl"
	"pinktranscriber/internal/journal"
	"pinktranscriber/internal/logging"
	"pinktranscriber/internal/protocol"
)

const (
	stopGracePeriod  = 5 * time.Second
	startWaitTimeout = 10 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the transcription daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			endpoint, err := ctx.endpoint()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(endpoint, exe, daemonLaunchOptions(ctx), startWaitTimeout)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			}
			if result.Health == protocol.HealthLoading {
				fmt.Fprintln(stdout, "Model is loading; the first request may wait")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the transcription daemon (completely terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			endpoint, err := ctx.endpoint()
			if err != nil {
				return err
			}
			result, err := daemonctl.StopAndTerminate(endpoint, ctx.configValue(), stopGracePeriod)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Daemon ignored the stop signal, killing process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the transcription daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			endpoint, err := ctx.endpoint()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(endpoint, ctx.configValue(), exe, daemonLaunchOptions(ctx), stopGracePeriod, startWaitTimeout)
			if err != nil {
				return err
			}

			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Daemon ignored the stop signal, killing process (pid %d)...\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			fmt.Fprintln(stdout, "Daemon restarted")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and request journal status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			endpoint, err := ctx.endpoint()
			if err != nil {
				return err
			}
			snapshot := daemonctl.BuildStatusSnapshot(endpoint, cfg)

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout, renderStatusLine("Endpoint", statusInfo, snapshot.Endpoint, colorize))
			fmt.Fprintln(stdout, renderStatusLine("State", daemonStateKind(snapshot), daemonStateDetail(snapshot), colorize))
			if snapshot.PID > 0 {
				fmt.Fprintln(stdout, renderStatusLine("PID", statusInfo, fmt.Sprintf("%d", snapshot.PID), colorize))
			}
			if snapshot.LogDir != "" {
				fmt.Fprintln(stdout, renderStatusLine("Logs", statusInfo, snapshot.LogDir, colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Request Journal", colorize) {
				fmt.Fprintln(stdout, line)
			}
			return renderJournalStats(cmd, cfg, colorize)
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func daemonStateKind(snapshot daemonctl.StatusSnapshot) statusKind {
	switch {
	case !snapshot.Reachable:
		return statusError
	case snapshot.Failure != "":
		return statusError
	case snapshot.Health == protocol.HealthReady:
		return statusOK
	case snapshot.Health == protocol.HealthBusy:
		return statusOK
	default:
		return statusWarn
	}
}

func daemonStateDetail(snapshot daemonctl.StatusSnapshot) string {
	switch {
	case !snapshot.Reachable:
		return "not running (start with `pink-transcriber start`)"
	case snapshot.Failure != "":
		return snapshot.Failure
	case snapshot.Health == protocol.HealthReady:
		return "ready"
	case snapshot.Health == protocol.HealthBusy:
		return "transcribing"
	case snapshot.Health == protocol.HealthLoading:
		return "loading model"
	default:
		return strings.ToLower(string(snapshot.Health))
	}
}

func renderJournalStats(cmd *cobra.Command, cfg *config.Config, colorize bool) error {
	stdout := cmd.OutOrStdout()
	if cfg == nil || !cfg.Journal.Enabled {
		fmt.Fprintln(stdout, "Journal disabled")
		return nil
	}
	j, err := journal.Open(cfg.Journal.Path, logging.NewNop())
	if err != nil {
		fmt.Fprintln(stdout, renderStatusLine("Journal", statusWarn, fmt.Sprintf("unavailable: %v", err), colorize))
		return nil
	}
	defer j.Close()

	stats, err := j.CountByState(cmd.Context())
	if err != nil {
		return fmt.Errorf("read journal stats: %w", err)
	}
	if stats.Total == 0 {
		fmt.Fprintln(stdout, "No requests recorded")
		return nil
	}

	fmt.Fprint(stdout, renderTable(
		[]string{"State", "Count"},
		journalStateRows(stats),
		[]columnAlignment{alignLeft, alignRight},
	))
	fmt.Fprintln(stdout)
	if stats.AverageDuration > 0 {
		fmt.Fprintf(stdout, "Average transcription time: %s\n", stats.AverageDuration.Round(time.Millisecond))
	}
	return nil
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{}
	if socket := ctx.socketOverride(); socket != "" {
		opts.SocketPath = socket
	}
	if ctx.configFlag != nil {
		if config := strings.TrimSpace(*ctx.configFlag); config != "" {
			opts.ConfigPath = config
		}
	}
	return opts
}
