package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"pinktranscriber/internal/client"
	"pinktranscriber/internal/protocol"
)

func newRootCommand() *cobra.Command {
	var socketFlag string
	var configFlag string
	var healthFlag bool

	ctx := newCommandContext(&socketFlag, &configFlag)

	rootCmd := &cobra.Command{
		Use:           "pink-transcriber [audio-file]",
		Short:         "Transcribe audio through a resident speech-to-text daemon",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if healthFlag {
				return runHealth(ctx, cmd)
			}
			if len(args) == 0 {
				return cmd.Help()
			}
			return runTranscribe(ctx, cmd, args[0])
		},
	}

	rootCmd.PersistentFlags().StringVar(&socketFlag, "socket", "", "Path to the daemon socket")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.Flags().BoolVar(&healthFlag, "health", false, "Probe daemon availability and exit")

	for _, cmd := range newDaemonCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newDaemonRunCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

func runTranscribe(ctx *commandContext, cmd *cobra.Command, arg string) error {
	path, err := filepath.Abs(arg)
	if err != nil {
		return fmt.Errorf("resolve path %q: %w", arg, err)
	}
	if err := validateAudioFile(path); err != nil {
		return err
	}
	endpoint, err := ctx.endpoint()
	if err != nil {
		return err
	}

	text, err := client.New(endpoint).Transcribe(path)
	if err != nil {
		var remote *protocol.RemoteError
		if errors.As(err, &remote) {
			return fmt.Errorf("transcription failed: %s", remote.Message)
		}
		return wrapDaemonError(err, endpoint)
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

// validateAudioFile mirrors the daemon's request validation so obvious
// mistakes fail without a round trip.
func validateAudioFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("file not found: %s", path)
		}
		return fmt.Errorf("inspect %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a file: %s", path)
	}
	if !protocol.FormatSupported(path) {
		return fmt.Errorf("unsupported format %q (supported: %s)",
			filepath.Ext(path), strings.Join(protocol.SupportedExtensions(), " "))
	}
	return nil
}

func runHealth(ctx *commandContext, cmd *cobra.Command) error {
	endpoint, err := ctx.endpoint()
	if err != nil {
		return err
	}
	health, err := client.New(endpoint).Health()
	if err != nil {
		var remote *protocol.RemoteError
		if errors.As(err, &remote) {
			return fmt.Errorf("daemon unhealthy: %s", remote.Message)
		}
		return wrapDaemonError(err, endpoint)
	}
	switch health {
	case protocol.HealthReady:
		fmt.Fprintln(cmd.OutOrStdout(), string(health))
		return nil
	case protocol.HealthLoading:
		return errors.New("model is loading")
	default:
		return fmt.Errorf("daemon busy or unavailable: %s", health)
	}
}
