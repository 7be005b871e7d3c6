// Package cmd implements the command-line interface for threatmon.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"threatmon/config"

	"github.com/spf13/cobra"
)

// sampleLogLine is sent when threatmon runs without a subcommand.
const sampleLogLine = "Method: GET, URL: https://example.com/api/test, Body: N/A, Timestamp: 2025-10-19T14:00:00Z"

var (
	configPath   string
	endpointFlag string
	timeoutFlag  time.Duration
	recordFlag   bool
	verboseFlag  bool

	// settings is the effective configuration for the running command.
	settings config.Config
)

// rootCmd sends the sample log line when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "threatmon",
	Short: "Send HTTP request logs to a remote analysis endpoint.",
	Long: `Send HTTP request logs to a remote analysis endpoint and print what it returns.
Run without a subcommand to send a sample log line as a smoke test.`,
	Args:              cobra.NoArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadSettings,
	RunE:              runSend,
}

func init() {
	// Disable the built-in help command since we have our own
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default <user config dir>/threatmon/config.yaml)")
	flags.StringVar(&endpointFlag, "endpoint", "", "analysis endpoint URL")
	flags.DurationVar(&timeoutFlag, "timeout", 0, "request timeout, 0 waits indefinitely")
	flags.BoolVar(&recordFlag, "record", false, "record the dispatch in the local history")
	flags.BoolVarP(&verboseFlag, "verbose", "v", false, "log debug output to stderr")
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadSettings(cmd *cobra.Command, args []string) error {
	level := slog.LevelWarn
	if verboseFlag {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

	path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		cfg.Endpoint = endpointFlag
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeoutFlag
	}
	if flags.Changed("record") {
		cfg.History.Enabled = recordFlag
	}

	slog.Debug("configuration loaded", "path", path, "endpoint", cfg.Endpoint, "history", cfg.History.Enabled)
	settings = cfg
	return nil
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

func runSend(cmd *cobra.Command, args []string) error {
	return dispatch(cmd.Context(), cmd.OutOrStdout(), sampleLogLine)
}
