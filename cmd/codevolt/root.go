package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"codevolt/internal/logging"
)

var (
	logLevel  string
	logFormat string
	logOutput string
)

var rootCmd = &cobra.Command{
	Use:   "codevolt",
	Short: "CodeVolt e-bike accident detection demo",
	Long:  "codevolt simulates e-bike sensor telemetry, detects crash conditions and walks through the SOS dispatch flow.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger builds the process logger. quiet discards output unless a log
// file was requested, so the TUI owns the terminal.
func newLogger(quiet bool) (*slog.Logger, func(), error) {
	var out io.Writer = os.Stderr
	cleanup := func() {}
	switch {
	case logOutput != "":
		f, err := os.OpenFile(logOutput, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		out = f
		cleanup = func() { f.Close() }
	case quiet:
		return logging.Discard(), cleanup, nil
	}
	l, err := logging.New(logging.Options{Level: logLevel, Format: logFormat, Output: out})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return l, cleanup, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text or json)")
	rootCmd.PersistentFlags().StringVar(&logOutput, "log-output", "", "Write process logs to this file instead of STDERR")
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(dashboardCmd)
}
