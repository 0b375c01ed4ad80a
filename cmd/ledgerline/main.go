// Package main provides the CLI entry point for the Ledgerline assistant
// service.
//
// Ledgerline embeds a conversational assistant that chats and performs
// invoicing operations (invoices, estimates, clients, settings) by delegating
// to a remote model service with function calling.
//
// # Basic Usage
//
// Start the HTTP server:
//
//	ledgerline serve --config ledgerline.yaml
//
// Chat interactively from the terminal:
//
//	ledgerline chat --user demo
//
// # Environment Variables
//
//   - LEDGERLINE_CONFIG: Path to configuration file (default: ledgerline.yaml)
//   - OPENAI_API_KEY: API key for the remote model service
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:           "ledgerline",
		Short:         "Invoicing assistant service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		buildServeCmd(),
		buildChatCmd(),
		buildSessionsCmd(),
		buildVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ledgerline %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// resolveConfigPath applies the LEDGERLINE_CONFIG fallback.
func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("LEDGERLINE_CONFIG"); env != "" {
		return env
	}
	return "ledgerline.yaml"
}

// newLogger builds the process logger from config values.
func newLogger(level, format string, debug bool) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if debug {
		lvl = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
