// Package cmd provides the CLI commands for postdevaid.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/postdevai/postdevai/internal/logging"
	"github.com/postdevai/postdevai/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the postdevaid CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "postdevaid",
		Short: "Hybrid tiered memory engine for developer AI assistants",
		Long: `postdevaid is a local-first hybrid memory engine: a size-budgeted
in-memory RAM lake backed by a durable persistent store, exposed to AI
coding assistants over MCP.`,
		Version: version.Version,
	}

	root.SetVersionTemplate("postdevaid version {{.Version}}\n")

	root.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging to ~/.postdevai/logs/")
	root.PersistentPreRunE = startLogging
	root.PersistentPostRunE = stopLogging

	root.AddCommand(newServeCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newDashboardCmd())
	root.AddCommand(newVersionCmd())
	root.AddCommand(newLogsCmd())

	return root
}

func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}

	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("setting up debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
