package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/postdevai/postdevai/internal/logging"
)

func newLogsCmd() *cobra.Command {
	var (
		follow  bool
		lines   int
		level   string
		filter  string
		noColor bool
		logFile string
	)

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "View postdevaid server logs",
		Long: `Show or follow the postdevaid server log.

By default, shows the last 50 lines. Use -f to follow new entries in
real time, like tail -f.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, logsOptions{
				follow:  follow,
				lines:   lines,
				level:   level,
				filter:  filter,
				noColor: noColor,
				logFile: logFile,
			})
		},
	}

	logsCmd.Flags().BoolVarP(&follow, "follow", "f", false, "follow log output (like tail -f)")
	logsCmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of lines to show")
	logsCmd.Flags().StringVar(&level, "level", "", "filter by log level (debug|info|warn|error)")
	logsCmd.Flags().StringVar(&filter, "filter", "", "filter by message pattern (regex)")
	logsCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	logsCmd.Flags().StringVar(&logFile, "file", "", "path to log file (overrides the default location)")

	return logsCmd
}

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	noColor bool
	logFile string
}

func runLogs(cmd *cobra.Command, opts logsOptions) error {
	path, err := logging.FindLogFile(opts.logFile)
	if err != nil {
		return err
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		pattern, err = regexp.Compile(opts.filter)
		if err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		NoColor: opts.noColor,
	}, cmd.OutOrStdout())

	out := cmd.ErrOrStderr()
	fmt.Fprintf(out, "Log file: %s\n", path)
	if opts.follow {
		fmt.Fprintln(out, "Following... (Ctrl+C to stop)")
	}
	fmt.Fprintln(out, "---")

	if opts.follow {
		return runFollow(cmd.Context(), viewer, path)
	}

	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)
	return nil
}

func runFollow(ctx context.Context, viewer *logging.Viewer, path string) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	entries := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)

	go func() { errCh <- viewer.Follow(ctx, path, entries) }()

	for {
		select {
		case entry := <-entries:
			fmt.Println(viewer.FormatEntry(entry))
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return nil
		}
	}
}
