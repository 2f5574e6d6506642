package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/postdevai/postdevai/internal/config"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show memory engine metrics",
		Long: `Open the memory engine and report a snapshot of its metrics: entry
counts for the RAM lake and persistent store, cache hit rate, and last
sync time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, jsonOutput)
		},
	}

	statusCmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return statusCmd
}

func runStatus(cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	mem, closeMemory, err := buildMemory(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeMemory() }()

	metrics := mem.Metrics()

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(metrics)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Total entries:      %d\n", metrics.TotalEntries)
	_, _ = fmt.Fprintf(out, "RAM lake entries:    %d\n", metrics.RAMEntries)
	_, _ = fmt.Fprintf(out, "Persistent entries:  %d\n", metrics.PersistentEntries)
	_, _ = fmt.Fprintf(out, "Cache hit rate:      %.1f%%\n", metrics.CacheHitRate*100)
	if metrics.HasSynced {
		_, _ = fmt.Fprintf(out, "Last sync:           %s\n", metrics.LastSync.Format("2006-01-02T15:04:05Z07:00"))
	} else {
		_, _ = fmt.Fprintln(out, "Last sync:           never")
	}

	return nil
}
