package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/postdevai/postdevai/internal/config"
	"github.com/postdevai/postdevai/internal/dashboard"
)

func newDashboardCmd() *cobra.Command {
	var plain bool
	var noColor bool

	dashboardCmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Launch a live terminal dashboard over the memory engine's metrics",
		Long: `Open the memory engine and render a read-only, continuously polling
view of its metrics. Falls back to plain line-per-tick output when
stdout is not a terminal or --plain is set. Press q to quit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDashboard(cmd, plain, noColor)
		},
	}

	dashboardCmd.Flags().BoolVar(&plain, "plain", false, "force plain text output")
	dashboardCmd.Flags().BoolVar(&noColor, "no-color", false, "disable color output")

	return dashboardCmd
}

func runDashboard(cmd *cobra.Command, plain, noColor bool) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	mem, closeMemory, err := buildMemory(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeMemory() }()

	ctx := cmd.Context()
	mem.Start(ctx)

	dashCfg := dashboard.NewConfig(cmd.OutOrStdout(),
		dashboard.WithForcePlain(plain),
		dashboard.WithNoColor(noColor))

	return dashboard.NewRenderer(dashCfg).Run(ctx, mem)
}
