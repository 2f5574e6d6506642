package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/postdevai/postdevai/internal/config"
	"github.com/postdevai/postdevai/internal/rpcfacade"
)

func newServeCmd() *cobra.Command {
	var transport string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the memory engine as an MCP server",
		Long: `Start the hybrid memory engine and serve it over MCP so AI coding
assistants can store and retrieve code, events, and embeddings. Blocks
until interrupted (SIGINT/SIGTERM).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), transport)
		},
	}

	serveCmd.Flags().StringVar(&transport, "transport", "stdio", "MCP transport: stdio")

	return serveCmd
}

func runServe(ctx context.Context, transport string) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	mem, closeMemory, err := buildMemory(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeMemory() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mem.Start(ctx)

	server, err := rpcfacade.NewServer(mem)
	if err != nil {
		return fmt.Errorf("starting MCP server: %w", err)
	}
	defer func() { _ = server.Close() }()

	return server.Serve(ctx, transport)
}
