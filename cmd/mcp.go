package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/treewatch/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose the live session to AI agents over MCP",
	Long: `Connects to the search backend and starts a Model Context Protocol server
on stdio. Agents can read the state and tree, inspect and select nodes, start
runs and wait for their outcome. Logs go to stderr or the configured log file.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closer, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer closer.Close()

	sess, err := newSession(cfg, logger, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess.Start(ctx)
	defer sess.Stop()

	mcpserver.Version = Version
	logger.Info().Str("backend", cfg.BackendURL).Msg("MCP server started on stdio")

	return mcpserver.NewServer(sess).Serve()
}
