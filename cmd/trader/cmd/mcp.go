package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/mcp-trader/internal/mcpserver"
	"github.com/rustyeddy/mcp-trader/service"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the backtester to MCP clients over stdio",
	Long: `Mcp starts a Model Context Protocol server on stdin/stdout exposing the
run_backtest, compute_indicators and validate_config tools. The loaded
configuration supplies defaults for calls that omit a strategy,
balance or symbol.

Logs go to stderr so they do not interfere with the protocol stream.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

var mcpDataDir string

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().StringVar(&mcpDataDir, "data-dir", "", "directory candles_path values are resolved against and confined to")
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	bt := &service.Backtester{Logger: logger}
	j, err := openJournal(cfg)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if j != nil {
		defer j.Close()
		bt.Journal = j
	}
	if rc := openCache(ctx, cfg); rc != nil {
		defer rc.Close()
		bt.Cache = rc
	}

	srv := mcpserver.NewServer(bt, mcpserver.ServerConfig{
		Defaults: *cfg,
		DataDir:  mcpDataDir,
		Version:  Version,
		Logger:   logger,
	})
	logger.Info("mcp server listening on stdio")
	return mcpserver.RunStdio(ctx, srv)
}
