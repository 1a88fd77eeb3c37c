package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/mcp-trader/cache"
	"github.com/rustyeddy/mcp-trader/config"
	"github.com/rustyeddy/mcp-trader/internal/logging"
	"github.com/rustyeddy/mcp-trader/journal"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "Backtest indicator strategies on a single symbol",
	Long: `Trader replays OHLCV candles through a rule based indicator strategy
and reports the resulting trades, equity curve and performance metrics.

It provides tools for:
  - Running a backtest from a config file
  - Sweeping several strategies over the same candles
  - Inspecting indicator values
  - Browsing and exporting the run journal
  - Serving the backtester to MCP clients over stdio`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	cfgFile  string
	envFile  string
	logLevel string

	cfg    *config.Config
	logger = zap.NewNop()
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); defaults are used when empty")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file with TRADER_* overrides")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")
}

// setup loads configuration and the logger before any subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnv(envFile); err != nil {
		return err
	}

	c := config.Default()
	if cfgFile != "" {
		loaded, err := config.LoadFromFile(cfgFile)
		if err != nil {
			return err
		}
		c = loaded
	}
	c.ApplyEnv()
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if err := c.Validate(); err != nil {
		return err
	}

	l, err := logging.NewWriter(cmd.ErrOrStderr(), c.Log.Level, c.Log.Format)
	if err != nil {
		return err
	}
	cfg, logger = c, l
	return nil
}

// openJournal returns nil when journaling is switched off.
func openJournal(c *config.Config) (journal.Journal, error) {
	switch c.Journal.Type {
	case "sqlite":
		return journal.NewSQLite(c.Journal.DBPath)
	case "csv":
		return journal.NewCSV(c.Journal.TradesFile, c.Journal.EquityFile)
	}
	return nil, nil
}

// openCache returns nil when the cache is disabled or unreachable.
func openCache(ctx context.Context, c *config.Config) *cache.Cache {
	if !c.Cache.Enabled {
		return nil
	}
	rc, err := cache.Dial(ctx, c.Cache)
	if err != nil {
		logger.Warn("result cache disabled", zap.Error(err))
		return nil
	}
	return rc
}
