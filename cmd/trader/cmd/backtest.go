package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/mcp-trader/backtest"
	"github.com/rustyeddy/mcp-trader/internal/id"
	"github.com/rustyeddy/mcp-trader/journal"
	"github.com/rustyeddy/mcp-trader/market"
	"github.com/rustyeddy/mcp-trader/service"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run the configured strategy over historical candles",
	Long: `Backtest replays the candles named by data.path (or --data) through the
configured strategy and prints a summary report.

Examples:
  trader backtest --config backtest.yaml
  trader backtest --data data/btcusdt_1m.csv --balance 5000 --trades
  trader backtest --config backtest.yaml --json > result.json`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

var (
	btDataPath string
	btFrom     string
	btTo       string
	btBalance  float64
	btTrades   bool
	btJSON     bool
	btPersist  bool
	btOrgPath  string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btDataPath, "data", "d", "", "candle CSV or Bybit kline JSON (overrides data.path)")
	backtestCmd.Flags().StringVar(&btFrom, "from", "", "first candle time to include (RFC3339 or unix)")
	backtestCmd.Flags().StringVar(&btTo, "to", "", "end of the range, exclusive: candles at or after it are dropped (RFC3339 or unix)")
	backtestCmd.Flags().Float64VarP(&btBalance, "balance", "b", 0, "starting balance (overrides account.balance)")
	backtestCmd.Flags().BoolVar(&btTrades, "trades", false, "list every trade in the report")
	backtestCmd.Flags().BoolVar(&btJSON, "json", false, "print the full result as JSON")
	backtestCmd.Flags().BoolVar(&btPersist, "persist", true, "record the run in the journal")
	backtestCmd.Flags().StringVar(&btOrgPath, "org", "", "also write an Org mode summary to this file")
}

// loadCandles applies the --data/--from/--to overrides to the config.
func loadCandles(path, from, to string) (market.Series, string, error) {
	if path == "" {
		path = cfg.Data.Path
	}
	start, end := cfg.Data.From, cfg.Data.To
	var err error
	if from != "" {
		if start, err = market.ParseTime(from); err != nil {
			return market.Series{}, "", fmt.Errorf("--from: %w", err)
		}
	}
	if to != "" {
		if end, err = market.ParseTime(to); err != nil {
			return market.Series{}, "", fmt.Errorf("--to: %w", err)
		}
	}
	s, err := market.Load(path, start, end)
	return s, path, err
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	series, path, err := loadCandles(btDataPath, btFrom, btTo)
	if err != nil {
		return err
	}
	balance := btBalance
	if balance == 0 {
		balance = cfg.Account.Balance
	}
	symbol := cfg.Account.Symbol
	if series.Symbol != "" {
		symbol = series.Symbol
	}
	interval := cfg.Data.Interval
	if series.Interval != "" {
		interval = series.Interval
	}

	bt := &service.Backtester{Logger: logger}
	if btPersist {
		j, err := openJournal(cfg)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		if j != nil {
			defer j.Close()
			bt.Journal = j
		}
	}
	if rc := openCache(ctx, cfg); rc != nil {
		defer rc.Close()
		bt.Cache = rc
	}

	out, err := bt.Run(ctx, service.Request{
		Symbol:       symbol,
		Interval:     interval,
		Dataset:      path,
		Candles:      series.Candles,
		Strategy:     cfg.Strategy,
		StartBalance: balance,
		Persist:      btPersist,
	})
	if err != nil {
		return err
	}
	logger.Info("backtest finished",
		zap.String("run_id", out.RunID),
		zap.Bool("cached", out.Cached),
		zap.Int("trades", out.Result.Metrics.Trades),
		zap.Float64("return_pct", out.Result.Metrics.TotalReturnPct),
	)

	if btOrgPath != "" {
		strat, err := json.Marshal(cfg.Strategy)
		if err != nil {
			return err
		}
		runID := out.RunID
		if runID == "" {
			runID = id.New()
		}
		run := journal.Run{
			RunID:    runID,
			Created:  time.Now().UTC(),
			Symbol:   symbol,
			Interval: interval,
			Dataset:  path,
			Strategy: strat,
		}
		run.FromResult(out.Result)
		if err := journal.SaveRunOrg(btOrgPath, run, out.Result.Trades); err != nil {
			return fmt.Errorf("write org: %w", err)
		}
	}

	w := cmd.OutOrStdout()
	if btJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	backtest.WriteReport(w, out.Result, btTrades)
	if out.RunID != "" {
		fmt.Fprintf(w, "\nRun ID: %s\n", out.RunID)
	}
	return nil
}
