package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/mcp-trader/backtest"
	"github.com/rustyeddy/mcp-trader/config"
	"github.com/rustyeddy/mcp-trader/errs"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep <strategies.yaml>",
	Short: "Run several strategies over the same candles in parallel",
	Long: `Sweep loads a YAML file holding a list of strategies and backtests each
of them over the configured candles. Results are listed in file order.

Example file:
  strategies:
    - indicators: {sma: {periods: [10, 30]}}
      position: {size: 100, stop_loss: -1}
    - indicators: {ema: {periods: [9, 21]}}
      position: {size: 100, trailing_stop: 0.5}

Example:
  trader sweep grid.yaml --data data/btcusdt_1m.csv --workers 4`,
	Args: cobra.ExactArgs(1),
	RunE: runSweep,
}

var (
	swDataPath string
	swFrom     string
	swTo       string
	swBalance  float64
	swWorkers  int
)

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().StringVarP(&swDataPath, "data", "d", "", "candle CSV or Bybit kline JSON (overrides data.path)")
	sweepCmd.Flags().StringVar(&swFrom, "from", "", "first candle time to include")
	sweepCmd.Flags().StringVar(&swTo, "to", "", "last candle time to include")
	sweepCmd.Flags().Float64VarP(&swBalance, "balance", "b", 0, "starting balance (overrides account.balance)")
	sweepCmd.Flags().IntVarP(&swWorkers, "workers", "w", 0, "parallel runs (0 uses every CPU)")
}

type sweepFile struct {
	Strategies []config.Strategy `yaml:"strategies"`
}

// loadStrategies reads a sweep file, rejecting unknown keys.
func loadStrategies(path string) ([]config.Strategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f sweepFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty document")
		}
		return nil, &errs.ConfigError{Msg: "parse " + path, Err: err}
	}
	if len(f.Strategies) == 0 {
		return nil, errs.Config("strategies", "no strategies in %s", path)
	}
	for i, s := range f.Strategies {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("strategy %d: %w", i, err)
		}
	}
	return f.Strategies, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	strategies, err := loadStrategies(args[0])
	if err != nil {
		return err
	}
	series, _, err := loadCandles(swDataPath, swFrom, swTo)
	if err != nil {
		return err
	}
	balance := swBalance
	if balance == 0 {
		balance = cfg.Account.Balance
	}

	logger.Info("sweep start", zap.Int("strategies", len(strategies)), zap.Int("bars", series.Len()))
	results, err := backtest.Sweep(cmd.Context(), series.Candles, strategies, balance, swWorkers, backtest.WithLogger(logger))
	if err != nil {
		return err
	}
	backtest.WriteSweepReport(cmd.OutOrStdout(), results)
	return nil
}
