package mcpserver

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rustyeddy/mcp-trader/errs"
	"github.com/rustyeddy/mcp-trader/indicators"
	"github.com/rustyeddy/mcp-trader/market"
	"github.com/rustyeddy/mcp-trader/service"
)

type tools struct {
	bt  *service.Backtester
	cfg ServerConfig
}

func registerTools(server *mcp.Server, t *tools) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_backtest",
		Description: "Run a single-symbol backtest and return its metrics",
	}, t.runBacktest)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "compute_indicators",
		Description: "Compute technical indicators over a candle file and return the latest values",
	}, t.computeIndicators)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "validate_config",
		Description: "Check a strategy document without running it",
	}, t.validateConfig)
}

func (t *tools) loadCandles(path string) ([]market.Candle, error) {
	if path == "" {
		return nil, errs.Data("candles_path is required")
	}
	if dir := t.cfg.DataDir; dir != "" {
		rel := path
		if filepath.IsAbs(path) {
			var err error
			if rel, err = filepath.Rel(dir, path); err != nil {
				rel = ".."
			}
		}
		if !filepath.IsLocal(rel) {
			return nil, errs.Data("candles_path %q is outside the data directory", path)
		}
		path = filepath.Join(dir, rel)
	}
	s, err := market.Load(path, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	return s.Candles, nil
}

func (t *tools) runBacktest(ctx context.Context, _ *mcp.CallToolRequest, in runBacktestInput) (*mcp.CallToolResult, runBacktestOutput, error) {
	if t.bt == nil {
		return nil, runBacktestOutput{}, fmt.Errorf("backtester unavailable")
	}

	var (
		candles []market.Candle
		dataset = in.CandlesPath
		err     error
	)
	switch {
	case in.CandlesPath != "":
		candles, err = t.loadCandles(in.CandlesPath)
	case len(in.Candles) > 0:
		dataset = "inline"
		candles, err = candlesFrom(in.Candles)
	default:
		err = errs.Data("either candles_path or candles is required")
	}
	if err != nil {
		return nil, runBacktestOutput{}, err
	}

	strategy, err := strategyFrom(in.Strategy, t.cfg.Defaults.Strategy)
	if err != nil {
		return nil, runBacktestOutput{}, err
	}

	balance := in.InitialBalance
	if balance == 0 {
		balance = t.cfg.Defaults.Account.Balance
	}
	symbol := in.Symbol
	if symbol == "" {
		symbol = t.cfg.Defaults.Account.Symbol
	}

	out, err := t.bt.Run(ctx, service.Request{
		Symbol:       symbol,
		Interval:     t.cfg.Defaults.Data.Interval,
		Dataset:      dataset,
		Candles:      candles,
		Strategy:     strategy,
		StartBalance: balance,
		Persist:      in.Persist,
	})
	if err != nil {
		return nil, runBacktestOutput{}, err
	}

	res := runBacktestOutput{
		RunID:        out.RunID,
		Cached:       out.Cached,
		Bars:         len(candles),
		StartBalance: out.Result.StartBalance,
		EndBalance:   out.Result.EndBalance,
		Metrics:      out.Result.Metrics,
	}
	if in.IncludeTrades {
		res.Trades = tradesOut(out.Result)
	}
	return nil, res, nil
}

func (t *tools) computeIndicators(ctx context.Context, _ *mcp.CallToolRequest, in computeIndicatorsInput) (*mcp.CallToolResult, computeIndicatorsOutput, error) {
	candles, err := t.loadCandles(in.CandlesPath)
	if err != nil {
		return nil, computeIndicatorsOutput{}, err
	}
	cfg, err := indicatorsFrom(in.Indicators, t.cfg.Defaults.Strategy.Indicators)
	if err != nil {
		return nil, computeIndicatorsOutput{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, computeIndicatorsOutput{}, err
	}
	set, err := indicators.Evaluate(candles, cfg)
	if err != nil {
		return nil, computeIndicatorsOutput{}, err
	}

	n := len(candles)
	from := n - normalizeLast(in.Last)
	if from < 0 {
		from = 0
	}

	out := computeIndicatorsOutput{Bars: n, Times: []string{}, Series: []seriesOutput{}}
	for _, c := range candles[from:] {
		out.Times = append(out.Times, c.Time.UTC().Format(time.RFC3339))
	}
	for _, name := range set.Names() {
		s, _ := set.Get(name)
		start := max(from, s.Warmup)
		so := seriesOutput{Name: name, Warmup: s.Warmup, Offset: start - from, Values: []float64{}}
		for i := start; i < n; i++ {
			so.Values = append(so.Values, s.Values[i])
		}
		out.Series = append(out.Series, so)
	}
	return nil, out, nil
}

func (t *tools) validateConfig(_ context.Context, _ *mcp.CallToolRequest, in validateConfigInput) (*mcp.CallToolResult, validateConfigOutput, error) {
	if in.Strategy == nil {
		return nil, invalid(errs.Config("strategy", "is required")), nil
	}
	s, err := strategyFrom(in.Strategy, t.cfg.Defaults.Strategy)
	if err != nil {
		return nil, invalid(err), nil
	}
	return nil, validateConfigOutput{Valid: true, Warmup: indicators.Warmup(s.Indicators)}, nil
}
