package backtest

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/mcp-trader/config"
	"github.com/rustyeddy/mcp-trader/market"
)

// SweepResult pairs one strategy of a sweep with its outcome.
type SweepResult struct {
	Strategy config.Strategy `json:"strategy"`
	Result   *Result         `json:"result"`
}

// Sweep runs every strategy over the same candles. Runs share nothing but
// the read-only candle slice, so they execute concurrently on up to
// workers goroutines (GOMAXPROCS when workers <= 0). Results are returned
// in the order of strategies. The first failing run cancels the rest.
func Sweep(ctx context.Context, candles []market.Candle, strategies []config.Strategy, startBalance float64, workers int, opts ...Option) ([]SweepResult, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([]SweepResult, len(strategies))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, s := range strategies {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := Run(candles, s, startBalance, opts...)
			if err != nil {
				return err
			}
			out[i] = SweepResult{Strategy: s, Result: res}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
