// Package service ties candle data, the backtest engine, the result
// cache and the journal together for the CLI and the MCP server.
package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/mcp-trader/backtest"
	"github.com/rustyeddy/mcp-trader/cache"
	"github.com/rustyeddy/mcp-trader/config"
	"github.com/rustyeddy/mcp-trader/internal/id"
	"github.com/rustyeddy/mcp-trader/journal"
	"github.com/rustyeddy/mcp-trader/market"
)

// ResultCache stores results by key. *cache.Cache implements it.
type ResultCache interface {
	Get(ctx context.Context, key string, v any) (bool, error)
	Put(ctx context.Context, key string, v any) error
}

var _ ResultCache = (*cache.Cache)(nil)

type Request struct {
	Symbol       string
	Interval     string
	Dataset      string
	Candles      []market.Candle
	Strategy     config.Strategy
	StartBalance float64

	// Persist records the run in the journal.
	Persist bool
}

type Outcome struct {
	RunID  string           `json:"run_id,omitempty"`
	Cached bool             `json:"cached"`
	Result *backtest.Result `json:"result"`
}

// Backtester runs requests. Journal, Cache and Logger are optional.
type Backtester struct {
	Journal journal.Journal
	Cache   ResultCache
	Logger  *zap.Logger

	now func() time.Time
}

func (b *Backtester) log() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

func (b *Backtester) clock() time.Time {
	if b.now != nil {
		return b.now()
	}
	return time.Now().UTC()
}

// Run executes req, reusing a cached result for identical inputs.
func (b *Backtester) Run(ctx context.Context, req Request) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := b.log().With(zap.String("symbol", req.Symbol), zap.Int("bars", len(req.Candles)))

	out := &Outcome{}
	var key string
	if b.Cache != nil {
		k, err := cache.Key(req.Candles, req.Strategy, req.StartBalance)
		if err != nil {
			return nil, err
		}
		key = k
		var res backtest.Result
		hit, err := b.Cache.Get(ctx, key, &res)
		if err != nil {
			log.Warn("cache lookup failed", zap.Error(err))
		} else if hit {
			log.Debug("cache hit", zap.String("key", key))
			out.Result, out.Cached = &res, true
		}
	}

	if out.Result == nil {
		res, err := backtest.Run(req.Candles, req.Strategy, req.StartBalance, backtest.WithLogger(log))
		if err != nil {
			return nil, err
		}
		out.Result = res
		if b.Cache != nil {
			if err := b.Cache.Put(ctx, key, res); err != nil {
				log.Warn("cache store failed", zap.Error(err))
			}
		}
	}

	if req.Persist && b.Journal != nil {
		runID, err := b.record(ctx, req, out.Result)
		if err != nil {
			return nil, err
		}
		out.RunID = runID
		log.Info("run recorded", zap.String("run_id", runID))
	}
	return out, nil
}

func (b *Backtester) record(ctx context.Context, req Request, res *backtest.Result) (string, error) {
	strat, err := json.Marshal(req.Strategy)
	if err != nil {
		return "", err
	}
	now := b.clock()
	run := journal.Run{
		RunID:    id.At(now),
		Created:  now,
		Symbol:   req.Symbol,
		Interval: req.Interval,
		Dataset:  req.Dataset,
		Strategy: strat,
	}
	run.FromResult(res)
	if err := b.Journal.RecordRun(ctx, run, res.Trades, res.Equity); err != nil {
		return "", err
	}
	return run.RunID, nil
}
