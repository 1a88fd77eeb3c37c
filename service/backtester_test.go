package service

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/mcp-trader/cache"
	"github.com/rustyeddy/mcp-trader/config"
	"github.com/rustyeddy/mcp-trader/errs"
	"github.com/rustyeddy/mcp-trader/journal"
	"github.com/rustyeddy/mcp-trader/market"
)

var t0 = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

func series(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		v := 100 + 8*math.Sin(float64(i)/5) + 3*math.Cos(float64(i)/2.3)
		out[i] = market.Candle{
			Time: t0.Add(time.Duration(i) * time.Minute),
			Open: v, High: v + 0.5, Low: v - 0.5, Close: v, Volume: 1000,
		}
	}
	return out
}

func request() Request {
	return Request{
		Symbol:   "BTCUSDT",
		Interval: "1",
		Dataset:  "memory",
		Candles:  series(200),
		Strategy: config.Strategy{
			Indicators: config.IndicatorConfig{SMA: &config.MovingAverageConfig{Periods: []int{3, 8}}},
			Position:   config.PositionConfig{Size: 100, ProfitTarget: 2, StopLoss: -1},
		},
		StartBalance: 10000,
	}
}

func TestRunWithoutBackends(t *testing.T) {
	t.Parallel()

	var b Backtester
	out, err := b.Run(context.Background(), request())
	require.NoError(t, err)
	assert.False(t, out.Cached)
	assert.Empty(t, out.RunID)
	assert.Len(t, out.Result.Equity, 200)
	assert.NotEmpty(t, out.Result.Trades)
}

func TestRunUsesCache(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	c := cache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "bt:", time.Hour)
	t.Cleanup(func() { _ = c.Close() })
	b := Backtester{Cache: c}
	ctx := context.Background()

	first, err := b.Run(ctx, request())
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Len(t, mr.Keys(), 1)

	second, err := b.Run(ctx, request())
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Result.EndBalance, second.Result.EndBalance)
	assert.Equal(t, first.Result.Metrics, second.Result.Metrics)
	assert.Len(t, second.Result.Trades, len(first.Result.Trades))

	req := request()
	req.StartBalance = 5000
	third, err := b.Run(ctx, req)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Len(t, mr.Keys(), 2)
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string, any) (bool, error) { return false, errors.New("down") }
func (brokenCache) Put(context.Context, string, any) error          { return errors.New("down") }

func TestRunSurvivesCacheFailure(t *testing.T) {
	t.Parallel()

	b := Backtester{Cache: brokenCache{}}
	out, err := b.Run(context.Background(), request())
	require.NoError(t, err)
	assert.False(t, out.Cached)
}

func TestRunPersists(t *testing.T) {
	t.Parallel()

	j, err := journal.NewSQLite(filepath.Join(t.TempDir(), "bt.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	b := Backtester{Journal: j, now: func() time.Time { return t0 }}
	req := request()
	req.Persist = true
	ctx := context.Background()

	out, err := b.Run(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, out.RunID)

	run, err := j.GetRun(ctx, out.RunID)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", run.Symbol)
	assert.Equal(t, "memory", run.Dataset)
	assert.True(t, run.Created.Equal(t0))
	assert.Equal(t, out.Result.Metrics.Trades, run.Trades)
	assert.Contains(t, string(run.Strategy), `"periods":[3,8]`)

	trades, err := j.ListTradesByRunID(ctx, out.RunID)
	require.NoError(t, err)
	assert.Len(t, trades, len(out.Result.Trades))

	req.Persist = false
	out, err = b.Run(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, out.RunID)
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	var b Backtester

	req := request()
	req.StartBalance = 0
	_, err := b.Run(context.Background(), req)
	assert.ErrorIs(t, err, errs.ErrConfig)

	req = request()
	req.Candles = nil
	_, err = b.Run(context.Background(), req)
	assert.ErrorIs(t, err, errs.ErrData)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.Run(ctx, request())
	assert.ErrorIs(t, err, context.Canceled)
}
