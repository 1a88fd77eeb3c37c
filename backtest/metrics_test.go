package backtest

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/mcp-trader/config"
	"github.com/rustyeddy/mcp-trader/errs"
	"github.com/rustyeddy/mcp-trader/risk"
	"github.com/rustyeddy/mcp-trader/signals"
)

func trade(entry, exit int, pnl float64, reason risk.ExitReason) risk.TradeRecord {
	return risk.TradeRecord{
		Side:       risk.Long,
		EntryIndex: entry,
		ExitIndex:  exit,
		EntryTime:  start.Add(time.Duration(entry) * time.Minute),
		ExitTime:   start.Add(time.Duration(exit) * time.Minute),
		PnL:        pnl,
		Reason:     reason,
	}
}

func curve(vals ...float64) []EquityPoint {
	out := make([]EquityPoint, len(vals))
	for i, v := range vals {
		out[i] = EquityPoint{Time: start.Add(time.Duration(i) * time.Minute), Balance: v, Equity: v}
	}
	return out
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	trades := []risk.TradeRecord{
		trade(0, 2, 100, risk.ReasonProfitTarget),
		trade(3, 4, 50, risk.ReasonSignal),
		trade(5, 7, -60, risk.ReasonStopLoss),
		trade(8, 9, -20, risk.ReasonTrailingStop),
		trade(10, 11, -10, risk.ReasonStopLoss),
		trade(12, 13, 40, risk.ReasonEndOfData),
	}
	equity := curve(1000, 1100, 1150, 1090, 1070, 1060, 1100)

	m, err := Summarize(trades, equity, 1000)
	require.NoError(t, err)

	assert.Equal(t, 6, m.Trades)
	assert.Equal(t, 3, m.Wins)
	assert.Equal(t, 3, m.Losses)
	assert.InDelta(t, 50.0, m.WinRate, 1e-9)
	assert.InDelta(t, 100.0, m.NetPnL, 1e-9)
	assert.InDelta(t, 190.0/3, m.AvgWin, 1e-9)
	assert.InDelta(t, -30.0, m.AvgLoss, 1e-9)
	assert.Equal(t, 100.0, m.LargestWin)
	assert.Equal(t, -60.0, m.LargestLoss)
	assert.InDelta(t, 190.0/90.0, m.ProfitFactor, 1e-9)
	assert.Equal(t, 2, m.MaxConsecutiveWins)
	assert.Equal(t, 3, m.MaxConsecutiveLosses)
	assert.InDelta(t, 8.0/6, m.AvgBarsHeld, 1e-9)

	assert.InDelta(t, 10.0, m.TotalReturnPct, 1e-9)
	assert.InDelta(t, 90.0, m.MaxDrawdown, 1e-9)
	assert.InDelta(t, 90.0/1150*100, m.MaxDrawdownPct, 1e-9)

	assert.Equal(t, 2, m.ExitReasons[risk.ReasonStopLoss])
	assert.Equal(t, 1, m.ExitReasons[risk.ReasonEndOfData])
	assert.Len(t, m.ExitReasons, len(risk.Reasons))
}

func TestSummarizeEmpty(t *testing.T) {
	t.Parallel()

	m, err := Summarize(nil, curve(500, 500, 500), 500)
	require.NoError(t, err)
	assert.Zero(t, m.Trades)
	assert.Zero(t, m.WinRate)
	assert.Zero(t, m.ProfitFactor)
	assert.Zero(t, m.Sharpe)
	assert.Zero(t, m.TotalReturnPct)
}

func TestSummarizeRejectsInconsistentTrades(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		trades []risk.TradeRecord
	}{
		{"overlap", []risk.TradeRecord{trade(0, 5, 1, risk.ReasonSignal), trade(3, 8, 1, risk.ReasonSignal)}},
		{"reentry on exit bar", []risk.TradeRecord{trade(0, 5, 1, risk.ReasonSignal), trade(5, 8, 1, risk.ReasonSignal)}},
		{"exit before entry", []risk.TradeRecord{trade(4, 2, 1, risk.ReasonSignal)}},
		{"same bar", []risk.TradeRecord{trade(4, 4, 1, risk.ReasonSignal)}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Summarize(tt.trades, nil, 1000)
			assert.ErrorIs(t, err, errs.ErrStateInvariant)
		})
	}
}

func TestSweepMatchesSequentialRuns(t *testing.T) {
	t.Parallel()

	candles := wave(200)
	strats := strategies()

	got, err := Sweep(context.Background(), candles, strats, 5000, 2)
	require.NoError(t, err)
	require.Len(t, got, len(strats))

	for i, s := range strats {
		want, err := Run(candles, s, 5000)
		require.NoError(t, err)
		assert.Equal(t, want, got[i].Result, "strategy %d", i)
		assert.Equal(t, s, got[i].Strategy)
	}
}

func TestSweepStopsOnError(t *testing.T) {
	t.Parallel()

	strats := strategies()
	strats = append(strats, config.Strategy{Position: config.PositionConfig{Size: -1}})

	_, err := Sweep(context.Background(), wave(120), strats, 5000, 0)
	assert.ErrorIs(t, err, errs.ErrConfig)
}

func TestSweepCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Sweep(ctx, wave(120), strategies(), 5000, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteReport(t *testing.T) {
	t.Parallel()

	res, err := Run(closes(100, 100, 100, 105, 105), bare(config.PositionConfig{Size: 100, ProfitTarget: 0.5}), 10000,
		WithSignalSource(signals.Forced{0: signals.Buy}))
	require.NoError(t, err)

	var buf bytes.Buffer
	WriteReport(&buf, res, true)
	out := buf.String()

	assert.Contains(t, out, "Backtest Result")
	assert.Contains(t, out, "10500.00")
	assert.Contains(t, out, "profit_target")
	assert.Contains(t, out, "LONG")

	buf.Reset()
	WriteSweepReport(&buf, []SweepResult{{Result: res}})
	assert.Contains(t, buf.String(), "5.00%")
}
