package journal

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/mcp-trader/backtest"
	"github.com/rustyeddy/mcp-trader/risk"
)

var t0 = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	return j, path
}

func fixture(id string, created time.Time) (Run, []risk.TradeRecord, []backtest.EquityPoint) {
	trades := []risk.TradeRecord{
		{
			Side: risk.Long, EntryIndex: 1, ExitIndex: 3,
			EntryTime: t0.Add(time.Minute), ExitTime: t0.Add(3 * time.Minute),
			EntryPrice: 100, ExitPrice: 105, Quantity: 1, Notional: 100,
			PnL: 5, PnLPct: 5, Reason: risk.ReasonProfitTarget,
		},
		{
			Side: risk.Short, EntryIndex: 4, ExitIndex: 6,
			EntryTime: t0.Add(4 * time.Minute), ExitTime: t0.Add(6 * time.Minute),
			EntryPrice: 105, ExitPrice: 106, Quantity: 1, Notional: 105,
			PnL: -1, PnLPct: -0.952, Reason: risk.ReasonStopLoss,
		},
	}
	equity := make([]backtest.EquityPoint, 7)
	bal := 1000.0
	for i := range equity {
		switch i {
		case 3:
			bal += 5
		case 6:
			bal -= 1
		}
		equity[i] = backtest.EquityPoint{Time: t0.Add(time.Duration(i) * time.Minute), Balance: bal, Equity: bal}
	}

	run := Run{
		RunID:    id,
		Created:  created,
		Symbol:   "BTCUSDT",
		Interval: "1",
		Dataset:  "testdata/btc.csv",
		Strategy: []byte(`{"position":{"size":100}}`),
	}
	run.FromResult(&backtest.Result{
		StartBalance: 1000,
		EndBalance:   1004,
		Trades:       trades,
		Equity:       equity,
		Metrics: backtest.Metrics{
			TotalReturnPct: 0.4, NetPnL: 4, Trades: 2, Wins: 1, Losses: 1,
			WinRate: 50, ProfitFactor: 5, MaxDrawdownPct: 0.1, Sharpe: 0.25,
		},
	})
	return run, trades, equity
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table'`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	assert.True(t, found["backtest_runs"])
	assert.True(t, found["trades"])
	assert.True(t, found["equity"])
}

func TestRecordAndGetRun(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()
	run, trades, equity := fixture("run-1", t0.Add(time.Hour))

	require.NoError(t, j.RecordRun(ctx, run, trades, equity))

	got, err := j.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", got.Symbol)
	assert.Equal(t, "1", got.Interval)
	assert.Equal(t, run.Strategy, got.Strategy)
	assert.True(t, got.Created.Equal(run.Created))
	assert.True(t, got.Start.Equal(t0))
	assert.True(t, got.End.Equal(t0.Add(6*time.Minute)))
	assert.Equal(t, 7, got.Bars)
	assert.Equal(t, 2, got.Trades)
	assert.Equal(t, 1004.0, got.EndBalance)
	assert.Equal(t, 0.25, got.Sharpe)

	gotTrades, err := j.ListTradesByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, gotTrades, 2)
	assert.Equal(t, risk.Long, gotTrades[0].Side)
	assert.Equal(t, risk.Short, gotTrades[1].Side)
	assert.Equal(t, risk.ReasonStopLoss, gotTrades[1].Reason)
	assert.Equal(t, 4, gotTrades[1].EntryIndex)
	assert.Equal(t, -0.952, gotTrades[1].PnLPct)
	assert.True(t, gotTrades[0].ExitTime.Equal(trades[0].ExitTime))

	gotEquity, err := j.ListEquityByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, gotEquity, len(equity))
	assert.Equal(t, 1005.0, gotEquity[3].Balance)
	assert.Equal(t, 1004.0, gotEquity[6].Equity)
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	_, err := j.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordRunDuplicateRollsBack(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()
	run, trades, equity := fixture("dup", t0)

	require.NoError(t, j.RecordRun(ctx, run, trades, equity))
	assert.Error(t, j.RecordRun(ctx, run, trades, equity))

	gotTrades, err := j.ListTradesByRunID(ctx, "dup")
	require.NoError(t, err)
	assert.Len(t, gotTrades, 2)
}

func TestListRunsNewestFirst(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		run, trades, equity := fixture(id, t0.Add(time.Duration(i)*time.Hour))
		require.NoError(t, j.RecordRun(ctx, run, trades, equity))
	}

	all, err := j.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].RunID)
	assert.Equal(t, "a", all[2].RunID)

	two, err := j.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestDeleteRunCascades(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()
	run, trades, equity := fixture("gone", t0)
	require.NoError(t, j.RecordRun(ctx, run, trades, equity))

	require.NoError(t, j.DeleteRun(ctx, "gone"))
	assert.ErrorIs(t, j.DeleteRun(ctx, "gone"), ErrNotFound)

	gotTrades, err := j.ListTradesByRunID(ctx, "gone")
	require.NoError(t, err)
	assert.Empty(t, gotTrades)

	gotEquity, err := j.ListEquityByRunID(ctx, "gone")
	require.NoError(t, err)
	assert.Empty(t, gotEquity)
}

func TestExportOrg(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()
	run, trades, equity := fixture("org-1", t0)
	require.NoError(t, j.RecordRun(ctx, run, trades, equity))

	out, err := j.ExportOrg(ctx, "org-1")
	require.NoError(t, err)
	assert.Contains(t, out, ":RUN_ID:      org-1")
	assert.Contains(t, out, "| 1 | SHORT |")
	assert.Contains(t, out, "stop_loss")

	_, err = j.ExportOrg(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExportCSV(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()
	run, trades, equity := fixture("csv-1", t0)
	require.NoError(t, j.RecordRun(ctx, run, trades, equity))

	var tb, eb bytes.Buffer
	require.NoError(t, j.ExportCSV(ctx, "csv-1", &tb, &eb))
	assert.Contains(t, tb.String(), "csv-1,1,SHORT,")
	assert.Contains(t, eb.String(), "csv-1,6,2025-04-01T00:06:00Z,1004,1004")

	assert.ErrorIs(t, j.ExportCSV(ctx, "missing", &tb, &eb), ErrNotFound)
}
