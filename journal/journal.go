// Package journal persists backtest runs with their trades and equity
// curves so they can be listed, compared and exported later.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/mcp-trader/backtest"
	"github.com/rustyeddy/mcp-trader/risk"
)

var ErrNotFound = errors.New("not found")

// Run mirrors one row of the backtest_runs table.
type Run struct {
	RunID   string    `json:"run_id"`
	Created time.Time `json:"created"`

	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Dataset  string `json:"dataset"`
	Strategy []byte `json:"strategy"` // JSON encoded config.Strategy

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Bars  int       `json:"bars"`

	StartBalance float64 `json:"start_balance"`
	EndBalance   float64 `json:"end_balance"`

	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`
	NetPnL       float64 `json:"net_pnl"`
	ReturnPct    float64 `json:"return_pct"`
	ProfitFactor float64 `json:"profit_factor"`
	MaxDDPct     float64 `json:"max_dd_pct"`
	Sharpe       float64 `json:"sharpe"`
}

// FromResult copies the summary of res into r.
func (r *Run) FromResult(res *backtest.Result) {
	m := res.Metrics
	if n := len(res.Equity); n > 0 {
		r.Start = res.Equity[0].Time
		r.End = res.Equity[n-1].Time
		r.Bars = n
	}
	r.StartBalance = res.StartBalance
	r.EndBalance = res.EndBalance
	r.Trades = m.Trades
	r.Wins = m.Wins
	r.Losses = m.Losses
	r.WinRate = m.WinRate
	r.NetPnL = m.NetPnL
	r.ReturnPct = m.TotalReturnPct
	r.ProfitFactor = m.ProfitFactor
	r.MaxDDPct = m.MaxDrawdownPct
	r.Sharpe = m.Sharpe
}

// Journal records completed runs.
type Journal interface {
	RecordRun(ctx context.Context, run Run, trades []risk.TradeRecord, equity []backtest.EquityPoint) error
	Close() error
}
