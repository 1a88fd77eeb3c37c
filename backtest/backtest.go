// Package backtest replays a candle sequence through the signal engine and
// position tracker and reports what happened.
//
// The fill model is fixed: entries and exits happen at the close of the
// bar that triggered them. One position at a time, no pyramiding.
package backtest

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/mcp-trader/config"
	"github.com/rustyeddy/mcp-trader/errs"
	"github.com/rustyeddy/mcp-trader/indicators"
	"github.com/rustyeddy/mcp-trader/market"
	"github.com/rustyeddy/mcp-trader/risk"
	"github.com/rustyeddy/mcp-trader/signals"
)

// EquityPoint is the account marked at one bar's close.
type EquityPoint struct {
	Time    time.Time `json:"time"`
	Balance float64   `json:"balance"` // realized only
	Equity  float64   `json:"equity"`  // balance plus open P&L
}

// Result is the outcome of one run. It is created once and only read
// afterwards.
type Result struct {
	StartBalance float64            `json:"start_balance"`
	EndBalance   float64            `json:"end_balance"`
	Trades       []risk.TradeRecord `json:"trades"`
	Equity       []EquityPoint      `json:"equity"`
	Metrics      Metrics            `json:"metrics"`
}

type options struct {
	log    *zap.Logger
	source signals.Source
}

type Option func(*options)

// WithLogger routes run events to l.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithSignalSource replaces the indicator rule engine with src. Indicators
// are not evaluated and filters are not applied unless src does so.
func WithSignalSource(src signals.Source) Option {
	return func(o *options) { o.source = src }
}

// Run executes one backtest. Inputs are validated before the first bar:
// a bad strategy or balance is a ConfigError, bad or too few candles a
// DataError. A StateInvariantError means the engine broke its own rules
// and no result is returned.
func Run(candles []market.Candle, strategy config.Strategy, startBalance float64, opts ...Option) (*Result, error) {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	if err := strategy.Validate(); err != nil {
		return nil, err
	}
	if startBalance <= 0 || math.IsInf(startBalance, 0) || math.IsNaN(startBalance) {
		return nil, errs.Config("initial_balance", "must be a positive number, got %v", startBalance)
	}
	if err := market.Validate(candles); err != nil {
		return nil, err
	}

	src := o.source
	if src == nil {
		set, err := indicators.Evaluate(candles, strategy.Indicators)
		if err != nil {
			return nil, err
		}
		src = signals.NewEngine(strategy, set)
	}

	r := &run{
		log:      o.log,
		tracker:  risk.NewTracker(strategy.Position),
		shorts:   strategy.Signals.ShortsAllowed(),
		balance:  startBalance,
		trades:   []risk.TradeRecord{},
		equity:   make([]EquityPoint, 0, len(candles)),
		lastExit: -1,
	}

	o.log.Debug("backtest start",
		zap.Int("bars", len(candles)),
		zap.Time("from", candles[0].Time),
		zap.Time("to", candles[len(candles)-1].Time),
		zap.Float64("balance", startBalance))

	last := len(candles) - 1
	for i, c := range candles {
		if err := r.step(i, c, src.At, i == last); err != nil {
			return nil, err
		}
	}

	if r.tracker.State() == risk.Open {
		if err := r.close(last, candles[last], risk.ReasonEndOfData); err != nil {
			return nil, err
		}
		r.equity[last].Balance = r.balance
	}

	if len(r.equity) != len(candles) {
		return nil, errs.Invariant("equity curve has %d points for %d candles", len(r.equity), len(candles))
	}

	m, err := Summarize(r.trades, r.equity, startBalance)
	if err != nil {
		return nil, err
	}

	o.log.Info("backtest complete",
		zap.Int("trades", m.Trades),
		zap.Float64("return_pct", m.TotalReturnPct),
		zap.Float64("max_drawdown_pct", m.MaxDrawdownPct),
		zap.Float64("end_balance", r.balance))

	return &Result{
		StartBalance: startBalance,
		EndBalance:   r.balance,
		Trades:       r.trades,
		Equity:       r.equity,
		Metrics:      m,
	}, nil
}

// run holds the accumulators of a single Run call.
type run struct {
	log      *zap.Logger
	tracker  *risk.Tracker
	shorts   bool
	balance  float64
	trades   []risk.TradeRecord
	equity   []EquityPoint
	lastExit int
}

// step advances one bar. At most one transition happens per bar: a bar
// that closes a position cannot open the next one.
func (r *run) step(i int, c market.Candle, signalAt func(int, market.Candle) signals.Signal, final bool) error {
	closed := false

	if reason, hit := r.tracker.Update(i, c); hit {
		if err := r.close(i, c, reason); err != nil {
			return err
		}
		closed = true
	}

	sig := signalAt(i, c)

	if pos, ok := r.tracker.Position(); ok && opposes(sig, pos.Side) && i > pos.EntryIndex {
		if err := r.close(i, c, risk.ReasonSignal); err != nil {
			return err
		}
		closed = true
	}

	// A liquidated account has nothing left to commit.
	if !closed && !final && r.balance > 0 && r.tracker.State() == risk.Flat {
		if side, ok := r.entrySide(sig); ok {
			if i <= r.lastExit {
				return errs.Invariant("entry at bar %d overlaps trade closed at bar %d", i, r.lastExit)
			}
			pos, err := r.tracker.Open(side, i, c, r.balance)
			if err != nil {
				return err
			}
			r.log.Debug("open",
				zap.Int("bar", i),
				zap.Stringer("side", side),
				zap.Float64("price", pos.EntryPrice),
				zap.Float64("qty", pos.Quantity),
				zap.Float64("rr", risk.RR(pos.EntryPrice, pos.StopPrice, pos.TargetPrice)))
		}
	}

	r.equity = append(r.equity, EquityPoint{
		Time:    c.Time,
		Balance: r.balance,
		Equity:  r.balance + r.tracker.Unrealized(c.Close),
	})
	return nil
}

func (r *run) close(i int, c market.Candle, reason risk.ExitReason) error {
	rec, err := r.tracker.Close(i, c, reason)
	if err != nil {
		return err
	}

	r.balance += rec.PnL
	if r.balance < 0 {
		return errs.Invariant("balance %.8f is negative after trade closed at bar %d", r.balance, i)
	}

	r.trades = append(r.trades, rec)
	r.lastExit = i

	r.log.Debug("close",
		zap.Int("bar", i),
		zap.String("reason", string(reason)),
		zap.Float64("price", rec.ExitPrice),
		zap.Float64("pnl", rec.PnL),
		zap.Float64("balance", r.balance))
	return nil
}

func (r *run) entrySide(sig signals.Signal) (risk.Side, bool) {
	switch sig {
	case signals.Buy:
		return risk.Long, true
	case signals.Sell:
		return risk.Short, r.shorts
	}
	return 0, false
}

func opposes(sig signals.Signal, side risk.Side) bool {
	return (side == risk.Long && sig == signals.Sell) || (side == risk.Short && sig == signals.Buy)
}
