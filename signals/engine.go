package signals

import (
	"github.com/rustyeddy/mcp-trader/config"
	"github.com/rustyeddy/mcp-trader/indicators"
	"github.com/rustyeddy/mcp-trader/market"
)

// condition evaluates one indicator rule at bar i. ok is false while any
// series it reads is still warming up.
type condition func(i int, c market.Candle) (met, ok bool)

// Engine combines the bullish and bearish conditions derived from a
// strategy into a Signal per bar.
//
//	rsi        rsi < buy_threshold       | rsi > sell_threshold
//	mfi        mfi < buy_threshold       | mfi > sell_threshold
//	bollinger  close < lower band        | close > upper band
//	sma/ema    first period above second | first period below second
//	macd       macd above signal line    | macd below signal line
//	stochastic %K < buy_threshold        | %K > sell_threshold
//
// With mode "all" every condition of a side must be available and met;
// with "any" one available, met condition is enough. A bar where both
// sides qualify is HOLD.
type Engine struct {
	buy      []condition
	sell     []condition
	buyMode  config.Mode
	sellMode config.Mode
	filters  config.FilterConfig
}

// NewEngine builds the rule set for s over the evaluated indicators.
// Indicators with no rule (ATR, OBV) are ignored.
func NewEngine(s config.Strategy, set indicators.Set) *Engine {
	e := &Engine{
		buyMode:  s.Signals.Buy(),
		sellMode: s.Signals.Sell(),
		filters:  s.Filters,
	}

	ic := s.Indicators
	if ic.RSI != nil {
		e.oscillator(indicators.RSI, set, ic.RSI.BuyThreshold, ic.RSI.SellThreshold)
	}
	if ic.MFI != nil {
		e.oscillator(indicators.MFI, set, ic.MFI.BuyThreshold, ic.MFI.SellThreshold)
	}
	if ic.Bollinger != nil {
		lower, _ := set.Get(indicators.BBLower)
		upper, _ := set.Get(indicators.BBUpper)
		e.buy = append(e.buy, closeVs(lower, less))
		e.sell = append(e.sell, closeVs(upper, greater))
	}
	if ic.SMA != nil && len(ic.SMA.Periods) >= 2 {
		e.cross(set, indicators.SMAName(ic.SMA.Periods[0]), indicators.SMAName(ic.SMA.Periods[1]))
	}
	if ic.EMA != nil && len(ic.EMA.Periods) >= 2 {
		e.cross(set, indicators.EMAName(ic.EMA.Periods[0]), indicators.EMAName(ic.EMA.Periods[1]))
	}
	if ic.MACD != nil {
		e.cross(set, indicators.MACD, indicators.MACDSignal)
	}
	if ic.Stochastic != nil {
		e.oscillator(indicators.StochK, set, ic.Stochastic.BuyThreshold, ic.Stochastic.SellThreshold)
	}
	return e
}

func less(a, b float64) bool    { return a < b }
func greater(a, b float64) bool { return a > b }

func (e *Engine) oscillator(name string, set indicators.Set, buy, sell *float64) {
	ser, _ := set.Get(name)
	if buy != nil {
		e.buy = append(e.buy, threshold(ser, *buy, less))
	}
	if sell != nil {
		e.sell = append(e.sell, threshold(ser, *sell, greater))
	}
}

func (e *Engine) cross(set indicators.Set, fast, slow string) {
	a, _ := set.Get(fast)
	b, _ := set.Get(slow)
	e.buy = append(e.buy, pair(a, b, greater))
	e.sell = append(e.sell, pair(a, b, less))
}

func threshold(s indicators.Series, level float64, cmp func(a, b float64) bool) condition {
	return func(i int, _ market.Candle) (bool, bool) {
		v, ok := s.At(i)
		return ok && cmp(v, level), ok
	}
}

func closeVs(s indicators.Series, cmp func(a, b float64) bool) condition {
	return func(i int, c market.Candle) (bool, bool) {
		v, ok := s.At(i)
		return ok && cmp(c.Close, v), ok
	}
}

func pair(a, b indicators.Series, cmp func(a, b float64) bool) condition {
	return func(i int, _ market.Candle) (bool, bool) {
		x, okA := a.At(i)
		y, okB := b.At(i)
		ok := okA && okB
		return ok && cmp(x, y), ok
	}
}

// Rules returns the number of bullish and bearish conditions in effect.
func (e *Engine) Rules() (buy, sell int) { return len(e.buy), len(e.sell) }

// At returns the signal for bar i with candle c.
func (e *Engine) At(i int, c market.Candle) Signal {
	if !Passes(e.filters, c) {
		return Hold
	}

	bull := combine(e.buy, e.buyMode, i, c)
	bear := combine(e.sell, e.sellMode, i, c)
	switch {
	case bull && !bear:
		return Buy
	case bear && !bull:
		return Sell
	default:
		return Hold
	}
}

func combine(conds []condition, mode config.Mode, i int, c market.Candle) bool {
	if len(conds) == 0 {
		return false
	}
	for _, cond := range conds {
		met, ok := cond(i, c)
		if mode == config.ModeAny {
			if ok && met {
				return true
			}
			continue
		}
		if !ok || !met {
			return false
		}
	}
	return mode != config.ModeAny
}
