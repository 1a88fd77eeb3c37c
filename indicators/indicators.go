// Package indicators evaluates the configured technical indicators over a
// candle sequence. The math is TA-Lib's; this package owns parameters,
// naming and warm-up bookkeeping.
//
// Usage:
//
//	set, err := indicators.Evaluate(candles, cfg.Indicators)
//	rsi, _ := set.Get(indicators.RSI)
//	if v, ok := rsi.At(i); ok && v < 30 { ... }
package indicators

import (
	"fmt"
	"sort"
)

// Series names produced by Evaluate.
const (
	RSI        = "rsi"
	MFI        = "mfi"
	BBUpper    = "bb_upper"
	BBMiddle   = "bb_middle"
	BBLower    = "bb_lower"
	MACD       = "macd"
	MACDSignal = "macd_signal"
	MACDHist   = "macd_hist"
	StochK     = "stoch_k"
	StochD     = "stoch_d"
	ATR        = "atr"
	OBV        = "obv"
)

// SMAName returns the series name of the simple moving average of period p.
func SMAName(p int) string { return fmt.Sprintf("sma_%d", p) }

// EMAName returns the series name of the exponential moving average of period p.
func EMAName(p int) string { return fmt.Sprintf("ema_%d", p) }

// Series is one indicator output line aligned with the candles it was
// computed from. Values before Warmup are not defined.
type Series struct {
	Name   string    `json:"name"`
	Warmup int       `json:"warmup"`
	Values []float64 `json:"values"`
}

// Valid reports whether index i holds a defined value.
func (s Series) Valid(i int) bool {
	return i >= s.Warmup && i < len(s.Values)
}

// At returns the value at i and whether it is defined.
func (s Series) At(i int) (float64, bool) {
	if !s.Valid(i) {
		return 0, false
	}
	return s.Values[i], true
}

// Set holds every series of one evaluation.
type Set struct {
	n      int
	series map[string]Series
}

func newSet(n int) Set {
	return Set{n: n, series: make(map[string]Series)}
}

func (s *Set) add(name string, warmup int, values []float64) {
	s.series[name] = Series{Name: name, Warmup: warmup, Values: values}
}

// Len is the number of candles the set was computed over.
func (s Set) Len() int { return s.n }

// Get returns the named series.
func (s Set) Get(name string) (Series, bool) {
	ser, ok := s.series[name]
	return ser, ok
}

// Names returns the series names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s.series))
	for name := range s.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Warmup is the largest warm-up of any series in the set.
func (s Set) Warmup() int {
	w := 0
	for _, ser := range s.series {
		if ser.Warmup > w {
			w = ser.Warmup
		}
	}
	return w
}
