package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/mcp-trader/config"
	"github.com/rustyeddy/mcp-trader/errs"
	"github.com/rustyeddy/mcp-trader/market"
)

func createTestCandles(n int) []market.Candle {
	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.Candle, n)
	for i := range out {
		c := 100 + 10*math.Sin(float64(i)/4) + float64(i%3)
		out[i] = market.Candle{
			Time:   start.Add(time.Duration(i) * time.Minute),
			Open:   c - 0.5,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000 + float64(i*10),
		}
	}
	return out
}

func fullConfig() config.IndicatorConfig {
	return config.IndicatorConfig{
		RSI:        &config.OscillatorConfig{Period: 14},
		MFI:        &config.OscillatorConfig{Period: 14},
		Bollinger:  &config.BollingerConfig{Period: 20, StdDev: 2},
		SMA:        &config.MovingAverageConfig{Periods: []int{5, 10}},
		EMA:        &config.MovingAverageConfig{Periods: []int{9}},
		MACD:       &config.MACDConfig{Fast: 12, Slow: 26, Signal: 9},
		Stochastic: &config.StochasticConfig{FastK: 14, SlowK: 3, SlowD: 3},
		ATR:        &config.PeriodConfig{Period: 14},
		OBV:        &config.OBVConfig{},
	}
}

func TestEvaluateProducesAlignedSeries(t *testing.T) {
	t.Parallel()

	candles := createTestCandles(80)
	set, err := Evaluate(candles, fullConfig())
	require.NoError(t, err)

	assert.Equal(t, 80, set.Len())
	assert.Equal(t, []string{
		ATR, BBLower, BBMiddle, BBUpper, EMAName(9), MACD, MACDHist, MACDSignal,
		MFI, OBV, RSI, SMAName(10), SMAName(5), StochD, StochK,
	}, set.Names())

	warmups := map[string]int{
		RSI:         14,
		MFI:         14,
		BBUpper:     19,
		SMAName(5):  4,
		SMAName(10): 9,
		EMAName(9):  8,
		MACD:        33,
		StochK:      17,
		ATR:         14,
		OBV:         0,
	}
	for name, want := range warmups {
		ser, ok := set.Get(name)
		require.True(t, ok, name)
		assert.Len(t, ser.Values, len(candles), name)
		assert.Equal(t, want, ser.Warmup, name)
		assert.False(t, ser.Valid(want-1), name)
		assert.True(t, ser.Valid(want), name)
	}
	assert.Equal(t, 33, set.Warmup())
}

func TestEvaluateSMAMatchesHandComputation(t *testing.T) {
	t.Parallel()

	candles := createTestCandles(30)
	set, err := Evaluate(candles, config.IndicatorConfig{
		SMA: &config.MovingAverageConfig{Periods: []int{5}},
	})
	require.NoError(t, err)

	sma, ok := set.Get(SMAName(5))
	require.True(t, ok)

	for i := 4; i < len(candles); i++ {
		sum := 0.0
		for j := i - 4; j <= i; j++ {
			sum += candles[j].Close
		}
		got, ok := sma.At(i)
		require.True(t, ok)
		assert.InDelta(t, sum/5, got, 1e-9, "bar %d", i)
	}

	_, ok = sma.At(3)
	assert.False(t, ok)
}

func TestEvaluateBollingerOrdering(t *testing.T) {
	t.Parallel()

	candles := createTestCandles(40)
	set, err := Evaluate(candles, config.IndicatorConfig{
		Bollinger: &config.BollingerConfig{Period: 20, StdDev: 2},
	})
	require.NoError(t, err)

	upper, _ := set.Get(BBUpper)
	middle, _ := set.Get(BBMiddle)
	lower, _ := set.Get(BBLower)
	for i := upper.Warmup; i < len(candles); i++ {
		assert.GreaterOrEqual(t, upper.Values[i], middle.Values[i])
		assert.GreaterOrEqual(t, middle.Values[i], lower.Values[i])
	}
}

func TestEvaluateRSIStaysInRange(t *testing.T) {
	t.Parallel()

	candles := createTestCandles(60)
	set, err := Evaluate(candles, config.IndicatorConfig{
		RSI: &config.OscillatorConfig{Period: 14},
	})
	require.NoError(t, err)

	rsi, _ := set.Get(RSI)
	for i := rsi.Warmup; i < len(candles); i++ {
		assert.GreaterOrEqual(t, rsi.Values[i], 0.0)
		assert.LessOrEqual(t, rsi.Values[i], 100.0)
	}
}

func TestEvaluateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		candles []market.Candle
		cfg     config.IndicatorConfig
		kind    error
	}{
		{
			name:    "no candles",
			candles: nil,
			cfg:     config.IndicatorConfig{SMA: &config.MovingAverageConfig{Periods: []int{5}}},
			kind:    errs.ErrData,
		},
		{
			name:    "shorter than warm-up",
			candles: createTestCandles(14),
			cfg:     config.IndicatorConfig{RSI: &config.OscillatorConfig{Period: 14}},
			kind:    errs.ErrData,
		},
		{
			name:    "zero period",
			candles: createTestCandles(30),
			cfg:     config.IndicatorConfig{RSI: &config.OscillatorConfig{Period: 0}},
			kind:    errs.ErrConfig,
		},
		{
			name:    "empty periods",
			candles: createTestCandles(30),
			cfg:     config.IndicatorConfig{EMA: &config.MovingAverageConfig{}},
			kind:    errs.ErrConfig,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Evaluate(tt.candles, tt.cfg)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestWarmupIsLargestLookback(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, Warmup(config.IndicatorConfig{}))
	assert.Equal(t, 199, Warmup(config.DefaultStrategy().Indicators))
	assert.Equal(t, 33, Warmup(config.IndicatorConfig{MACD: &config.MACDConfig{Fast: 12, Slow: 26, Signal: 9}}))
}

func TestSeriesAt(t *testing.T) {
	t.Parallel()

	s := Series{Name: "x", Warmup: 2, Values: []float64{0, 0, 3, 4}}
	_, ok := s.At(1)
	assert.False(t, ok)
	v, ok := s.At(3)
	assert.True(t, ok)
	assert.Equal(t, 4.0, v)
	_, ok = s.At(4)
	assert.False(t, ok)
}
