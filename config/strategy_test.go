package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/mcp-trader/errs"
)

func TestStrategyValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(s *Strategy)
		field  string
	}{
		{"default", func(s *Strategy) {}, ""},
		{"rsi period one", func(s *Strategy) { s.Indicators.RSI.Period = 1 }, "indicators.rsi.period"},
		{"rsi thresholds inverted", func(s *Strategy) {
			s.Indicators.RSI.BuyThreshold = Float(80)
		}, "indicators.rsi"},
		{"mfi threshold out of range", func(s *Strategy) {
			s.Indicators.MFI.SellThreshold = Float(120)
		}, "indicators.mfi.sell_threshold"},
		{"bollinger std dev", func(s *Strategy) { s.Indicators.Bollinger.StdDev = 0 }, "indicators.bollinger.std_dev"},
		{"empty sma periods", func(s *Strategy) { s.Indicators.SMA.Periods = nil }, "indicators.sma.periods"},
		{"duplicate ema period", func(s *Strategy) { s.Indicators.EMA.Periods = []int{9, 9} }, "indicators.ema.periods"},
		{"negative ema period", func(s *Strategy) { s.Indicators.EMA.Periods = []int{9, -2} }, "indicators.ema.periods[1]"},
		{"macd fast above slow", func(s *Strategy) {
			s.Indicators.MACD = &MACDConfig{Fast: 26, Slow: 12, Signal: 9}
		}, "indicators.macd"},
		{"stochastic zero period", func(s *Strategy) {
			s.Indicators.Stochastic = &StochasticConfig{FastK: 0, SlowK: 3, SlowD: 3}
		}, "indicators.stochastic.fastk_period"},
		{"atr zero period", func(s *Strategy) { s.Indicators.ATR = &PeriodConfig{} }, "indicators.atr.period"},
		{"size zero", func(s *Strategy) { s.Position.Size = 0 }, "position.size"},
		{"size above 100", func(s *Strategy) { s.Position.Size = 150 }, "position.size"},
		{"negative target", func(s *Strategy) { s.Position.ProfitTarget = -1 }, "position.profit_target"},
		{"stop loss 100", func(s *Strategy) { s.Position.StopLoss = -100 }, "position.stop_loss"},
		{"negative trailing", func(s *Strategy) { s.Position.TrailingStop = -0.1 }, "position.trailing_stop"},
		{"negative volume filter", func(s *Strategy) { s.Filters.VolumeThreshold = -1 }, "filters.volume_threshold"},
		{"unknown mode", func(s *Strategy) { s.Signals.SellMode = "most" }, "signals.sell_mode"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := DefaultStrategy()
			tt.mutate(&s)
			err := s.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			var ce *errs.ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestSignalConfigDefaults(t *testing.T) {
	t.Parallel()

	var s SignalConfig
	assert.Equal(t, ModeAll, s.Buy())
	assert.Equal(t, ModeAll, s.Sell())
	assert.True(t, s.ShortsAllowed())

	s = SignalConfig{BuyMode: ModeAny, AllowShort: Bool(false)}
	assert.Equal(t, ModeAny, s.Buy())
	assert.False(t, s.ShortsAllowed())
}

func TestParseStrategyJSON(t *testing.T) {
	t.Parallel()

	s, err := ParseStrategyJSON([]byte(`{
		"indicators": {
			"rsi": {"period": 14, "buy_threshold": 30, "sell_threshold": 70},
			"sma": {"periods": [20, 50]}
		},
		"position": {"size": 100, "profit_target": 0.5, "stop_loss": -0.3, "trailing_stop": 0.2},
		"filters": {"volume_threshold": 1000, "price_threshold": 50000}
	}`))
	require.NoError(t, err)
	require.NotNil(t, s.Indicators.RSI)
	assert.Equal(t, 30.0, *s.Indicators.RSI.BuyThreshold)
	assert.Equal(t, []int{20, 50}, s.Indicators.SMA.Periods)
	assert.Nil(t, s.Indicators.MFI)
	assert.Equal(t, 0.3, s.Position.StopLossPct())

	_, err = ParseStrategyJSON([]byte(`{"indicators": {"ichimoku": {}}, "position": {"size": 10}}`))
	assert.ErrorIs(t, err, errs.ErrConfig)

	_, err = ParseStrategyJSON([]byte(`{"indicators": {"rsi": {"period": 0}}, "position": {"size": 10}}`))
	assert.ErrorIs(t, err, errs.ErrConfig)
}
