package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/rustyeddy/mcp-trader/errs"
)

// Strategy is the full, immutable parameter set of one backtest run.
//
// Example (YAML):
//
//	indicators:
//	  rsi: {period: 14, buy_threshold: 30, sell_threshold: 70}
//	  sma: {periods: [20, 50]}
//	position: {size: 100, profit_target: 0.5, stop_loss: -0.3, trailing_stop: 0.2}
//	filters: {volume_threshold: 1000, price_threshold: 50000}
type Strategy struct {
	Indicators IndicatorConfig `json:"indicators" yaml:"indicators"`
	Position   PositionConfig  `json:"position" yaml:"position"`
	Filters    FilterConfig    `json:"filters" yaml:"filters"`
	Signals    SignalConfig    `json:"signals" yaml:"signals"`
}

// IndicatorConfig enables indicators by presence. A nil block is off.
type IndicatorConfig struct {
	RSI        *OscillatorConfig    `json:"rsi,omitempty" yaml:"rsi,omitempty"`
	MFI        *OscillatorConfig    `json:"mfi,omitempty" yaml:"mfi,omitempty"`
	Bollinger  *BollingerConfig     `json:"bollinger,omitempty" yaml:"bollinger,omitempty"`
	SMA        *MovingAverageConfig `json:"sma,omitempty" yaml:"sma,omitempty"`
	EMA        *MovingAverageConfig `json:"ema,omitempty" yaml:"ema,omitempty"`
	MACD       *MACDConfig          `json:"macd,omitempty" yaml:"macd,omitempty"`
	Stochastic *StochasticConfig    `json:"stochastic,omitempty" yaml:"stochastic,omitempty"`
	ATR        *PeriodConfig        `json:"atr,omitempty" yaml:"atr,omitempty"`
	OBV        *OBVConfig           `json:"obv,omitempty" yaml:"obv,omitempty"`
}

// OscillatorConfig covers RSI and MFI. A nil threshold contributes no rule.
type OscillatorConfig struct {
	Period        int      `json:"period" yaml:"period"`
	BuyThreshold  *float64 `json:"buy_threshold,omitempty" yaml:"buy_threshold,omitempty"`
	SellThreshold *float64 `json:"sell_threshold,omitempty" yaml:"sell_threshold,omitempty"`
}

type BollingerConfig struct {
	Period int     `json:"period" yaml:"period"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
}

// MovingAverageConfig lists SMA/EMA periods. The first two periods form
// the short/long pair used for crossover rules.
type MovingAverageConfig struct {
	Periods []int `json:"periods" yaml:"periods"`
}

type MACDConfig struct {
	Fast   int `json:"fast" yaml:"fast"`
	Slow   int `json:"slow" yaml:"slow"`
	Signal int `json:"signal" yaml:"signal"`
}

type StochasticConfig struct {
	FastK         int      `json:"fastk_period" yaml:"fastk_period"`
	SlowK         int      `json:"slowk_period" yaml:"slowk_period"`
	SlowD         int      `json:"slowd_period" yaml:"slowd_period"`
	BuyThreshold  *float64 `json:"buy_threshold,omitempty" yaml:"buy_threshold,omitempty"`
	SellThreshold *float64 `json:"sell_threshold,omitempty" yaml:"sell_threshold,omitempty"`
}

type PeriodConfig struct {
	Period int `json:"period" yaml:"period"`
}

// OBVConfig has no parameters; an empty block enables OBV.
type OBVConfig struct{}

// PositionConfig values are percentages. Zero disables an exit.
type PositionConfig struct {
	Size         float64 `json:"size" yaml:"size"`                   // % of balance committed per entry
	ProfitTarget float64 `json:"profit_target" yaml:"profit_target"` // % from entry
	StopLoss     float64 `json:"stop_loss" yaml:"stop_loss"`         // % from entry, sign ignored
	TrailingStop float64 `json:"trailing_stop" yaml:"trailing_stop"` // % from high-water mark
}

// StopLossPct returns the stop distance as a positive percentage.
func (p PositionConfig) StopLossPct() float64 { return math.Abs(p.StopLoss) }

// FilterConfig gates signals. A bar whose volume or close is below the
// threshold cannot produce BUY or SELL. Zero disables a filter.
type FilterConfig struct {
	VolumeThreshold float64 `json:"volume_threshold" yaml:"volume_threshold"`
	PriceThreshold  float64 `json:"price_threshold" yaml:"price_threshold"`
}

// Mode selects how individual indicator conditions combine.
type Mode string

const (
	ModeAll Mode = "all"
	ModeAny Mode = "any"
)

// SignalConfig controls signal combination. Empty modes mean "all".
type SignalConfig struct {
	BuyMode    Mode  `json:"buy_mode,omitempty" yaml:"buy_mode,omitempty"`
	SellMode   Mode  `json:"sell_mode,omitempty" yaml:"sell_mode,omitempty"`
	AllowShort *bool `json:"allow_short,omitempty" yaml:"allow_short,omitempty"`
}

func (s SignalConfig) Buy() Mode {
	if s.BuyMode == "" {
		return ModeAll
	}
	return s.BuyMode
}

func (s SignalConfig) Sell() Mode {
	if s.SellMode == "" {
		return ModeAll
	}
	return s.SellMode
}

// ShortsAllowed reports whether a SELL signal may open a short from flat.
func (s SignalConfig) ShortsAllowed() bool {
	return s.AllowShort == nil || *s.AllowShort
}

// Validate rejects malformed parameters with a ConfigError naming the key.
func (s Strategy) Validate() error {
	if err := s.Indicators.Validate(); err != nil {
		return err
	}
	if err := s.Position.validate(); err != nil {
		return err
	}
	if err := s.Filters.validate(); err != nil {
		return err
	}
	return s.Signals.validate()
}

func (ic IndicatorConfig) Validate() error {
	if ic.RSI != nil {
		if err := ic.RSI.validate("indicators.rsi"); err != nil {
			return err
		}
	}
	if ic.MFI != nil {
		if err := ic.MFI.validate("indicators.mfi"); err != nil {
			return err
		}
	}
	if b := ic.Bollinger; b != nil {
		if err := checkPeriod("indicators.bollinger.period", b.Period, 2); err != nil {
			return err
		}
		if b.StdDev <= 0 || math.IsNaN(b.StdDev) {
			return errs.Config("indicators.bollinger.std_dev", "must be positive, got %v", b.StdDev)
		}
	}
	if ic.SMA != nil {
		if err := ic.SMA.validate("indicators.sma"); err != nil {
			return err
		}
	}
	if ic.EMA != nil {
		if err := ic.EMA.validate("indicators.ema"); err != nil {
			return err
		}
	}
	if m := ic.MACD; m != nil {
		if err := checkPeriod("indicators.macd.fast", m.Fast, 2); err != nil {
			return err
		}
		if err := checkPeriod("indicators.macd.slow", m.Slow, 2); err != nil {
			return err
		}
		if err := checkPeriod("indicators.macd.signal", m.Signal, 1); err != nil {
			return err
		}
		if m.Fast >= m.Slow {
			return errs.Config("indicators.macd", "fast (%d) must be below slow (%d)", m.Fast, m.Slow)
		}
	}
	if st := ic.Stochastic; st != nil {
		if err := checkPeriod("indicators.stochastic.fastk_period", st.FastK, 1); err != nil {
			return err
		}
		if err := checkPeriod("indicators.stochastic.slowk_period", st.SlowK, 1); err != nil {
			return err
		}
		if err := checkPeriod("indicators.stochastic.slowd_period", st.SlowD, 1); err != nil {
			return err
		}
		if err := checkThresholds("indicators.stochastic", st.BuyThreshold, st.SellThreshold); err != nil {
			return err
		}
	}
	if ic.ATR != nil {
		if err := checkPeriod("indicators.atr.period", ic.ATR.Period, 1); err != nil {
			return err
		}
	}
	return nil
}

func (o OscillatorConfig) validate(key string) error {
	if err := checkPeriod(key+".period", o.Period, 2); err != nil {
		return err
	}
	return checkThresholds(key, o.BuyThreshold, o.SellThreshold)
}

func (m MovingAverageConfig) validate(key string) error {
	if len(m.Periods) == 0 {
		return errs.Config(key+".periods", "at least one period is required")
	}
	seen := make(map[int]bool, len(m.Periods))
	for i, p := range m.Periods {
		if err := checkPeriod(fmt.Sprintf("%s.periods[%d]", key, i), p, 2); err != nil {
			return err
		}
		if seen[p] {
			return errs.Config(key+".periods", "duplicate period %d", p)
		}
		seen[p] = true
	}
	return nil
}

func (p PositionConfig) validate() error {
	if p.Size <= 0 || p.Size > 100 || math.IsNaN(p.Size) {
		return errs.Config("position.size", "must be in (0, 100], got %v", p.Size)
	}
	if p.ProfitTarget < 0 || math.IsNaN(p.ProfitTarget) {
		return errs.Config("position.profit_target", "must not be negative, got %v", p.ProfitTarget)
	}
	if sl := p.StopLossPct(); sl >= 100 || math.IsNaN(sl) {
		return errs.Config("position.stop_loss", "must be below 100%%, got %v", p.StopLoss)
	}
	if p.TrailingStop < 0 || p.TrailingStop >= 100 || math.IsNaN(p.TrailingStop) {
		return errs.Config("position.trailing_stop", "must be in [0, 100), got %v", p.TrailingStop)
	}
	return nil
}

func (f FilterConfig) validate() error {
	if f.VolumeThreshold < 0 || math.IsNaN(f.VolumeThreshold) {
		return errs.Config("filters.volume_threshold", "must not be negative, got %v", f.VolumeThreshold)
	}
	if f.PriceThreshold < 0 || math.IsNaN(f.PriceThreshold) {
		return errs.Config("filters.price_threshold", "must not be negative, got %v", f.PriceThreshold)
	}
	return nil
}

func (s SignalConfig) validate() error {
	modes := []struct {
		key  string
		mode Mode
	}{{"signals.buy_mode", s.BuyMode}, {"signals.sell_mode", s.SellMode}}

	for _, m := range modes {
		switch m.mode {
		case "", ModeAll, ModeAny:
		default:
			return errs.Config(m.key, "must be %q or %q, got %q", ModeAll, ModeAny, m.mode)
		}
	}
	return nil
}

func checkPeriod(key string, v, min int) error {
	if v < min {
		if v <= 0 {
			return errs.Config(key, "must be positive, got %d", v)
		}
		return errs.Config(key, "must be at least %d, got %d", min, v)
	}
	return nil
}

func checkThresholds(key string, buy, sell *float64) error {
	names := []string{"buy_threshold", "sell_threshold"}
	for i, v := range []*float64{buy, sell} {
		if v == nil {
			continue
		}
		if *v < 0 || *v > 100 || math.IsNaN(*v) {
			return errs.Config(key+"."+names[i], "must be in [0, 100], got %v", *v)
		}
	}
	if buy != nil && sell != nil && *buy >= *sell {
		return errs.Config(key, "buy_threshold (%v) must be below sell_threshold (%v)", *buy, *sell)
	}
	return nil
}

// ParseStrategyJSON decodes a strategy, rejecting keys it does not know,
// and validates it.
func ParseStrategyJSON(data []byte) (Strategy, error) {
	var s Strategy
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Strategy{}, &errs.ConfigError{Msg: "decode strategy", Err: err}
	}
	if err := s.Validate(); err != nil {
		return Strategy{}, err
	}
	return s, nil
}

// Float is a helper for building threshold pointers in code.
func Float(v float64) *float64 { return &v }

// Bool is a helper for SignalConfig.AllowShort.
func Bool(v bool) *bool { return &v }
