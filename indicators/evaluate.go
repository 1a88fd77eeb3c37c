package indicators

import (
	talib "github.com/markcheno/go-talib"

	"github.com/rustyeddy/mcp-trader/config"
	"github.com/rustyeddy/mcp-trader/errs"
	"github.com/rustyeddy/mcp-trader/market"
)

// Lookbacks as defined by TA-Lib for the moving-average types used here.
func maWarmup(period int) int     { return period - 1 }
func periodWarmup(period int) int { return period }

func macdWarmup(c *config.MACDConfig) int { return c.Slow - 1 + c.Signal - 1 }

func stochWarmup(c *config.StochasticConfig) int {
	return c.FastK - 1 + c.SlowK - 1 + c.SlowD - 1
}

// Warmup returns the number of leading bars for which at least one of the
// configured indicators is undefined. cfg must be valid.
func Warmup(cfg config.IndicatorConfig) int {
	w := 0
	up := func(v int) {
		if v > w {
			w = v
		}
	}

	if cfg.RSI != nil {
		up(periodWarmup(cfg.RSI.Period))
	}
	if cfg.MFI != nil {
		up(periodWarmup(cfg.MFI.Period))
	}
	if cfg.Bollinger != nil {
		up(maWarmup(cfg.Bollinger.Period))
	}
	if cfg.SMA != nil {
		for _, p := range cfg.SMA.Periods {
			up(maWarmup(p))
		}
	}
	if cfg.EMA != nil {
		for _, p := range cfg.EMA.Periods {
			up(maWarmup(p))
		}
	}
	if cfg.MACD != nil {
		up(macdWarmup(cfg.MACD))
	}
	if cfg.Stochastic != nil {
		up(stochWarmup(cfg.Stochastic))
	}
	if cfg.ATR != nil {
		up(periodWarmup(cfg.ATR.Period))
	}
	return w
}

// Evaluate computes every configured indicator over candles. It is a pure
// function of its inputs.
//
// It fails with a ConfigError for malformed parameters and with a
// DataError when the candles are invalid or too few for any configured
// indicator to produce a value.
func Evaluate(candles []market.Candle, cfg config.IndicatorConfig) (Set, error) {
	if err := cfg.Validate(); err != nil {
		return Set{}, err
	}
	if err := market.Validate(candles); err != nil {
		return Set{}, err
	}
	if w := Warmup(cfg); len(candles) <= w {
		return Set{}, errs.Data("%d candles cannot cover an indicator warm-up of %d bars", len(candles), w)
	}

	cols := market.ColumnsOf(candles)
	set := newSet(len(candles))

	if c := cfg.RSI; c != nil {
		set.add(RSI, periodWarmup(c.Period), talib.Rsi(cols.Close, c.Period))
	}
	if c := cfg.MFI; c != nil {
		set.add(MFI, periodWarmup(c.Period), talib.Mfi(cols.High, cols.Low, cols.Close, cols.Volume, c.Period))
	}
	if c := cfg.Bollinger; c != nil {
		upper, middle, lower := talib.BBands(cols.Close, c.Period, c.StdDev, c.StdDev, talib.SMA)
		w := maWarmup(c.Period)
		set.add(BBUpper, w, upper)
		set.add(BBMiddle, w, middle)
		set.add(BBLower, w, lower)
	}
	if c := cfg.SMA; c != nil {
		for _, p := range c.Periods {
			set.add(SMAName(p), maWarmup(p), talib.Sma(cols.Close, p))
		}
	}
	if c := cfg.EMA; c != nil {
		for _, p := range c.Periods {
			set.add(EMAName(p), maWarmup(p), talib.Ema(cols.Close, p))
		}
	}
	if c := cfg.MACD; c != nil {
		macd, signal, hist := talib.Macd(cols.Close, c.Fast, c.Slow, c.Signal)
		w := macdWarmup(c)
		set.add(MACD, w, macd)
		set.add(MACDSignal, w, signal)
		set.add(MACDHist, w, hist)
	}
	if c := cfg.Stochastic; c != nil {
		k, d := talib.Stoch(cols.High, cols.Low, cols.Close, c.FastK, c.SlowK, talib.SMA, c.SlowD, talib.SMA)
		w := stochWarmup(c)
		set.add(StochK, w, k)
		set.add(StochD, w, d)
	}
	if c := cfg.ATR; c != nil {
		set.add(ATR, periodWarmup(c.Period), talib.Atr(cols.High, cols.Low, cols.Close, c.Period))
	}
	if cfg.OBV != nil {
		set.add(OBV, 0, talib.Obv(cols.Close, cols.Volume))
	}

	return set, nil
}
