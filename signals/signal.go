// Package signals turns indicator values into one BUY, SELL or HOLD
// decision per bar.
package signals

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/mcp-trader/config"
	"github.com/rustyeddy/mcp-trader/market"
)

type Signal int8

const (
	Hold Signal = iota
	Buy
	Sell
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

func (s Signal) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Signal) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "BUY":
		*s = Buy
	case "SELL":
		*s = Sell
	case "HOLD", "":
		*s = Hold
	default:
		return fmt.Errorf("unknown signal %q", b)
	}
	return nil
}

// Source produces the signal for bar i. Implementations must be
// deterministic in (i, c).
type Source interface {
	At(i int, c market.Candle) Signal
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(i int, c market.Candle) Signal

func (f SourceFunc) At(i int, c market.Candle) Signal { return f(i, c) }

// Forced is a scripted source: bars present in the map get that signal,
// every other bar is HOLD.
type Forced map[int]Signal

func (f Forced) At(i int, _ market.Candle) Signal { return f[i] }

// Gate wraps src so that bars failing the volume or price filter yield HOLD.
func Gate(src Source, f config.FilterConfig) Source {
	if f.VolumeThreshold == 0 && f.PriceThreshold == 0 {
		return src
	}
	return SourceFunc(func(i int, c market.Candle) Signal {
		if !Passes(f, c) {
			return Hold
		}
		return src.At(i, c)
	})
}

// Passes reports whether c clears both filters. A zero threshold is off.
func Passes(f config.FilterConfig, c market.Candle) bool {
	if f.VolumeThreshold > 0 && c.Volume < f.VolumeThreshold {
		return false
	}
	if f.PriceThreshold > 0 && c.Close < f.PriceThreshold {
		return false
	}
	return true
}
