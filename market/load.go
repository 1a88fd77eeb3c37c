package market

import (
	"path/filepath"
	"strings"
	"time"
)

// Load reads candles from path, choosing the decoder by extension:
// ".json" is a saved Bybit kline response, anything else is CSV.
func Load(path string, from, to time.Time) (Series, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		s, err := LoadBybitKlines(path)
		if err != nil {
			return Series{}, err
		}
		if !from.IsZero() || !to.IsZero() {
			kept := s.Candles[:0:0]
			for _, c := range s.Candles {
				if inRange(c.Time, from, to) {
					kept = append(kept, c)
				}
			}
			if err := Validate(kept); err != nil {
				return Series{}, err
			}
			s.Candles = kept
		}
		return s, nil
	}

	candles, err := LoadCSV(path, from, to)
	if err != nil {
		return Series{}, err
	}
	return Series{Candles: candles}, nil
}
