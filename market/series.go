package market

import (
	"math"
	"time"

	"github.com/rustyeddy/mcp-trader/errs"
)

// Series is an ordered candle sequence for one symbol and interval.
type Series struct {
	Symbol   string
	Interval string
	Candles  []Candle
}

func (s Series) Len() int { return len(s.Candles) }

// Start and End return the first and last candle times (zero when empty).
func (s Series) Start() time.Time {
	if len(s.Candles) == 0 {
		return time.Time{}
	}
	return s.Candles[0].Time
}

func (s Series) End() time.Time {
	if len(s.Candles) == 0 {
		return time.Time{}
	}
	return s.Candles[len(s.Candles)-1].Time
}

// Validate checks the preconditions every run relies on: at least one
// candle, strictly increasing timestamps and finite, positive prices.
// Gaps between bars are not checked.
func Validate(candles []Candle) error {
	if len(candles) == 0 {
		return errs.Data("empty candle sequence")
	}
	for i, c := range candles {
		if c.Time.IsZero() {
			return errs.Data("candle %d has no timestamp", i)
		}
		if i > 0 && !c.Time.After(candles[i-1].Time) {
			return errs.Data("candle %d at %s is not after candle %d at %s",
				i, c.Time.Format(time.RFC3339), i-1, candles[i-1].Time.Format(time.RFC3339))
		}
		for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
			if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
				return errs.Data("candle %d has invalid price %v", i, v)
			}
		}
		if math.IsNaN(c.Volume) || c.Volume < 0 {
			return errs.Data("candle %d has invalid volume %v", i, c.Volume)
		}
	}
	return nil
}

// Columns splits candles into the parallel slices numeric libraries expect.
type Columns struct {
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

func ColumnsOf(candles []Candle) Columns {
	n := len(candles)
	cols := Columns{
		Open:   make([]float64, n),
		High:   make([]float64, n),
		Low:    make([]float64, n),
		Close:  make([]float64, n),
		Volume: make([]float64, n),
	}
	for i, c := range candles {
		cols.Open[i] = c.Open
		cols.High[i] = c.High
		cols.Low[i] = c.Low
		cols.Close[i] = c.Close
		cols.Volume[i] = c.Volume
	}
	return cols
}
