package market

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/rustyeddy/mcp-trader/errs"
)

// csvCandle is one row of a candle CSV file:
//
//	time,open,high,low,close[,volume]
//
// time is RFC3339/RFC3339Nano, "2006-01-02 15:04:05" (UTC) or a unix
// timestamp in seconds or milliseconds.
type csvCandle struct {
	Time   string  `csv:"time"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume float64 `csv:"volume"`
}

func (c csvCandle) toCandle() (Candle, error) {
	t, err := ParseTime(c.Time)
	if err != nil {
		return Candle{}, err
	}
	return Candle{
		Time:   t,
		Open:   c.Open,
		High:   c.High,
		Low:    c.Low,
		Close:  c.Close,
		Volume: c.Volume,
	}, nil
}

// ReadCSV parses candles from r. Rows outside [from, to) are dropped; a
// zero bound is open. The result is validated before it is returned.
func ReadCSV(r io.Reader, from, to time.Time) ([]Candle, error) {
	var rows []csvCandle
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, errs.Data("parse candle csv: %v", err)
	}

	out := make([]Candle, 0, len(rows))
	for i, row := range rows {
		c, err := row.toCandle()
		if err != nil {
			return nil, errs.Data("row %d: %v", i+1, err)
		}
		if !inRange(c.Time, from, to) {
			continue
		}
		out = append(out, c)
	}

	if err := Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadCSV opens path and reads it with ReadCSV.
func LoadCSV(path string, from, to time.Time) ([]Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candles: %w", err)
	}
	defer f.Close()

	return ReadCSV(f, from, to)
}

// WriteCSV writes candles in the format ReadCSV accepts.
func WriteCSV(w io.Writer, candles []Candle) error {
	rows := make([]csvCandle, len(candles))
	for i, c := range candles {
		rows[i] = csvCandle{
			Time:   c.Time.UTC().Format(time.RFC3339),
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		}
	}
	return gocsv.Marshal(&rows, w)
}

// ParseTime accepts the timestamp spellings found in exported kline data.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}

	if isDigits(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad unix time %q: %w", s, err)
		}
		// 12+ digits is milliseconds (Bybit), otherwise seconds.
		if len(s) >= 12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
