package market

import (
	"os"
	"sort"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/rustyeddy/mcp-trader/errs"
)

// ParseBybitKlines decodes a saved Bybit v5 /market/kline response body.
//
// Each entry of result.list is
// [startTime, open, high, low, close, volume, turnover] as strings, newest
// first. The returned candles are sorted oldest first and validated.
func ParseBybitKlines(body []byte) (Series, error) {
	if !gjson.ValidBytes(body) {
		return Series{}, errs.Data("kline response is not valid JSON")
	}

	doc := gjson.ParseBytes(body)
	if code := doc.Get("retCode"); code.Exists() && code.Int() != 0 {
		return Series{}, errs.Data("kline response retCode=%d: %s", code.Int(), doc.Get("retMsg").String())
	}

	list := doc.Get("result.list")
	if !list.IsArray() {
		return Series{}, errs.Data("kline response has no result.list")
	}

	rows := list.Array()
	candles := make([]Candle, 0, len(rows))
	for i, row := range rows {
		fields := row.Array()
		if len(fields) < 6 {
			return Series{}, errs.Data("kline %d: want at least 6 fields, got %d", i, len(fields))
		}

		ts, err := ParseTime(fields[0].String())
		if err != nil {
			return Series{}, errs.Data("kline %d: %v", i, err)
		}

		var vals [5]float64
		for j := range vals {
			v, err := strconv.ParseFloat(fields[j+1].String(), 64)
			if err != nil {
				return Series{}, errs.Data("kline %d field %d: %v", i, j+1, err)
			}
			vals[j] = v
		}

		candles = append(candles, Candle{
			Time:   ts,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}

	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Time.Before(candles[j].Time)
	})

	if err := Validate(candles); err != nil {
		return Series{}, err
	}

	return Series{
		Symbol:   doc.Get("result.symbol").String(),
		Interval: doc.Get("result.interval").String(),
		Candles:  candles,
	}, nil
}

// LoadBybitKlines reads a kline response saved to disk.
func LoadBybitKlines(path string) (Series, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Series{}, err
	}
	return ParseBybitKlines(body)
}
