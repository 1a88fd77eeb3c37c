package mcpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/rustyeddy/mcp-trader/backtest"
	"github.com/rustyeddy/mcp-trader/config"
	"github.com/rustyeddy/mcp-trader/errs"
	"github.com/rustyeddy/mcp-trader/market"
)

const (
	defaultLast = 10
	maxLast     = 1000
)

type candleInput struct {
	Time   string  `json:"time" jsonschema:"RFC3339 timestamp or unix seconds/milliseconds"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

type runBacktestInput struct {
	CandlesPath    string         `json:"candles_path,omitempty" jsonschema:"CSV or Bybit kline JSON file with the candles"`
	Candles        []candleInput  `json:"candles,omitempty" jsonschema:"inline candles, oldest first; used when candles_path is empty"`
	Strategy       map[string]any `json:"strategy,omitempty" jsonschema:"strategy document; the server default is used when omitted"`
	InitialBalance float64        `json:"initial_balance,omitempty" jsonschema:"starting cash balance"`
	Symbol         string         `json:"symbol,omitempty" jsonschema:"symbol label stored with the run"`
	Persist        bool           `json:"persist,omitempty" jsonschema:"record the run in the journal"`
	IncludeTrades  bool           `json:"include_trades,omitempty" jsonschema:"return the trade list"`
}

type tradeOutput struct {
	Side       string  `json:"side"`
	EntryTime  string  `json:"entry_time"`
	ExitTime   string  `json:"exit_time"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	Quantity   float64 `json:"quantity"`
	PnL        float64 `json:"pnl"`
	PnLPct     float64 `json:"pnl_pct"`
	Reason     string  `json:"reason"`
}

type runBacktestOutput struct {
	RunID        string           `json:"run_id,omitempty"`
	Cached       bool             `json:"cached"`
	Bars         int              `json:"bars"`
	StartBalance float64          `json:"start_balance"`
	EndBalance   float64          `json:"end_balance"`
	Metrics      backtest.Metrics `json:"metrics"`
	Trades       []tradeOutput    `json:"trades,omitempty"`
}

type computeIndicatorsInput struct {
	CandlesPath string         `json:"candles_path" jsonschema:"CSV or Bybit kline JSON file with the candles"`
	Indicators  map[string]any `json:"indicators,omitempty" jsonschema:"indicator block of a strategy; the server default is used when omitted"`
	Last        int            `json:"last,omitempty" jsonschema:"number of trailing values per indicator, default 10"`
}

// seriesOutput values line up with times[offset:]. Bars still inside the
// warm-up are left out.
type seriesOutput struct {
	Name   string    `json:"name"`
	Warmup int       `json:"warmup"`
	Offset int       `json:"offset"`
	Values []float64 `json:"values"`
}

type computeIndicatorsOutput struct {
	Bars   int            `json:"bars"`
	Times  []string       `json:"times"`
	Series []seriesOutput `json:"series"`
}

type validateConfigInput struct {
	Strategy map[string]any `json:"strategy" jsonschema:"strategy document to check"`
}

type validateConfigOutput struct {
	Valid  bool   `json:"valid"`
	Field  string `json:"field,omitempty"`
	Error  string `json:"error,omitempty"`
	Warmup int    `json:"warmup,omitempty"`
}

// strategyFrom re-encodes a decoded JSON object and parses it strictly.
// A nil document yields def.
func strategyFrom(doc map[string]any, def config.Strategy) (config.Strategy, error) {
	if doc == nil {
		return def, def.Validate()
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return config.Strategy{}, &errs.ConfigError{Msg: "encode strategy", Err: err}
	}
	return config.ParseStrategyJSON(b)
}

func indicatorsFrom(doc map[string]any, def config.IndicatorConfig) (config.IndicatorConfig, error) {
	if doc == nil {
		return def, def.Validate()
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return config.IndicatorConfig{}, &errs.ConfigError{Msg: "encode indicators", Err: err}
	}
	var ic config.IndicatorConfig
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ic); err != nil {
		return config.IndicatorConfig{}, &errs.ConfigError{Field: "indicators", Msg: "decode indicators", Err: err}
	}
	return ic, ic.Validate()
}

func candlesFrom(in []candleInput) ([]market.Candle, error) {
	out := make([]market.Candle, len(in))
	for i, c := range in {
		t, err := market.ParseTime(c.Time)
		if err != nil {
			return nil, errs.Data("candle %d: %v", i, err)
		}
		out[i] = market.Candle{Time: t, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume}
	}
	if err := market.Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

func tradesOut(res *backtest.Result) []tradeOutput {
	out := make([]tradeOutput, len(res.Trades))
	for i, t := range res.Trades {
		out[i] = tradeOutput{
			Side:       t.Side.String(),
			EntryTime:  t.EntryTime.UTC().Format(time.RFC3339),
			ExitTime:   t.ExitTime.UTC().Format(time.RFC3339),
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			Quantity:   t.Quantity,
			PnL:        t.PnL,
			PnLPct:     t.PnLPct,
			Reason:     string(t.Reason),
		}
	}
	return out
}

func normalizeLast(n int) int {
	switch {
	case n <= 0:
		return defaultLast
	case n > maxLast:
		return maxLast
	}
	return n
}

func invalid(err error) validateConfigOutput {
	out := validateConfigOutput{Error: err.Error()}
	var ce *errs.ConfigError
	if errors.As(err, &ce) {
		out.Field = ce.Field
	}
	return out
}
