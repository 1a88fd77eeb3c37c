package risk

import (
	"fmt"
	"strings"
	"time"
)

// Side is the direction of a position. It doubles as the sign applied to
// price moves.
type Side int8

const (
	Long  Side = +1
	Short Side = -1
)

func (s Side) String() string {
	switch s {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "NONE"
	}
}

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Side) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "LONG":
		*s = Long
	case "SHORT":
		*s = Short
	default:
		return fmt.Errorf("unknown side %q", b)
	}
	return nil
}

// ExitReason records why a position was closed.
type ExitReason string

const (
	ReasonSignal       ExitReason = "signal"
	ReasonProfitTarget ExitReason = "profit_target"
	ReasonStopLoss     ExitReason = "stop_loss"
	ReasonTrailingStop ExitReason = "trailing_stop"
	ReasonEndOfData    ExitReason = "end_of_data"
	ReasonLiquidation  ExitReason = "liquidation"
)

// Reasons lists every exit reason in report order.
var Reasons = []ExitReason{
	ReasonSignal,
	ReasonProfitTarget,
	ReasonStopLoss,
	ReasonTrailingStop,
	ReasonEndOfData,
	ReasonLiquidation,
}

// TradeRecord is a closed position. It never changes once created.
type TradeRecord struct {
	Side       Side       `json:"side"`
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   time.Time  `json:"exit_time"`
	EntryIndex int        `json:"entry_index"`
	ExitIndex  int        `json:"exit_index"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price"`
	Quantity   float64    `json:"quantity"`
	Notional   float64    `json:"notional"`
	PnL        float64    `json:"pnl"`
	PnLPct     float64    `json:"pnl_pct"`
	Reason     ExitReason `json:"reason"`
}

// Win reports whether the trade realized a profit.
func (t TradeRecord) Win() bool { return t.PnL > 0 }

// Bars is the number of bars the position was held.
func (t TradeRecord) Bars() int { return t.ExitIndex - t.EntryIndex }
