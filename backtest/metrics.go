package backtest

import (
	"github.com/montanaflynn/stats"

	"github.com/rustyeddy/mcp-trader/errs"
	"github.com/rustyeddy/mcp-trader/risk"
)

// Metrics summarizes a run. Percentages are in percent (5 means 5%).
// Ratios that are undefined for the run (no losses, flat equity) are 0.
type Metrics struct {
	TotalReturnPct float64 `json:"total_return_pct"`
	NetPnL         float64 `json:"net_pnl"`

	Trades  int     `json:"trades"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	WinRate float64 `json:"win_rate"`

	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"`
	LargestWin   float64 `json:"largest_win"`
	LargestLoss  float64 `json:"largest_loss"`
	ProfitFactor float64 `json:"profit_factor"`
	AvgBarsHeld  float64 `json:"avg_bars_held"`

	MaxDrawdown    float64 `json:"max_drawdown"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`

	MaxConsecutiveWins   int `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int `json:"max_consecutive_losses"`

	// Sharpe is the mean over the standard deviation of bar-to-bar equity
	// returns, not annualized.
	Sharpe float64 `json:"sharpe"`

	ExitReasons map[risk.ExitReason]int `json:"exit_reasons"`
}

// Summarize reduces a trade history and equity curve to Metrics. Trades
// must be in order and must not overlap; anything else is a
// StateInvariantError.
func Summarize(trades []risk.TradeRecord, equity []EquityPoint, startBalance float64) (Metrics, error) {
	if err := checkTrades(trades); err != nil {
		return Metrics{}, err
	}

	m := Metrics{
		Trades:      len(trades),
		ExitReasons: make(map[risk.ExitReason]int, len(risk.Reasons)),
	}
	for _, r := range risk.Reasons {
		m.ExitReasons[r] = 0
	}

	var wins, losses stats.Float64Data
	var bars int
	streakW, streakL := 0, 0
	for _, t := range trades {
		m.NetPnL += t.PnL
		m.ExitReasons[t.Reason]++
		bars += t.Bars()

		switch {
		case t.PnL > 0:
			wins = append(wins, t.PnL)
			streakW, streakL = streakW+1, 0
		case t.PnL < 0:
			losses = append(losses, t.PnL)
			streakW, streakL = 0, streakL+1
		default:
			streakW, streakL = 0, 0
		}
		m.MaxConsecutiveWins = max(m.MaxConsecutiveWins, streakW)
		m.MaxConsecutiveLosses = max(m.MaxConsecutiveLosses, streakL)
	}

	m.Wins, m.Losses = len(wins), len(losses)
	if m.Trades > 0 {
		m.WinRate = float64(m.Wins) / float64(m.Trades) * 100
		m.AvgBarsHeld = float64(bars) / float64(m.Trades)
	}

	// stats returns an error only for empty input, which leaves the zero value.
	grossWin, _ := wins.Sum()
	grossLoss, _ := losses.Sum()
	m.AvgWin, _ = wins.Mean()
	m.AvgLoss, _ = losses.Mean()
	m.LargestWin, _ = wins.Max()
	m.LargestLoss, _ = losses.Min()
	if grossLoss < 0 {
		m.ProfitFactor = grossWin / -grossLoss
	}

	if len(equity) > 0 && startBalance > 0 {
		end := equity[len(equity)-1].Equity
		m.TotalReturnPct = (end/startBalance - 1) * 100
	}
	m.MaxDrawdown, m.MaxDrawdownPct = drawdown(equity, startBalance)
	m.Sharpe = sharpe(equity)

	return m, nil
}

func checkTrades(trades []risk.TradeRecord) error {
	for i, t := range trades {
		if !t.ExitTime.After(t.EntryTime) || t.ExitIndex <= t.EntryIndex {
			return errs.Invariant("trade %d exits at bar %d, not after entry at bar %d", i, t.ExitIndex, t.EntryIndex)
		}
		if i > 0 {
			prev := trades[i-1]
			if t.EntryIndex <= prev.ExitIndex || !t.EntryTime.After(prev.ExitTime) {
				return errs.Invariant("trade %d entered at bar %d before trade %d closed at bar %d", i, t.EntryIndex, i-1, prev.ExitIndex)
			}
		}
	}
	return nil
}

// drawdown is the largest peak-to-trough fall of the equity curve, in
// account currency and as a percentage of the peak. The starting balance
// counts as the first peak.
func drawdown(equity []EquityPoint, startBalance float64) (abs, pct float64) {
	peak := startBalance
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		if dd := peak - p.Equity; dd > abs {
			abs = dd
		}
		if peak > 0 {
			if ddPct := (peak - p.Equity) / peak * 100; ddPct > pct {
				pct = ddPct
			}
		}
	}
	return abs, pct
}

func sharpe(equity []EquityPoint) float64 {
	if len(equity) < 2 {
		return 0
	}
	rets := make(stats.Float64Data, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev == 0 {
			continue
		}
		rets = append(rets, equity[i].Equity/prev-1)
	}
	mean, err := rets.Mean()
	if err != nil {
		return 0
	}
	sd, err := rets.StandardDeviation()
	if err != nil || sd == 0 {
		return 0
	}
	return mean / sd
}
