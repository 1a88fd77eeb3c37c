package backtest

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/rustyeddy/mcp-trader/risk"
)

// WriteReport renders a result as plain-text tables: a summary, the exit
// reason breakdown and, when trades is true, the trade list.
func WriteReport(w io.Writer, res *Result, trades bool) {
	m := res.Metrics

	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")
	if n := len(res.Equity); n > 0 {
		fmt.Fprintf(w, "Start:         %s\n", res.Equity[0].Time.Format(time.RFC3339))
		fmt.Fprintf(w, "End:           %s\n", res.Equity[n-1].Time.Format(time.RFC3339))
		fmt.Fprintf(w, "Bars:          %d\n", n)
	}
	fmt.Fprintln(w)

	summary := tablewriter.NewWriter(w)
	summary.SetHeader([]string{"Metric", "Value"})
	summary.SetAlignment(tablewriter.ALIGN_RIGHT)
	summary.AppendBulk([][]string{
		{"Start Balance", fmt.Sprintf("%.2f", res.StartBalance)},
		{"End Balance", fmt.Sprintf("%.2f", res.EndBalance)},
		{"Net P/L", fmt.Sprintf("%.2f", m.NetPnL)},
		{"Return", fmt.Sprintf("%.2f%%", m.TotalReturnPct)},
		{"Trades", fmt.Sprintf("%d", m.Trades)},
		{"Wins / Losses", fmt.Sprintf("%d / %d", m.Wins, m.Losses)},
		{"Win Rate", fmt.Sprintf("%.2f%%", m.WinRate)},
		{"Avg Win", fmt.Sprintf("%.2f", m.AvgWin)},
		{"Avg Loss", fmt.Sprintf("%.2f", m.AvgLoss)},
		{"Largest Win", fmt.Sprintf("%.2f", m.LargestWin)},
		{"Largest Loss", fmt.Sprintf("%.2f", m.LargestLoss)},
		{"Profit Factor", fmt.Sprintf("%.2f", m.ProfitFactor)},
		{"Max Drawdown", fmt.Sprintf("%.2f (%.2f%%)", m.MaxDrawdown, m.MaxDrawdownPct)},
		{"Max Consec. W/L", fmt.Sprintf("%d / %d", m.MaxConsecutiveWins, m.MaxConsecutiveLosses)},
		{"Avg Bars Held", fmt.Sprintf("%.1f", m.AvgBarsHeld)},
		{"Sharpe (per bar)", fmt.Sprintf("%.4f", m.Sharpe)},
	})
	summary.Render()
	fmt.Fprintln(w)

	reasons := tablewriter.NewWriter(w)
	reasons.SetHeader([]string{"Exit Reason", "Count"})
	for _, r := range risk.Reasons {
		reasons.Append([]string{string(r), fmt.Sprintf("%d", m.ExitReasons[r])})
	}
	reasons.Render()

	if !trades || len(res.Trades) == 0 {
		return
	}

	fmt.Fprintln(w)
	list := tablewriter.NewWriter(w)
	list.SetHeader([]string{"#", "Side", "Entry", "Exit", "Entry Px", "Exit Px", "P/L", "P/L %", "Reason"})
	for i, t := range res.Trades {
		list.Append([]string{
			fmt.Sprintf("%d", i+1),
			t.Side.String(),
			t.EntryTime.Format(time.RFC3339),
			t.ExitTime.Format(time.RFC3339),
			fmt.Sprintf("%.4f", t.EntryPrice),
			fmt.Sprintf("%.4f", t.ExitPrice),
			fmt.Sprintf("%.2f", t.PnL),
			fmt.Sprintf("%.2f", t.PnLPct),
			string(t.Reason),
		})
	}
	list.Render()
}

// WriteSweepReport lists sweep results in input order, one row each.
func WriteSweepReport(w io.Writer, results []SweepResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Trades", "Win Rate", "Return", "Max DD", "Profit Factor"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for i, r := range results {
		m := r.Result.Metrics
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%d", m.Trades),
			fmt.Sprintf("%.2f%%", m.WinRate),
			fmt.Sprintf("%.2f%%", m.TotalReturnPct),
			fmt.Sprintf("%.2f%%", m.MaxDrawdownPct),
			fmt.Sprintf("%.2f", m.ProfitFactor),
		})
	}
	table.Render()
}
