package journal

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"text/template"

	"github.com/rustyeddy/mcp-trader/risk"
)

var orgFuncs = template.FuncMap{
	"date": func(r Run) string {
		if r.Start.IsZero() {
			return "(start?)"
		}
		return r.Start.Format("2006-01-02") + " .. " + r.End.Format("2006-01-02")
	},
	"ts": func(r risk.TradeRecord, exit bool) string {
		if exit {
			return r.ExitTime.UTC().Format("2006-01-02 15:04")
		}
		return r.EntryTime.UTC().Format("2006-01-02 15:04")
	},
}

var orgTmpl = template.Must(template.New("run").Funcs(orgFuncs).Parse(RunOrgTemplate))

type orgView struct {
	Run
	TradeList []risk.TradeRecord
}

// WriteRunOrg renders r and its trades as an Org mode entry.
func WriteRunOrg(w io.Writer, r Run, trades []risk.TradeRecord) error {
	return orgTmpl.Execute(w, orgView{Run: r, TradeList: trades})
}

func FormatRunOrg(r Run, trades []risk.TradeRecord) (string, error) {
	var buf bytes.Buffer
	if err := WriteRunOrg(&buf, r, trades); err != nil {
		return "", fmt.Errorf("render run %s: %w", r.RunID, err)
	}
	return buf.String(), nil
}

// SaveRunOrg writes the Org entry for r to path.
func SaveRunOrg(path string, r Run, trades []risk.TradeRecord) error {
	s, err := FormatRunOrg(r, trades)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(s), 0o644)
}

const RunOrgTemplate = `* BACKTEST: {{.Symbol}} {{if .Interval}}{{.Interval}}{{else}}(interval?){{end}}
:PROPERTIES:
:RUN_ID:      {{.RunID}}
:SYMBOL:      {{.Symbol}}
:INTERVAL:    {{.Interval}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:RANGE:       {{date .Run}}
:BARS:        {{.Bars}}
:START_BAL:   {{printf "%.2f" .StartBalance}}
:END_BAL:     {{printf "%.2f" .EndBalance}}
:NET_PL:      {{printf "%.2f" .NetPnL}}
:RETURN_PCT:  {{printf "%.2f" .ReturnPct}}
:MAX_DD_PCT:  {{printf "%.2f" .MaxDDPct}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" .WinRate}}
:PROFIT_FAC:  {{printf "%.2f" .ProfitFactor}}
:SHARPE:      {{printf "%.3f" .Sharpe}}
:CREATED:     [{{.Created.UTC.Format "2006-01-02 Mon 15:04"}}]
:END:

** Strategy
#+begin_src json
{{printf "%s" .Strategy}}
#+end_src

** Performance Summary
- Net P/L:        *{{printf "%.2f" .NetPnL}}*
- Return:         *{{printf "%.2f" .ReturnPct}}%*
- Max Drawdown:   *{{printf "%.2f" .MaxDDPct}}%*
- Win Rate:       *{{printf "%.2f" .WinRate}}%*
- Profit Factor:  *{{printf "%.2f" .ProfitFactor}}*

** Trades
{{- if .TradeList}}
| # | Side | Entry | Exit | Entry Px | Exit Px | PnL | PnL % | Reason |
|---+------+-------+------+----------+---------+-----+-------+--------|
{{- range $i, $t := .TradeList}}
| {{$i}} | {{$t.Side}} | {{ts $t false}} | {{ts $t true}} | {{printf "%.4f" $t.EntryPrice}} | {{printf "%.4f" $t.ExitPrice}} | {{printf "%.2f" $t.PnL}} | {{printf "%.2f" $t.PnLPct}} | {{$t.Reason}} |
{{- end}}
{{- else}}
No trades.
{{- end}}

** Review
- What worked:
- What didn't:
- Next actions:
`
