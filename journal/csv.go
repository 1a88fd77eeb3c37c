package journal

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/rustyeddy/mcp-trader/backtest"
	"github.com/rustyeddy/mcp-trader/risk"
)

type tradeRow struct {
	RunID      string  `csv:"run_id"`
	Seq        int     `csv:"seq"`
	Side       string  `csv:"side"`
	EntryTime  string  `csv:"entry_time"`
	ExitTime   string  `csv:"exit_time"`
	EntryIndex int     `csv:"entry_index"`
	ExitIndex  int     `csv:"exit_index"`
	EntryPrice float64 `csv:"entry_price"`
	ExitPrice  float64 `csv:"exit_price"`
	Quantity   float64 `csv:"quantity"`
	Notional   float64 `csv:"notional"`
	PnL        float64 `csv:"pnl"`
	PnLPct     float64 `csv:"pnl_pct"`
	Reason     string  `csv:"reason"`
}

type equityRow struct {
	RunID   string  `csv:"run_id"`
	Seq     int     `csv:"seq"`
	Time    string  `csv:"time"`
	Balance float64 `csv:"balance"`
	Equity  float64 `csv:"equity"`
}

func tradeRows(runID string, trades []risk.TradeRecord) []tradeRow {
	rows := make([]tradeRow, len(trades))
	for i, t := range trades {
		rows[i] = tradeRow{
			RunID:      runID,
			Seq:        i,
			Side:       t.Side.String(),
			EntryTime:  t.EntryTime.UTC().Format(time.RFC3339),
			ExitTime:   t.ExitTime.UTC().Format(time.RFC3339),
			EntryIndex: t.EntryIndex,
			ExitIndex:  t.ExitIndex,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			Quantity:   t.Quantity,
			Notional:   t.Notional,
			PnL:        t.PnL,
			PnLPct:     t.PnLPct,
			Reason:     string(t.Reason),
		}
	}
	return rows
}

func equityRows(runID string, equity []backtest.EquityPoint) []equityRow {
	rows := make([]equityRow, len(equity))
	for i, e := range equity {
		rows[i] = equityRow{
			RunID:   runID,
			Seq:     i,
			Time:    e.Time.UTC().Format(time.RFC3339),
			Balance: e.Balance,
			Equity:  e.Equity,
		}
	}
	return rows
}

// WriteTradesCSV writes trades with a header row.
func WriteTradesCSV(w io.Writer, runID string, trades []risk.TradeRecord) error {
	rows := tradeRows(runID, trades)
	return gocsv.Marshal(&rows, w)
}

// WriteEquityCSV writes the equity curve with a header row.
func WriteEquityCSV(w io.Writer, runID string, equity []backtest.EquityPoint) error {
	rows := equityRows(runID, equity)
	return gocsv.Marshal(&rows, w)
}

// CSVJournal appends runs to a pair of CSV files. Headers are written
// only when a file starts out empty, so several runs can share the
// same files.
type CSVJournal struct {
	tf, ef         *os.File
	tHeader, eHead bool
}

var _ Journal = (*CSVJournal)(nil)

func NewCSV(tradesPath, equityPath string) (*CSVJournal, error) {
	tf, tHeader, err := openAppend(tradesPath)
	if err != nil {
		return nil, err
	}
	ef, eHead, err := openAppend(equityPath)
	if err != nil {
		tf.Close()
		return nil, err
	}
	return &CSVJournal{tf: tf, ef: ef, tHeader: tHeader, eHead: eHead}, nil
}

// openAppend opens path for appending and reports whether it already
// has content.
func openAppend(path string) (*os.File, bool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, false, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, false, err
	}
	return f, st.Size() > 0, nil
}

func (j *CSVJournal) RecordRun(ctx context.Context, r Run, trades []risk.TradeRecord, equity []backtest.EquityPoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if rows := tradeRows(r.RunID, trades); len(rows) > 0 {
		if err := marshalRows(&rows, j.tf, j.tHeader); err != nil {
			return err
		}
		j.tHeader = true
	}
	if rows := equityRows(r.RunID, equity); len(rows) > 0 {
		if err := marshalRows(&rows, j.ef, j.eHead); err != nil {
			return err
		}
		j.eHead = true
	}
	return nil
}

func marshalRows(rows any, w io.Writer, headerDone bool) error {
	if headerDone {
		return gocsv.MarshalWithoutHeaders(rows, w)
	}
	return gocsv.Marshal(rows, w)
}

func (j *CSVJournal) Close() error {
	if err := j.tf.Close(); err != nil {
		j.ef.Close()
		return err
	}
	return j.ef.Close()
}
