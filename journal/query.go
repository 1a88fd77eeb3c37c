package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/rustyeddy/mcp-trader/backtest"
	"github.com/rustyeddy/mcp-trader/risk"
)

const runColumns = `run_id, created, symbol, interval, dataset, strategy, start_time, end_time, bars,
	start_balance, end_balance, trades, wins, losses, win_rate, net_pnl, return_pct,
	profit_factor, max_dd_pct, sharpe`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	var strategy string
	err := s.Scan(
		&r.RunID, &r.Created, &r.Symbol, &r.Interval, &r.Dataset, &strategy,
		&r.Start, &r.End, &r.Bars,
		&r.StartBalance, &r.EndBalance, &r.Trades, &r.Wins, &r.Losses, &r.WinRate,
		&r.NetPnL, &r.ReturnPct, &r.ProfitFactor, &r.MaxDDPct, &r.Sharpe,
	)
	r.Strategy = []byte(strategy)
	return r, err
}

// GetRun returns a single run by ID.
func (j *SQLite) GetRun(ctx context.Context, runID string) (Run, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM backtest_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
		}
		return Run{}, err
	}
	return r, nil
}

// ListRuns returns the most recent runs first. limit <= 0 means all.
func (j *SQLite) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM backtest_runs ORDER BY created DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTradesByRunID returns the trades of a run in the order they closed.
func (j *SQLite) ListTradesByRunID(ctx context.Context, runID string) ([]risk.TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT side, entry_time, exit_time, entry_index, exit_index,
		       entry_price, exit_price, quantity, notional, pnl, pnl_pct, reason
		FROM trades
		WHERE run_id = ?
		ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []risk.TradeRecord
	for rows.Next() {
		var rec risk.TradeRecord
		var side, reason string
		if err := rows.Scan(
			&side,
			&rec.EntryTime,
			&rec.ExitTime,
			&rec.EntryIndex,
			&rec.ExitIndex,
			&rec.EntryPrice,
			&rec.ExitPrice,
			&rec.Quantity,
			&rec.Notional,
			&rec.PnL,
			&rec.PnLPct,
			&reason,
		); err != nil {
			return nil, err
		}
		if err := rec.Side.UnmarshalText([]byte(side)); err != nil {
			return nil, err
		}
		rec.Reason = risk.ExitReason(reason)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquityByRunID returns the equity curve of a run.
func (j *SQLite) ListEquityByRunID(ctx context.Context, runID string) ([]backtest.EquityPoint, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT time, balance, equity
		FROM equity
		WHERE run_id = ?
		ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []backtest.EquityPoint
	for rows.Next() {
		var p backtest.EquityPoint
		if err := rows.Scan(&p.Time, &p.Balance, &p.Equity); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ExportOrg loads a run with its trades and renders the Org block.
func (j *SQLite) ExportOrg(ctx context.Context, runID string) (string, error) {
	r, err := j.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	trades, err := j.ListTradesByRunID(ctx, runID)
	if err != nil {
		return "", err
	}
	return FormatRunOrg(r, trades)
}

// ExportCSV writes the trades and equity curve of a run as CSV.
func (j *SQLite) ExportCSV(ctx context.Context, runID string, trades, equity io.Writer) error {
	if _, err := j.GetRun(ctx, runID); err != nil {
		return err
	}
	ts, err := j.ListTradesByRunID(ctx, runID)
	if err != nil {
		return err
	}
	if err := WriteTradesCSV(trades, runID, ts); err != nil {
		return err
	}
	eq, err := j.ListEquityByRunID(ctx, runID)
	if err != nil {
		return err
	}
	return WriteEquityCSV(equity, runID, eq)
}
