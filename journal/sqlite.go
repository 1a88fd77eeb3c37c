package journal

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/mcp-trader/backtest"
	"github.com/rustyeddy/mcp-trader/risk"
)

type SQLite struct {
	db *sql.DB
}

var _ Journal = (*SQLite)(nil)

// NewSQLite opens (or creates) the database at path and applies Schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// RecordRun stores the run, its trades and its equity curve in one
// transaction.
func (j *SQLite) RecordRun(ctx context.Context, r Run, trades []risk.TradeRecord, equity []backtest.EquityPoint) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO backtest_runs
		(run_id, created, symbol, interval, dataset, strategy, start_time, end_time, bars,
		 start_balance, end_balance, trades, wins, losses, win_rate, net_pnl, return_pct,
		 profit_factor, max_dd_pct, sharpe)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created, r.Symbol, r.Interval, r.Dataset, string(r.Strategy), r.Start, r.End, r.Bars,
		r.StartBalance, r.EndBalance, r.Trades, r.Wins, r.Losses, r.WinRate, r.NetPnL, r.ReturnPct,
		r.ProfitFactor, r.MaxDDPct, r.Sharpe,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}

	tstmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades
		(run_id, seq, side, entry_time, exit_time, entry_index, exit_index,
		 entry_price, exit_price, quantity, notional, pnl, pnl_pct, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer tstmt.Close()

	for i, t := range trades {
		if _, err := tstmt.ExecContext(ctx,
			r.RunID, i, t.Side.String(), t.EntryTime, t.ExitTime, t.EntryIndex, t.ExitIndex,
			t.EntryPrice, t.ExitPrice, t.Quantity, t.Notional, t.PnL, t.PnLPct, string(t.Reason),
		); err != nil {
			return fmt.Errorf("insert trade %d: %w", i, err)
		}
	}

	estmt, err := tx.PrepareContext(ctx, `
		INSERT INTO equity (run_id, seq, time, balance, equity)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer estmt.Close()

	for i, e := range equity {
		if _, err := estmt.ExecContext(ctx, r.RunID, i, e.Time, e.Balance, e.Equity); err != nil {
			return fmt.Errorf("insert equity %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// DeleteRun removes a run and everything recorded with it.
func (j *SQLite) DeleteRun(ctx context.Context, runID string) error {
	res, err := j.db.ExecContext(ctx, `DELETE FROM backtest_runs WHERE run_id = ?`, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	return nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
