package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/mcp-trader/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Browse recorded backtest runs",
	Long: `Query and export backtest runs recorded in the SQLite journal.

Subcommands:
  list    - List recent runs
  show    - Print a run as an Org mode entry
  export  - Write the trades and equity curve of a run as CSV
  delete  - Remove a run

Examples:
  trader journal list --limit 20
  trader journal show 01JQ...
  trader journal export 01JQ... --trades trades.csv --equity equity.csv`,
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	Args:  cobra.NoArgs,
	RunE:  runJournalList,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a run as an Org mode entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

var journalExportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Write the trades and equity curve of a run as CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalExport,
}

var journalDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Remove a run and its trades",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDelete,
}

var (
	journalDBPath     string
	journalLimit      int
	journalTradesPath string
	journalEquityPath string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalShowCmd)
	journalCmd.AddCommand(journalExportCmd)
	journalCmd.AddCommand(journalDeleteCmd)

	journalCmd.PersistentFlags().StringVar(&journalDBPath, "db", "", "path to SQLite journal DB (overrides journal.db_path)")
	journalListCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "maximum runs to list (0 for all)")
	journalExportCmd.Flags().StringVar(&journalTradesPath, "trades", "trades.csv", "trades CSV output path")
	journalExportCmd.Flags().StringVar(&journalEquityPath, "equity", "equity.csv", "equity CSV output path")
}

func openSQLite() (*journal.SQLite, error) {
	path := journalDBPath
	if path == "" {
		path = cfg.Journal.DBPath
	}
	if path == "" {
		return nil, fmt.Errorf("no journal database; set journal.db_path or --db")
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalList(cmd *cobra.Command, args []string) error {
	j, err := openSQLite()
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.ListRuns(cmd.Context(), journalLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Run ID", "Created", "Symbol", "Bars", "Trades", "Win %", "Return %", "Max DD %"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, r := range runs {
		table.Append([]string{
			r.RunID,
			r.Created.UTC().Format("2006-01-02 15:04"),
			r.Symbol,
			strconv.Itoa(r.Bars),
			strconv.Itoa(r.Trades),
			strconv.FormatFloat(r.WinRate, 'f', 2, 64),
			strconv.FormatFloat(r.ReturnPct, 'f', 2, 64),
			strconv.FormatFloat(r.MaxDDPct, 'f', 2, 64),
		})
	}
	table.Render()
	return nil
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	j, err := openSQLite()
	if err != nil {
		return err
	}
	defer j.Close()

	out, err := j.ExportOrg(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func runJournalExport(cmd *cobra.Command, args []string) error {
	j, err := openSQLite()
	if err != nil {
		return err
	}
	defer j.Close()

	tf, err := os.Create(journalTradesPath)
	if err != nil {
		return err
	}
	defer tf.Close()
	ef, err := os.Create(journalEquityPath)
	if err != nil {
		return err
	}
	defer ef.Close()

	if err := j.ExportCSV(cmd.Context(), args[0], tf, ef); err != nil {
		return err
	}
	if err := tf.Close(); err != nil {
		return err
	}
	if err := ef.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s and %s\n", journalTradesPath, journalEquityPath)
	return nil
}

func runJournalDelete(cmd *cobra.Command, args []string) error {
	j, err := openSQLite()
	if err != nil {
		return err
	}
	defer j.Close()

	if err := j.DeleteRun(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted run %s\n", args[0])
	return nil
}
