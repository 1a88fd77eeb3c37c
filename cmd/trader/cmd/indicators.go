package cmd

import (
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/mcp-trader/indicators"
)

var indicatorsCmd = &cobra.Command{
	Use:   "indicators",
	Short: "Print the configured indicators for the latest candles",
	Long: `Indicators evaluates every indicator enabled in the strategy and prints
the trailing values as a table. Values still in their warm-up are shown
as "-".

Example:
  trader indicators --data data/btcusdt_1m.csv --last 20`,
	Args: cobra.NoArgs,
	RunE: runIndicators,
}

var (
	indDataPath string
	indLast     int
)

func init() {
	rootCmd.AddCommand(indicatorsCmd)

	indicatorsCmd.Flags().StringVarP(&indDataPath, "data", "d", "", "candle CSV or Bybit kline JSON (overrides data.path)")
	indicatorsCmd.Flags().IntVarP(&indLast, "last", "n", 10, "number of trailing candles to show")
}

func runIndicators(cmd *cobra.Command, args []string) error {
	series, _, err := loadCandles(indDataPath, "", "")
	if err != nil {
		return err
	}
	set, err := indicators.Evaluate(series.Candles, cfg.Strategy.Indicators)
	if err != nil {
		return err
	}

	names := set.Names()
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetAutoFormatHeaders(false)
	table.SetHeader(append([]string{"time", "close"}, names...))
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	from := max(series.Len()-indLast, 0)
	for i := from; i < series.Len(); i++ {
		c := series.Candles[i]
		row := []string{c.Time.UTC().Format(time.DateTime), strconv.FormatFloat(c.Close, 'f', 4, 64)}
		for _, name := range names {
			s, _ := set.Get(name)
			if v, ok := s.At(i); ok {
				row = append(row, strconv.FormatFloat(v, 'f', 4, 64))
			} else {
				row = append(row, "-")
			}
		}
		table.Append(row)
	}
	table.Render()
	return nil
}
