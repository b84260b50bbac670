package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"tradedesk/types"
)

// WriteTradesCSVFile writes the trade list to a CSV file at the given path.
func WriteTradesCSVFile(path string, trades []types.BacktestTrade) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trades file: %w", err)
	}
	defer f.Close()

	return WriteTradesCSV(f, trades)
}

// WriteTradesCSV writes trades to any io.Writer as CSV. Pass os.Stdout for
// debugging, or a file.
func WriteTradesCSV(w io.Writer, trades []types.BacktestTrade) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"entry_date",
		"exit_date",
		"entry_price",
		"exit_price",
		"quantity",
		"pnl",
		"pnl_pct",
		"holding_period",
		"exit_reason",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, tr := range trades {
		record := []string{
			tr.EntryDate.Format(time.RFC3339),
			tr.ExitDate.Format(time.RFC3339),
			tr.EntryPrice.String(),
			tr.ExitPrice.String(),
			fmt.Sprintf("%d", tr.Quantity),
			tr.PnL.String(),
			tr.PnLPct.String(),
			fmt.Sprintf("%d", tr.HoldingPeriod),
			tr.ExitReason,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
