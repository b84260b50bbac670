package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	"tradedesk/internal/backtest"
	"tradedesk/internal/repository"
	"tradedesk/types"
)

func main() {
	strategyPath := flag.String("strategy", "", "path to the strategy yaml file")
	interval := flag.String("interval", string(types.Day), "candle interval (1, 5, 15, 30, 60, D, W)")
	csvPath := flag.String("csv", "", "optional path to export the trade list as CSV")
	flag.Parse()

	if *strategyPath == "" {
		fmt.Fprintln(os.Stderr, "usage: backtest -strategy strategy.yaml [-interval D] [-csv trades.csv]")
		os.Exit(1)
	}

	_ = godotenv.Load()
	if err := run(*strategyPath, types.Interval(*interval), *csvPath); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(strategyPath string, interval types.Interval, csvPath string) error {
	cfg, err := backtest.LoadConfig(strategyPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := repository.NewDatabase(os.Getenv("DATABASE_URL"))
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	candles, err := db.GetCandles(context.Background(), cfg.Symbol, interval, cfg.From, cfg.To)
	if err != nil {
		return err
	}

	bar := progressbar.Default(int64(len(candles)), "simulating")
	result, err := backtest.RunWithProgress(cfg, candles, func() { bar.Add(1) })
	if err != nil {
		return err
	}

	printReport(cfg, result)

	if csvPath != "" {
		if err := backtest.WriteTradesCSVFile(csvPath, result.Trades); err != nil {
			return err
		}
		fmt.Printf("trades written to %s\n", csvPath)
	}
	return nil
}

func printReport(cfg *backtest.Config, result *backtest.Result) {
	m := result.Metrics

	fmt.Println()
	fmt.Println("========================================")
	fmt.Printf("  Backtest Report: %s\n", cfg.Symbol)
	fmt.Println("========================================")
	fmt.Printf("Initial capital:    %s\n", m.InitialCapital.StringFixed(2))
	fmt.Printf("Final capital:      %s\n", m.FinalCapital.StringFixed(2))
	fmt.Printf("Total return:       %s%%\n", m.TotalReturnPct.StringFixed(2))
	fmt.Println("----------------------------------------")
	fmt.Printf("Total trades:       %d\n", m.TotalTrades)
	fmt.Printf("Winning trades:     %d\n", m.WinningTrades)
	fmt.Printf("Losing trades:      %d\n", m.LosingTrades)
	fmt.Printf("Win rate:           %s%%\n", m.WinRate.StringFixed(2))
	fmt.Printf("Gross profit:       %s\n", m.GrossProfit.StringFixed(2))
	fmt.Printf("Gross loss:         %s\n", m.GrossLoss.StringFixed(2))
	fmt.Printf("Profit factor:      %s\n", formatProfitFactor(m.ProfitFactor))
	fmt.Println("----------------------------------------")
	fmt.Printf("Max drawdown:       %s (%s%%)\n", m.MaxDrawdown.StringFixed(2), m.MaxDrawdownPct.StringFixed(2))
	fmt.Printf("Sharpe ratio:       %.4f\n", m.SharpeRatio)
	fmt.Printf("Avg trade duration: %.1f candles\n", m.AvgTradeDuration)
	fmt.Println("========================================")

	if len(result.Trades) > 0 {
		first := result.Trades[0]
		last := result.Trades[len(result.Trades)-1]
		fmt.Printf("First trade:        %s\n", first.EntryDate.Format(time.DateOnly))
		fmt.Printf("Last trade:         %s\n", last.ExitDate.Format(time.DateOnly))
	}
	fmt.Println()
}

func formatProfitFactor(pf float64) string {
	if math.IsInf(pf, 1) {
		return "Infinity"
	}
	return fmt.Sprintf("%.2f", pf)
}
