package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeStats summarizes completed (FIFO-matched) trades. AvgLoss and
// LargestLoss are stored as absolute amounts.
type TradeStats struct {
	TotalTrades   int             `json:"total_trades"`
	WinningTrades int             `json:"winning_trades"`
	LosingTrades  int             `json:"losing_trades"`
	WinRate       decimal.Decimal `json:"win_rate"`
	AvgProfit     decimal.Decimal `json:"avg_profit"`
	AvgLoss       decimal.Decimal `json:"avg_loss"`
	LargestWin    decimal.Decimal `json:"largest_win"`
	LargestLoss   decimal.Decimal `json:"largest_loss"`
}

type SymbolPnL struct {
	Symbol string          `json:"symbol"`
	PnL    decimal.Decimal `json:"pnl"`
}

// DashboardMetrics is the portfolio-level rollup served to the dashboard.
type DashboardMetrics struct {
	TotalInvested   decimal.Decimal `json:"total_invested"`
	TotalProceeds   decimal.Decimal `json:"total_proceeds"`
	NetInvested     decimal.Decimal `json:"net_invested"`
	RealizedPnL     decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL   decimal.Decimal `json:"unrealized_pnl"`
	TotalPnL        decimal.Decimal `json:"total_pnl"`
	ReturnPercent   decimal.Decimal `json:"return_percent"`
	TradeStats      TradeStats      `json:"trade_stats"`
	TopPerformers   []SymbolPnL     `json:"top_performers"`
	WorstPerformers []SymbolPnL     `json:"worst_performers"`
	Trend           []TrendPoint    `json:"trend,omitempty"`
}

// TrendPoint is one day of the P&L trend. NetFlow is the signed cash flow of
// that day (buys negative, sells positive) and Cumulative the running total.
// This is a cash-flow proxy, not mark-to-market daily P&L.
type TrendPoint struct {
	Date       time.Time       `json:"date"`
	NetFlow    decimal.Decimal `json:"net_flow"`
	Cumulative decimal.Decimal `json:"cumulative"`
}

type TrendWindow string

const (
	Window1W  TrendWindow = "1W"
	Window1M  TrendWindow = "1M"
	Window3M  TrendWindow = "3M"
	Window6M  TrendWindow = "6M"
	Window1Y  TrendWindow = "1Y"
	WindowAll TrendWindow = "ALL"
)
