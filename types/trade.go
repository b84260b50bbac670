package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchedTrade is one buy/sell pair produced by FIFO matching. Quantity is the
// matched portion, which may be smaller than either leg; PnL is that portion's
// contribution net of pro-rata charges.
type MatchedTrade struct {
	Symbol    string          `json:"symbol"`
	BuyDate   time.Time       `json:"buy_date"`
	SellDate  time.Time       `json:"sell_date"`
	BuyPrice  decimal.Decimal `json:"buy_price"`
	SellPrice decimal.Decimal `json:"sell_price"`
	Quantity  decimal.Decimal `json:"quantity"`
	PnL       decimal.Decimal `json:"pnl"`
}

// BacktestTrade is one completed round trip from a simulation run.
// HoldingPeriod is measured in candle count, not calendar days.
type BacktestTrade struct {
	EntryDate     time.Time       `json:"entry_date"`
	ExitDate      time.Time       `json:"exit_date"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	ExitPrice     decimal.Decimal `json:"exit_price"`
	Quantity      int64           `json:"quantity"`
	PnL           decimal.Decimal `json:"pnl"`
	PnLPct        decimal.Decimal `json:"pnl_pct"`
	HoldingPeriod int             `json:"holding_period"`
	ExitReason    string          `json:"exit_reason"`
}

// EquityPoint is one snapshot of the simulated portfolio.
type EquityPoint struct {
	Date           time.Time       `json:"date"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	Cash           decimal.Decimal `json:"cash"`
	PositionValue  decimal.Decimal `json:"position_value"`
}
