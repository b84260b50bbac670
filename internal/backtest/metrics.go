package backtest

import (
	"encoding/json"
	"math"

	"github.com/shopspring/decimal"

	"tradedesk/types"
)

// Metrics are derived from the completed trade list and initial capital.
//
// ProfitFactor is gross profit over gross loss and becomes +Inf when there
// are wins but no losses. SharpeRatio is the simplified mean/stddev of
// per-trade pnl% with no annualization or risk-free adjustment; it is an
// approximation, not the textbook ratio. AvgTradeDuration is in candles.
type Metrics struct {
	InitialCapital   decimal.Decimal `json:"initial_capital"`
	FinalCapital     decimal.Decimal `json:"final_capital"`
	TotalReturnPct   decimal.Decimal `json:"total_return_pct"`
	TotalTrades      int             `json:"total_trades"`
	WinningTrades    int             `json:"winning_trades"`
	LosingTrades     int             `json:"losing_trades"`
	WinRate          decimal.Decimal `json:"win_rate"`
	GrossProfit      decimal.Decimal `json:"gross_profit"`
	GrossLoss        decimal.Decimal `json:"gross_loss"`
	ProfitFactor     float64         `json:"profit_factor"`
	MaxDrawdown      decimal.Decimal `json:"max_drawdown"`
	MaxDrawdownPct   decimal.Decimal `json:"max_drawdown_pct"`
	SharpeRatio      float64         `json:"sharpe_ratio"`
	AvgTradeDuration float64         `json:"avg_trade_duration"`
}

func computeMetrics(trades []types.BacktestTrade, initialCapital decimal.Decimal) Metrics {
	m := Metrics{
		InitialCapital: initialCapital,
		FinalCapital:   initialCapital,
		TotalReturnPct: decimal.Zero,
		WinRate:        decimal.Zero,
		GrossProfit:    decimal.Zero,
		GrossLoss:      decimal.Zero,
		MaxDrawdown:    decimal.Zero,
		MaxDrawdownPct: decimal.Zero,
		TotalTrades:    len(trades),
	}

	totalPnL := decimal.Zero
	holdingSum := 0
	for _, tr := range trades {
		totalPnL = totalPnL.Add(tr.PnL)
		holdingSum += tr.HoldingPeriod
		switch {
		case tr.PnL.IsPositive():
			m.WinningTrades++
			m.GrossProfit = m.GrossProfit.Add(tr.PnL)
		case tr.PnL.IsNegative():
			m.LosingTrades++
			m.GrossLoss = m.GrossLoss.Add(tr.PnL.Abs())
		}
	}

	m.FinalCapital = initialCapital.Add(totalPnL)
	if initialCapital.IsPositive() {
		m.TotalReturnPct = totalPnL.Div(initialCapital).Mul(decimal.NewFromInt(100))
	}
	if m.TotalTrades > 0 {
		m.WinRate = decimal.NewFromInt(int64(m.WinningTrades)).
			Div(decimal.NewFromInt(int64(m.TotalTrades))).
			Mul(decimal.NewFromInt(100))
		m.AvgTradeDuration = float64(holdingSum) / float64(m.TotalTrades)
	}

	m.ProfitFactor = profitFactor(m.GrossProfit, m.GrossLoss)
	m.MaxDrawdown, m.MaxDrawdownPct = maxDrawdown(trades, initialCapital)
	m.SharpeRatio = sharpeRatio(trades)
	return m
}

// profitFactor resolves the zero-loss edge with +Inf (wins, no losses) and 0
// (no wins at all) instead of NaN or an error.
func profitFactor(grossProfit, grossLoss decimal.Decimal) float64 {
	if grossProfit.IsZero() {
		return 0
	}
	if grossLoss.IsZero() {
		return math.Inf(1)
	}
	return grossProfit.Div(grossLoss).InexactFloat64()
}

// maxDrawdown walks running capital trade by trade against its running peak
// and reports the largest peak-to-trough decline seen, in absolute terms and
// as a fraction of the peak times 100. Zero for a non-decreasing curve.
func maxDrawdown(trades []types.BacktestTrade, initialCapital decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	running := initialCapital
	peak := initialCapital
	maxPct := decimal.Zero
	maxAbs := decimal.Zero

	for _, tr := range trades {
		running = running.Add(tr.PnL)
		if running.GreaterThan(peak) {
			peak = running
			continue
		}
		if !peak.IsPositive() {
			continue
		}
		dd := peak.Sub(running)
		ddPct := dd.Div(peak).Mul(decimal.NewFromInt(100))
		if ddPct.GreaterThan(maxPct) {
			maxPct = ddPct
			maxAbs = dd
		}
	}
	return maxAbs, maxPct
}

// sharpeRatio is mean(pnl%)/stddev(pnl%) over the trade list using the sample
// standard deviation. Fewer than two trades, or zero variance, yields 0.
func sharpeRatio(trades []types.BacktestTrade) float64 {
	if len(trades) < 2 {
		return 0
	}
	returns := make([]float64, len(trades))
	var sum float64
	for i, tr := range trades {
		returns[i] = tr.PnLPct.InexactFloat64()
		sum += returns[i]
	}
	mean := sum / float64(len(returns))

	var varianceSum float64
	for _, r := range returns {
		diff := r - mean
		varianceSum += diff * diff
	}
	std := math.Sqrt(varianceSum / float64(len(returns)-1))
	if std == 0 {
		return 0
	}
	return mean / std
}

// MarshalJSON renders the +Inf profit factor as the string "Infinity", since
// JSON has no representation for it.
func (m Metrics) MarshalJSON() ([]byte, error) {
	type alias Metrics
	out := struct {
		alias
		ProfitFactor json.RawMessage `json:"profit_factor"`
	}{alias: alias(m)}

	if math.IsInf(m.ProfitFactor, 1) {
		out.ProfitFactor = json.RawMessage(`"Infinity"`)
	} else {
		raw, err := json.Marshal(m.ProfitFactor)
		if err != nil {
			return nil, err
		}
		out.ProfitFactor = raw
	}
	return json.Marshal(out)
}
