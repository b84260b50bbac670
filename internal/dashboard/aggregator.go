// Package dashboard rolls ledger positions and FIFO results up into the
// portfolio-level figures served to the user's dashboard.
package dashboard

import (
	"sort"

	"github.com/shopspring/decimal"

	"tradedesk/internal/fifo"
	"tradedesk/types"
)

const performerLimit = 5

// Aggregate composes the full transaction history and the current position
// set (with unrealized P&L already refreshed from the live price feed) into
// dashboard metrics. Realized P&L comes from FIFO-matching each symbol's
// buys and sells.
func Aggregate(txns []types.Transaction, positions []types.Position) types.DashboardMetrics {
	m := types.DashboardMetrics{
		TotalInvested: decimal.Zero,
		TotalProceeds: decimal.Zero,
		RealizedPnL:   decimal.Zero,
		UnrealizedPnL: decimal.Zero,
	}

	buysBySymbol := make(map[string][]types.Transaction)
	sellsBySymbol := make(map[string][]types.Transaction)
	for _, txn := range txns {
		switch txn.Kind {
		case types.KindBuy:
			m.TotalInvested = m.TotalInvested.Add(txn.NetAmount.Abs())
			buysBySymbol[txn.Symbol] = append(buysBySymbol[txn.Symbol], txn)
		case types.KindSell:
			m.TotalProceeds = m.TotalProceeds.Add(txn.NetAmount)
			sellsBySymbol[txn.Symbol] = append(sellsBySymbol[txn.Symbol], txn)
		}
	}

	realizedBySymbol := make(map[string]decimal.Decimal)
	var pooled []types.MatchedTrade
	for symbol, sells := range sellsBySymbol {
		pnl, trades := fifo.Match(buysBySymbol[symbol], sells)
		realizedBySymbol[symbol] = pnl
		m.RealizedPnL = m.RealizedPnL.Add(pnl)
		pooled = append(pooled, trades...)
	}
	m.TradeStats = fifo.TradeStats(pooled)

	pnlBySymbol := make(map[string]decimal.Decimal, len(realizedBySymbol))
	for symbol, pnl := range realizedBySymbol {
		pnlBySymbol[symbol] = pnl
	}
	for _, pos := range positions {
		m.UnrealizedPnL = m.UnrealizedPnL.Add(pos.UnrealizedPnL)
		cur, ok := pnlBySymbol[pos.Symbol]
		if !ok {
			cur = decimal.Zero
		}
		pnlBySymbol[pos.Symbol] = cur.Add(pos.UnrealizedPnL)
	}

	m.TotalPnL = m.RealizedPnL.Add(m.UnrealizedPnL)
	m.NetInvested = m.TotalInvested.Sub(m.TotalProceeds)
	m.ReturnPercent = decimal.Zero
	if m.NetInvested.IsPositive() {
		m.ReturnPercent = m.TotalPnL.Div(m.NetInvested).Mul(decimal.NewFromInt(100))
	}

	m.TopPerformers, m.WorstPerformers = rankPerformers(pnlBySymbol)
	return m
}

// rankPerformers returns the best and worst symbols by combined realized plus
// unrealized P&L, five each, with symbol order as the deterministic tiebreak.
func rankPerformers(pnlBySymbol map[string]decimal.Decimal) (top, worst []types.SymbolPnL) {
	ranked := make([]types.SymbolPnL, 0, len(pnlBySymbol))
	for symbol, pnl := range pnlBySymbol {
		ranked = append(ranked, types.SymbolPnL{Symbol: symbol, PnL: pnl})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if !ranked[i].PnL.Equal(ranked[j].PnL) {
			return ranked[i].PnL.GreaterThan(ranked[j].PnL)
		}
		return ranked[i].Symbol < ranked[j].Symbol
	})

	top = make([]types.SymbolPnL, 0, performerLimit)
	for i := 0; i < len(ranked) && i < performerLimit; i++ {
		top = append(top, ranked[i])
	}
	worst = make([]types.SymbolPnL, 0, performerLimit)
	for i := len(ranked) - 1; i >= 0 && len(worst) < performerLimit; i-- {
		worst = append(worst, ranked[i])
	}
	return top, worst
}
