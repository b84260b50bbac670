// Package fifo reconciles sell transactions against the oldest unconsumed buy
// lots of a symbol and reports the realized profit and loss.
package fifo

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tradedesk/types"
)

// lot is a working copy of one buy transaction with a remaining-quantity
// counter. Lots live only for the duration of a Match call; the caller's
// transactions are never touched.
type lot struct {
	id        int64
	timestamp time.Time
	price     decimal.Decimal
	quantity  decimal.Decimal // original lot size, used for pro-rata charges
	charges   decimal.Decimal
	remaining decimal.Decimal
}

// Match consumes sells against buys front-to-back and returns the total
// realized P&L together with every matched pair.
//
// Buys are cloned into a lot queue sorted by execution time (id as tiebreak),
// so the buys slice may arrive in any order. Sells, by contract, are consumed
// in exactly the order supplied by the caller and are not re-sorted. Charges
// are allocated pro-rata against the lot's original size on the buy side and
// against the sell's own total quantity on the sell side. Sell quantity left
// over once the lot queue is empty is dropped silently: it contributes no P&L
// and is not an error.
//
// Match derives all working state fresh on every call, so repeated calls over
// the same inputs yield identical results.
func Match(buys, sells []types.Transaction) (decimal.Decimal, []types.MatchedTrade) {
	lots := make([]lot, 0, len(buys))
	for _, b := range buys {
		lots = append(lots, lot{
			id:        b.ID,
			timestamp: b.ExecutedAt,
			price:     b.Price,
			quantity:  b.Quantity,
			charges:   b.TotalCharges,
			remaining: b.Quantity,
		})
	}
	sort.SliceStable(lots, func(i, j int) bool {
		if !lots[i].timestamp.Equal(lots[j].timestamp) {
			return lots[i].timestamp.Before(lots[j].timestamp)
		}
		return lots[i].id < lots[j].id
	})

	pnl := decimal.Zero
	var trades []types.MatchedTrade
	head := 0

	for _, sell := range sells {
		remaining := sell.Quantity
		for remaining.IsPositive() && head < len(lots) {
			l := &lots[head]

			matchQty := decimal.Min(remaining, l.remaining)
			buyCost := l.price.Mul(matchQty).
				Add(l.charges.Mul(matchQty).Div(l.quantity))
			sellProceeds := sell.Price.Mul(matchQty).
				Sub(sell.TotalCharges.Mul(matchQty).Div(sell.Quantity))

			tradePnL := sellProceeds.Sub(buyCost)
			pnl = pnl.Add(tradePnL)
			trades = append(trades, types.MatchedTrade{
				Symbol:    sell.Symbol,
				BuyDate:   l.timestamp,
				SellDate:  sell.ExecutedAt,
				BuyPrice:  l.price,
				SellPrice: sell.Price,
				Quantity:  matchQty,
				PnL:       tradePnL,
			})

			remaining = remaining.Sub(matchQty)
			l.remaining = l.remaining.Sub(matchQty)
			if l.remaining.IsZero() {
				head++
			}
		}
	}

	return pnl, trades
}

// TradeStats classifies matched pairs by the sign of their P&L. AvgLoss and
// LargestLoss come back as absolute amounts.
func TradeStats(trades []types.MatchedTrade) types.TradeStats {
	stats := types.TradeStats{
		TotalTrades: len(trades),
		WinRate:     decimal.Zero,
		AvgProfit:   decimal.Zero,
		AvgLoss:     decimal.Zero,
		LargestWin:  decimal.Zero,
		LargestLoss: decimal.Zero,
	}

	sumWins := decimal.Zero
	sumLosses := decimal.Zero
	for _, tr := range trades {
		switch {
		case tr.PnL.IsPositive():
			stats.WinningTrades++
			sumWins = sumWins.Add(tr.PnL)
			if tr.PnL.GreaterThan(stats.LargestWin) {
				stats.LargestWin = tr.PnL
			}
		case tr.PnL.IsNegative():
			stats.LosingTrades++
			loss := tr.PnL.Abs()
			sumLosses = sumLosses.Add(loss)
			if loss.GreaterThan(stats.LargestLoss) {
				stats.LargestLoss = loss
			}
		}
	}

	if stats.TotalTrades > 0 {
		stats.WinRate = decimal.NewFromInt(int64(stats.WinningTrades)).
			Div(decimal.NewFromInt(int64(stats.TotalTrades))).
			Mul(decimal.NewFromInt(100))
	}
	if stats.WinningTrades > 0 {
		stats.AvgProfit = sumWins.Div(decimal.NewFromInt(int64(stats.WinningTrades)))
	}
	if stats.LosingTrades > 0 {
		stats.AvgLoss = sumLosses.Div(decimal.NewFromInt(int64(stats.LosingTrades)))
	}
	return stats
}
