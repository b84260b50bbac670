package dashboard

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tradedesk/types"
)

// windowLookback maps a trend window to its lookback duration. ALL has no
// cutoff.
func windowCutoff(window types.TrendWindow, now time.Time) (time.Time, bool) {
	switch window {
	case types.Window1W:
		return now.AddDate(0, 0, -7), true
	case types.Window1M:
		return now.AddDate(0, -1, 0), true
	case types.Window3M:
		return now.AddDate(0, -3, 0), true
	case types.Window6M:
		return now.AddDate(0, -6, 0), true
	case types.Window1Y:
		return now.AddDate(-1, 0, 0), true
	default:
		return time.Time{}, false
	}
}

// Trend buckets the transactions of the lookback window into per-day signed
// cash flows (buys negative, sells positive) and emits the running cumulative
// total per day. This is a cash-flow proxy for the P&L trend, not a
// mark-to-market daily P&L series.
func Trend(txns []types.Transaction, window types.TrendWindow, now time.Time) []types.TrendPoint {
	cutoff, bounded := windowCutoff(window, now)

	flows := make(map[time.Time]decimal.Decimal)
	for _, txn := range txns {
		if bounded && txn.ExecutedAt.Before(cutoff) {
			continue
		}
		day := txn.ExecutedAt.UTC().Truncate(24 * time.Hour)
		flow := txn.NetAmount
		if txn.Kind == types.KindBuy {
			flow = flow.Neg()
		}
		cur, ok := flows[day]
		if !ok {
			cur = decimal.Zero
		}
		flows[day] = cur.Add(flow)
	}

	days := make([]time.Time, 0, len(flows))
	for day := range flows {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	points := make([]types.TrendPoint, 0, len(days))
	cumulative := decimal.Zero
	for _, day := range days {
		cumulative = cumulative.Add(flows[day])
		points = append(points, types.TrendPoint{
			Date:       day,
			NetFlow:    flows[day],
			Cumulative: cumulative,
		})
	}
	return points
}

// ParseWindow normalizes a user-supplied window string, defaulting to ALL.
func ParseWindow(s string) types.TrendWindow {
	switch types.TrendWindow(s) {
	case types.Window1W, types.Window1M, types.Window3M, types.Window6M, types.Window1Y:
		return types.TrendWindow(s)
	default:
		return types.WindowAll
	}
}
