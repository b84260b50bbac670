package dashboard

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradedesk/types"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(n int) time.Time { return time.Date(2025, 6, n, 10, 0, 0, 0, time.UTC) }

func txn(symbol string, kind types.TransactionKind, qty, price string, ts time.Time) types.Transaction {
	return types.NewTransaction(1, symbol, kind, d(qty), d(price), types.Charges{}, ts, types.ProvenanceBroker)
}

func TestAggregateTotalsAndRealized(t *testing.T) {
	txns := []types.Transaction{
		txn("AAPL", types.KindBuy, "10", "100", day(1)),  // net 1000
		txn("AAPL", types.KindSell, "10", "110", day(2)), // net 1100, realized +100
		txn("TSLA", types.KindBuy, "5", "200", day(3)),   // net 1000, still open
	}
	positions := []types.Position{
		{Symbol: "TSLA", Quantity: d("5"), AvgBuyPrice: d("200"), UnrealizedPnL: d("50")},
	}

	m := Aggregate(txns, positions)

	if !m.TotalInvested.Equal(d("2000")) {
		t.Errorf("TotalInvested = %s, want 2000", m.TotalInvested)
	}
	if !m.TotalProceeds.Equal(d("1100")) {
		t.Errorf("TotalProceeds = %s, want 1100", m.TotalProceeds)
	}
	if !m.RealizedPnL.Equal(d("100")) {
		t.Errorf("RealizedPnL = %s, want 100", m.RealizedPnL)
	}
	if !m.UnrealizedPnL.Equal(d("50")) {
		t.Errorf("UnrealizedPnL = %s, want 50", m.UnrealizedPnL)
	}
	if !m.TotalPnL.Equal(d("150")) {
		t.Errorf("TotalPnL = %s, want 150", m.TotalPnL)
	}
	if !m.NetInvested.Equal(d("900")) {
		t.Errorf("NetInvested = %s, want 900", m.NetInvested)
	}
	// 150/900*100
	want := d("150").Div(d("900")).Mul(d("100"))
	if !m.ReturnPercent.Equal(want) {
		t.Errorf("ReturnPercent = %s, want %s", m.ReturnPercent, want)
	}
	if m.TradeStats.TotalTrades != 1 || m.TradeStats.WinningTrades != 1 {
		t.Errorf("TradeStats = %+v, want one winning trade", m.TradeStats)
	}
}

func TestAggregateReturnPercentZeroWhenNetInvestedNotPositive(t *testing.T) {
	// Proceeds exceed invested: netInvested < 0, return% falls back to 0.
	txns := []types.Transaction{
		txn("AAPL", types.KindBuy, "10", "100", day(1)),
		txn("AAPL", types.KindSell, "10", "150", day(2)),
	}

	m := Aggregate(txns, nil)

	if !m.NetInvested.IsNegative() {
		t.Fatalf("NetInvested = %s, expected negative in this scenario", m.NetInvested)
	}
	if !m.ReturnPercent.Equal(d("0")) {
		t.Errorf("ReturnPercent = %s, want 0 fallback", m.ReturnPercent)
	}
}

func TestAggregateEmpty(t *testing.T) {
	m := Aggregate(nil, nil)
	if !m.TotalPnL.Equal(d("0")) || !m.ReturnPercent.Equal(d("0")) {
		t.Fatalf("Aggregate(nil, nil) = %+v, want zeroes", m)
	}
	if m.TradeStats.TotalTrades != 0 {
		t.Fatalf("TradeStats.TotalTrades = %d, want 0", m.TradeStats.TotalTrades)
	}
}

func TestRankPerformers(t *testing.T) {
	var txns []types.Transaction
	// Seven symbols with realized pnl -30..+30 in steps of 10.
	for i := 0; i < 7; i++ {
		symbol := fmt.Sprintf("SYM%d", i)
		sellPrice := decimal.NewFromInt(int64(100 + (i-3)*10))
		txns = append(txns,
			txn(symbol, types.KindBuy, "1", "100", day(1)),
			types.NewTransaction(1, symbol, types.KindSell, d("1"), sellPrice, types.Charges{}, day(2), types.ProvenanceBroker),
		)
	}

	m := Aggregate(txns, nil)

	if len(m.TopPerformers) != 5 || len(m.WorstPerformers) != 5 {
		t.Fatalf("performer lists = %d/%d, want 5/5", len(m.TopPerformers), len(m.WorstPerformers))
	}
	if m.TopPerformers[0].Symbol != "SYM6" || !m.TopPerformers[0].PnL.Equal(d("30")) {
		t.Errorf("top performer = %+v, want SYM6 +30", m.TopPerformers[0])
	}
	if m.WorstPerformers[0].Symbol != "SYM0" || !m.WorstPerformers[0].PnL.Equal(d("-30")) {
		t.Errorf("worst performer = %+v, want SYM0 -30", m.WorstPerformers[0])
	}
}

func TestTrendBucketsAndCumulative(t *testing.T) {
	txns := []types.Transaction{
		txn("AAPL", types.KindBuy, "10", "100", day(1)),  // -1000
		txn("AAPL", types.KindSell, "5", "110", day(1)),  // +550, same day
		txn("AAPL", types.KindSell, "5", "120", day(3)),  // +600
		txn("TSLA", types.KindBuy, "1", "50", day(10)),   // -50
	}

	points := Trend(txns, types.WindowAll, day(12))

	if len(points) != 3 {
		t.Fatalf("Trend() = %d points, want 3 days", len(points))
	}
	if !points[0].NetFlow.Equal(d("-450")) || !points[0].Cumulative.Equal(d("-450")) {
		t.Errorf("day 1 = %s/%s, want -450/-450", points[0].NetFlow, points[0].Cumulative)
	}
	if !points[1].NetFlow.Equal(d("600")) || !points[1].Cumulative.Equal(d("150")) {
		t.Errorf("day 3 = %s/%s, want 600/150", points[1].NetFlow, points[1].Cumulative)
	}
	if !points[2].NetFlow.Equal(d("-50")) || !points[2].Cumulative.Equal(d("100")) {
		t.Errorf("day 10 = %s/%s, want -50/100", points[2].NetFlow, points[2].Cumulative)
	}
}

func TestTrendWindowCutoff(t *testing.T) {
	now := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	txns := []types.Transaction{
		txn("AAPL", types.KindBuy, "1", "100", now.AddDate(0, 0, -2)),
		txn("AAPL", types.KindBuy, "1", "100", now.AddDate(0, -2, 0)), // outside 1M
	}

	points := Trend(txns, types.Window1M, now)
	if len(points) != 1 {
		t.Fatalf("Trend(1M) = %d points, want 1 (older txn excluded)", len(points))
	}

	points = Trend(txns, types.WindowAll, now)
	if len(points) != 2 {
		t.Fatalf("Trend(ALL) = %d points, want 2", len(points))
	}
}

func TestParseWindow(t *testing.T) {
	if got := ParseWindow("3M"); got != types.Window3M {
		t.Errorf("ParseWindow(3M) = %s", got)
	}
	if got := ParseWindow("bogus"); got != types.WindowAll {
		t.Errorf("ParseWindow(bogus) = %s, want ALL", got)
	}
}
