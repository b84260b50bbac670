package fifo

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradedesk/types"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(n int) time.Time { return time.Date(2025, 1, n, 0, 0, 0, 0, time.UTC) }

func buy(id int64, qty, price, charges string, ts time.Time) types.Transaction {
	txn := types.NewTransaction(1, "AAPL", types.KindBuy, d(qty), d(price), types.Charges{Brokerage: d(charges)}, ts, types.ProvenanceBroker)
	txn.ID = id
	return txn
}

func sell(id int64, qty, price, charges string, ts time.Time) types.Transaction {
	txn := types.NewTransaction(1, "AAPL", types.KindSell, d(qty), d(price), types.Charges{Brokerage: d(charges)}, ts, types.ProvenanceBroker)
	txn.ID = id
	return txn
}

// The sell must consume the day-1 lot regardless of how the buys slice is
// ordered: lots are re-sorted by timestamp before matching.
func TestMatchFIFOOrderIndependentOfBuyInput(t *testing.T) {
	b1 := buy(1, "10", "100", "0", day(1))
	b2 := buy(2, "10", "120", "0", day(2))
	s1 := sell(3, "10", "110", "0", day(3))

	for _, buys := range [][]types.Transaction{{b1, b2}, {b2, b1}} {
		pnl, trades := Match(buys, []types.Transaction{s1})

		if !pnl.Equal(d("100")) {
			t.Fatalf("Match() pnl = %s, want 100", pnl)
		}
		if len(trades) != 1 {
			t.Fatalf("Match() trades = %d, want 1", len(trades))
		}
		if !trades[0].BuyPrice.Equal(d("100")) || !trades[0].BuyDate.Equal(day(1)) {
			t.Fatalf("Match() consumed lot %s@%s, want day-1 lot @100", trades[0].BuyPrice, trades[0].BuyDate)
		}
	}
}

func TestMatchProRataCharges(t *testing.T) {
	// Lot of 10 with 20 in charges: 2 per unit against the ORIGINAL size.
	// Sell of 8 with 16 in charges: 2 per unit of the sell's own quantity.
	b1 := buy(1, "10", "100", "20", day(1))
	s1 := sell(2, "8", "110", "16", day(2))

	pnl, trades := Match([]types.Transaction{b1}, []types.Transaction{s1})

	// buyCost = 100*8 + 20*8/10 = 816; proceeds = 110*8 - 16*8/8 = 864
	if !pnl.Equal(d("48")) {
		t.Fatalf("Match() pnl = %s, want 48", pnl)
	}
	if len(trades) != 1 || !trades[0].Quantity.Equal(d("8")) {
		t.Fatalf("Match() trades = %+v, want one pair of qty 8", trades)
	}
}

func TestMatchPartialLotConsumption(t *testing.T) {
	b1 := buy(1, "10", "100", "0", day(1))
	b2 := buy(2, "10", "105", "0", day(2))
	s1 := sell(3, "15", "110", "0", day(3))

	pnl, trades := Match([]types.Transaction{b1, b2}, []types.Transaction{s1})

	// 10 from lot1 (+100), 5 from lot2 (+25)
	if !pnl.Equal(d("125")) {
		t.Fatalf("Match() pnl = %s, want 125", pnl)
	}
	if len(trades) != 2 {
		t.Fatalf("Match() trades = %d, want 2", len(trades))
	}
	if !trades[1].Quantity.Equal(d("5")) || !trades[1].BuyPrice.Equal(d("105")) {
		t.Fatalf("second pair = %+v, want 5 units of the 105 lot", trades[1])
	}
}

// Sell quantity beyond what the lots can cover is dropped without error.
func TestMatchOversellDroppedSilently(t *testing.T) {
	b1 := buy(1, "5", "100", "0", day(1))
	s1 := sell(2, "12", "110", "0", day(2))

	pnl, trades := Match([]types.Transaction{b1}, []types.Transaction{s1})

	if !pnl.Equal(d("50")) {
		t.Fatalf("Match() pnl = %s, want 50 (only 5 units matchable)", pnl)
	}
	if len(trades) != 1 || !trades[0].Quantity.Equal(d("5")) {
		t.Fatalf("Match() trades = %+v, want single 5-unit pair", trades)
	}
}

// Sells are consumed in caller order; the matcher does not re-sort them.
func TestMatchSellOrderIsCallerOrder(t *testing.T) {
	b1 := buy(1, "10", "100", "0", day(1))
	s1 := sell(2, "6", "110", "0", day(3))
	s2 := sell(3, "6", "90", "0", day(2)) // earlier in time, later in slice

	_, trades := Match([]types.Transaction{b1}, []types.Transaction{s1, s2})

	if len(trades) != 2 {
		t.Fatalf("Match() trades = %d, want 2", len(trades))
	}
	// First pair must come from s1 even though s2 executed earlier.
	if !trades[0].SellPrice.Equal(d("110")) {
		t.Fatalf("first pair sell price = %s, want 110 (caller order)", trades[0].SellPrice)
	}
	// Only 4 units remain for s2; the other 2 are dropped.
	if !trades[1].Quantity.Equal(d("4")) {
		t.Fatalf("second pair qty = %s, want 4", trades[1].Quantity)
	}
}

func TestMatchDeterministicAndNonMutating(t *testing.T) {
	buys := []types.Transaction{
		buy(1, "10", "100", "12", day(1)),
		buy(2, "8", "108", "9", day(2)),
	}
	sells := []types.Transaction{
		sell(3, "13", "112", "7", day(3)),
	}
	buysBefore := append([]types.Transaction(nil), buys...)

	pnl1, trades1 := Match(buys, sells)
	pnl2, trades2 := Match(buys, sells)

	if !pnl1.Equal(pnl2) {
		t.Fatalf("Match() not deterministic: %s vs %s", pnl1, pnl2)
	}
	if !reflect.DeepEqual(trades1, trades2) {
		t.Fatalf("Match() trade lists differ between runs")
	}
	if !reflect.DeepEqual(buys, buysBefore) {
		t.Fatalf("Match() mutated the caller's buy transactions")
	}
}

func TestTradeStats(t *testing.T) {
	trades := []types.MatchedTrade{
		{PnL: d("100")},
		{PnL: d("-40")},
		{PnL: d("60")},
		{PnL: d("-10")},
	}

	stats := TradeStats(trades)

	if stats.TotalTrades != 4 || stats.WinningTrades != 2 || stats.LosingTrades != 2 {
		t.Fatalf("counts = %d/%d/%d, want 4/2/2", stats.TotalTrades, stats.WinningTrades, stats.LosingTrades)
	}
	if !stats.WinRate.Equal(d("50")) {
		t.Errorf("WinRate = %s, want 50", stats.WinRate)
	}
	if !stats.AvgProfit.Equal(d("80")) {
		t.Errorf("AvgProfit = %s, want 80", stats.AvgProfit)
	}
	if !stats.AvgLoss.Equal(d("25")) {
		t.Errorf("AvgLoss = %s, want 25", stats.AvgLoss)
	}
	if !stats.LargestWin.Equal(d("100")) || !stats.LargestLoss.Equal(d("40")) {
		t.Errorf("Largest = %s/%s, want 100/40", stats.LargestWin, stats.LargestLoss)
	}
}

func TestTradeStatsEmpty(t *testing.T) {
	stats := TradeStats(nil)
	if stats.TotalTrades != 0 || !stats.WinRate.Equal(decimal.Zero) {
		t.Fatalf("TradeStats(nil) = %+v, want zeroes", stats)
	}
}
