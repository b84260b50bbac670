package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradedesk/internal/repository"
	"tradedesk/types"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeStore struct {
	txns      []types.Transaction
	positions map[string]types.Position
	candles   []types.Candle
	replaced  map[string]*types.Position
	nextID    int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{positions: make(map[string]types.Position), nextID: 1}
}

func (f *fakeStore) InsertTransaction(ctx context.Context, txn types.Transaction) (types.Transaction, error) {
	txn.ID = f.nextID
	f.nextID++
	f.txns = append(f.txns, txn)
	return txn, nil
}

func (f *fakeStore) GetTransaction(ctx context.Context, userID, id int64) (types.Transaction, error) {
	for _, txn := range f.txns {
		if txn.ID == id && txn.UserID == userID {
			return txn, nil
		}
	}
	return types.Transaction{}, repository.ErrTransactionNotFound
}

func (f *fakeStore) ListTransactions(ctx context.Context, userID int64, filter repository.TransactionFilter) ([]types.Transaction, error) {
	var out []types.Transaction
	for _, txn := range f.txns {
		if txn.UserID == userID {
			out = append(out, txn)
		}
	}
	return out, nil
}

func (f *fakeStore) SoftDeleteTransaction(ctx context.Context, userID, id int64) error {
	for i, txn := range f.txns {
		if txn.ID == id && txn.UserID == userID {
			f.txns = append(f.txns[:i], f.txns[i+1:]...)
			return nil
		}
	}
	return repository.ErrTransactionNotFound
}

func (f *fakeStore) LatestTransaction(ctx context.Context, userID int64, symbol string) (types.Transaction, error) {
	var latest types.Transaction
	found := false
	for _, txn := range f.txns {
		if txn.UserID != userID || txn.Symbol != symbol {
			continue
		}
		if !found || txn.ExecutedAt.After(latest.ExecutedAt) ||
			(txn.ExecutedAt.Equal(latest.ExecutedAt) && txn.ID > latest.ID) {
			latest = txn
			found = true
		}
	}
	if !found {
		return types.Transaction{}, repository.ErrTransactionNotFound
	}
	return latest, nil
}

func (f *fakeStore) GetPosition(ctx context.Context, userID int64, symbol string) (types.Position, error) {
	pos, ok := f.positions[symbol]
	if !ok {
		return types.Position{}, repository.ErrNoPosition
	}
	return pos, nil
}

func (f *fakeStore) ListPositions(ctx context.Context, userID int64) ([]types.Position, error) {
	var out []types.Position
	for _, pos := range f.positions {
		out = append(out, pos)
	}
	return out, nil
}

func (f *fakeStore) UpsertPosition(ctx context.Context, pos types.Position) error {
	f.positions[pos.Symbol] = pos
	return nil
}

func (f *fakeStore) DeletePosition(ctx context.Context, userID int64, symbol string) error {
	delete(f.positions, symbol)
	return nil
}

func (f *fakeStore) ReplacePositions(ctx context.Context, userID int64, positions map[string]*types.Position) error {
	f.replaced = positions
	f.positions = make(map[string]types.Position)
	for symbol, pos := range positions {
		f.positions[symbol] = *pos
	}
	return nil
}

func (f *fakeStore) GetCandles(ctx context.Context, symbol string, interval types.Interval, start, end time.Time) ([]types.Candle, error) {
	if len(f.candles) == 0 {
		return nil, repository.ErrNoCandles
	}
	return f.candles, nil
}

type passthroughPrices struct{}

func (passthroughPrices) RefreshPositions(ctx context.Context, positions []types.Position) ([]types.Position, error) {
	return positions, nil
}

func newTestServer(store *fakeStore, cap int) *httptest.Server {
	h := NewHandlers(store, passthroughPrices{}, NewRateLimiter(cap, time.Minute), zap.NewNop())
	return httptest.NewServer(NewRouter(h))
}

func doJSON(t *testing.T, method, url string, payload any) *http.Response {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req, err := http.NewRequest(method, url, &body)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(newFakeStore(), 5)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateTransactionBuy(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(store, 5)
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/transactions", map[string]any{
		"user_id":  1,
		"symbol":   "AAPL",
		"kind":     "BUY",
		"quantity": "10",
		"price":    "100",
		"charges":  map[string]any{"brokerage": "34.6"},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var stored types.Transaction
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stored))
	assert.Equal(t, types.ProvenanceManual, stored.Provenance)
	assert.True(t, stored.NetAmount.Equal(d("1034.6")))

	pos := store.positions["AAPL"]
	assert.True(t, pos.Quantity.Equal(d("10")))
	assert.True(t, pos.AvgBuyPrice.Equal(d("100")))
	assert.True(t, pos.TotalInvested.Equal(d("1034.6")))
}

func TestCreateTransactionRejectsInvalid(t *testing.T) {
	srv := newTestServer(newFakeStore(), 5)
	defer srv.Close()

	// Sell with no open position must not be recorded.
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/transactions", map[string]any{
		"user_id":  1,
		"symbol":   "AAPL",
		"kind":     "SELL",
		"quantity": "10",
		"price":    "100",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/transactions", map[string]any{
		"user_id":  1,
		"symbol":   "AAPL",
		"kind":     "BUY",
		"quantity": "-1",
		"price":    "100",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteLatestTransactionReversesInPlace(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(store, 5)
	defer srv.Close()

	create := func(kind, qty, price string) {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/transactions", map[string]any{
			"user_id": 1, "symbol": "AAPL", "kind": kind, "quantity": qty, "price": price,
			"executed_at": time.Now().UTC().Format(time.RFC3339),
		})
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	create("BUY", "10", "100")
	create("SELL", "4", "110")

	// Deleting the latest (the sell) restores the quantity at the same average.
	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/v1/transactions/2?user=1", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	pos := store.positions["AAPL"]
	assert.True(t, pos.Quantity.Equal(d("10")))
	assert.True(t, pos.AvgBuyPrice.Equal(d("100")))
	assert.Nil(t, store.replaced, "in-place reversal must not trigger a replay")
}

func TestDeleteOlderTransactionReplaysHistory(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(store, 5)
	defer srv.Close()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	create := func(kind, qty, price string, at time.Time) {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/transactions", map[string]any{
			"user_id": 1, "symbol": "AAPL", "kind": kind, "quantity": qty, "price": price,
			"executed_at": at.Format(time.RFC3339),
		})
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	create("BUY", "10", "100", base)
	create("BUY", "10", "200", base.AddDate(0, 0, 1))

	// Deleting the first buy is not the latest: the position must be rebuilt
	// from the remaining history.
	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/v1/transactions/1?user=1", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.NotNil(t, store.replaced)
	pos := store.positions["AAPL"]
	assert.True(t, pos.Quantity.Equal(d("10")))
	assert.True(t, pos.AvgBuyPrice.Equal(d("200")))
}

func TestDeleteTransactionNotFound(t *testing.T) {
	srv := newTestServer(newFakeStore(), 5)
	defer srv.Close()

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/v1/transactions/99?user=1", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetMetricsIncludesTrend(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(store, 5)
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/transactions", map[string]any{
		"user_id": 1, "symbol": "AAPL", "kind": "BUY", "quantity": "10", "price": "100",
		"executed_at": time.Now().UTC().Format(time.RFC3339),
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err := http.Get(srv.URL + "/api/v1/portfolio/1/metrics?window=1M")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var metrics types.DashboardMetrics
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&metrics))
	assert.True(t, metrics.TotalInvested.Equal(d("1000")))
	require.Len(t, metrics.Trend, 1)
	assert.True(t, metrics.Trend[0].NetFlow.Equal(d("-1000")))
}

func TestRunBacktest(t *testing.T) {
	store := newFakeStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		price := d(fmt.Sprintf("%d", 100+i))
		store.candles = append(store.candles, types.Candle{
			Symbol: "AAPL", Interval: types.Day,
			Open: price, High: price, Low: price, Close: price, Volume: d("1000"),
			Timestamp: base.AddDate(0, 0, i),
		})
	}
	srv := newTestServer(store, 5)
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/backtest", map[string]any{
		"symbol":       "AAPL",
		"initial_cash": "10000",
		"entry":        []map[string]any{{"indicator": "price", "operator": ">", "threshold": 0}},
		"exits":        []map[string]any{{"kind": "time_based", "value": 2}},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Trades []types.BacktestTrade `json:"trades"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.NotEmpty(t, result.Trades)
}

func TestRunBacktestValidation(t *testing.T) {
	srv := newTestServer(newFakeStore(), 5)
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/backtest", map[string]any{
		"symbol": "", "initial_cash": "10000",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunBacktestNoCandles(t *testing.T) {
	srv := newTestServer(newFakeStore(), 5)
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/backtest", map[string]any{
		"symbol":       "AAPL",
		"initial_cash": "10000",
		"entry":        []map[string]any{{"indicator": "price", "operator": ">", "threshold": 0}},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRunBacktestRateCap(t *testing.T) {
	store := newFakeStore()
	store.candles = []types.Candle{{
		Symbol: "AAPL", Interval: types.Day,
		Open: d("100"), High: d("100"), Low: d("100"), Close: d("100"), Volume: d("1"),
		Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}}
	srv := newTestServer(store, 2)
	defer srv.Close()

	payload := map[string]any{
		"symbol":       "AAPL",
		"initial_cash": "10000",
		"entry":        []map[string]any{{"indicator": "price", "operator": ">", "threshold": 0}},
	}
	for i := 0; i < 2; i++ {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/backtest?user=7", payload)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/backtest?user=7", payload)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
