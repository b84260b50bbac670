package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradedesk/internal/backtest"
	"tradedesk/internal/dashboard"
	"tradedesk/internal/ledger"
	"tradedesk/internal/repository"
	"tradedesk/types"
)

// store is the slice of the repository the handlers need.
type store interface {
	InsertTransaction(ctx context.Context, txn types.Transaction) (types.Transaction, error)
	GetTransaction(ctx context.Context, userID, id int64) (types.Transaction, error)
	ListTransactions(ctx context.Context, userID int64, filter repository.TransactionFilter) ([]types.Transaction, error)
	SoftDeleteTransaction(ctx context.Context, userID, id int64) error
	LatestTransaction(ctx context.Context, userID int64, symbol string) (types.Transaction, error)
	GetPosition(ctx context.Context, userID int64, symbol string) (types.Position, error)
	ListPositions(ctx context.Context, userID int64) ([]types.Position, error)
	UpsertPosition(ctx context.Context, pos types.Position) error
	DeletePosition(ctx context.Context, userID int64, symbol string) error
	ReplacePositions(ctx context.Context, userID int64, positions map[string]*types.Position) error
	GetCandles(ctx context.Context, symbol string, interval types.Interval, start, end time.Time) ([]types.Candle, error)
}

type priceRefresher interface {
	RefreshPositions(ctx context.Context, positions []types.Position) ([]types.Position, error)
}

type Handlers struct {
	store   store
	prices  priceRefresher
	limiter *RateLimiter
	log     *zap.Logger
}

func NewHandlers(store store, prices priceRefresher, limiter *RateLimiter, log *zap.Logger) *Handlers {
	return &Handlers{store: store, prices: prices, limiter: limiter, log: log}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetMetrics serves the dashboard rollup for one user, with the P&L trend of
// the requested window attached.
func (h *Handlers) GetMetrics(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	window := dashboard.ParseWindow(r.URL.Query().Get("window"))

	txns, err := h.store.ListTransactions(r.Context(), userID, repository.TransactionFilter{})
	if err != nil {
		h.serverError(w, "list transactions", err)
		return
	}
	positions, err := h.refreshedPositions(r.Context(), userID)
	if err != nil {
		h.serverError(w, "load positions", err)
		return
	}

	metrics := dashboard.Aggregate(txns, positions)
	metrics.Trend = dashboard.Trend(txns, window, time.Now().UTC())
	respondJSON(w, http.StatusOK, metrics)
}

// GetPositions serves the user's open positions marked to the cached prices.
func (h *Handlers) GetPositions(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	positions, err := h.refreshedPositions(r.Context(), userID)
	if err != nil {
		h.serverError(w, "load positions", err)
		return
	}
	if positions == nil {
		positions = []types.Position{}
	}
	respondJSON(w, http.StatusOK, positions)
}

type createTransactionRequest struct {
	UserID     int64           `json:"user_id"`
	Symbol     string          `json:"symbol"`
	Kind       string          `json:"kind"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Charges    types.Charges   `json:"charges"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// CreateTransaction records a manual transaction and folds it into the
// stored position.
func (h *Handlers) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID <= 0 || req.Symbol == "" {
		respondError(w, http.StatusBadRequest, "user_id and symbol are required")
		return
	}
	if req.ExecutedAt.IsZero() {
		req.ExecutedAt = time.Now().UTC()
	}

	txn := types.NewTransaction(
		req.UserID, req.Symbol, types.TransactionKind(req.Kind),
		req.Quantity, req.Price, req.Charges,
		req.ExecutedAt, types.ProvenanceManual,
	)

	current, err := h.currentPosition(r.Context(), req.UserID, req.Symbol)
	if err != nil {
		h.serverError(w, "load position", err)
		return
	}
	next, err := ledger.Apply(current, txn)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	stored, err := h.store.InsertTransaction(r.Context(), txn)
	if err != nil {
		h.serverError(w, "insert transaction", err)
		return
	}
	if err := h.writePosition(r.Context(), req.UserID, req.Symbol, next); err != nil {
		h.serverError(w, "write position", err)
		return
	}
	respondJSON(w, http.StatusCreated, stored)
}

// DeleteTransaction soft-deletes one transaction and repairs the position.
// The most recent transaction of a symbol can be reversed in place; deleting
// anything older forces a full replay of the user's remaining history.
func (h *Handlers) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	userID, err := strconv.ParseInt(r.URL.Query().Get("user"), 10, 64)
	if err != nil || userID <= 0 {
		respondError(w, http.StatusBadRequest, "user query parameter is required")
		return
	}

	txn, err := h.store.GetTransaction(r.Context(), userID, id)
	if errors.Is(err, repository.ErrTransactionNotFound) {
		respondError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		h.serverError(w, "get transaction", err)
		return
	}

	latest, err := h.store.LatestTransaction(r.Context(), userID, txn.Symbol)
	if err != nil && !errors.Is(err, repository.ErrTransactionNotFound) {
		h.serverError(w, "latest transaction", err)
		return
	}

	if err := h.store.SoftDeleteTransaction(r.Context(), userID, id); err != nil {
		h.serverError(w, "delete transaction", err)
		return
	}

	if latest.ID == txn.ID {
		if err := h.reverseInPlace(r.Context(), userID, txn); err == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		} else if !errors.Is(err, ledger.ErrNotReversible) {
			h.serverError(w, "reverse transaction", err)
			return
		}
		// Fall through to a full replay when in-place reversal is unsound.
	}

	if err := h.replayUser(r.Context(), userID); err != nil {
		h.serverError(w, "replay history", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type backtestRequest struct {
	Symbol      string               `json:"symbol"`
	Interval    string               `json:"interval"`
	From        time.Time            `json:"from"`
	To          time.Time            `json:"to"`
	InitialCash decimal.Decimal      `json:"initial_cash"`
	Entry       []backtest.Condition `json:"entry"`
	Exits       []backtest.ExitRule  `json:"exits"`
}

// RunBacktest simulates a strategy over stored candles. Runs are rate-capped
// per caller.
func (h *Handlers) RunBacktest(w http.ResponseWriter, r *http.Request) {
	var req backtestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !h.limiter.Allow(clientKey(r)) {
		respondError(w, http.StatusTooManyRequests, "backtest rate limit exceeded, retry later")
		return
	}

	cfg := &backtest.Config{
		Symbol:      req.Symbol,
		From:        req.From,
		To:          req.To,
		InitialCash: req.InitialCash,
		Entry:       req.Entry,
		Exits:       req.Exits,
	}
	if err := cfg.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	interval := types.Interval(req.Interval)
	if interval == "" {
		interval = types.Day
	}
	candles, err := h.store.GetCandles(r.Context(), cfg.Symbol, interval, cfg.From, cfg.To)
	if errors.Is(err, repository.ErrNoCandles) {
		respondError(w, http.StatusNotFound, "no historical candles for the requested range")
		return
	}
	if err != nil {
		h.serverError(w, "load candles", err)
		return
	}

	result, err := backtest.Run(cfg, candles)
	if err != nil {
		h.serverError(w, "run backtest", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handlers) refreshedPositions(ctx context.Context, userID int64) ([]types.Position, error) {
	positions, err := h.store.ListPositions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if h.prices == nil || len(positions) == 0 {
		return positions, nil
	}
	return h.prices.RefreshPositions(ctx, positions)
}

func (h *Handlers) currentPosition(ctx context.Context, userID int64, symbol string) (*types.Position, error) {
	pos, err := h.store.GetPosition(ctx, userID, symbol)
	if errors.Is(err, repository.ErrNoPosition) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

func (h *Handlers) writePosition(ctx context.Context, userID int64, symbol string, pos *types.Position) error {
	if pos == nil {
		return h.store.DeletePosition(ctx, userID, symbol)
	}
	pos.UserID = userID
	pos.Symbol = symbol
	return h.store.UpsertPosition(ctx, *pos)
}

func (h *Handlers) reverseInPlace(ctx context.Context, userID int64, txn types.Transaction) error {
	current, err := h.currentPosition(ctx, userID, txn.Symbol)
	if err != nil {
		return err
	}
	next, err := ledger.Reverse(current, txn)
	if err != nil {
		return err
	}
	return h.writePosition(ctx, userID, txn.Symbol, next)
}

func (h *Handlers) replayUser(ctx context.Context, userID int64) error {
	txns, err := h.store.ListTransactions(ctx, userID, repository.TransactionFilter{})
	if err != nil {
		return err
	}
	return h.store.ReplacePositions(ctx, userID, ledger.ReplayHistory(txns))
}

func (h *Handlers) serverError(w http.ResponseWriter, msg string, err error) {
	h.log.Error(msg, zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal server error")
}

func pathUserID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["user"], 10, 64)
}

// clientKey identifies the caller for rate limiting. Authenticated deployments
// would key on the user; the remote address is the fallback.
func clientKey(r *http.Request) string {
	if user := r.URL.Query().Get("user"); user != "" {
		return user
	}
	return r.RemoteAddr
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
