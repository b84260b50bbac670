// Package api exposes the portfolio and backtest operations over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter wires the handlers onto their routes.
func NewRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger(h.log))

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/portfolio/{user}/metrics", h.GetMetrics).Methods(http.MethodGet)
	v1.HandleFunc("/portfolio/{user}/positions", h.GetPositions).Methods(http.MethodGet)
	v1.HandleFunc("/transactions", h.CreateTransaction).Methods(http.MethodPost)
	v1.HandleFunc("/transactions/{id}", h.DeleteTransaction).Methods(http.MethodDelete)
	v1.HandleFunc("/backtest", h.RunBacktest).Methods(http.MethodPost)

	return r
}

func requestLogger(log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
