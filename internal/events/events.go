// Package events connects the portfolio to the broker's Kafka topics: it
// consumes execution fills into the transaction ledger and publishes position
// snapshots for downstream consumers.
package events

import (
	"time"

	"github.com/shopspring/decimal"

	"tradedesk/types"
)

// ExecutionEvent is one fill as published by the broker bridge.
type ExecutionEvent struct {
	OrderID    string          `json:"order_id"`
	UserID     int64           `json:"user_id"`
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Charges    types.Charges   `json:"charges"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// PositionSnapshot is published after every applied fill.
type PositionSnapshot struct {
	UserID    int64           `json:"user_id"`
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	AvgPrice  decimal.Decimal `json:"avg_price"`
	Invested  decimal.Decimal `json:"invested"`
	Closed    bool            `json:"closed"`
	Timestamp time.Time       `json:"timestamp"`
}
