package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradedesk/internal/ledger"
	"tradedesk/internal/repository"
	"tradedesk/types"
)

// transactionStore is the slice of the repository the consumer writes through.
type transactionStore interface {
	OrderRefExists(ctx context.Context, orderRef string) (bool, error)
	InsertTransaction(ctx context.Context, txn types.Transaction) (types.Transaction, error)
	GetPosition(ctx context.Context, userID int64, symbol string) (types.Position, error)
	UpsertPosition(ctx context.Context, pos types.Position) error
	DeletePosition(ctx context.Context, userID int64, symbol string) error
}

type priceCache interface {
	SetLastPrice(ctx context.Context, symbol string, price decimal.Decimal) error
}

type snapshotPublisher interface {
	PublishPosition(ctx context.Context, snapshot PositionSnapshot) error
}

// Consumer applies broker fills to the ledger as they arrive.
type Consumer struct {
	reader    *kafka.Reader
	store     transactionStore
	prices    priceCache
	publisher snapshotPublisher
	log       *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, store transactionStore, prices priceCache, publisher snapshotPublisher, log *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, store: store, prices: prices, publisher: publisher, log: log}
}

// Run consumes until ctx is cancelled. Malformed or duplicate events are
// logged and committed so they are not redelivered forever; storage errors
// leave the message uncommitted for retry.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		if err := c.handleMessage(ctx, msg.Value); err != nil {
			c.log.Error("apply execution event failed",
				zap.Error(err),
				zap.Int64("offset", msg.Offset))
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit message: %w", err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// handleMessage decodes and applies one fill. A nil error means the message
// may be committed; that includes duplicates and undecodable payloads.
func (c *Consumer) handleMessage(ctx context.Context, payload []byte) error {
	var event ExecutionEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.log.Warn("dropping undecodable execution event", zap.Error(err))
		return nil
	}

	exists, err := c.store.OrderRefExists(ctx, event.OrderID)
	if err != nil {
		return fmt.Errorf("dedupe lookup: %w", err)
	}
	if exists {
		c.log.Debug("skipping duplicate execution event", zap.String("order_id", event.OrderID))
		return nil
	}

	txn := types.NewTransaction(
		event.UserID, event.Symbol, types.TransactionKind(event.Side),
		event.Quantity, event.Price, event.Charges,
		event.ExecutedAt, types.ProvenanceBroker,
	)
	txn.OrderRef = event.OrderID

	var current *types.Position
	stored, err := c.store.GetPosition(ctx, event.UserID, event.Symbol)
	switch {
	case errors.Is(err, repository.ErrNoPosition):
	case err != nil:
		return fmt.Errorf("load position: %w", err)
	default:
		current = &stored
	}

	next, err := ledger.Apply(current, txn)
	if err != nil {
		c.log.Warn("dropping invalid execution event",
			zap.Error(err),
			zap.String("order_id", event.OrderID))
		return nil
	}

	if _, err := c.store.InsertTransaction(ctx, txn); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	snapshot := PositionSnapshot{
		UserID:    event.UserID,
		Symbol:    event.Symbol,
		Timestamp: event.ExecutedAt,
	}
	if next == nil {
		if err := c.store.DeletePosition(ctx, event.UserID, event.Symbol); err != nil {
			return fmt.Errorf("delete closed position: %w", err)
		}
		snapshot.Closed = true
		snapshot.Quantity = decimal.Zero
		snapshot.AvgPrice = decimal.Zero
		snapshot.Invested = decimal.Zero
	} else {
		next.UserID = event.UserID
		next.Symbol = event.Symbol
		if err := c.store.UpsertPosition(ctx, *next); err != nil {
			return fmt.Errorf("upsert position: %w", err)
		}
		snapshot.Quantity = next.Quantity
		snapshot.AvgPrice = next.AvgBuyPrice
		snapshot.Invested = next.TotalInvested
	}

	if c.prices != nil {
		if err := c.prices.SetLastPrice(ctx, event.Symbol, event.Price); err != nil {
			c.log.Warn("price cache update failed", zap.Error(err), zap.String("symbol", event.Symbol))
		}
	}
	if c.publisher != nil {
		if err := c.publisher.PublishPosition(ctx, snapshot); err != nil {
			c.log.Warn("snapshot publish failed", zap.Error(err), zap.String("symbol", event.Symbol))
		}
	}
	return nil
}
