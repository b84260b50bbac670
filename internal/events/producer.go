package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// Producer publishes position snapshots, keyed by user and symbol so each
// partition preserves per-position ordering.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{writer: &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}}
}

func (p *Producer) PublishPosition(ctx context.Context, snapshot PositionSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	key := fmt.Sprintf("%d:%s", snapshot.UserID, snapshot.Symbol)
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: payload}); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
