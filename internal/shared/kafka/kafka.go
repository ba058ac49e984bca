package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Writer = kafka.Writer

func NewWriter(brokers string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
	}
}

// helper to send a simple message
func WriteJSON(ctx context.Context, w *kafka.Writer, key string, payload []byte) error {
	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now(),
	}

	return w.WriteMessages(ctx, msg)
}

// Publisher serializes domain events to one topic. A nil *Publisher is valid and
// drops everything, which is how publishing is disabled when no brokers are configured.
type Publisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewPublisher(brokers, topic string, log *zap.Logger) *Publisher {
	if brokers == "" {
		return nil
	}
	return &Publisher{writer: NewWriter(brokers, topic), log: log}
}

// Publish is best effort: the ledger is the source of truth, events are notifications
func (p *Publisher) Publish(ctx context.Context, key string, v any) {
	if p == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		p.log.Warn("kafka marshal", zap.Error(err))
		return
	}
	if err := WriteJSON(ctx, p.writer, key, b); err != nil {
		p.log.Warn("kafka publish", zap.String("topic", p.writer.Topic), zap.Error(err))
	}
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}
