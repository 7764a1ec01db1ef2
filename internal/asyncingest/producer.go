// Package asyncingest supplements the synchronous `/ingest/batch` route
// with an optional async transport: a kafka-go Writer that enqueues a
// batch envelope for replay, and a Reader-driven loop that replays
// enqueued envelopes through the same ingest.Service.Batch path the HTTP
// handler uses.
package asyncingest

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// Topic is the fixed topic name batches are published to and consumed
// from. Messages are keyed by run_id so that a partitioned topic preserves
// per-run ordering: within one Run, writes are observed in submission
// order.
const Topic = "liminal.batches"

// Producer publishes batch envelopes onto the async topic.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer builds a Producer against the given brokers. Publish is safe
// for concurrent use, matching kafka.Writer's own concurrency contract.
func NewProducer(brokers []string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  Topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish enqueues payload (a JSON-encoded batch envelope) keyed by runKey.
func (p *Producer) Publish(ctx context.Context, runKey string, payload []byte) error {
	msg := kafka.Message{
		Key:   []byte(runKey),
		Value: payload,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("asyncingest: publish batch: %w", err)
	}

	return nil
}

// Close flushes and releases the underlying writer's connections.
func (p *Producer) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("asyncingest: close producer: %w", err)
	}

	return nil
}
