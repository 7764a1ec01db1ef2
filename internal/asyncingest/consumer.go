package asyncingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// Handler replays one decoded batch envelope's raw bytes through the
// ingest path. Returning an error marks the message as not fully
// processed; it is still committed (the ingest path's partial-commit
// semantics already captured whatever was persisted before the failure —
// resending a whole batch for one failed record is the client's
// responsibility, same as the synchronous route).
type Handler func(ctx context.Context, payload []byte) error

// Consumer reads batch envelopes off the async topic and replays each
// through a Handler.
type Consumer struct {
	reader *kafka.Reader
	log    *slog.Logger
}

// NewConsumer builds a Consumer in consumer group groupID against brokers.
func NewConsumer(brokers []string, groupID string, log *slog.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   Topic,
		}),
		log: log,
	}
}

// Run blocks, reading messages and invoking handle for each, until ctx is
// cancelled (returning nil) or any other fetch error occurs (returned
// wrapped). Each message is committed
// after handle returns, whether or not it errored, so a poison message
// never wedges the consumer group (the handler is responsible for
// deciding whether an error is worth surfacing in its own logs/metrics).
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}

			return fmt.Errorf("asyncingest: fetch message: %w", err)
		}

		if err := handle(ctx, msg.Value); err != nil {
			c.log.Error("asyncingest: batch replay failed",
				"partition", msg.Partition, "offset", msg.Offset, "error", err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("asyncingest: commit failed",
				"partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}
}

// Close releases the underlying reader's connections.
func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("asyncingest: close consumer: %w", err)
	}

	return nil
}
