// Package config provides configuration and shared test utilities.
package config

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
)

const kafkaClusterID = "liminal-test"

// TestKafka encapsulates a throwaway Kafka broker for integration tests
// exercising the async batch transport (internal/asyncingest).
type TestKafka struct {
	Container *kafka.KafkaContainer
	Brokers   []string
}

// SetupTestKafka starts a single-node Kafka container and returns its
// advertised broker addresses.
//
// Usage:
//
//	func TestAsyncIngest(t *testing.T) {
//		if testing.Short() {
//			t.Skip("skipping integration test in short mode")
//		}
//		ctx := context.Background()
//		tk := config.SetupTestKafka(ctx, t)
//		t.Cleanup(func() {
//			_ = testcontainers.TerminateContainer(tk.Container)
//		})
//		// ... your test code, dialing tk.Brokers
//	}
func SetupTestKafka(ctx context.Context, t *testing.T) *TestKafka {
	t.Helper()

	container, err := kafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		kafka.WithClusterID(kafkaClusterID),
	)
	require.NoError(t, err, "failed to start kafka container")
	require.NotNil(t, container, "kafka container is nil")

	brokers, err := container.Brokers(ctx)
	if err != nil {
		_ = testcontainers.TerminateContainer(container)
		t.Fatalf("failed to get kafka brokers: %v", err)
	}

	if len(brokers) == 0 {
		_ = testcontainers.TerminateContainer(container)
		t.Fatal(fmt.Errorf("kafka container reported no brokers"))
	}

	return &TestKafka{Container: container, Brokers: brokers}
}
