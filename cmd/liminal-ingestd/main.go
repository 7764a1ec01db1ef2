// Package main provides liminal-ingestd: the consumer half of the
// optional async batch transport. It reads batch
// envelopes off the `liminal.batches` Kafka topic and replays each through
// the same ingest.Service.Batch path `POST /ingest/batch` uses, against
// the same Fact Store `cmd/liminal` writes to.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/liminalqa/liminal/internal/api"
	"github.com/liminalqa/liminal/internal/asyncingest"
	"github.com/liminalqa/liminal/internal/config"
	"github.com/liminalqa/liminal/internal/ingest"
	"github.com/liminalqa/liminal/internal/metrics"
	"github.com/liminalqa/liminal/internal/store"
)

const (
	version        = "0.1.0-dev"
	name           = "liminal-ingestd"
	defaultGroupID = "liminal-ingestd"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	logLevel := config.GetEnvLogLevel("LIMINAL_LOG_LEVEL", slog.LevelInfo)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))

	brokers := config.ParseCommaSeparatedList(config.GetEnvStr("LIMINAL_KAFKA_BROKERS", ""))
	if len(brokers) == 0 {
		logger.Error("LIMINAL_KAFKA_BROKERS must be set for liminal-ingestd")
		os.Exit(1)
	}

	groupID := config.GetEnvStr("LIMINAL_KAFKA_GROUP_ID", defaultGroupID)
	dbPath := config.GetEnvStr("LIMINAL_DB_PATH", "./liminal.db")

	logger.Info("starting liminal async ingest consumer",
		slog.String("service", name),
		slog.String("version", version),
		slog.String("db_path", dbPath),
		slog.Any("brokers", brokers),
		slog.String("group_id", groupID),
	)

	st, err := store.Open(store.DefaultConfig(dbPath))
	if err != nil {
		logger.Error("failed to open fact store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("failed to close fact store", slog.String("error", closeErr.Error()))
		}
	}()

	reg := metrics.New()
	svc := ingest.New(st, reg, logger)

	consumer := asyncingest.NewConsumer(brokers, groupID, logger)
	defer func() {
		if closeErr := consumer.Close(); closeErr != nil {
			logger.Error("failed to close consumer", slog.String("error", closeErr.Error()))
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := consumer.Run(ctx, replay(svc, logger)); err != nil {
		logger.Error("consumer stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("liminal async ingest consumer stopped")
}

// replay decodes one message's payload into an ingest.BatchInput using the
// same DTO conversion the synchronous `/ingest/batch` handler applies, then
// runs it through Service.Batch.
func replay(svc *ingest.Service, logger *slog.Logger) asyncingest.Handler {
	return func(_ context.Context, payload []byte) error {
		in, err := api.DecodeBatchRequest(payload)
		if err != nil {
			return err
		}

		result, err := svc.Batch(in)
		if err != nil {
			logger.Error("async batch replay partially failed",
				slog.Int("tests", result.Counts.Tests),
				slog.Int("signals", result.Counts.Signals),
				slog.Int("artifacts", result.Counts.Artifacts),
				slog.String("error", err.Error()),
			)

			return err
		}

		logger.Info("async batch replayed",
			slog.Int("tests", result.Counts.Tests),
			slog.Int("signals", result.Counts.Signals),
			slog.Int("artifacts", result.Counts.Artifacts),
		)

		return nil
	}
}
