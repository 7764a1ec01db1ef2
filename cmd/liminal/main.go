// Package main provides the liminal ingest service: the HTTP surface
// over the bi-temporal fact store, the ingest pipeline, and the query
// engine.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/liminalqa/liminal/internal/api"
	"github.com/liminalqa/liminal/internal/api/middleware"
	"github.com/liminalqa/liminal/internal/asyncingest"
	"github.com/liminalqa/liminal/internal/config"
	"github.com/liminalqa/liminal/internal/ingest"
	"github.com/liminalqa/liminal/internal/metrics"
	"github.com/liminalqa/liminal/internal/store"
)

// Version information.
const (
	version = "0.1.0-dev"
	name    = "liminal"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	serverConfig, err := api.LoadServerConfigFromFile(config.GetEnvStr("LIMINAL_CONFIG_FILE", ""))
	if err != nil {
		log.Fatalf("failed to load server config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: serverConfig.LogLevel,
	}))

	logger.Info("starting liminal ingest service",
		slog.String("service", name),
		slog.String("version", version),
		slog.String("db_path", serverConfig.DBPath),
	)

	st, err := store.Open(store.DefaultConfig(serverConfig.DBPath))
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

	rateLimiterConfig := middleware.LoadConfig()
	rateLimiter := middleware.NewInMemoryRateLimiter(rateLimiterConfig)

	var publisher api.BatchPublisher

	if len(serverConfig.KafkaBrokers) > 0 {
		producer := asyncingest.NewProducer(serverConfig.KafkaBrokers)
		defer func() {
			if closeErr := producer.Close(); closeErr != nil {
				logger.Error("failed to close async batch producer", slog.String("error", closeErr.Error()))
			}
		}()

		publisher = producer
	}

	server := api.NewServer(&serverConfig, st, svc, reg, rateLimiter, publisher)

	if err := server.Start(); err != nil {
		logger.Error("server failed to start", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("liminal ingest service stopped")
}
