package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Skotchmaster/moto_shop/internal/config"
	"github.com/Skotchmaster/moto_shop/internal/es"
	"github.com/Skotchmaster/moto_shop/internal/mykafka"
	"github.com/Skotchmaster/moto_shop/pkg/logging"
)

func main() {
	cfg := config.Load("")
	cfg.MustIndexer()

	log := logging.New(cfg.LogLevel).With("service", "stock-indexer")
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.IntoContext(ctx, log)

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	client, err := es.NewClient(initCtx, cfg.ESURL, cfg.ESUser, cfg.ESPassword)
	cancel()
	if err != nil {
		log.Error("es_init_failed", "error", err)
		os.Exit(1)
	}
	indexer := es.NewStockIndexer(client, cfg.ProductsIndex)

	consumer, err := mykafka.NewConsumer(cfg.KafkaBrokers, cfg.OrderTopic, cfg.IndexerGroup)
	if err != nil {
		log.Error("kafka_init_failed", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	log.Info("indexer_started", "topic", cfg.OrderTopic, "group", cfg.IndexerGroup, "index", indexer.Index)
	if err := consumer.Run(ctx, indexer.HandleMessage); err != nil {
		log.Error("indexer_stopped", "error", err)
		os.Exit(1)
	}
	log.Info("indexer_stopped")
}
