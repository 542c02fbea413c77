package config

import (
	"log/slog"
	"time"

	"github.com/joho/godotenv"

	"github.com/Skotchmaster/moto_shop/internal/events"
	pkgcfg "github.com/Skotchmaster/moto_shop/pkg/config"
)

// Config is the shop service configuration: the shared settings plus the
// checkout knobs.
type Config struct {
	pkgcfg.Config

	TxTimeout     time.Duration
	OrderTopic    string
	IndexerGroup  string
	ProductsIndex string
}

// Load reads .env when present and then the process environment.
func Load(path string) *Config {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		slog.Info("env_file_not_loaded", "path", path, "error", err)
	}

	return &Config{
		Config:        pkgcfg.Load(),
		TxTimeout:     pkgcfg.EnvDurationDefault("CHECKOUT_TX_TIMEOUT", 5*time.Second),
		OrderTopic:    pkgcfg.EnvDefault("ORDER_EVENTS_TOPIC", events.OrderTopic),
		IndexerGroup:  pkgcfg.EnvDefault("INDEXER_GROUP", "stock-indexer"),
		ProductsIndex: pkgcfg.EnvDefault("ES_PRODUCTS_INDEX", "product"),
	}
}

// MustServer stops the process when a setting the HTTP server cannot run
// without is missing.
func (c *Config) MustServer() {
	pkgcfg.MustNonEmpty(c.DatabaseURL, "DATABASE_URL")
	pkgcfg.MustNonEmptyBytes(c.JWTAccessSecret, "JWT_SECRET")
}

func (c *Config) MustIndexer() {
	pkgcfg.MustNonEmptySlice(c.KafkaBrokers, "KAFKA_BROKERS")
	pkgcfg.MustNonEmpty(c.ESURL, "ES_URL")
}
