package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/moto_shop/internal/cart"
	"github.com/Skotchmaster/moto_shop/internal/catalog"
	"github.com/Skotchmaster/moto_shop/internal/checkout"
	"github.com/Skotchmaster/moto_shop/internal/config"
	"github.com/Skotchmaster/moto_shop/internal/discount"
	"github.com/Skotchmaster/moto_shop/internal/httpserver"
	"github.com/Skotchmaster/moto_shop/internal/metrics"
	"github.com/Skotchmaster/moto_shop/internal/mykafka"
	"github.com/Skotchmaster/moto_shop/internal/tracing"
	"github.com/Skotchmaster/moto_shop/pkg/db"
	"github.com/Skotchmaster/moto_shop/pkg/logging"
	loggingmw "github.com/Skotchmaster/moto_shop/pkg/middleware/logging"
)

func main() {
	cfg := config.Load("")
	cfg.MustServer()

	log := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(log)

	shutdownTracing, err := tracing.InitTracerProvider(cfg.ServiceName, cfg.JaegerEndpoint)
	if err != nil {
		log.Error("tracing_init_failed", "error", err)
		os.Exit(1)
	}

	if err := db.Migrate(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		log.Error("migrate_failed", "error", err)
		os.Exit(1)
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Error("db_init_failed", "error", err)
		os.Exit(1)
	}

	var cache cart.Cache
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cache = cart.NewRedisCache(rdb)
	} else {
		log.Warn("cart_cache_disabled", "reason", "REDIS_ADDR not set")
	}

	var publisher checkout.Publisher
	var producer *mykafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Error("kafka_init_failed", "error", err)
			os.Exit(1)
		}
		publisher = producer
	} else {
		log.Warn("order_events_disabled", "reason", "KAFKA_BROKERS not set")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(reg)

	products := &catalog.GormRepo{DB: gdb}
	carts := &cart.GormRepo{DB: gdb}
	discounts := &discount.GormRegistry{DB: gdb}
	cartSvc := &cart.Service{Repo: carts, Catalog: products, Cache: cache}

	engine := &checkout.Engine{
		DB:        gdb,
		Catalog:   products,
		Discounts: discounts,
		Carts:     carts,
		CartCache: cartSvc,
		Publisher: publisher,
		Metrics:   checkoutMetrics,
		Topic:     cfg.OrderTopic,
		TxTimeout: cfg.TxTimeout,
	}

	e := echo.New()
	e.HideBanner = true

	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	e.Use(middleware.Recover())
	e.Use(loggingmw.RequestLogger(log))
	e.Use(middleware.CORS())

	httpserver.Register(e, &httpserver.Deps{
		DB:        gdb,
		Cart:      &httpserver.CartHTTP{Svc: cartSvc},
		Checkout:  &httpserver.CheckoutHTTP{Engine: engine, Discounts: discounts},
		Orders:    &httpserver.OrderHTTP{Engine: engine},
		Admin:     &httpserver.AdminHTTP{Engine: engine, Discounts: discounts},
		JWTSecret: cfg.JWTAccessSecret,
		Metrics:   metrics.Handler(reg),
	})

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	go func() {
		log.Info("server_starting", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server_start_failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("server_shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("server_shutdown_failed", "error", err)
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Error("kafka_close_failed", "error", err)
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing_shutdown_failed", "error", err)
	}
	if err := db.Close(gdb); err != nil {
		log.Error("db_close_failed", "error", err)
	}

	log.Info("server_stopped")
}
