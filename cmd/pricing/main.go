package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/events"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/repository"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/server"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/service"

	_ "github.com/lib/pq"
)

func main() {
	logger, err := logging.New("pricing-service")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	db, err := initDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	quoteRepo := repository.NewPostgresQuoteRepository(db, logger)
	if err := quoteRepo.EnsureSchema(context.Background()); err != nil {
		logger.Fatal("Failed to prepare schema", zap.Error(err))
	}

	checks := []handlers.ReadinessCheck{{Name: "postgres", Check: db.PingContext}}

	var quoteCache repository.QuoteCache
	if cfg.Features.EnableQuoteCaching {
		redisCache := repository.NewRedisQuoteCache(cfg.Redis, logger)
		defer redisCache.Close()
		quoteCache = redisCache
		checks = append(checks, handlers.ReadinessCheck{Name: "redis", Check: redisCache.Ping})
	}

	var eventPublisher service.QuoteEventPublisher
	if cfg.Features.EnableQuoteEvents {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka, logger)
		defer kafkaPublisher.Close()
		eventPublisher = kafkaPublisher
	}

	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("Failed to register metrics", zap.Error(err))
	}

	quoteService := service.NewQuoteService(quoteRepo, quoteCache, eventPublisher, m, cfg, logger)

	h := handlers.NewHandlers(quoteService, cfg, logger, checks...)

	srv := server.New(h, cfg, logger)

	go func() {
		logger.Info("Server starting",
			zap.Int("port", cfg.Server.Port),
			zap.Bool("enable_quote_caching", cfg.Features.EnableQuoteCaching),
			zap.Bool("enable_quote_events", cfg.Features.EnableQuoteEvents),
			zap.Bool("enable_store_policy", cfg.Features.EnableStorePolicy),
		)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	var cartConsumer *events.KafkaConsumer
	if cfg.Features.EnableCartConsumer {
		cartConsumer = events.NewKafkaConsumer(cfg.Kafka, quoteService, logger)
		go func() {
			if err := cartConsumer.Start(context.Background()); err != nil {
				logger.Error("Cart consumer failed", zap.Error(err))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cartConsumer != nil {
		if err := cartConsumer.Stop(); err != nil {
			logger.Warn("Cart consumer did not close cleanly", zap.Error(err))
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func initDatabase(cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	logger.Info("Database connected",
		zap.String("host", cfg.Database.Host),
		zap.String("name", cfg.Database.Name),
	)

	return db, nil
}
