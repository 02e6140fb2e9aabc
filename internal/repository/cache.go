package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/models"
)

const (
	quoteKeyPrefix  = "quote:"
	defaultCacheTTL = 5 * time.Minute
)

// RedisQuoteCache implements QuoteCache using Redis.
type RedisQuoteCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisQuoteCache creates a new Redis-based quote cache.
func NewRedisQuoteCache(cfg config.RedisConfig, logger *zap.Logger) *RedisQuoteCache {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newRedisQuoteCache(client, cfg.TTL, logger)
}

func newRedisQuoteCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisQuoteCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisQuoteCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("quote-cache"),
	}
}

// Get retrieves a quote from cache.
func (c *RedisQuoteCache) Get(ctx context.Context, id string) (*models.Quote, error) {
	data, err := c.client.Get(ctx, quoteKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("Cache miss", zap.String("quote_id", id))
		return nil, nil
	}
	if err != nil {
		c.logger.Error("Cache get error",
			zap.String("quote_id", id),
			zap.Error(err),
		)
		return nil, err
	}

	var quote models.Quote
	if err := json.Unmarshal(data, &quote); err != nil {
		return nil, err
	}

	c.logger.Debug("Cache hit", zap.String("quote_id", id))
	return &quote, nil
}

// Set stores a quote in cache.
func (c *RedisQuoteCache) Set(ctx context.Context, quote *models.Quote) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, quoteKey(quote.ID), data, c.ttl).Err(); err != nil {
		c.logger.Error("Cache set error",
			zap.String("quote_id", quote.ID),
			zap.Error(err),
		)
		return err
	}

	c.logger.Debug("Quote cached",
		zap.String("quote_id", quote.ID),
		zap.Duration("ttl", c.ttl),
	)
	return nil
}

// Ping checks connectivity to Redis.
func (c *RedisQuoteCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *RedisQuoteCache) Close() error {
	return c.client.Close()
}

func quoteKey(id string) string {
	return quoteKeyPrefix + id
}
