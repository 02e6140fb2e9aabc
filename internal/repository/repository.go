package repository

import (
	"context"
	"errors"

	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/models"
)

// ErrNotFound is returned when a quote does not exist.
var ErrNotFound = errors.New("not found")

// Ensure the implementations satisfy their interfaces.
var (
	_ QuoteRepository = (*PostgresQuoteRepository)(nil)
	_ QuoteCache      = (*RedisQuoteCache)(nil)
)

// QuoteRepository persists quotes. Quotes are immutable once created.
type QuoteRepository interface {
	Create(ctx context.Context, quote *models.Quote) error
	GetByID(ctx context.Context, id string) (*models.Quote, error)
	ListByCartID(ctx context.Context, cartID string, limit int) ([]*models.Quote, error)
}

// QuoteCache defines caching operations for quotes. Get returns (nil, nil) on a
// miss. Quotes never change, so entries only leave the cache by expiring.
type QuoteCache interface {
	Get(ctx context.Context, id string) (*models.Quote, error)
	Set(ctx context.Context, quote *models.Quote) error
}
