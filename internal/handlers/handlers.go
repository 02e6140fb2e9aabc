package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/pricing"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/repository"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/service"
)

// QuoteService is the pricing behaviour the HTTP layer depends on.
type QuoteService interface {
	Calculate(ctx context.Context, req *models.QuoteRequest) (*models.Calculation, error)
	CreateQuote(ctx context.Context, req *models.QuoteRequest) (*models.Quote, error)
	GetQuote(ctx context.Context, id string) (*models.Quote, error)
	ListCartQuotes(ctx context.Context, cartID string, limit int) ([]*models.Quote, error)
}

var _ QuoteService = (*service.QuoteService)(nil)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handlers holds all HTTP handlers for the pricing service.
type Handlers struct {
	quoteService QuoteService
	config       *config.Config
	logger       *zap.Logger
	checks       []ReadinessCheck
}

// NewHandlers creates a new handlers instance.
func NewHandlers(
	quoteService QuoteService,
	cfg *config.Config,
	logger *zap.Logger,
	checks ...ReadinessCheck,
) *Handlers {
	return &Handlers{
		quoteService: quoteService,
		config:       cfg,
		logger:       logging.OrNop(logger).Named("handlers"),
		checks:       checks,
	}
}

func (h *Handlers) handleError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	var validationErr *pricing.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": validationErr.Message,
			"field": validationErr.Field,
			"kind":  pricing.KindName(err),
		})
		return
	}

	var requestErr *service.RequestError
	if errors.As(err, &requestErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": requestErr.Message,
			"field": requestErr.Field,
			"kind":  "invalid_request",
		})
		return
	}

	h.logger.Error("Request failed",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func badBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": "invalid request body: " + err.Error(),
		"field": "body",
		"kind":  "invalid_request",
	})
}
