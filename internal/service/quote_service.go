package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/pricing"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/repository"
)

// QuoteEventPublisher publishes quote lifecycle events.
type QuoteEventPublisher interface {
	PublishQuoteComputed(ctx context.Context, quote *models.Quote) error
}

// QuoteService handles pricing business logic.
type QuoteService struct {
	quoteRepo      repository.QuoteRepository
	quoteCache     repository.QuoteCache
	eventPublisher QuoteEventPublisher
	metrics        *metrics.Metrics
	config         *config.Config
	logger         *zap.Logger
	now            func() time.Time
}

// NewQuoteService creates a new quote service. cache and publisher may be nil
// when the matching feature is disabled.
func NewQuoteService(
	quoteRepo repository.QuoteRepository,
	quoteCache repository.QuoteCache,
	eventPublisher QuoteEventPublisher,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *QuoteService {
	return &QuoteService{
		quoteRepo:      quoteRepo,
		quoteCache:     quoteCache,
		eventPublisher: eventPublisher,
		metrics:        m,
		config:         cfg,
		logger:         logging.OrNop(logger).Named("quote-service"),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Calculate prices a request without persisting anything.
func (s *QuoteService) Calculate(ctx context.Context, req *models.QuoteRequest) (*models.Calculation, error) {
	if err := ValidateQuoteRequest(req, false); err != nil {
		return nil, err
	}
	return s.calculate(req)
}

func (s *QuoteService) calculate(req *models.QuoteRequest) (*models.Calculation, error) {
	shipping, tax, policyApplied := s.applyStorePolicy(req)

	started := time.Now()
	totals, err := pricing.ComputeTotals(req.Items, req.Discount, shipping, tax)
	s.metrics.ObserveCalculation(started, err)
	if err != nil {
		s.logger.Debug("Rejected pricing input",
			zap.String("kind", pricing.KindName(err)),
			zap.Error(err),
		)
		return nil, err
	}

	return &models.Calculation{
		Currency:      s.currencyFor(req),
		Shipping:      shipping,
		Tax:           tax,
		Totals:        totals,
		PolicyApplied: policyApplied,
	}, nil
}

// CreateQuote prices a cart and records the result as a new quote.
func (s *QuoteService) CreateQuote(ctx context.Context, req *models.QuoteRequest) (*models.Quote, error) {
	if err := ValidateQuoteRequest(req, true); err != nil {
		return nil, err
	}

	s.logger.Info("Creating quote",
		zap.String("cart_id", req.CartID),
		zap.Int("item_count", len(req.Items)),
	)

	calc, err := s.calculate(req)
	if err != nil {
		return nil, err
	}

	quote := &models.Quote{
		CartID:        req.CartID,
		Currency:      calc.Currency,
		Items:         req.Items,
		Discount:      req.Discount,
		Shipping:      calc.Shipping,
		Tax:           calc.Tax,
		Totals:        calc.Totals,
		PolicyApplied: calc.PolicyApplied,
		CreatedAt:     s.now(),
	}

	if err := s.quoteRepo.Create(ctx, quote); err != nil {
		s.logger.Error("Failed to create quote",
			zap.String("cart_id", req.CartID),
			zap.Error(err),
		)
		return nil, err
	}
	s.metrics.QuoteCreated()

	if s.cachingEnabled() {
		if err := s.quoteCache.Set(ctx, quote); err != nil {
			// Log but don't fail
			s.logger.Warn("Failed to cache quote",
				zap.String("quote_id", quote.ID),
				zap.Error(err),
			)
		}
	}

	if s.config.Features.EnableQuoteEvents && s.eventPublisher != nil {
		if err := s.eventPublisher.PublishQuoteComputed(ctx, quote); err != nil {
			// Log but don't fail
			s.logger.Error("Failed to publish quote computed event",
				zap.String("quote_id", quote.ID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("Quote created",
		zap.String("quote_id", quote.ID),
		zap.String("grand_total", quote.Totals.GrandTotal.StringFixed(2)),
	)

	return quote, nil
}

// GetQuote retrieves a quote by ID, serving from cache when possible.
func (s *QuoteService) GetQuote(ctx context.Context, id string) (*models.Quote, error) {
	s.logger.Debug("Getting quote", zap.String("quote_id", id))

	if s.cachingEnabled() {
		quote, err := s.quoteCache.Get(ctx, id)
		switch {
		case err != nil:
			s.metrics.CacheResult("error")
			s.logger.Warn("Quote cache lookup failed",
				zap.String("quote_id", id),
				zap.Error(err),
			)
		case quote != nil:
			s.metrics.CacheResult("hit")
			return quote, nil
		default:
			s.metrics.CacheResult("miss")
		}
	}

	quote, err := s.quoteRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cachingEnabled() {
		if err := s.quoteCache.Set(ctx, quote); err != nil {
			s.logger.Warn("Failed to cache quote",
				zap.String("quote_id", id),
				zap.Error(err),
			)
		}
	}

	return quote, nil
}

// ListCartQuotes returns a cart's most recent quotes, newest first.
func (s *QuoteService) ListCartQuotes(ctx context.Context, cartID string, limit int) ([]*models.Quote, error) {
	if strings.TrimSpace(cartID) == "" {
		return nil, newRequestError("cart_id", "cart ID is required")
	}
	return s.quoteRepo.ListByCartID(ctx, cartID, normalizeLimit(limit))
}

// applyStorePolicy fills in the store's shipping and tax rules where the
// request has none. Discounts are never defaulted.
func (s *QuoteService) applyStorePolicy(req *models.QuoteRequest) (*pricing.ShippingSpec, *pricing.TaxSpec, bool) {
	shipping, tax := req.Shipping, req.Tax
	if !s.config.Features.EnableStorePolicy {
		return shipping, tax, false
	}

	applied := false
	if shipping == nil {
		if shipping = s.config.StorePolicy.ShippingSpec(); shipping != nil {
			applied = true
		}
	}
	if tax == nil {
		if tax = s.config.StorePolicy.TaxSpec(); tax != nil {
			applied = true
		}
	}
	return shipping, tax, applied
}

func (s *QuoteService) currencyFor(req *models.QuoteRequest) string {
	if req.Currency != "" {
		return strings.ToUpper(req.Currency)
	}
	return s.config.StorePolicy.Currency
}

func (s *QuoteService) cachingEnabled() bool {
	return s.config.Features.EnableQuoteCaching && s.quoteCache != nil
}
