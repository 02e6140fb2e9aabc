package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/pricing"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/repository"
)

type fakeQuoteRepository struct {
	mu        sync.Mutex
	quotes    map[string]*models.Quote
	createErr error
	gets      int
	lastLimit int
}

func newFakeQuoteRepository() *fakeQuoteRepository {
	return &fakeQuoteRepository{quotes: make(map[string]*models.Quote)}
}

func (r *fakeQuoteRepository) Create(ctx context.Context, quote *models.Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if quote.ID == "" {
		quote.ID = fmt.Sprintf("qt_%d", len(r.quotes)+1)
	}
	r.quotes[quote.ID] = quote
	return nil
}

func (r *fakeQuoteRepository) GetByID(ctx context.Context, id string) (*models.Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	if q, ok := r.quotes[id]; ok {
		return q, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeQuoteRepository) ListByCartID(ctx context.Context, cartID string, limit int) ([]*models.Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastLimit = limit
	var out []*models.Quote
	for _, q := range r.quotes {
		if q.CartID == cartID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeQuoteCache struct {
	quotes map[string]*models.Quote
	getErr error
	setErr error
}

func newFakeQuoteCache() *fakeQuoteCache {
	return &fakeQuoteCache{quotes: make(map[string]*models.Quote)}
}

func (c *fakeQuoteCache) Get(ctx context.Context, id string) (*models.Quote, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.quotes[id], nil
}

func (c *fakeQuoteCache) Set(ctx context.Context, quote *models.Quote) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.quotes[quote.ID] = quote
	return nil
}

type fakePublisher struct {
	published []*models.Quote
	err       error
}

func (p *fakePublisher) PublishQuoteComputed(ctx context.Context, quote *models.Quote) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, quote)
	return nil
}

type fixture struct {
	svc       *QuoteService
	repo      *fakeQuoteRepository
	cache     *fakeQuoteCache
	publisher *fakePublisher
	cfg       *config.Config
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()

	cfg := config.Load()
	cfg.Features.EnableQuoteCaching = true
	cfg.Features.EnableQuoteEvents = true
	cfg.Features.EnableStorePolicy = false
	cfg.StorePolicy = config.StorePolicyConfig{Currency: "USD"}
	if mutate != nil {
		mutate(cfg)
	}

	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	f := &fixture{
		repo:      newFakeQuoteRepository(),
		cache:     newFakeQuoteCache(),
		publisher: &fakePublisher{},
		cfg:       cfg,
	}
	f.svc = NewQuoteService(f.repo, f.cache, f.publisher, m, cfg, zap.NewNop())
	return f
}

func mixedCart() *models.QuoteRequest {
	return &models.QuoteRequest{
		CartID: "cart_1",
		Items: []pricing.LineItem{
			{SKU: "A", UnitPrice: 19.99, Quantity: 2},
			{SKU: "B", UnitPrice: 12.50, Quantity: 1},
		},
		Discount: &pricing.DiscountSpec{Kind: pricing.DiscountPercentage, Value: 10},
		Shipping: &pricing.ShippingSpec{BaseFee: pricing.Float64(5.99), FreeAbove: pricing.Float64(75)},
		Tax:      &pricing.TaxSpec{Rate: 0.08},
	}
}

func TestQuoteService_Calculate(t *testing.T) {
	f := newFixture(t, nil)

	calc, err := f.svc.Calculate(context.Background(), mixedCart())
	require.NoError(t, err)

	assert.Equal(t, "USD", calc.Currency)
	assert.False(t, calc.PolicyApplied)
	assert.Equal(t, "52.48", calc.Totals.Subtotal.StringFixed(2))
	assert.Equal(t, "5.25", calc.Totals.DiscountAmount.StringFixed(2))
	assert.Equal(t, "5.99", calc.Totals.ShippingFee.StringFixed(2))
	assert.Equal(t, "3.78", calc.Totals.TaxAmount.StringFixed(2))
	assert.Equal(t, "57.00", calc.Totals.GrandTotal.StringFixed(2))

	assert.Empty(t, f.repo.quotes, "Calculate must not persist")
}

func TestQuoteService_Calculate_CurrencyUppercased(t *testing.T) {
	f := newFixture(t, nil)
	req := mixedCart()
	req.Currency = "eur"

	calc, err := f.svc.Calculate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "EUR", calc.Currency)
}

func TestQuoteService_Calculate_RejectsInvalidInput(t *testing.T) {
	f := newFixture(t, nil)
	req := mixedCart()
	req.Discount = &pricing.DiscountSpec{Kind: pricing.DiscountPercentage, Value: 150}

	_, err := f.svc.Calculate(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, pricing.ErrInvalidDiscountSpec)
}

func TestQuoteService_Calculate_RejectsBadEnvelope(t *testing.T) {
	f := newFixture(t, nil)
	req := mixedCart()
	req.Currency = "DOLLARS"

	_, err := f.svc.Calculate(context.Background(), req)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "currency", reqErr.Field)
}

func TestQuoteService_StorePolicy(t *testing.T) {
	withPolicy := func(c *config.Config) {
		c.Features.EnableStorePolicy = true
		c.StorePolicy = config.StorePolicyConfig{
			Currency:          "USD",
			TaxRate:           0.10,
			TaxAppliesTo:      string(pricing.TaxBaseAfterDiscount),
			BaseShippingFee:   4,
			FreeShippingAbove: 100,
		}
	}

	t.Run("fills missing specs", func(t *testing.T) {
		f := newFixture(t, withPolicy)
		req := &models.QuoteRequest{Items: []pricing.LineItem{{UnitPrice: 20, Quantity: 1}}}

		calc, err := f.svc.Calculate(context.Background(), req)
		require.NoError(t, err)

		assert.True(t, calc.PolicyApplied)
		assert.Equal(t, "4.00", calc.Totals.ShippingFee.StringFixed(2))
		assert.Equal(t, "2.00", calc.Totals.TaxAmount.StringFixed(2))
		assert.Equal(t, "26.00", calc.Totals.GrandTotal.StringFixed(2))
	})

	t.Run("explicit specs win", func(t *testing.T) {
		f := newFixture(t, withPolicy)
		req := &models.QuoteRequest{
			Items:    []pricing.LineItem{{UnitPrice: 20, Quantity: 1}},
			Shipping: &pricing.ShippingSpec{FlatFee: pricing.Float64(0)},
			Tax:      &pricing.TaxSpec{Rate: 0},
		}

		calc, err := f.svc.Calculate(context.Background(), req)
		require.NoError(t, err)

		assert.False(t, calc.PolicyApplied)
		assert.Equal(t, "20.00", calc.Totals.GrandTotal.StringFixed(2))
	})

	t.Run("never supplies a discount", func(t *testing.T) {
		f := newFixture(t, withPolicy)
		req := &models.QuoteRequest{Items: []pricing.LineItem{{UnitPrice: 20, Quantity: 1}}}

		calc, err := f.svc.Calculate(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, calc.Totals.DiscountAmount.IsZero())
	})

	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t, func(c *config.Config) {
			withPolicy(c)
			c.Features.EnableStorePolicy = false
		})
		req := &models.QuoteRequest{Items: []pricing.LineItem{{UnitPrice: 20, Quantity: 1}}}

		calc, err := f.svc.Calculate(context.Background(), req)
		require.NoError(t, err)

		assert.False(t, calc.PolicyApplied)
		assert.Equal(t, "20.00", calc.Totals.GrandTotal.StringFixed(2))
	})
}

func TestQuoteService_CreateQuote(t *testing.T) {
	f := newFixture(t, nil)

	quote, err := f.svc.CreateQuote(context.Background(), mixedCart())
	require.NoError(t, err)

	assert.NotEmpty(t, quote.ID)
	assert.Equal(t, "cart_1", quote.CartID)
	assert.Equal(t, "57.00", quote.Totals.GrandTotal.StringFixed(2))
	assert.False(t, quote.CreatedAt.IsZero())
	assert.Equal(t, 3, quote.ItemCount())

	assert.Contains(t, f.repo.quotes, quote.ID)
	assert.Contains(t, f.cache.quotes, quote.ID)
	require.Len(t, f.publisher.published, 1)
	assert.Equal(t, quote.ID, f.publisher.published[0].ID)
}

func TestQuoteService_CreateQuote_RequiresCart(t *testing.T) {
	f := newFixture(t, nil)
	req := mixedCart()
	req.CartID = " "

	_, err := f.svc.CreateQuote(context.Background(), req)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "cart_id", reqErr.Field)
	assert.Empty(t, f.repo.quotes)
}

func TestQuoteService_CreateQuote_InvalidInputNotPersisted(t *testing.T) {
	f := newFixture(t, nil)
	req := mixedCart()
	req.Items[0].Quantity = 0

	_, err := f.svc.CreateQuote(context.Background(), req)
	assert.ErrorIs(t, err, pricing.ErrInvalidLineItem)
	assert.Empty(t, f.repo.quotes)
	assert.Empty(t, f.publisher.published)
}

func TestQuoteService_CreateQuote_RepositoryError(t *testing.T) {
	f := newFixture(t, nil)
	f.repo.createErr = errors.New("connection refused")

	_, err := f.svc.CreateQuote(context.Background(), mixedCart())
	assert.EqualError(t, err, "connection refused")
	assert.Empty(t, f.publisher.published)
}

func TestQuoteService_CreateQuote_SideEffectFailuresIgnored(t *testing.T) {
	f := newFixture(t, nil)
	f.cache.setErr = errors.New("redis down")
	f.publisher.err = errors.New("kafka down")

	quote, err := f.svc.CreateQuote(context.Background(), mixedCart())
	require.NoError(t, err)
	assert.Contains(t, f.repo.quotes, quote.ID)
}

func TestQuoteService_CreateQuote_EventsDisabled(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Features.EnableQuoteEvents = false })

	_, err := f.svc.CreateQuote(context.Background(), mixedCart())
	require.NoError(t, err)
	assert.Empty(t, f.publisher.published)
}

func TestQuoteService_GetQuote(t *testing.T) {
	t.Run("cache hit skips repository", func(t *testing.T) {
		f := newFixture(t, nil)
		f.cache.quotes["qt_1"] = &models.Quote{ID: "qt_1"}

		quote, err := f.svc.GetQuote(context.Background(), "qt_1")
		require.NoError(t, err)
		assert.Equal(t, "qt_1", quote.ID)
		assert.Equal(t, 0, f.repo.gets)
	})

	t.Run("cache miss falls back and fills cache", func(t *testing.T) {
		f := newFixture(t, nil)
		f.repo.quotes["qt_1"] = &models.Quote{ID: "qt_1"}

		quote, err := f.svc.GetQuote(context.Background(), "qt_1")
		require.NoError(t, err)
		assert.Equal(t, "qt_1", quote.ID)
		assert.Equal(t, 1, f.repo.gets)
		assert.Contains(t, f.cache.quotes, "qt_1")
	})

	t.Run("cache error falls back", func(t *testing.T) {
		f := newFixture(t, nil)
		f.cache.getErr = errors.New("redis down")
		f.repo.quotes["qt_1"] = &models.Quote{ID: "qt_1"}

		quote, err := f.svc.GetQuote(context.Background(), "qt_1")
		require.NoError(t, err)
		assert.Equal(t, "qt_1", quote.ID)
	})

	t.Run("caching disabled", func(t *testing.T) {
		f := newFixture(t, func(c *config.Config) { c.Features.EnableQuoteCaching = false })
		f.cache.quotes["qt_1"] = &models.Quote{ID: "qt_1", CartID: "stale"}
		f.repo.quotes["qt_1"] = &models.Quote{ID: "qt_1", CartID: "cart_1"}

		quote, err := f.svc.GetQuote(context.Background(), "qt_1")
		require.NoError(t, err)
		assert.Equal(t, "cart_1", quote.CartID)
	})

	t.Run("not found", func(t *testing.T) {
		f := newFixture(t, nil)

		_, err := f.svc.GetQuote(context.Background(), "missing")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestQuoteService_ListCartQuotes(t *testing.T) {
	f := newFixture(t, nil)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		f.svc.now = func() time.Time { return at }
		_, err := f.svc.CreateQuote(context.Background(), mixedCart())
		require.NoError(t, err)
	}

	quotes, err := f.svc.ListCartQuotes(context.Background(), "cart_1", 2)
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.True(t, quotes[0].CreatedAt.After(quotes[1].CreatedAt))

	_, err = f.svc.ListCartQuotes(context.Background(), "cart_1", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultQuoteLimit, f.repo.lastLimit)

	_, err = f.svc.ListCartQuotes(context.Background(), "cart_1", 1000)
	require.NoError(t, err)
	assert.Equal(t, maxQuoteLimit, f.repo.lastLimit)

	_, err = f.svc.ListCartQuotes(context.Background(), "", 10)
	var reqErr *RequestError
	assert.ErrorAs(t, err, &reqErr)
}

func TestValidateQuoteRequest(t *testing.T) {
	tooMany := make([]pricing.LineItem, maxQuoteItems+1)

	tests := []struct {
		name        string
		req         *models.QuoteRequest
		requireCart bool
		wantField   string
	}{
		{"nil request", nil, false, "body"},
		{"valid without cart", &models.QuoteRequest{}, false, ""},
		{"missing cart", &models.QuoteRequest{}, true, "cart_id"},
		{"lowercase currency", &models.QuoteRequest{Currency: "usd"}, false, ""},
		{"short currency", &models.QuoteRequest{Currency: "US"}, false, "currency"},
		{"digit currency", &models.QuoteRequest{Currency: "U5D"}, false, "currency"},
		{"too many items", &models.QuoteRequest{Items: tooMany}, false, "items"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuoteRequest(tt.req, tt.requireCart)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var reqErr *RequestError
			require.ErrorAs(t, err, &reqErr)
			assert.Equal(t, tt.wantField, reqErr.Field)
		})
	}
}
