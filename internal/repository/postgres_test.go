package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/pricing"
)

func TestPostgresQuoteRepository_Create(t *testing.T) {
	// TODO(TEAM-PLATFORM): Add integration tests with test database
	t.Skip("Integration test - requires database")
}

func TestPostgresQuoteRepository_GetByID(t *testing.T) {
	t.Skip("Integration test - requires database")
}

func TestPostgresQuoteRepository_ListByCartID(t *testing.T) {
	t.Skip("Integration test - requires database")
}

func TestGenerateQuoteID(t *testing.T) {
	id := generateQuoteID()

	if !strings.HasPrefix(id, "qt_") {
		t.Errorf("Expected quote ID to start with 'qt_', got %s", id)
	}
	if len(id) != len("qt_")+36 {
		t.Errorf("Expected quote ID to carry a UUID, got %s", id)
	}
	if other := generateQuoteID(); other == id {
		t.Errorf("Expected unique quote IDs, got %s twice", id)
	}
}

// fakeRow hands out column values in order, the way *sql.Row does.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *[]byte:
			*p = r.values[i].([]byte)
		case *bool:
			*p = r.values[i].(bool)
		case *time.Time:
			*p = r.values[i].(time.Time)
		case *decimal.Decimal:
			if err := p.Scan(r.values[i]); err != nil {
				return err
			}
		default:
			return errors.New("unsupported destination")
		}
	}
	return nil
}

func TestScanQuote(t *testing.T) {
	createdAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	inputs, err := json.Marshal(quoteInputs{
		Items:    []pricing.LineItem{{SKU: "A", UnitPrice: 19.99, Quantity: 2}},
		Discount: &pricing.DiscountSpec{Kind: pricing.DiscountPercentage, Value: 10},
		Tax:      &pricing.TaxSpec{Rate: 0.08},
	})
	if err != nil {
		t.Fatal(err)
	}

	row := fakeRow{values: []any{
		"qt_1", "cart_1", "USD", inputs,
		[]byte("39.98"), []byte("4.00"), []byte("0.00"), []byte("2.88"), []byte("38.86"),
		false, createdAt,
	}}

	quote, err := scanQuote(row)
	if err != nil {
		t.Fatalf("scanQuote() error = %v", err)
	}

	if quote.ID != "qt_1" || quote.CartID != "cart_1" || quote.Currency != "USD" {
		t.Errorf("Unexpected identity fields %+v", quote)
	}
	if got := quote.Totals.GrandTotal.StringFixed(2); got != "38.86" {
		t.Errorf("Expected grand total 38.86, got %s", got)
	}
	if len(quote.Items) != 1 || quote.Items[0].Quantity != 2 {
		t.Errorf("Unexpected items %+v", quote.Items)
	}
	if quote.Discount == nil || quote.Discount.Value != 10 {
		t.Errorf("Unexpected discount %+v", quote.Discount)
	}
	if quote.Shipping != nil {
		t.Errorf("Expected no shipping spec, got %+v", quote.Shipping)
	}
	if !quote.CreatedAt.Equal(createdAt) {
		t.Errorf("Expected created_at %s, got %s", createdAt, quote.CreatedAt)
	}
}

func TestScanQuote_PropagatesNoRows(t *testing.T) {
	_, err := scanQuote(fakeRow{err: sql.ErrNoRows})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected sql.ErrNoRows, got %v", err)
	}
}

func TestScanQuote_CorruptRequest(t *testing.T) {
	row := fakeRow{values: []any{
		"qt_1", "cart_1", "USD", []byte("{not json"),
		[]byte("0"), []byte("0"), []byte("0"), []byte("0"), []byte("0"),
		false, time.Now(),
	}}
	if _, err := scanQuote(row); err == nil {
		t.Error("Expected error for corrupt request column")
	}
}

func TestQuoteKey(t *testing.T) {
	if got := quoteKey("qt_123"); got != "quote:qt_123" {
		t.Errorf("Expected key quote:qt_123, got %s", got)
	}
}

func TestNewRedisQuoteCache_DefaultTTL(t *testing.T) {
	cache := newRedisQuoteCache(nil, 0, zap.NewNop())
	if cache.ttl != defaultCacheTTL {
		t.Errorf("Expected default TTL %s, got %s", defaultCacheTTL, cache.ttl)
	}

	cache = newRedisQuoteCache(nil, time.Minute, zap.NewNop())
	if cache.ttl != time.Minute {
		t.Errorf("Expected TTL 1m, got %s", cache.ttl)
	}
}

func BenchmarkGenerateQuoteID(b *testing.B) {
	for i := 0; i < b.N; i++ {
		generateQuoteID()
	}
}
