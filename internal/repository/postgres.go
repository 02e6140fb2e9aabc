package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/pricing"
)

// Schema creates the quotes table. Money columns hold exact two-place amounts.
const Schema = `
CREATE TABLE IF NOT EXISTS quotes (
	id              TEXT PRIMARY KEY,
	cart_id         TEXT NOT NULL,
	currency        CHAR(3) NOT NULL,
	request         JSONB NOT NULL,
	subtotal        NUMERIC(12,2) NOT NULL,
	discount_amount NUMERIC(12,2) NOT NULL,
	shipping_fee    NUMERIC(12,2) NOT NULL,
	tax_amount      NUMERIC(12,2) NOT NULL,
	grand_total     NUMERIC(12,2) NOT NULL,
	policy_applied  BOOLEAN NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS quotes_cart_id_created_at_idx ON quotes (cart_id, created_at DESC);
`

const quoteColumns = `
	id, cart_id, currency, request,
	subtotal, discount_amount, shipping_fee, tax_amount, grand_total,
	policy_applied, created_at
`

// quoteInputs is the JSONB shape of the request column.
type quoteInputs struct {
	Items    []pricing.LineItem    `json:"items"`
	Discount *pricing.DiscountSpec `json:"discount,omitempty"`
	Shipping *pricing.ShippingSpec `json:"shipping,omitempty"`
	Tax      *pricing.TaxSpec      `json:"tax,omitempty"`
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresQuoteRepository implements QuoteRepository using PostgreSQL.
type PostgresQuoteRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresQuoteRepository creates a new PostgreSQL quote repository.
func NewPostgresQuoteRepository(db *sql.DB, logger *zap.Logger) *PostgresQuoteRepository {
	return &PostgresQuoteRepository{
		db:     db,
		logger: logger.Named("quote-repository"),
	}
}

// EnsureSchema creates the quotes table if it does not exist.
func (r *PostgresQuoteRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure quotes schema: %w", err)
	}
	return nil
}

// Create inserts a new quote, assigning its ID and creation time when unset.
func (r *PostgresQuoteRepository) Create(ctx context.Context, quote *models.Quote) error {
	if quote.ID == "" {
		quote.ID = generateQuoteID()
	}
	if quote.CreatedAt.IsZero() {
		quote.CreatedAt = time.Now().UTC()
	}

	r.logger.Debug("Creating quote",
		zap.String("quote_id", quote.ID),
		zap.String("cart_id", quote.CartID),
	)

	inputsJSON, err := json.Marshal(quoteInputs{
		Items:    quote.Items,
		Discount: quote.Discount,
		Shipping: quote.Shipping,
		Tax:      quote.Tax,
	})
	if err != nil {
		return err
	}

	query := `
		INSERT INTO quotes (` + quoteColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		quote.ID,
		quote.CartID,
		quote.Currency,
		inputsJSON,
		quote.Totals.Subtotal.StringFixed(2),
		quote.Totals.DiscountAmount.StringFixed(2),
		quote.Totals.ShippingFee.StringFixed(2),
		quote.Totals.TaxAmount.StringFixed(2),
		quote.Totals.GrandTotal.StringFixed(2),
		quote.PolicyApplied,
		quote.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create quote",
			zap.String("quote_id", quote.ID),
			zap.Error(err),
		)
		return fmt.Errorf("insert quote %s: %w", quote.ID, err)
	}

	r.logger.Info("Quote created",
		zap.String("quote_id", quote.ID),
		zap.String("grand_total", quote.Totals.GrandTotal.StringFixed(2)),
	)
	return nil
}

// GetByID retrieves a quote by its unique identifier.
func (r *PostgresQuoteRepository) GetByID(ctx context.Context, id string) (*models.Quote, error) {
	r.logger.Debug("Fetching quote by ID", zap.String("quote_id", id))

	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE id = $1`

	quote, err := scanQuote(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to fetch quote",
			zap.String("quote_id", id),
			zap.Error(err),
		)
		return nil, err
	}
	return quote, nil
}

// ListByCartID returns the most recent quotes of a cart, newest first.
func (r *PostgresQuoteRepository) ListByCartID(ctx context.Context, cartID string, limit int) ([]*models.Quote, error) {
	r.logger.Debug("Listing quotes for cart",
		zap.String("cart_id", cartID),
		zap.Int("limit", limit),
	)

	query := `SELECT ` + quoteColumns + `
		FROM quotes
		WHERE cart_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, cartID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quotes := make([]*models.Quote, 0)
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, quote)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return quotes, nil
}

func scanQuote(row rowScanner) (*models.Quote, error) {
	var quote models.Quote
	var inputsJSON []byte

	err := row.Scan(
		&quote.ID,
		&quote.CartID,
		&quote.Currency,
		&inputsJSON,
		&quote.Totals.Subtotal,
		&quote.Totals.DiscountAmount,
		&quote.Totals.ShippingFee,
		&quote.Totals.TaxAmount,
		&quote.Totals.GrandTotal,
		&quote.PolicyApplied,
		&quote.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	var inputs quoteInputs
	if err := json.Unmarshal(inputsJSON, &inputs); err != nil {
		return nil, fmt.Errorf("decode quote %s request: %w", quote.ID, err)
	}
	quote.Items = inputs.Items
	quote.Discount = inputs.Discount
	quote.Shipping = inputs.Shipping
	quote.Tax = inputs.Tax

	return &quote, nil
}

func generateQuoteID() string {
	return "qt_" + uuid.NewString()
}
