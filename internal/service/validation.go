package service

import (
	"fmt"
	"strings"

	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/models"
)

const (
	maxQuoteItems     = 500
	defaultQuoteLimit = 20
	maxQuoteLimit     = 100
)

// RequestError reports a request that is malformed before any pricing happens.
type RequestError struct {
	Field   string
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Message)
}

func newRequestError(field, message string) error {
	return &RequestError{Field: field, Message: message}
}

// ValidateQuoteRequest checks the envelope of a pricing request. Item and spec
// values are validated by the calculator. requireCart is set for requests that
// will be persisted.
func ValidateQuoteRequest(req *models.QuoteRequest, requireCart bool) error {
	if req == nil {
		return newRequestError("body", "request body is required")
	}

	if requireCart && strings.TrimSpace(req.CartID) == "" {
		return newRequestError("cart_id", "cart ID is required")
	}

	if req.Currency != "" && !isCurrencyCode(req.Currency) {
		return newRequestError("currency", "currency must be a 3-letter ISO code")
	}

	if len(req.Items) > maxQuoteItems {
		// TODO(TEAM-API): Make max item count configurable
		return newRequestError("items", fmt.Sprintf("at most %d items are allowed", maxQuoteItems))
	}

	return nil
}

// normalizeLimit applies the default and the cap to a list limit.
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultQuoteLimit
	}
	if limit > maxQuoteLimit {
		return maxQuoteLimit
	}
	return limit
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}
