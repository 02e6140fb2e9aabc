package models

import (
	"time"

	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/pricing"
)

// Quote is an immutable record of one totals calculation: the inputs it was
// computed from and the resulting breakdown.
type Quote struct {
	ID            string                `json:"id"`
	CartID        string                `json:"cart_id"`
	Currency      string                `json:"currency"`
	Items         []pricing.LineItem    `json:"items"`
	Discount      *pricing.DiscountSpec `json:"discount,omitempty"`
	Shipping      *pricing.ShippingSpec `json:"shipping,omitempty"`
	Tax           *pricing.TaxSpec      `json:"tax,omitempty"`
	Totals        pricing.OrderTotals   `json:"totals"`
	PolicyApplied bool                  `json:"policy_applied"`
	CreatedAt     time.Time             `json:"created_at"`
}

// QuoteRequest carries the pricing inputs supplied by a caller.
type QuoteRequest struct {
	CartID   string                `json:"cart_id"`
	Currency string                `json:"currency,omitempty"`
	Items    []pricing.LineItem    `json:"items"`
	Discount *pricing.DiscountSpec `json:"discount,omitempty"`
	Shipping *pricing.ShippingSpec `json:"shipping,omitempty"`
	Tax      *pricing.TaxSpec      `json:"tax,omitempty"`
}

// Calculation is the result of pricing a request without persisting it.
type Calculation struct {
	Currency      string                `json:"currency"`
	Shipping      *pricing.ShippingSpec `json:"shipping,omitempty"`
	Tax           *pricing.TaxSpec      `json:"tax,omitempty"`
	Totals        pricing.OrderTotals   `json:"totals"`
	PolicyApplied bool                  `json:"policy_applied"`
}

// ItemCount returns the number of units across all line items.
func (q *Quote) ItemCount() int {
	n := 0
	for _, item := range q.Items {
		n += item.Quantity
	}
	return n
}
