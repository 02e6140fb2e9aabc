package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/pricing"
)

// TotalsResponse renders a breakdown with every amount fixed at two places.
type TotalsResponse struct {
	Currency       string `json:"currency"`
	Subtotal       string `json:"subtotal"`
	DiscountAmount string `json:"discount_amount"`
	ShippingFee    string `json:"shipping_fee"`
	TaxAmount      string `json:"tax_amount"`
	GrandTotal     string `json:"grand_total"`
	PolicyApplied  bool   `json:"policy_applied"`
}

// QuoteResponse is the API shape of a stored quote.
type QuoteResponse struct {
	ID        string                `json:"id"`
	CartID    string                `json:"cart_id"`
	Items     []pricing.LineItem    `json:"items"`
	Discount  *pricing.DiscountSpec `json:"discount,omitempty"`
	Shipping  *pricing.ShippingSpec `json:"shipping,omitempty"`
	Tax       *pricing.TaxSpec      `json:"tax,omitempty"`
	Totals    TotalsResponse        `json:"totals"`
	ItemCount int                   `json:"item_count"`
	CreatedAt time.Time             `json:"created_at"`
}

func newTotalsResponse(currency string, t pricing.OrderTotals, policyApplied bool) TotalsResponse {
	return TotalsResponse{
		Currency:       currency,
		Subtotal:       t.Subtotal.StringFixed(2),
		DiscountAmount: t.DiscountAmount.StringFixed(2),
		ShippingFee:    t.ShippingFee.StringFixed(2),
		TaxAmount:      t.TaxAmount.StringFixed(2),
		GrandTotal:     t.GrandTotal.StringFixed(2),
		PolicyApplied:  policyApplied,
	}
}

func newQuoteResponse(q *models.Quote) QuoteResponse {
	return QuoteResponse{
		ID:        q.ID,
		CartID:    q.CartID,
		Items:     q.Items,
		Discount:  q.Discount,
		Shipping:  q.Shipping,
		Tax:       q.Tax,
		Totals:    newTotalsResponse(q.Currency, q.Totals, q.PolicyApplied),
		ItemCount: q.ItemCount(),
		CreatedAt: q.CreatedAt,
	}
}

// ComputeTotals handles POST /api/v1/totals
func (h *Handlers) ComputeTotals(c *gin.Context) {
	var req models.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	calc, err := h.quoteService.Calculate(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, newTotalsResponse(calc.Currency, calc.Totals, calc.PolicyApplied))
}

// CreateQuote handles POST /api/v1/quotes
func (h *Handlers) CreateQuote(c *gin.Context) {
	var req models.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	quote, err := h.quoteService.CreateQuote(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newQuoteResponse(quote))
}

// GetQuote handles GET /api/v1/quotes/:id
func (h *Handlers) GetQuote(c *gin.Context) {
	quote, err := h.quoteService.GetQuote(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, newQuoteResponse(quote))
}

// ListCartQuotes handles GET /api/v1/carts/:cart_id/quotes
func (h *Handlers) ListCartQuotes(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "limit must be a non-negative integer",
				"field": "limit",
				"kind":  "invalid_request",
			})
			return
		}
		limit = n
	}

	quotes, err := h.quoteService.ListCartQuotes(c.Request.Context(), c.Param("cart_id"), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}

	resp := make([]QuoteResponse, 0, len(quotes))
	for _, q := range quotes {
		resp = append(resp, newQuoteResponse(q))
	}

	c.JSON(http.StatusOK, gin.H{
		"quotes": resp,
		"count":  len(resp),
	})
}
