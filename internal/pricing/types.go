package pricing

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// DiscountKind selects how a DiscountSpec value is interpreted.
type DiscountKind string

const (
	DiscountFlat       DiscountKind = "flat"
	DiscountPercentage DiscountKind = "percentage"
)

// TaxBase selects the amount a tax rate is applied to.
type TaxBase string

const (
	TaxBaseSubtotal                 TaxBase = "subtotal"
	TaxBaseAfterDiscount            TaxBase = "subtotal_after_discount"
	TaxBaseAfterDiscountAndShipping TaxBase = "subtotal_after_discount_and_shipping"
)

// LineItem is one priced, quantified entry of an order.
type LineItem struct {
	SKU       string  `json:"sku,omitempty"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// DiscountSpec is a single flat or percentage discount. Percentage values are
// expressed in [0, 100].
type DiscountSpec struct {
	Kind  DiscountKind `json:"kind"`
	Value float64      `json:"value"`
}

// ShippingSpec is either a flat fee or a base fee waived at or above a
// threshold. When both BaseFee and FlatFee are set, BaseFee is charged.
type ShippingSpec struct {
	FlatFee   *float64 `json:"flat_fee,omitempty"`
	BaseFee   *float64 `json:"base_fee,omitempty"`
	FreeAbove *float64 `json:"free_above,omitempty"`
}

// TaxSpec is a single rate (a fraction in [0, 1]) applied to the base picked
// by AppliesTo. An empty AppliesTo means TaxBaseAfterDiscount.
type TaxSpec struct {
	Rate      float64 `json:"rate"`
	AppliesTo TaxBase `json:"applies_to,omitempty"`
}

// OrderTotals is the derived monetary breakdown of an order. Every field is
// rounded to two decimal places exactly once.
type OrderTotals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	ShippingFee    decimal.Decimal `json:"shipping_fee"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	GrandTotal     decimal.Decimal `json:"grand_total"`
}

// MarshalJSON renders every amount as a string with exactly two decimal places.
func (t OrderTotals) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Subtotal       string `json:"subtotal"`
		DiscountAmount string `json:"discount_amount"`
		ShippingFee    string `json:"shipping_fee"`
		TaxAmount      string `json:"tax_amount"`
		GrandTotal     string `json:"grand_total"`
	}{
		Subtotal:       t.Subtotal.StringFixed(currencyPlaces),
		DiscountAmount: t.DiscountAmount.StringFixed(currencyPlaces),
		ShippingFee:    t.ShippingFee.StringFixed(currencyPlaces),
		TaxAmount:      t.TaxAmount.StringFixed(currencyPlaces),
		GrandTotal:     t.GrandTotal.StringFixed(currencyPlaces),
	})
}

// PostDiscount returns the subtotal net of the discount.
func (t OrderTotals) PostDiscount() decimal.Decimal {
	return t.Subtotal.Sub(t.DiscountAmount)
}

// Equal reports whether both breakdowns hold the same amounts.
func (t OrderTotals) Equal(other OrderTotals) bool {
	return t.Subtotal.Equal(other.Subtotal) &&
		t.DiscountAmount.Equal(other.DiscountAmount) &&
		t.ShippingFee.Equal(other.ShippingFee) &&
		t.TaxAmount.Equal(other.TaxAmount) &&
		t.GrandTotal.Equal(other.GrandTotal)
}

// Float64 returns a pointer to v, for the optional ShippingSpec fields.
func Float64(v float64) *float64 {
	return &v
}
