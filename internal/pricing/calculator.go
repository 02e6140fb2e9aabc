// Package pricing aggregates order line items into a monetary breakdown.
//
// All arithmetic is exact decimal arithmetic. Inputs arrive as float64 and are
// converted once using their shortest decimal representation, so a unit price
// of 6.665 is treated as exactly 6.665. Each derived field is rounded to two
// places, half away from zero, a single time.
package pricing

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const currencyPlaces = 2

// ComputeTotals validates its inputs and returns the order breakdown. A nil
// spec has no effect. Invalid input yields a *ValidationError and no totals.
// It is safe for concurrent use.
func ComputeTotals(items []LineItem, discount *DiscountSpec, shipping *ShippingSpec, tax *TaxSpec) (OrderTotals, error) {
	if err := validateItems(items); err != nil {
		return OrderTotals{}, err
	}
	if err := validateDiscount(discount); err != nil {
		return OrderTotals{}, err
	}
	if err := validateShipping(shipping); err != nil {
		return OrderTotals{}, err
	}
	if err := validateTax(tax); err != nil {
		return OrderTotals{}, err
	}

	// No tax on nothing and no shipping either way.
	if len(items) == 0 {
		return zeroTotals(), nil
	}

	lines := decimal.Zero
	for _, item := range items {
		lines = lines.Add(decimal.NewFromFloat(item.UnitPrice).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	subtotal := round2(lines)

	discountAmount := discountFor(subtotal, discount)
	postDiscount := subtotal.Sub(discountAmount)
	shippingFee := shippingFor(postDiscount, shipping)
	taxAmount := taxFor(subtotal, postDiscount, shippingFee, tax)

	return OrderTotals{
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		ShippingFee:    shippingFee,
		TaxAmount:      taxAmount,
		GrandTotal:     round2(postDiscount.Add(shippingFee).Add(taxAmount)),
	}, nil
}

func discountFor(subtotal decimal.Decimal, spec *DiscountSpec) decimal.Decimal {
	if spec == nil {
		return round2(decimal.Zero)
	}

	value := decimal.NewFromFloat(spec.Value)
	var amount decimal.Decimal
	switch spec.Kind {
	case DiscountPercentage:
		amount = subtotal.Mul(value).Shift(-2)
	default:
		amount = value
	}

	if amount.GreaterThan(subtotal) {
		amount = subtotal
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return round2(amount)
}

func shippingFor(postDiscount decimal.Decimal, spec *ShippingSpec) decimal.Decimal {
	if spec == nil {
		return round2(decimal.Zero)
	}
	if spec.FreeAbove != nil && postDiscount.GreaterThanOrEqual(decimal.NewFromFloat(*spec.FreeAbove)) {
		return round2(decimal.Zero)
	}

	switch {
	case spec.BaseFee != nil:
		return round2(decimal.NewFromFloat(*spec.BaseFee))
	case spec.FlatFee != nil:
		return round2(decimal.NewFromFloat(*spec.FlatFee))
	default:
		return round2(decimal.Zero)
	}
}

func taxFor(subtotal, postDiscount, shippingFee decimal.Decimal, spec *TaxSpec) decimal.Decimal {
	if spec == nil {
		return round2(decimal.Zero)
	}

	var base decimal.Decimal
	switch spec.AppliesTo {
	case TaxBaseSubtotal:
		base = subtotal
	case TaxBaseAfterDiscountAndShipping:
		base = postDiscount.Add(shippingFee)
	default:
		base = postDiscount
	}
	return round2(base.Mul(decimal.NewFromFloat(spec.Rate)))
}

func validateItems(items []LineItem) error {
	for i, item := range items {
		field := fmt.Sprintf("items[%d]", i)
		if item.SKU != "" {
			field = fmt.Sprintf("items[%d](%s)", i, item.SKU)
		}
		if !isFinite(item.UnitPrice) {
			return invalid(ErrInvalidLineItem, field+".unit_price", "unit price must be finite")
		}
		if item.UnitPrice < 0 {
			return invalid(ErrInvalidLineItem, field+".unit_price", "unit price cannot be negative, got %v", item.UnitPrice)
		}
		if item.Quantity <= 0 {
			return invalid(ErrInvalidLineItem, field+".quantity", "quantity must be a positive integer, got %d", item.Quantity)
		}
	}
	return nil
}

func validateDiscount(spec *DiscountSpec) error {
	if spec == nil {
		return nil
	}
	if !isFinite(spec.Value) {
		return invalid(ErrInvalidDiscountSpec, "discount.value", "value must be finite")
	}
	switch spec.Kind {
	case DiscountFlat:
		if spec.Value < 0 {
			return invalid(ErrInvalidDiscountSpec, "discount.value", "flat discount cannot be negative, got %v", spec.Value)
		}
	case DiscountPercentage:
		if spec.Value < 0 || spec.Value > 100 {
			return invalid(ErrInvalidDiscountSpec, "discount.value", "percentage must be within [0, 100], got %v", spec.Value)
		}
	default:
		return invalid(ErrInvalidDiscountSpec, "discount.kind", "unknown discount kind %q", spec.Kind)
	}
	return nil
}

func validateShipping(spec *ShippingSpec) error {
	if spec == nil {
		return nil
	}
	fields := []struct {
		name  string
		value *float64
	}{
		{"shipping.flat_fee", spec.FlatFee},
		{"shipping.base_fee", spec.BaseFee},
		{"shipping.free_above", spec.FreeAbove},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		if !isFinite(*f.value) {
			return invalid(ErrInvalidShippingSpec, f.name, "amount must be finite")
		}
		if *f.value < 0 {
			return invalid(ErrInvalidShippingSpec, f.name, "amount cannot be negative, got %v", *f.value)
		}
	}
	return nil
}

func validateTax(spec *TaxSpec) error {
	if spec == nil {
		return nil
	}
	if !isFinite(spec.Rate) || spec.Rate < 0 || spec.Rate > 1 {
		return invalid(ErrInvalidTaxSpec, "tax.rate", "rate must be a fraction within [0, 1], got %v", spec.Rate)
	}
	switch spec.AppliesTo {
	case "", TaxBaseSubtotal, TaxBaseAfterDiscount, TaxBaseAfterDiscountAndShipping:
		return nil
	default:
		return invalid(ErrInvalidTaxSpec, "tax.applies_to", "unknown tax base %q", spec.AppliesTo)
	}
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(currencyPlaces)
}

func zeroTotals() OrderTotals {
	zero := round2(decimal.Zero)
	return OrderTotals{
		Subtotal:       zero,
		DiscountAmount: zero,
		ShippingFee:    zero,
		TaxAmount:      zero,
		GrandTotal:     zero,
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
