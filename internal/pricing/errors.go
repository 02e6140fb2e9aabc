package pricing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLineItem is returned for a negative or non-finite unit price or a
	// non-positive quantity.
	ErrInvalidLineItem = errors.New("invalid line item")
	// ErrInvalidDiscountSpec is returned for an unknown kind, a negative value or a
	// percentage above 100.
	ErrInvalidDiscountSpec = errors.New("invalid discount spec")
	// ErrInvalidShippingSpec is returned for a negative or non-finite fee or threshold.
	ErrInvalidShippingSpec = errors.New("invalid shipping spec")
	// ErrInvalidTaxSpec is returned for a rate outside [0, 1] or an unknown tax base.
	ErrInvalidTaxSpec = errors.New("invalid tax spec")
)

// ValidationError identifies the offending input field of a rejected calculation.
type ValidationError struct {
	Kind    error
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s: %s", e.Kind, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// KindName returns a stable snake_case name for the error kind, suitable for
// API payloads and metric labels.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrInvalidLineItem):
		return "invalid_line_item"
	case errors.Is(err, ErrInvalidDiscountSpec):
		return "invalid_discount_spec"
	case errors.Is(err, ErrInvalidShippingSpec):
		return "invalid_shipping_spec"
	case errors.Is(err, ErrInvalidTaxSpec):
		return "invalid_tax_spec"
	default:
		return "unknown"
	}
}

func invalid(kind error, field, format string, args ...any) error {
	return &ValidationError{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}
