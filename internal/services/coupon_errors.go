package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrCouponNotFound indicates the code is not in the catalog.
	ErrCouponNotFound = errors.New("coupon catalog: coupon not found")
	// ErrInsufficientOrderValue indicates the cart subtotal is below the coupon minimum.
	ErrInsufficientOrderValue = errors.New("cart store: insufficient order value")
	// ErrCouponCatalogInvalid signals a malformed coupon definition at load time.
	ErrCouponCatalogInvalid = errors.New("coupon catalog: invalid definition")
)

// InsufficientOrderValueError carries the threshold that was not met.
type InsufficientOrderValueError struct {
	Code     string
	Required decimal.Decimal
	Subtotal decimal.Decimal
}

func (e *InsufficientOrderValueError) Error() string {
	return fmt.Sprintf("coupon %s requires a subtotal of at least %s (have %s)", e.Code, e.Required.StringFixed(2), e.Subtotal.StringFixed(2))
}

// Unwrap exposes ErrInsufficientOrderValue to errors.Is.
func (e *InsufficientOrderValueError) Unwrap() error {
	return ErrInsufficientOrderValue
}
