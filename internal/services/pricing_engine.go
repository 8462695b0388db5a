package services

import (
	"errors"

	"github.com/shopspring/decimal"

	domain "github.com/areebabashir/intrnecommerceproj1/internal/domain"
)

var errPricingPolicyInvalid = errors.New("pricing engine: invalid policy")

// PricingPolicy holds the storefront-wide pricing constants.
type PricingPolicy struct {
	// FreeShippingThreshold is exclusive: subtotals strictly above it ship free.
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
	TaxRate               decimal.Decimal
}

// DefaultPricingPolicy returns the storefront defaults: free shipping above 100, fee 15, tax 8%.
func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		FreeShippingThreshold: decimal.NewFromInt(100),
		ShippingFee:           decimal.NewFromInt(15),
		TaxRate:               decimal.RequireFromString("0.08"),
	}
}

// Validate rejects negative constants.
func (p PricingPolicy) Validate() error {
	switch {
	case p.FreeShippingThreshold.IsNegative():
		return errPricingPolicyInvalid
	case p.ShippingFee.IsNegative():
		return errPricingPolicyInvalid
	case p.TaxRate.IsNegative(), p.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return errPricingPolicyInvalid
	}
	return nil
}

// PricingEngine computes cart totals. All functions are pure and never fail; callers must not pass
// negative prices or quantities.
type PricingEngine struct {
	policy PricingPolicy
}

// NewPricingEngine constructs an engine for the provided policy.
func NewPricingEngine(policy PricingPolicy) (*PricingEngine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &PricingEngine{policy: policy}, nil
}

// Policy exposes the configured constants.
func (e *PricingEngine) Policy() PricingPolicy {
	return e.policy
}

// Subtotal sums unit price times quantity across items.
func (e *PricingEngine) Subtotal(items []domain.LineItem) decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	return subtotal
}

// ShippingCost returns zero when the subtotal is strictly above the threshold, otherwise the flat fee.
// An empty cart reports the fee.
func (e *PricingEngine) ShippingCost(items []domain.LineItem) decimal.Decimal {
	return e.shippingFor(e.Subtotal(items))
}

// Discount returns the coupon discount against the current subtotal.
func (e *PricingEngine) Discount(items []domain.LineItem, coupon *domain.AppliedCoupon) decimal.Decimal {
	return discountFor(e.Subtotal(items), coupon)
}

// Tax applies the tax rate to the discounted subtotal. Shipping is not taxed.
func (e *PricingEngine) Tax(items []domain.LineItem, coupon *domain.AppliedCoupon) decimal.Decimal {
	subtotal := e.Subtotal(items)
	return e.taxFor(subtotal, discountFor(subtotal, coupon))
}

// Total returns subtotal + shipping - discount + tax.
func (e *PricingEngine) Total(items []domain.LineItem, coupon *domain.AppliedCoupon) decimal.Decimal {
	return e.Price(items, coupon).Total
}

// Price computes every total in a single pass.
func (e *PricingEngine) Price(items []domain.LineItem, coupon *domain.AppliedCoupon) domain.CartTotals {
	subtotal := decimal.Zero
	count := 0
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
		count += item.Quantity
	}
	shipping := e.shippingFor(subtotal)
	discount := discountFor(subtotal, coupon)
	tax := e.taxFor(subtotal, discount)

	return domain.CartTotals{
		Subtotal:  subtotal,
		Shipping:  shipping,
		Discount:  discount,
		Tax:       tax,
		Total:     subtotal.Add(shipping).Sub(discount).Add(tax),
		ItemCount: count,
	}
}

func (e *PricingEngine) shippingFor(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(e.policy.FreeShippingThreshold) {
		return decimal.Zero
	}
	return e.policy.ShippingFee
}

func (e *PricingEngine) taxFor(subtotal, discount decimal.Decimal) decimal.Decimal {
	return subtotal.Sub(discount).Mul(e.policy.TaxRate)
}

func discountFor(subtotal decimal.Decimal, coupon *domain.AppliedCoupon) decimal.Decimal {
	if coupon == nil {
		return decimal.Zero
	}
	switch coupon.Kind {
	case domain.CouponKindPercentage:
		return subtotal.Mul(coupon.Amount)
	case domain.CouponKindFlat:
		return decimal.Min(coupon.Amount, subtotal)
	default:
		return decimal.Zero
	}
}
