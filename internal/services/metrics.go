package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const metricNamespace = "github.com/areebabashir/intrnecommerceproj1/internal/services"

// StoreMetrics records cart and wishlist activity. The zero value records nothing.
type StoreMetrics struct {
	mutations        metric.Int64Counter
	mutationsEnabled bool
	coupons          metric.Int64Counter
	couponsEnabled   bool
}

// NewStoreMetrics registers counters on meter, falling back to the global provider.
func NewStoreMetrics(meter metric.Meter) *StoreMetrics {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(metricNamespace)
	}
	mutations, mutErr := meter.Int64Counter(
		"storefront.store.mutations",
		metric.WithDescription("Count of cart and wishlist mutations by kind"),
	)
	coupons, couponErr := meter.Int64Counter(
		"storefront.cart.coupon_attempts",
		metric.WithDescription("Coupon apply attempts by outcome"),
	)
	return &StoreMetrics{
		mutations:        mutations,
		mutationsEnabled: mutErr == nil,
		coupons:          coupons,
		couponsEnabled:   couponErr == nil,
	}
}

func (m *StoreMetrics) recordMutation(ctx context.Context, store, kind string) {
	if m == nil || !m.mutationsEnabled {
		return
	}
	m.mutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("store", store),
		attribute.String("kind", kind),
	))
}

func (m *StoreMetrics) recordCoupon(ctx context.Context, code, outcome string) {
	if m == nil || !m.couponsEnabled {
		return
	}
	m.coupons.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", code),
		attribute.String("outcome", outcome),
	))
}
