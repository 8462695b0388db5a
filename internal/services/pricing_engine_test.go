package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/areebabashir/intrnecommerceproj1/internal/domain"
)

func dec(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("decimal %q: %v", value, err)
	}
	return d
}

func line(id string, price string, qty int) domain.LineItem {
	return domain.LineItem{
		ID:        domain.ProductID(id),
		Title:     "Item " + id,
		UnitPrice: decimal.RequireFromString(price),
		Quantity:  qty,
		AddedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func applied(t *testing.T, code string) *domain.AppliedCoupon {
	t.Helper()
	coupon, err := DefaultCouponCatalog().Resolve(code)
	if err != nil {
		t.Fatalf("resolve %s: %v", code, err)
	}
	return &domain.AppliedCoupon{Coupon: coupon}
}

func newTestPricingEngine(t *testing.T) *PricingEngine {
	t.Helper()
	engine, err := NewPricingEngine(DefaultPricingPolicy())
	if err != nil {
		t.Fatalf("NewPricingEngine: %v", err)
	}
	return engine
}

func assertDecimal(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s: expected %s, got %s", label, want, got.String())
	}
}

func TestPricingEngine_SubtotalIsExactSum(t *testing.T) {
	engine := newTestPricingEngine(t)
	items := []domain.LineItem{line("1", "0.10", 3), line("2", "0.20", 1), line("3", "19.99", 2)}

	assertDecimal(t, "subtotal", engine.Subtotal(items), "40.48")
	assertDecimal(t, "empty subtotal", engine.Subtotal(nil), "0")
}

func TestPricingEngine_ShippingThresholdIsStrict(t *testing.T) {
	engine := newTestPricingEngine(t)

	cases := []struct {
		subtotal string
		want     string
	}{
		{subtotal: "0", want: "15"},
		{subtotal: "99.99", want: "15"},
		{subtotal: "100.00", want: "15"},
		{subtotal: "100.01", want: "0"},
		{subtotal: "450", want: "0"},
	}
	for _, tc := range cases {
		items := []domain.LineItem{line("1", tc.subtotal, 1)}
		assertDecimal(t, "shipping at "+tc.subtotal, engine.ShippingCost(items), tc.want)
	}
	assertDecimal(t, "empty cart shipping", engine.ShippingCost(nil), "15")
}

func TestPricingEngine_Discount(t *testing.T) {
	engine := newTestPricingEngine(t)
	items := []domain.LineItem{line("1", "60", 1)}

	assertDecimal(t, "no coupon", engine.Discount(items, nil), "0")
	assertDecimal(t, "SAVE10", engine.Discount(items, applied(t, "SAVE10")), "6")
	assertDecimal(t, "WELCOME", engine.Discount(items, applied(t, "WELCOME")), "9")

	small := []domain.LineItem{line("1", "30", 1)}
	assertDecimal(t, "flat capped at subtotal", engine.Discount(small, applied(t, "FLAT50")), "30")
}

func TestPricingEngine_TaxExcludesShipping(t *testing.T) {
	engine := newTestPricingEngine(t)
	items := []domain.LineItem{line("1", "50", 1)}

	assertDecimal(t, "tax", engine.Tax(items, nil), "4")
	assertDecimal(t, "tax after discount", engine.Tax(items, applied(t, "SAVE10")), "3.6")
}

func TestPricingEngine_EndToEndScenario(t *testing.T) {
	engine := newTestPricingEngine(t)
	items := []domain.LineItem{line("1", "30", 2), line("2", "25", 1)}

	totals := engine.Price(items, applied(t, "WELCOME"))

	assertDecimal(t, "subtotal", totals.Subtotal, "85")
	assertDecimal(t, "shipping", totals.Shipping, "15")
	assertDecimal(t, "discount", totals.Discount, "12.75")
	assertDecimal(t, "tax", totals.Tax, "5.78")
	assertDecimal(t, "total", totals.Total, "93.03")
	if totals.ItemCount != 3 {
		t.Fatalf("expected item count 3, got %d", totals.ItemCount)
	}
	assertDecimal(t, "Total()", engine.Total(items, applied(t, "WELCOME")), "93.03")
}

func TestPricingEngine_TotalIdentityHolds(t *testing.T) {
	engine := newTestPricingEngine(t)
	coupons := []*domain.AppliedCoupon{nil, applied(t, "SAVE10"), applied(t, "FLAT50"), applied(t, "WELCOME")}
	baskets := [][]domain.LineItem{
		nil,
		{line("1", "0.01", 1)},
		{line("1", "33.33", 3)},
		{line("1", "100", 1), line("2", "0.01", 1)},
		{line("1", "1999.99", 7), line("2", "12.345", 11)},
	}

	for _, basket := range baskets {
		for _, coupon := range coupons {
			totals := engine.Price(basket, coupon)
			want := totals.Subtotal.Add(totals.Shipping).Sub(totals.Discount).Add(totals.Tax)
			if !totals.Total.Equal(want) {
				t.Fatalf("identity broken: total %s, expected %s", totals.Total, want)
			}
			if totals.Discount.GreaterThan(totals.Subtotal) {
				t.Fatalf("discount %s exceeds subtotal %s", totals.Discount, totals.Subtotal)
			}
		}
	}
}

func TestNewPricingEngineRejectsInvalidPolicy(t *testing.T) {
	policy := DefaultPricingPolicy()
	policy.TaxRate = dec(t, "-0.01")
	if _, err := NewPricingEngine(policy); err == nil {
		t.Fatalf("expected error for negative tax rate")
	}

	policy = DefaultPricingPolicy()
	policy.ShippingFee = dec(t, "-1")
	if _, err := NewPricingEngine(policy); err == nil {
		t.Fatalf("expected error for negative shipping fee")
	}
}

func TestPricingEngine_CustomPolicy(t *testing.T) {
	engine, err := NewPricingEngine(PricingPolicy{
		FreeShippingThreshold: dec(t, "50"),
		ShippingFee:           dec(t, "4.95"),
		TaxRate:               dec(t, "0.1"),
	})
	if err != nil {
		t.Fatalf("NewPricingEngine: %v", err)
	}
	totals := engine.Price([]domain.LineItem{line("1", "40", 1)}, nil)
	assertDecimal(t, "shipping", totals.Shipping, "4.95")
	assertDecimal(t, "tax", totals.Tax, "4")
	assertDecimal(t, "total", totals.Total, "48.95")
}
