package services

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	domain "github.com/areebabashir/intrnecommerceproj1/internal/domain"
)

func TestCouponCatalogResolveIsCaseInsensitive(t *testing.T) {
	catalog := DefaultCouponCatalog()

	for _, code := range []string{"SAVE10", "save10", "  Save10 "} {
		coupon, err := catalog.Resolve(code)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", code, err)
		}
		if coupon.Code != "SAVE10" || coupon.Kind != domain.CouponKindPercentage {
			t.Fatalf("unexpected coupon %+v", coupon)
		}
	}

	if _, err := catalog.Resolve("BOGUS"); !errors.Is(err, ErrCouponNotFound) {
		t.Fatalf("expected ErrCouponNotFound, got %v", err)
	}
}

func TestCouponCatalogListSortedByCode(t *testing.T) {
	coupons := DefaultCouponCatalog().List()
	if len(coupons) != 3 {
		t.Fatalf("expected 3 coupons, got %d", len(coupons))
	}
	want := []string{"FLAT50", "SAVE10", "WELCOME"}
	for i, coupon := range coupons {
		if coupon.Code != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], coupon.Code)
		}
	}
}

func TestNewCouponCatalogRejectsInvalidDefinitions(t *testing.T) {
	cases := map[string][]domain.Coupon{
		"duplicate": {
			{Code: "A", Kind: domain.CouponKindFlat, Amount: dec(t, "5")},
			{Code: "a", Kind: domain.CouponKindFlat, Amount: dec(t, "5")},
		},
		"percentage above one": {
			{Code: "BIG", Kind: domain.CouponKindPercentage, Amount: dec(t, "1.5")},
		},
		"zero percentage": {
			{Code: "ZERO", Kind: domain.CouponKindPercentage, Amount: dec(t, "0")},
		},
		"unknown kind": {
			{Code: "BOGO", Kind: "bogo", Amount: dec(t, "1")},
		},
		"negative minimum": {
			{Code: "NEG", Kind: domain.CouponKindFlat, Amount: dec(t, "1"), MinOrderSubtotal: dec(t, "-1")},
		},
	}
	for name, coupons := range cases {
		if _, err := NewCouponCatalog(coupons); !errors.Is(err, ErrCouponCatalogInvalid) {
			t.Fatalf("%s: expected ErrCouponCatalogInvalid, got %v", name, err)
		}
	}
}

func TestLoadCouponCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coupons.yaml")
	content := `coupons:
  - code: spring20
    kind: percentage
    amount: 0.20
    min_order: 80
    description: 20% off spring collection
  - code: SHIPFREE
    kind: flat
    amount: "15"
    description: Shipping on us
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	catalog, err := LoadCouponCatalogFile(path)
	if err != nil {
		t.Fatalf("LoadCouponCatalogFile: %v", err)
	}
	coupon, err := catalog.Resolve("SPRING20")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !coupon.Amount.Equal(dec(t, "0.2")) || !coupon.MinOrderSubtotal.Equal(dec(t, "80")) {
		t.Fatalf("unexpected coupon %+v", coupon)
	}
	flat, err := catalog.Resolve("shipfree")
	if err != nil {
		t.Fatalf("Resolve flat: %v", err)
	}
	if !flat.MinOrderSubtotal.IsZero() {
		t.Fatalf("expected zero minimum, got %s", flat.MinOrderSubtotal)
	}
}

func TestParseCouponCatalogRejectsBadAmount(t *testing.T) {
	_, err := ParseCouponCatalog([]byte("coupons:\n  - code: X\n    kind: flat\n    amount: lots\n"))
	if !errors.Is(err, ErrCouponCatalogInvalid) {
		t.Fatalf("expected ErrCouponCatalogInvalid, got %v", err)
	}
	if _, err := ParseCouponCatalog([]byte("coupons: []\n")); !errors.Is(err, ErrCouponCatalogInvalid) {
		t.Fatalf("expected error for empty catalog, got %v", err)
	}
}
