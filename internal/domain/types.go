package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductID identifies a catalog product. Upstream ids are integers, legacy fallback ids may be strings.
type ProductID string

// String returns the raw identifier.
func (id ProductID) String() string {
	return string(id)
}

// IsZero reports whether the identifier is empty.
func (id ProductID) IsZero() bool {
	return strings.TrimSpace(string(id)) == ""
}

// Numeric reports whether the identifier is a canonical base-10 integer.
func (id ProductID) Numeric() bool {
	value, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return false
	}
	return strconv.FormatInt(value, 10) == string(id)
}

// MarshalJSON keeps numeric ids as JSON numbers so persisted blobs match the browser format.
func (id ProductID) MarshalJSON() ([]byte, error) {
	if id.Numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts both number and string encodings.
func (id *ProductID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}
	if trimmed[0] == '"' {
		var raw string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		*id = ProductID(strings.TrimSpace(raw))
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(trimmed, &number); err != nil {
		return fmt.Errorf("product id: %w", err)
	}
	*id = ProductID(number.String())
	return nil
}

// Product is a normalized catalog entry ready for display and for adding to a cart or wishlist.
type Product struct {
	ID          ProductID
	Title       string
	Price       decimal.Decimal
	Description string
	Category    string
	CategoryID  int
	Images      []string
	Rating      float64
	ReviewCount int
}

// PrimaryImage returns the first product image or an empty string.
func (p Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// LineItem is a single cart row keyed by product id.
type LineItem struct {
	ID        ProductID
	Title     string
	UnitPrice decimal.Decimal
	Quantity  int
	Image     string
	Category  string
	AddedAt   time.Time
}

// LineTotal returns unit price multiplied by quantity.
func (i LineItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CouponKind identifies how a coupon discount is computed.
type CouponKind string

const (
	// CouponKindPercentage discounts a fraction of the subtotal.
	CouponKindPercentage CouponKind = "percentage"
	// CouponKindFlat discounts a fixed amount capped at the subtotal.
	CouponKindFlat CouponKind = "flat"
)

// Coupon is a static promotional code definition.
type Coupon struct {
	Code             string
	Kind             CouponKind
	Amount           decimal.Decimal
	MinOrderSubtotal decimal.Decimal
	Description      string
}

// AppliedCoupon records the coupon active on a cart.
type AppliedCoupon struct {
	Coupon
	AppliedAt time.Time
}

// CartState is the full persisted state of a cart.
type CartState struct {
	Items         []LineItem
	AppliedCoupon *AppliedCoupon
}

// Clone returns a deep copy so callers cannot mutate store-owned slices.
func (s CartState) Clone() CartState {
	clone := CartState{}
	if len(s.Items) > 0 {
		clone.Items = make([]LineItem, len(s.Items))
		copy(clone.Items, s.Items)
	}
	if s.AppliedCoupon != nil {
		applied := *s.AppliedCoupon
		clone.AppliedCoupon = &applied
	}
	return clone
}

// WishlistItem is a saved product.
type WishlistItem struct {
	ID       ProductID
	Title    string
	Price    decimal.Decimal
	Image    string
	Category string
	AddedAt  time.Time
}
