package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/areebabashir/intrnecommerceproj1/internal/domain"
	"github.com/areebabashir/intrnecommerceproj1/internal/repositories"
)

// CartBlobVersion is the current persisted cart format. Version 0 is the legacy bare item array.
const CartBlobVersion = 1

type cartBlob struct {
	Version       int                  `json:"version"`
	Items         []lineItemRecord     `json:"items"`
	AppliedCoupon *appliedCouponRecord `json:"appliedCoupon,omitempty"`
}

type appliedCouponRecord struct {
	Code      string    `json:"code"`
	AppliedAt time.Time `json:"appliedAt"`
}

type lineItemRecord struct {
	ID       domain.ProductID `json:"id"`
	Title    string           `json:"title"`
	Price    json.Number      `json:"price"`
	Quantity int              `json:"quantity"`
	Image    string           `json:"image,omitempty"`
	Images   []string         `json:"images,omitempty"`
	Category categoryName     `json:"category,omitempty"`
	AddedAt  *time.Time       `json:"addedAt,omitempty"`
}

// categoryName decodes either a plain string or an upstream category object.
type categoryName string

func (c *categoryName) UnmarshalJSON(data []byte) error {
	var category repositories.ProductCategory
	if err := category.UnmarshalJSON(data); err != nil {
		return err
	}
	*c = categoryName(category.Name)
	return nil
}

type persistedCart struct {
	cartBlob
}

func (p *persistedCart) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []lineItemRecord
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		p.cartBlob = cartBlob{Version: 0, Items: items}
		return nil
	}
	var blob cartBlob
	if err := json.Unmarshal(trimmed, &blob); err != nil {
		return err
	}
	if blob.Version > CartBlobVersion {
		return fmt.Errorf("cart blob: unsupported version %d", blob.Version)
	}
	p.cartBlob = blob
	return nil
}

func encodeCartState(state domain.CartState) cartBlob {
	blob := cartBlob{
		Version: CartBlobVersion,
		Items:   make([]lineItemRecord, 0, len(state.Items)),
	}
	for _, item := range state.Items {
		addedAt := item.AddedAt
		blob.Items = append(blob.Items, lineItemRecord{
			ID:       item.ID,
			Title:    item.Title,
			Price:    json.Number(item.UnitPrice.String()),
			Quantity: item.Quantity,
			Image:    item.Image,
			Category: categoryName(item.Category),
			AddedAt:  &addedAt,
		})
	}
	if state.AppliedCoupon != nil {
		blob.AppliedCoupon = &appliedCouponRecord{
			Code:      state.AppliedCoupon.Code,
			AppliedAt: state.AppliedCoupon.AppliedAt,
		}
	}
	return blob
}

// decodeCartState rebuilds state from a persisted blob. Invalid rows are dropped, duplicate ids are
// merged and coupon codes missing from the catalog are discarded.
func decodeCartState(blob cartBlob, coupons CouponResolver, now time.Time) (domain.CartState, []string) {
	var (
		state    domain.CartState
		dropped  []string
		position = make(map[domain.ProductID]int, len(blob.Items))
	)
	for i, record := range blob.Items {
		item, err := record.lineItem(now)
		if err != nil {
			dropped = append(dropped, fmt.Sprintf("items[%d]: %v", i, err))
			continue
		}
		if idx, ok := position[item.ID]; ok {
			state.Items[idx].Quantity += item.Quantity
			continue
		}
		position[item.ID] = len(state.Items)
		state.Items = append(state.Items, item)
	}

	if blob.AppliedCoupon != nil && coupons != nil {
		coupon, err := coupons.Resolve(blob.AppliedCoupon.Code)
		if err != nil {
			dropped = append(dropped, "appliedCoupon: "+blob.AppliedCoupon.Code+" no longer offered")
		} else {
			appliedAt := blob.AppliedCoupon.AppliedAt
			if appliedAt.IsZero() {
				appliedAt = now
			}
			state.AppliedCoupon = &domain.AppliedCoupon{Coupon: coupon, AppliedAt: appliedAt.UTC()}
		}
	}
	return state, dropped
}

func (r lineItemRecord) lineItem(now time.Time) (domain.LineItem, error) {
	if r.ID.IsZero() {
		return domain.LineItem{}, fmt.Errorf("missing id")
	}
	if r.Quantity < 1 {
		return domain.LineItem{}, fmt.Errorf("quantity %d", r.Quantity)
	}
	price := decimal.Zero
	if raw := strings.TrimSpace(r.Price.String()); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return domain.LineItem{}, fmt.Errorf("price %q", raw)
		}
		price = parsed
	}
	if price.IsNegative() {
		return domain.LineItem{}, fmt.Errorf("negative price")
	}
	image := r.Image
	if image == "" && len(r.Images) > 0 {
		image = r.Images[0]
	}
	addedAt := now
	if r.AddedAt != nil && !r.AddedAt.IsZero() {
		addedAt = r.AddedAt.UTC()
	}
	return domain.LineItem{
		ID:        r.ID,
		Title:     r.Title,
		UnitPrice: price,
		Quantity:  r.Quantity,
		Image:     image,
		Category:  string(r.Category),
		AddedAt:   addedAt,
	}, nil
}

// ParseCartBlob decodes a persisted cart in either format. It is used by tooling that reads
// stored carts outside a running store.
func ParseCartBlob(raw []byte, coupons CouponResolver, now time.Time) (domain.CartState, []string, error) {
	var blob persistedCart
	if err := json.Unmarshal(raw, &blob); err != nil {
		return domain.CartState{}, nil, fmt.Errorf("cart blob: %w", err)
	}
	state, dropped := decodeCartState(blob.cartBlob, coupons, now.UTC())
	return state, dropped, nil
}
