package handlers

import (
	"github.com/shopspring/decimal"

	domain "github.com/areebabashir/intrnecommerceproj1/internal/domain"
	"github.com/areebabashir/intrnecommerceproj1/internal/platform/format"
	"github.com/areebabashir/intrnecommerceproj1/internal/services"
)

type productPayload struct {
	ID             domain.ProductID `json:"id"`
	Title          string           `json:"title"`
	Price          string           `json:"price"`
	FormattedPrice string           `json:"formattedPrice"`
	Description    string           `json:"description"`
	Category       string           `json:"category"`
	CategoryID     int              `json:"categoryId,omitempty"`
	Images         []string         `json:"images"`
	Rating         float64          `json:"rating"`
	ReviewCount    int              `json:"reviewCount"`
}

type productListPayload struct {
	Products []productPayload `json:"products"`
	Fallback bool             `json:"fallback"`
}

type collectionsPayload struct {
	Bestsellers   []productPayload `json:"bestsellers"`
	Outlet        []productPayload `json:"outlet"`
	NewCollection []productPayload `json:"newCollection"`
	Fallback      bool             `json:"fallback"`
}

type notificationPayload struct {
	Message   string `json:"message"`
	Level     string `json:"level"`
	ExpiresAt string `json:"expiresAt"`
}

type lineItemPayload struct {
	ID                 domain.ProductID `json:"id"`
	Title              string           `json:"title"`
	UnitPrice          string           `json:"unitPrice"`
	Quantity           int              `json:"quantity"`
	LineTotal          string           `json:"lineTotal"`
	FormattedUnitPrice string           `json:"formattedUnitPrice"`
	FormattedLineTotal string           `json:"formattedLineTotal"`
	Image              string           `json:"image,omitempty"`
	Category           string           `json:"category,omitempty"`
	AddedAt            string           `json:"addedAt,omitempty"`
}

type appliedCouponPayload struct {
	Code        string `json:"code"`
	Kind        string `json:"kind"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
	AppliedAt   string `json:"appliedAt"`
}

type totalsPayload struct {
	Subtotal  string `json:"subtotal"`
	Shipping  string `json:"shipping"`
	Discount  string `json:"discount"`
	Tax       string `json:"tax"`
	Total     string `json:"total"`
	ItemCount int    `json:"itemCount"`
}

type cartPayload struct {
	SessionID       string                `json:"sessionId"`
	Items           []lineItemPayload     `json:"items"`
	AppliedCoupon   *appliedCouponPayload `json:"appliedCoupon"`
	Totals          totalsPayload         `json:"totals"`
	FormattedTotals totalsPayload         `json:"formattedTotals"`
	Notification    *notificationPayload  `json:"notification"`
}

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}

type wishlistItemPayload struct {
	ID             domain.ProductID `json:"id"`
	Title          string           `json:"title"`
	Price          string           `json:"price"`
	FormattedPrice string           `json:"formattedPrice"`
	Image          string           `json:"image,omitempty"`
	Category       string           `json:"category,omitempty"`
	AddedAt        string           `json:"addedAt,omitempty"`
}

type wishlistPayload struct {
	Items        []wishlistItemPayload `json:"items"`
	Count        int                   `json:"count"`
	Notification *notificationPayload  `json:"notification"`
}

type wishlistResponse struct {
	Wishlist wishlistPayload `json:"wishlist"`
	Added    *bool           `json:"added,omitempty"`
}

func money(value decimal.Decimal) string {
	return value.StringFixed(2)
}

func buildProductPayload(p domain.Product, f format.Formatter) productPayload {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return productPayload{
		ID:             p.ID,
		Title:          p.Title,
		Price:          money(p.Price),
		FormattedPrice: f.Money(p.Price),
		Description:    p.Description,
		Category:       p.Category,
		CategoryID:     p.CategoryID,
		Images:         images,
		Rating:         p.Rating,
		ReviewCount:    p.ReviewCount,
	}
}

func buildProductPayloads(products []domain.Product, f format.Formatter) []productPayload {
	payloads := make([]productPayload, 0, len(products))
	for _, p := range products {
		payloads = append(payloads, buildProductPayload(p, f))
	}
	return payloads
}

func buildNotificationPayload(n *services.Notification) *notificationPayload {
	if n == nil {
		return nil
	}
	return &notificationPayload{
		Message:   n.Message,
		Level:     string(n.Level),
		ExpiresAt: formatTime(n.ExpiresAt),
	}
}

func buildTotalsPayload(t domain.CartTotals) totalsPayload {
	return totalsPayload{
		Subtotal:  money(t.Subtotal),
		Shipping:  money(t.Shipping),
		Discount:  money(t.Discount),
		Tax:       money(t.Tax),
		Total:     money(t.Total),
		ItemCount: t.ItemCount,
	}
}

func buildFormattedTotals(t domain.CartTotals, f format.Formatter) totalsPayload {
	return totalsPayload{
		Subtotal:  f.Money(t.Subtotal),
		Shipping:  f.Money(t.Shipping),
		Discount:  f.Money(t.Discount),
		Tax:       f.Money(t.Tax),
		Total:     f.Money(t.Total),
		ItemCount: t.ItemCount,
	}
}

func buildLineItems(items []domain.LineItem, f format.Formatter) []lineItemPayload {
	payloads := make([]lineItemPayload, 0, len(items))
	for _, item := range items {
		lineTotal := item.LineTotal()
		payloads = append(payloads, lineItemPayload{
			ID:                 item.ID,
			Title:              item.Title,
			UnitPrice:          money(item.UnitPrice),
			Quantity:           item.Quantity,
			LineTotal:          money(lineTotal),
			FormattedUnitPrice: f.Money(item.UnitPrice),
			FormattedLineTotal: f.Money(lineTotal),
			Image:              item.Image,
			Category:           item.Category,
			AddedAt:            formatTime(item.AddedAt),
		})
	}
	return payloads
}

func buildAppliedCoupon(applied *domain.AppliedCoupon) *appliedCouponPayload {
	if applied == nil {
		return nil
	}
	return &appliedCouponPayload{
		Code:        applied.Code,
		Kind:        string(applied.Kind),
		Amount:      applied.Amount.String(),
		Description: applied.Description,
		AppliedAt:   formatTime(applied.AppliedAt),
	}
}

func buildCartPayload(snapshot services.CartSnapshot, f format.Formatter) cartPayload {
	return cartPayload{
		SessionID:       snapshot.SessionID,
		Items:           buildLineItems(snapshot.Items, f),
		AppliedCoupon:   buildAppliedCoupon(snapshot.AppliedCoupon),
		Totals:          buildTotalsPayload(snapshot.Totals),
		FormattedTotals: buildFormattedTotals(snapshot.Totals, f),
		Notification:    buildNotificationPayload(snapshot.Notification),
	}
}

func buildWishlistPayload(snapshot services.WishlistSnapshot, f format.Formatter) wishlistPayload {
	items := make([]wishlistItemPayload, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		items = append(items, wishlistItemPayload{
			ID:             item.ID,
			Title:          item.Title,
			Price:          money(item.Price),
			FormattedPrice: f.Money(item.Price),
			Image:          item.Image,
			Category:       item.Category,
			AddedAt:        formatTime(item.AddedAt),
		})
	}
	return wishlistPayload{
		Items:        items,
		Count:        len(items),
		Notification: buildNotificationPayload(snapshot.Notification),
	}
}
