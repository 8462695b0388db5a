package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/areebabashir/intrnecommerceproj1/internal/platform/format"
	"github.com/areebabashir/intrnecommerceproj1/internal/platform/httpx"
	"github.com/areebabashir/intrnecommerceproj1/internal/services"
)

// CouponHandlers lists the active coupon catalog.
type CouponHandlers struct {
	coupons services.CouponLister
}

// NewCouponHandlers constructs coupon handlers.
func NewCouponHandlers(coupons services.CouponLister) *CouponHandlers {
	return &CouponHandlers{coupons: coupons}
}

// Routes wires the /coupons endpoints onto the provided router.
func (h *CouponHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listCoupons)
}

type couponPayload struct {
	Code                      string `json:"code"`
	Kind                      string `json:"kind"`
	Amount                    string `json:"amount"`
	MinOrderSubtotal          string `json:"minOrderSubtotal"`
	FormattedMinOrderSubtotal string `json:"formattedMinOrderSubtotal"`
	Description               string `json:"description"`
}

func (h *CouponHandlers) listCoupons(w http.ResponseWriter, r *http.Request) {
	if h.coupons == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("coupons_unavailable", "coupon catalog is unavailable", http.StatusServiceUnavailable))
		return
	}
	f := format.NewFormatter(r.Header.Get("Accept-Language"))
	coupons := h.coupons.List()
	payload := make([]couponPayload, 0, len(coupons))
	for _, c := range coupons {
		payload = append(payload, couponPayload{
			Code:                      c.Code,
			Kind:                      string(c.Kind),
			Amount:                    c.Amount.String(),
			MinOrderSubtotal:          money(c.MinOrderSubtotal),
			FormattedMinOrderSubtotal: f.Money(c.MinOrderSubtotal),
			Description:               c.Description,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"coupons": payload})
}
