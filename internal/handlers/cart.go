package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/areebabashir/intrnecommerceproj1/internal/domain"
	"github.com/areebabashir/intrnecommerceproj1/internal/platform/format"
	"github.com/areebabashir/intrnecommerceproj1/internal/platform/httpx"
	"github.com/areebabashir/intrnecommerceproj1/internal/services"
)

const couponAttemptWindow = time.Minute

// CartHandlers exposes the session cart.
type CartHandlers struct {
	sessions      services.SessionProvider
	catalog       services.ProductCatalog
	couponLimiter rateLimiter
}

// CartHandlersOption customises CartHandlers.
type CartHandlersOption func(*CartHandlers)

// WithCouponRateLimit caps coupon attempts per session per minute.
func WithCouponRateLimit(perMinute int, clock func() time.Time) CartHandlersOption {
	return func(h *CartHandlers) {
		h.couponLimiter = newKeyedLimiter(perMinute, couponAttemptWindow, clock)
	}
}

// NewCartHandlers constructs handlers resolving products through the catalog so the server prices
// every item.
func NewCartHandlers(sessions services.SessionProvider, catalog services.ProductCatalog, opts ...CartHandlersOption) *CartHandlers {
	h := &CartHandlers{
		sessions: sessions,
		catalog:  catalog,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Patch("/items/{productId}", h.updateQuantity)
	r.Delete("/items/{productId}", h.removeItem)
	r.Post("/coupon", h.applyCoupon)
	r.Delete("/coupon", h.removeCoupon)
	r.Get("/notification", h.getNotification)
	r.Delete("/notification", h.dismissNotification)
	r.Post("/checkout", h.prepareCheckout)
}

type productRequest struct {
	ProductID domain.ProductID `json:"product_id"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

type couponRequest struct {
	Code string `json:"code"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	session, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}
	h.writeCart(w, r, http.StatusOK, session.Cart.Snapshot())
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req productRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if req.ProductID.IsZero() {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product_id is required", http.StatusBadRequest))
		return
	}
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "product catalog is unavailable", http.StatusServiceUnavailable))
		return
	}

	session, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}
	product, err := h.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		writeStoreError(ctx, w, err)
		return
	}
	snapshot, err := session.Cart.AddItem(ctx, product)
	if err != nil {
		writeStoreError(ctx, w, err)
		return
	}
	h.writeCart(w, r, http.StatusOK, snapshot)
}

func (h *CartHandlers) updateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}
	var req quantityRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if req.Quantity == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "quantity is required", http.StatusBadRequest))
		return
	}

	session, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}
	h.writeCart(w, r, http.StatusOK, session.Cart.UpdateQuantity(ctx, id, *req.Quantity))
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}
	session, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}
	h.writeCart(w, r, http.StatusOK, session.Cart.RemoveItem(r.Context(), id))
}

func (h *CartHandlers) applyCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req couponRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "code is required", http.StatusBadRequest))
		return
	}

	session, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}
	if h.couponLimiter != nil {
		if allowed, retryAfter := h.couponLimiter.Allow(session.ID); !allowed {
			httpx.WriteError(ctx, w, httpx.NewError("too_many_requests", "too many coupon attempts; try again later", http.StatusTooManyRequests).
				WithRetryAfter(max(retryAfter, time.Second)))
			return
		}
	}

	snapshot, err := session.Cart.ApplyCoupon(ctx, req.Code)
	if err != nil {
		writeStoreError(ctx, w, err)
		return
	}
	h.writeCart(w, r, http.StatusOK, snapshot)
}

func (h *CartHandlers) removeCoupon(w http.ResponseWriter, r *http.Request) {
	session, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}
	h.writeCart(w, r, http.StatusOK, session.Cart.RemoveCoupon(r.Context()))
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	session, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}
	h.writeCart(w, r, http.StatusOK, session.Cart.ClearCart(r.Context()))
}

func (h *CartHandlers) getNotification(w http.ResponseWriter, r *http.Request) {
	session, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}
	setNoStoreHeaders(w)
	notification, active := session.Cart.Notification()
	if !active {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"notification": nil})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"notification": buildNotificationPayload(&notification)})
}

func (h *CartHandlers) dismissNotification(w http.ResponseWriter, r *http.Request) {
	session, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}
	session.Cart.DismissNotification()
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandlers) prepareCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}
	snapshot, err := session.Cart.PrepareCheckout(ctx)
	if err != nil {
		writeStoreError(ctx, w, err)
		return
	}
	h.writeCart(w, r, http.StatusOK, snapshot)
}

func (h *CartHandlers) writeCart(w http.ResponseWriter, r *http.Request, status int, snapshot services.CartSnapshot) {
	setNoStoreHeaders(w)
	httpx.WriteJSON(w, status, cartResponse{Cart: buildCartPayload(snapshot, format.NewFormatter(r.Header.Get("Accept-Language")))})
}

func productIDParam(w http.ResponseWriter, r *http.Request) (domain.ProductID, bool) {
	id := domain.ProductID(strings.TrimSpace(chi.URLParam(r, "productId")))
	if id.IsZero() {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return "", false
	}
	return id, true
}
