package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/areebabashir/intrnecommerceproj1/internal/domain"
	"github.com/areebabashir/intrnecommerceproj1/internal/platform/format"
	"github.com/areebabashir/intrnecommerceproj1/internal/platform/httpx"
	"github.com/areebabashir/intrnecommerceproj1/internal/services"
)

// WishlistHandlers exposes the session wishlist.
type WishlistHandlers struct {
	sessions services.SessionProvider
	catalog  services.ProductCatalog
}

// NewWishlistHandlers constructs wishlist handlers.
func NewWishlistHandlers(sessions services.SessionProvider, catalog services.ProductCatalog) *WishlistHandlers {
	return &WishlistHandlers{sessions: sessions, catalog: catalog}
}

// Routes wires the /wishlist endpoints onto the provided router.
func (h *WishlistHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getWishlist)
	r.Delete("/", h.clearWishlist)
	r.Post("/items", h.addItem)
	r.Post("/toggle", h.toggleItem)
	r.Delete("/items/{productId}", h.removeItem)
}

func (h *WishlistHandlers) getWishlist(w http.ResponseWriter, r *http.Request) {
	session, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}
	h.writeWishlist(w, r, session.Wishlist.Snapshot(), nil)
}

func (h *WishlistHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, product, ok := h.resolveProduct(w, r)
	if !ok {
		return
	}
	snapshot, err := session.Wishlist.Add(ctx, product)
	if err != nil {
		writeStoreError(ctx, w, err)
		return
	}
	h.writeWishlist(w, r, snapshot, nil)
}

func (h *WishlistHandlers) toggleItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, product, ok := h.resolveProduct(w, r)
	if !ok {
		return
	}
	snapshot, added, err := session.Wishlist.Toggle(ctx, product)
	if err != nil {
		writeStoreError(ctx, w, err)
		return
	}
	h.writeWishlist(w, r, snapshot, &added)
}

func (h *WishlistHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}
	session, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}
	h.writeWishlist(w, r, session.Wishlist.Remove(r.Context(), id), nil)
}

func (h *WishlistHandlers) clearWishlist(w http.ResponseWriter, r *http.Request) {
	session, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return
	}
	h.writeWishlist(w, r, session.Wishlist.Clear(r.Context()), nil)
}

func (h *WishlistHandlers) resolveProduct(w http.ResponseWriter, r *http.Request) (*services.Session, domain.Product, bool) {
	ctx := r.Context()
	var req productRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return nil, domain.Product{}, false
	}
	if req.ProductID.IsZero() {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product_id is required", http.StatusBadRequest))
		return nil, domain.Product{}, false
	}
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "product catalog is unavailable", http.StatusServiceUnavailable))
		return nil, domain.Product{}, false
	}
	session, ok := resolveSession(w, r, h.sessions)
	if !ok {
		return nil, domain.Product{}, false
	}
	product, err := h.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		writeStoreError(ctx, w, err)
		return nil, domain.Product{}, false
	}
	return session, product, true
}

func (h *WishlistHandlers) writeWishlist(w http.ResponseWriter, r *http.Request, snapshot services.WishlistSnapshot, added *bool) {
	setNoStoreHeaders(w)
	httpx.WriteJSON(w, http.StatusOK, wishlistResponse{
		Wishlist: buildWishlistPayload(snapshot, format.NewFormatter(r.Header.Get("Accept-Language"))),
		Added:    added,
	})
}
