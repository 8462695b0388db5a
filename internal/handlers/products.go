package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/areebabashir/intrnecommerceproj1/internal/platform/format"
	"github.com/areebabashir/intrnecommerceproj1/internal/platform/httpx"
	"github.com/areebabashir/intrnecommerceproj1/internal/services"
)

const (
	maxProductListLimit = 100
	productCacheMaxAge  = 60 * time.Second
)

// ProductHandlers serves the public catalog.
type ProductHandlers struct {
	catalog services.ProductCatalog
}

// NewProductHandlers constructs catalog handlers.
func NewProductHandlers(catalog services.ProductCatalog) *ProductHandlers {
	return &ProductHandlers{catalog: catalog}
}

// Routes registers /products and /collections on the API root.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.listProducts)
	r.Get("/products/{productId}", h.getProduct)
	r.Get("/products/{productId}/similar", h.similarProducts)
	r.Get("/collections", h.collections)
}

func (h *ProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	limit, err := queryLimit(r, services.DefaultProductListLimit, maxProductListLimit)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	listing := h.catalog.ListProducts(ctx, limit)
	h.writeListing(w, r, listing)
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}
	product, err := h.catalog.GetProduct(ctx, id)
	if err != nil {
		writeStoreError(ctx, w, err)
		return
	}
	setProductCacheHeaders(w, false)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"product": buildProductPayload(product, format.NewFormatter(r.Header.Get("Accept-Language"))),
	})
}

func (h *ProductHandlers) similarProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	if _, ok := productIDParam(w, r); !ok {
		return
	}
	categoryID := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("categoryId")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "categoryId must be an integer", http.StatusBadRequest))
			return
		}
		categoryID = parsed
	}
	h.writeListing(w, r, h.catalog.SimilarProducts(ctx, categoryID))
}

func (h *ProductHandlers) collections(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}
	collections := h.catalog.Collections(r.Context())
	f := format.NewFormatter(r.Header.Get("Accept-Language"))
	setProductCacheHeaders(w, collections.Fallback)
	httpx.WriteJSON(w, http.StatusOK, collectionsPayload{
		Bestsellers:   buildProductPayloads(collections.Bestsellers, f),
		Outlet:        buildProductPayloads(collections.Outlet, f),
		NewCollection: buildProductPayloads(collections.NewCollection, f),
		Fallback:      collections.Fallback,
	})
}

func (h *ProductHandlers) available(w http.ResponseWriter, r *http.Request) bool {
	if h.catalog == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("catalog_unavailable", "product catalog is unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func (h *ProductHandlers) writeListing(w http.ResponseWriter, r *http.Request, listing services.ProductListing) {
	setProductCacheHeaders(w, listing.Fallback)
	httpx.WriteJSON(w, http.StatusOK, productListPayload{
		Products: buildProductPayloads(listing.Products, format.NewFormatter(r.Header.Get("Accept-Language"))),
		Fallback: listing.Fallback,
	})
}

// setProductCacheHeaders lets browsers cache live catalog data briefly. Fallback data is never cached.
func setProductCacheHeaders(w http.ResponseWriter, fallback bool) {
	if fallback {
		setNoStoreHeaders(w)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(productCacheMaxAge/time.Second)))
	w.Header().Add("Vary", "Accept-Language")
}

