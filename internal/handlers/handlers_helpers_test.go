package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domain "github.com/areebabashir/intrnecommerceproj1/internal/domain"
	"github.com/areebabashir/intrnecommerceproj1/internal/platform/requestctx"
	"github.com/areebabashir/intrnecommerceproj1/internal/repositories/memory"
	"github.com/areebabashir/intrnecommerceproj1/internal/services"
)

const testSessionID = "01J0SESSION"

type stubCatalog struct {
	products    map[domain.ProductID]domain.Product
	getErr      error
	listing     services.ProductListing
	similar     services.ProductListing
	collections services.Collections

	lastLimit    int
	lastCategory int
}

func (s *stubCatalog) ListProducts(_ context.Context, limit int) services.ProductListing {
	s.lastLimit = limit
	return s.listing
}

func (s *stubCatalog) GetProduct(_ context.Context, id domain.ProductID) (domain.Product, error) {
	if s.getErr != nil {
		return domain.Product{}, s.getErr
	}
	product, ok := s.products[id]
	if !ok {
		return domain.Product{}, services.ErrProductNotFound
	}
	return product, nil
}

func (s *stubCatalog) SimilarProducts(_ context.Context, categoryID int) services.ProductListing {
	s.lastCategory = categoryID
	return s.similar
}

func (s *stubCatalog) Collections(context.Context) services.Collections {
	return s.collections
}

func testProduct(id, title, price string) domain.Product {
	return domain.Product{
		ID:       domain.ProductID(id),
		Title:    title,
		Price:    decimal.RequireFromString(price),
		Category: "Jewelry",
		Images:   []string{"https://img.example/" + id + ".png"},
	}
}

func newTestCatalog() *stubCatalog {
	return &stubCatalog{
		products: map[domain.ProductID]domain.Product{
			"1": testProduct("1", "Pearl Studs", "30"),
			"2": testProduct("2", "Silver Chain", "25"),
		},
	}
}

func newTestRegistry(t *testing.T) *services.SessionRegistry {
	t.Helper()
	persistence, err := services.NewPersistentStore(memory.NewKeyValueRepository(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewPersistentStore: %v", err)
	}
	pricing, err := services.NewPricingEngine(services.DefaultPricingPolicy())
	if err != nil {
		t.Fatalf("NewPricingEngine: %v", err)
	}
	registry, err := services.NewSessionRegistry(services.SessionRegistryDeps{
		Persistence: persistence,
		Pricing:     pricing,
		Coupons:     services.DefaultCouponCatalog(),
	})
	if err != nil {
		t.Fatalf("NewSessionRegistry: %v", err)
	}
	return registry
}

func withTestSession(id string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestctx.WithSessionID(r.Context(), id)))
		})
	}
}

type testAPI struct {
	router   http.Handler
	catalog  *stubCatalog
	registry *services.SessionRegistry
}

func newTestAPI(t *testing.T, cartOpts ...CartHandlersOption) *testAPI {
	t.Helper()
	catalog := newTestCatalog()
	registry := newTestRegistry(t)
	router := NewRouter(
		WithSessionMiddleware(withTestSession(testSessionID)),
		WithProductRoutes(NewProductHandlers(catalog).Routes),
		WithCouponRoutes(NewCouponHandlers(services.DefaultCouponCatalog()).Routes),
		WithCartRoutes(NewCartHandlers(registry, catalog, cartOpts...).Routes),
		WithWishlistRoutes(NewWishlistHandlers(registry, catalog).Routes),
		WithCheckoutRoutes(NewCheckoutHandlers(registry).Routes),
	)
	return &testAPI{router: router, catalog: catalog, registry: registry}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) map[string]any {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d (%s)", status, rr.Code, rr.Body.String())
	}
	body := decodeBody[map[string]any](t, rr)
	if body["error"] != code {
		t.Fatalf("expected error %q, got %v", code, body["error"])
	}
	return body
}
