package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/areebabashir/intrnecommerceproj1/internal/domain"
	"github.com/areebabashir/intrnecommerceproj1/internal/services"
)

type routerStubSystemService struct {
	report services.SystemHealthReport
}

func (s *routerStubSystemService) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return s.report, nil
}

func serve(router http.Handler, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body["error"]
}

func noContent(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
}

func TestRouterServesHealthAtRootAndUnderAPI(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	health := NewHealthHandlers(
		WithHealthSystemService(&routerStubSystemService{report: services.SystemHealthReport{
			Status:      domain.HealthStatusOK,
			Uptime:      5 * time.Second,
			GeneratedAt: now,
			Checks:      map[string]domain.SystemHealthCheck{"storage": {Status: domain.HealthStatusOK}},
		}}),
		WithHealthClock(func() time.Time { return now }),
	)
	router := NewRouter(WithHealthHandlers(health))

	for _, path := range []string{"/healthz", "/readyz", "/api/v1/healthz", "/api/v1/readyz"} {
		rr := serve(router, http.MethodGet, path)
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"), path)
	}
}

func TestRouterUnregisteredGroupsAnswerNotImplemented(t *testing.T) {
	router := NewRouter()
	for _, path := range []string{"/api/v1/products", "/api/v1/collections", "/api/v1/coupons", "/api/v1/cart", "/api/v1/wishlist/items", "/api/v1/checkout"} {
		rr := serve(router, http.MethodGet, path)
		require.Equal(t, http.StatusNotImplemented, rr.Code, path)
		assert.Equal(t, "not_implemented", errorCode(t, rr), path)
	}
}

func TestRouterMountsRegistrar(t *testing.T) {
	router := NewRouter(WithCouponRoutes(noContent))
	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodGet, "/api/v1/coupons").Code)
}

func TestRouterUnknownPath(t *testing.T) {
	rr := serve(NewRouter(), http.MethodGet, "/does/not/exist")
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "route_not_found", errorCode(t, rr))
}

func TestRouterMethodNotAllowed(t *testing.T) {
	api := newTestAPI(t)
	expectError(t, api.do(t, http.MethodPut, "/api/v1/cart/coupon", nil), http.StatusMethodNotAllowed, "method_not_allowed")
}

func TestRouterSessionOnlyOnShopperGroups(t *testing.T) {
	calls := 0
	session := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Header().Set("X-Session-Middleware", "applied")
			next.ServeHTTP(w, r)
		})
	}
	router := NewRouter(
		WithSessionMiddleware(session),
		WithCouponRoutes(noContent),
		WithCartRoutes(noContent),
		WithWishlistRoutes(noContent),
		WithCheckoutRoutes(noContent),
	)

	for _, path := range []string{"/api/v1/cart", "/api/v1/wishlist", "/api/v1/checkout"} {
		assert.Equal(t, "applied", serve(router, http.MethodGet, path).Header().Get("X-Session-Middleware"), path)
	}
	assert.Empty(t, serve(router, http.MethodGet, "/api/v1/coupons").Header().Get("X-Session-Middleware"))
	assert.Equal(t, 3, calls)
}

func TestRouterCheckoutMiddlewareRunsInsideSession(t *testing.T) {
	var order []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	router := NewRouter(
		WithSessionMiddleware(tag("session")),
		WithCheckoutMiddlewares(tag("idempotency")),
		WithCartRoutes(noContent),
		WithCheckoutRoutes(noContent),
	)

	serve(router, http.MethodGet, "/api/v1/checkout")
	assert.Equal(t, []string{"session", "idempotency"}, order)

	order = nil
	serve(router, http.MethodGet, "/api/v1/cart")
	assert.Equal(t, []string{"session"}, order)
}
