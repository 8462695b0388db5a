package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/areebabashir/intrnecommerceproj1/internal/platform/httpx"
)

const (
	apiPrefix      = "/api/v1"
	requestTimeout = 30 * time.Second
)

// RouteRegistrar adds one resource's routes to r.
type RouteRegistrar func(r chi.Router)

type middlewareFunc = func(http.Handler) http.Handler

// routeGroup is a mounted resource. Groups without a registrar answer 501.
type routeGroup struct {
	path       string
	name       string
	registrar  RouteRegistrar
	needsCart  bool
	middleware []middlewareFunc
}

type routerConfig struct {
	global  []middlewareFunc
	health  *HealthHandlers
	session middlewareFunc

	products RouteRegistrar
	groups   map[string]*routeGroup
}

type Option func(*routerConfig)

// NewRouter builds the storefront API. Health probes are served both at the root and under /api/v1.
// Cart, wishlist and checkout run behind the session middleware; checkout middleware runs after it.
func NewRouter(opts ...Option) chi.Router {
	cfg := &routerConfig{
		global: []middlewareFunc{middleware.RequestID, middleware.RealIP, middleware.Timeout(requestTimeout)},
		groups: map[string]*routeGroup{
			"coupons":  {path: "/coupons", name: "coupons"},
			"cart":     {path: "/cart", name: "cart", needsCart: true},
			"wishlist": {path: "/wishlist", name: "wishlist", needsCart: true},
			"checkout": {path: "/checkout", name: "checkout", needsCart: true},
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	for _, mw := range cfg.global {
		if mw != nil {
			r.Use(mw)
		}
	}
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("route_not_found", "no route for "+req.URL.Path, http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed",
			fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	mountHealth := func(r chi.Router) {
		r.Get("/healthz", cfg.health.Healthz)
		r.Get("/readyz", cfg.health.Readyz)
	}
	mountHealth(r)

	r.Route(apiPrefix, func(api chi.Router) {
		mountHealth(api)
		if cfg.products != nil {
			cfg.products(api)
		} else {
			api.HandleFunc("/products", notImplemented("products"))
			api.HandleFunc("/collections", notImplemented("products"))
		}
		for _, key := range []string{"coupons", "cart", "wishlist", "checkout"} {
			cfg.mount(api, cfg.groups[key])
		}
	})
	return r
}

func (cfg *routerConfig) mount(api chi.Router, g *routeGroup) {
	api.Route(g.path, func(sub chi.Router) {
		if g.needsCart && cfg.session != nil {
			sub.Use(cfg.session)
		}
		for _, mw := range g.middleware {
			if mw != nil {
				sub.Use(mw)
			}
		}
		if g.registrar != nil {
			g.registrar(sub)
			return
		}
		h := notImplemented(g.name)
		sub.HandleFunc("/", h)
		sub.HandleFunc("/*", h)
		sub.NotFound(h)
		sub.MethodNotAllowed(h)
	})
}

func notImplemented(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", name+" routes not implemented", http.StatusNotImplemented))
	}
}

func withGroup(key string, reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.groups[key].registrar = reg }
}

// WithMiddlewares appends global middleware after RequestID, RealIP and Timeout.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) { cfg.global = append(cfg.global, mw...) }
}

func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) { cfg.health = h }
}

// WithSessionMiddleware resolves the shopper session for cart, wishlist and checkout.
func WithSessionMiddleware(mw func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) { cfg.session = mw }
}

// WithProductRoutes registers /products and /collections directly on the API router.
func WithProductRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.products = reg }
}

func WithCouponRoutes(reg RouteRegistrar) Option   { return withGroup("coupons", reg) }
func WithCartRoutes(reg RouteRegistrar) Option     { return withGroup("cart", reg) }
func WithWishlistRoutes(reg RouteRegistrar) Option { return withGroup("wishlist", reg) }
func WithCheckoutRoutes(reg RouteRegistrar) Option { return withGroup("checkout", reg) }

// WithCheckoutMiddlewares wraps only the checkout group, inside the session middleware.
func WithCheckoutMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		g := cfg.groups["checkout"]
		g.middleware = append(g.middleware, mw...)
	}
}
