package services

import (
	"context"

	domain "github.com/areebabashir/intrnecommerceproj1/internal/domain"
)

// SystemHealthReport is the readiness payload assembled by SystemService.
type SystemHealthReport = domain.SystemHealthReport

// ProductCatalog exposes the normalized storefront catalog to the HTTP layer.
type ProductCatalog interface {
	ListProducts(ctx context.Context, limit int) ProductListing
	GetProduct(ctx context.Context, id domain.ProductID) (domain.Product, error)
	SimilarProducts(ctx context.Context, categoryID int) ProductListing
	Collections(ctx context.Context) Collections
}

// SessionProvider resolves the live stores of a shopper session, hydrating them on first use.
type SessionProvider interface {
	Session(ctx context.Context, id string) (*Session, error)
}

// CouponLister enumerates the configured coupon catalog.
type CouponLister interface {
	List() []domain.Coupon
}

// SystemService reports process health and build metadata.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

var (
	_ ProductCatalog  = (*CatalogService)(nil)
	_ SessionProvider = (*SessionRegistry)(nil)
	_ CouponLister    = (*CouponCatalog)(nil)
)
