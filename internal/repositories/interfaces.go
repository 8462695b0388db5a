package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	domain "github.com/areebabashir/intrnecommerceproj1/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// KeyValueRepository stores opaque JSON documents by key. Get returns a RepositoryError with
// IsNotFound when the key is absent.
type KeyValueRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// ProductCatalogRepository reads products from the upstream catalog API.
type ProductCatalogRepository interface {
	ListProducts(ctx context.Context, limit int) ([]ProductRecord, error)
	// GetProduct returns a RepositoryError with IsNotFound when the upstream has no such product.
	GetProduct(ctx context.Context, id string) (ProductRecord, error)
	ListProductsByCategory(ctx context.Context, categoryID, limit int) ([]ProductRecord, error)
}

// HealthRepository aggregates dependency probes for readiness reporting.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// ProductRecord mirrors the upstream product payload before normalisation.
type ProductRecord struct {
	ID          domain.ProductID `json:"id"`
	Title       string           `json:"title"`
	Name        string           `json:"name"`
	Price       json.Number      `json:"price"`
	Description string           `json:"description"`
	Images      []string         `json:"images"`
	Image       string           `json:"image"`
	Category    ProductCategory  `json:"category"`
	Rating      *ProductRating   `json:"rating"`
}

// ProductRating is the optional upstream rating block.
type ProductRating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

// ProductCategory accepts either a plain string or an object with id and name.
type ProductCategory struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// UnmarshalJSON decodes both category encodings used upstream.
func (c *ProductCategory) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = ProductCategory{}
		return nil
	}
	if trimmed[0] == '"' {
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return err
		}
		*c = ProductCategory{Name: strings.TrimSpace(name)}
		return nil
	}
	type categoryObject ProductCategory
	var obj categoryObject
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return err
	}
	*c = ProductCategory(obj)
	return nil
}
