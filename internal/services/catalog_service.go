package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	domain "github.com/areebabashir/intrnecommerceproj1/internal/domain"
	"github.com/areebabashir/intrnecommerceproj1/internal/repositories"
)

const (
	// DefaultProductListLimit is how many products the storefront shows on its listing pages.
	DefaultProductListLimit = 20
	// SimilarProductsLimit is how many related products accompany a product page.
	SimilarProductsLimit = 4

	defaultCatalogCacheTTL  = 5 * time.Minute
	collectionSize          = 4
	outletPriceCeiling      = 100
	newCollectionStart      = 8
	newCollectionEnd        = 12
	placeholderImage        = "https://via.placeholder.com/400"
	defaultProductTitle     = "Unnamed Product"
	defaultDescription      = "No description available"
	defaultCategory         = "Uncategorized"
	fallbackCategoryJewelry = "Jewelry"
	maxCleanPasses          = 4
)

var (
	errCatalogRepositoryRequired = errors.New("catalog service: product repository is required")
	// ErrCatalogUnavailable indicates the upstream catalog could not serve the request.
	ErrCatalogUnavailable = errors.New("catalog service: catalog unavailable")
	// ErrProductNotFound indicates the requested product does not exist.
	ErrProductNotFound = errors.New("catalog service: product not found")
)

// ProductListing is a list of products and whether it came from the offline fallback.
type ProductListing struct {
	Products []domain.Product
	Fallback bool
}

// Collections groups the curated storefront shelves.
type Collections struct {
	Bestsellers   []domain.Product
	Outlet        []domain.Product
	NewCollection []domain.Product
	Fallback      bool
}

// CatalogServiceDeps wires the catalog service.
type CatalogServiceDeps struct {
	Products repositories.ProductCatalogRepository
	Clock    func() time.Time
	CacheTTL time.Duration
	Logger   func(context.Context, string, map[string]any)
}

// CatalogService normalises upstream products, caches them and falls back to static data when
// the upstream is down.
type CatalogService struct {
	repo     repositories.ProductCatalogRepository
	now      func() time.Time
	cacheTTL time.Duration
	logger   func(context.Context, string, map[string]any)
	policy   *bluemonday.Policy

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]catalogCacheEntry
}

type catalogCacheEntry struct {
	value     any
	expiresAt time.Time
}

// NewCatalogService constructs the catalog service.
func NewCatalogService(deps CatalogServiceDeps) (*CatalogService, error) {
	if deps.Products == nil {
		return nil, errCatalogRepositoryRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = defaultCatalogCacheTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &CatalogService{
		repo:     deps.Products,
		now:      func() time.Time { return clock().UTC() },
		cacheTTL: ttl,
		logger:   logger,
		policy:   bluemonday.StrictPolicy(),
		cache:    make(map[string]catalogCacheEntry),
	}, nil
}

// ListProducts returns up to limit products, or deterministic placeholders when the upstream fails.
func (s *CatalogService) ListProducts(ctx context.Context, limit int) ProductListing {
	if limit <= 0 {
		limit = DefaultProductListLimit
	}
	value, err := s.cached(ctx, "list:"+strconv.Itoa(limit), func(ctx context.Context) (any, error) {
		records, err := s.repo.ListProducts(ctx, limit)
		if err != nil {
			return nil, err
		}
		return s.normalizeAll(records), nil
	})
	if err != nil {
		s.logger(ctx, "catalog.list.fallback", map[string]any{"limit": limit, "error": err.Error()})
		return ProductListing{Products: PlaceholderProducts(), Fallback: true}
	}
	return ProductListing{Products: cloneProducts(value.([]domain.Product))}
}

// GetProduct resolves one product. Unknown ids return ErrProductNotFound and upstream failures
// ErrCatalogUnavailable.
func (s *CatalogService) GetProduct(ctx context.Context, id domain.ProductID) (domain.Product, error) {
	if id.IsZero() {
		return domain.Product{}, fmt.Errorf("%w: product id is required", ErrProductNotFound)
	}
	value, err := s.cached(ctx, "product:"+id.String(), func(ctx context.Context) (any, error) {
		record, err := s.repo.GetProduct(ctx, id.String())
		if err != nil {
			return nil, err
		}
		return s.normalize(record), nil
	})
	if err == nil {
		return cloneProduct(value.(domain.Product)), nil
	}
	if repositories.IsNotFound(err) {
		if fallback, ok := fallbackSimilarProduct(id); ok {
			return fallback, nil
		}
		return domain.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	s.logger(ctx, "catalog.get.failed", map[string]any{"productId": id.String(), "error": err.Error()})
	return domain.Product{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
}

// SimilarProducts returns up to four products of the category, or the static jewelry picks when
// the upstream fails.
func (s *CatalogService) SimilarProducts(ctx context.Context, categoryID int) ProductListing {
	if categoryID <= 0 {
		categoryID = 1
	}
	value, err := s.cached(ctx, "similar:"+strconv.Itoa(categoryID), func(ctx context.Context) (any, error) {
		records, err := s.repo.ListProductsByCategory(ctx, categoryID, SimilarProductsLimit)
		if err != nil {
			return nil, err
		}
		return s.normalizeAll(records), nil
	})
	if err != nil {
		s.logger(ctx, "catalog.similar.fallback", map[string]any{"categoryId": categoryID, "error": err.Error()})
		return ProductListing{Products: FallbackSimilarProducts(), Fallback: true}
	}
	return ProductListing{Products: cloneProducts(value.([]domain.Product))}
}

// Collections derives the bestseller, outlet and new shelves from the default listing.
func (s *CatalogService) Collections(ctx context.Context) Collections {
	listing := s.ListProducts(ctx, DefaultProductListLimit)
	collections := BuildCollections(listing.Products)
	collections.Fallback = listing.Fallback
	return collections
}

// BuildCollections picks the top rated products, the cheapest shelf and the fixed new arrivals window.
func BuildCollections(products []domain.Product) Collections {
	ranked := cloneProducts(products)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Rating != ranked[j].Rating {
			return ranked[i].Rating > ranked[j].Rating
		}
		return lessProductID(ranked[i].ID, ranked[j].ID)
	})

	ceiling := decimal.NewFromInt(outletPriceCeiling)
	var outlet []domain.Product
	for _, p := range products {
		if len(outlet) == collectionSize {
			break
		}
		if p.Price.LessThan(ceiling) {
			outlet = append(outlet, cloneProduct(p))
		}
	}

	var fresh []domain.Product
	if len(products) > newCollectionStart {
		end := newCollectionEnd
		if end > len(products) {
			end = len(products)
		}
		fresh = cloneProducts(products[newCollectionStart:end])
	}

	return Collections{
		Bestsellers:   ranked[:min(collectionSize, len(ranked))],
		Outlet:        outlet,
		NewCollection: fresh,
	}
}

// InvalidateCache drops every cached upstream response.
func (s *CatalogService) InvalidateCache() {
	s.mu.Lock()
	s.cache = make(map[string]catalogCacheEntry)
	s.mu.Unlock()
}

func (s *CatalogService) cached(ctx context.Context, key string, load func(context.Context) (any, error)) (any, error) {
	if value, ok := s.lookup(key); ok {
		return value, nil
	}
	value, err, _ := s.group.Do(key, func() (any, error) {
		if value, ok := s.lookup(key); ok {
			return value, nil
		}
		// Shared by every waiter, so one caller's cancellation must not fail the rest.
		value, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[key] = catalogCacheEntry{value: value, expiresAt: s.now().Add(s.cacheTTL)}
		s.mu.Unlock()
		return value, nil
	})
	return value, err
}

func (s *CatalogService) lookup(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.cache[key]
	if !ok || !s.now().Before(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

func (s *CatalogService) normalizeAll(records []repositories.ProductRecord) []domain.Product {
	products := make([]domain.Product, 0, len(records))
	for _, record := range records {
		if record.ID.IsZero() {
			continue
		}
		products = append(products, s.normalize(record))
	}
	return products
}

func (s *CatalogService) normalize(record repositories.ProductRecord) domain.Product {
	product := domain.Product{
		ID:          record.ID,
		Title:       firstNonEmpty(s.clean(record.Title), s.clean(record.Name), defaultProductTitle),
		Price:       decimal.Zero,
		Description: firstNonEmpty(s.clean(record.Description), defaultDescription),
		Category:    firstNonEmpty(s.clean(record.Category.Name), defaultCategory),
		CategoryID:  record.Category.ID,
	}
	if price, err := decimal.NewFromString(record.Price.String()); err == nil && price.IsPositive() {
		product.Price = price
	}
	for _, image := range record.Images {
		if trimmed := strings.TrimSpace(image); trimmed != "" {
			product.Images = append(product.Images, trimmed)
		}
	}
	if len(product.Images) == 0 {
		product.Images = []string{firstNonEmpty(strings.TrimSpace(record.Image), placeholderImage)}
	}
	if record.Rating != nil {
		product.Rating = record.Rating.Rate
		product.ReviewCount = record.Rating.Count
	}
	return product
}

// clean strips markup and decodes entities. Decoding can surface markup that was entity-encoded
// upstream, so it repeats until the text is stable.
func (s *CatalogService) clean(value string) string {
	text := value
	for pass := 0; pass < maxCleanPasses; pass++ {
		next := html.UnescapeString(s.policy.Sanitize(text))
		if next == text {
			return strings.TrimSpace(next)
		}
		text = next
	}
	return strings.TrimSpace(s.policy.Sanitize(text))
}

// FallbackSimilarProducts returns the static picks shown when related products cannot be fetched.
func FallbackSimilarProducts() []domain.Product {
	return []domain.Product{
		staticProduct("101", "Classic Necklace", 299, fallbackCategoryJewelry),
		staticProduct("102", "Silver Ring", 199, fallbackCategoryJewelry),
		staticProduct("103", "Gold Bracelet", 399, fallbackCategoryJewelry),
		staticProduct("104", "Diamond Earrings", 499, fallbackCategoryJewelry),
	}
}

// PlaceholderProducts returns the twenty deterministic products shown when the listing fails.
func PlaceholderProducts() []domain.Product {
	products := make([]domain.Product, 0, DefaultProductListLimit)
	for i := 0; i < DefaultProductListLimit; i++ {
		category := "Accessories"
		if i%2 == 1 {
			category = fallbackCategoryJewelry
		}
		price := int64(50 + (i*53)%300)
		products = append(products, staticProduct(strconv.Itoa(i+1), fmt.Sprintf("Product %d", i+1), price, category))
	}
	return products
}

func fallbackSimilarProduct(id domain.ProductID) (domain.Product, bool) {
	for _, p := range FallbackSimilarProducts() {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

func staticProduct(id, title string, price int64, category string) domain.Product {
	return domain.Product{
		ID:          domain.ProductID(id),
		Title:       title,
		Price:       decimal.NewFromInt(price),
		Description: defaultDescription,
		Category:    category,
		Images:      []string{placeholderImage},
	}
}

func lessProductID(a, b domain.ProductID) bool {
	if a.Numeric() && b.Numeric() {
		x, _ := strconv.ParseInt(a.String(), 10, 64)
		y, _ := strconv.ParseInt(b.String(), 10, 64)
		return x < y
	}
	return a < b
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func cloneProduct(p domain.Product) domain.Product {
	p.Images = append([]string(nil), p.Images...)
	return p
}

func cloneProducts(products []domain.Product) []domain.Product {
	if products == nil {
		return nil
	}
	out := make([]domain.Product, len(products))
	for i, p := range products {
		out[i] = cloneProduct(p)
	}
	return out
}
