package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domain "github.com/areebabashir/intrnecommerceproj1/internal/domain"
	"github.com/areebabashir/intrnecommerceproj1/internal/repositories"
)

type stubProductRepository struct {
	listFn     func(ctx context.Context, limit int) ([]repositories.ProductRecord, error)
	getFn      func(ctx context.Context, id string) (repositories.ProductRecord, error)
	categoryFn func(ctx context.Context, categoryID, limit int) ([]repositories.ProductRecord, error)
	listCalls  atomic.Int32
}

func (s *stubProductRepository) ListProducts(ctx context.Context, limit int) ([]repositories.ProductRecord, error) {
	s.listCalls.Add(1)
	if s.listFn == nil {
		return nil, errors.New("not stubbed")
	}
	return s.listFn(ctx, limit)
}

func (s *stubProductRepository) GetProduct(ctx context.Context, id string) (repositories.ProductRecord, error) {
	if s.getFn == nil {
		return repositories.ProductRecord{}, errors.New("not stubbed")
	}
	return s.getFn(ctx, id)
}

func (s *stubProductRepository) ListProductsByCategory(ctx context.Context, categoryID, limit int) ([]repositories.ProductRecord, error) {
	if s.categoryFn == nil {
		return nil, errors.New("not stubbed")
	}
	return s.categoryFn(ctx, categoryID, limit)
}

func newTestCatalogService(t *testing.T, repo repositories.ProductCatalogRepository, clock *testClock) *CatalogService {
	t.Helper()
	svc, err := NewCatalogService(CatalogServiceDeps{Products: repo, Clock: clock.Now, CacheTTL: time.Minute})
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}
	return svc
}

func productRecord(id int, title, price string, rate float64) repositories.ProductRecord {
	return repositories.ProductRecord{
		ID:       domain.ProductID(strconv.Itoa(id)),
		Title:    title,
		Price:    json.Number(price),
		Images:   []string{"img-" + strconv.Itoa(id) + ".png"},
		Category: repositories.ProductCategory{ID: 1, Name: "Rings"},
		Rating:   &repositories.ProductRating{Rate: rate, Count: id},
	}
}

func TestCatalogService_NormalizesRecords(t *testing.T) {
	repo := &stubProductRepository{
		listFn: func(context.Context, int) ([]repositories.ProductRecord, error) {
			return []repositories.ProductRecord{
				{ID: "1", Name: "Named <b>Only</b>", Price: "12.5", Image: "single.png", Category: repositories.ProductCategory{Name: "Pins"}},
				{ID: "2", Title: "<script>alert(1)</script>", Price: "bogus", Description: "Gold &amp; <i>pearl</i>"},
				{Title: "no id is skipped"},
			}, nil
		},
	}
	svc := newTestCatalogService(t, repo, newTestClock())

	listing := svc.ListProducts(context.Background(), 0)
	if listing.Fallback || len(listing.Products) != 2 {
		t.Fatalf("unexpected listing %+v", listing)
	}

	first := listing.Products[0]
	if first.Title != "Named Only" || first.Category != "Pins" || first.Description != "No description available" {
		t.Fatalf("unexpected first product %+v", first)
	}
	if first.PrimaryImage() != "single.png" || !first.Price.Equal(dec(t, "12.5")) {
		t.Fatalf("unexpected first product image or price %+v", first)
	}
	if first.Rating != 0 || first.ReviewCount != 0 {
		t.Fatalf("missing rating must default to zero, got %+v", first)
	}

	second := listing.Products[1]
	if second.Title != "Unnamed Product" || !second.Price.IsZero() || second.Category != "Uncategorized" {
		t.Fatalf("unexpected second product %+v", second)
	}
	if second.Description != "Gold & pearl" {
		t.Fatalf("expected sanitized description, got %q", second.Description)
	}
	if second.PrimaryImage() != placeholderImage {
		t.Fatalf("expected placeholder image, got %q", second.PrimaryImage())
	}
}

func TestCatalogService_StripsEntityEncodedMarkup(t *testing.T) {
	repo := &stubProductRepository{
		listFn: func(context.Context, int) ([]repositories.ProductRecord, error) {
			return []repositories.ProductRecord{
				{ID: "1", Title: "&lt;img src=x onerror=alert(1)&gt;Ring", Price: "10",
					Description: "<b>bold</b> &lt;script&gt;steal()&lt;/script&gt;"},
				{ID: "2", Title: "&amp;lt;b&amp;gt;Double&amp;lt;/b&amp;gt;", Price: "10", Description: "1 < 2 & 3 > 2"},
			}, nil
		},
	}
	svc := newTestCatalogService(t, repo, newTestClock())

	listing := svc.ListProducts(context.Background(), 0)
	if len(listing.Products) != 2 {
		t.Fatalf("unexpected listing %+v", listing)
	}
	first := listing.Products[0]
	if first.Title != "Ring" {
		t.Fatalf("expected encoded image tag to be stripped, got %q", first.Title)
	}
	if strings.Contains(first.Description, "<") || strings.Contains(first.Description, "script") ||
		!strings.HasPrefix(first.Description, "bold") {
		t.Fatalf("expected encoded script tag to be stripped, got %q", first.Description)
	}
	second := listing.Products[1]
	if second.Title != "Double" {
		t.Fatalf("expected double-encoded markup to be stripped, got %q", second.Title)
	}
	if second.Description != "1 < 2 & 3 > 2" {
		t.Fatalf("plain comparison text must survive, got %q", second.Description)
	}
}

func TestCatalogService_CachesUntilTTL(t *testing.T) {
	clock := newTestClock()
	repo := &stubProductRepository{
		listFn: func(context.Context, int) ([]repositories.ProductRecord, error) {
			return []repositories.ProductRecord{productRecord(1, "Ring", "10", 4)}, nil
		},
	}
	svc := newTestCatalogService(t, repo, clock)

	svc.ListProducts(context.Background(), 20)
	svc.ListProducts(context.Background(), 20)
	if repo.listCalls.Load() != 1 {
		t.Fatalf("expected cached listing, got %d upstream calls", repo.listCalls.Load())
	}
	clock.Advance(time.Minute)
	svc.ListProducts(context.Background(), 20)
	if repo.listCalls.Load() != 2 {
		t.Fatalf("expected refetch after ttl, got %d upstream calls", repo.listCalls.Load())
	}
}

func TestCatalogService_CoalescesConcurrentFetches(t *testing.T) {
	release := make(chan struct{})
	repo := &stubProductRepository{
		listFn: func(context.Context, int) ([]repositories.ProductRecord, error) {
			<-release
			return []repositories.ProductRecord{productRecord(1, "Ring", "10", 4)}, nil
		},
	}
	svc := newTestCatalogService(t, repo, newTestClock())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.ListProducts(context.Background(), 20)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls := repo.listCalls.Load(); calls != 1 {
		t.Fatalf("expected a single upstream call, got %d", calls)
	}
}

func TestCatalogService_ListFallsBackToPlaceholders(t *testing.T) {
	repo := &stubProductRepository{
		listFn: func(context.Context, int) ([]repositories.ProductRecord, error) {
			return nil, repositories.NewStoreError("list", repositories.ErrorKindUnavailable, errors.New("down"))
		},
	}
	svc := newTestCatalogService(t, repo, newTestClock())

	listing := svc.ListProducts(context.Background(), 20)
	if !listing.Fallback || len(listing.Products) != 20 {
		t.Fatalf("expected 20 placeholders, got %+v", listing)
	}
	again := PlaceholderProducts()
	for i, p := range listing.Products {
		if p.ID != again[i].ID || !p.Price.Equal(again[i].Price) {
			t.Fatalf("placeholders must be deterministic at %d", i)
		}
	}
	if listing.Products[0].Title != "Product 1" || listing.Products[1].Category != "Jewelry" {
		t.Fatalf("unexpected placeholder %+v", listing.Products[:2])
	}

	svc.ListProducts(context.Background(), 20)
	if repo.listCalls.Load() != 2 {
		t.Fatalf("fallbacks must not be cached")
	}
}

func TestCatalogService_GetProduct(t *testing.T) {
	repo := &stubProductRepository{
		getFn: func(_ context.Context, id string) (repositories.ProductRecord, error) {
			switch id {
			case "5":
				return productRecord(5, "Opal Ring", "89", 4.2), nil
			case "503":
				return repositories.ProductRecord{}, repositories.NewStoreError("get", repositories.ErrorKindUnavailable, errors.New("down"))
			default:
				return repositories.ProductRecord{}, repositories.NewStoreError("get", repositories.ErrorKindNotFound, errors.New("missing"))
			}
		},
	}
	svc := newTestCatalogService(t, repo, newTestClock())
	ctx := context.Background()

	product, err := svc.GetProduct(ctx, "5")
	if err != nil || product.Title != "Opal Ring" || product.CategoryID != 1 {
		t.Fatalf("unexpected product %+v (%v)", product, err)
	}
	if _, err := svc.GetProduct(ctx, "404"); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if _, err := svc.GetProduct(ctx, "503"); !errors.Is(err, ErrCatalogUnavailable) {
		t.Fatalf("expected ErrCatalogUnavailable, got %v", err)
	}
	if _, err := svc.GetProduct(ctx, ""); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound for empty id, got %v", err)
	}

	fallback, err := svc.GetProduct(ctx, "102")
	if err != nil || fallback.Title != "Silver Ring" || !fallback.Price.Equal(dec(t, "199")) {
		t.Fatalf("expected static fallback product, got %+v (%v)", fallback, err)
	}
}

func TestCatalogService_SimilarProducts(t *testing.T) {
	var gotCategory, gotLimit int
	repo := &stubProductRepository{
		categoryFn: func(_ context.Context, categoryID, limit int) ([]repositories.ProductRecord, error) {
			gotCategory, gotLimit = categoryID, limit
			if categoryID == 9 {
				return nil, errors.New("down")
			}
			return []repositories.ProductRecord{productRecord(1, "Ring", "10", 4)}, nil
		},
	}
	svc := newTestCatalogService(t, repo, newTestClock())

	listing := svc.SimilarProducts(context.Background(), 0)
	if listing.Fallback || len(listing.Products) != 1 || gotCategory != 1 || gotLimit != 4 {
		t.Fatalf("unexpected similar listing %+v category=%d limit=%d", listing, gotCategory, gotLimit)
	}

	fallback := svc.SimilarProducts(context.Background(), 9)
	if !fallback.Fallback || len(fallback.Products) != 4 || fallback.Products[3].Title != "Diamond Earrings" {
		t.Fatalf("unexpected fallback %+v", fallback)
	}
}

func TestBuildCollections(t *testing.T) {
	var products []domain.Product
	for i := 1; i <= 14; i++ {
		price := strconv.Itoa(40 * i)
		rate := float64(i % 5)
		products = append(products, domain.Product{ID: domain.ProductID(strconv.Itoa(i)), Price: dec(t, price), Rating: rate})
	}

	collections := BuildCollections(products)

	wantBest := []domain.ProductID{"4", "9", "14", "3"}
	for i, p := range collections.Bestsellers {
		if p.ID != wantBest[i] {
			t.Fatalf("bestsellers[%d] = %s, want %s", i, p.ID, wantBest[i])
		}
	}
	if len(collections.Outlet) != 2 || collections.Outlet[0].ID != "1" || collections.Outlet[1].ID != "2" {
		t.Fatalf("unexpected outlet %+v", collections.Outlet)
	}
	if len(collections.NewCollection) != 4 || collections.NewCollection[0].ID != "9" || collections.NewCollection[3].ID != "12" {
		t.Fatalf("unexpected new collection %+v", collections.NewCollection)
	}

	short := BuildCollections(products[:3])
	if len(short.NewCollection) != 0 || len(short.Bestsellers) != 3 {
		t.Fatalf("unexpected collections for short list %+v", short)
	}
}
