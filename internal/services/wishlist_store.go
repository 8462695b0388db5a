package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/areebabashir/intrnecommerceproj1/internal/domain"
)

var (
	errWishlistSessionRequired     = errors.New("wishlist store: session id is required")
	errWishlistPersistenceRequired = errors.New("wishlist store: persistence is required")
)

// ErrWishlistInvalidInput indicates the caller supplied an invalid product.
var ErrWishlistInvalidInput = errors.New("wishlist store: invalid input")

// WishlistSnapshot is a consistent read of the wishlist.
type WishlistSnapshot struct {
	SessionID    string
	Items        []domain.WishlistItem
	Notification *Notification
}

// WishlistStoreDeps wires a per-session wishlist.
type WishlistStoreDeps struct {
	SessionID       string
	Persistence     StatePersister
	Clock           func() time.Time
	NotificationTTL time.Duration
	Metrics         *StoreMetrics
	Logger          func(context.Context, string, map[string]any)
}

// WishlistStore owns the saved products of one session.
type WishlistStore struct {
	sessionID string
	persist   StatePersister
	now       func() time.Time
	metrics   *StoreMetrics
	logger    func(context.Context, string, map[string]any)

	mu     sync.Mutex
	items  []domain.WishlistItem
	notice notificationBoard
}

type wishlistRecord struct {
	ID       domain.ProductID `json:"id"`
	Title    string           `json:"title"`
	Price    json.Number      `json:"price"`
	Image    string           `json:"image,omitempty"`
	Category categoryName     `json:"category,omitempty"`
	AddedAt  *time.Time       `json:"addedAt,omitempty"`
}

// NewWishlistStore constructs a wishlist and hydrates it.
func NewWishlistStore(ctx context.Context, deps WishlistStoreDeps) (*WishlistStore, error) {
	if deps.SessionID == "" {
		return nil, errWishlistSessionRequired
	}
	if deps.Persistence == nil {
		return nil, errWishlistPersistenceRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	store := &WishlistStore{
		sessionID: deps.SessionID,
		persist:   deps.Persistence,
		now:       func() time.Time { return clock().UTC() },
		metrics:   deps.Metrics,
		logger:    logger,
		notice:    newNotificationBoard(deps.NotificationTTL),
	}
	store.hydrate(ctx)
	return store, nil
}

func (s *WishlistStore) hydrate(ctx context.Context) {
	var records []wishlistRecord
	if !s.persist.Load(ctx, s.key(), &records) {
		return
	}
	seen := make(map[domain.ProductID]struct{}, len(records))
	skipped := 0
	for _, record := range records {
		if record.ID.IsZero() {
			skipped++
			continue
		}
		if _, dup := seen[record.ID]; dup {
			continue
		}
		price, err := decimal.NewFromString(record.Price.String())
		if err != nil || price.IsNegative() {
			price = decimal.Zero
		}
		addedAt := s.now()
		if record.AddedAt != nil && !record.AddedAt.IsZero() {
			addedAt = record.AddedAt.UTC()
		}
		seen[record.ID] = struct{}{}
		s.items = append(s.items, domain.WishlistItem{
			ID:       record.ID,
			Title:    record.Title,
			Price:    price,
			Image:    record.Image,
			Category: string(record.Category),
			AddedAt:  addedAt,
		})
	}
	if skipped > 0 {
		s.logger(ctx, "wishlist.hydrate.dropped", map[string]any{"sessionId": s.sessionID, "skipped": skipped})
	}
}

// Add saves product unless it is already present.
func (s *WishlistStore) Add(ctx context.Context, p domain.Product) (WishlistSnapshot, error) {
	if p.ID.IsZero() {
		return WishlistSnapshot{}, fmt.Errorf("%w: product id is required", ErrWishlistInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.indexLocked(p.ID) >= 0 {
		s.notice.post(now, NotificationInfo, p.Title+" is already in your wishlist!")
		return s.snapshotLocked(now), nil
	}
	s.items = append(s.items, wishlistItemFrom(p, now))
	s.notice.post(now, NotificationSuccess, "Added "+p.Title+" to wishlist!")
	s.commitLocked(ctx, "added")
	return s.snapshotLocked(now), nil
}

// Toggle adds product when absent and removes it otherwise.
func (s *WishlistStore) Toggle(ctx context.Context, p domain.Product) (WishlistSnapshot, bool, error) {
	if p.ID.IsZero() {
		return WishlistSnapshot{}, false, fmt.Errorf("%w: product id is required", ErrWishlistInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if idx := s.indexLocked(p.ID); idx >= 0 {
		s.items = append(s.items[:idx], s.items[idx+1:]...)
		s.notice.post(now, NotificationInfo, p.Title+" removed from wishlist")
		s.commitLocked(ctx, "removed")
		return s.snapshotLocked(now), false, nil
	}
	s.items = append(s.items, wishlistItemFrom(p, now))
	s.notice.post(now, NotificationSuccess, p.Title+" added to wishlist!")
	s.commitLocked(ctx, "added")
	return s.snapshotLocked(now), true, nil
}

// Remove drops id. Missing ids are ignored.
func (s *WishlistStore) Remove(ctx context.Context, id domain.ProductID) WishlistSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if idx := s.indexLocked(id); idx >= 0 {
		s.items = append(s.items[:idx], s.items[idx+1:]...)
	}
	s.notice.post(now, NotificationInfo, "Item removed from wishlist!")
	s.commitLocked(ctx, "removed")
	return s.snapshotLocked(now)
}

// Clear removes every item and purges the persisted key.
func (s *WishlistStore) Clear(ctx context.Context) WishlistSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.items = nil
	s.persist.Remove(ctx, s.key())
	s.metrics.recordMutation(ctx, "wishlist", "cleared")
	s.notice.post(now, NotificationInfo, "Wishlist cleared!")
	return s.snapshotLocked(now)
}

// Items returns a copy of the saved products.
func (s *WishlistStore) Items() []domain.WishlistItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.WishlistItem(nil), s.items...)
}

// Count returns the number of saved products.
func (s *WishlistStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Contains reports whether id is saved.
func (s *WishlistStore) Contains(id domain.ProductID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(id) >= 0
}

// Snapshot returns the items with the active notification.
func (s *WishlistStore) Snapshot() WishlistSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(s.now())
}

func (s *WishlistStore) commitLocked(ctx context.Context, kind string) {
	records := make([]wishlistRecord, 0, len(s.items))
	for _, item := range s.items {
		addedAt := item.AddedAt
		records = append(records, wishlistRecord{
			ID:       item.ID,
			Title:    item.Title,
			Price:    json.Number(item.Price.String()),
			Image:    item.Image,
			Category: categoryName(item.Category),
			AddedAt:  &addedAt,
		})
	}
	s.persist.Save(ctx, s.key(), records)
	s.metrics.recordMutation(ctx, "wishlist", kind)
}

func (s *WishlistStore) snapshotLocked(now time.Time) WishlistSnapshot {
	snapshot := WishlistSnapshot{
		SessionID: s.sessionID,
		Items:     append([]domain.WishlistItem(nil), s.items...),
	}
	if notice, ok := s.notice.active(now); ok {
		snapshot.Notification = &notice
	}
	return snapshot
}

func (s *WishlistStore) indexLocked(id domain.ProductID) int {
	for i, item := range s.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (s *WishlistStore) key() string {
	return SessionKey(s.sessionID, WishlistStateKey)
}

func wishlistItemFrom(p domain.Product, now time.Time) domain.WishlistItem {
	return domain.WishlistItem{
		ID:       p.ID,
		Title:    p.Title,
		Price:    p.Price,
		Image:    p.PrimaryImage(),
		Category: p.Category,
		AddedAt:  now,
	}
}
