package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/areebabashir/intrnecommerceproj1/internal/domain"
)

var (
	errCartSessionRequired     = errors.New("cart store: session id is required")
	errCartPricingRequired     = errors.New("cart store: pricing engine is required")
	errCartCouponsRequired     = errors.New("cart store: coupon resolver is required")
	errCartPersistenceRequired = errors.New("cart store: persistence is required")
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart store: invalid input")

// ErrCartUnavailable indicates the cart cannot serve the request due to missing dependencies.
var ErrCartUnavailable = errors.New("cart store: unavailable")

// CartEventKind names the mutation that produced a CartEvent.
type CartEventKind string

const (
	CartEventItemAdded         CartEventKind = "item_added"
	CartEventItemRemoved       CartEventKind = "item_removed"
	CartEventQuantityUpdated   CartEventKind = "quantity_updated"
	CartEventCouponApplied     CartEventKind = "coupon_applied"
	CartEventCouponRemoved     CartEventKind = "coupon_removed"
	CartEventCleared           CartEventKind = "cart_cleared"
	CartEventCheckoutPrepared  CartEventKind = "checkout_prepared"
	CartEventCheckoutConfirmed CartEventKind = "checkout_confirmed"
)

// CartEvent is delivered to subscribers after every mutation.
type CartEvent struct {
	ID            string
	Kind          CartEventKind
	SessionID     string
	OccurredAt    time.Time
	Items         []domain.LineItem
	AppliedCoupon *domain.AppliedCoupon
	Totals        domain.CartTotals
}

// CartSnapshot is a consistent read of the cart.
type CartSnapshot struct {
	SessionID     string
	Items         []domain.LineItem
	AppliedCoupon *domain.AppliedCoupon
	Totals        domain.CartTotals
	Notification  *Notification
}

// CartStoreDeps wires the collaborators for a per-session cart.
type CartStoreDeps struct {
	SessionID       string
	Pricing         *PricingEngine
	Coupons         CouponResolver
	Persistence     StatePersister
	Clock           func() time.Time
	NotificationTTL time.Duration
	Metrics         *StoreMetrics
	Logger          func(context.Context, string, map[string]any)
}

// CartStore owns the cart of one session. All operations are serialised by a mutex; subscribers
// are notified after the lock is released, in commit order. Subscribers must not mutate the cart
// from inside the callback.
type CartStore struct {
	sessionID string
	pricing   *PricingEngine
	coupons   CouponResolver
	persist   StatePersister
	now       func() time.Time
	metrics   *StoreMetrics
	logger    func(context.Context, string, map[string]any)

	mu     sync.Mutex
	state  domain.CartState
	notice notificationBoard

	// deliverMu is taken before mu is released so events leave in the order they were committed.
	deliverMu sync.Mutex

	subsMu      sync.Mutex
	subscribers map[uint64]func(CartEvent)
	nextSubID   uint64
}

// NewCartStore constructs a cart and hydrates it from persistence.
func NewCartStore(ctx context.Context, deps CartStoreDeps) (*CartStore, error) {
	if deps.SessionID == "" {
		return nil, errCartSessionRequired
	}
	if deps.Pricing == nil {
		return nil, errCartPricingRequired
	}
	if deps.Coupons == nil {
		return nil, errCartCouponsRequired
	}
	if deps.Persistence == nil {
		return nil, errCartPersistenceRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	store := &CartStore{
		sessionID:   deps.SessionID,
		pricing:     deps.Pricing,
		coupons:     deps.Coupons,
		persist:     deps.Persistence,
		now:         func() time.Time { return clock().UTC() },
		metrics:     deps.Metrics,
		logger:      logger,
		notice:      newNotificationBoard(deps.NotificationTTL),
		subscribers: make(map[uint64]func(CartEvent)),
	}
	store.hydrate(ctx)
	return store, nil
}

func (s *CartStore) hydrate(ctx context.Context) {
	var blob persistedCart
	if !s.persist.Load(ctx, s.key(CartStateKey), &blob) {
		return
	}
	state, dropped := decodeCartState(blob.cartBlob, s.coupons, s.now())
	if len(dropped) > 0 {
		s.logger(ctx, "cart.hydrate.dropped", map[string]any{
			"sessionId": s.sessionID,
			"dropped":   dropped,
		})
	}
	s.state = state
}

// SessionID returns the owning session.
func (s *CartStore) SessionID() string {
	return s.sessionID
}

// AddItem increments the quantity of an existing line or appends a new line with quantity 1.
func (s *CartStore) AddItem(ctx context.Context, product domain.Product) (CartSnapshot, error) {
	if product.ID.IsZero() {
		return CartSnapshot{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if product.Price.IsNegative() {
		return CartSnapshot{}, fmt.Errorf("%w: price must be non-negative", ErrCartInvalidInput)
	}

	return s.mutate(ctx, CartEventItemAdded, func(now time.Time) {
		for i := range s.state.Items {
			if s.state.Items[i].ID == product.ID {
				s.state.Items[i].Quantity++
				s.notice.post(now, NotificationSuccess, product.Title+" added to cart")
				return
			}
		}
		s.state.Items = append(s.state.Items, domain.LineItem{
			ID:        product.ID,
			Title:     product.Title,
			UnitPrice: product.Price,
			Quantity:  1,
			Image:     product.PrimaryImage(),
			Category:  product.Category,
			AddedAt:   now,
		})
		s.notice.post(now, NotificationSuccess, product.Title+" added to cart")
	}), nil
}

// RemoveItem deletes the line for id. Removing an absent id leaves the items unchanged.
func (s *CartStore) RemoveItem(ctx context.Context, id domain.ProductID) CartSnapshot {
	return s.mutate(ctx, CartEventItemRemoved, func(now time.Time) {
		s.removeLocked(id)
		s.notice.post(now, NotificationInfo, "Item removed from cart")
	})
}

// UpdateQuantity sets the quantity of an existing line. A quantity of zero or less removes it.
// Unknown ids are ignored.
func (s *CartStore) UpdateQuantity(ctx context.Context, id domain.ProductID, quantity int) CartSnapshot {
	s.mu.Lock()
	now := s.now()
	idx := s.indexLocked(id)
	if idx < 0 {
		snapshot := s.snapshotLocked(now)
		s.mu.Unlock()
		return snapshot
	}
	kind := CartEventQuantityUpdated
	if quantity <= 0 {
		kind = CartEventItemRemoved
		s.removeLocked(id)
		s.notice.post(now, NotificationInfo, "Item removed from cart")
	} else {
		s.state.Items[idx].Quantity = quantity
		s.notice.post(now, NotificationSuccess, "Quantity updated")
	}
	snapshot := s.commitLocked(ctx, now)
	s.unlockAndPublish(ctx, kind, now, snapshot)
	return snapshot
}

// ApplyCoupon resolves code and applies it when the current subtotal meets the coupon minimum.
// Failures leave any applied coupon untouched and return ErrCouponNotFound or an
// *InsufficientOrderValueError.
func (s *CartStore) ApplyCoupon(ctx context.Context, code string) (CartSnapshot, error) {
	normalized := NormalizeCouponCode(code)
	coupon, err := s.coupons.Resolve(normalized)
	if err != nil {
		s.metrics.recordCoupon(ctx, "unknown", "not_found")
		return s.reject("Invalid coupon code"), ErrCouponNotFound
	}

	s.mu.Lock()
	now := s.now()
	subtotal := s.pricing.Subtotal(s.state.Items)
	if subtotal.LessThan(coupon.MinOrderSubtotal) {
		s.notice.post(now, NotificationError, "Minimum order of $"+coupon.MinOrderSubtotal.String()+" required")
		snapshot := s.snapshotLocked(now)
		s.mu.Unlock()
		s.metrics.recordCoupon(ctx, coupon.Code, "insufficient_order_value")
		return snapshot, &InsufficientOrderValueError{
			Code:     coupon.Code,
			Required: coupon.MinOrderSubtotal,
			Subtotal: subtotal,
		}
	}
	s.state.AppliedCoupon = &domain.AppliedCoupon{Coupon: coupon, AppliedAt: now}
	s.notice.post(now, NotificationSuccess, fmt.Sprintf("Coupon %q applied! %s", coupon.Code, coupon.Description))
	snapshot := s.commitLocked(ctx, now)
	s.metrics.recordCoupon(ctx, coupon.Code, "applied")
	s.unlockAndPublish(ctx, CartEventCouponApplied, now, snapshot)
	return snapshot, nil
}

// RemoveCoupon clears the applied coupon.
func (s *CartStore) RemoveCoupon(ctx context.Context) CartSnapshot {
	return s.mutate(ctx, CartEventCouponRemoved, func(now time.Time) {
		s.state.AppliedCoupon = nil
		s.notice.post(now, NotificationInfo, "Coupon removed")
	})
}

// ClearCart empties the cart, drops the coupon and purges the persisted key in one step.
func (s *CartStore) ClearCart(ctx context.Context) CartSnapshot {
	_, after := s.clear(ctx, CartEventCleared, "Cart cleared")
	return after
}

// PrepareCheckout hands the current items to checkout under the checkoutItems key.
func (s *CartStore) PrepareCheckout(ctx context.Context) (CartSnapshot, error) {
	s.mu.Lock()
	if len(s.state.Items) == 0 {
		s.mu.Unlock()
		return CartSnapshot{}, fmt.Errorf("%w: cart is empty", ErrCartInvalidInput)
	}
	now := s.now()
	s.persist.Save(ctx, s.key(CheckoutItemsKey), encodeCartState(domain.CartState{Items: s.state.Items}).Items)
	s.notice.post(now, NotificationInfo, "Proceeding to checkout")
	snapshot := s.snapshotLocked(now)
	s.unlockAndPublish(ctx, CartEventCheckoutPrepared, now, snapshot)
	return snapshot, nil
}

// completeCheckout clears the cart after a confirmed order and returns the state it held. The
// emptiness check and the clear happen under one lock; an empty cart is left untouched and
// reported with ok false.
func (s *CartStore) completeCheckout(ctx context.Context) (before CartSnapshot, ok bool) {
	s.mu.Lock()
	if len(s.state.Items) == 0 {
		s.mu.Unlock()
		return CartSnapshot{}, false
	}
	before, _ = s.clearLocked(ctx, CartEventCheckoutConfirmed, "Order placed")
	s.persist.Remove(ctx, s.key(CheckoutItemsKey))
	return before, true
}

func (s *CartStore) clear(ctx context.Context, kind CartEventKind, message string) (CartSnapshot, CartSnapshot) {
	s.mu.Lock()
	return s.clearLocked(ctx, kind, message)
}

// clearLocked must be called with mu held and releases it.
func (s *CartStore) clearLocked(ctx context.Context, kind CartEventKind, message string) (CartSnapshot, CartSnapshot) {
	now := s.now()
	before := s.snapshotLocked(now)
	s.state = domain.CartState{}
	s.notice.post(now, NotificationInfo, message)
	s.persist.Remove(ctx, s.key(CartStateKey))
	after := s.snapshotLocked(now)
	s.unlockAndPublish(ctx, kind, now, after)
	return before, after
}

// Count returns the total quantity across lines.
func (s *CartStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, item := range s.state.Items {
		count += item.Quantity
	}
	return count
}

// Contains reports whether id has a line in the cart.
func (s *CartStore) Contains(id domain.ProductID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(id) >= 0
}

// Snapshot returns items, coupon, totals and the active notification.
func (s *CartStore) Snapshot() CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(s.now())
}

// Notification returns the current notification while it has not expired.
func (s *CartStore) Notification() (Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notice.active(s.now())
}

// DismissNotification clears the current notification.
func (s *CartStore) DismissNotification() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice.dismiss()
}

// Subscribe registers fn for every subsequent CartEvent. The returned func unsubscribes.
func (s *CartStore) Subscribe(fn func(CartEvent)) func() {
	if fn == nil {
		return func() {}
	}
	s.subsMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subscribers, id)
			s.subsMu.Unlock()
		})
	}
}

func (s *CartStore) mutate(ctx context.Context, kind CartEventKind, apply func(now time.Time)) CartSnapshot {
	s.mu.Lock()
	now := s.now()
	apply(now)
	snapshot := s.commitLocked(ctx, now)
	s.unlockAndPublish(ctx, kind, now, snapshot)
	return snapshot
}

// commitLocked persists the cart blob and returns the post-mutation snapshot.
func (s *CartStore) commitLocked(ctx context.Context, now time.Time) CartSnapshot {
	s.persist.Save(ctx, s.key(CartStateKey), encodeCartState(s.state))
	return s.snapshotLocked(now)
}

// unlockAndPublish releases mu and notifies subscribers. It must be called with mu held.
func (s *CartStore) unlockAndPublish(ctx context.Context, kind CartEventKind, now time.Time, snapshot CartSnapshot) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	s.mu.Unlock()

	s.metrics.recordMutation(ctx, "cart", string(kind))
	s.publish(s.event(kind, now, snapshot))
}

func (s *CartStore) reject(message string) CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.notice.post(now, NotificationError, message)
	return s.snapshotLocked(now)
}

func (s *CartStore) publish(evt CartEvent) {
	s.subsMu.Lock()
	subscribers := make([]func(CartEvent), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subscribers = append(subscribers, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range subscribers {
		fn(evt)
	}
}

func (s *CartStore) event(kind CartEventKind, now time.Time, snapshot CartSnapshot) CartEvent {
	return CartEvent{
		ID:            uuid.NewString(),
		Kind:          kind,
		SessionID:     s.sessionID,
		OccurredAt:    now,
		Items:         snapshot.Items,
		AppliedCoupon: snapshot.AppliedCoupon,
		Totals:        snapshot.Totals,
	}
}

func (s *CartStore) snapshotLocked(now time.Time) CartSnapshot {
	state := s.state.Clone()
	snapshot := CartSnapshot{
		SessionID:     s.sessionID,
		Items:         state.Items,
		AppliedCoupon: state.AppliedCoupon,
		Totals:        s.pricing.Price(state.Items, state.AppliedCoupon),
	}
	if notice, ok := s.notice.active(now); ok {
		snapshot.Notification = &notice
	}
	return snapshot
}

func (s *CartStore) removeLocked(id domain.ProductID) {
	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}
	s.state.Items = append(s.state.Items[:idx], s.state.Items[idx+1:]...)
}

func (s *CartStore) indexLocked(id domain.ProductID) int {
	for i, item := range s.state.Items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (s *CartStore) key(name string) string {
	return SessionKey(s.sessionID, name)
}
