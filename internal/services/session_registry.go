package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	defaultSessionIdleTTL = 30 * time.Minute
	defaultEventTimeout   = 5 * time.Second
	defaultEventBuffer    = 64
)

var (
	errRegistryPersistenceRequired = errors.New("session registry: persistence is required")
	errRegistryPricingRequired     = errors.New("session registry: pricing engine is required")
	errRegistryCouponsRequired     = errors.New("session registry: coupon resolver is required")
	// ErrSessionIDRequired indicates an empty session id was requested.
	ErrSessionIDRequired = errors.New("session registry: session id is required")
)

// CartEventSink receives every cart event of every session.
type CartEventSink interface {
	PublishCartEvent(ctx context.Context, evt CartEvent) error
}

// SessionRegistryDeps wires the shared collaborators of every session.
type SessionRegistryDeps struct {
	Persistence     StatePersister
	Pricing         *PricingEngine
	Coupons         CouponResolver
	Clock           func() time.Time
	NotificationTTL time.Duration
	IdleTTL         time.Duration
	EventTimeout    time.Duration
	// EventBuffer is the per-session queue length; mutations block while it is full.
	EventBuffer     int
	Metrics         *StoreMetrics
	EventSink       CartEventSink
	Logger          func(context.Context, string, map[string]any)
}

// Session groups the stores that belong to one shopper.
type Session struct {
	ID       string
	Cart     *CartStore
	Wishlist *WishlistStore
	Checkout *CheckoutGate

	unsubscribe func()
	events      *eventQueue
	lastSeen    time.Time
}

// SessionRegistry lazily builds and hydrates session stores and evicts idle ones. Evicted
// sessions are rebuilt from persistence on their next request.
type SessionRegistry struct {
	deps    SessionRegistryDeps
	now     func() time.Time
	idleTTL time.Duration
	logger  func(context.Context, string, map[string]any)

	group singleflight.Group

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionRegistry validates deps and returns an empty registry.
func NewSessionRegistry(deps SessionRegistryDeps) (*SessionRegistry, error) {
	if deps.Persistence == nil {
		return nil, errRegistryPersistenceRequired
	}
	if deps.Pricing == nil {
		return nil, errRegistryPricingRequired
	}
	if deps.Coupons == nil {
		return nil, errRegistryCouponsRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idleTTL := deps.IdleTTL
	if idleTTL <= 0 {
		idleTTL = defaultSessionIdleTTL
	}
	if deps.EventTimeout <= 0 {
		deps.EventTimeout = defaultEventTimeout
	}
	if deps.EventBuffer <= 0 {
		deps.EventBuffer = defaultEventBuffer
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &SessionRegistry{
		deps:     deps,
		now:      func() time.Time { return clock().UTC() },
		idleTTL:  idleTTL,
		logger:   logger,
		sessions: make(map[string]*Session),
	}, nil
}

// Session returns the live session for id, hydrating it on first use.
func (r *SessionRegistry) Session(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrSessionIDRequired
	}
	if session, ok := r.touch(id); ok {
		return session, nil
	}

	value, err, _ := r.group.Do(id, func() (any, error) {
		if session, ok := r.touch(id); ok {
			return session, nil
		}
		session, err := r.build(ctx, id)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		session.lastSeen = r.now()
		r.sessions[id] = session
		r.mu.Unlock()
		return session, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*Session), nil
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// EvictIdle drops sessions not used since now minus the idle TTL and returns how many were dropped.
func (r *SessionRegistry) EvictIdle(now time.Time) int {
	cutoff := now.UTC().Add(-r.idleTTL)
	var evicted []*Session

	r.mu.Lock()
	for id, session := range r.sessions {
		if session.lastSeen.Before(cutoff) {
			evicted = append(evicted, session)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, session := range evicted {
		if session.unsubscribe != nil {
			session.unsubscribe()
		}
	}
	return len(evicted)
}

// Close detaches every live session and waits until their queued events are delivered or ctx ends.
func (r *SessionRegistry) Close(ctx context.Context) error {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for id, session := range r.sessions {
		sessions = append(sessions, session)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, session := range sessions {
		if session.unsubscribe != nil {
			session.unsubscribe()
		}
	}
	for _, session := range sessions {
		if session.events == nil {
			continue
		}
		select {
		case <-session.events.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Run evicts idle sessions every interval until ctx is cancelled.
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.EvictIdle(r.now()); n > 0 {
				r.logger(ctx, "session.evicted", map[string]any{"count": n, "live": r.Len()})
			}
		}
	}
}

func (r *SessionRegistry) touch(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if ok {
		session.lastSeen = r.now()
	}
	return session, ok
}

func (r *SessionRegistry) build(ctx context.Context, id string) (*Session, error) {
	// Hydration must not be cut short by the request that happened to create the session.
	hydrateCtx := context.WithoutCancel(ctx)

	cart, err := NewCartStore(hydrateCtx, CartStoreDeps{
		SessionID:       id,
		Pricing:         r.deps.Pricing,
		Coupons:         r.deps.Coupons,
		Persistence:     r.deps.Persistence,
		Clock:           r.deps.Clock,
		NotificationTTL: r.deps.NotificationTTL,
		Metrics:         r.deps.Metrics,
		Logger:          r.deps.Logger,
	})
	if err != nil {
		return nil, err
	}
	wishlist, err := NewWishlistStore(hydrateCtx, WishlistStoreDeps{
		SessionID:       id,
		Persistence:     r.deps.Persistence,
		Clock:           r.deps.Clock,
		NotificationTTL: r.deps.NotificationTTL,
		Metrics:         r.deps.Metrics,
		Logger:          r.deps.Logger,
	})
	if err != nil {
		return nil, err
	}
	checkout, err := NewCheckoutGate(CheckoutGateDeps{
		Cart:   cart,
		Clock:  r.deps.Clock,
		Logger: r.deps.Logger,
	})
	if err != nil {
		return nil, err
	}

	session := &Session{ID: id, Cart: cart, Wishlist: wishlist, Checkout: checkout}
	if r.deps.EventSink != nil {
		queue := newEventQueue(r.deps.EventBuffer, r.deliver)
		unsubscribe := cart.Subscribe(queue.push)
		session.events = queue
		session.unsubscribe = func() {
			unsubscribe()
			queue.close()
		}
	}
	r.logger(ctx, "session.hydrated", map[string]any{"sessionId": id, "cartItems": cart.Count(), "wishlistItems": wishlist.Count()})
	return session, nil
}

// deliver publishes one event. It runs on the session's queue goroutine, so a session's events
// reach the sink one at a time and in commit order.
func (r *SessionRegistry) deliver(evt CartEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), r.deps.EventTimeout)
	defer cancel()
	if err := r.deps.EventSink.PublishCartEvent(ctx, evt); err != nil {
		r.logger(ctx, "session.event_publish_failed", map[string]any{
			"sessionId": evt.SessionID,
			"eventId":   evt.ID,
			"kind":      string(evt.Kind),
			"error":     err.Error(),
		})
	}
}

// eventQueue is a per-session FIFO drained by a single goroutine.
type eventQueue struct {
	mu     sync.Mutex
	closed bool
	events chan CartEvent
	done   chan struct{}
}

func newEventQueue(size int, deliver func(CartEvent)) *eventQueue {
	q := &eventQueue{events: make(chan CartEvent, size), done: make(chan struct{})}
	go func() {
		defer close(q.done)
		for evt := range q.events {
			deliver(evt)
		}
	}()
	return q
}

// push enqueues evt. Events pushed after close are dropped.
func (q *eventQueue) push(evt CartEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.events <- evt
}

// close stops accepting events; queued ones are still delivered.
func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.events)
	}
}
