package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/areebabashir/intrnecommerceproj1/internal/repositories/memory"
)

type recordingSink struct {
	mu     sync.Mutex
	events []CartEvent
	done   chan struct{}
	err    error
}

func newRecordingSink(expected int) *recordingSink {
	return &recordingSink{done: make(chan struct{}, expected)}
}

func (s *recordingSink) PublishCartEvent(_ context.Context, evt CartEvent) error {
	s.mu.Lock()
	s.events = append(s.events, evt)
	s.mu.Unlock()
	s.done <- struct{}{}
	return s.err
}

func newTestRegistry(t *testing.T, clock *testClock, sink CartEventSink) *SessionRegistry {
	t.Helper()
	pricing, err := NewPricingEngine(DefaultPricingPolicy())
	if err != nil {
		t.Fatalf("NewPricingEngine: %v", err)
	}
	registry, err := NewSessionRegistry(SessionRegistryDeps{
		Persistence: newTestPersistence(t, memory.NewKeyValueRepository()),
		Pricing:     pricing,
		Coupons:     DefaultCouponCatalog(),
		Clock:       clock.Now,
		IdleTTL:     10 * time.Minute,
		EventSink:   sink,
	})
	if err != nil {
		t.Fatalf("NewSessionRegistry: %v", err)
	}
	return registry
}

func TestSessionRegistry_ReusesLiveSession(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(t, newTestClock(), nil)

	first, err := registry.Session(ctx, "abc")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	second, err := registry.Session(ctx, "abc")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if first != second {
		t.Fatalf("expected the same session instance")
	}
	if _, err := registry.Session(ctx, ""); !errors.Is(err, ErrSessionIDRequired) {
		t.Fatalf("expected ErrSessionIDRequired, got %v", err)
	}
}

func TestSessionRegistry_ConcurrentFirstUseBuildsOnce(t *testing.T) {
	registry := newTestRegistry(t, newTestClock(), nil)

	var wg sync.WaitGroup
	results := make([]*Session, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session, err := registry.Session(context.Background(), "shared")
			if err != nil {
				t.Errorf("Session: %v", err)
				return
			}
			results[i] = session
		}(i)
	}
	wg.Wait()

	for _, session := range results {
		if session != results[0] {
			t.Fatalf("expected a single session instance")
		}
	}
	if registry.Len() != 1 {
		t.Fatalf("expected one live session, got %d", registry.Len())
	}
}

func TestSessionRegistry_EvictIdleRehydratesFromPersistence(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	registry := newTestRegistry(t, clock, nil)

	session, err := registry.Session(ctx, "idle")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	mustAdd(t, session.Cart, product("7", "Pendant", "42"))
	if _, err := session.Wishlist.Add(ctx, product("8", "Anklet", "12")); err != nil {
		t.Fatalf("Wishlist.Add: %v", err)
	}

	if n := registry.EvictIdle(clock.Now()); n != 0 {
		t.Fatalf("expected nothing evicted, got %d", n)
	}
	clock.Advance(11 * time.Minute)
	if n := registry.EvictIdle(clock.Now()); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}
	if registry.Len() != 0 {
		t.Fatalf("expected empty registry")
	}

	again, err := registry.Session(ctx, "idle")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if again == session {
		t.Fatalf("expected a rebuilt session")
	}
	if !again.Cart.Contains("7") || !again.Wishlist.Contains("8") {
		t.Fatalf("expected state to be rehydrated")
	}
}

func TestSessionRegistry_ForwardsCartEventsToSink(t *testing.T) {
	sink := newRecordingSink(2)
	sink.err = errors.New("topic unavailable")
	registry := newTestRegistry(t, newTestClock(), sink)

	session, err := registry.Session(context.Background(), "events")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	mustAdd(t, session.Cart, product("1", "Ring", "30"))
	session.Cart.ClearCart(context.Background())

	for i := 0; i < 2; i++ {
		select {
		case <-sink.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	kinds := map[CartEventKind]bool{}
	for _, evt := range sink.events {
		if evt.SessionID != "events" || evt.ID == "" {
			t.Fatalf("unexpected event %+v", evt)
		}
		kinds[evt.Kind] = true
	}
	if !kinds[CartEventItemAdded] || !kinds[CartEventCleared] {
		t.Fatalf("expected add and clear events, got %v", kinds)
	}
}

func TestNewSessionRegistryValidatesDeps(t *testing.T) {
	if _, err := NewSessionRegistry(SessionRegistryDeps{}); !errors.Is(err, errRegistryPersistenceRequired) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestSessionRegistry_DeliversSessionEventsInCommitOrder(t *testing.T) {
	const mutations = 500
	sink := newRecordingSink(mutations)
	registry := newTestRegistry(t, newTestClock(), sink)

	session, err := registry.Session(context.Background(), "ordered")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	for i := 0; i < mutations; i++ {
		mustAdd(t, session.Cart, product("1", "Ring", "30"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := registry.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != mutations {
		t.Fatalf("expected %d events, got %d", mutations, len(sink.events))
	}
	for i, evt := range sink.events {
		if evt.Totals.ItemCount != i+1 {
			t.Fatalf("event %d carries item count %d; events left the session out of order", i, evt.Totals.ItemCount)
		}
	}
}

func TestSessionRegistry_ConcurrentMutationsKeepCommitOrder(t *testing.T) {
	const writers, perWriter = 8, 40
	sink := newRecordingSink(writers * perWriter)
	registry := newTestRegistry(t, newTestClock(), sink)

	session, err := registry.Session(context.Background(), "racing")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := session.Cart.AddItem(context.Background(), product("1", "Ring", "30")); err != nil {
					t.Errorf("AddItem: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := registry.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	for i, evt := range sink.events {
		if evt.Totals.ItemCount != i+1 {
			t.Fatalf("event %d carries item count %d, want %d", i, evt.Totals.ItemCount, i+1)
		}
	}
	if registry.Len() != 0 {
		t.Fatalf("Close must detach live sessions")
	}
}
