package services

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/areebabashir/intrnecommerceproj1/internal/repositories"
)

const (
	// CartStateKey holds the versioned cart blob.
	CartStateKey = "productCart"
	// WishlistStateKey holds the wishlist array.
	WishlistStateKey = "wishlistItems"
	// CheckoutItemsKey holds the items handed to checkout.
	CheckoutItemsKey = "checkoutItems"
)

var errPersistentStoreRepositoryRequired = errors.New("persistent store: repository is required")

// StatePersister is the fire-and-forget persistence used by the session stores.
type StatePersister interface {
	Load(ctx context.Context, key string, dest any) bool
	Save(ctx context.Context, key string, value any)
	Remove(ctx context.Context, key string)
}

// SessionKey namespaces a state key under a session.
func SessionKey(sessionID, name string) string {
	return "sessions/" + sessionID + "/" + name
}

// PersistentStore serialises state as JSON into a key-value backend. Failures are logged and
// swallowed so callers never observe persistence errors.
type PersistentStore struct {
	repo   repositories.KeyValueRepository
	logger *zap.Logger
}

var _ StatePersister = (*PersistentStore)(nil)

// NewPersistentStore wraps the repository.
func NewPersistentStore(repo repositories.KeyValueRepository, logger *zap.Logger) (*PersistentStore, error) {
	if repo == nil {
		return nil, errPersistentStoreRepositoryRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersistentStore{repo: repo, logger: logger.Named("persistent_store")}, nil
}

// Load decodes the value stored under key into dest. It reports false when the key is absent,
// unreadable or malformed.
func (s *PersistentStore) Load(ctx context.Context, key string, dest any) bool {
	raw, err := s.repo.Get(ctx, key)
	if err != nil {
		if !repositories.IsNotFound(err) {
			s.logger.Warn("load failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.Warn("discarding malformed state", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Save stores value under key as JSON.
func (s *PersistentStore) Save(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.repo.Put(ctx, key, raw); err != nil {
		s.logger.Warn("save failed", zap.String("key", key), zap.Error(err), zap.Bool("unavailable", repositories.IsUnavailable(err)))
	}
}

// Remove deletes key.
func (s *PersistentStore) Remove(ctx context.Context, key string) {
	if err := s.repo.Delete(ctx, key); err != nil && !repositories.IsNotFound(err) {
		s.logger.Warn("remove failed", zap.String("key", key), zap.Error(err))
	}
}

// Ping checks the backend for readiness probes.
func (s *PersistentStore) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
