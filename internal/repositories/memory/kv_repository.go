package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/areebabashir/intrnecommerceproj1/internal/repositories"
)

// KeyValueRepository keeps documents in process memory. State is lost on restart.
type KeyValueRepository struct {
	mu      sync.RWMutex
	records map[string][]byte
}

var _ repositories.KeyValueRepository = (*KeyValueRepository)(nil)

// NewKeyValueRepository constructs an empty memory-backed store.
func NewKeyValueRepository() *KeyValueRepository {
	return &KeyValueRepository{records: make(map[string][]byte)}
}

// Get returns a copy of the stored value.
func (r *KeyValueRepository) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	value, ok := r.records[key]
	if !ok {
		return nil, repositories.NewStoreError("memory.get", repositories.ErrorKindNotFound, repositories.ErrKeyNotFound)
	}
	return append([]byte(nil), value...), nil
}

// Put stores a copy of value under key.
func (r *KeyValueRepository) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key. Missing keys are ignored.
func (r *KeyValueRepository) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, key)
	return nil
}

// Keys lists stored keys with the given prefix, sorted.
func (r *KeyValueRepository) Keys(prefix string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.records))
	for key := range r.records {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Ping always succeeds.
func (r *KeyValueRepository) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (r *KeyValueRepository) Close() error {
	return nil
}
