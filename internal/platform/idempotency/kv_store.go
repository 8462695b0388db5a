package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/areebabashir/intrnecommerceproj1/internal/repositories"
)

var errKeyValueRepositoryRequired = errors.New("idempotency: key-value repository is required")

// KeyValueStore keeps records in the session storage backend as JSON documents.
// Reservations are serialised per process; the storefront runs one API process per backend.
type KeyValueStore struct {
	repo repositories.KeyValueRepository
	mu   sync.Mutex
}

var _ Store = (*KeyValueStore)(nil)

// NewKeyValueStore wraps repo.
func NewKeyValueStore(repo repositories.KeyValueRepository) (*KeyValueStore, error) {
	if repo == nil {
		return nil, errKeyValueRepositoryRequired
	}
	return &KeyValueStore{repo: repo}, nil
}

// Reserve implements Store.
func (s *KeyValueStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	record, found, err := s.load(ctx, key)
	if err != nil {
		return Reservation{}, err
	}
	if !found || record.expired(now) {
		record = Record{
			Key:         key,
			Fingerprint: fingerprint,
			Status:      StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   now.Add(ttl),
		}
		if err := s.save(ctx, record); err != nil {
			return Reservation{}, err
		}
		return Reservation{State: ReservationStateNew, Record: record}, nil
	}
	if record.Fingerprint != fingerprint {
		return Reservation{}, ErrFingerprintMismatch
	}
	if record.Status == StatusCompleted {
		return Reservation{State: ReservationStateCompleted, Record: record}, nil
	}
	return Reservation{State: ReservationStatePending, Record: record}, nil
}

// SaveResponse implements Store.
func (s *KeyValueStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	record, found, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	if found && record.Fingerprint != fingerprint {
		return ErrFingerprintMismatch
	}
	if !found {
		record = Record{Key: key, Fingerprint: fingerprint, CreatedAt: now}
	}
	record.Status = StatusCompleted
	record.ResponseStatus = resp.Status
	record.ResponseHeaders = replayableHeaders(resp.Headers)
	record.ResponseBody = append([]byte(nil), resp.Body...)
	record.UpdatedAt = now
	record.ExpiresAt = now.Add(ttl)
	return s.save(ctx, record)
}

// Release drops the reservation so the client may retry with the same key.
func (s *KeyValueStore) Release(ctx context.Context, key, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Delete(ctx, storageKey(key)); err != nil && !repositories.IsNotFound(err) {
		return fmt.Errorf("idempotency: release: %w", err)
	}
	return nil
}

func (s *KeyValueStore) load(ctx context.Context, key string) (Record, bool, error) {
	raw, err := s.repo.Get(ctx, storageKey(key))
	if err != nil {
		if repositories.IsNotFound(err) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("idempotency: load: %w", err)
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		// Unreadable records are treated as absent and overwritten.
		return Record{}, false, nil
	}
	return record, true, nil
}

func (s *KeyValueStore) save(ctx context.Context, record Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("idempotency: encode: %w", err)
	}
	if err := s.repo.Put(ctx, storageKey(record.Key), raw); err != nil {
		return fmt.Errorf("idempotency: save: %w", err)
	}
	return nil
}
