package idempotency

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/areebabashir/intrnecommerceproj1/internal/repositories/memory"
)

func TestKeyValueStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewKeyValueRepository()
	store, err := NewKeyValueStore(repo)
	if err != nil {
		t.Fatalf("NewKeyValueStore: %v", err)
	}

	res, err := store.Reserve(ctx, "s1|k", "fp", fixedTime, time.Hour)
	if err != nil || res.State != ReservationStateNew {
		t.Fatalf("expected new reservation, got %+v err=%v", res, err)
	}
	if _, err := repo.Get(ctx, storageKey("s1|k")); err != nil {
		t.Fatalf("expected record under hashed key: %v", err)
	}

	res, err = store.Reserve(ctx, "s1|k", "fp", fixedTime, time.Hour)
	if err != nil || res.State != ReservationStatePending {
		t.Fatalf("expected pending reservation, got %+v err=%v", res, err)
	}
	if _, err := store.Reserve(ctx, "s1|k", "other", fixedTime, time.Hour); !errors.Is(err, ErrFingerprintMismatch) {
		t.Fatalf("expected fingerprint mismatch, got %v", err)
	}

	headers := http.Header{"Content-Type": {"application/json"}, "Set-Cookie": {"a=b"}}
	if err := store.SaveResponse(ctx, "s1|k", "fp", Response{Status: 200, Headers: headers, Body: []byte(`{}`)}, fixedTime, time.Hour); err != nil {
		t.Fatalf("SaveResponse: %v", err)
	}
	res, err = store.Reserve(ctx, "s1|k", "fp", fixedTime.Add(time.Minute), time.Hour)
	if err != nil || res.State != ReservationStateCompleted {
		t.Fatalf("expected completed reservation, got %+v err=%v", res, err)
	}
	if res.Record.ResponseStatus != 200 || string(res.Record.ResponseBody) != `{}` {
		t.Fatalf("unexpected stored response %+v", res.Record)
	}
	if _, ok := res.Record.ResponseHeaders["Set-Cookie"]; ok {
		t.Fatalf("set-cookie must be stripped")
	}
}

func TestKeyValueStoreExpiredRecordIsReplaced(t *testing.T) {
	ctx := context.Background()
	store, _ := NewKeyValueStore(memory.NewKeyValueRepository())

	if _, err := store.Reserve(ctx, "k", "fp", fixedTime, time.Minute); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	res, err := store.Reserve(ctx, "k", "different", fixedTime.Add(2*time.Minute), time.Minute)
	if err != nil {
		t.Fatalf("expected expired record to be replaced, got %v", err)
	}
	if res.State != ReservationStateNew || res.Record.Fingerprint != "different" {
		t.Fatalf("unexpected reservation %+v", res)
	}
}

func TestKeyValueStoreReleaseMissingKey(t *testing.T) {
	store, _ := NewKeyValueStore(memory.NewKeyValueRepository())
	if err := store.Release(context.Background(), "never-reserved", "fp"); err != nil {
		t.Fatalf("expected release of unknown key to succeed, got %v", err)
	}
}

func TestNewKeyValueStoreRequiresRepository(t *testing.T) {
	if _, err := NewKeyValueStore(nil); !errors.Is(err, errKeyValueRepositoryRequired) {
		t.Fatalf("expected repository error, got %v", err)
	}
}
