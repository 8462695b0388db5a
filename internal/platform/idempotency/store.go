// Package idempotency replays checkout responses for retried requests that carry the same
// Idempotency-Key within one shopping session.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL is how long a confirmed checkout stays replayable.
const DefaultTTL = 24 * time.Hour

// Status is stored with each record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// ReservationState tells the middleware what to do with a request after Reserve.
type ReservationState int

const (
	// ReservationStateNew: the caller owns the key and runs the handler.
	ReservationStateNew ReservationState = iota
	// ReservationStateCompleted: Record holds a response to replay.
	ReservationStateCompleted
	// ReservationStatePending: a concurrent request still owns the key.
	ReservationStatePending
)

type Reservation struct {
	State  ReservationState
	Record Record
}

// Record is what a Store persists per key.
type Record struct {
	Key             string              `json:"key"`
	Fingerprint     string              `json:"fingerprint"`
	Status          Status              `json:"status"`
	ResponseStatus  int                 `json:"responseStatus,omitempty"`
	ResponseHeaders map[string][]string `json:"responseHeaders,omitempty"`
	ResponseBody    []byte              `json:"responseBody,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	ExpiresAt       time.Time           `json:"expiresAt"`
}

func (r Record) expired(now time.Time) bool {
	if r.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(r.ExpiresAt)
}

func (r Record) headers() http.Header {
	h := make(http.Header, len(r.ResponseHeaders))
	for name, values := range r.ResponseHeaders {
		h[name] = append([]string(nil), values...)
	}
	return h
}

// Response is the handler output captured for replay.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Store persists reservations and responses. Expired records behave as absent.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error)
	SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key, fingerprint string) error
}

// ErrFingerprintMismatch means the key was first used for a different request.
var ErrFingerprintMismatch = errors.New("idempotency: key reserved for different request fingerprint")

// storageKey hashes the session-scoped key so arbitrary client input never becomes a raw storage key.
func storageKey(key string) string {
	return "idempotency/" + digest([]byte(strings.TrimSpace(key)))
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// unreplayedHeaders are hop-by-hop or per-response. Set-Cookie belongs to the original response only.
var unreplayedHeaders = map[string]bool{
	"Connection":        true,
	"Content-Length":    true,
	"Date":              true,
	"Keep-Alive":        true,
	"Set-Cookie":        true,
	"Te":                true,
	"Trailers":          true,
	"Transfer-Encoding": true,
	"Upgrade":           true,
}

func replayableHeaders(header http.Header) map[string][]string {
	var kept map[string][]string
	for name, values := range header {
		name = http.CanonicalHeaderKey(name)
		if unreplayedHeaders[name] {
			continue
		}
		if kept == nil {
			kept = make(map[string][]string, len(header))
		}
		kept[name] = append([]string(nil), values...)
	}
	return kept
}
