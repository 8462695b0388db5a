package handlers

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type rateLimiter interface {
	// Allow spends one attempt for key. When the bucket is empty it reports how long until the next
	// attempt would be accepted.
	Allow(key string) (bool, time.Duration)
}

// keyedLimiter keeps one token bucket per key: perWindow attempts as a burst, refilled evenly over
// the window. Buckets untouched for a full window are full again and get dropped.
type keyedLimiter struct {
	every  rate.Limit
	burst  int
	window time.Duration
	clock  func() time.Time

	mu        sync.Mutex
	buckets   map[string]*keyedBucket
	lastSweep time.Time
}

type keyedBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newKeyedLimiter(perWindow int, window time.Duration, clock func() time.Time) rateLimiter {
	if perWindow <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &keyedLimiter{
		every:   rate.Every(window / time.Duration(perWindow)),
		burst:   perWindow,
		window:  window,
		clock:   clock,
		buckets: make(map[string]*keyedBucket),
	}
}

func (l *keyedLimiter) Allow(key string) (bool, time.Duration) {
	if key = strings.TrimSpace(key); key == "" {
		key = "anonymous"
	}
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweepLocked(now)

	bucket, ok := l.buckets[key]
	if !ok {
		bucket = &keyedBucket{limiter: rate.NewLimiter(l.every, l.burst)}
		l.buckets[key] = bucket
	}
	bucket.lastSeen = now

	reservation := bucket.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, l.window
	}
	if wait := reservation.DelayFrom(now); wait > 0 {
		reservation.CancelAt(now)
		return false, wait
	}
	return true, 0
}

func (l *keyedLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for key, bucket := range l.buckets {
		if now.Sub(bucket.lastSeen) >= l.window {
			delete(l.buckets, key)
		}
	}
}
