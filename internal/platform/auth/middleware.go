package auth

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/areebabashir/intrnecommerceproj1/internal/platform/requestctx"
)

const (
	// DefaultSessionCookieName names the cookie carrying the signed session id.
	DefaultSessionCookieName = "storefront_session"
	defaultSessionMaxAge     = 30 * 24 * time.Hour
)

// SessionCookies resolves or issues the shopper session for each request.
type SessionCookies struct {
	signer *SessionSigner
	name   string
	secure bool
	maxAge time.Duration
	newID  func() string
}

// SessionOption customises SessionCookies.
type SessionOption func(*SessionCookies)

// WithCookieName overrides the cookie name.
func WithCookieName(name string) SessionOption {
	return func(s *SessionCookies) {
		if name = strings.TrimSpace(name); name != "" {
			s.name = name
		}
	}
}

// WithCookieSecure marks the cookie Secure.
func WithCookieSecure(secure bool) SessionOption {
	return func(s *SessionCookies) {
		s.secure = secure
	}
}

// WithCookieMaxAge sets the cookie lifetime.
func WithCookieMaxAge(d time.Duration) SessionOption {
	return func(s *SessionCookies) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

// WithSessionIDGenerator injects the id source, primarily for tests.
func WithSessionIDGenerator(fn func() string) SessionOption {
	return func(s *SessionCookies) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewSessionCookies constructs the session middleware around signer.
func NewSessionCookies(signer *SessionSigner, opts ...SessionOption) *SessionCookies {
	s := &SessionCookies{
		signer: signer,
		name:   DefaultSessionCookieName,
		maxAge: defaultSessionMaxAge,
		newID:  func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Middleware stores the session id on the request context. A missing or tampered cookie starts a
// new session and sets a fresh cookie.
func (s *SessionCookies) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s == nil || s.signer == nil {
			respondAuthError(w, http.StatusServiceUnavailable, "session_unavailable", "session signing is not configured")
			return
		}

		if cookie, err := r.Cookie(s.name); err == nil {
			id, verifyErr := s.signer.Verify(cookie.Value)
			if verifyErr == nil {
				next.ServeHTTP(w, r.WithContext(requestctx.WithSessionID(ctx, id)))
				return
			}
			requestctx.Logger(ctx).Info("session cookie rejected", zap.Error(verifyErr))
		}

		id := s.newID()
		http.SetCookie(w, &http.Cookie{
			Name:     s.name,
			Value:    s.signer.Sign(id),
			Path:     "/",
			MaxAge:   int(s.maxAge / time.Second),
			HttpOnly: true,
			Secure:   s.secure,
			SameSite: http.SameSiteLaxMode,
		})
		next.ServeHTTP(w, r.WithContext(requestctx.WithSessionID(ctx, id)))
	})
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   code,
		"message": message,
		"status":  status,
	})
}
