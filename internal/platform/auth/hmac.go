package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"
)

const sessionValueSeparator = "."

var (
	// ErrSigningKeyRequired indicates the signer was constructed without key material.
	ErrSigningKeyRequired = errors.New("auth: session signing key is required")
	// ErrSessionValueInvalid indicates a cookie value that is malformed or fails verification.
	ErrSessionValueInvalid = errors.New("auth: session value invalid")
)

// SessionSigner signs session identifiers as "<ulid>.<hmac-sha256>" cookie values.
type SessionSigner struct {
	key []byte
}

// NewSessionSigner constructs a signer from the configured signing key.
func NewSessionSigner(key string) (*SessionSigner, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrSigningKeyRequired
	}
	return &SessionSigner{key: []byte(key)}, nil
}

// Sign returns the cookie value for id.
func (s *SessionSigner) Sign(id string) string {
	signature := computeHMAC(s.key, []byte(id))
	return id + sessionValueSeparator + base64.RawURLEncoding.EncodeToString(signature)
}

// Verify checks value and returns the embedded session id. Only ulid identifiers are accepted.
func (s *SessionSigner) Verify(value string) (string, error) {
	value = strings.TrimSpace(value)
	id, rawSignature, ok := strings.Cut(value, sessionValueSeparator)
	if !ok || id == "" || rawSignature == "" {
		return "", ErrSessionValueInvalid
	}
	if _, err := ulid.ParseStrict(id); err != nil {
		return "", ErrSessionValueInvalid
	}
	signature, err := decodeSignature(rawSignature)
	if err != nil {
		return "", ErrSessionValueInvalid
	}
	if !hmac.Equal(signature, computeHMAC(s.key, []byte(id))) {
		return "", ErrSessionValueInvalid
	}
	return id, nil
}

func decodeSignature(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("auth: empty signature")
	}
	if decoded, err := base64.RawURLEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	if decoded, err := hex.DecodeString(value); err == nil {
		return decoded, nil
	}
	return nil, errors.New("auth: signature must be base64url or hex encoded")
}

func computeHMAC(secret []byte, message []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(message)
	return mac.Sum(nil)
}
