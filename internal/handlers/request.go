package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Cart, wishlist and checkout payloads are small; 16KiB leaves room for a full shipping address.
const maxRequestBodySize = 16 << 10

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")
	errTrailingData = errors.New("request body must contain a single JSON object")
)

// decodeJSONBody decodes exactly one JSON value into dest. Unknown fields are rejected so clients
// cannot smuggle prices or totals into cart requests.
func decodeJSONBody(r *http.Request, dest any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errEmptyBody
	}
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBodySize))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return errBodyTooLarge
		case errors.Is(err, io.EOF):
			return errEmptyBody
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	return nil
}

func setNoStoreHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Cache-Control", "no-store, no-cache, max-age=0, must-revalidate")
	h.Set("Pragma", "no-cache")
}

// queryLimit reads a positive ?limit, capped at max.
func queryLimit(r *http.Request, fallback, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(n, max), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
