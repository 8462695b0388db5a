package observability

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rune caps for request-derived log fields.
const (
	maxRouteRunes   = 180
	maxMethodRunes  = 10
	maxSessionRunes = 64
	maxAddrRunes    = 64
)

// clip removes control characters, which could otherwise forge log lines, and keeps at most max runes.
func clip(value string, max int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
	if utf8.RuneCountInString(cleaned) <= max {
		return cleaned
	}
	runes := []rune(cleaned)
	return string(runes[:max])
}

func logRoute(route string) string {
	if route == "" {
		return "/"
	}
	return clip(route, maxRouteRunes)
}

func logMethod(method string) string { return clip(method, maxMethodRunes) }

// logSessionID receives the ulid part of a session cookie only; signatures never reach logs.
func logSessionID(id string) string { return clip(id, maxSessionRunes) }
