// Package textutil holds small parsers for list-valued environment variables.
package textutil

import "strings"

// Pairs splits "a=1, b=2" into a map. Entries without "=" or with a blank side are ignored,
// and later duplicates win. It returns nil when nothing usable remains.
func Pairs(raw string) map[string]string {
	var out map[string]string
	for _, field := range strings.FieldsFunc(raw, isListSeparator) {
		name, val, found := strings.Cut(field, "=")
		name, val = strings.TrimSpace(name), strings.TrimSpace(val)
		if !found || name == "" || val == "" {
			continue
		}
		if out == nil {
			out = map[string]string{}
		}
		out[name] = val
	}
	return out
}

func isListSeparator(r rune) bool {
	return r == ',' || r == ';' || r == '\n'
}
