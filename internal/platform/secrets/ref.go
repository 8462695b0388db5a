package secrets

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	schemeSecret = "secret"
	schemeLegacy = "sm"

	latestVersion = "latest"
)

var (
	errEmptyRef      = errors.New("secrets: empty reference")
	errRefScheme     = errors.New("secrets: reference must use secret:// or sm://")
	errRefSecretName = errors.New("secrets: invalid secret name")
)

// Ref names one Secret Manager secret. Version and Project are optional overrides taken from the query string.
type Ref struct {
	Name    string
	Version string
	Project string
}

// ParseRef accepts secret://name[?version=N&project=P]. The sm:// form is treated as an alias.
func ParseRef(raw string) (Ref, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Ref{}, errEmptyRef
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Ref{}, fmt.Errorf("secrets: parse %q: %w", raw, err)
	}
	switch strings.ToLower(u.Scheme) {
	case schemeSecret, schemeLegacy:
	default:
		return Ref{}, errRefScheme
	}

	name := strings.Trim(u.Host+u.Path, "/")
	if !validSecretName(name) {
		return Ref{}, fmt.Errorf("%w: %q", errRefSecretName, name)
	}
	query := u.Query()
	return Ref{
		Name:    name,
		Version: strings.TrimSpace(query.Get("version")),
		Project: strings.TrimSpace(query.Get("project")),
	}, nil
}

// Canonical is the reference without overrides, used as the cache and pin key.
func (r Ref) Canonical() string {
	return schemeSecret + "://" + r.Name
}

func (r Ref) resourceName(project, version string) string {
	return "projects/" + project + "/secrets/" + r.Name + "/versions/" + version
}

// validSecretName mirrors Secret Manager's naming rule: 1-255 of [A-Za-z0-9_-].
func validSecretName(name string) bool {
	if name == "" || len(name) > 255 {
		return false
	}
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}
