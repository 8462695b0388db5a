package config

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var errNoSecretResolver = errors.New("no secret resolver configured")

// SecretResolver turns a secret:// reference into its value.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts a function to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// SecretError wraps a failed resolution of Ref.
type SecretError struct {
	Field string
	Ref   string
	Err   error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("config: resolve %s (%s): %v", e.Field, e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError reports references that resolved to an empty value.
type MissingSecretsError struct {
	fields []string
}

func (e *MissingSecretsError) Error() string {
	return "config: empty secrets for [" + strings.Join(e.fields, ", ") + "]"
}

// Names returns the config fields whose secret was empty, sorted.
func (e *MissingSecretsError) Names() []string {
	return append([]string(nil), e.fields...)
}

// IsSecretReference reports whether value names a secret rather than holding one.
func IsSecretReference(value string) bool {
	value = strings.TrimSpace(value)
	return strings.HasPrefix(value, "secret://") || strings.HasPrefix(value, "sm://")
}

func canonicalSecretRef(value string) string {
	value = strings.TrimSpace(value)
	if rest, ok := strings.CutPrefix(value, "sm://"); ok {
		return "secret://" + rest
	}
	return value
}

func (c *Config) resolveSecrets(ctx context.Context, resolver SecretResolver) error {
	targets := map[string]*string{
		"Session.SigningKey": &c.Session.SigningKey,
		"Catalog.AuthToken":  &c.Catalog.AuthToken,
	}

	var empty []string
	for field, value := range targets {
		if !IsSecretReference(*value) {
			continue
		}
		ref := canonicalSecretRef(*value)
		if resolver == nil {
			return &SecretError{Field: field, Ref: ref, Err: errNoSecretResolver}
		}
		resolved, err := resolver.ResolveSecret(ctx, ref)
		if err != nil {
			return &SecretError{Field: field, Ref: ref, Err: err}
		}
		resolved = strings.TrimSpace(resolved)
		if resolved == "" {
			empty = append(empty, field)
		}
		*value = resolved
	}
	if len(empty) > 0 {
		sort.Strings(empty)
		return &MissingSecretsError{fields: empty}
	}
	return nil
}
