package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const envPrefix = "STOREFRONT"

// LocalEnvironment is the Security.Environment value for developer machines.
const LocalEnvironment = "local"

// Storage backends accepted by Storage.Backend.
const (
	StorageBackendMemory    = "memory"
	StorageBackendSQLite    = "sqlite"
	StorageBackendFirestore = "firestore"
)

// Config is decoded from STOREFRONT_* variables. Nested sections add their own prefix,
// so Server.ReadTimeout is STOREFRONT_SERVER_READ_TIMEOUT.
type Config struct {
	Server     ServerConfig    `envconfig:"SERVER"`
	Storage    StorageConfig   `envconfig:"STORAGE"`
	Firestore  FirestoreConfig `envconfig:"FIRESTORE"`
	Pricing    PricingConfig   `envconfig:"PRICING"`
	Cart       CartConfig      `envconfig:"CART"`
	Catalog    CatalogConfig   `envconfig:"CATALOG"`
	Session    SessionConfig   `envconfig:"SESSION"`
	Events     EventsConfig    `envconfig:"EVENTS"`
	RateLimits RateLimitConfig `envconfig:"RATELIMIT"`
	Security   SecurityConfig  `envconfig:"SECURITY"`
}

type ServerConfig struct {
	Port         string        `split_words:"true" default:"8080"`
	ReadTimeout  time.Duration `split_words:"true" default:"15s"`
	WriteTimeout time.Duration `split_words:"true" default:"30s"`
	IdleTimeout  time.Duration `split_words:"true" default:"120s"`
}

// StorageConfig selects the key-value backend that holds session state.
type StorageConfig struct {
	Backend string       `split_words:"true" default:"memory"`
	SQLite  SQLiteConfig `envconfig:"SQLITE"`
}

type SQLiteConfig struct {
	Path string `split_words:"true" default:"storefront.db"`
}

type FirestoreConfig struct {
	ProjectID    string `split_words:"true"`
	EmulatorHost string `split_words:"true"`
	Collection   string `split_words:"true" default:"storefront_kv"`
}

// PricingConfig is the pricing policy plus an optional coupon YAML (local path or gs:// object).
type PricingConfig struct {
	FreeShippingThreshold decimal.Decimal `split_words:"true" default:"100"`
	ShippingFee           decimal.Decimal `split_words:"true" default:"15"`
	TaxRate               decimal.Decimal `split_words:"true" default:"0.08"`
	CouponFile            string          `split_words:"true"`
}

type CartConfig struct {
	NotificationTTL  time.Duration `split_words:"true" default:"3s"`
	SessionIdleTTL   time.Duration `split_words:"true" default:"30m"`
	EvictionInterval time.Duration `split_words:"true" default:"1m"`
}

// CatalogConfig points at the upstream product API. AuthToken may be a secret reference.
type CatalogConfig struct {
	BaseURL     string        `split_words:"true" default:"https://api.escuelajs.co/api/v1"`
	Timeout     time.Duration `split_words:"true" default:"8s"`
	MaxAttempts int           `split_words:"true" default:"3"`
	CacheTTL    time.Duration `split_words:"true" default:"5m"`
	AuthToken   string        `split_words:"true"`
}

// SessionConfig controls the signed session cookie. SigningKey may be a secret reference and is
// required outside the local environment.
type SessionConfig struct {
	CookieName   string        `split_words:"true" default:"storefront_session"`
	SigningKey   string        `split_words:"true"`
	CookieSecure bool          `split_words:"true"`
	MaxAge       time.Duration `split_words:"true" default:"720h"`
}

// EventsConfig enables Pub/Sub cart events when Topic is set. ProjectID defaults to Firestore's.
type EventsConfig struct {
	ProjectID string `split_words:"true"`
	Topic     string `split_words:"true"`
}

type RateLimitConfig struct {
	CouponAttemptsPerMinute int `split_words:"true" default:"10"`
}

type SecurityConfig struct {
	Environment string `split_words:"true" default:"local"`
}

// IsLocal reports whether the service runs on a developer machine.
func (c Config) IsLocal() bool {
	return c.Security.Environment == LocalEnvironment
}

// ValidationError lists the fields that are missing or out of range.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return "config: invalid fields [" + strings.Join(e.fields, ", ") + "]"
}

// Fields returns a copy of the offending field names.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

// Option customises Load.
type Option func(*loader)

type loader struct {
	envFile string
	secrets SecretResolver
}

// WithEnvFile changes the dotenv file applied before decoding. An empty path skips it.
func WithEnvFile(path string) Option {
	return func(l *loader) { l.envFile = path }
}

// WithSecretResolver resolves secret:// and sm:// values.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(l *loader) { l.secrets = resolver }
}

func newLoader(opts []Option) loader {
	l := loader{envFile: ".env"}
	for _, opt := range opts {
		if opt != nil {
			opt(&l)
		}
	}
	return l
}

// Load applies the dotenv file, decodes the environment, resolves secret references and validates.
// Process environment variables always win over dotenv entries.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	l := newLoader(opts)
	if err := applyDotEnv(l.envFile); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		var parseErr *envconfig.ParseError
		if errors.As(err, &parseErr) {
			return Config{}, &ValidationError{fields: []string{parseErr.KeyName}}
		}
		return Config{}, fmt.Errorf("config: decode environment: %w", err)
	}
	cfg.normalize()

	if err := cfg.resolveSecrets(ctx, l.secrets); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	c.Security.Environment = strings.ToLower(strings.TrimSpace(c.Security.Environment))
	if c.Security.Environment == "" {
		c.Security.Environment = LocalEnvironment
	}
	if c.Events.ProjectID == "" {
		c.Events.ProjectID = c.Firestore.ProjectID
	}
}

func (c Config) validate() error {
	var bad []string
	check := func(ok bool, field string) {
		if !ok {
			bad = append(bad, field)
		}
	}

	check(strings.TrimSpace(c.Server.Port) != "", "Server.Port")
	switch c.Storage.Backend {
	case StorageBackendMemory:
	case StorageBackendSQLite:
		check(strings.TrimSpace(c.Storage.SQLite.Path) != "", "Storage.SQLite.Path")
	case StorageBackendFirestore:
		check(c.Firestore.ProjectID != "", "Firestore.ProjectID")
	default:
		bad = append(bad, "Storage.Backend")
	}
	check(!c.Pricing.FreeShippingThreshold.IsNegative(), "Pricing.FreeShippingThreshold")
	check(!c.Pricing.ShippingFee.IsNegative(), "Pricing.ShippingFee")
	check(!c.Pricing.TaxRate.IsNegative() && c.Pricing.TaxRate.LessThan(decimal.NewFromInt(1)), "Pricing.TaxRate")
	check(c.Cart.NotificationTTL > 0, "Cart.NotificationTTL")
	check(c.Cart.SessionIdleTTL > 0, "Cart.SessionIdleTTL")
	check(c.Catalog.BaseURL != "", "Catalog.BaseURL")
	check(c.Catalog.MaxAttempts > 0, "Catalog.MaxAttempts")
	check(strings.TrimSpace(c.Session.CookieName) != "", "Session.CookieName")
	check(c.IsLocal() || strings.TrimSpace(c.Session.SigningKey) != "", "Session.SigningKey")
	check(c.Events.Topic == "" || c.Events.ProjectID != "", "Events.ProjectID")
	check(c.RateLimits.CouponAttemptsPerMinute > 0, "RateLimits.CouponAttemptsPerMinute")

	if len(bad) > 0 {
		return &ValidationError{fields: bad}
	}
	return nil
}
