package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/areebabashir/intrnecommerceproj1/internal/handlers"
	"github.com/areebabashir/intrnecommerceproj1/internal/platform/auth"
	"github.com/areebabashir/intrnecommerceproj1/internal/platform/config"
	"github.com/areebabashir/intrnecommerceproj1/internal/platform/events"
	pfirestore "github.com/areebabashir/intrnecommerceproj1/internal/platform/firestore"
	"github.com/areebabashir/intrnecommerceproj1/internal/platform/idempotency"
	"github.com/areebabashir/intrnecommerceproj1/internal/platform/observability"
	"github.com/areebabashir/intrnecommerceproj1/internal/platform/secrets"
	"github.com/areebabashir/intrnecommerceproj1/internal/platform/storage"
	"github.com/areebabashir/intrnecommerceproj1/internal/platform/textutil"
	"github.com/areebabashir/intrnecommerceproj1/internal/repositories"
	"github.com/areebabashir/intrnecommerceproj1/internal/repositories/catalogapi"
	firestoreRepo "github.com/areebabashir/intrnecommerceproj1/internal/repositories/firestore"
	"github.com/areebabashir/intrnecommerceproj1/internal/repositories/memory"
	"github.com/areebabashir/intrnecommerceproj1/internal/repositories/sqlite"
	"github.com/areebabashir/intrnecommerceproj1/internal/services"
)

const meterName = "github.com/areebabashir/intrnecommerceproj1"

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("storefront")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher))
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("fields", missing.Names()))
		}
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)
	meter := otel.GetMeterProvider().Meter(meterName)

	store, closeStore, err := openKeyValueStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open session storage", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}
	defer closeStore()

	persistence, err := services.NewPersistentStore(store, logger.Named("persistence"))
	if err != nil {
		logger.Fatal("failed to initialise persistent store", zap.Error(err))
	}

	pricing, err := services.NewPricingEngine(services.PricingPolicy{
		FreeShippingThreshold: cfg.Pricing.FreeShippingThreshold,
		ShippingFee:           cfg.Pricing.ShippingFee,
		TaxRate:               cfg.Pricing.TaxRate,
	})
	if err != nil {
		logger.Fatal("failed to initialise pricing engine", zap.Error(err))
	}

	coupons, err := loadCouponCatalog(ctx, cfg.Pricing.CouponFile)
	if err != nil {
		logger.Fatal("failed to load coupon catalog", zap.String("path", cfg.Pricing.CouponFile), zap.Error(err))
	}

	catalogOpts := []catalogapi.Option{
		catalogapi.WithTimeout(cfg.Catalog.Timeout),
		catalogapi.WithMaxAttempts(cfg.Catalog.MaxAttempts),
	}
	if token := strings.TrimSpace(cfg.Catalog.AuthToken); token != "" {
		catalogOpts = append(catalogOpts, catalogapi.WithToken(token))
	}
	catalogClient, err := catalogapi.NewClient(cfg.Catalog.BaseURL, catalogOpts...)
	if err != nil {
		logger.Fatal("failed to initialise catalog client", zap.Error(err))
	}
	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products: catalogClient,
		Clock:    time.Now,
		CacheTTL: cfg.Catalog.CacheTTL,
		Logger:   observability.EventLogger(logger.Named("catalog")),
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	eventSink, closeEvents, err := newCartEventSink(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise cart event publisher", zap.String("topic", cfg.Events.Topic), zap.Error(err))
	}
	defer closeEvents()

	registry, err := services.NewSessionRegistry(services.SessionRegistryDeps{
		Persistence:     persistence,
		Pricing:         pricing,
		Coupons:         coupons,
		Clock:           time.Now,
		NotificationTTL: cfg.Cart.NotificationTTL,
		IdleTTL:         cfg.Cart.SessionIdleTTL,
		Metrics:         services.NewStoreMetrics(meter),
		EventSink:       eventSink,
		Logger:          observability.EventLogger(logger.Named("session")),
	})
	if err != nil {
		logger.Fatal("failed to initialise session registry", zap.Error(err))
	}

	evictCtx, evictCancel := context.WithCancel(ctx)
	var evictWG sync.WaitGroup
	evictWG.Add(1)
	go func() {
		defer evictWG.Done()
		registry.Run(evictCtx, cfg.Cart.EvictionInterval)
	}()

	signingKey, generated, err := sessionSigningKey(cfg)
	if err != nil {
		logger.Fatal("failed to derive session signing key", zap.Error(err))
	}
	if generated {
		logger.Warn("session signing key not configured; using an ephemeral key, sessions will not survive restarts")
	}
	signer, err := auth.NewSessionSigner(signingKey)
	if err != nil {
		logger.Fatal("failed to initialise session signer", zap.Error(err))
	}
	sessionCookies := auth.NewSessionCookies(signer,
		auth.WithCookieName(cfg.Session.CookieName),
		auth.WithCookieSecure(cfg.Session.CookieSecure),
		auth.WithCookieMaxAge(cfg.Session.MaxAge),
	)

	systemService, err := newSystemService(persistence, catalogClient, registry, buildInfo)
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	idempotencyStore, err := idempotency.NewKeyValueStore(store)
	if err != nil {
		logger.Fatal("idempotency: init store", zap.Error(err))
	}

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
		observability.MetricsMiddleware(meter),
	}

	healthOpts := []handlers.HealthOption{handlers.WithHealthBuildInfo(buildInfo)}
	if systemService != nil {
		healthOpts = append(healthOpts, handlers.WithHealthSystemService(systemService))
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(healthOpts...)),
		handlers.WithSessionMiddleware(sessionCookies.Middleware),
		handlers.WithProductRoutes(handlers.NewProductHandlers(catalogService).Routes),
		handlers.WithCouponRoutes(handlers.NewCouponHandlers(coupons).Routes),
		handlers.WithCartRoutes(handlers.NewCartHandlers(registry, catalogService,
			handlers.WithCouponRateLimit(cfg.RateLimits.CouponAttemptsPerMinute, time.Now),
		).Routes),
		handlers.WithWishlistRoutes(handlers.NewWishlistHandlers(registry, catalogService).Routes),
		handlers.WithCheckoutMiddlewares(idempotency.Middleware(idempotencyStore)),
		handlers.WithCheckoutRoutes(handlers.NewCheckoutHandlers(registry).Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(
		zap.String("addr", server.Addr),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("environment", cfg.Security.Environment),
	)
	go func() {
		serverLogger.Info("storefront api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	evictCancel()
	evictWG.Wait()
	if err := registry.Close(shutdownCtx); err != nil {
		logger.Warn("cart events not fully delivered before shutdown", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["STOREFRONT_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["STOREFRONT_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: cfg.Security.Environment,
		StartedAt:   started,
	}
}

// openKeyValueStore opens the configured session backend and returns its close function.
func openKeyValueStore(ctx context.Context, cfg config.Config) (repositories.KeyValueRepository, func(), error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendSQLite:
		repo, err := sqlite.Open(ctx, cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	case config.StorageBackendFirestore:
		providerOpts := []pfirestore.ProviderOption{pfirestore.WithEmulatorHost(cfg.Firestore.EmulatorHost)}
		if credentialsFile := strings.TrimSpace(os.Getenv("STOREFRONT_GOOGLE_CREDENTIALS_FILE")); credentialsFile != "" {
			providerOpts = append(providerOpts, pfirestore.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
		}
		provider := pfirestore.NewProvider(cfg.Firestore.ProjectID, providerOpts...)
		repo, err := firestoreRepo.NewKeyValueRepository(provider, cfg.Firestore.Collection, time.Now)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	default:
		repo := memory.NewKeyValueRepository()
		return repo, func() { _ = repo.Close() }, nil
	}
}

// newCartEventSink returns nil when no topic is configured; cart events are then dropped.
func newCartEventSink(ctx context.Context, cfg config.Config) (services.CartEventSink, func(), error) {
	topicID := strings.TrimSpace(cfg.Events.Topic)
	if topicID == "" {
		return nil, func() {}, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	topic := client.Topic(topicID)
	publisher, err := events.NewPubSubCartEventPublisher(topic)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	closeFn := func() {
		topic.Stop()
		_ = client.Close()
	}
	return publisher, closeFn, nil
}

// sessionSigningKey returns the configured key, or a random one in local mode.
func sessionSigningKey(cfg config.Config) (string, bool, error) {
	if key := strings.TrimSpace(cfg.Session.SigningKey); key != "" {
		return key, false, nil
	}
	if !cfg.IsLocal() {
		return "", false, auth.ErrSigningKeyRequired
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", false, err
	}
	return hex.EncodeToString(buf), true, nil
}

func newSystemService(persistence *services.PersistentStore, catalog repositories.ProductCatalogRepository, sessions services.SessionCounter, build services.BuildInfo) (services.SystemService, error) {
	checks := []repositories.DependencyCheck{
		{
			Name:    "storage",
			Timeout: 1500 * time.Millisecond,
			Check:   persistence.Ping,
		},
	}
	if catalog != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:     "catalog",
			Timeout:  3 * time.Second,
			Optional: true,
			Check: func(ctx context.Context) error {
				_, err := catalog.ListProducts(ctx, 1)
				return err
			},
		})
	}
	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repo,
		Sessions:         sessions,
		Clock:            time.Now,
		Build:            build,
	})
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Events.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.TrimSpace(env[key])
	}

	envLabel := strings.ToLower(lookup("STOREFRONT_SECURITY_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = config.LocalEnvironment
	}
	defaultProject := lookup("STOREFRONT_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("STOREFRONT_FIRESTORE_PROJECT_ID")
	}
	fallbackPath := lookup("STOREFRONT_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithEnvironment(envLabel),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if projectMap := textutil.Pairs(lookup("STOREFRONT_SECRET_PROJECT_IDS")); len(projectMap) > 0 {
		opts = append(opts, secrets.WithProjectMap(projectMap))
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if pins := textutil.Pairs(lookup("STOREFRONT_SECRET_VERSION_PINS")); len(pins) > 0 {
		opts = append(opts, secrets.WithVersionPins(pins))
	}
	if credentialsFile := lookup("STOREFRONT_GOOGLE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// loadCouponCatalog reads the coupon YAML from a local path or a gs:// object. Empty means built-in coupons.
func loadCouponCatalog(ctx context.Context, path string) (*services.CouponCatalog, error) {
	path = strings.TrimSpace(path)
	switch {
	case path == "":
		return services.DefaultCouponCatalog(), nil
	case storage.IsObjectURL(path):
		var gcpOpts []option.ClientOption
		if credentialsFile := strings.TrimSpace(os.Getenv("STOREFRONT_GOOGLE_CREDENTIALS_FILE")); credentialsFile != "" {
			gcpOpts = append(gcpOpts, option.WithCredentialsFile(credentialsFile))
		}
		client, err := storage.NewClient(ctx, gcpOpts)
		if err != nil {
			return nil, err
		}
		defer client.Close()
		raw, err := client.ReadObject(ctx, path)
		if err != nil {
			return nil, err
		}
		return services.ParseCouponCatalog(raw)
	default:
		return services.LoadCouponCatalogFile(path)
	}
}
