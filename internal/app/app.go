// Package app wires every component of the storefront backend together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	carthttp "github.com/karyatek/storefront/internal/cart/handler/http"
	cartpg "github.com/karyatek/storefront/internal/cart/repository/postgres"
	cartsvc "github.com/karyatek/storefront/internal/cart/service"
	"github.com/karyatek/storefront/internal/catalog/cache"
	catalogdomain "github.com/karyatek/storefront/internal/catalog/domain"
	catalogevent "github.com/karyatek/storefront/internal/catalog/event"
	cataloghttp "github.com/karyatek/storefront/internal/catalog/handler/http"
	catalogrepo "github.com/karyatek/storefront/internal/catalog/repository"
	catalogpg "github.com/karyatek/storefront/internal/catalog/repository/postgres"
	catalogsvc "github.com/karyatek/storefront/internal/catalog/service"
	checkoutevent "github.com/karyatek/storefront/internal/checkout/event"
	checkouthttp "github.com/karyatek/storefront/internal/checkout/handler/http"
	checkoutpg "github.com/karyatek/storefront/internal/checkout/repository/postgres"
	checkoutsvc "github.com/karyatek/storefront/internal/checkout/service"
	"github.com/karyatek/storefront/internal/config"
	"github.com/karyatek/storefront/internal/identity/auth"
	identityevent "github.com/karyatek/storefront/internal/identity/event"
	identityhttp "github.com/karyatek/storefront/internal/identity/handler/http"
	identitypg "github.com/karyatek/storefront/internal/identity/repository/postgres"
	identitysvc "github.com/karyatek/storefront/internal/identity/service"
	mediaevent "github.com/karyatek/storefront/internal/media/event"
	mediahttp "github.com/karyatek/storefront/internal/media/handler/http"
	mediapg "github.com/karyatek/storefront/internal/media/repository/postgres"
	mediasvc "github.com/karyatek/storefront/internal/media/service"
	"github.com/karyatek/storefront/internal/media/storage"
	"github.com/karyatek/storefront/internal/media/storage/cloudinary"
	"github.com/karyatek/storefront/internal/media/storage/memory"
	"github.com/karyatek/storefront/internal/notification"
	"github.com/karyatek/storefront/migrations"
	"github.com/karyatek/storefront/pkg/database"
	"github.com/karyatek/storefront/pkg/health"
	"github.com/karyatek/storefront/pkg/httpclient"
	pkgkafka "github.com/karyatek/storefront/pkg/kafka"
	pkgmiddleware "github.com/karyatek/storefront/pkg/middleware"
	"github.com/karyatek/storefront/pkg/tracing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App holds every long-lived component of the storefront backend.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	kafka *pkgkafka.Producer

	usageMonitor *mediasvc.UsageMonitor
	cleaner      *mediasvc.Cleaner

	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// catalogReader adapts the catalog service and variant repository to the
// slice the cart needs.
type catalogReader struct {
	products *catalogsvc.CatalogService
	variants catalogrepo.VariantRepository
}

func (r catalogReader) GetVariant(ctx context.Context, id uuid.UUID) (*catalogdomain.Variant, error) {
	return r.variants.GetByID(ctx, id)
}

func (r catalogReader) GetProduct(ctx context.Context, id uuid.UUID) (*catalogdomain.Product, error) {
	return r.products.GetProduct(ctx, id)
}

// New builds the application: storage, messaging, services, and the HTTP
// server, in dependency order.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	// Tracing first so everything below records spans.
	traceCfg := tracing.DefaultConfig("storefront")
	traceCfg.Enabled = cfg.TracingEnabled
	traceCfg.Environment = cfg.Environment
	traceCfg.OTLPEndpoint = cfg.OTLPEndpoint
	traceCfg.SampleRate = cfg.TraceSampleRate
	shutdown, err := tracing.InitTracer(ctx, traceCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = shutdown

	// PostgreSQL with migrations applied at startup.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	database.RegisterPoolMetrics(pool, "storefront")

	// Redis backs the product cache. The store works without it, so a
	// missing Redis only degrades reads.
	var productCache *cache.ProductCache
	redisClient, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		logger.Warn("redis unavailable, product cache disabled", slog.String("error", err.Error()))
	} else {
		a.redis = redisClient
		productCache = cache.NewProductCache(redisClient, cfg.CatalogCacheTTL)
	}

	// Kafka producer for domain events.
	kafkaProducer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	a.kafka = kafkaProducer

	// Identity.
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	var provider identitysvc.TokenVerifier
	if cfg.ProviderDomain != "" {
		providerHTTP := httpclient.NewCircuitBreakerClient(
			httpclient.New(httpclient.DefaultConfig()),
			httpclient.DefaultCircuitBreakerConfig("identity-provider"),
			logger,
		)
		provider = auth.NewProviderClient(
			"oidc",
			fmt.Sprintf("https://%s/userinfo", cfg.ProviderDomain),
			providerHTTP,
		)
	}

	identityService := identitysvc.NewIdentityService(
		identitypg.NewUserRepository(pool),
		identitypg.NewRefreshTokenRepository(pool),
		identitypg.NewAddressRepository(pool),
		jwtManager,
		provider,
		identityevent.NewProducer(kafkaProducer, logger),
		logger,
	)

	resolveOwner := identityhttp.ResolveOwner(jwtManager)
	adminOnly := func(next http.Handler) http.Handler {
		return resolveOwner(identityhttp.RequireAdmin(next))
	}

	// Media storage: the Cloudinary API when configured, in-process otherwise.
	var store storage.Storage
	if cfg.MediaCloudName != "" {
		cdnHTTP := httpclient.NewCircuitBreakerClient(
			httpclient.New(httpclient.DefaultConfig()),
			httpclient.DefaultCircuitBreakerConfig("media-cdn"),
			logger,
		)
		store = cloudinary.New(cloudinary.Config{
			BaseURL:   cfg.MediaBaseURL,
			CloudName: cfg.MediaCloudName,
			APIKey:    cfg.MediaAPIKey,
			APISecret: cfg.MediaAPISecret,
			Folder:    cfg.MediaFolder,
		}, cdnHTTP)
	} else {
		logger.Warn("media cdn not configured, using in-memory storage")
		store = memory.New(cfg.StorefrontURL, 1<<30)
	}

	assetRepo := mediapg.NewAssetRepository(pool)
	mediaService := mediasvc.NewMediaService(
		assetRepo,
		store,
		mediaevent.NewProducer(kafkaProducer, logger),
		logger,
	)
	a.usageMonitor = mediasvc.NewUsageMonitor(store, logger)

	// Catalog.
	imageRepo := catalogpg.NewImageRepository(pool)
	variantRepo := catalogpg.NewVariantRepository(pool)
	catalogService := catalogsvc.NewCatalogService(
		catalogpg.NewProductRepository(pool),
		catalogpg.NewCategoryRepository(pool),
		variantRepo,
		imageRepo,
		productCache,
		catalogevent.NewProducer(kafkaProducer, logger),
		logger,
	)
	importer := catalogsvc.NewImporter(catalogService, mediaService, logger)

	a.cleaner = mediasvc.NewCleaner(assetRepo, store, imageRepo, cfg.MediaCleanupAge, logger)

	// Cart.
	cartService := cartsvc.NewCartService(
		cartpg.NewCartRepository(pool),
		catalogReader{products: catalogService, variants: variantRepo},
		logger,
	)

	// Checkout with the order confirmation sender.
	var sender checkoutsvc.ConfirmationSender
	if cfg.SMTPHost != "" {
		sender = notification.NewSMTPSender(notification.SMTPConfig{
			Host:         cfg.SMTPHost,
			Port:         cfg.SMTPPort,
			Username:     cfg.SMTPUser,
			Password:     cfg.SMTPPassword,
			From:         cfg.FromAddress,
			FromName:     cfg.FromName,
			SupportEmail: cfg.SupportEmail,
		}, logger)
	} else {
		sender = notification.NewLogSender(logger)
	}

	checkoutService := checkoutsvc.NewCheckoutService(
		pool,
		checkoutpg.NewOrderRepository(pool),
		sender,
		checkoutevent.NewProducer(kafkaProducer, logger),
		logger,
	)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", pool.Ping)
	if a.redis != nil {
		healthHandler.Register("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}

	// HTTP router.
	r := chi.NewRouter()
	r.Use(pkgmiddleware.CORS(pkgmiddleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Environment:    cfg.Environment,
	}))
	r.Use(pkgmiddleware.Recovery(logger))
	r.Use(pkgmiddleware.RequestLogging(logger))
	r.Use(pkgmiddleware.PrometheusMetrics())
	r.Use(pkgmiddleware.Tracing("storefront"))
	r.Use(pkgmiddleware.RequestLogger(logger))

	r.Get("/healthz", healthHandler.LivenessHandler())
	r.Get("/readyz", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	identityhttp.RegisterRoutes(r, identityService, jwtManager, logger)
	cataloghttp.RegisterRoutes(r, catalogService, importer, adminOnly, logger)
	carthttp.RegisterRoutes(r, cartService, resolveOwner, logger)
	checkouthttp.RegisterRoutes(r, checkoutService, resolveOwner, adminOnly, logger)
	mediahttp.RegisterRoutes(r, mediaService, a.cleaner, adminOnly, logger)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// Run starts the HTTP server and background jobs, then blocks until the
// context is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	jobCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()

	if a.cfg.MediaCloudName != "" {
		go a.usageMonitor.Run(jobCtx, a.cfg.MediaUsageInterval)
	}
	go a.cleaner.Run(jobCtx, a.cfg.MediaCleanupCron)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown stops the server and releases every connection.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if err := a.kafka.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}

	a.pool.Close()

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("shutdown complete")
	return nil
}
