package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/mercadolocal/internal/authz"
	"github.com/utafrali/mercadolocal/internal/cache"
	"github.com/utafrali/mercadolocal/internal/config"
	"github.com/utafrali/mercadolocal/internal/event"
	handler "github.com/utafrali/mercadolocal/internal/handler/http"
	"github.com/utafrali/mercadolocal/internal/identity"
	"github.com/utafrali/mercadolocal/internal/payment/mercadopago"
	"github.com/utafrali/mercadolocal/internal/repository/postgres"
	"github.com/utafrali/mercadolocal/internal/search"
	"github.com/utafrali/mercadolocal/internal/service"
	"github.com/utafrali/mercadolocal/internal/storage"
	"github.com/utafrali/mercadolocal/internal/storage/memory"
	"github.com/utafrali/mercadolocal/internal/storage/supabase"
	"github.com/utafrali/mercadolocal/pkg/database"
	"github.com/utafrali/mercadolocal/pkg/health"
	"github.com/utafrali/mercadolocal/pkg/httpclient"
	pkgkafka "github.com/utafrali/mercadolocal/pkg/kafka"
	"github.com/utafrali/mercadolocal/pkg/middleware"
	"github.com/utafrali/mercadolocal/pkg/tracing"
)

// App wires together all dependencies and runs the marketplace service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	catalogEvents  *pkgkafka.Consumer
	httpServer     *http.Server
	stopLimiter    context.CancelFunc
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// Redis, Kafka, the hosted backend and MercadoPago are optional; each one
// left unconfigured disables the feature that needs it.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	// Initialize PostgreSQL connection pool.
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, config.ServiceName); err != nil {
		logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
	}

	if cfg.RunMigrations {
		if err := database.RunMigrations(ctx, pool, postgres.Migrations(), logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations completed")
	}

	if threshold := cfg.SlowQueryThreshold(); threshold > 0 {
		database.SetSlowQueryLogging(threshold, logger)
	}

	// Repositories.
	products := postgres.NewProductRepository(pool)
	vendors := postgres.NewVendorRepository(pool)
	categories := postgres.NewCategoryRepository(pool)
	announcements := postgres.NewAnnouncementRepository(pool)
	profiles := postgres.NewProfileRepository(pool)

	// Read path, optionally behind the Redis listing cache.
	engine := search.NewEngine(postgres.NewCatalogStore(pool), logger)
	pages := search.NewReader(products, vendors, categories, logger)

	var (
		catalog     handler.Catalog = engine
		invalidator service.Invalidator
		listing     *cache.Listing
	)
	invalidator = cache.Nop{}
	if redisCfg := cfg.Redis(); redisCfg.Enabled() {
		client, err := database.NewRedisClient(ctx, redisCfg)
		if err != nil {
			logger.Warn("redis unavailable, serving listings uncached",
				slog.String("error", err.Error()),
			)
		} else {
			a.redis = client
			listing = cache.NewListing(client, engine, cfg.CacheTTL, logger)
			catalog = listing
			invalidator = listing
			logger.Info("listing cache enabled", slog.Duration("ttl", cfg.CacheTTL))
		}
	}

	// Catalog events. source tags this instance so that its own events are
	// skipped when they come back from the topic.
	source := instanceID()
	var publisher service.Publisher = event.Nop{}
	if cfg.KafkaEnabled() {
		a.producer = pkgkafka.NewProducer(pkgkafka.ProducerConfig{Brokers: cfg.KafkaBrokers}, logger)
		if err := pingKafkaWithRetry(ctx, a.producer, logger); err != nil {
			logger.Warn("kafka producer ping failed after retries, continuing in degraded mode",
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
		}
		publisher = event.NewProducer(a.producer, source, logger)

		if listing != nil {
			peers := event.NewConsumer(listing, source, logger)
			a.catalogEvents = pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
				Brokers: cfg.KafkaBrokers,
				GroupID: cfg.KafkaGroupID + "-" + source,
				Topic:   event.TopicCatalogChanged,
			}, peers.Handle, logger)
		}
	}
	notify := service.NewNotifier(publisher, invalidator, logger)

	// Outbound HTTP: the hosted backend and the payment provider each sit
	// behind their own breaker.
	outbound := httpclient.New(httpclient.DefaultConfig())
	breaker := func(name string) httpclient.Doer {
		return httpclient.NewCircuitBreakerClient(outbound, httpclient.DefaultCircuitBreakerConfig(name), logger)
	}

	var (
		files    storage.Storage
		media    http.Handler
		accounts service.AccountManager
	)
	if cfg.SupabaseURL != "" {
		hosted := breaker("supabase")
		files = supabase.New(hosted, cfg.SupabaseURL, cfg.StorageBucket, cfg.SupabaseServiceRoleKey)
		accounts = identity.NewClient(hosted, cfg.SupabaseURL, cfg.SupabaseServiceRoleKey)
	} else {
		mem := memory.New(cfg.PublicAPIURL)
		files = mem
		media = mem
		logger.Warn("SUPABASE_URL not set, keeping images in memory and user accounts disabled")
	}

	guard, err := authz.NewGuard(map[string]authz.OwnerLookup{
		authz.ObjectProduct: products,
		authz.ObjectVendor:  vendors,
	})
	if err != nil {
		a.closeStores()
		return nil, fmt.Errorf("init authorization: %w", err)
	}

	// Services.
	productService := service.NewProductService(products, vendors, guard, files, notify, logger)
	vendorService := service.NewVendorService(vendors, profiles, guard, notify, logger)
	categoryService := service.NewCategoryService(categories, guard, notify, logger)
	announcementService := service.NewAnnouncementService(announcements, guard, notify, logger)
	userService := service.NewUserService(profiles, accounts, guard, notify, logger)
	imageService := service.NewImageService(products, files, guard, notify, logger)

	var (
		subscriptions handler.SubscriptionManager
		webhook       *handler.WebhookHandler
	)
	if cfg.PaymentsEnabled() {
		provider := mercadopago.NewClient(breaker("mercadopago"), cfg.MercadoPagoBaseURL, cfg.MercadoPagoAccessToken)
		subscriptionService := service.NewSubscriptionService(vendors, provider, guard, notify, service.PlanConfig{
			Price:           cfg.ProPlanPrice,
			Currency:        cfg.ProPlanCurrency,
			Duration:        cfg.ProPlanDuration,
			AppBaseURL:      cfg.AppBaseURL,
			NotificationURL: cfg.WebhookURL(),
			WebhookSecret:   cfg.MercadoPagoWebhookSecret,
		}, logger)
		subscriptions = subscriptionService
		webhook = handler.NewWebhookHandler(subscriptionService, logger)
		if cfg.MercadoPagoWebhookSecret == "" {
			logger.Warn("MERCADOPAGO_WEBHOOK_SECRET not set, webhook signatures are not verified")
		}
	} else {
		logger.Warn("MERCADOPAGO_ACCESS_TOKEN not set, PRO checkout and webhook disabled")
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if a.redis != nil {
		client := a.redis
		healthHandler.RegisterOptional("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}
	if a.producer != nil {
		producer := a.producer
		healthHandler.RegisterOptional("kafka", func(ctx context.Context) error {
			return producer.Ping(ctx)
		})
	}

	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	a.stopLimiter = stopLimiter

	router := handler.NewRouter(handler.Handlers{
		Public:    handler.NewPublicHandler(catalog, pages, categoryService, announcementService, logger),
		Dashboard: handler.NewDashboardHandler(vendorService, productService, imageService, subscriptions, logger),
		Admin:     handler.NewAdminHandler(categoryService, announcementService, productService, vendorService, userService, logger),
		Webhook:   webhook,
		Media:     media,
	}, handler.RouterConfig{
		Tokens:         middleware.NewHS256Validator(cfg.SupabaseJWTSecret, cfg.SupabaseJWTAudience),
		ResolveRole:    userService.ResolveRole,
		AdminSecret:    cfg.AdminAPISecret,
		AllowedOrigins: cfg.AllowedOrigins,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		Limiter:        middleware.NewRateLimiter(limiterCtx, cfg.RateLimitRPS, cfg.RateLimitBurst, 10*time.Minute, logger),
		Metrics:        middleware.NewHTTPMetrics(prometheus.DefaultRegisterer),
	}, healthHandler, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Run starts the HTTP server and the catalog event consumer, then blocks
// until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	// Start HTTP server.
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Start the peer invalidation consumer.
	if a.catalogEvents != nil {
		go func() {
			if err := a.catalogEvents.Start(ctx); err != nil {
				errCh <- fmt.Errorf("catalog events consumer: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: HTTP server, tracer,
// Kafka consumer and producer, then the stores.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	a.stopLimiter()

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Close Kafka consumer and producer.
	if a.catalogEvents != nil {
		if err := a.catalogEvents.Close(); err != nil {
			a.logger.Error("catalog events consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close Redis and the PostgreSQL pool.
	if err := a.closeStores(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeStores() error {
	var err error
	if a.redis != nil {
		if err = a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	a.pool.Close()
	return err
}

// instanceID names this process in published events.
func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "mercadolocal"
	}
	return host + "-" + uuid.NewString()[:8]
}

// pingKafkaWithRetry attempts to ping the Kafka producer with exponential
// backoff (3 attempts, 1s/2s/4s with ±25% jitter).
func pingKafkaWithRetry(ctx context.Context, producer *pkgkafka.Producer, logger *slog.Logger) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := producer.Ping(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < 2 {
			base := time.Duration(1<<uint(attempt)) * time.Second
			jitter := time.Duration(float64(base) * 0.25 * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter for retry backoff
			wait := base + jitter
			logger.Warn("kafka producer ping failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", 3),
				slog.Duration("backoff", wait),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("kafka ping: context canceled during retry: %w", ctx.Err())
			case <-time.After(wait):
			}
		}
	}
	return fmt.Errorf("kafka producer ping failed after 3 attempts: %w", lastErr)
}
