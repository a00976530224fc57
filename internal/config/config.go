package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	pkgconfig "github.com/utafrali/mercadolocal/pkg/config"
	"github.com/utafrali/mercadolocal/pkg/database"
	"github.com/utafrali/mercadolocal/pkg/tracing"
)

// ServiceName is reported in logs, metrics and traces.
const ServiceName = "mercadolocal"

// Config holds all configuration for the marketplace service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort       int      `env:"HTTP_PORT" envDefault:"8080"`
	AppBaseURL     string   `env:"APP_BASE_URL" envDefault:"http://localhost:3000"`
	PublicAPIURL   string   `env:"PUBLIC_API_URL" envDefault:"http://localhost:8080"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// PostgreSQL. DATABASE_URL wins over the discrete fields.
	DatabaseURL  string `env:"DATABASE_URL"`
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"mercadolocal"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"mercadolocal"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"mercadolocal"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Apply embedded migrations on startup
	RunMigrations bool `env:"RUN_MIGRATIONS" envDefault:"true"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"15"`

	// Hosted backend: auth tokens and object storage
	SupabaseURL            string `env:"SUPABASE_URL"`
	SupabaseAnonKey        string `env:"SUPABASE_ANON_KEY"`
	SupabaseServiceRoleKey string `env:"SUPABASE_SERVICE_ROLE_KEY"`
	SupabaseJWTSecret      string `env:"SUPABASE_JWT_SECRET,required"`
	SupabaseJWTAudience    string `env:"SUPABASE_JWT_AUDIENCE" envDefault:"authenticated"`
	StorageBucket          string `env:"STORAGE_BUCKET" envDefault:"product-images"`

	// MercadoPago
	MercadoPagoAccessToken   string        `env:"MERCADOPAGO_ACCESS_TOKEN"`
	MercadoPagoPublicKey     string        `env:"MERCADOPAGO_PUBLIC_KEY"`
	MercadoPagoWebhookSecret string        `env:"MERCADOPAGO_WEBHOOK_SECRET"`
	MercadoPagoBaseURL       string        `env:"MERCADOPAGO_BASE_URL" envDefault:"https://api.mercadopago.com"`
	ProPlanPrice             float64       `env:"PRO_PLAN_PRICE" envDefault:"4999"`
	ProPlanCurrency          string        `env:"PRO_PLAN_CURRENCY" envDefault:"ARS"`
	ProPlanDuration          time.Duration `env:"PRO_PLAN_DURATION" envDefault:"720h"`

	// Privileged user management
	AdminAPISecret string `env:"ADMIN_API_SECRET"`

	// Redis listing cache (optional)
	RedisURL      string        `env:"REDIS_URL"`
	RedisHost     string        `env:"REDIS_HOST"`
	RedisPort     int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"60s"`

	// Kafka catalog events (optional)
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"mercadolocal"`

	// Rate limiting for the public suggestion and webhook endpoints
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
	ServiceVersion string  `env:"SERVICE_VERSION" envDefault:"dev"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom reads configuration from vars instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFrom(cfg, vars); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.DatabaseURL == "" && (c.PostgresHost == "" || c.PostgresUser == "") {
		return fmt.Errorf("DATABASE_URL or POSTGRES_HOST and POSTGRES_USER are required")
	}
	if _, err := url.ParseRequestURI(c.AppBaseURL); err != nil {
		return fmt.Errorf("APP_BASE_URL must be an absolute URL: %w", err)
	}
	if _, err := url.ParseRequestURI(c.PublicAPIURL); err != nil {
		return fmt.Errorf("PUBLIC_API_URL must be an absolute URL: %w", err)
	}
	if c.SupabaseURL != "" && c.SupabaseServiceRoleKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY is required when SUPABASE_URL is set")
	}
	if c.ProPlanPrice <= 0 {
		return fmt.Errorf("PRO_PLAN_PRICE must be positive, got %f", c.ProPlanPrice)
	}
	if c.ProPlanDuration <= 0 {
		return fmt.Errorf("PRO_PLAN_DURATION must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Postgres returns the catalog store connection settings.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		URL:             c.DatabaseURL,
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the listing cache settings. The cache is off unless a URL or
// host is configured.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		URL:      c.RedisURL,
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// KafkaEnabled reports whether catalog events are published and consumed.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// PaymentsEnabled reports whether PRO checkout and the webhook are wired.
func (c *Config) PaymentsEnabled() bool {
	return c.MercadoPagoAccessToken != ""
}

// WebhookURL is where MercadoPago posts payment notifications.
func (c *Config) WebhookURL() string {
	return strings.TrimRight(c.PublicAPIURL, "/") + "/api/mercadopago/webhook"
}

// Tracing returns the OpenTelemetry settings.
func (c *Config) Tracing() tracing.Config {
	return tracing.Config{
		Enabled:        c.OTELEnabled,
		OTLPEndpoint:   c.OTELEndpoint,
		SampleRate:     c.OTELSampleRate,
		ServiceName:    ServiceName,
		ServiceVersion: c.ServiceVersion,
		Environment:    c.Environment,
	}
}

// SlowQueryThreshold returns LOG_SLOW_QUERY_MS as a duration.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMs) * time.Millisecond
}
