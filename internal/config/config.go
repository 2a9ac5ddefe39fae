package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/karyatek/storefront/pkg/config"
	"github.com/karyatek/storefront/pkg/database"
)

// Config holds all configuration for the storefront backend.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"storefront_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"storefront"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis (catalog cache)
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Auth
	JWTSecret       string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`

	// External identity provider (token exchange)
	ProviderDomain string `env:"IDENTITY_PROVIDER_DOMAIN" envDefault:""`

	// Catalog cache
	CatalogCacheTTL time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"5m"`

	// Media CDN
	MediaBaseURL       string        `env:"MEDIA_BASE_URL" envDefault:""`
	MediaCloudName     string        `env:"MEDIA_CLOUD_NAME" envDefault:""`
	MediaAPIKey        string        `env:"MEDIA_API_KEY" envDefault:""`
	MediaAPISecret     string        `env:"MEDIA_API_SECRET" envDefault:""`
	MediaFolder        string        `env:"MEDIA_FOLDER" envDefault:"storefront"`
	MediaUsageInterval time.Duration `env:"MEDIA_USAGE_INTERVAL" envDefault:"1h"`
	MediaCleanupAge    time.Duration `env:"MEDIA_CLEANUP_AGE" envDefault:"720h"`
	MediaCleanupCron   time.Duration `env:"MEDIA_CLEANUP_INTERVAL" envDefault:"24h"`

	// Notification
	SMTPHost      string `env:"SMTP_HOST" envDefault:""`
	SMTPPort      int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser      string `env:"SMTP_USER" envDefault:""`
	SMTPPassword  string `env:"SMTP_PASSWORD" envDefault:""`
	FromAddress   string `env:"MAIL_FROM_ADDRESS" envDefault:"orders@storefront.local"`
	FromName      string `env:"MAIL_FROM_NAME" envDefault:"Storefront"`
	SupportEmail  string `env:"SUPPORT_EMAIL" envDefault:"support@storefront.local"`
	StorefrontURL string `env:"STOREFRONT_URL" envDefault:"http://localhost:3000"`

	// Tracing
	TracingEnabled  bool    `env:"TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint    string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TraceSampleRate float64 `env:"TRACE_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
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
	if c.Environment == "production" && c.JWTSecret == "dev-secret-change-me" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	return nil
}

// Postgres returns the connection pool configuration.
func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	return pg
}

// Redis returns the Redis client configuration.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}
