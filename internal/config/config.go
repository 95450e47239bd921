package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	DB        DBConfig
	Server    ServerConfig
	Mux       MuxConfig
	Identity  IdentityConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
	Cleanup   CleanupConfig
}

// DBConfig holds database configuration
type DBConfig struct {
	Driver         string `envconfig:"DB_DRIVER" default:"postgres"`
	Host           string `envconfig:"DB_HOST" default:"localhost"`
	Port           int    `envconfig:"DB_PORT" default:"5432"`
	User           string `envconfig:"DB_USER" default:"postgres"`
	Password       string `envconfig:"DB_PASSWORD"`
	Database       string `envconfig:"DB_NAME" default:"vidtube"`
	SSLMode        string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns       int    `envconfig:"DB_MAX_CONNS" default:"10"`
	Debug          bool   `envconfig:"DB_DEBUG" default:"false"`
	RawDSN         string `envconfig:"DB_DSN"`
	SeedCategories bool   `envconfig:"DB_SEED_CATEGORIES" default:"true"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port              int    `envconfig:"SERVER_PORT" default:"8080"`
	AppURL            string `envconfig:"APP_URL" default:"http://localhost:3000"`
	DiscloseForbidden bool   `envconfig:"API_DISCLOSE_FORBIDDEN" default:"false"`
	LogLevel          string `envconfig:"LOG_LEVEL" default:"info"`
}

// MuxConfig holds media-host configuration
type MuxConfig struct {
	TokenID       string        `envconfig:"MUX_TOKEN_ID"`
	TokenSecret   string        `envconfig:"MUX_TOKEN_SECRET"`
	SigningSecret string        `envconfig:"MUX_SIGNING_SECRET" required:"true"`
	ImageBaseURL  string        `envconfig:"MUX_IMAGE_BASE_URL" default:"https://image.mux.com"`
	RateLimit     float64       `envconfig:"MUX_RATE_LIMIT" default:"5"`
	MaxRetries    int           `envconfig:"MUX_MAX_RETRIES" default:"3"`
	Timeout       time.Duration `envconfig:"MUX_TIMEOUT" default:"15s"`
	CaptionLangs  []string      `envconfig:"MUX_CAPTION_LANGS" default:"en"`
}

// IdentityConfig holds identity-provider configuration
type IdentityConfig struct {
	WebhookSecret string `envconfig:"CLERK_WEBHOOK_SECRET" required:"true"`
	JWTPublicKey  string `envconfig:"CLERK_JWT_PUBLIC_KEY"`
	JWTSecret     string `envconfig:"CLERK_JWT_SECRET"`
	JWTIssuer     string `envconfig:"CLERK_JWT_ISSUER"`
}

// StorageConfig holds object-storage configuration
type StorageConfig struct {
	Driver         string `envconfig:"STORAGE_DRIVER" default:"supabase"`
	SupabaseURL    string `envconfig:"SUPABASE_URL"`
	SupabaseKey    string `envconfig:"SUPABASE_SERVICE_KEY"`
	SupabaseBucket string `envconfig:"SUPABASE_BUCKET" default:"thumbnails"`
	MinioEndpoint  string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	MinioAccessKey string `envconfig:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `envconfig:"MINIO_SECRET_KEY"`
	MinioBucket    string `envconfig:"MINIO_BUCKET" default:"thumbnails"`
	MinioUseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"false"`
	PublicBaseURL  string `envconfig:"STORAGE_PUBLIC_BASE_URL"`
	MaxImageBytes  int64  `envconfig:"STORAGE_MAX_IMAGE_BYTES" default:"4194304"`
}

// RateLimitConfig holds mutation rate-limit configuration
type RateLimitConfig struct {
	Enabled       bool          `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	Requests      int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	Window        time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"10s"`
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
}

// CleanupConfig holds cleanup worker configuration
type CleanupConfig struct {
	Enabled     bool          `envconfig:"CLEANUP_ENABLED" default:"true"`
	Interval    time.Duration `envconfig:"CLEANUP_INTERVAL" default:"1m"`
	MaxAttempts int           `envconfig:"CLEANUP_MAX_ATTEMPTS" default:"5"`
	BatchSize   int           `envconfig:"CLEANUP_BATCH_SIZE" default:"50"`
	RateLimit   float64       `envconfig:"CLEANUP_RATE_LIMIT" default:"5"`
}

// DSN returns the data source name for the configured driver.
// DB_DSN takes precedence when set.
func (c *DBConfig) DSN() string {
	if c.RawDSN != "" {
		return c.RawDSN
	}
	switch c.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User, c.Password, c.Host, c.Port, c.Database)
	case "sqlite":
		return c.Database + "?_foreign_keys=1&_busy_timeout=5000"
	default:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
	}
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg.DB); err != nil {
		return nil, fmt.Errorf("failed to load db config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Server); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Mux); err != nil {
		return nil, fmt.Errorf("failed to load mux config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Identity); err != nil {
		return nil, fmt.Errorf("failed to load identity config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Storage); err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	if err := envconfig.Process("", &cfg.RateLimit); err != nil {
		return nil, fmt.Errorf("failed to load rate limit config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Cleanup); err != nil {
		return nil, fmt.Errorf("failed to load cleanup config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "postgres", "mysql":
		if c.DB.RawDSN == "" && c.DB.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required for driver %s", c.DB.Driver)
		}
	case "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be one of postgres, mysql, sqlite")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	if c.Mux.SigningSecret == "" {
		return fmt.Errorf("MUX_SIGNING_SECRET is required")
	}
	if c.Mux.RateLimit <= 0 {
		return fmt.Errorf("MUX_RATE_LIMIT must be positive")
	}
	if c.Identity.WebhookSecret == "" {
		return fmt.Errorf("CLERK_WEBHOOK_SECRET is required")
	}
	if !strings.HasPrefix(c.Identity.WebhookSecret, "whsec_") {
		return fmt.Errorf("CLERK_WEBHOOK_SECRET must start with whsec_")
	}
	if c.Identity.JWTPublicKey == "" && c.Identity.JWTSecret == "" {
		return fmt.Errorf("one of CLERK_JWT_PUBLIC_KEY or CLERK_JWT_SECRET is required")
	}
	switch c.Storage.Driver {
	case "supabase":
		if c.Storage.SupabaseURL == "" || c.Storage.SupabaseKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required for storage driver supabase")
		}
	case "minio":
		if c.Storage.MinioAccessKey == "" || c.Storage.MinioSecretKey == "" {
			return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for storage driver minio")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be one of supabase, minio")
	}
	if c.Storage.MaxImageBytes <= 0 {
		return fmt.Errorf("STORAGE_MAX_IMAGE_BYTES must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	if c.Cleanup.MaxAttempts <= 0 {
		return fmt.Errorf("CLEANUP_MAX_ATTEMPTS must be positive")
	}
	if c.Cleanup.RateLimit <= 0 {
		return fmt.Errorf("CLEANUP_RATE_LIMIT must be positive")
	}
	if c.Cleanup.BatchSize <= 0 {
		return fmt.Errorf("CLEANUP_BATCH_SIZE must be positive")
	}
	if c.Cleanup.Enabled && c.Cleanup.Interval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be positive")
	}
	return nil
}
