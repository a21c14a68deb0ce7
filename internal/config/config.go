package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/crypto/bcrypt"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
)

type Config struct {
	Server        ServerConfig        `envconfig:"SERVER"`
	JWT           JWTConfig           `envconfig:"JWT"`
	Auth          AuthConfig          `envconfig:"AUTH"`
	Store         StoreConfig         `envconfig:"STORE"`
	Database      DatabaseConfig      `envconfig:"DATABASE"`
	DynamoDB      DynamoDBConfig      `envconfig:"DYNAMODB"`
	S3            S3Config            `envconfig:"S3"`
	Upload        UploadConfig        `envconfig:"UPLOAD"`
	Redis         RedisConfig         `envconfig:"REDIS"`
	RateLimit     RateLimitConfig     `envconfig:"RATE_LIMIT"`
	Idempotency   IdempotencyConfig   `envconfig:"IDEMPOTENCY"`
	Observability ObservabilityConfig `envconfig:"OBSERVABILITY"`
	CORS          CORSConfig          `envconfig:"CORS"`
	Log           LogConfig           `envconfig:"LOG"`
	AWS           AWSConfig           `envconfig:"AWS"`
}

type AWSConfig struct {
	Region     string `envconfig:"REGION" default:"us-east-1"`
	Profile    string `envconfig:"PROFILE" default:""`
	SecretName string `envconfig:"SECRET_NAME" default:""`
}

type ServerConfig struct {
	Port         string        `envconfig:"PORT" default:"4000"`
	Environment  string        `envconfig:"ENVIRONMENT" default:"development"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`
	BodyLimit    int           `envconfig:"BODY_LIMIT" default:"16777216"` // 16 MiB, must exceed UPLOAD_MAX_BYTES
	ProxyHeader  string        `envconfig:"PROXY_HEADER" default:""`       // e.g. X-Forwarded-For behind a load balancer
}

type JWTConfig struct {
	Secret string        `envconfig:"SECRET" required:"true"`
	TTL    time.Duration `envconfig:"TTL" default:"1h"`
	Issuer string        `envconfig:"ISSUER" default:"wallpaper-api"`
}

type AuthConfig struct {
	BcryptCost int `envconfig:"BCRYPT_COST" default:"10"`
}

type StoreConfig struct {
	Backend            string        `envconfig:"BACKEND" default:"postgres"`
	CredentialsBackend string        `envconfig:"CREDENTIALS_BACKEND" default:""` // empty: same as Backend
	Timeout            time.Duration `envconfig:"TIMEOUT" default:"5s"`
}

type DatabaseConfig struct {
	DSN             string        `envconfig:"DSN" default:"postgres://postgres:postgres@db:5432/wallpapers?sslmode=disable"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"30m"`
	Migrate         bool          `envconfig:"MIGRATE" default:"true"`
}

type DynamoDBConfig struct {
	UsersTableName string `envconfig:"USERS_TABLE_NAME" default:"wallpaper-users"`
	Region         string `envconfig:"REGION" default:"us-east-1"`
}

type S3Config struct {
	Bucket        string `envconfig:"BUCKET" default:"wallpapers"`
	Region        string `envconfig:"REGION" default:"us-east-1"`
	Endpoint      string `envconfig:"ENDPOINT" default:""` // MinIO or other S3-compatible endpoint
	AccessKey     string `envconfig:"ACCESS_KEY" default:""`
	SecretKey     string `envconfig:"SECRET_KEY" default:""`
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:""` // CDN in front of the bucket
	UsePathStyle  bool   `envconfig:"USE_PATH_STYLE" default:"false"`
	KeyPrefix     string `envconfig:"KEY_PREFIX" default:"wallpapers"`
}

type UploadConfig struct {
	MaxBytes            int64         `envconfig:"MAX_BYTES" default:"10485760"` // 10 MiB
	Timeout             time.Duration `envconfig:"TIMEOUT" default:"30s"`
	BreakerMaxFailures  int           `envconfig:"BREAKER_MAX_FAILURES" default:"5"`
	BreakerResetTimeout time.Duration `envconfig:"BREAKER_RESET_TIMEOUT" default:"10s"`
}

type RedisConfig struct {
	Enabled             bool          `envconfig:"ENABLED" default:"true"`
	Address             string        `envconfig:"ADDRESS" default:"localhost:6379"`
	Password            string        `envconfig:"PASSWORD" default:""`
	Database            int           `envconfig:"DATABASE" default:"0"`
	MaxRetries          int           `envconfig:"MAX_RETRIES" default:"3"`
	PoolSize            int           `envconfig:"POOL_SIZE" default:"50"`
	PoolTimeout         time.Duration `envconfig:"POOL_TIMEOUT" default:"4s"`
	TLSEnabled          bool          `envconfig:"TLS_ENABLED" default:"false"`
	PasswordFromSecrets bool          `envconfig:"PASSWORD_FROM_SECRETS" default:"false"`
}

type RateLimitConfig struct {
	Enabled     bool          `envconfig:"ENABLED" default:"true"`
	RPS         int           `envconfig:"RPS" default:"20"`
	Burst       int           `envconfig:"BURST" default:"40"`
	AuthRPS     int           `envconfig:"AUTH_RPS" default:"1"`
	AuthBurst   int           `envconfig:"AUTH_BURST" default:"10"`
	WindowSize  time.Duration `envconfig:"WINDOW_SIZE" default:"1s"`
	ExemptPaths []string      `envconfig:"EXEMPT_PATHS" default:"/healthz,/readyz,/metrics,/version,/swagger"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"TTL" default:"5m"`
}

type ObservabilityConfig struct {
	MetricsPath    string  `envconfig:"METRICS_PATH" default:"/metrics"`
	OTLPEndpoint   string  `envconfig:"OTLP_ENDPOINT" default:""`
	TracingEnabled bool    `envconfig:"TRACING_ENABLED" default:"false"`
	SampleRate     float64 `envconfig:"SAMPLE_RATE" default:"0.1"`
}

type CORSConfig struct {
	AllowOrigins string `envconfig:"ALLOW_ORIGINS" default:"*"`
}

type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"json"`
}

func Load() (*Config, error) {
	var cfg Config

	// Load from environment variables
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	// envconfig splits on commas but keeps surrounding spaces
	if exemptPaths := os.Getenv("RATE_LIMIT_EXEMPT_PATHS"); exemptPaths != "" {
		cfg.RateLimit.ExemptPaths = strings.Split(exemptPaths, ",")
		for i := range cfg.RateLimit.ExemptPaths {
			cfg.RateLimit.ExemptPaths[i] = strings.TrimSpace(cfg.RateLimit.ExemptPaths[i])
		}
	}

	if cfg.Store.CredentialsBackend == "" {
		cfg.Store.CredentialsBackend = cfg.Store.Backend
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	// envconfig's required tag accepts an empty value, so check explicitly
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}

	if cfg.JWT.TTL <= 0 {
		return fmt.Errorf("invalid token ttl: %s", cfg.JWT.TTL)
	}

	if port, err := strconv.Atoi(cfg.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %s", cfg.Server.Port)
	}

	if cfg.Auth.BcryptCost < bcrypt.MinCost || cfg.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("invalid bcrypt cost: %d", cfg.Auth.BcryptCost)
	}

	switch cfg.Store.Backend {
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
	}

	switch cfg.Store.CredentialsBackend {
	case BackendPostgres, BackendMemory, BackendDynamoDB:
	default:
		return fmt.Errorf("unsupported credentials backend: %s", cfg.Store.CredentialsBackend)
	}

	if cfg.Store.CredentialsBackend == BackendPostgres && cfg.Store.Backend != BackendPostgres {
		return fmt.Errorf("postgres credentials backend requires postgres store backend")
	}

	if cfg.Upload.MaxBytes <= 0 || int64(cfg.Server.BodyLimit) <= cfg.Upload.MaxBytes {
		return fmt.Errorf("server body limit (%d) must exceed upload max bytes (%d)", cfg.Server.BodyLimit, cfg.Upload.MaxBytes)
	}

	if cfg.Observability.SampleRate < 0 || cfg.Observability.SampleRate > 1 {
		return fmt.Errorf("invalid tracing sample rate: %f", cfg.Observability.SampleRate)
	}

	return nil
}
