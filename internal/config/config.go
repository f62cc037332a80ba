package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server        ServerConfig        `envconfig:"SERVER"`
	JWT           JWTConfig           `envconfig:"JWT"`
	Password      PasswordConfig      `envconfig:"PASSWORD"`
	Directory     DirectoryConfig     `envconfig:"DIRECTORY"`
	DynamoDB      DynamoDBConfig      `envconfig:"DYNAMODB"`
	Redis         RedisConfig         `envconfig:"REDIS"`
	Idempotency   IdempotencyConfig   `envconfig:"IDEMPOTENCY"`
	Observability ObservabilityConfig `envconfig:"OBSERVABILITY"`
	CORS          CORSConfig          `envconfig:"CORS"`
	Log           LogConfig           `envconfig:"LOG"`
	AWS           AWSConfig           `envconfig:"AWS"`
}

type AWSConfig struct {
	Region  string `envconfig:"REGION" default:"ap-northeast-2"`
	Profile string `envconfig:"PROFILE" default:""`
}

type ServerConfig struct {
	Port         string        `envconfig:"PORT" default:"8000"`
	Environment  string        `envconfig:"ENVIRONMENT" default:"development"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`
}

// JWTConfig holds the process-wide token signing settings. They are read once
// at startup; rotating Secret invalidates every token issued before.
type JWTConfig struct {
	Secret        string `envconfig:"SECRET" default:""`      // required unless SecretName is set
	SecretName    string `envconfig:"SECRET_NAME" default:""` // AWS Secrets Manager override
	Algorithm     string `envconfig:"ALGORITHM" default:"HS256"`
	ExpireMinutes int    `envconfig:"EXPIRE_MINUTES" default:"30"`
}

// Lifetime returns the configured access token lifetime.
func (c JWTConfig) Lifetime() time.Duration {
	return time.Duration(c.ExpireMinutes) * time.Minute
}

type PasswordConfig struct {
	BcryptCost int `envconfig:"BCRYPT_COST" default:"12"`
}

type DirectoryConfig struct {
	Backend string        `envconfig:"BACKEND" default:"dynamodb"` // dynamodb | memory
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s"`
}

type DynamoDBConfig struct {
	UsersTableName     string `envconfig:"USERS_TABLE_NAME" default:"user-auth-users"`
	UsernamesTableName string `envconfig:"USERNAMES_TABLE_NAME" default:"user-auth-usernames"`
	Region             string `envconfig:"REGION" default:"ap-northeast-2"`
	Endpoint           string `envconfig:"ENDPOINT" default:""` // e.g. http://localhost:8001 for DynamoDB Local
}

type RedisConfig struct {
	Enabled      bool          `envconfig:"ENABLED" default:"false"`
	Address      string        `envconfig:"ADDRESS" default:"localhost:6379"`
	Password     string        `envconfig:"PASSWORD" default:""`
	Database     int           `envconfig:"DATABASE" default:"0"`
	MaxRetries   int           `envconfig:"MAX_RETRIES" default:"3"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"50"`
	PoolTimeout  time.Duration `envconfig:"POOL_TIMEOUT" default:"4s"`
	MinIdleConns int           `envconfig:"MIN_IDLE_CONNS" default:"5"`
	TLSEnabled   bool          `envconfig:"TLS_ENABLED" default:"false"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"TTL" default:"5m"`
}

type ObservabilityConfig struct {
	MetricsPath    string  `envconfig:"METRICS_PATH" default:"/metrics"`
	OTLPEndpoint   string  `envconfig:"OTLP_ENDPOINT" default:"http://localhost:4318"`
	TraceExporter  string  `envconfig:"TRACE_EXPORTER" default:"otlp"` // otlp | stdout
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

// SecretFetcher resolves a named secret from an external store.
type SecretFetcher func(name string) (string, error)

func Load() (*Config, error) {
	return LoadWithSecrets(nil)
}

// LoadWithSecrets is Load with a secret store used when JWT_SECRET_NAME is set.
func LoadWithSecrets(fetch SecretFetcher) (*Config, error) {
	var cfg Config

	// Load from environment variables
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if cfg.JWT.SecretName != "" && fetch != nil {
		secret, err := fetch(cfg.JWT.SecretName)
		if err != nil {
			return nil, fmt.Errorf("failed to load JWT secret %q: %w", cfg.JWT.SecretName, err)
		}
		cfg.JWT.Secret = secret
	}

	cfg.Directory.Backend = strings.ToLower(strings.TrimSpace(cfg.Directory.Backend))
	cfg.JWT.Algorithm = strings.ToUpper(strings.TrimSpace(cfg.JWT.Algorithm))

	// Validate required fields
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	// Validate port
	if port, err := strconv.Atoi(cfg.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %s", cfg.Server.Port)
	}

	// checked after the Secrets Manager fetch so either source satisfies it
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		if cfg.JWT.SecretName != "" {
			return fmt.Errorf("JWT secret %q is empty or could not be resolved", cfg.JWT.SecretName)
		}
		return fmt.Errorf("JWT_SECRET or JWT_SECRET_NAME must be set")
	}

	switch cfg.JWT.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported JWT algorithm: %s", cfg.JWT.Algorithm)
	}

	if cfg.JWT.ExpireMinutes < 1 {
		return fmt.Errorf("invalid JWT expire minutes: %d", cfg.JWT.ExpireMinutes)
	}

	// bcrypt accepts 4..31
	if cfg.Password.BcryptCost < 4 || cfg.Password.BcryptCost > 31 {
		return fmt.Errorf("invalid bcrypt cost: %d", cfg.Password.BcryptCost)
	}

	switch cfg.Directory.Backend {
	case "dynamodb", "memory":
	default:
		return fmt.Errorf("unknown directory backend: %s", cfg.Directory.Backend)
	}

	switch cfg.Observability.TraceExporter {
	case "otlp", "stdout":
	default:
		return fmt.Errorf("unknown trace exporter: %s", cfg.Observability.TraceExporter)
	}

	// Validate sample rate
	if cfg.Observability.SampleRate < 0 || cfg.Observability.SampleRate > 1 {
		return fmt.Errorf("invalid tracing sample rate: %f", cfg.Observability.SampleRate)
	}

	return nil
}
