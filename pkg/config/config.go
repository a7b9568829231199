package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/glossa-dev/glossa/pkg/audit"
	"github.com/glossa-dev/glossa/pkg/auth"
	"github.com/glossa-dev/glossa/pkg/observability"
	"github.com/glossa-dev/glossa/pkg/rbac"
)

// Auth modes
const (
	AuthModeJWT  = "jwt"
	AuthModeOIDC = "oidc"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Cache         CacheConfig
	Observability ObservabilityConfig
	Audit         AuditConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration

	// AutoMigrate applies pending migrations and the seed at startup
	AutoMigrate bool
}

// AuthConfig selects and configures the identity verifier
type AuthConfig struct {
	Mode        string
	UserIDClaim string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTLeeway   time.Duration

	OIDCIssuerURL string
	OIDCClientID  string
}

// JWTConfig returns the verifier settings for jwt mode
func (a AuthConfig) JWTConfig() auth.JWTConfig {
	return auth.JWTConfig{
		Secret:      []byte(a.JWTSecret),
		Issuer:      a.JWTIssuer,
		Audience:    a.JWTAudience,
		UserIDClaim: a.UserIDClaim,
		Leeway:      a.JWTLeeway,
	}
}

// OIDCConfig returns the verifier settings for oidc mode
func (a AuthConfig) OIDCConfig() auth.OIDCConfig {
	return auth.OIDCConfig{
		IssuerURL:   a.OIDCIssuerURL,
		ClientID:    a.OIDCClientID,
		UserIDClaim: a.UserIDClaim,
	}
}

// CacheConfig holds effective-permission cache settings
type CacheConfig struct {
	Mode   string
	TTL    time.Duration
	Size   int
	Prefix string

	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisPoolSize   int
	RedisMaxRetries int
}

// RBACConfig returns the cache settings for rbac.NewPermissionCache.
// client may be nil unless Mode is redis.
func (c CacheConfig) RBACConfig(client *redis.Client) rbac.CacheConfig {
	return rbac.CacheConfig{
		Mode:   c.Mode,
		TTL:    c.TTL,
		Size:   c.Size,
		Redis:  client,
		Prefix: c.Prefix,
	}
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
	OTelSampleRatio    float64
}

// OTelConfig returns the settings for observability.InitOTel
func (o ObservabilityConfig) OTelConfig() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// AuditConfig holds audit trail settings
type AuditConfig struct {
	Enabled         bool
	RetentionDays   int
	CleanupSchedule string
}

// RetentionPolicy returns the policy for the cleanup job
func (a AuditConfig) RetentionPolicy() audit.RetentionPolicy {
	return audit.RetentionPolicy{
		RetentionDays: a.RetentionDays,
		Schedule:      a.CleanupSchedule,
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	obs, err := loadObservabilityConfig()
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Auth:          loadAuthConfig(),
		Cache:         loadCacheConfig(),
		Observability: obs,
		Audit:         loadAuditConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("GLOSSA_HOST", "0.0.0.0"),
		Port:            getEnv("GLOSSA_PORT", "8080"),
		ReadTimeout:     getEnvDuration("GLOSSA_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("GLOSSA_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("GLOSSA_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("GLOSSA_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    getEnvInt64("GLOSSA_MAX_BODY_BYTES", 1<<20),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:             getEnv("GLOSSA_DATABASE_URL", ""),
		MaxOpenConns:    getEnvInt("GLOSSA_DATABASE_MAX_CONNS", 20),
		MaxIdleConns:    getEnvInt("GLOSSA_DATABASE_MIN_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("GLOSSA_DATABASE_CONN_LIFETIME", 30*time.Minute),
		ConnectTimeout:  getEnvDuration("GLOSSA_DATABASE_TIMEOUT", 10*time.Second),
		AutoMigrate:     getEnvBool("GLOSSA_DATABASE_AUTO_MIGRATE", true),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		Mode:          strings.ToLower(getEnv("GLOSSA_AUTH_MODE", AuthModeJWT)),
		UserIDClaim:   getEnv("GLOSSA_AUTH_USER_ID_CLAIM", "sub"),
		JWTSecret:     getEnv("GLOSSA_JWT_SECRET", ""),
		JWTIssuer:     getEnv("GLOSSA_JWT_ISSUER", ""),
		JWTAudience:   getEnv("GLOSSA_JWT_AUDIENCE", ""),
		JWTLeeway:     getEnvDuration("GLOSSA_JWT_LEEWAY", 30*time.Second),
		OIDCIssuerURL: getEnv("GLOSSA_OIDC_ISSUER_URL", ""),
		OIDCClientID:  getEnv("GLOSSA_OIDC_CLIENT_ID", ""),
	}
}

func loadCacheConfig() CacheConfig {
	defaults := rbac.DefaultCacheConfig()
	return CacheConfig{
		Mode:            strings.ToLower(getEnv("GLOSSA_CACHE_MODE", defaults.Mode)),
		TTL:             getEnvDuration("GLOSSA_CACHE_TTL", defaults.TTL),
		Size:            getEnvInt("GLOSSA_CACHE_SIZE", defaults.Size),
		Prefix:          getEnv("GLOSSA_CACHE_PREFIX", defaults.Prefix),
		RedisURL:        getEnv("GLOSSA_REDIS_URL", ""),
		RedisPassword:   getEnv("GLOSSA_REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("GLOSSA_REDIS_DB", 0),
		RedisPoolSize:   getEnvInt("GLOSSA_REDIS_POOL_SIZE", 10),
		RedisMaxRetries: getEnvInt("GLOSSA_REDIS_MAX_RETRIES", 3),
	}
}

func loadObservabilityConfig() (ObservabilityConfig, error) {
	level, err := observability.ParseLogLevel(getEnv("GLOSSA_LOG_LEVEL", "info"))
	if err != nil {
		return ObservabilityConfig{}, err
	}

	return ObservabilityConfig{
		LogLevel:           level,
		MetricsEnabled:     getEnvBool("GLOSSA_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("GLOSSA_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("GLOSSA_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("GLOSSA_OTEL_SERVICE_NAME", "glossa"),
		OTelServiceVersion: getEnv("GLOSSA_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("GLOSSA_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("GLOSSA_OTEL_SAMPLE_RATIO", 1.0),
	}, nil
}

func loadAuditConfig() AuditConfig {
	defaults := audit.DefaultRetentionPolicy()
	return AuditConfig{
		Enabled:         getEnvBool("GLOSSA_AUDIT_ENABLED", true),
		RetentionDays:   getEnvInt("GLOSSA_AUDIT_RETENTION_DAYS", defaults.RetentionDays),
		CleanupSchedule: getEnv("GLOSSA_AUDIT_CLEANUP_SCHEDULE", defaults.Schedule),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database max connections must be positive")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database min connections (%d) exceeds max connections (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Auth.Mode {
	case AuthModeJWT:
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT secret is required for jwt auth mode")
		}
		if len(c.Auth.JWTSecret) < 32 {
			return fmt.Errorf("JWT secret must be at least 32 bytes")
		}
	case AuthModeOIDC:
		if c.Auth.OIDCIssuerURL == "" || c.Auth.OIDCClientID == "" {
			return fmt.Errorf("OIDC issuer URL and client ID are required for oidc auth mode")
		}
	default:
		return fmt.Errorf("invalid auth mode: %s (must be jwt or oidc)", c.Auth.Mode)
	}

	switch c.Cache.Mode {
	case rbac.CacheModeNone:
	case rbac.CacheModeMemory:
		if c.Cache.Size <= 0 {
			return fmt.Errorf("cache size must be positive for memory cache")
		}
	case rbac.CacheModeRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("redis URL is required for redis cache")
		}
	default:
		return fmt.Errorf("invalid cache mode: %s (must be none, memory, or redis)", c.Cache.Mode)
	}
	if c.Cache.Mode != rbac.CacheModeNone && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if r := c.Observability.OTelSampleRatio; r < 0 || r > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1")
		}
	}

	if c.Audit.Enabled {
		if c.Audit.RetentionDays < 1 {
			return fmt.Errorf("audit retention must be at least 1 day")
		}
		if c.Audit.CleanupSchedule == "" {
			return fmt.Errorf("audit cleanup schedule is required")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
