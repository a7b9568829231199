package config

import (
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/glossa-dev/glossa/pkg/observability"
	"github.com/glossa-dev/glossa/pkg/rbac"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// setRequiredEnv sets the minimum environment for LoadConfig to succeed
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GLOSSA_DATABASE_URL", "postgres://localhost/glossa?sslmode=disable")
	t.Setenv("GLOSSA_JWT_SECRET", testSecret)
}

func TestGetEnv(t *testing.T) {
	t.Setenv("GLOSSA_TEST_VAR", "custom")

	if got := getEnv("GLOSSA_TEST_VAR", "default"); got != "custom" {
		t.Errorf("getEnv() = %v, want custom", got)
	}
	if got := getEnv("GLOSSA_TEST_VAR_NOT_SET", "default"); got != "default" {
		t.Errorf("getEnv() = %v, want default", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
	}{
		{"true string", "true", false, true},
		{"TRUE uppercase", "TRUE", false, true},
		{"one", "1", false, true},
		{"false string", "false", true, false},
		{"anything else", "yes", true, false},
		{"unset uses default", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GLOSSA_TEST_BOOL", tt.envValue)
			if got := getEnvBool("GLOSSA_TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvNumeric(t *testing.T) {
	t.Setenv("GLOSSA_TEST_INT", "42")
	t.Setenv("GLOSSA_TEST_BAD_INT", "forty-two")
	t.Setenv("GLOSSA_TEST_INT64", "9223372036854775807")
	t.Setenv("GLOSSA_TEST_FLOAT", "0.25")

	if got := getEnvInt("GLOSSA_TEST_INT", 0); got != 42 {
		t.Errorf("getEnvInt() = %v, want 42", got)
	}
	if got := getEnvInt("GLOSSA_TEST_BAD_INT", 7); got != 7 {
		t.Errorf("getEnvInt() with invalid value = %v, want default 7", got)
	}
	if got := getEnvInt64("GLOSSA_TEST_INT64", 0); got != 9223372036854775807 {
		t.Errorf("getEnvInt64() = %v, want max int64", got)
	}
	if got := getEnvFloat("GLOSSA_TEST_FLOAT", 1); got != 0.25 {
		t.Errorf("getEnvFloat() = %v, want 0.25", got)
	}
	if got := getEnvFloat("GLOSSA_TEST_BAD_INT", 1); got != 1 {
		t.Errorf("getEnvFloat() with invalid value = %v, want default 1", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("GLOSSA_TEST_DURATION", "90s")
	t.Setenv("GLOSSA_TEST_BAD_DURATION", "90")

	if got := getEnvDuration("GLOSSA_TEST_DURATION", time.Second); got != 90*time.Second {
		t.Errorf("getEnvDuration() = %v, want 90s", got)
	}
	if got := getEnvDuration("GLOSSA_TEST_BAD_DURATION", time.Second); got != time.Second {
		t.Errorf("getEnvDuration() with invalid value = %v, want default 1s", got)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("Server.Addr() = %v, want 0.0.0.0:8080", cfg.Server.Addr())
	}
	if cfg.Server.MaxBodyBytes != 1<<20 {
		t.Errorf("MaxBodyBytes = %v, want 1MiB", cfg.Server.MaxBodyBytes)
	}
	if cfg.Auth.Mode != AuthModeJWT {
		t.Errorf("Auth.Mode = %v, want jwt", cfg.Auth.Mode)
	}
	if cfg.Cache.Mode != rbac.CacheModeMemory {
		t.Errorf("Cache.Mode = %v, want memory", cfg.Cache.Mode)
	}
	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("Cache.TTL = %v, want 30s", cfg.Cache.TTL)
	}
	if cfg.Observability.LogLevel != observability.InfoLevel {
		t.Errorf("LogLevel = %v, want info", cfg.Observability.LogLevel)
	}
	if cfg.Audit.RetentionDays != 90 || cfg.Audit.CleanupSchedule != "0 3 * * *" {
		t.Errorf("Audit = %+v, want 90 days nightly", cfg.Audit)
	}
	if !cfg.Database.AutoMigrate {
		t.Error("Database.AutoMigrate should default to true")
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GLOSSA_HOST", "127.0.0.1")
	t.Setenv("GLOSSA_PORT", "9000")
	t.Setenv("GLOSSA_LOG_LEVEL", "debug")
	t.Setenv("GLOSSA_CACHE_MODE", "REDIS")
	t.Setenv("GLOSSA_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("GLOSSA_CACHE_TTL", "5s")
	t.Setenv("GLOSSA_AUDIT_RETENTION_DAYS", "30")
	t.Setenv("GLOSSA_OTEL_ENABLED", "true")
	t.Setenv("GLOSSA_OTEL_SAMPLE_RATIO", "0.1")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Addr() != "127.0.0.1:9000" {
		t.Errorf("Server.Addr() = %v, want 127.0.0.1:9000", cfg.Server.Addr())
	}
	if cfg.Observability.LogLevel != observability.DebugLevel {
		t.Errorf("LogLevel = %v, want debug", cfg.Observability.LogLevel)
	}
	if cfg.Cache.Mode != rbac.CacheModeRedis {
		t.Errorf("Cache.Mode = %v, want redis", cfg.Cache.Mode)
	}
	if cfg.Audit.RetentionPolicy().RetentionDays != 30 {
		t.Errorf("RetentionDays = %v, want 30", cfg.Audit.RetentionDays)
	}

	otelCfg := cfg.Observability.OTelConfig()
	if !otelCfg.Enabled || otelCfg.SampleRatio != 0.1 || otelCfg.ServiceName != "glossa" {
		t.Errorf("OTelConfig() = %+v", otelCfg)
	}
}

func TestLoadConfig_InvalidLogLevel(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GLOSSA_LOG_LEVEL", "verbose")

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() should reject an unknown log level")
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: "8080", MaxBodyBytes: 1 << 20},
		Database: DatabaseConfig{
			URL:          "postgres://localhost/glossa",
			MaxOpenConns: 20,
			MaxIdleConns: 5,
		},
		Auth:  AuthConfig{Mode: AuthModeJWT, JWTSecret: testSecret},
		Cache: CacheConfig{Mode: rbac.CacheModeMemory, TTL: 30 * time.Second, Size: 100},
		Observability: ObservabilityConfig{
			LogLevel:        observability.InfoLevel,
			OTelEndpoint:    "localhost:4317",
			OTelServiceName: "glossa",
		},
		Audit: AuditConfig{Enabled: true, RetentionDays: 90, CleanupSchedule: "0 3 * * *"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing port", func(c *Config) { c.Server.Port = "" }, "server port is required"},
		{"zero body limit", func(c *Config) { c.Server.MaxBodyBytes = 0 }, "max body bytes"},
		{"missing database", func(c *Config) { c.Database.URL = "" }, "database URL is required"},
		{"idle above max", func(c *Config) { c.Database.MaxIdleConns = 50 }, "exceeds max connections"},
		{"missing jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }, "JWT secret is required"},
		{"short jwt secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "at least 32 bytes"},
		{"oidc without issuer", func(c *Config) { c.Auth.Mode = AuthModeOIDC }, "OIDC issuer URL"},
		{"oidc configured", func(c *Config) {
			c.Auth.Mode = AuthModeOIDC
			c.Auth.OIDCIssuerURL = "https://issuer.example.com"
			c.Auth.OIDCClientID = "glossa"
		}, ""},
		{"unknown auth mode", func(c *Config) { c.Auth.Mode = "saml" }, "invalid auth mode"},
		{"redis without url", func(c *Config) { c.Cache.Mode = rbac.CacheModeRedis }, "redis URL is required"},
		{"unknown cache mode", func(c *Config) { c.Cache.Mode = "disk" }, "invalid cache mode"},
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }, "cache TTL must be positive"},
		{"no cache ignores ttl", func(c *Config) { c.Cache.Mode = rbac.CacheModeNone; c.Cache.TTL = 0 }, ""},
		{"otel without endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelEndpoint = ""
		}, "endpoint is required"},
		{"otel bad ratio", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelSampleRatio = 1.5
		}, "sample ratio"},
		{"audit zero retention", func(c *Config) { c.Audit.RetentionDays = 0 }, "at least 1 day"},
		{"audit disabled skips retention", func(c *Config) {
			c.Audit.Enabled = false
			c.Audit.RetentionDays = 0
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestConversions(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.JWTIssuer = "https://auth.example.com"
	cfg.Auth.UserIDClaim = "uid"

	jwtCfg := cfg.Auth.JWTConfig()
	if string(jwtCfg.Secret) != testSecret || jwtCfg.Issuer != "https://auth.example.com" || jwtCfg.UserIDClaim != "uid" {
		t.Errorf("JWTConfig() = %+v", jwtCfg)
	}

	oidcCfg := cfg.Auth.OIDCConfig()
	if oidcCfg.UserIDClaim != "uid" {
		t.Errorf("OIDCConfig().UserIDClaim = %v, want uid", oidcCfg.UserIDClaim)
	}

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	cacheCfg := cfg.Cache.RBACConfig(client)
	if cacheCfg.Mode != rbac.CacheModeMemory || cacheCfg.Size != 100 || cacheCfg.Redis != client {
		t.Errorf("RBACConfig() = %+v", cacheCfg)
	}
}
