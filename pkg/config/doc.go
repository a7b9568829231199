// Package config loads and validates the service configuration from
// GLOSSA_* environment variables.
//
// # Server
//
//	GLOSSA_HOST="0.0.0.0"
//	GLOSSA_PORT="8080"
//	GLOSSA_READ_TIMEOUT="15s"
//	GLOSSA_WRITE_TIMEOUT="15s"
//	GLOSSA_SHUTDOWN_TIMEOUT="30s"
//	GLOSSA_MAX_BODY_BYTES="1048576"
//
// # Database
//
//	GLOSSA_DATABASE_URL="postgres://glossa@localhost/glossa?sslmode=disable"
//	GLOSSA_DATABASE_MAX_CONNS="20"
//	GLOSSA_DATABASE_MIN_CONNS="5"
//	GLOSSA_DATABASE_AUTO_MIGRATE="true"
//
// # Authentication
//
//	GLOSSA_AUTH_MODE="jwt"          # jwt or oidc
//	GLOSSA_AUTH_USER_ID_CLAIM="sub"
//	GLOSSA_JWT_SECRET="..."         # at least 32 bytes
//	GLOSSA_JWT_ISSUER="https://auth.example.com"
//	GLOSSA_OIDC_ISSUER_URL="https://accounts.example.com"
//	GLOSSA_OIDC_CLIENT_ID="glossa"
//
// # Permission Cache
//
//	GLOSSA_CACHE_MODE="memory"      # none, memory, redis
//	GLOSSA_CACHE_TTL="30s"
//	GLOSSA_CACHE_SIZE="10000"
//	GLOSSA_REDIS_URL="redis://localhost:6379/0"
//
// # Observability
//
//	GLOSSA_LOG_LEVEL="info"
//	GLOSSA_METRICS_ENABLED="true"
//	GLOSSA_OTEL_ENABLED="false"
//	GLOSSA_OTEL_ENDPOINT="localhost:4317"
//	GLOSSA_OTEL_SAMPLE_RATIO="1.0"
//
// # Audit
//
//	GLOSSA_AUDIT_ENABLED="true"
//	GLOSSA_AUDIT_RETENTION_DAYS="90"
//	GLOSSA_AUDIT_CLEANUP_SCHEDULE="0 3 * * *"
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	cache, err := rbac.NewPermissionCache(cfg.Cache.RBACConfig(redisClient))
package config
