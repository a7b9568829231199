// Package postgres opens the service's backing connections: the PostgreSQL
// pool that holds roles, permissions, assignments and audit events, and the
// optional Redis client behind the shared permission cache.
//
//	db, err := postgres.Open(ctx, postgres.ConnectionConfig{
//		URL:      cfg.Database.URL,
//		MaxConns: cfg.Database.MaxOpenConns,
//		Timeout:  cfg.Database.ConnectTimeout,
//	}, logger)
//
//	client, err := postgres.NewRedisClient(ctx, postgres.RedisConfig{URL: cfg.Cache.RedisURL})
package postgres
