package database

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DatabasePool 数据库连接池
// Serverless invocations share one process-wide connection which is
// recreated when the config changes, it goes idle or fails a health check.
type DatabasePool struct {
	instance DatabaseInterface
	config   DatabaseConfig
	mu       sync.RWMutex
	lastUsed time.Time
}

var (
	globalPool *DatabasePool
	poolMutex  sync.Mutex
)

// NewDatabase opens the configured backend. PostgreSQL wins when both are set.
func NewDatabase(ctx context.Context, cfg DatabaseConfig, log zerolog.Logger) (DatabaseInterface, error) {
	switch {
	case cfg.PostgresDSN != "":
		return NewPostgresDatabase(ctx, cfg.PostgresDSN, log)
	case cfg.SQLitePath != "":
		return NewSQLiteDatabase(ctx, cfg.SQLitePath, log)
	default:
		return nil, fmt.Errorf("no database configured")
	}
}

// GetDatabase 获取数据库连接（单例模式 + 连接池）
func GetDatabase(ctx context.Context, cfg DatabaseConfig, log zerolog.Logger) (DatabaseInterface, error) {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool != nil && !shouldRecreateConnection(ctx, globalPool, cfg, log) {
		globalPool.mu.Lock()
		globalPool.lastUsed = time.Now()
		globalPool.mu.Unlock()
		return globalPool.instance, nil
	}

	if globalPool != nil && globalPool.instance != nil {
		globalPool.instance.Close()
	}

	log.Info().Msg("creating database connection")
	instance, err := NewDatabase(ctx, cfg, log)
	if err != nil {
		globalPool = nil
		return nil, err
	}
	if err := instance.Migrate(ctx); err != nil {
		instance.Close()
		globalPool = nil
		return nil, fmt.Errorf("migrate: %w", err)
	}

	globalPool = &DatabasePool{
		instance: instance,
		config:   cfg,
		lastUsed: time.Now(),
	}
	return instance, nil
}

// shouldRecreateConnection 判断是否需要重新创建连接
func shouldRecreateConnection(ctx context.Context, pool *DatabasePool, cfg DatabaseConfig, log zerolog.Logger) bool {
	if pool.instance == nil || pool.config != cfg {
		return true
	}

	pool.mu.RLock()
	expired := time.Since(pool.lastUsed) > 30*time.Minute
	pool.mu.RUnlock()
	if expired {
		log.Info().Msg("database connection expired, recreating")
		return true
	}

	if err := pool.instance.HealthCheck(ctx); err != nil {
		log.Warn().Err(err).Msg("database health check failed, recreating")
		return true
	}
	return false
}

// CloseDatabase closes the shared connection, if any.
func CloseDatabase() error {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil || globalPool.instance == nil {
		return nil
	}
	err := globalPool.instance.Close()
	globalPool = nil
	return err
}

// GetConnectionStats 获取连接池统计信息
func GetConnectionStats() map[string]interface{} {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil {
		return map[string]interface{}{"status": "no_connection"}
	}

	globalPool.mu.RLock()
	lastUsed := globalPool.lastUsed
	globalPool.mu.RUnlock()

	return map[string]interface{}{
		"status":       "connected",
		"last_used":    lastUsed.Format(time.RFC3339),
		"idle":         time.Since(lastUsed).String(),
		"has_postgres": globalPool.config.PostgresDSN != "",
		"has_sqlite":   globalPool.config.SQLitePath != "",
	}
}

// IsServerless reports whether the process runs on Vercel or AWS Lambda.
func IsServerless() bool {
	return os.Getenv("VERCEL_ENV") != "" || os.Getenv("VERCEL_URL") != "" ||
		os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}
