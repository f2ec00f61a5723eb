package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

// NewPostgresDatabase 创建PostgreSQL数据库实例
// Serverless hosts sometimes reject the first connection attempt, so a few
// DSN variants are tried before giving up.
func NewPostgresDatabase(ctx context.Context, dsn string, log zerolog.Logger) (*SQLDatabase, error) {
	dsn = strings.TrimSpace(dsn)
	strategies := []string{
		addConnectionParams(dsn, "connect_timeout=10"),
		addConnectionParams(dsn, "sslmode=require&connect_timeout=10"),
		dsn,
	}

	var lastErr error
	for i, strategy := range strategies {
		db, err := sql.Open("postgres", strategy)
		if err != nil {
			log.Warn().Err(err).Int("strategy", i+1).Msg("postgres open failed")
			lastErr = err
			continue
		}

		// 设置连接池参数，适合无服务器环境
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Int("strategy", i+1).Msg("postgres ping failed")
			db.Close()
			lastErr = err
			continue
		}

		log.Info().Int("strategy", i+1).Msg("postgres connection established")
		return &SQLDatabase{db: db, dialect: dialectPostgres}, nil
	}

	return nil, fmt.Errorf("failed to connect to PostgreSQL with all strategies: %w", lastErr)
}

// addConnectionParams 添加连接参数到DSN
func addConnectionParams(dsn, params string) string {
	if params == "" {
		return dsn
	}
	// URL-style DSNs take query parameters, key=value DSNs take spaces.
	if !strings.Contains(dsn, "://") {
		return dsn + " " + strings.ReplaceAll(params, "&", " ")
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + params
}
