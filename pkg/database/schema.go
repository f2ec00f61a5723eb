package database

import (
	"context"
	"fmt"
	"strings"
)

// migrations are idempotent and run in order on every start. {{TS}} is
// replaced with the dialect's timestamp type.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		avatar TEXT NOT NULL DEFAULT '',
		provider TEXT NOT NULL DEFAULT 'email',
		role TEXT NOT NULL DEFAULT 'user',
		is_verified BOOLEAN NOT NULL DEFAULT FALSE,
		refresh_token_hash TEXT NOT NULL DEFAULT '',
		last_login_at {{TS}},
		created_at {{TS}} NOT NULL,
		updated_at {{TS}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS organizations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		created_at {{TS}} NOT NULL,
		updated_at {{TS}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS organizations_owner_idx ON organizations (owner_id)`,
	`CREATE TABLE IF NOT EXISTS team_members (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL,
		role TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		delete_status TEXT NOT NULL DEFAULT 'active',
		created_at {{TS}} NOT NULL,
		updated_at {{TS}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS team_members_user_idx ON team_members (user_id)`,
	`CREATE INDEX IF NOT EXISTS team_members_org_idx ON team_members (organization_id)`,
	`CREATE TABLE IF NOT EXISTS permissions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		roles TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS timers (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		task TEXT NOT NULL,
		client TEXT NOT NULL DEFAULT '',
		project TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		start_time {{TS}} NOT NULL,
		end_time {{TS}},
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_paused BOOLEAN NOT NULL DEFAULT FALSE,
		pause_time {{TS}},
		total_paused_time BIGINT NOT NULL DEFAULT 0,
		duration BIGINT,
		created_at {{TS}} NOT NULL,
		updated_at {{TS}} NOT NULL
	)`,
	// At most one active timer per user.
	`CREATE UNIQUE INDEX IF NOT EXISTS timers_one_active_per_user ON timers (user_id) WHERE is_active`,
	`CREATE INDEX IF NOT EXISTS timers_user_start_idx ON timers (user_id, start_time)`,
	`CREATE TABLE IF NOT EXISTS timer_history (
		id TEXT PRIMARY KEY,
		timer_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		task TEXT NOT NULL,
		client TEXT NOT NULL DEFAULT '',
		project TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		start_time {{TS}} NOT NULL,
		end_time {{TS}},
		is_active BOOLEAN NOT NULL,
		is_paused BOOLEAN NOT NULL,
		pause_time {{TS}},
		total_paused_time BIGINT NOT NULL DEFAULT 0,
		duration BIGINT,
		created_at {{TS}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS timer_history_timer_idx ON timer_history (timer_id)`,
	`CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		created_at {{TS}} NOT NULL,
		updated_at {{TS}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		client_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at {{TS}} NOT NULL,
		updated_at {{TS}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		project_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'todo',
		created_at {{TS}} NOT NULL,
		updated_at {{TS}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS otps (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		purpose TEXT NOT NULL,
		code_hash TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		expires_at {{TS}} NOT NULL,
		used_at {{TS}},
		created_at {{TS}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS otps_user_purpose_idx ON otps (user_id, purpose, created_at)`,
}

// Migrate creates missing tables and indexes.
func (s *SQLDatabase) Migrate(ctx context.Context) error {
	tsType := "TIMESTAMPTZ"
	if s.dialect == dialectSQLite {
		tsType = "DATETIME"
	}
	for i, m := range migrations {
		stmt := strings.ReplaceAll(m, "{{TS}}", tsType)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
