package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

func (d dialect) String() string {
	if d == dialectSQLite {
		return "sqlite"
	}
	return "postgres"
}

// SQLDatabase implements DatabaseInterface over database/sql. Queries are
// written with $N placeholders and rebound for SQLite.
type SQLDatabase struct {
	db      *sql.DB
	dialect dialect
}

var _ DatabaseInterface = (*SQLDatabase)(nil)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

var placeholderPattern = regexp.MustCompile(`\$(\d+)`)

func (s *SQLDatabase) rebind(query string) string {
	if s.dialect == dialectSQLite {
		return placeholderPattern.ReplaceAllString(query, "?$1")
	}
	return query
}

func (s *SQLDatabase) exec(ctx context.Context, q querier, query string, args ...interface{}) (sql.Result, error) {
	return q.ExecContext(ctx, s.rebind(query), args...)
}

func (s *SQLDatabase) query(ctx context.Context, q querier, query string, args ...interface{}) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.rebind(query), args...)
}

func (s *SQLDatabase) queryRow(ctx context.Context, q querier, query string, args ...interface{}) *sql.Row {
	return q.QueryRowContext(ctx, s.rebind(query), args...)
}

// withTx runs fn inside a transaction and commits when it returns nil.
func (s *SQLDatabase) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// HealthCheck 健康检查
func (s *SQLDatabase) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close 关闭连接
func (s *SQLDatabase) Close() error {
	return s.db.Close()
}

// Dialect names the backing engine.
func (s *SQLDatabase) Dialect() string {
	return s.dialect.String()
}

// expectOne turns a zero-row UPDATE/DELETE into ErrNotFound.
func expectOne(res sql.Result, err error, what string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", what, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func notFoundOr(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", what, err)
}

// inClause renders "$start, $start+1, ..." for n values.
func inClause(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func stringArgs(values []string) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

// ts normalises timestamps before they are written. SQLite compares them as
// text, so every value must share one zone and precision.
func ts(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: ts(*t), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func intPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
