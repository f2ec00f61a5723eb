package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"timetrack-backend/pkg/models"
)

const userColumns = `id, email, password_hash, name, avatar, provider, role, is_verified,
	refresh_token_hash, last_login_at, created_at, updated_at`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var role string
	var lastLogin sql.NullTime
	if err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Name, &u.Avatar, &u.Provider, &role,
		&u.IsVerified, &u.RefreshToken, &lastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = models.GlobalRole(role)
	u.LastLoginAt = timePtr(lastLogin)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

// CreateUser 创建用户
func (s *SQLDatabase) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Provider == "" {
		user.Provider = "email"
	}
	if user.Role == "" {
		user.Role = models.GlobalRoleUser
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	now := ts(time.Now())
	user.CreatedAt, user.UpdatedAt = now, now

	_, err := s.exec(ctx, s.db, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		user.ID, user.Email, user.Password, user.Name, user.Avatar, user.Provider, string(user.Role),
		user.IsVerified, user.RefreshToken, nullTime(user.LastLoginAt), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail 根据邮箱获取用户
func (s *SQLDatabase) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.queryRow(ctx, s.db, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)))
	u, err := scanUser(row)
	if err != nil {
		return nil, notFoundOr(err, "failed to get user by email")
	}
	return u, nil
}

// GetUserByID 根据ID获取用户
func (s *SQLDatabase) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	row := s.queryRow(ctx, s.db, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFoundOr(err, "failed to get user")
	}
	return u, nil
}

// UpdateUser 更新用户
func (s *SQLDatabase) UpdateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		return fmt.Errorf("user ID is required for update")
	}
	user.UpdatedAt = ts(time.Now())
	res, err := s.exec(ctx, s.db, `
		UPDATE users
		SET password_hash = $1, name = $2, avatar = $3, provider = $4, role = $5,
			is_verified = $6, refresh_token_hash = $7, last_login_at = $8, updated_at = $9
		WHERE id = $10`,
		user.Password, user.Name, user.Avatar, user.Provider, string(user.Role),
		user.IsVerified, user.RefreshToken, nullTime(user.LastLoginAt), user.UpdatedAt, user.ID)
	return expectOne(res, err, "failed to update user")
}
