package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"timetrack-backend/pkg/models"
)

// CreateOtp 保存验证码（仅哈希）
func (s *SQLDatabase) CreateOtp(ctx context.Context, o *models.Otp) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	o.CreatedAt = ts(time.Now())
	o.ExpiresAt = ts(o.ExpiresAt)
	_, err := s.exec(ctx, s.db, `
		INSERT INTO otps (id, user_id, purpose, code_hash, attempts, expires_at, used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.UserID, o.Purpose, o.CodeHash, o.Attempts, o.ExpiresAt, nullTime(o.UsedAt), o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create otp: %w", err)
	}
	return nil
}

// GetLatestOtp returns the newest code issued to userID for purpose.
func (s *SQLDatabase) GetLatestOtp(ctx context.Context, userID, purpose string) (*models.Otp, error) {
	var o models.Otp
	var usedAt sql.NullTime
	err := s.queryRow(ctx, s.db, `
		SELECT id, user_id, purpose, code_hash, attempts, expires_at, used_at, created_at
		FROM otps WHERE user_id = $1 AND purpose = $2
		ORDER BY created_at DESC, id DESC LIMIT 1`, userID, purpose).
		Scan(&o.ID, &o.UserID, &o.Purpose, &o.CodeHash, &o.Attempts, &o.ExpiresAt, &usedAt, &o.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err, "failed to get otp")
	}
	o.ExpiresAt = o.ExpiresAt.UTC()
	o.CreatedAt = o.CreatedAt.UTC()
	o.UsedAt = timePtr(usedAt)
	return &o, nil
}

func (s *SQLDatabase) UpdateOtp(ctx context.Context, o *models.Otp) error {
	res, err := s.exec(ctx, s.db, `UPDATE otps SET attempts = $1, used_at = $2 WHERE id = $3`,
		o.Attempts, nullTime(o.UsedAt), o.ID)
	return expectOne(res, err, "failed to update otp")
}
