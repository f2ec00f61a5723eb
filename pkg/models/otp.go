package models

import "time"

const OtpPurposeVerifyEmail = "verify_email"

// Otp is a hashed one-time code mailed to a user.
type Otp struct {
	ID        string     `json:"id" db:"id"`
	UserID    string     `json:"userId" db:"user_id"`
	Purpose   string     `json:"purpose" db:"purpose"`
	CodeHash  string     `json:"-" db:"code_hash"`
	Attempts  int        `json:"attempts" db:"attempts"`
	ExpiresAt time.Time  `json:"expiresAt" db:"expires_at"`
	UsedAt    *time.Time `json:"usedAt,omitempty" db:"used_at"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
}
