package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GlobalRole is the process-wide role of a user, independent of any organization.
type GlobalRole string

const (
	GlobalRoleUser  GlobalRole = "user"
	GlobalRoleAdmin GlobalRole = "admin"
)

// Valid reports whether r is a known global role.
func (r GlobalRole) Valid() bool {
	return r == GlobalRoleUser || r == GlobalRoleAdmin
}

// User represents a user in the system
type User struct {
	ID           string     `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	Password     string     `json:"-" db:"password_hash"` // Never return password in JSON
	Name         string     `json:"name,omitempty" db:"name"`
	Avatar       string     `json:"avatar,omitempty" db:"avatar"`
	Provider     string     `json:"provider,omitempty" db:"provider"` // "email", "google"
	Role         GlobalRole `json:"role" db:"role"`
	IsVerified   bool       `json:"isVerified" db:"is_verified"`
	RefreshToken string     `json:"-" db:"refresh_token_hash"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty" db:"last_login_at"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" db:"updated_at"`
}

// UserRegisterRequest represents the request payload for user registration
type UserRegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"omitempty,max=120"`
}

// UserLoginRequest represents the request payload for user login
type UserLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// VerifyOTPRequest confirms an emailed one-time code.
type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// ResendOTPRequest asks for a fresh code.
type ResendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// UserLoginResponse represents the response payload for user login
type UserLoginResponse struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// RefreshTokenRequest represents the request payload for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// GoogleOAuthRequest carries the authorization code from the frontend.
type GoogleOAuthRequest struct {
	Code string `json:"code" validate:"required"`
}

// Token types carried in TokenClaims.Type.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenClaims represents the JWT token claims
type TokenClaims struct {
	Email string     `json:"email"`
	Role  GlobalRole `json:"role"`
	Type  string     `json:"type"` // "access" or "refresh"
	jwt.RegisteredClaims
}

// UserID returns the subject of the token.
func (c *TokenClaims) UserID() string {
	return c.Subject
}
