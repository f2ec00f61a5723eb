package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/hlog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"timetrack-backend/pkg/apperr"
	"timetrack-backend/pkg/config"
	"timetrack-backend/pkg/database"
	"timetrack-backend/pkg/mailer"
	"timetrack-backend/pkg/middleware"
	"timetrack-backend/pkg/models"
	"timetrack-backend/pkg/utils"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleUser Google用户信息结构
type GoogleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// AuthHandler 认证处理器
type AuthHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	jwt    *utils.JWTService
	mailer mailer.Sender
	now    func() time.Time

	// googleProfile exchanges an authorization code for the Google profile.
	googleProfile func(ctx context.Context, code string) (*GoogleUser, error)
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config, db database.DatabaseInterface, jwtService *utils.JWTService, sender mailer.Sender) *AuthHandler {
	h := &AuthHandler{
		config: cfg,
		db:     db,
		jwt:    jwtService,
		mailer: sender,
		now:    time.Now,
	}
	h.googleProfile = h.exchangeGoogleCode
	return h
}

func (h *AuthHandler) googleOAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.config.GoogleClientID,
		ClientSecret: h.config.GoogleClientSecret,
		RedirectURL:  h.config.OAuthRedirectURI,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     endpoints.Google,
	}
}

// Register 用户注册
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.UserRegisterRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		fail(h.config, w, r, err)
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		fail(h.config, w, r, apperr.Internal("failed to hash password", err))
		return
	}

	user := &models.User{
		Email:    req.Email,
		Password: hash,
		Name:     strings.TrimSpace(req.Name),
		Provider: "email",
		Role:     models.GlobalRoleUser,
	}
	if err := h.db.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			fail(h.config, w, r, apperr.Conflict("email is already registered"))
			return
		}
		fail(h.config, w, r, apperr.Internal("failed to create user", err))
		return
	}

	if err := h.issueOTP(r.Context(), user); err != nil {
		fail(h.config, w, r, err)
		return
	}

	hlog.FromRequest(r).Info().Str("user_id", user.ID).Msg("user registered")
	utils.WriteCreated(w, "verification code sent", utils.Fields{"user": user})
}

// VerifyOTP 校验邮箱验证码并签发令牌
// POST /auth/verify-otp
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyOTPRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		fail(h.config, w, r, err)
		return
	}

	user, err := h.db.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			fail(h.config, w, r, apperr.BadRequest("invalid or expired code"))
			return
		}
		fail(h.config, w, r, apperr.Internal("failed to load user", err))
		return
	}

	if err := h.consumeOTP(r.Context(), user, req.Code); err != nil {
		fail(h.config, w, r, err)
		return
	}

	user.IsVerified = true
	h.writeSession(w, r, user, "email verified")
}

// consumeOTP checks code against the newest unused code for user. Only the
// newest code counts; wrong guesses are recorded against it.
func (h *AuthHandler) consumeOTP(ctx context.Context, user *models.User, code string) error {
	otp, err := h.db.GetLatestOtp(ctx, user.ID, models.OtpPurposeVerifyEmail)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return apperr.BadRequest("invalid or expired code")
		}
		return apperr.Internal("failed to load code", err)
	}

	now := h.now()
	if otp.UsedAt != nil || now.After(otp.ExpiresAt) {
		return apperr.BadRequest("invalid or expired code")
	}
	if otp.Attempts >= h.config.OTPMaxAttempts {
		return apperr.BadRequest("too many attempts, request a new code")
	}

	if !utils.VerifyOTP(code, otp.CodeHash) {
		otp.Attempts++
		if err := h.db.UpdateOtp(ctx, otp); err != nil {
			return apperr.Internal("failed to record attempt", err)
		}
		return apperr.BadRequest("invalid or expired code")
	}

	otp.UsedAt = &now
	if err := h.db.UpdateOtp(ctx, otp); err != nil {
		return apperr.Internal("failed to consume code", err)
	}
	return nil
}

// ResendOTP 重新发送验证码
// POST /auth/resend-otp
func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req models.ResendOTPRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		fail(h.config, w, r, err)
		return
	}

	user, err := h.db.GetUserByEmail(r.Context(), req.Email)
	switch {
	case errors.Is(err, database.ErrNotFound):
		// Same answer as success so addresses cannot be probed.
		utils.WriteOK(w, "verification code sent", nil)
		return
	case err != nil:
		fail(h.config, w, r, apperr.Internal("failed to load user", err))
		return
	case user.IsVerified:
		fail(h.config, w, r, apperr.BadRequest("email is already verified"))
		return
	}

	if err := h.issueOTP(r.Context(), user); err != nil {
		fail(h.config, w, r, err)
		return
	}
	utils.WriteOK(w, "verification code sent", nil)
}

func (h *AuthHandler) issueOTP(ctx context.Context, user *models.User) error {
	code, err := utils.GenerateNumericCode(6)
	if err != nil {
		return apperr.Internal("failed to generate code", err)
	}
	hash, err := utils.HashOTP(code)
	if err != nil {
		return apperr.Internal("failed to hash code", err)
	}

	otp := &models.Otp{
		UserID:    user.ID,
		Purpose:   models.OtpPurposeVerifyEmail,
		CodeHash:  hash,
		ExpiresAt: h.now().Add(h.config.OTPTTL),
	}
	if err := h.db.CreateOtp(ctx, otp); err != nil {
		return apperr.Internal("failed to store code", err)
	}
	if err := h.mailer.SendOTP(ctx, user.Email, code, h.config.OTPTTL); err != nil {
		return apperr.Internal("failed to send verification email", err)
	}
	return nil
}

// Login 用户登录
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.UserLoginRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		fail(h.config, w, r, err)
		return
	}

	invalid := apperr.Unauthorized("invalid email or password")
	user, err := h.db.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			fail(h.config, w, r, invalid)
			return
		}
		fail(h.config, w, r, apperr.Internal("failed to load user", err))
		return
	}

	ok, err := utils.VerifyPassword(req.Password, user.Password)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("user_id", user.ID).Msg("stored password hash is unreadable")
	}
	if !ok {
		fail(h.config, w, r, invalid)
		return
	}
	if !user.IsVerified {
		fail(h.config, w, r, apperr.Forbidden("email is not verified"))
		return
	}

	h.writeSession(w, r, user, "login successful")
}

// writeSession activates pending invitations, issues a token pair, stores
// the refresh token hash and writes the login response.
func (h *AuthHandler) writeSession(w http.ResponseWriter, r *http.Request, user *models.User, message string) {
	ctx := r.Context()

	activated, err := h.db.ActivatePendingMemberships(ctx, user.ID, user.Email)
	if err != nil {
		fail(h.config, w, r, apperr.Internal("failed to activate team membership", err))
		return
	}
	if activated > 0 {
		hlog.FromRequest(r).Info().Int64("memberships", activated).Msg("pending memberships activated")
	}

	pair, err := h.jwt.GenerateTokenPair(user)
	if err != nil {
		fail(h.config, w, r, apperr.Internal("failed to generate tokens", err))
		return
	}

	now := h.now()
	user.RefreshToken = utils.HashToken(pair.RefreshToken)
	user.LastLoginAt = &now
	if err := h.db.UpdateUser(ctx, user); err != nil {
		fail(h.config, w, r, apperr.Internal("failed to update user", err))
		return
	}

	utils.WriteOK(w, message, utils.Fields{
		"user":         user,
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    pair.ExpiresIn,
	})
}

// RefreshToken 刷新令牌
// POST /auth/refresh
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshTokenRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		fail(h.config, w, r, err)
		return
	}

	invalid := apperr.Unauthorized("invalid or expired refresh token")
	claims, err := h.jwt.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		fail(h.config, w, r, invalid)
		return
	}

	user, err := h.db.GetUserByID(r.Context(), claims.UserID())
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			fail(h.config, w, r, invalid)
			return
		}
		fail(h.config, w, r, apperr.Internal("failed to load user", err))
		return
	}
	if user.RefreshToken == "" || user.RefreshToken != utils.HashToken(req.RefreshToken) {
		fail(h.config, w, r, invalid)
		return
	}

	pair, err := h.jwt.GenerateTokenPair(user)
	if err != nil {
		fail(h.config, w, r, apperr.Internal("failed to generate tokens", err))
		return
	}
	user.RefreshToken = utils.HashToken(pair.RefreshToken)
	if err := h.db.UpdateUser(r.Context(), user); err != nil {
		fail(h.config, w, r, apperr.Internal("failed to update user", err))
		return
	}

	utils.WriteOK(w, "", utils.Fields{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    pair.ExpiresIn,
	})
}

// Logout 用户登出
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	user.RefreshToken = ""
	if err := h.db.UpdateUser(r.Context(), user); err != nil {
		fail(h.config, w, r, apperr.Internal("failed to update user", err))
		return
	}
	utils.WriteOK(w, "logged out", nil)
}

// Me 当前用户
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	utils.WriteOK(w, "", utils.Fields{"user": user})
}

func (h *AuthHandler) currentUser(r *http.Request) (*models.User, error) {
	id, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		return nil, err
	}
	user, err := h.db.GetUserByID(r.Context(), id.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.Unauthorized("user no longer exists")
		}
		return nil, apperr.Internal("failed to load user", err)
	}
	return user, nil
}

// GoogleOAuth Google OAuth登录 - 处理前端发送的授权码
// POST /auth/google
func (h *AuthHandler) GoogleOAuth(w http.ResponseWriter, r *http.Request) {
	if !h.config.GoogleOAuthEnabled() {
		fail(h.config, w, r, apperr.BadRequest("google sign-in is not configured"))
		return
	}

	var req models.GoogleOAuthRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		fail(h.config, w, r, err)
		return
	}

	profile, err := h.googleProfile(r.Context(), req.Code)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("google code exchange failed")
		fail(h.config, w, r, apperr.Unauthorized("google authorization failed"))
		return
	}
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))
	if profile.Email == "" {
		fail(h.config, w, r, apperr.Unauthorized("google account has no email"))
		return
	}
	// An unverified Google address must not reach an existing account.
	if !profile.VerifiedEmail {
		fail(h.config, w, r, apperr.Unauthorized("google email is not verified"))
		return
	}

	user, err := h.findOrCreateGoogleUser(r.Context(), profile)
	if err != nil {
		fail(h.config, w, r, apperr.Internal("failed to create user", err))
		return
	}
	h.writeSession(w, r, user, "login successful")
}

// exchangeGoogleCode 使用授权码换取访问令牌并获取用户信息
func (h *AuthHandler) exchangeGoogleCode(ctx context.Context, code string) (*GoogleUser, error) {
	oauthCfg := h.googleOAuthConfig()
	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleUserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := oauthCfg.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}
	var profile GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	return &profile, nil
}

// findOrCreateGoogleUser 查找或创建用户
func (h *AuthHandler) findOrCreateGoogleUser(ctx context.Context, profile *GoogleUser) (*models.User, error) {
	user, err := h.db.GetUserByEmail(ctx, profile.Email)
	if err == nil {
		if user.Name == "" {
			user.Name = profile.Name
		}
		if profile.Picture != "" {
			user.Avatar = profile.Picture
		}
		user.IsVerified = true
		return user, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	user = &models.User{
		Email:      profile.Email,
		Name:       profile.Name,
		Avatar:     profile.Picture,
		Provider:   "google",
		Role:       models.GlobalRoleUser,
		IsVerified: true,
	}
	if err := h.db.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
