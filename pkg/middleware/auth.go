package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"timetrack-backend/pkg/apperr"
	"timetrack-backend/pkg/config"
	"timetrack-backend/pkg/permissions"
	"timetrack-backend/pkg/utils"
)

// ContextKey 用于在context中存储用户信息的键
type ContextKey string

const (
	IdentityContextKey ContextKey = "identity"
)

// AuthMiddleware JWT认证中间件
// Only access tokens are accepted. WebSocket upgrades may pass the token as
// ?token= since browsers cannot set headers on them.
func AuthMiddleware(cfg *config.Config, jwtService *utils.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				utils.WriteError(w, r, err, cfg.IsDevelopment())
				return
			}

			claims, err := jwtService.ValidateAccessToken(tokenString)
			if err != nil {
				hlog.FromRequest(r).Debug().Err(err).Msg("rejected token")
				utils.WriteError(w, r, apperr.Unauthorized("invalid or expired token"), cfg.IsDevelopment())
				return
			}

			id := permissions.Identity{UserID: claims.UserID(), Role: claims.Role}
			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("user_id", id.UserID)
			})
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if isWebSocketUpgrade(r) {
			if tok := r.URL.Query().Get("token"); tok != "" {
				return tok, nil
			}
		}
		return "", apperr.Unauthorized("missing authorization header")
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader || tokenString == "" {
		return "", apperr.Unauthorized("invalid authorization header format")
	}
	return tokenString, nil
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id permissions.Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, id)
}

// GetIdentity 从context中获取当前调用者
func GetIdentity(ctx context.Context) (permissions.Identity, bool) {
	id, ok := ctx.Value(IdentityContextKey).(permissions.Identity)
	return id, ok && id.UserID != ""
}

// RequireIdentity is GetIdentity as an Unauthorized error.
func RequireIdentity(ctx context.Context) (permissions.Identity, error) {
	id, ok := GetIdentity(ctx)
	if !ok {
		return permissions.Identity{}, apperr.Unauthorized("user not authenticated")
	}
	return id, nil
}
