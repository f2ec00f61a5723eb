package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"

	"timetrack-backend/pkg/config"
)

// CORS 创建CORS中间件
func CORS(cfg *config.Config) func(http.Handler) http.Handler {
	corsOptions := cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
			http.MethodPatch,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Requested-With",
			"X-Request-Id",
		},
		ExposedHeaders: []string{
			"X-Request-Id",
		},
		AllowCredentials: true,
		MaxAge:           300, // 5分钟
	}

	// AllowCredentials 不能与 "*" 同时使用
	if len(cfg.AllowedOrigins) == 0 || contains(cfg.AllowedOrigins, "*") {
		corsOptions.AllowedOrigins = []string{"*"}
		corsOptions.AllowCredentials = false
	}

	return cors.Handler(corsOptions)
}

// OriginAllowed applies the CORS origin rules to WebSocket handshakes.
// Requests without an Origin header (non-browser clients) are allowed.
func OriginAllowed(cfg *config.Config, origin string) bool {
	if origin == "" {
		return true
	}
	return isOriginAllowed(origin, cfg.AllowedOrigins)
}

// isOriginAllowed 检查来源是否被允许
func isOriginAllowed(origin string, allowedOrigins []string) bool {
	if len(allowedOrigins) == 0 || contains(allowedOrigins, "*") {
		return true
	}
	if contains(allowedOrigins, origin) {
		return true
	}
	// 简单的通配符支持: "https://*.example.com" 或 "http://localhost:*"
	for _, allowed := range allowedOrigins {
		if strings.HasSuffix(allowed, "*") {
			if strings.HasPrefix(origin, strings.TrimSuffix(allowed, "*")) {
				return true
			}
		}
	}
	return false
}

// contains 检查切片是否包含指定的字符串
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if strings.TrimSpace(s) == item {
			return true
		}
	}
	return false
}
