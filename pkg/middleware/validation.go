package middleware

import (
	"net/http"
	"strings"

	"timetrack-backend/pkg/apperr"
	"timetrack-backend/pkg/config"
	"timetrack-backend/pkg/utils"
)

// ContentTypeJSON 验证请求Content-Type为application/json
// Bodyless writes such as PUT /timers/stop/{id} are let through.
func ContentTypeJSON(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
				if r.ContentLength == 0 {
					break
				}
				contentType := r.Header.Get("Content-Type")
				if !strings.HasPrefix(strings.ToLower(contentType), "application/json") {
					utils.WriteError(w, r, apperr.BadRequest("Content-Type must be application/json"), cfg.IsDevelopment())
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MaxBodySize 限制请求体大小
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
