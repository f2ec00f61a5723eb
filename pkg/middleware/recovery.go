package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/hlog"

	"timetrack-backend/pkg/config"
	"timetrack-backend/pkg/utils"
)

// Recovery 恢复中间件，处理panic并返回友好的错误信息
// The stack trace is logged always but only returned in development.
func Recovery(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// net/http expects ErrAbortHandler to reach the server.
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				stack := debug.Stack()
				hlog.FromRequest(r).Error().
					Interface("panic", rec).
					Bytes("stack", stack).
					Msg("panic recovered")

				body := map[string]interface{}{
					"success": false,
					"message": "internal server error",
					"error":   "INTERNAL_SERVER_ERROR",
				}
				if cfg.IsDevelopment() {
					body["details"] = fmt.Sprintf("%v", rec)
					body["stack"] = string(stack)
				}
				utils.WriteJSONResponse(w, http.StatusInternalServerError, body)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
