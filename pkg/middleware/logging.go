package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Logger 创建日志中间件
// The request logger lives in the request context (hlog.FromRequest) and
// carries the request id, client ip and, once authenticated, the user id.
// One access line is written per request. Run after chi's RequestID.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h := hlog.AccessHandler(accessLine)(next)
		h = hlog.UserAgentHandler("user_agent")(h)
		h = hlog.RemoteAddrHandler("ip")(h)
		h = requestIDField(h)
		return hlog.NewHandler(log)(h)
	}
}

func requestIDField(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("request_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

func accessLine(r *http.Request, status, size int, duration time.Duration) {
	var ev *zerolog.Event
	log := hlog.FromRequest(r)
	switch {
	case status >= 500:
		ev = log.Error()
	case status >= 400:
		ev = log.Warn()
	default:
		ev = log.Info()
	}
	ev.Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}
