// Package server assembles the HTTP router shared by the serverless and
// long-running entry points.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"timetrack-backend/pkg/apperr"
	"timetrack-backend/pkg/config"
	"timetrack-backend/pkg/database"
	"timetrack-backend/pkg/handlers"
	"timetrack-backend/pkg/mailer"
	customMiddleware "timetrack-backend/pkg/middleware"
	"timetrack-backend/pkg/notify"
	"timetrack-backend/pkg/permissions"
	"timetrack-backend/pkg/timers"
	"timetrack-backend/pkg/utils"
)

const maxRequestBody = 1 << 20

// Deps are the process-wide collaborators of the router.
type Deps struct {
	Config *config.Config
	DB     database.DatabaseInterface
	Log    zerolog.Logger
	// Hub receives timer events. A fresh hub is created when nil.
	Hub *notify.Hub
	// Mailer sends OTP codes. Picked from Config when nil.
	Mailer mailer.Sender
	// Now overrides the timer clock in tests.
	Now func() time.Time
}

// NewRouter 创建路由器
// Every route is served both under /api (Vercel rewrites) and at the root.
func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	if d.Hub == nil {
		d.Hub = notify.NewHub(d.Log)
	}
	if d.Mailer == nil {
		d.Mailer = mailer.New(cfg, d.Log)
	}

	jwtService := utils.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	resolver := permissions.NewResolver(d.DB)
	gate := customMiddleware.NewGate(cfg, resolver)

	var opts []timers.Option
	if d.Now != nil {
		opts = append(opts, timers.WithClock(d.Now))
	}
	timerService := timers.NewService(d.DB, d.Hub, d.Log, opts...)

	h := routeHandlers{
		auth:        handlers.NewAuthHandler(cfg, d.DB, jwtService, d.Mailer),
		timers:      handlers.NewTimerHandler(cfg, timerService, resolver),
		team:        handlers.NewTeamHandler(cfg, d.DB),
		permissions: handlers.NewPermissionHandler(cfg, d.DB),
		catalog:     handlers.NewCatalogHandler(cfg, d.DB, resolver),
		ws:          handlers.NewWSHandler(cfg, d.Hub),
		health:      handlers.NewHealthHandler(cfg, d.DB),
	}

	router := chi.NewRouter()
	setupMiddleware(router, cfg, d.Log)

	auth := customMiddleware.AuthMiddleware(cfg, jwtService)

	// WebSocket connections outlive the request timeout and cannot be
	// compressed, so they stay outside the API group.
	router.With(auth).Get("/ws", h.ws.Connect)
	router.With(auth).Get("/api/ws", h.ws.Connect)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(25 * time.Second))
		r.Use(middleware.Compress(5))
		r.Use(customMiddleware.MaxBodySize(maxRequestBody))
		r.Use(customMiddleware.ContentTypeJSON(cfg))

		r.Get("/", h.health.Health)
		r.Get("/health", h.health.Health)

		r.Route("/api", func(r chi.Router) {
			r.Get("/health", h.health.Health)
			h.mount(r, auth, gate)
		})
		h.mount(r, auth, gate)
	})

	// 404处理
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteError(w, r, apperr.NotFound(fmt.Sprintf("route not found: %s %s", r.Method, r.URL.Path)), cfg.IsDevelopment())
	})

	// 405处理
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSONResponse(w, http.StatusMethodNotAllowed, map[string]interface{}{
			"success": false,
			"message": fmt.Sprintf("method %s not allowed for %s", r.Method, r.URL.Path),
			"error":   "METHOD_NOT_ALLOWED",
		})
	})

	return router
}

// setupMiddleware 设置全局中间件
func setupMiddleware(router *chi.Mux, cfg *config.Config, log zerolog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.Logger(log))
	router.Use(customMiddleware.Recovery(cfg))
	router.Use(customMiddleware.CORS(cfg))

	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

type routeHandlers struct {
	auth        *handlers.AuthHandler
	timers      *handlers.TimerHandler
	team        *handlers.TeamHandler
	permissions *handlers.PermissionHandler
	catalog     *handlers.CatalogHandler
	ws          *handlers.WSHandler
	health      *handlers.HealthHandler
}

// mount 设置所有API路由
func (h routeHandlers) mount(r chi.Router, auth func(http.Handler) http.Handler, gate *customMiddleware.Gate) {
	// 公开路由（不需要认证）
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.auth.Register)
		r.Post("/verify-otp", h.auth.VerifyOTP)
		r.Post("/resend-otp", h.auth.ResendOTP)
		r.Post("/login", h.auth.Login)
		r.Post("/refresh", h.auth.RefreshToken)
		r.Post("/google", h.auth.GoogleOAuth)

		r.With(auth).Post("/logout", h.auth.Logout)
		r.With(auth).Get("/me", h.auth.Me)
	})

	// 需要认证的路由
	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Mount("/timers", h.timers.Routes(gate))
		r.Mount("/organizations", h.team.OrganizationRoutes())
		r.Mount("/team", h.team.MemberRoutes(gate))
		r.Mount("/permissions", h.permissions.Routes(gate))
		r.Mount("/clients", h.catalog.ClientRoutes(gate))
		r.Mount("/projects", h.catalog.ProjectRoutes(gate))
		r.Mount("/tasks", h.catalog.TaskRoutes(gate))
	})
}
