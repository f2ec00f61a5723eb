package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"timetrack-backend/pkg/apperr"
	"timetrack-backend/pkg/config"
	"timetrack-backend/pkg/models"
	"timetrack-backend/pkg/permissions"
	"timetrack-backend/pkg/utils"
)

// OwnerLookup returns the owning user id of the resource with the given id.
type OwnerLookup func(ctx context.Context, id string) (string, error)

// Gate wraps the resolver as route middleware. It must run after
// AuthMiddleware.
type Gate struct {
	cfg      *config.Config
	resolver *permissions.Resolver
}

func NewGate(cfg *config.Config, resolver *permissions.Resolver) *Gate {
	return &Gate{cfg: cfg, resolver: resolver}
}

// Resolver exposes the underlying resolver for handler-level checks.
func (g *Gate) Resolver() *permissions.Resolver {
	return g.resolver
}

// RequirePermission allows the request when the caller holds name.
func (g *Gate) RequirePermission(name models.PermissionName) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := RequireIdentity(r.Context())
			if err == nil {
				err = g.resolver.Require(r.Context(), id, name)
			}
			if err != nil {
				utils.WriteError(w, r, err, g.cfg.IsDevelopment())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwnership loads the owner of the resource named by URL parameter
// param and checks action's own or _OTHERS variant against it.
func (g *Gate) RequireOwnership(action permissions.Scoped, param string, owner OwnerLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := g.checkOwnership(r, action, chi.URLParam(r, param), owner)
			if err != nil {
				utils.WriteError(w, r, err, g.cfg.IsDevelopment())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Gate) checkOwnership(r *http.Request, action permissions.Scoped, resourceID string, owner OwnerLookup) error {
	id, err := RequireIdentity(r.Context())
	if err != nil {
		return err
	}
	if resourceID == "" {
		return apperr.BadRequest("resource id is required")
	}
	ownerID, err := owner(r.Context(), resourceID)
	if err != nil {
		return err
	}
	return g.resolver.RequireResource(r.Context(), id, action, ownerID)
}

// RequireGlobalAdmin allows only callers whose global role is admin.
func (g *Gate) RequireGlobalAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := RequireIdentity(r.Context())
			if err == nil && !permissions.IsGlobalAdmin(id) {
				err = apperr.Forbidden("admin role required")
			}
			if err != nil {
				utils.WriteError(w, r, err, g.cfg.IsDevelopment())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
