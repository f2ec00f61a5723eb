package handlers

import (
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"timetrack-backend/pkg/apperr"
	"timetrack-backend/pkg/config"
	"timetrack-backend/pkg/database"
	"timetrack-backend/pkg/middleware"
	"timetrack-backend/pkg/models"
	"timetrack-backend/pkg/permissions"
	"timetrack-backend/pkg/utils"
)

// PermissionHandler exposes the permission catalog to global admins.
type PermissionHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewPermissionHandler(cfg *config.Config, db database.DatabaseInterface) *PermissionHandler {
	return &PermissionHandler{config: cfg, db: db}
}

func (h *PermissionHandler) Routes(gate *middleware.Gate) chi.Router {
	r := chi.NewRouter()
	r.Use(gate.RequireGlobalAdmin())
	r.Get("/", h.List)
	r.Put("/roles", h.SetRolePermissions)
	return r
}

// List GET /permissions
func (h *PermissionHandler) List(w http.ResponseWriter, r *http.Request) {
	perms, err := h.db.ListPermissions(r.Context())
	if err != nil {
		fail(h.config, w, r, apperr.Internal("failed to list permissions", err))
		return
	}
	utils.WriteOK(w, "", utils.Fields{"permissions": perms})
}

// SetRolePermissions PUT /permissions/roles
func (h *PermissionHandler) SetRolePermissions(w http.ResponseWriter, r *http.Request) {
	var req models.SetRolePermissionsRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		fail(h.config, w, r, err)
		return
	}

	perms, err := permissions.SetRolePermissions(r.Context(), h.db, req.Role, req.Permissions)
	if err != nil {
		if errors.Is(err, permissions.ErrUnknownPermission) {
			fail(h.config, w, r, apperr.BadRequest(err.Error()))
			return
		}
		fail(h.config, w, r, apperr.Internal("failed to update permissions", err))
		return
	}

	granted := make([]models.PermissionName, 0, len(req.Permissions))
	for _, p := range perms {
		if p.Grants(req.Role) {
			granted = append(granted, p.Name)
		}
	}
	sort.Slice(granted, func(i, j int) bool { return granted[i] < granted[j] })

	hlog.FromRequest(r).Info().Str("role", string(req.Role)).Int("granted", len(granted)).Msg("role permissions replaced")
	utils.WriteOK(w, "permissions updated", utils.Fields{"role": req.Role, "permissions": granted})
}
