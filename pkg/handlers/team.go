package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

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

// TeamHandler 组织与团队成员处理器
type TeamHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewTeamHandler(cfg *config.Config, db database.DatabaseInterface) *TeamHandler {
	return &TeamHandler{config: cfg, db: db}
}

// OrganizationRoutes mounts /organizations.
func (h *TeamHandler) OrganizationRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.CreateOrganization)
	r.Get("/", h.ListOrganizations)
	return r
}

// MemberRoutes mounts /team.
func (h *TeamHandler) MemberRoutes(gate *middleware.Gate) chi.Router {
	r := chi.NewRouter()
	r.With(gate.RequirePermission(permissions.ReadTeam)).Get("/", h.ListMembers)
	r.Group(func(r chi.Router) {
		r.Use(gate.RequirePermission(permissions.ManageTeam))
		r.Post("/", h.Invite)
		r.Put("/{memberId}", h.UpdateMember)
		r.Delete("/{memberId}", h.RemoveMember)
	})
	return r
}

// ==== helpers: org ownership ====

// requireOrgOwner loads the organization and checks the caller owns it.
// Global admins pass for any organization.
func (h *TeamHandler) requireOrgOwner(ctx context.Context, id permissions.Identity, orgID string) (*models.Organization, error) {
	org, err := h.db.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, lookupError("organization", err)
	}
	if org.OwnerID != id.UserID && !permissions.IsGlobalAdmin(id) {
		return nil, apperr.Forbidden("only the organization owner can manage its team")
	}
	return org, nil
}

// CreateOrganization POST /organizations
// The creator gets an admin membership unless they already belong to a team.
func (h *TeamHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	var req models.CreateOrganizationRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		fail(h.config, w, r, err)
		return
	}
	user, err := h.db.GetUserByID(r.Context(), id.UserID)
	if err != nil {
		fail(h.config, w, r, lookupError("user", err))
		return
	}

	org := &models.Organization{Name: strings.TrimSpace(req.Name), OwnerID: id.UserID}
	if err := h.db.CreateOrganization(r.Context(), org); err != nil {
		fail(h.config, w, r, apperr.Internal("failed to create organization", err))
		return
	}

	_, err = h.db.GetActiveTeamMemberByUserID(r.Context(), id.UserID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		member := &models.TeamMember{
			OrganizationID: org.ID,
			UserID:         id.UserID,
			Email:          user.Email,
			Role:           models.OrgRoleAdmin,
			Status:         models.MemberActive,
		}
		if err := h.db.CreateTeamMember(r.Context(), member); err != nil {
			fail(h.config, w, r, apperr.Internal("failed to add owner to team", err))
			return
		}
	case err != nil:
		fail(h.config, w, r, apperr.Internal("failed to load team member", err))
		return
	}

	hlog.FromRequest(r).Info().Str("org_id", org.ID).Msg("organization created")
	utils.WriteCreated(w, "organization created", utils.Fields{"organization": org})
}

// ListOrganizations GET /organizations
func (h *TeamHandler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	orgs, err := h.db.ListOrganizationsByOwner(r.Context(), id.UserID)
	if err != nil {
		fail(h.config, w, r, apperr.Internal("failed to list organizations", err))
		return
	}
	if orgs == nil {
		orgs = []models.Organization{}
	}
	utils.WriteOK(w, "", utils.Fields{"organizations": orgs})
}

// Invite POST /team
func (h *TeamHandler) Invite(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	var req models.InviteMemberRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		fail(h.config, w, r, err)
		return
	}
	ctx := r.Context()
	if _, err := h.requireOrgOwner(ctx, id, req.OrganizationID); err != nil {
		fail(h.config, w, r, err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := h.ensureNotMember(ctx, req.OrganizationID, email); err != nil {
		fail(h.config, w, r, err)
		return
	}

	member := &models.TeamMember{
		OrganizationID: req.OrganizationID,
		Email:          email,
		Role:           req.Role,
		Status:         models.MemberPending,
	}
	if err := h.db.CreateTeamMember(ctx, member); err != nil {
		fail(h.config, w, r, apperr.Internal("failed to invite member", err))
		return
	}

	hlog.FromRequest(r).Info().Str("org_id", req.OrganizationID).Str("member_id", member.ID).Msg("member invited")
	utils.WriteCreated(w, "member invited", utils.Fields{"member": member})
}

// ensureNotMember rejects emails already invited to orgID, emails with a
// pending invitation elsewhere and registered users who already belong to
// any team.
func (h *TeamHandler) ensureNotMember(ctx context.Context, orgID, email string) error {
	members, err := h.db.ListTeamMembers(ctx, []string{orgID})
	if err != nil {
		return apperr.Internal("failed to list team members", err)
	}
	for _, m := range members {
		if m.Email == email {
			return apperr.Conflict("email is already invited to this organization")
		}
	}
	if _, err := h.db.GetPendingTeamMemberByEmail(ctx, email); err == nil {
		return apperr.Conflict("email already has a pending invitation")
	} else if !errors.Is(err, database.ErrNotFound) {
		return apperr.Internal("failed to load pending invitation", err)
	}

	user, err := h.db.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Internal("failed to load user", err)
	}
	if _, err := h.db.GetActiveTeamMemberByUserID(ctx, user.ID); err == nil {
		return apperr.Conflict("user already belongs to a team")
	} else if !errors.Is(err, database.ErrNotFound) {
		return apperr.Internal("failed to load team member", err)
	}
	return nil
}

// ListMembers GET /team?organizationId=
// Without organizationId the caller's own organization is used.
func (h *TeamHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		fail(h.config, w, r, err)
		return
	}
	ctx := r.Context()

	orgID := utils.GetQueryParam(r, "organizationId", "")
	if orgID == "" {
		own, err := h.db.GetActiveTeamMemberByUserID(ctx, id.UserID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				fail(h.config, w, r, apperr.BadRequest("organizationId is required"))
				return
			}
			fail(h.config, w, r, apperr.Internal("failed to load team member", err))
			return
		}
		orgID = own.OrganizationID
	}

	if err := h.requireOrgVisible(ctx, id, orgID); err != nil {
		fail(h.config, w, r, err)
		return
	}

	members, err := h.db.ListTeamMembers(ctx, []string{orgID})
	if err != nil {
		fail(h.config, w, r, apperr.Internal("failed to list team members", err))
		return
	}
	if members == nil {
		members = []models.TeamMember{}
	}
	utils.WriteOK(w, "", utils.Fields{"members": members})
}

// requireOrgVisible allows the owner, members of the organization and
// global admins.
func (h *TeamHandler) requireOrgVisible(ctx context.Context, id permissions.Identity, orgID string) error {
	org, err := h.db.GetOrganization(ctx, orgID)
	if err != nil {
		return lookupError("organization", err)
	}
	if org.OwnerID == id.UserID || permissions.IsGlobalAdmin(id) {
		return nil
	}
	own, err := h.db.GetActiveTeamMemberByUserID(ctx, id.UserID)
	if err == nil && own.OrganizationID == orgID {
		return nil
	}
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return apperr.Internal("failed to load team member", err)
	}
	return apperr.Forbidden("not a member of this organization")
}

// UpdateMember PUT /team/{memberId}
func (h *TeamHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateMemberRequest
	if err := utils.DecodeAndValidate(r, &req); err != nil {
		fail(h.config, w, r, err)
		return
	}
	member, err := h.managedMember(r)
	if err != nil {
		fail(h.config, w, r, err)
		return
	}

	member.Role = req.Role
	if err := h.db.UpdateTeamMember(r.Context(), member); err != nil {
		fail(h.config, w, r, apperr.Internal("failed to update member", err))
		return
	}
	utils.WriteOK(w, "member updated", utils.Fields{"member": member})
}

// RemoveMember DELETE /team/{memberId}
// Members are archived, never deleted.
func (h *TeamHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	member, err := h.managedMember(r)
	if err != nil {
		fail(h.config, w, r, err)
		return
	}

	member.DeleteStatus = models.MemberArchived
	if err := h.db.UpdateTeamMember(r.Context(), member); err != nil {
		fail(h.config, w, r, apperr.Internal("failed to remove member", err))
		return
	}
	hlog.FromRequest(r).Info().Str("member_id", member.ID).Msg("member archived")
	utils.WriteOK(w, "member removed", nil)
}

// managedMember loads the non-archived member named in the URL and checks
// the caller owns its organization.
func (h *TeamHandler) managedMember(r *http.Request) (*models.TeamMember, error) {
	id, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		return nil, err
	}
	member, err := h.db.GetTeamMember(r.Context(), chi.URLParam(r, "memberId"))
	if err != nil {
		return nil, lookupError("team member", err)
	}
	if member.DeleteStatus == models.MemberArchived {
		return nil, apperr.NotFound("team member not found")
	}
	if _, err := h.requireOrgOwner(r.Context(), id, member.OrganizationID); err != nil {
		return nil, err
	}
	return member, nil
}
