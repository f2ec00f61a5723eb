// Package permissions decides whether an identity may exercise a named
// capability, with a global-admin bypass and an _OTHERS variant for resources
// the caller does not own.
package permissions

import (
	"context"
	"errors"
	"fmt"

	"timetrack-backend/pkg/apperr"
	"timetrack-backend/pkg/database"
	"timetrack-backend/pkg/models"
)

// ErrUnknownPermission means the permission name has no catalog row. It is a
// configuration fault, not a denial.
var ErrUnknownPermission = errors.New("permissions: unknown permission")

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Role   models.GlobalRole
}

// Store is the read side the resolver needs.
type Store interface {
	GetActiveTeamMemberByUserID(ctx context.Context, userID string) (*models.TeamMember, error)
	GetPermissionByName(ctx context.Context, name models.PermissionName) (*models.Permission, error)
}

type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// IsGlobalAdmin short-circuits every permission check.
func IsGlobalAdmin(id Identity) bool {
	return id.Role == models.GlobalRoleAdmin
}

// HasPermission reports whether id holds name through its team membership.
func (r *Resolver) HasPermission(ctx context.Context, id Identity, name models.PermissionName) (bool, error) {
	if IsGlobalAdmin(id) {
		return true, nil
	}

	member, err := r.store.GetActiveTeamMemberByUserID(ctx, id.UserID)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load team member for %s: %w", id.UserID, err)
	}

	perm, err := r.store.GetPermissionByName(ctx, name)
	if errors.Is(err, database.ErrNotFound) {
		return false, fmt.Errorf("%w: %s", ErrUnknownPermission, name)
	}
	if err != nil {
		return false, fmt.Errorf("load permission %s: %w", name, err)
	}

	return perm.Grants(member.Role), nil
}

// CanActOnResource checks the own variant when id owns the resource and the
// _OTHERS variant otherwise.
func (r *Resolver) CanActOnResource(ctx context.Context, id Identity, action Scoped, ownerID string) (bool, error) {
	if ownerID == id.UserID {
		return r.HasPermission(ctx, id, action.Own)
	}
	return r.HasPermission(ctx, id, action.Others)
}

// Require is HasPermission translated into API errors: 403 on denial, 500 on
// unknown permission names or storage faults.
func (r *Resolver) Require(ctx context.Context, id Identity, name models.PermissionName) error {
	ok, err := r.HasPermission(ctx, id, name)
	return decision(ok, err, name)
}

// RequireResource is CanActOnResource translated into API errors.
func (r *Resolver) RequireResource(ctx context.Context, id Identity, action Scoped, ownerID string) error {
	ok, err := r.CanActOnResource(ctx, id, action, ownerID)
	name := action.Own
	if ownerID != id.UserID {
		name = action.Others
	}
	return decision(ok, err, name)
}

func decision(ok bool, err error, name models.PermissionName) error {
	if err != nil {
		if errors.Is(err, ErrUnknownPermission) {
			return apperr.Internal("permission is not configured", err)
		}
		return apperr.Internal("failed to check permission", err)
	}
	if !ok {
		return apperr.Forbidden(fmt.Sprintf("permission %s required", name))
	}
	return nil
}
