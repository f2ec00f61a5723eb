package permissions

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"timetrack-backend/pkg/database"
	"timetrack-backend/pkg/models"
)

// SeedStore is the write side used by Seed and role management.
type SeedStore interface {
	GetPermissionByName(ctx context.Context, name models.PermissionName) (*models.Permission, error)
	CreatePermission(ctx context.Context, p *models.Permission) error
	UpdatePermission(ctx context.Context, p *models.Permission) error
	ListPermissions(ctx context.Context) ([]models.Permission, error)
}

// Seed inserts catalog rows that do not exist yet. Existing rows keep their
// role sets unless overwrite is set.
func Seed(ctx context.Context, store SeedStore, catalog []models.Permission, overwrite bool, log zerolog.Logger) error {
	if err := ValidateCatalog(catalog); err != nil {
		return err
	}

	created, updated := 0, 0
	for i := range catalog {
		want := catalog[i]
		existing, err := store.GetPermissionByName(ctx, want.Name)
		switch {
		case errors.Is(err, database.ErrNotFound):
			if err := store.CreatePermission(ctx, &want); err != nil {
				return fmt.Errorf("seed %s: %w", want.Name, err)
			}
			created++
		case err != nil:
			return fmt.Errorf("seed %s: %w", want.Name, err)
		case overwrite:
			existing.Roles = want.Roles
			existing.Description = want.Description
			if err := store.UpdatePermission(ctx, existing); err != nil {
				return fmt.Errorf("seed %s: %w", want.Name, err)
			}
			updated++
		}
	}

	log.Info().Int("created", created).Int("updated", updated).Msg("permission catalog seeded")
	return nil
}

// Bootstrap seeds the default catalog and then validates what storage holds,
// so a deleted or renamed row fails startup instead of silently denying.
func Bootstrap(ctx context.Context, store SeedStore, log zerolog.Logger) error {
	if err := Seed(ctx, store, DefaultCatalog(), false, log); err != nil {
		return err
	}
	stored, err := store.ListPermissions(ctx)
	if err != nil {
		return fmt.Errorf("list permissions: %w", err)
	}
	return ValidateCatalog(stored)
}

// SetRolePermissions grants role every listed permission and revokes it from
// all others. Rows are updated one at a time.
func SetRolePermissions(ctx context.Context, store SeedStore, role models.OrgRole, names []models.PermissionName) ([]models.Permission, error) {
	perms, err := store.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}

	known := make(map[models.PermissionName]bool, len(perms))
	for _, p := range perms {
		known[p.Name] = true
	}
	wanted := make(map[models.PermissionName]bool, len(names))
	for _, n := range names {
		if !known[n] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPermission, n)
		}
		wanted[n] = true
	}

	for i := range perms {
		p := &perms[i]
		has := p.Grants(role)
		switch {
		case wanted[p.Name] && !has:
			p.Roles = append(p.Roles, role)
		case !wanted[p.Name] && has:
			p.Roles = withoutRole(p.Roles, role)
		default:
			continue
		}
		if err := store.UpdatePermission(ctx, p); err != nil {
			return nil, fmt.Errorf("update %s: %w", p.Name, err)
		}
	}
	return perms, nil
}

func withoutRole(roles []models.OrgRole, role models.OrgRole) []models.OrgRole {
	out := roles[:0:0]
	for _, r := range roles {
		if r != role {
			out = append(out, r)
		}
	}
	return out
}
