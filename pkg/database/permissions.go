package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"timetrack-backend/pkg/models"
)

func encodeRoles(roles []models.OrgRole) string {
	parts := make([]string, 0, len(roles))
	for _, r := range roles {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, ",")
}

func decodeRoles(s string) []models.OrgRole {
	var roles []models.OrgRole
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			roles = append(roles, models.OrgRole(part))
		}
	}
	return roles
}

func scanPermission(row rowScanner) (*models.Permission, error) {
	var p models.Permission
	var name, roles string
	if err := row.Scan(&p.ID, &name, &p.Description, &roles); err != nil {
		return nil, err
	}
	p.Name = models.PermissionName(name)
	p.Roles = decodeRoles(roles)
	return &p, nil
}

func (s *SQLDatabase) GetPermissionByName(ctx context.Context, name models.PermissionName) (*models.Permission, error) {
	p, err := scanPermission(s.queryRow(ctx, s.db,
		`SELECT id, name, description, roles FROM permissions WHERE name = $1`, string(name)))
	if err != nil {
		return nil, notFoundOr(err, "failed to get permission")
	}
	return p, nil
}

func (s *SQLDatabase) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	rows, err := s.query(ctx, s.db, `SELECT id, name, description, roles FROM permissions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	var perms []models.Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, *p)
	}
	return perms, rows.Err()
}

func (s *SQLDatabase) CreatePermission(ctx context.Context, p *models.Permission) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := s.exec(ctx, s.db,
		`INSERT INTO permissions (id, name, description, roles) VALUES ($1, $2, $3, $4)`,
		p.ID, string(p.Name), p.Description, encodeRoles(p.Roles))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create permission: %w", err)
	}
	return nil
}

func (s *SQLDatabase) UpdatePermission(ctx context.Context, p *models.Permission) error {
	res, err := s.exec(ctx, s.db,
		`UPDATE permissions SET description = $1, roles = $2 WHERE name = $3`,
		p.Description, encodeRoles(p.Roles), string(p.Name))
	return expectOne(res, err, "failed to update permission")
}
