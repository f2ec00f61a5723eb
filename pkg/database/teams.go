package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"timetrack-backend/pkg/models"
)

// CreateOrganization 创建组织
func (s *SQLDatabase) CreateOrganization(ctx context.Context, org *models.Organization) error {
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	now := ts(time.Now())
	org.CreatedAt, org.UpdatedAt = now, now
	_, err := s.exec(ctx, s.db, `
		INSERT INTO organizations (id, name, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		org.ID, org.Name, org.OwnerID, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

func (s *SQLDatabase) GetOrganization(ctx context.Context, orgID string) (*models.Organization, error) {
	var o models.Organization
	err := s.queryRow(ctx, s.db, `
		SELECT id, name, owner_id, created_at, updated_at FROM organizations WHERE id = $1`, orgID).
		Scan(&o.ID, &o.Name, &o.OwnerID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, "failed to get organization")
	}
	return &o, nil
}

func (s *SQLDatabase) ListOrganizationsByOwner(ctx context.Context, ownerID string) ([]models.Organization, error) {
	rows, err := s.query(ctx, s.db, `
		SELECT id, name, owner_id, created_at, updated_at
		FROM organizations WHERE owner_id = $1 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []models.Organization
	for rows.Next() {
		var o models.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.OwnerID, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

const memberColumns = `id, organization_id, user_id, email, role, status, delete_status, created_at, updated_at`

func scanMember(row rowScanner) (*models.TeamMember, error) {
	var m models.TeamMember
	var role, status, deleteStatus string
	if err := row.Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Email, &role, &status, &deleteStatus,
		&m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Role = models.OrgRole(role)
	m.Status = models.MemberStatus(status)
	m.DeleteStatus = models.MemberDeleteStatus(deleteStatus)
	return &m, nil
}

func (s *SQLDatabase) CreateTeamMember(ctx context.Context, m *models.TeamMember) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = models.MemberPending
	}
	if m.DeleteStatus == "" {
		m.DeleteStatus = models.MemberNotDeleted
	}
	m.Email = strings.ToLower(strings.TrimSpace(m.Email))
	now := ts(time.Now())
	m.CreatedAt, m.UpdatedAt = now, now
	_, err := s.exec(ctx, s.db, `
		INSERT INTO team_members (`+memberColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.OrganizationID, m.UserID, m.Email, string(m.Role), string(m.Status), string(m.DeleteStatus),
		m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create team member: %w", err)
	}
	return nil
}

func (s *SQLDatabase) GetTeamMember(ctx context.Context, id string) (*models.TeamMember, error) {
	m, err := scanMember(s.queryRow(ctx, s.db, `SELECT `+memberColumns+` FROM team_members WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "failed to get team member")
	}
	return m, nil
}

// GetActiveTeamMemberByUserID 获取用户未归档的成员身份
func (s *SQLDatabase) GetActiveTeamMemberByUserID(ctx context.Context, userID string) (*models.TeamMember, error) {
	if userID == "" {
		return nil, ErrNotFound
	}
	m, err := scanMember(s.queryRow(ctx, s.db, `
		SELECT `+memberColumns+` FROM team_members
		WHERE user_id = $1 AND delete_status = $2
		ORDER BY created_at LIMIT 1`, userID, string(models.MemberNotDeleted)))
	if err != nil {
		return nil, notFoundOr(err, "failed to get team member by user")
	}
	return m, nil
}

// ListTeamMembers returns non-archived members of the given organizations.
func (s *SQLDatabase) ListTeamMembers(ctx context.Context, orgIDs []string) ([]models.TeamMember, error) {
	if len(orgIDs) == 0 {
		return nil, nil
	}
	args := append(stringArgs(orgIDs), string(models.MemberNotDeleted))
	rows, err := s.query(ctx, s.db, `
		SELECT `+memberColumns+` FROM team_members
		WHERE organization_id IN (`+inClause(1, len(orgIDs))+`) AND delete_status = $`+fmt.Sprint(len(orgIDs)+1)+`
		ORDER BY created_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	defer rows.Close()

	var members []models.TeamMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *SQLDatabase) UpdateTeamMember(ctx context.Context, m *models.TeamMember) error {
	m.UpdatedAt = ts(time.Now())
	res, err := s.exec(ctx, s.db, `
		UPDATE team_members
		SET user_id = $1, email = $2, role = $3, status = $4, delete_status = $5, updated_at = $6
		WHERE id = $7`,
		m.UserID, m.Email, string(m.Role), string(m.Status), string(m.DeleteStatus), m.UpdatedAt, m.ID)
	return expectOne(res, err, "failed to update team member")
}

// GetPendingTeamMemberByEmail returns the oldest non-archived pending
// invitation for email in any organization, or ErrNotFound.
func (s *SQLDatabase) GetPendingTeamMemberByEmail(ctx context.Context, email string) (*models.TeamMember, error) {
	m, err := scanMember(s.queryRow(ctx, s.db, `
		SELECT `+memberColumns+` FROM team_members
		WHERE email = $1 AND status = $2 AND delete_status = $3
		ORDER BY created_at LIMIT 1`,
		strings.ToLower(strings.TrimSpace(email)), string(models.MemberPending), string(models.MemberNotDeleted)))
	if err != nil {
		return nil, notFoundOr(err, "failed to get pending team member")
	}
	return m, nil
}

// ActivatePendingMemberships 首次登录时激活待加入的成员记录
// A user belongs to one organization: the oldest pending invitation is
// activated unless the user already has a membership, and every other
// pending invitation for the email is archived.
func (s *SQLDatabase) ActivatePendingMemberships(ctx context.Context, userID, email string) (int64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var activated int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := ts(time.Now())

		var existing string
		err := s.queryRow(ctx, tx, `
			SELECT id FROM team_members
			WHERE user_id = $1 AND delete_status = $2 AND status = $3
			LIMIT 1`, userID, string(models.MemberNotDeleted), string(models.MemberActive)).Scan(&existing)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			var pendingID string
			err = s.queryRow(ctx, tx, `
				SELECT id FROM team_members
				WHERE email = $1 AND status = $2 AND delete_status = $3
				ORDER BY created_at LIMIT 1`,
				email, string(models.MemberPending), string(models.MemberNotDeleted)).Scan(&pendingID)
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			if err != nil {
				return err
			}
			res, err := s.exec(ctx, tx, `
				UPDATE team_members SET user_id = $1, status = $2, updated_at = $3 WHERE id = $4`,
				userID, string(models.MemberActive), now, pendingID)
			if err != nil {
				return err
			}
			if activated, err = res.RowsAffected(); err != nil {
				return err
			}
		case err != nil:
			return err
		}

		_, err = s.exec(ctx, tx, `
			UPDATE team_members SET delete_status = $1, updated_at = $2
			WHERE email = $3 AND status = $4 AND delete_status = $5`,
			string(models.MemberArchived), now, email, string(models.MemberPending), string(models.MemberNotDeleted))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to activate memberships: %w", err)
	}
	return activated, nil
}
