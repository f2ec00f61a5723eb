package models

import "time"

// Organization groups team members under one owner.
type Organization struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	OwnerID   string    `json:"ownerId" db:"owner_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// OrgRole is a user's role inside the organization they belong to.
// It is unrelated to GlobalRole.
type OrgRole string

const (
	OrgRoleEmployee OrgRole = "employee"
	OrgRoleManager  OrgRole = "manager"
	OrgRoleAdmin    OrgRole = "admin"
)

// OrgRoles lists every organization role.
var OrgRoles = []OrgRole{OrgRoleEmployee, OrgRoleManager, OrgRoleAdmin}

// Valid reports whether r is a known organization role.
func (r OrgRole) Valid() bool {
	for _, known := range OrgRoles {
		if r == known {
			return true
		}
	}
	return false
}

type MemberStatus string

const (
	MemberPending MemberStatus = "pending"
	MemberActive  MemberStatus = "active"
)

type MemberDeleteStatus string

const (
	MemberNotDeleted MemberDeleteStatus = "active"
	MemberArchived   MemberDeleteStatus = "archive"
)

// TeamMember relates a user to exactly one organization with an org-scoped role.
// UserID is empty while the invitee has not registered yet.
type TeamMember struct {
	ID             string             `json:"id" db:"id"`
	OrganizationID string             `json:"organizationId" db:"organization_id"`
	UserID         string             `json:"userId,omitempty" db:"user_id"`
	Email          string             `json:"email" db:"email"`
	Role           OrgRole            `json:"role" db:"role"`
	Status         MemberStatus       `json:"status" db:"status"`
	DeleteStatus   MemberDeleteStatus `json:"userDeleteStatus" db:"delete_status"`
	CreatedAt      time.Time          `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time          `json:"updatedAt" db:"updated_at"`
}

// CreateOrganizationRequest is the body of POST /organizations.
type CreateOrganizationRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

// InviteMemberRequest is the body of POST /team.
type InviteMemberRequest struct {
	OrganizationID string  `json:"organizationId" validate:"required"`
	Email          string  `json:"email" validate:"required,email"`
	Role           OrgRole `json:"role" validate:"required,oneof=employee manager admin"`
}

// UpdateMemberRequest is the body of PUT /team/{memberId}.
type UpdateMemberRequest struct {
	Role OrgRole `json:"role" validate:"required,oneof=employee manager admin"`
}
