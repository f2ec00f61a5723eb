package models

import "strings"

// PermissionName identifies a capability, e.g. CREATE_TIMER.
type PermissionName string

// OthersSuffix marks the variant of a permission that applies to resources
// owned by someone else.
const OthersSuffix = "_OTHERS"

// IsOthers reports whether n is an _OTHERS variant.
func (n PermissionName) IsOthers() bool {
	return strings.HasSuffix(string(n), OthersSuffix)
}

// Permission maps a capability onto the organization roles that hold it.
type Permission struct {
	ID          string         `json:"id" db:"id"`
	Name        PermissionName `json:"name" db:"name"`
	Description string         `json:"description,omitempty" db:"description"`
	Roles       []OrgRole      `json:"roles" db:"roles"`
}

// Grants reports whether role is in the permission's role set.
func (p *Permission) Grants(role OrgRole) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// SetRolePermissionsRequest is the body of PUT /permissions/roles.
type SetRolePermissionsRequest struct {
	Role        OrgRole          `json:"role" validate:"required,oneof=employee manager admin"`
	Permissions []PermissionName `json:"permissions" validate:"dive,required"`
}
