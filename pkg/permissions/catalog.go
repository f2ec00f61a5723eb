package permissions

import (
	"fmt"
	"sort"
	"strings"

	"timetrack-backend/pkg/models"
)

// Scoped is a resource action that exists in two variants: one for resources
// the caller owns and one for resources owned by somebody else.
type Scoped struct {
	Own    models.PermissionName
	Others models.PermissionName
}

func scoped(base string) Scoped {
	return Scoped{
		Own:    models.PermissionName(base),
		Others: models.PermissionName(base + models.OthersSuffix),
	}
}

// Resource-scoped actions.
var (
	CreateTimer     = scoped("CREATE_TIMER")
	ReadTimer       = scoped("READ_TIMER")
	UpdateTimer     = scoped("UPDATE_TIMER")
	DeleteTimer     = scoped("DELETE_TIMER")
	DeleteTimerNote = scoped("DELETE_TIMER_NOTE")

	CreateTask = scoped("CREATE_TASK")
	ReadTask   = scoped("READ_TASK")
	UpdateTask = scoped("UPDATE_TASK")
	DeleteTask = scoped("DELETE_TASK")

	CreateProject = scoped("CREATE_PROJECT")
	ReadProject   = scoped("READ_PROJECT")
	UpdateProject = scoped("UPDATE_PROJECT")
	DeleteProject = scoped("DELETE_PROJECT")

	CreateClient = scoped("CREATE_CLIENT")
	ReadClient   = scoped("READ_CLIENT")
	UpdateClient = scoped("UPDATE_CLIENT")
	DeleteClient = scoped("DELETE_CLIENT")
)

// Organization-level permissions without an ownership variant.
const (
	ManageTeam models.PermissionName = "MANAGE_TEAM"
	ReadTeam   models.PermissionName = "READ_TEAM"
)

// ScopedActions lists every resource-scoped action the API checks.
var ScopedActions = []Scoped{
	CreateTimer, ReadTimer, UpdateTimer, DeleteTimer, DeleteTimerNote,
	CreateTask, ReadTask, UpdateTask, DeleteTask,
	CreateProject, ReadProject, UpdateProject, DeleteProject,
	CreateClient, ReadClient, UpdateClient, DeleteClient,
}

var (
	everyone      = []models.OrgRole{models.OrgRoleEmployee, models.OrgRoleManager, models.OrgRoleAdmin}
	supervisors   = []models.OrgRole{models.OrgRoleManager, models.OrgRoleAdmin}
	administrator = []models.OrgRole{models.OrgRoleAdmin}
)

// DefaultCatalog returns the seed permission set.
func DefaultCatalog() []models.Permission {
	var catalog []models.Permission
	for _, action := range ScopedActions {
		others := administrator
		if strings.HasPrefix(string(action.Own), "READ_") || strings.HasPrefix(string(action.Own), "UPDATE_") {
			others = supervisors
		}
		catalog = append(catalog,
			models.Permission{Name: action.Own, Roles: cloneRoles(everyone)},
			models.Permission{Name: action.Others, Roles: cloneRoles(others)},
		)
	}
	catalog = append(catalog,
		models.Permission{Name: ManageTeam, Description: "invite, update and remove team members", Roles: cloneRoles(administrator)},
		models.Permission{Name: ReadTeam, Description: "list team members", Roles: cloneRoles(supervisors)},
	)
	return catalog
}

// ValidateCatalog fails when any scoped action is missing its own or
// _OTHERS variant, or when an organization-level permission is missing.
func ValidateCatalog(perms []models.Permission) error {
	defined := make(map[models.PermissionName]bool, len(perms))
	for _, p := range perms {
		defined[p.Name] = true
	}

	var missing []string
	for _, action := range ScopedActions {
		if !defined[action.Own] {
			missing = append(missing, string(action.Own))
		}
		if !defined[action.Others] {
			missing = append(missing, string(action.Others))
		}
	}
	for _, name := range []models.PermissionName{ManageTeam, ReadTeam} {
		if !defined[name] {
			missing = append(missing, string(name))
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("permission catalog incomplete, missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

func cloneRoles(roles []models.OrgRole) []models.OrgRole {
	out := make([]models.OrgRole, len(roles))
	copy(out, roles)
	return out
}
