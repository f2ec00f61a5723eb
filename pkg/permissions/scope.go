package permissions

import (
	"context"
	"fmt"

	"timetrack-backend/pkg/models"
)

// TeamStore resolves the people a caller supervises.
type TeamStore interface {
	ListOrganizationsByOwner(ctx context.Context, ownerID string) ([]models.Organization, error)
	ListTeamMembers(ctx context.Context, orgIDs []string) ([]models.TeamMember, error)
}

// VisibleOwners returns userID plus the user ids of every registered member
// of the organizations userID owns. It is the owner set for "_OTHERS" list
// views: organizations first, then their members.
func VisibleOwners(ctx context.Context, store TeamStore, userID string) ([]string, error) {
	orgs, err := store.ListOrganizationsByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list owned organizations: %w", err)
	}
	ids := []string{userID}
	if len(orgs) == 0 {
		return ids, nil
	}

	orgIDs := make([]string, 0, len(orgs))
	for _, o := range orgs {
		orgIDs = append(orgIDs, o.ID)
	}
	members, err := store.ListTeamMembers(ctx, orgIDs)
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}

	seen := map[string]bool{userID: true}
	for _, m := range members {
		if m.UserID == "" || seen[m.UserID] {
			continue
		}
		seen[m.UserID] = true
		ids = append(ids, m.UserID)
	}
	return ids, nil
}
