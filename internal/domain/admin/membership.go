package admin

import (
	"context"
	"fmt"
)

// Membership resolves which organization a user acts for. It backs the
// authorization checks of the order workflow.
type Membership struct {
	users UserRepository
	orgs  OrganizationRepository
}

func NewMembership(users UserRepository, orgs OrganizationRepository) *Membership {
	return &Membership{users: users, orgs: orgs}
}

// OrganizationOf returns the organization of an active user.
func (m *Membership) OrganizationOf(ctx context.Context, userID int64) (int64, error) {
	u, err := m.users.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !u.IsActive {
		return 0, fmt.Errorf("%w: user %d is inactive", ErrUserNotFound, userID)
	}
	return u.OrganizationID, nil
}

// RadiologyGroup loads an organization and checks it can receive orders.
func (m *Membership) RadiologyGroup(ctx context.Context, orgID int64) (*Organization, error) {
	org, err := m.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org.Type != OrgTypeRadiologyGroup {
		return nil, ErrNotRadiologyGroup
	}
	return org, nil
}
