package admin

import "context"

// UserRepository reads users for authorization lookups.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
}

type OrganizationRepository interface {
	GetByID(ctx context.Context, id int64) (*Organization, error)
}
