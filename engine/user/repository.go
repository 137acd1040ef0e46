package user

import (
	"context"

	"github.com/lifeline-hq/lifeline/engine/core"
)

// Repository defines data access for principals, roles, and tenancy.
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id core.ID) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	UpdateUser(ctx context.Context, u *User) error
	DeleteUser(ctx context.Context, id core.ID) error

	// CreateInitialAdminIfNone atomically creates the bootstrap admin if no
	// admin exists. Returns ErrAlreadyBootstrap when one does.
	CreateInitialAdminIfNone(ctx context.Context, u *User) error

	// Role operations
	CreateRole(ctx context.Context, r *Role) error
	GetRoleByID(ctx context.Context, id core.ID) (*Role, error)
	ListRoles(ctx context.Context) ([]*Role, error)
	DeleteRole(ctx context.Context, id core.ID) error

	// FindRoleByAnyName returns the first role whose name matches any of the
	// given candidates case-insensitively, or ErrRoleNotFound.
	FindRoleByAnyName(ctx context.Context, names []string) (*Role, error)

	// Membership
	ListRolesForUser(ctx context.Context, userID core.ID) ([]*Role, error)
	AssignRole(ctx context.Context, userID, roleID core.ID) error
	RemoveRole(ctx context.Context, userID, roleID core.ID) error

	// Tenancy
	CreateOrganization(ctx context.Context, o *Organization) error
	ListOrganizations(ctx context.Context) ([]*Organization, error)
	DeleteOrganization(ctx context.Context, id core.ID) error
	CreateDepartment(ctx context.Context, d *Department) error
	ListDepartments(ctx context.Context, orgID core.ID) ([]*Department, error)
	DeleteDepartment(ctx context.Context, id core.ID) error
}
