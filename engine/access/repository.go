package access

import (
	"context"

	"github.com/lifeline-hq/lifeline/engine/core"
	"github.com/lifeline-hq/lifeline/engine/user"
)

// Repository defines data access for grants and field rules. All reads are
// side-effect free; writes are single-row inserts and deletes.
type Repository interface {
	// Project grants
	GetProjectGrant(ctx context.Context, userID, projectID core.ID) (*ProjectGrant, error)
	UpsertProjectGrant(ctx context.Context, g *ProjectGrant) error
	DeleteProjectGrant(ctx context.Context, userID, projectID core.ID) error
	ListProjectGrants(ctx context.Context, projectID core.ID) ([]*ProjectGrant, error)
	ListAccessibleProjectIDs(ctx context.Context, userID core.ID) ([]core.ID, error)

	// Task grants
	GetTaskGrant(ctx context.Context, userID, taskID core.ID) (*TaskGrant, error)
	UpsertTaskGrant(ctx context.Context, g *TaskGrant) error
	DeleteTaskGrant(ctx context.Context, userID, taskID core.ID) error

	// Field grants
	GetFieldGrant(ctx context.Context, userID, fieldID core.ID) (*FieldGrant, error)
	UpsertFieldGrant(ctx context.Context, g *FieldGrant) error
	DeleteFieldGrant(ctx context.Context, userID, fieldID core.ID) error

	// Field rules (pure allow-list). CreateFieldRule returns ErrRuleExists
	// when the (field, stage, role) tuple is already present.
	CreateFieldRule(ctx context.Context, rule *FieldRule) error
	DeleteFieldRule(ctx context.Context, id core.ID) error
	ListFieldRules(ctx context.Context, fieldID core.ID) ([]*FieldRule, error)

	// ListEditableFieldIDs returns the union of field definition IDs within
	// the project that any rule permits for the given stage and role set.
	// NULL stage and NULL role act as wildcards.
	ListEditableFieldIDs(ctx context.Context, projectID, stageID core.ID, roleIDs []core.ID) ([]core.ID, error)
}

// TaskDirectory resolves a task to its owning project and current stage.
type TaskDirectory interface {
	GetTaskRef(ctx context.Context, id core.ID) (*TaskRef, error)
}

// FieldDirectory resolves a field definition to its owning project.
type FieldDirectory interface {
	GetFieldRef(ctx context.Context, id core.ID) (*FieldRef, error)
}

// FieldLister enumerates all field definitions of a project, used for the
// admin fast path of the visibility resolver.
type FieldLister interface {
	ListFieldIDs(ctx context.Context, projectID core.ID) ([]core.ID, error)
}

// RoleDirectory exposes the role-membership reads the resolver needs.
// Satisfied by the user repository.
type RoleDirectory interface {
	ListRolesForUser(ctx context.Context, userID core.ID) ([]*user.Role, error)
	FindRoleByAnyName(ctx context.Context, names []string) (*user.Role, error)
}
