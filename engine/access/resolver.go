package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/lifeline-hq/lifeline/engine/core"
	"github.com/lifeline-hq/lifeline/engine/user"
)

// FieldSet is the resolver verdict: the field definition IDs a principal may
// edit on a task right now.
type FieldSet map[core.ID]struct{}

// Contains reports whether the field is editable.
func (s FieldSet) Contains(id core.ID) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the set as a slice in unspecified order.
func (s FieldSet) IDs() []core.ID {
	out := make([]core.ID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

// Resolver computes per-task field editability from the allow-list rules.
// It is stage-sensitive: moving a task to another stage changes the verdict
// on the next call with no cache to invalidate.
type Resolver struct {
	rules   Repository
	tasks   TaskDirectory
	fields  FieldLister
	roles   RoleDirectory
	aliases RoleAliasTable
}

// NewResolver creates a field visibility resolver. A nil alias table disables
// userType fallback entirely.
func NewResolver(rules Repository, tasks TaskDirectory, fields FieldLister, roles RoleDirectory, aliases RoleAliasTable) *Resolver {
	return &Resolver{rules: rules, tasks: tasks, fields: fields, roles: roles, aliases: aliases}
}

// EditableFields returns the set of field definitions the principal may edit
// on the task in its current stage. Admins get every field of the owning
// project. For everyone else the verdict is the union of all rules matching
// the task's stage (or NULL stage) and any of the principal's roles (or NULL
// role). A principal with zero persisted roles gets one inferred role from
// the legacy userType alias table before rule matching.
func (r *Resolver) EditableFields(ctx context.Context, principal *user.User, taskID core.ID) (FieldSet, error) {
	ref, err := r.tasks.GetTaskRef(ctx, taskID)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return nil, core.NewError(err, core.ErrCodeNotFound, map[string]any{"task_id": taskID})
		}
		return nil, fmt.Errorf("resolving task: %w", err)
	}
	if principal.IsAdmin {
		ids, err := r.fields.ListFieldIDs(ctx, ref.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("listing project fields: %w", err)
		}
		return toSet(ids), nil
	}
	roleIDs, err := r.effectiveRoleIDs(ctx, principal)
	if err != nil {
		return nil, err
	}
	ids, err := r.rules.ListEditableFieldIDs(ctx, ref.ProjectID, ref.StageID, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("matching field rules: %w", err)
	}
	return toSet(ids), nil
}

// CanEditField reports whether one specific field is editable on the task.
func (r *Resolver) CanEditField(ctx context.Context, principal *user.User, taskID, fieldID core.ID) (bool, error) {
	set, err := r.EditableFields(ctx, principal, taskID)
	if err != nil {
		return false, err
	}
	return set.Contains(fieldID), nil
}

// effectiveRoleIDs returns the principal's persisted role IDs, or a single
// inferred role when none exist. The fallback never fires for users with at
// least one real role assignment, even if that role grants nothing.
func (r *Resolver) effectiveRoleIDs(ctx context.Context, principal *user.User) ([]core.ID, error) {
	roles, err := r.roles.ListRolesForUser(ctx, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("listing user roles: %w", err)
	}
	if len(roles) > 0 {
		ids := make([]core.ID, len(roles))
		for i, role := range roles {
			ids[i] = role.ID
		}
		return ids, nil
	}
	names := r.aliases[principal.UserType]
	if len(names) == 0 {
		return nil, nil
	}
	inferred, err := r.roles.FindRoleByAnyName(ctx, names)
	if err != nil {
		if errors.Is(err, user.ErrRoleNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("inferring role from user type: %w", err)
	}
	return []core.ID{inferred.ID}, nil
}

func toSet(ids []core.ID) FieldSet {
	set := make(FieldSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
