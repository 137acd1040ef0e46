package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/lifeline-hq/lifeline/engine/core"
	"github.com/lifeline-hq/lifeline/engine/user"
	"github.com/lifeline-hq/lifeline/pkg/logger"
)

// Evaluator decides whether a principal may read or write a resource. It
// combines three independent grant layers as a strict OR: admin override,
// project grants (inherited by every task and field in the project), and
// resource-specific task/field grants. There is no deny primitive; removing
// access means deleting the grant row.
type Evaluator struct {
	grants Repository
	tasks  TaskDirectory
	fields FieldDirectory
}

// NewEvaluator creates an access evaluator over the given stores.
func NewEvaluator(grants Repository, tasks TaskDirectory, fields FieldDirectory) *Evaluator {
	return &Evaluator{grants: grants, tasks: tasks, fields: fields}
}

// CanAccess reports whether the principal may act on the resource at the
// required level. A missing resource surfaces as a NOT_FOUND coded error,
// distinct from a false verdict, so callers can keep 404 ahead of 403.
func (e *Evaluator) CanAccess(
	ctx context.Context,
	principal *user.User,
	kind ResourceKind,
	resourceID core.ID,
	required Level,
) (bool, error) {
	if !required.Valid() {
		return false, fmt.Errorf("invalid permission level: %s", required)
	}
	if principal.IsAdmin {
		return true, nil
	}
	switch kind {
	case KindProject:
		return e.canAccessProject(ctx, principal.ID, resourceID, required)
	case KindTask:
		return e.canAccessTask(ctx, principal.ID, resourceID, required)
	case KindField:
		return e.canAccessField(ctx, principal.ID, resourceID, required)
	default:
		return false, fmt.Errorf("unknown resource kind: %s", kind)
	}
}

// RequireAccess is CanAccess with the false verdict folded into a coded
// ACCESS_DENIED error. The error intentionally carries only the required
// level, not which grant layer was missing.
func (e *Evaluator) RequireAccess(
	ctx context.Context,
	principal *user.User,
	kind ResourceKind,
	resourceID core.ID,
	required Level,
) error {
	allowed, err := e.CanAccess(ctx, principal, kind, resourceID, required)
	if err != nil {
		return err
	}
	if !allowed {
		logger.FromContext(ctx).Debug("access denied",
			"user_id", principal.ID, "kind", kind, "resource_id", resourceID, "required", required)
		return core.NewError(ErrAccessDenied, core.ErrCodeAccessDenied, map[string]any{
			"required": string(required),
		})
	}
	return nil
}

func (e *Evaluator) canAccessProject(ctx context.Context, userID, projectID core.ID, required Level) (bool, error) {
	grant, err := e.grants.GetProjectGrant(ctx, userID, projectID)
	if err != nil {
		if errors.Is(err, ErrGrantNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("reading project grant: %w", err)
	}
	return grant.Level.Implies(required), nil
}

func (e *Evaluator) canAccessTask(ctx context.Context, userID, taskID core.ID, required Level) (bool, error) {
	ref, err := e.tasks.GetTaskRef(ctx, taskID)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return false, core.NewError(err, core.ErrCodeNotFound, map[string]any{"task_id": taskID})
		}
		return false, fmt.Errorf("resolving task: %w", err)
	}
	// Project grants are inherited transitively by every task in the project.
	allowed, err := e.canAccessProject(ctx, userID, ref.ProjectID, required)
	if err != nil {
		return false, err
	}
	if allowed {
		return true, nil
	}
	grant, err := e.grants.GetTaskGrant(ctx, userID, taskID)
	if err != nil {
		if errors.Is(err, ErrGrantNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("reading task grant: %w", err)
	}
	return grant.Level.Implies(required), nil
}

func (e *Evaluator) canAccessField(ctx context.Context, userID, fieldID core.ID, required Level) (bool, error) {
	ref, err := e.fields.GetFieldRef(ctx, fieldID)
	if err != nil {
		if errors.Is(err, ErrFieldNotFound) {
			return false, core.NewError(err, core.ErrCodeNotFound, map[string]any{"field_id": fieldID})
		}
		return false, fmt.Errorf("resolving field: %w", err)
	}
	allowed, err := e.canAccessProject(ctx, userID, ref.ProjectID, required)
	if err != nil {
		return false, err
	}
	if allowed {
		return true, nil
	}
	grant, err := e.grants.GetFieldGrant(ctx, userID, fieldID)
	if err != nil {
		if errors.Is(err, ErrGrantNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("reading field grant: %w", err)
	}
	return grant.Level.Implies(required), nil
}
