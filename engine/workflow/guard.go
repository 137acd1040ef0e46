package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/lifeline-hq/lifeline/engine/access"
	"github.com/lifeline-hq/lifeline/engine/core"
	"github.com/lifeline-hq/lifeline/engine/user"
)

// Guard decides whether a task may move between stages. A project with no
// configured transitions imposes no restriction at all; the first edge added
// flips the whole project into restricted mode.
type Guard struct {
	transitions Repository
	stages      StageDirectory
	tasks       TaskDirectory
}

// NewGuard creates a workflow transition guard.
func NewGuard(transitions Repository, stages StageDirectory, tasks TaskDirectory) *Guard {
	return &Guard{transitions: transitions, stages: stages, tasks: tasks}
}

// CanTransition evaluates a proposed stage move for a task. The force flag
// bypasses graph checks but never structural ones: a stage from another
// project stays invalid even when forced. A nonexistent task or target stage
// surfaces as a NOT_FOUND coded error rather than a verdict.
func (g *Guard) CanTransition(
	ctx context.Context,
	principal *user.User,
	taskID, targetStageID core.ID,
	force bool,
) (Decision, error) {
	ref, err := g.tasks.GetTaskRef(ctx, taskID)
	if err != nil {
		if errors.Is(err, access.ErrTaskNotFound) {
			return Decision{}, core.NewError(err, core.ErrCodeNotFound, map[string]any{"task_id": taskID})
		}
		return Decision{}, fmt.Errorf("resolving task: %w", err)
	}
	target, err := g.stages.GetStageRef(ctx, targetStageID)
	if err != nil {
		if errors.Is(err, ErrStageNotFound) {
			return Decision{}, core.NewError(err, core.ErrCodeNotFound, map[string]any{"stage_id": targetStageID})
		}
		return Decision{}, fmt.Errorf("resolving stage: %w", err)
	}
	if target.ProjectID != ref.ProjectID {
		return Deny(ReasonInvalidStage), nil
	}
	if principal.IsAdmin || force {
		return Allow(), nil
	}
	count, err := g.transitions.CountTransitions(ctx, ref.ProjectID)
	if err != nil {
		return Decision{}, fmt.Errorf("counting transitions: %w", err)
	}
	if count == 0 {
		return Allow(), nil
	}
	exists, err := g.transitions.TransitionExists(ctx, ref.ProjectID, ref.StageID, targetStageID)
	if err != nil {
		return Decision{}, fmt.Errorf("checking transition edge: %w", err)
	}
	if !exists {
		return Deny(ReasonNotConfigured), nil
	}
	return Allow(), nil
}

// RequireTransition is CanTransition with the negative verdict folded into a
// coded TRANSITION_DENIED error carrying the reason.
func (g *Guard) RequireTransition(
	ctx context.Context,
	principal *user.User,
	taskID, targetStageID core.ID,
	force bool,
) error {
	decision, err := g.CanTransition(ctx, principal, taskID, targetStageID, force)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return core.NewError(
			fmt.Errorf("transition denied: %s", decision.Reason),
			core.ErrCodeTransitionDenied,
			map[string]any{"reason": string(decision.Reason)},
		)
	}
	return nil
}
