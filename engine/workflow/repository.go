package workflow

import (
	"context"

	"github.com/lifeline-hq/lifeline/engine/access"
	"github.com/lifeline-hq/lifeline/engine/core"
)

// Repository defines data access for the transition graph.
type Repository interface {
	// CreateTransition returns ErrTransitionExists when the
	// (project, from, to) edge is already present.
	CreateTransition(ctx context.Context, t *Transition) error
	DeleteTransition(ctx context.Context, id core.ID) error
	ListTransitions(ctx context.Context, projectID core.ID) ([]*Transition, error)

	// CountTransitions reports the size of the project's graph. Zero means
	// the workflow is unconfigured and every movement is free.
	CountTransitions(ctx context.Context, projectID core.ID) (int, error)

	// TransitionExists reports whether a directional edge covers the movement.
	TransitionExists(ctx context.Context, projectID, fromStageID, toStageID core.ID) (bool, error)
}

// StageDirectory resolves a stage to its owning project.
type StageDirectory interface {
	GetStageRef(ctx context.Context, id core.ID) (*StageRef, error)
}

// TaskDirectory resolves a task to its owning project and current stage.
// Satisfied by the access repository.
type TaskDirectory interface {
	GetTaskRef(ctx context.Context, id core.ID) (*access.TaskRef, error)
}
