package workflow

import (
	"errors"
	"fmt"

	"github.com/lifeline-hq/lifeline/engine/core"
)

var (
	ErrTransitionNotFound = errors.New("transition not found")
	ErrTransitionExists   = errors.New("transition already exists")
	ErrStageNotFound      = errors.New("stage not found")
)

// DenyReason explains a negative guard verdict.
type DenyReason string

const (
	// ReasonInvalidStage means the target stage exists but belongs to a
	// different project than the task.
	ReasonInvalidStage DenyReason = "invalid-stage"
	// ReasonNotConfigured means the project has a transition graph and no
	// edge covers this movement.
	ReasonNotConfigured DenyReason = "transition-not-configured"
)

// Decision is the guard verdict. Reason is empty when Allowed.
type Decision struct {
	Allowed bool       `json:"allowed"`
	Reason  DenyReason `json:"reason,omitempty"`
}

// Allow returns a positive verdict.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a negative verdict with its reason.
func Deny(reason DenyReason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Transition is a directional edge in a project's stage graph. An edge from A
// to B never permits B to A.
type Transition struct {
	ID          core.ID `json:"id"            db:"id"`
	ProjectID   core.ID `json:"project_id"    db:"project_id"`
	FromStageID core.ID `json:"from_stage_id" db:"from_stage_id"`
	ToStageID   core.ID `json:"to_stage_id"   db:"to_stage_id"`
	Name        string  `json:"name"          db:"name"`
}

// NewTransition creates a directional edge between two stages of a project.
func NewTransition(projectID, fromStageID, toStageID core.ID, name string) (*Transition, error) {
	if projectID.IsZero() || fromStageID.IsZero() || toStageID.IsZero() {
		return nil, fmt.Errorf("project and both stages are required")
	}
	if fromStageID == toStageID {
		return nil, fmt.Errorf("transition cannot point a stage at itself")
	}
	id, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate transition ID: %w", err)
	}
	return &Transition{
		ID:          id,
		ProjectID:   projectID,
		FromStageID: fromStageID,
		ToStageID:   toStageID,
		Name:        name,
	}, nil
}

// StageRef is the minimal stage projection the guard needs.
type StageRef struct {
	ID        core.ID `db:"id"`
	ProjectID core.ID `db:"project_id"`
}
