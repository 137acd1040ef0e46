package project

import (
	"context"

	"github.com/lifeline-hq/lifeline/engine/core"
)

// Repository defines data access for projects and their owned schema.
type Repository interface {
	CreateProject(ctx context.Context, p *Project) error
	GetProjectByID(ctx context.Context, id core.ID) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	ListProjectsByIDs(ctx context.Context, ids []core.ID) ([]*Project, error)
	UpdateProject(ctx context.Context, p *Project) error
	DeleteProject(ctx context.Context, id core.ID) error

	CreateStage(ctx context.Context, s *Stage) error
	GetStageByID(ctx context.Context, id core.ID) (*Stage, error)
	ListStages(ctx context.Context, projectID core.ID) ([]*Stage, error)
	UpdateStage(ctx context.Context, s *Stage) error
	DeleteStage(ctx context.Context, id core.ID) error

	CreateFieldGroup(ctx context.Context, g *FieldGroup) error
	ListFieldGroups(ctx context.Context, projectID core.ID) ([]*FieldGroup, error)
	DeleteFieldGroup(ctx context.Context, id core.ID) error

	CreateFieldDefinition(ctx context.Context, f *FieldDefinition) error
	GetFieldDefinitionByID(ctx context.Context, id core.ID) (*FieldDefinition, error)
	ListFieldDefinitions(ctx context.Context, projectID core.ID) ([]*FieldDefinition, error)
	UpdateFieldDefinition(ctx context.Context, f *FieldDefinition) error
	DeleteFieldDefinition(ctx context.Context, id core.ID) error
}
