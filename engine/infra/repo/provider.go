package repo

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lifeline-hq/lifeline/engine/access"
	"github.com/lifeline-hq/lifeline/engine/notification"
	"github.com/lifeline-hq/lifeline/engine/project"
	"github.com/lifeline-hq/lifeline/engine/task"
	"github.com/lifeline-hq/lifeline/engine/user"
	"github.com/lifeline-hq/lifeline/engine/workflow"
)

// Provider constructs repositories over one shared connection pool. It
// returns interfaces rather than driver-specific types, except where a
// repository deliberately doubles as a directory for the decision engines.
type Provider struct {
	pool *pgxpool.Pool
}

func NewProvider(pool *pgxpool.Pool) *Provider { return &Provider{pool: pool} }

// NewUserRepo returns a user, role, and tenancy repository.
func (p *Provider) NewUserRepo() user.Repository { return user.NewPostgresRepository(p.pool) }

// NewProjectRepo returns a project, stage, and field schema repository.
func (p *Provider) NewProjectRepo() project.Repository { return project.NewPostgresRepository(p.pool) }

// NewTaskRepo returns a task repository.
func (p *Provider) NewTaskRepo() task.Repository { return task.NewPostgresRepository(p.pool) }

// NewAccessRepo returns the grant and rule repository. The concrete type also
// serves as TaskDirectory, FieldDirectory, and FieldLister.
func (p *Provider) NewAccessRepo() *access.PostgresRepo { return access.NewPostgresRepository(p.pool) }

// NewWorkflowRepo returns the transition repository. The concrete type also
// serves as the guard's StageDirectory.
func (p *Provider) NewWorkflowRepo() *workflow.PostgresRepo {
	return workflow.NewPostgresRepository(p.pool)
}

// NewNotificationRepo returns a stored notification repository.
func (p *Provider) NewNotificationRepo() notification.Repository {
	return notification.NewPostgresRepository(p.pool)
}
