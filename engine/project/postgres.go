package project

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lifeline-hq/lifeline/engine/core"
)

// DBInterface is the minimal pgx surface the repository needs.
type DBInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepo struct {
	db DBInterface
}

// NewPostgresRepository creates a project repository backed by PostgreSQL.
func NewPostgresRepository(db DBInterface) Repository {
	return &postgresRepo{db: db}
}

var projectColumns = []string{"id", "name", "description", "owner_id", "created_at", "updated_at"}

func (r *postgresRepo) CreateProject(ctx context.Context, p *Project) error {
	query, args, err := squirrel.Insert("projects").
		Columns(projectColumns...).
		Values(p.ID, p.Name, p.Description, p.OwnerID, p.CreatedAt, p.UpdatedAt).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

func (r *postgresRepo) GetProjectByID(ctx context.Context, id core.ID) (*Project, error) {
	query, args, err := squirrel.Select(projectColumns...).
		From("projects").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var p Project
	if err := pgxscan.Get(ctx, r.db, &p, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("scanning project: %w", err)
	}
	return &p, nil
}

func (r *postgresRepo) ListProjects(ctx context.Context) ([]*Project, error) {
	query, args, err := squirrel.Select(projectColumns...).
		From("projects").
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var projects []*Project
	if err := pgxscan.Select(ctx, r.db, &projects, query, args...); err != nil {
		return nil, fmt.Errorf("scanning projects: %w", err)
	}
	return projects, nil
}

func (r *postgresRepo) ListProjectsByIDs(ctx context.Context, ids []core.ID) ([]*Project, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := squirrel.Select(projectColumns...).
		From("projects").
		Where(squirrel.Eq{"id": ids}).
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var projects []*Project
	if err := pgxscan.Select(ctx, r.db, &projects, query, args...); err != nil {
		return nil, fmt.Errorf("scanning projects: %w", err)
	}
	return projects, nil
}

func (r *postgresRepo) UpdateProject(ctx context.Context, p *Project) error {
	query, args, err := squirrel.Update("projects").
		Set("name", p.Name).
		Set("description", p.Description).
		Set("owner_id", p.OwnerID).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": p.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func (r *postgresRepo) DeleteProject(ctx context.Context, id core.ID) error {
	query, args, err := squirrel.Delete("projects").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

var stageColumns = []string{"id", "project_id", "name", "sort_order", "color", "is_initial", "is_final"}

func (r *postgresRepo) CreateStage(ctx context.Context, s *Stage) error {
	query, args, err := squirrel.Insert("stages").
		Columns(stageColumns...).
		Values(s.ID, s.ProjectID, s.Name, s.Order, s.Color, s.IsInitial, s.IsFinal).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting stage: %w", err)
	}
	return nil
}

func (r *postgresRepo) GetStageByID(ctx context.Context, id core.ID) (*Stage, error) {
	query, args, err := squirrel.Select(stageColumns...).
		From("stages").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var s Stage
	if err := pgxscan.Get(ctx, r.db, &s, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrStageNotFound
		}
		return nil, fmt.Errorf("scanning stage: %w", err)
	}
	return &s, nil
}

func (r *postgresRepo) ListStages(ctx context.Context, projectID core.ID) ([]*Stage, error) {
	query, args, err := squirrel.Select(stageColumns...).
		From("stages").
		Where(squirrel.Eq{"project_id": projectID}).
		OrderBy("sort_order ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var stages []*Stage
	if err := pgxscan.Select(ctx, r.db, &stages, query, args...); err != nil {
		return nil, fmt.Errorf("scanning stages: %w", err)
	}
	return stages, nil
}

func (r *postgresRepo) UpdateStage(ctx context.Context, s *Stage) error {
	query, args, err := squirrel.Update("stages").
		Set("name", s.Name).
		Set("sort_order", s.Order).
		Set("color", s.Color).
		Set("is_initial", s.IsInitial).
		Set("is_final", s.IsFinal).
		Where(squirrel.Eq{"id": s.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStageNotFound
	}
	return nil
}

func (r *postgresRepo) DeleteStage(ctx context.Context, id core.ID) error {
	query, args, err := squirrel.Delete("stages").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStageNotFound
	}
	return nil
}

var groupColumns = []string{"id", "project_id", "name", "sort_order", "is_collapsed"}

func (r *postgresRepo) CreateFieldGroup(ctx context.Context, g *FieldGroup) error {
	query, args, err := squirrel.Insert("field_groups").
		Columns(groupColumns...).
		Values(g.ID, g.ProjectID, g.Name, g.Order, g.IsCollapsed).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting field group: %w", err)
	}
	return nil
}

func (r *postgresRepo) ListFieldGroups(ctx context.Context, projectID core.ID) ([]*FieldGroup, error) {
	query, args, err := squirrel.Select(groupColumns...).
		From("field_groups").
		Where(squirrel.Eq{"project_id": projectID}).
		OrderBy("sort_order ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var groups []*FieldGroup
	if err := pgxscan.Select(ctx, r.db, &groups, query, args...); err != nil {
		return nil, fmt.Errorf("scanning field groups: %w", err)
	}
	return groups, nil
}

func (r *postgresRepo) DeleteFieldGroup(ctx context.Context, id core.ID) error {
	query, args, err := squirrel.Delete("field_groups").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting field group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGroupNotFound
	}
	return nil
}

var fieldColumns = []string{"id", "project_id", "group_id", "name", "field_type", "options", "is_required", "sort_order"}

func (r *postgresRepo) CreateFieldDefinition(ctx context.Context, f *FieldDefinition) error {
	query, args, err := squirrel.Insert("field_definitions").
		Columns(fieldColumns...).
		Values(f.ID, f.ProjectID, f.GroupID, f.Name, f.FieldType, f.Options, f.IsRequired, f.Order).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting field definition: %w", err)
	}
	return nil
}

func (r *postgresRepo) GetFieldDefinitionByID(ctx context.Context, id core.ID) (*FieldDefinition, error) {
	query, args, err := squirrel.Select(fieldColumns...).
		From("field_definitions").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var f FieldDefinition
	if err := pgxscan.Get(ctx, r.db, &f, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrFieldNotFound
		}
		return nil, fmt.Errorf("scanning field definition: %w", err)
	}
	return &f, nil
}

func (r *postgresRepo) ListFieldDefinitions(ctx context.Context, projectID core.ID) ([]*FieldDefinition, error) {
	query, args, err := squirrel.Select(fieldColumns...).
		From("field_definitions").
		Where(squirrel.Eq{"project_id": projectID}).
		OrderBy("sort_order ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var fields []*FieldDefinition
	if err := pgxscan.Select(ctx, r.db, &fields, query, args...); err != nil {
		return nil, fmt.Errorf("scanning field definitions: %w", err)
	}
	return fields, nil
}

func (r *postgresRepo) UpdateFieldDefinition(ctx context.Context, f *FieldDefinition) error {
	query, args, err := squirrel.Update("field_definitions").
		Set("group_id", f.GroupID).
		Set("name", f.Name).
		Set("field_type", f.FieldType).
		Set("options", f.Options).
		Set("is_required", f.IsRequired).
		Set("sort_order", f.Order).
		Where(squirrel.Eq{"id": f.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating field definition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFieldNotFound
	}
	return nil
}

func (r *postgresRepo) DeleteFieldDefinition(ctx context.Context, id core.ID) error {
	query, args, err := squirrel.Delete("field_definitions").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting field definition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFieldNotFound
	}
	return nil
}
