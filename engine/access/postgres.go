package access

import (
	"context"
	"errors"
	"fmt"

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

type PostgresRepo struct {
	db DBInterface
}

// NewPostgresRepository creates a grant and rule repository backed by
// PostgreSQL. It also serves as the TaskDirectory, FieldDirectory, and
// FieldLister the evaluator and resolver depend on.
func NewPostgresRepository(db DBInterface) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var projectGrantColumns = []string{"id", "user_id", "project_id", "permission_type"}

func (r *PostgresRepo) GetProjectGrant(ctx context.Context, userID, projectID core.ID) (*ProjectGrant, error) {
	query, args, err := squirrel.Select(projectGrantColumns...).
		From("project_permissions").
		Where(squirrel.Eq{"user_id": userID, "project_id": projectID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var g ProjectGrant
	if err := pgxscan.Get(ctx, r.db, &g, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrGrantNotFound
		}
		return nil, fmt.Errorf("scanning project grant: %w", err)
	}
	return &g, nil
}

func (r *PostgresRepo) UpsertProjectGrant(ctx context.Context, g *ProjectGrant) error {
	query, args, err := squirrel.Insert("project_permissions").
		Columns(projectGrantColumns...).
		Values(g.ID, g.UserID, g.ProjectID, g.Level).
		Suffix("ON CONFLICT (user_id, project_id) DO UPDATE SET permission_type = EXCLUDED.permission_type").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building upsert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting project grant: %w", err)
	}
	return nil
}

func (r *PostgresRepo) DeleteProjectGrant(ctx context.Context, userID, projectID core.ID) error {
	query, args, err := squirrel.Delete("project_permissions").
		Where(squirrel.Eq{"user_id": userID, "project_id": projectID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting project grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGrantNotFound
	}
	return nil
}

func (r *PostgresRepo) ListProjectGrants(ctx context.Context, projectID core.ID) ([]*ProjectGrant, error) {
	query, args, err := squirrel.Select(projectGrantColumns...).
		From("project_permissions").
		Where(squirrel.Eq{"project_id": projectID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var grants []*ProjectGrant
	if err := pgxscan.Select(ctx, r.db, &grants, query, args...); err != nil {
		return nil, fmt.Errorf("scanning project grants: %w", err)
	}
	return grants, nil
}

func (r *PostgresRepo) ListAccessibleProjectIDs(ctx context.Context, userID core.ID) ([]core.ID, error) {
	query, args, err := squirrel.Select("project_id").
		From("project_permissions").
		Where(squirrel.Eq{"user_id": userID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var ids []core.ID
	if err := pgxscan.Select(ctx, r.db, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("scanning project IDs: %w", err)
	}
	return ids, nil
}

var taskGrantColumns = []string{"id", "user_id", "task_id", "permission_type"}

func (r *PostgresRepo) GetTaskGrant(ctx context.Context, userID, taskID core.ID) (*TaskGrant, error) {
	query, args, err := squirrel.Select(taskGrantColumns...).
		From("task_permissions").
		Where(squirrel.Eq{"user_id": userID, "task_id": taskID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var g TaskGrant
	if err := pgxscan.Get(ctx, r.db, &g, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrGrantNotFound
		}
		return nil, fmt.Errorf("scanning task grant: %w", err)
	}
	return &g, nil
}

func (r *PostgresRepo) UpsertTaskGrant(ctx context.Context, g *TaskGrant) error {
	query, args, err := squirrel.Insert("task_permissions").
		Columns(taskGrantColumns...).
		Values(g.ID, g.UserID, g.TaskID, g.Level).
		Suffix("ON CONFLICT (user_id, task_id) DO UPDATE SET permission_type = EXCLUDED.permission_type").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building upsert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting task grant: %w", err)
	}
	return nil
}

func (r *PostgresRepo) DeleteTaskGrant(ctx context.Context, userID, taskID core.ID) error {
	query, args, err := squirrel.Delete("task_permissions").
		Where(squirrel.Eq{"user_id": userID, "task_id": taskID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting task grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGrantNotFound
	}
	return nil
}

var fieldGrantColumns = []string{"id", "user_id", "field_definition_id", "permission_type"}

func (r *PostgresRepo) GetFieldGrant(ctx context.Context, userID, fieldID core.ID) (*FieldGrant, error) {
	query, args, err := squirrel.Select(fieldGrantColumns...).
		From("field_permissions").
		Where(squirrel.Eq{"user_id": userID, "field_definition_id": fieldID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var g FieldGrant
	if err := pgxscan.Get(ctx, r.db, &g, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrGrantNotFound
		}
		return nil, fmt.Errorf("scanning field grant: %w", err)
	}
	return &g, nil
}

func (r *PostgresRepo) UpsertFieldGrant(ctx context.Context, g *FieldGrant) error {
	query, args, err := squirrel.Insert("field_permissions").
		Columns(fieldGrantColumns...).
		Values(g.ID, g.UserID, g.FieldDefinitionID, g.Level).
		Suffix("ON CONFLICT (user_id, field_definition_id) DO UPDATE SET permission_type = EXCLUDED.permission_type").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building upsert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting field grant: %w", err)
	}
	return nil
}

func (r *PostgresRepo) DeleteFieldGrant(ctx context.Context, userID, fieldID core.ID) error {
	query, args, err := squirrel.Delete("field_permissions").
		Where(squirrel.Eq{"user_id": userID, "field_definition_id": fieldID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting field grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGrantNotFound
	}
	return nil
}

var fieldRuleColumns = []string{"id", "field_definition_id", "stage_id", "role_id"}

func (r *PostgresRepo) CreateFieldRule(ctx context.Context, rule *FieldRule) error {
	query, args, err := squirrel.Insert("field_edit_rules").
		Columns(fieldRuleColumns...).
		Values(rule.ID, rule.FieldDefinitionID, rule.StageID, rule.RoleID).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrRuleExists
		}
		return fmt.Errorf("inserting field rule: %w", err)
	}
	return nil
}

func (r *PostgresRepo) DeleteFieldRule(ctx context.Context, id core.ID) error {
	query, args, err := squirrel.Delete("field_edit_rules").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting field rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (r *PostgresRepo) ListFieldRules(ctx context.Context, fieldID core.ID) ([]*FieldRule, error) {
	query, args, err := squirrel.Select(fieldRuleColumns...).
		From("field_edit_rules").
		Where(squirrel.Eq{"field_definition_id": fieldID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var rules []*FieldRule
	if err := pgxscan.Select(ctx, r.db, &rules, query, args...); err != nil {
		return nil, fmt.Errorf("scanning field rules: %w", err)
	}
	return rules, nil
}

// ListEditableFieldIDs matches rules against the stage and role set in SQL.
// squirrel renders Eq with a nil value as IS NULL and with a slice as IN;
// an empty role slice renders as a false predicate, which still leaves the
// NULL-role wildcard branch matchable.
func (r *PostgresRepo) ListEditableFieldIDs(ctx context.Context, projectID, stageID core.ID, roleIDs []core.ID) ([]core.ID, error) {
	query, args, err := squirrel.Select("DISTINCT fd.id").
		From("field_edit_rules fer").
		Join("field_definitions fd ON fd.id = fer.field_definition_id").
		Where(squirrel.Eq{"fd.project_id": projectID}).
		Where(squirrel.Or{
			squirrel.Eq{"fer.stage_id": nil},
			squirrel.Eq{"fer.stage_id": stageID},
		}).
		Where(squirrel.Or{
			squirrel.Eq{"fer.role_id": nil},
			squirrel.Eq{"fer.role_id": roleIDs},
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var ids []core.ID
	if err := pgxscan.Select(ctx, r.db, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("scanning editable field IDs: %w", err)
	}
	return ids, nil
}

func (r *PostgresRepo) GetTaskRef(ctx context.Context, id core.ID) (*TaskRef, error) {
	query, args, err := squirrel.Select("id", "project_id", "stage_id").
		From("tasks").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var ref TaskRef
	if err := pgxscan.Get(ctx, r.db, &ref, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("scanning task ref: %w", err)
	}
	return &ref, nil
}

func (r *PostgresRepo) GetFieldRef(ctx context.Context, id core.ID) (*FieldRef, error) {
	query, args, err := squirrel.Select("id", "project_id").
		From("field_definitions").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var ref FieldRef
	if err := pgxscan.Get(ctx, r.db, &ref, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrFieldNotFound
		}
		return nil, fmt.Errorf("scanning field ref: %w", err)
	}
	return &ref, nil
}

func (r *PostgresRepo) ListFieldIDs(ctx context.Context, projectID core.ID) ([]core.ID, error) {
	query, args, err := squirrel.Select("id").
		From("field_definitions").
		Where(squirrel.Eq{"project_id": projectID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var ids []core.ID
	if err := pgxscan.Select(ctx, r.db, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("scanning field IDs: %w", err)
	}
	return ids, nil
}
