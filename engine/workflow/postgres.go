package workflow

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

// NewPostgresRepository creates a transition repository backed by PostgreSQL.
func NewPostgresRepository(db DBInterface) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var transitionColumns = []string{"id", "project_id", "from_stage_id", "to_stage_id", "name"}

func (r *PostgresRepo) CreateTransition(ctx context.Context, t *Transition) error {
	query, args, err := squirrel.Insert("stage_transitions").
		Columns(transitionColumns...).
		Values(t.ID, t.ProjectID, t.FromStageID, t.ToStageID, t.Name).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrTransitionExists
		}
		return fmt.Errorf("inserting transition: %w", err)
	}
	return nil
}

func (r *PostgresRepo) DeleteTransition(ctx context.Context, id core.ID) error {
	query, args, err := squirrel.Delete("stage_transitions").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting transition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTransitionNotFound
	}
	return nil
}

func (r *PostgresRepo) ListTransitions(ctx context.Context, projectID core.ID) ([]*Transition, error) {
	query, args, err := squirrel.Select(transitionColumns...).
		From("stage_transitions").
		Where(squirrel.Eq{"project_id": projectID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var transitions []*Transition
	if err := pgxscan.Select(ctx, r.db, &transitions, query, args...); err != nil {
		return nil, fmt.Errorf("scanning transitions: %w", err)
	}
	return transitions, nil
}

func (r *PostgresRepo) CountTransitions(ctx context.Context, projectID core.ID) (int, error) {
	query, args, err := squirrel.Select("COUNT(*)").
		From("stage_transitions").
		Where(squirrel.Eq{"project_id": projectID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count query: %w", err)
	}
	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting transitions: %w", err)
	}
	return count, nil
}

func (r *PostgresRepo) TransitionExists(ctx context.Context, projectID, fromStageID, toStageID core.ID) (bool, error) {
	query, args, err := squirrel.Select("1").
		From("stage_transitions").
		Where(squirrel.Eq{
			"project_id":    projectID,
			"from_stage_id": fromStageID,
			"to_stage_id":   toStageID,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("building select query: %w", err)
	}
	var one int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("checking transition: %w", err)
	}
	return true, nil
}

// GetStageRef resolves a stage to its owning project, letting the repository
// double as the guard's StageDirectory.
func (r *PostgresRepo) GetStageRef(ctx context.Context, id core.ID) (*StageRef, error) {
	query, args, err := squirrel.Select("id", "project_id").
		From("stages").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var ref StageRef
	if err := pgxscan.Get(ctx, r.db, &ref, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrStageNotFound
		}
		return nil, fmt.Errorf("scanning stage ref: %w", err)
	}
	return &ref, nil
}
