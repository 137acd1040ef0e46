package notification

import (
	"context"
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

type postgresRepo struct {
	db DBInterface
}

// NewPostgresRepository creates a notification repository backed by PostgreSQL.
func NewPostgresRepository(db DBInterface) Repository {
	return &postgresRepo{db: db}
}

var notificationColumns = []string{"id", "user_id", "task_id", "kind", "message", "is_read", "created_at"}

func (r *postgresRepo) Create(ctx context.Context, n *Notification) error {
	query, args, err := squirrel.Insert("notifications").
		Columns(notificationColumns...).
		Values(n.ID, n.UserID, n.TaskID, n.Kind, n.Message, n.IsRead, n.CreatedAt).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

func (r *postgresRepo) ListForUser(ctx context.Context, userID core.ID, unreadOnly bool) ([]*Notification, error) {
	builder := squirrel.Select(notificationColumns...).
		From("notifications").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC")
	if unreadOnly {
		builder = builder.Where(squirrel.Eq{"is_read": false})
	}
	query, args, err := builder.PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var notifications []*Notification
	if err := pgxscan.Select(ctx, r.db, &notifications, query, args...); err != nil {
		return nil, fmt.Errorf("scanning notifications: %w", err)
	}
	return notifications, nil
}

func (r *postgresRepo) MarkRead(ctx context.Context, id, userID core.ID) error {
	query, args, err := squirrel.Update("notifications").
		Set("is_read", true).
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *postgresRepo) MarkAllRead(ctx context.Context, userID core.ID) error {
	query, args, err := squirrel.Update("notifications").
		Set("is_read", true).
		Where(squirrel.Eq{"user_id": userID, "is_read": false}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("marking notifications read: %w", err)
	}
	return nil
}

func (r *postgresRepo) CountUnread(ctx context.Context, userID core.ID) (int, error) {
	query, args, err := squirrel.Select("COUNT(*)").
		From("notifications").
		Where(squirrel.Eq{"user_id": userID, "is_read": false}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count query: %w", err)
	}
	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return count, nil
}
