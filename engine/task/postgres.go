package task

import (
	"context"
	"errors"
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

// NewPostgresRepository creates a task repository backed by PostgreSQL.
func NewPostgresRepository(db DBInterface) Repository {
	return &postgresRepo{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var taskColumns = []string{
	"id", "project_id", "stage_id", "title", "description", "author_id",
	"assignee_id", "priority", "start_date", "due_date", "is_archived",
	"created_at", "updated_at",
}

func (r *postgresRepo) CreateTask(ctx context.Context, t *Task) error {
	query, args, err := squirrel.Insert("tasks").
		Columns(taskColumns...).
		Values(
			t.ID, t.ProjectID, t.StageID, t.Title, t.Description, t.AuthorID,
			t.AssigneeID, t.Priority, t.StartDate, t.DueDate, t.IsArchived,
			t.CreatedAt, t.UpdatedAt,
		).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

func (r *postgresRepo) GetTaskByID(ctx context.Context, id core.ID) (*Task, error) {
	query, args, err := squirrel.Select(taskColumns...).
		From("tasks").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var t Task
	if err := pgxscan.Get(ctx, r.db, &t, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("scanning task: %w", err)
	}
	return &t, nil
}

func (r *postgresRepo) ListTasks(ctx context.Context, projectID core.ID, filter ListFilter) ([]*Task, error) {
	qb := squirrel.Select(taskColumns...).
		From("tasks").
		Where(squirrel.Eq{"project_id": projectID}).
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar)
	if filter.StageID != nil {
		qb = qb.Where(squirrel.Eq{"stage_id": *filter.StageID})
	}
	if filter.AssigneeID != nil {
		qb = qb.Where(squirrel.Eq{"assignee_id": *filter.AssigneeID})
	}
	if !filter.IncludeArchived {
		qb = qb.Where(squirrel.Eq{"is_archived": false})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var tasks []*Task
	if err := pgxscan.Select(ctx, r.db, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("scanning tasks: %w", err)
	}
	return tasks, nil
}

func (r *postgresRepo) UpdateTask(ctx context.Context, t *Task) error {
	query, args, err := squirrel.Update("tasks").
		Set("title", t.Title).
		Set("description", t.Description).
		Set("assignee_id", t.AssigneeID).
		Set("priority", t.Priority).
		Set("start_date", t.StartDate).
		Set("due_date", t.DueDate).
		Set("is_archived", t.IsArchived).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": t.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *postgresRepo) DeleteTask(ctx context.Context, id core.ID) error {
	query, args, err := squirrel.Delete("tasks").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *postgresRepo) UpdateTaskStage(ctx context.Context, taskID, stageID core.ID) error {
	query, args, err := squirrel.Update("tasks").
		Set("stage_id", stageID).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": taskID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating task stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *postgresRepo) UpsertFieldValue(ctx context.Context, v *FieldValue) error {
	query := `
		INSERT INTO field_values (id, task_id, field_definition_id, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (task_id, field_definition_id)
		DO UPDATE SET value = EXCLUDED.value
	`
	if _, err := r.db.Exec(ctx, query, v.ID, v.TaskID, v.FieldDefinitionID, v.Value); err != nil {
		return fmt.Errorf("upserting field value: %w", err)
	}
	return nil
}

func (r *postgresRepo) ListFieldValues(ctx context.Context, taskID core.ID) ([]*FieldValue, error) {
	query, args, err := squirrel.Select("id", "task_id", "field_definition_id", "value").
		From("field_values").
		Where(squirrel.Eq{"task_id": taskID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var values []*FieldValue
	if err := pgxscan.Select(ctx, r.db, &values, query, args...); err != nil {
		return nil, fmt.Errorf("scanning field values: %w", err)
	}
	return values, nil
}

var commentColumns = []string{"id", "task_id", "user_id", "reply_to_id", "message", "is_edited", "created_at", "updated_at"}

func (r *postgresRepo) CreateComment(ctx context.Context, c *Comment) error {
	query, args, err := squirrel.Insert("task_comments").
		Columns(commentColumns...).
		Values(c.ID, c.TaskID, c.UserID, c.ReplyToID, c.Message, c.IsEdited, c.CreatedAt, c.UpdatedAt).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting comment: %w", err)
	}
	return nil
}

func (r *postgresRepo) GetCommentByID(ctx context.Context, id core.ID) (*Comment, error) {
	query, args, err := squirrel.Select(commentColumns...).
		From("task_comments").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var c Comment
	if err := pgxscan.Get(ctx, r.db, &c, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrCommentNotFound
		}
		return nil, fmt.Errorf("scanning comment: %w", err)
	}
	return &c, nil
}

func (r *postgresRepo) ListComments(ctx context.Context, taskID core.ID) ([]*Comment, error) {
	query, args, err := squirrel.Select(commentColumns...).
		From("task_comments").
		Where(squirrel.Eq{"task_id": taskID}).
		OrderBy("created_at ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var comments []*Comment
	if err := pgxscan.Select(ctx, r.db, &comments, query, args...); err != nil {
		return nil, fmt.Errorf("scanning comments: %w", err)
	}
	return comments, nil
}

func (r *postgresRepo) UpdateComment(ctx context.Context, c *Comment) error {
	query, args, err := squirrel.Update("task_comments").
		Set("message", c.Message).
		Set("is_edited", true).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": c.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCommentNotFound
	}
	return nil
}

func (r *postgresRepo) DeleteComment(ctx context.Context, id core.ID) error {
	query, args, err := squirrel.Delete("task_comments").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCommentNotFound
	}
	return nil
}

var historyColumns = []string{"id", "task_id", "user_id", "action", "description", "old_value", "new_value", "created_at"}

func (r *postgresRepo) CreateHistoryEntry(ctx context.Context, h *HistoryEntry) error {
	query, args, err := squirrel.Insert("task_history").
		Columns(historyColumns...).
		Values(h.ID, h.TaskID, h.UserID, h.Action, h.Description, h.OldValue, h.NewValue, h.CreatedAt).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting history entry: %w", err)
	}
	return nil
}

func (r *postgresRepo) ListHistory(ctx context.Context, taskID core.ID) ([]*HistoryEntry, error) {
	query, args, err := squirrel.Select(historyColumns...).
		From("task_history").
		Where(squirrel.Eq{"task_id": taskID}).
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var entries []*HistoryEntry
	if err := pgxscan.Select(ctx, r.db, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("scanning history: %w", err)
	}
	return entries, nil
}

var linkColumns = []string{"id", "source_task_id", "target_task_id", "link_type", "created_by", "created_at"}

func (r *postgresRepo) CreateLink(ctx context.Context, l *Link) error {
	query, args, err := squirrel.Insert("task_links").
		Columns(linkColumns...).
		Values(l.ID, l.SourceTaskID, l.TargetTaskID, l.LinkType, l.CreatedBy, l.CreatedAt).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrLinkExists
		}
		return fmt.Errorf("inserting task link: %w", err)
	}
	return nil
}

func (r *postgresRepo) ListLinks(ctx context.Context, taskID core.ID) ([]*Link, error) {
	query, args, err := squirrel.Select(linkColumns...).
		From("task_links").
		Where(squirrel.Or{
			squirrel.Eq{"source_task_id": taskID},
			squirrel.Eq{"target_task_id": taskID},
		}).
		OrderBy("created_at ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var links []*Link
	if err := pgxscan.Select(ctx, r.db, &links, query, args...); err != nil {
		return nil, fmt.Errorf("scanning task links: %w", err)
	}
	return links, nil
}

func (r *postgresRepo) DeleteLink(ctx context.Context, id core.ID) error {
	query, args, err := squirrel.Delete("task_links").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting task link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLinkNotFound
	}
	return nil
}

var attachmentColumns = []string{"id", "task_id", "filename", "stored_filename", "file_size", "mime_type", "uploaded_by", "uploaded_at"}

func (r *postgresRepo) CreateAttachment(ctx context.Context, a *Attachment) error {
	query, args, err := squirrel.Insert("task_attachments").
		Columns(attachmentColumns...).
		Values(a.ID, a.TaskID, a.Filename, a.StoredFilename, a.FileSize, a.MimeType, a.UploadedBy, a.UploadedAt).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting attachment: %w", err)
	}
	return nil
}

func (r *postgresRepo) GetAttachmentByID(ctx context.Context, id core.ID) (*Attachment, error) {
	query, args, err := squirrel.Select(attachmentColumns...).
		From("task_attachments").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var a Attachment
	if err := pgxscan.Get(ctx, r.db, &a, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrAttachmentNotFound
		}
		return nil, fmt.Errorf("scanning attachment: %w", err)
	}
	return &a, nil
}

func (r *postgresRepo) ListAttachments(ctx context.Context, taskID core.ID) ([]*Attachment, error) {
	query, args, err := squirrel.Select(attachmentColumns...).
		From("task_attachments").
		Where(squirrel.Eq{"task_id": taskID}).
		OrderBy("uploaded_at ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var attachments []*Attachment
	if err := pgxscan.Select(ctx, r.db, &attachments, query, args...); err != nil {
		return nil, fmt.Errorf("scanning attachments: %w", err)
	}
	return attachments, nil
}

func (r *postgresRepo) DeleteAttachment(ctx context.Context, id core.ID) error {
	query, args, err := squirrel.Delete("task_attachments").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting attachment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAttachmentNotFound
	}
	return nil
}
