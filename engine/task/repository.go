package task

import (
	"context"

	"github.com/lifeline-hq/lifeline/engine/core"
)

// ListFilter narrows ListTasks results. Zero values mean "no constraint".
type ListFilter struct {
	StageID         *core.ID
	AssigneeID      *core.ID
	IncludeArchived bool
}

// Repository defines data access for tasks and their owned records.
type Repository interface {
	CreateTask(ctx context.Context, t *Task) error
	GetTaskByID(ctx context.Context, id core.ID) (*Task, error)
	ListTasks(ctx context.Context, projectID core.ID, filter ListFilter) ([]*Task, error)
	UpdateTask(ctx context.Context, t *Task) error
	DeleteTask(ctx context.Context, id core.ID) error

	// UpdateTaskStage moves the task to a new stage. Callers are responsible
	// for consulting the workflow guard first.
	UpdateTaskStage(ctx context.Context, taskID, stageID core.ID) error

	UpsertFieldValue(ctx context.Context, v *FieldValue) error
	ListFieldValues(ctx context.Context, taskID core.ID) ([]*FieldValue, error)

	CreateComment(ctx context.Context, c *Comment) error
	GetCommentByID(ctx context.Context, id core.ID) (*Comment, error)
	ListComments(ctx context.Context, taskID core.ID) ([]*Comment, error)
	UpdateComment(ctx context.Context, c *Comment) error
	DeleteComment(ctx context.Context, id core.ID) error

	CreateHistoryEntry(ctx context.Context, h *HistoryEntry) error
	ListHistory(ctx context.Context, taskID core.ID) ([]*HistoryEntry, error)

	CreateLink(ctx context.Context, l *Link) error
	ListLinks(ctx context.Context, taskID core.ID) ([]*Link, error)
	DeleteLink(ctx context.Context, id core.ID) error

	CreateAttachment(ctx context.Context, a *Attachment) error
	GetAttachmentByID(ctx context.Context, id core.ID) (*Attachment, error)
	ListAttachments(ctx context.Context, taskID core.ID) ([]*Attachment, error)
	DeleteAttachment(ctx context.Context, id core.ID) error
}
