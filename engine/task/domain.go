package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lifeline-hq/lifeline/engine/core"
)

var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrCommentNotFound    = errors.New("comment not found")
	ErrLinkNotFound       = errors.New("task link not found")
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrLinkExists         = errors.New("task link already exists")
)

// LinkType enumerates the directed relations between two tasks.
type LinkType string

const (
	LinkBlocks       LinkType = "blocks"
	LinkBlockedBy    LinkType = "blocked_by"
	LinkRelates      LinkType = "relates"
	LinkDuplicates   LinkType = "duplicates"
	LinkDuplicatedBy LinkType = "duplicated_by"
	LinkParent       LinkType = "parent"
	LinkChild        LinkType = "child"
)

func (t LinkType) Valid() bool {
	switch t {
	case LinkBlocks, LinkBlockedBy, LinkRelates, LinkDuplicates, LinkDuplicatedBy, LinkParent, LinkChild:
		return true
	default:
		return false
	}
}

// HistoryAction enumerates the audit record kinds attached to a task.
type HistoryAction string

const (
	ActionCreated           HistoryAction = "created"
	ActionUpdated           HistoryAction = "updated"
	ActionStageChanged      HistoryAction = "stage_changed"
	ActionFieldChanged      HistoryAction = "field_changed"
	ActionAttachmentAdded   HistoryAction = "attachment_added"
	ActionAttachmentDeleted HistoryAction = "attachment_deleted"
)

// Task belongs to exactly one project and one stage at a time.
type Task struct {
	ID          core.ID    `json:"id"                    db:"id"`
	ProjectID   core.ID    `json:"project_id"            db:"project_id"`
	StageID     core.ID    `json:"stage_id"              db:"stage_id"`
	Title       string     `json:"title"                 db:"title"`
	Description string     `json:"description"           db:"description"`
	AuthorID    *core.ID   `json:"author_id,omitempty"   db:"author_id"`
	AssigneeID  *core.ID   `json:"assignee_id,omitempty" db:"assignee_id"`
	Priority    int        `json:"priority"              db:"priority"`
	StartDate   *time.Time `json:"start_date,omitempty"  db:"start_date"`
	DueDate     *time.Time `json:"due_date,omitempty"    db:"due_date"`
	IsArchived  bool       `json:"is_archived"           db:"is_archived"`
	CreatedAt   time.Time  `json:"created_at"            db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"            db:"updated_at"`
}

// NewTask creates a task in the given project and stage.
func NewTask(projectID, stageID core.ID, title, description string, authorID *core.ID) (*Task, error) {
	if title == "" {
		return nil, fmt.Errorf("task title cannot be empty")
	}
	id, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate task ID: %w", err)
	}
	now := time.Now().UTC()
	return &Task{
		ID:          id,
		ProjectID:   projectID,
		StageID:     stageID,
		Title:       title,
		Description: description,
		AuthorID:    authorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// FieldValue holds the value of one custom field on one task.
type FieldValue struct {
	ID                core.ID         `json:"id"                  db:"id"`
	TaskID            core.ID         `json:"task_id"             db:"task_id"`
	FieldDefinitionID core.ID         `json:"field_definition_id" db:"field_definition_id"`
	Value             json.RawMessage `json:"value"               db:"value"`
}

// Comment is a threaded chat message on a task.
type Comment struct {
	ID        core.ID   `json:"id"                    db:"id"`
	TaskID    core.ID   `json:"task_id"               db:"task_id"`
	UserID    core.ID   `json:"user_id"               db:"user_id"`
	ReplyToID *core.ID  `json:"reply_to_id,omitempty" db:"reply_to_id"`
	Message   string    `json:"message"               db:"message"`
	IsEdited  bool      `json:"is_edited"             db:"is_edited"`
	CreatedAt time.Time `json:"created_at"            db:"created_at"`
	UpdatedAt time.Time `json:"updated_at"            db:"updated_at"`
}

// NewComment creates a comment, optionally replying to another comment.
func NewComment(taskID, userID core.ID, message string, replyTo *core.ID) (*Comment, error) {
	if message == "" {
		return nil, fmt.Errorf("comment message cannot be empty")
	}
	id, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate comment ID: %w", err)
	}
	now := time.Now().UTC()
	return &Comment{
		ID:        id,
		TaskID:    taskID,
		UserID:    userID,
		ReplyToID: replyTo,
		Message:   message,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// HistoryEntry is an audit record of one change to a task.
type HistoryEntry struct {
	ID          core.ID         `json:"id"                  db:"id"`
	TaskID      core.ID         `json:"task_id"             db:"task_id"`
	UserID      *core.ID        `json:"user_id,omitempty"   db:"user_id"`
	Action      HistoryAction   `json:"action"              db:"action"`
	Description string          `json:"description"         db:"description"`
	OldValue    json.RawMessage `json:"old_value,omitempty" db:"old_value"`
	NewValue    json.RawMessage `json:"new_value,omitempty" db:"new_value"`
	CreatedAt   time.Time       `json:"created_at"          db:"created_at"`
}

// NewHistoryEntry creates an audit record for a task change.
func NewHistoryEntry(taskID core.ID, userID *core.ID, action HistoryAction, description string, oldValue, newValue json.RawMessage) (*HistoryEntry, error) {
	id, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate history ID: %w", err)
	}
	return &HistoryEntry{
		ID:          id,
		TaskID:      taskID,
		UserID:      userID,
		Action:      action,
		Description: description,
		OldValue:    oldValue,
		NewValue:    newValue,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Link is a directed, typed relation from one task to another.
type Link struct {
	ID           core.ID   `json:"id"                   db:"id"`
	SourceTaskID core.ID   `json:"source_task_id"       db:"source_task_id"`
	TargetTaskID core.ID   `json:"target_task_id"       db:"target_task_id"`
	LinkType     LinkType  `json:"link_type"            db:"link_type"`
	CreatedBy    *core.ID  `json:"created_by,omitempty" db:"created_by"`
	CreatedAt    time.Time `json:"created_at"           db:"created_at"`
}

// Attachment stores file metadata; the bytes live in external storage.
type Attachment struct {
	ID             core.ID   `json:"id"              db:"id"`
	TaskID         core.ID   `json:"task_id"         db:"task_id"`
	Filename       string    `json:"filename"        db:"filename"`
	StoredFilename string    `json:"stored_filename" db:"stored_filename"`
	FileSize       int64     `json:"file_size"       db:"file_size"`
	MimeType       string    `json:"mime_type"       db:"mime_type"`
	UploadedBy     *core.ID  `json:"uploaded_by"     db:"uploaded_by"`
	UploadedAt     time.Time `json:"uploaded_at"     db:"uploaded_at"`
}
