package notification

import (
	"errors"
	"fmt"
	"time"

	"github.com/lifeline-hq/lifeline/engine/core"
)

var ErrNotificationNotFound = errors.New("notification not found")

// Kind is the notification category users can opt in or out of.
type Kind string

const (
	KindTaskAssigned    Kind = "task_assigned"
	KindTaskUpdated     Kind = "task_updated"
	KindStageChanged    Kind = "stage_changed"
	KindCommentAdded    Kind = "comment_added"
	KindAttachmentAdded Kind = "attachment_added"
)

// Notification is a stored in-app notification for one user.
type Notification struct {
	ID        core.ID   `json:"id"                db:"id"`
	UserID    core.ID   `json:"user_id"           db:"user_id"`
	TaskID    *core.ID  `json:"task_id,omitempty" db:"task_id"`
	Kind      Kind      `json:"kind"              db:"kind"`
	Message   string    `json:"message"           db:"message"`
	IsRead    bool      `json:"is_read"           db:"is_read"`
	CreatedAt time.Time `json:"created_at"        db:"created_at"`
}

// New creates an unread notification for a user.
func New(userID core.ID, taskID *core.ID, kind Kind, message string) (*Notification, error) {
	if userID.IsZero() {
		return nil, fmt.Errorf("user ID cannot be empty")
	}
	if message == "" {
		return nil, fmt.Errorf("message cannot be empty")
	}
	id, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate notification ID: %w", err)
	}
	return &Notification{
		ID:        id,
		UserID:    userID,
		TaskID:    taskID,
		Kind:      kind,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}, nil
}
