package notification

import (
	"context"

	"github.com/lifeline-hq/lifeline/engine/core"
)

// Repository defines data access for stored notifications.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListForUser(ctx context.Context, userID core.ID, unreadOnly bool) ([]*Notification, error)
	MarkRead(ctx context.Context, id, userID core.ID) error
	MarkAllRead(ctx context.Context, userID core.ID) error
	CountUnread(ctx context.Context, userID core.ID) (int, error)
}
