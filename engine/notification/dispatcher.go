package notification

import (
	"context"
	"fmt"

	"github.com/lifeline-hq/lifeline/engine/core"
	"github.com/lifeline-hq/lifeline/engine/user"
	"github.com/lifeline-hq/lifeline/pkg/logger"
)

// Dispatcher stores notifications and forwards them to Telegram for users who
// opted into the kind. A nil sender disables external delivery.
type Dispatcher struct {
	store  Repository
	users  user.Repository
	sender Sender
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(store Repository, users user.Repository, sender Sender) *Dispatcher {
	return &Dispatcher{store: store, users: users, sender: sender}
}

// Notify records a notification for the user and attempts external delivery.
// Delivery failures are logged, never propagated; the stored row is the
// source of truth.
func (d *Dispatcher) Notify(ctx context.Context, userID core.ID, taskID *core.ID, kind Kind, message string) error {
	n, err := New(userID, taskID, kind, message)
	if err != nil {
		return err
	}
	if err := d.store.Create(ctx, n); err != nil {
		return fmt.Errorf("storing notification: %w", err)
	}
	d.deliver(ctx, userID, kind, message)
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, userID core.ID, kind Kind, message string) {
	if d.sender == nil {
		return
	}
	log := logger.FromContext(ctx)
	recipient, err := d.users.GetUserByID(ctx, userID)
	if err != nil {
		log.Warn("loading notification recipient failed", "user_id", userID, "error", err)
		return
	}
	if !recipient.WantsNotification(string(kind)) {
		return
	}
	if err := d.sender.Send(ctx, recipient.Telegram, message); err != nil {
		log.Warn("telegram delivery failed", "user_id", userID, "kind", kind, "error", err)
	}
}
