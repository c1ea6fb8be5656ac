/*
notify.go - Notification dispatcher

PURPOSE:
  Appends immutable notifications and fans events out to recipient sets.
  Formatting and transport (push, email, poll) are collaborators; the core
  only guarantees that an emitted notification is durably visible to
  subsequent reads by its recipient.

DELIVERY SEMANTICS:
  At-least-once with idempotent appends. Every emit carries a dedup key
  derived from the originating event (order id + transition, reset run +
  student, ...). A retried emit for the same (recipient, event) pair hits
  the store's uniqueness constraint and is treated as success, so fan-out
  batches can be retried blindly.

FAN-OUT:
  "All staff" is resolved against the live roster at emission time: one
  individual append per current staff identity. Staff added afterwards do
  not retroactively receive past notifications. A failing append does not
  abort the rest of the batch; the first error is reported so the caller
  can re-run the batch (dedup makes that safe).

READ FLAG:
  MarkRead and MarkAllRead are idempotent; re-marking an already-read
  notification is a no-op, not an error.

SEE ALSO:
  - store.go: AppendNotification uniqueness contract
*/
package market

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// DISPATCHER
// =============================================================================

type Dispatcher struct {
	store NotificationStore
	users UserStore
	log   *zap.Logger
}

func NewDispatcher(store NotificationStore, users UserStore, log *zap.Logger) *Dispatcher {
	return &Dispatcher{store: store, users: users, log: log}
}

// Emit appends one notification. relatedID may be empty. dedupKey must be
// deterministic per (recipient, event); a replay is a silent no-op.
func (d *Dispatcher) Emit(ctx context.Context, recipient UserID, message string, category NotificationCategory, relatedID, dedupKey string) error {
	n := &Notification{
		ID:          NotificationID(uuid.NewString()),
		RecipientID: recipient,
		Message:     message,
		Category:    category,
		Read:        false,
		RelatedID:   relatedID,
		DedupKey:    dedupKey,
		CreatedAt:   time.Now().UTC(),
	}

	err := d.store.AppendNotification(ctx, n)
	if errors.Is(err, ErrDuplicateNotification) {
		d.log.Debug("notification already delivered",
			zap.String("recipient", string(recipient)), zap.String("dedup", dedupKey))
		return nil
	}
	return err
}

// FanOutStaff emits one notification per current staff identity. eventKey is
// the event-level dedup key; the per-recipient key appends the recipient id.
// Delivery continues past individual failures; the first error is returned.
func (d *Dispatcher) FanOutStaff(ctx context.Context, message string, category NotificationCategory, relatedID, eventKey string) error {
	staff, err := d.users.ListStaff(ctx)
	if err != nil {
		return err
	}

	var firstErr error
	for _, member := range staff {
		key := EventKey(eventKey, string(member.ID))
		if err := d.Emit(ctx, member.ID, message, category, relatedID, key); err != nil {
			d.log.Warn("staff notification failed",
				zap.String("recipient", string(member.ID)), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Feed returns the recipient's notifications, newest first.
func (d *Dispatcher) Feed(ctx context.Context, recipient UserID, limit int) ([]Notification, error) {
	return d.store.ListNotifications(ctx, recipient, limit)
}

// MarkRead sets the read flag. Idempotent.
func (d *Dispatcher) MarkRead(ctx context.Context, id NotificationID) error {
	return d.store.MarkRead(ctx, id)
}

// MarkAllRead sets the read flag on every unread notification for the
// recipient. Idempotent.
func (d *Dispatcher) MarkAllRead(ctx context.Context, recipient UserID) error {
	return d.store.MarkAllRead(ctx, recipient)
}
