/*
order.go - Order state machine and checkout coordination

PURPOSE:
  Converts a validated cart into a durable order while decrementing shared
  inventory and debiting the student's token balance, then drives the order
  through its lifecycle.

LIFECYCLE:
  pending -> ready -> completed
  pending|ready -> cancelled

  Terminal: completed, cancelled. Only staff advance pending->ready and
  ready->completed; the owning student or staff may cancel.

CHECKOUT FLOW (Create):
  1. Re-validate the cart (final say on rules, not on stock).
  2. Reserve every line in order. If line k fails, release lines 0..k-1 and
     surface the original error. No partial orders.
  3. Debit one token per distinct line. On failure release everything.
  4. Persist the order as pending. On failure release everything and credit
     the tokens back.
  5. Fan out the new-order notice to staff.

COMPENSATION, NOT TRANSACTIONS:
  Multi-resource steps are undone with compensating actions rather than a
  cross-resource transaction. KNOWN LIMITATION: a crash between a reserve
  and its rollback leaves the reservation applied with no order to show for
  it. A store with multi-document transactions would close that window.

RACE SAFETY:
  Status flips go through the store's guarded UpdateOrderStatus, so a
  pending->ready and a cancel racing on the same order never both succeed.
  Cancel flips the status BEFORE releasing stock and refunding tokens: the
  conditional flip decides the race winner, which prevents a double refund.
  (The original flow refunded first; flipping first is the redesigned,
  race-safe ordering.)

SEE ALSO:
  - cart.go: Validation rules
  - inventory.go, tokens.go: The two ledgers this machine coordinates
*/
package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notification texts for order lifecycle events.
const (
	msgOrderReady     = "Your order is ready for pickup! Please visit the Bulldogs Market during your selected time slot."
	msgOrderCompleted = "Your order has been marked as completed. Thank you for using Bulldogs Market!"
	msgOrderRefunded  = "Your order has been cancelled and your tokens have been refunded."
)

// =============================================================================
// ORDER SERVICE
// =============================================================================

type OrderService struct {
	orders    OrderStore
	users     UserStore
	validator *CartValidator
	inventory *InventoryLedger
	tokens    *TokenLedger
	notify    *Dispatcher
	log       *zap.Logger
}

func NewOrderService(
	orders OrderStore,
	users UserStore,
	validator *CartValidator,
	inventory *InventoryLedger,
	tokens *TokenLedger,
	notify *Dispatcher,
	log *zap.Logger,
) *OrderService {
	return &OrderService{
		orders:    orders,
		users:     users,
		validator: validator,
		inventory: inventory,
		tokens:    tokens,
		notify:    notify,
		log:       log,
	}
}

// Create turns a cart into a pending order. See the file header for the
// step-by-step flow and rollback rules. Returns the persisted order.
func (s *OrderService) Create(ctx context.Context, studentID UserID, cart Cart, pickupTime time.Time) (*Order, error) {
	student, err := s.users.GetUser(ctx, studentID)
	if err != nil {
		return nil, err
	}

	lines, err := s.validator.Validate(ctx, cart)
	if err != nil {
		return nil, err
	}

	// Reserve each line; on failure, release what was already taken.
	for i, line := range lines {
		if _, err := s.inventory.Reserve(ctx, line.ItemID, line.Quantity); err != nil {
			s.releaseLines(ctx, lines[:i])
			return nil, err
		}
	}

	// One token per distinct item.
	tokensCharged := len(lines)
	if _, err := s.tokens.Debit(ctx, studentID, tokensCharged); err != nil {
		s.releaseLines(ctx, lines)
		return nil, err
	}

	order := &Order{
		ID:            OrderID(uuid.NewString()),
		StudentID:     studentID,
		StudentEmail:  student.Email,
		Lines:         lines,
		Status:        OrderPending,
		PickupTime:    pickupTime,
		TokensCharged: tokensCharged,
		CreatedAt:     time.Now().UTC(),
		Version:       1,
	}
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		s.releaseLines(ctx, lines)
		if _, cerr := s.tokens.Credit(ctx, studentID, tokensCharged); cerr != nil {
			s.log.Error("token refund failed after order persist failure",
				zap.String("student", string(studentID)), zap.Error(cerr))
		}
		return nil, err
	}

	msg := fmt.Sprintf("New order received from %s.", student.Email)
	if err := s.notify.FanOutStaff(ctx, msg, NotifyOrder, string(order.ID), EventKey("order", string(order.ID), "created")); err != nil {
		s.log.Warn("new-order fan-out failed", zap.String("order", string(order.ID)), zap.Error(err))
	}

	s.log.Info("order created",
		zap.String("order", string(order.ID)),
		zap.String("student", string(studentID)),
		zap.Int("tokens", tokensCharged))
	return order, nil
}

// UpdateStatus advances an order along the forward path. Staff only.
// Cancellation has its own entry point; passing OrderCancelled here is an
// invalid transition.
func (s *OrderService) UpdateStatus(ctx context.Context, id OrderID, to OrderStatus, actor Actor) error {
	if !actor.IsStaff() {
		return ErrForbidden
	}
	if !to.Valid() || to == OrderCancelled || to == OrderPending {
		return &TransitionError{OrderID: id, To: to}
	}

	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(order.Status, to) {
		return &TransitionError{OrderID: id, From: order.Status, To: to}
	}

	err = s.orders.UpdateOrderStatus(ctx, id, order.Status, to)
	if errors.Is(err, ErrVersionConflict) {
		// Someone else moved the order first; the caller may re-read and retry.
		return ErrConflict
	}
	if err != nil {
		return err
	}

	var msg string
	switch to {
	case OrderReady:
		msg = msgOrderReady
	case OrderCompleted:
		msg = msgOrderCompleted
	}
	if err := s.notify.Emit(ctx, order.StudentID, msg, NotifyOrder, string(id), EventKey("order", string(id), string(to))); err != nil {
		s.log.Warn("order status notification failed", zap.String("order", string(id)), zap.Error(err))
	}

	s.log.Info("order status updated",
		zap.String("order", string(id)),
		zap.String("from", string(order.Status)),
		zap.String("to", string(to)))
	return nil
}

// Cancel cancels a non-terminal order, restoring stock and refunding tokens.
// The owning student or staff may cancel. Succeeds silently if the order is
// already cancelled; fails with ErrInvalidTransition if completed.
func (s *OrderService) Cancel(ctx context.Context, id OrderID, actor Actor) error {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if actor.ID != order.StudentID && !actor.IsStaff() {
		return ErrForbidden
	}

	switch order.Status {
	case OrderCancelled:
		return nil
	case OrderCompleted:
		return &TransitionError{OrderID: id, From: OrderCompleted, To: OrderCancelled}
	}

	// Win the race first: only the writer that flips the status performs the
	// compensations below, so stock and tokens are restored exactly once.
	err = s.orders.UpdateOrderStatus(ctx, id, order.Status, OrderCancelled)
	if errors.Is(err, ErrVersionConflict) {
		return ErrConflict
	}
	if err != nil {
		return err
	}

	s.releaseLines(ctx, order.Lines)
	if _, err := s.tokens.Credit(ctx, order.StudentID, order.TokensCharged); err != nil {
		// Stock is back but the refund did not land; surface it so staff can
		// correct the balance manually.
		s.log.Error("token refund failed on cancellation",
			zap.String("order", string(id)), zap.Error(err))
		return err
	}

	if err := s.notify.Emit(ctx, order.StudentID, msgOrderRefunded, NotifyOrder, string(id), EventKey("order", string(id), "cancelled", "owner")); err != nil {
		s.log.Warn("cancellation notification failed", zap.String("order", string(id)), zap.Error(err))
	}
	staffMsg := fmt.Sprintf("Order #%s has been cancelled by the user.", order.ShortID())
	if actor.IsStaff() {
		staffMsg = fmt.Sprintf("Order #%s has been cancelled by staff.", order.ShortID())
	}
	if err := s.notify.FanOutStaff(ctx, staffMsg, NotifyOrder, string(id), EventKey("order", string(id), "cancelled")); err != nil {
		s.log.Warn("cancellation fan-out failed", zap.String("order", string(id)), zap.Error(err))
	}

	s.log.Info("order cancelled",
		zap.String("order", string(id)),
		zap.String("actor", string(actor.ID)),
		zap.Int("tokens_refunded", order.TokensCharged))
	return nil
}

// Get returns one order. The owning student or staff may read it.
func (s *OrderService) Get(ctx context.Context, id OrderID, actor Actor) (*Order, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.ID != order.StudentID && !actor.IsStaff() {
		return nil, ErrForbidden
	}
	return order, nil
}

// ListForStudent returns the student's orders, newest first.
func (s *OrderService) ListForStudent(ctx context.Context, studentID UserID) ([]Order, error) {
	return s.orders.ListOrdersByStudent(ctx, studentID)
}

// ListAll returns every order, newest first. Staff view.
func (s *OrderService) ListAll(ctx context.Context) ([]Order, error) {
	return s.orders.ListOrders(ctx)
}

// releaseLines returns reserved stock. Failures are logged and skipped so
// one stubborn item does not strand the rest of the rollback.
func (s *OrderService) releaseLines(ctx context.Context, lines []OrderLine) {
	for _, line := range lines {
		if _, err := s.inventory.Release(ctx, line.ItemID, line.Quantity); err != nil {
			s.log.Error("rollback release failed",
				zap.String("item", string(line.ItemID)),
				zap.Int("qty", line.Quantity),
				zap.Error(err))
		}
	}
}
