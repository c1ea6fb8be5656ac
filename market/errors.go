/*
errors.go - Centralized error taxonomy for the transaction core

PURPOSE:
  Every failure mode of the core maps to exactly one sentinel error here.
  Callers match with errors.Is(); the HTTP layer maps each sentinel to a
  stable machine-readable kind and status code. No internal detail leaks.

ERROR CATEGORIES:
  1. Ledger errors   - insufficient stock/tokens, write conflicts
  2. Cart errors     - limit exceeded, duplicate item, empty cart
  3. Workflow errors - invalid transition, duplicate pending, already decided
  4. Access errors   - not found, forbidden

RETRY POLICY:
  ErrVersionConflict is store-internal: the ledgers retry it a bounded
  number of times. ErrConflict is what surfaces when the retry budget is
  exhausted; it is the only error a caller may blindly retry. Everything
  else is terminal for the attempted operation.

USAGE:
  if errors.Is(err, market.ErrInsufficientStock) {
      // re-prompt the student
  }

SEE ALSO:
  - inventory.go, tokens.go: The retry loop around ErrVersionConflict
  - api/handlers.go: Sentinel-to-HTTP mapping
*/
package market

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientStock is returned when a reservation exceeds the item's
	// available quantity.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInsufficientTokens is returned when a debit exceeds the student's
	// token balance.
	ErrInsufficientTokens = errors.New("insufficient tokens")

	// ErrLimitExceeded is returned when a cart's total quantity exceeds the
	// per-order limit.
	ErrLimitExceeded = errors.New("cart limit exceeded")

	// ErrDuplicateItem is returned when an item appears on more than one
	// cart line.
	ErrDuplicateItem = errors.New("duplicate item in cart")

	// ErrEmptyCart is returned when a checkout is submitted with no lines.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrInvalidTransition is returned for any order status change not in
	// the transition table.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicatePending is returned when a student submits a token request
	// while another one is still pending.
	ErrDuplicatePending = errors.New("a pending token request already exists")

	// ErrAlreadyDecided is returned when deciding a token request that is no
	// longer pending.
	ErrAlreadyDecided = errors.New("token request already decided")

	// ErrInvalidRange is returned for out-of-bounds amounts (token request
	// size, non-positive quantities).
	ErrInvalidRange = errors.New("amount out of range")

	// ErrConflict is returned after the bounded conditional-update retry is
	// exhausted. Transient: the caller may retry the whole operation.
	ErrConflict = errors.New("concurrent modification, retry")

	// ErrForbidden is returned when the actor's role does not permit the
	// operation (e.g. a student advancing an order to ready).
	ErrForbidden = errors.New("operation not permitted for this actor")

	// ErrVersionConflict is the store-level signal that a conditional update
	// lost a race. It never surfaces past the ledgers; they retry and, if the
	// budget runs out, return ErrConflict instead.
	ErrVersionConflict = errors.New("version conflict")

	// ErrDuplicateNotification is the store-level signal that a notification
	// with the same (recipient, dedup key) was already delivered. The
	// dispatcher treats it as success.
	ErrDuplicateNotification = errors.New("duplicate notification")
)

// =============================================================================
// STRUCTURED ERRORS - Carry context, unwrap to sentinels
// =============================================================================

// InsufficientStockError reports how short an item is.
type InsufficientStockError struct {
	ItemID    ItemID
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %s: available %d, requested %d",
		e.ItemID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// InsufficientTokensError reports how short a student's balance is.
type InsufficientTokensError struct {
	StudentID UserID
	Balance   int
	Requested int
}

func (e *InsufficientTokensError) Error() string {
	return fmt.Sprintf("insufficient tokens for student %s: balance %d, requested %d",
		e.StudentID, e.Balance, e.Requested)
}

func (e *InsufficientTokensError) Unwrap() error { return ErrInsufficientTokens }

// TransitionError reports a rejected order status change.
type TransitionError struct {
	OrderID OrderID
	From    OrderStatus
	To      OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot transition %s -> %s", e.OrderID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable reports whether the whole operation may be retried by the caller.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// Kind returns the stable machine-readable kind for an error, used by the
// HTTP layer and safe to show to clients.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return "InsufficientStock"
	case errors.Is(err, ErrInsufficientTokens):
		return "InsufficientTokens"
	case errors.Is(err, ErrLimitExceeded):
		return "LimitExceeded"
	case errors.Is(err, ErrDuplicateItem):
		return "DuplicateItem"
	case errors.Is(err, ErrEmptyCart):
		return "EmptyCart"
	case errors.Is(err, ErrInvalidTransition):
		return "InvalidTransition"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrDuplicatePending):
		return "DuplicatePending"
	case errors.Is(err, ErrAlreadyDecided):
		return "AlreadyDecided"
	case errors.Is(err, ErrInvalidRange):
		return "InvalidRange"
	case errors.Is(err, ErrConflict):
		return "Conflict"
	case errors.Is(err, ErrForbidden):
		return "Forbidden"
	default:
		return "Internal"
	}
}
