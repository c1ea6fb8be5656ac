/*
inventory.go - Inventory ledger: atomic reserve/release of item stock

PURPOSE:
  Owns the per-item available quantity. All mutations flow through
  Reserve and Release; nothing else in the core writes item quantities
  (staff catalog edits go through the Catalog, which reuses the same
  guarded primitive).

INVARIANT:
  An item's available quantity never goes negative. Reserve checks the
  freshly-read quantity and only writes if the record is unchanged since
  the read; a losing writer re-reads and tries again.

RETRY DISCIPLINE:
  read -> check -> conditional write, up to a bounded number of attempts.
  Only ErrVersionConflict is retried; a genuine shortage fails immediately
  with InsufficientStockError and never mutates anything. When the budget
  runs out the caller sees ErrConflict and may retry the whole operation.

STOCK-OUT FAN-OUT:
  When a reserve (or catalog edit) crosses from >0 to <=0, every staff
  member gets one `inventory` notification. The dedup key is derived from
  the item id plus the version at which it crossed, so a retried emit
  batch cannot double-notify.

SEE ALSO:
  - tokens.go: Same discipline for token balances
  - order.go: Rollback-via-Release when a later checkout step fails
*/
package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// INVENTORY LEDGER
// =============================================================================

type InventoryLedger struct {
	items    ItemStore
	notify   *Dispatcher
	log      *zap.Logger
	attempts int
}

// NewInventoryLedger creates a ledger over the given item store. The
// dispatcher is used for the staff stock-out fan-out and may not be nil.
func NewInventoryLedger(items ItemStore, notify *Dispatcher, log *zap.Logger, attempts int) *InventoryLedger {
	if attempts <= 0 {
		attempts = DefaultRetryAttempts
	}
	return &InventoryLedger{items: items, notify: notify, log: log, attempts: attempts}
}

// Reserve atomically decrements the item's available quantity by qty and
// returns the new quantity. Fails with InsufficientStockError (no write) if
// available < qty, ErrNotFound if the item is missing, ErrConflict if the
// retry budget is exhausted.
func (l *InventoryLedger) Reserve(ctx context.Context, id ItemID, qty int) (int, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("reserve quantity %d: %w", qty, ErrInvalidRange)
	}

	for attempt := 0; attempt < l.attempts; attempt++ {
		item, err := l.items.GetItem(ctx, id)
		if err != nil {
			return 0, err
		}
		if item.Quantity < qty {
			return 0, &InsufficientStockError{ItemID: id, Available: item.Quantity, Requested: qty}
		}

		newQty := item.Quantity - qty
		err = l.items.UpdateItemQuantity(ctx, id, item.Version, newQty)
		if errors.Is(err, ErrVersionConflict) {
			backoff(attempt)
			continue
		}
		if err != nil {
			return 0, err
		}

		if item.Quantity > 0 && newQty <= 0 {
			l.stockOut(ctx, item, item.Version+1)
		}
		return newQty, nil
	}

	l.log.Warn("inventory reserve exhausted retry budget",
		zap.String("item", string(id)), zap.Int("qty", qty))
	return 0, ErrConflict
}

// Release atomically increments the item's available quantity by qty and
// returns the new quantity. Used on cancellation and checkout rollback.
// There is no upper bound beyond item existence.
func (l *InventoryLedger) Release(ctx context.Context, id ItemID, qty int) (int, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("release quantity %d: %w", qty, ErrInvalidRange)
	}

	for attempt := 0; attempt < l.attempts; attempt++ {
		item, err := l.items.GetItem(ctx, id)
		if err != nil {
			return 0, err
		}

		newQty := item.Quantity + qty
		err = l.items.UpdateItemQuantity(ctx, id, item.Version, newQty)
		if errors.Is(err, ErrVersionConflict) {
			backoff(attempt)
			continue
		}
		if err != nil {
			return 0, err
		}
		return newQty, nil
	}

	l.log.Warn("inventory release exhausted retry budget",
		zap.String("item", string(id)), zap.Int("qty", qty))
	return 0, ErrConflict
}

// LowStock returns items with 0 < quantity <= threshold, for the staff
// dashboard. Read-only.
func (l *InventoryLedger) LowStock(ctx context.Context, threshold int) ([]Item, error) {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	return l.items.LowStockItems(ctx, threshold)
}

// OutOfStock returns items with quantity <= 0. Read-only.
func (l *InventoryLedger) OutOfStock(ctx context.Context) ([]Item, error) {
	return l.items.OutOfStockItems(ctx)
}

// stockOut fans out the out-of-stock notice to all staff. version is the
// record version at which the quantity crossed zero, making the dedup key
// deterministic even if the emit batch is retried.
func (l *InventoryLedger) stockOut(ctx context.Context, item *Item, version int64) {
	msg := fmt.Sprintf("Item %q is now out of stock.", item.Name)
	key := EventKey("item", string(item.ID), "stockout", fmt.Sprintf("%d", version))
	if err := l.notify.FanOutStaff(ctx, msg, NotifyInventory, string(item.ID), key); err != nil {
		// Notification loss is tolerable; the reservation itself stands.
		l.log.Warn("stock-out fan-out failed", zap.String("item", string(item.ID)), zap.Error(err))
	}
}

// backoff spaces out conflicting writers. Attempt 0 retries immediately.
func backoff(attempt int) {
	if attempt == 0 {
		return
	}
	time.Sleep(time.Duration(attempt) * 2 * time.Millisecond)
}
