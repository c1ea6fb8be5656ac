/*
cart.go - Stateless cart validation before checkout

PURPOSE:
  Rule-checks a proposed cart before the order state machine touches any
  ledger. Side-effect free: reads item records, writes nothing.

RULES:
  1. The cart has at least one line.
  2. No item id appears on more than one line.
  3. Total quantity across all lines <= MaxCartQuantity.
  4. Each line's quantity <= the item's currently available quantity.

  Rule 4 is a read-only courtesy check; the inventory ledger is the final
  authority at reservation time, so a cart that passes here can still fail
  checkout if stock moved in between.

COUNTING RULES:
  The cart limit counts units (sum of quantities); the token charge counts
  distinct lines. Both rules come from the market's product definition and
  are consistent because every line carries quantity >= 1.

SEE ALSO:
  - order.go: Re-validates through here as step 1 of checkout
*/
package market

import (
	"context"
	"fmt"
)

// =============================================================================
// CART VALIDATOR
// =============================================================================

type CartValidator struct {
	items ItemStore
}

func NewCartValidator(items ItemStore) *CartValidator {
	return &CartValidator{items: items}
}

// Validate checks the cart rules and returns the normalized order lines with
// item-name snapshots. The returned lines preserve cart order.
func (v *CartValidator) Validate(ctx context.Context, cart Cart) ([]OrderLine, error) {
	if len(cart) == 0 {
		return nil, ErrEmptyCart
	}

	seen := make(map[ItemID]bool, len(cart))
	for _, line := range cart {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("line quantity %d for item %s: %w", line.Quantity, line.ItemID, ErrInvalidRange)
		}
		if seen[line.ItemID] {
			return nil, fmt.Errorf("item %s: %w", line.ItemID, ErrDuplicateItem)
		}
		seen[line.ItemID] = true
	}

	if total := cart.TotalQuantity(); total > MaxCartQuantity {
		return nil, fmt.Errorf("cart holds %d items, limit is %d: %w", total, MaxCartQuantity, ErrLimitExceeded)
	}

	lines := make([]OrderLine, 0, len(cart))
	for _, line := range cart {
		item, err := v.items.GetItem(ctx, line.ItemID)
		if err != nil {
			return nil, err
		}
		if item.Quantity < line.Quantity {
			return nil, &InsufficientStockError{ItemID: line.ItemID, Available: item.Quantity, Requested: line.Quantity}
		}
		lines = append(lines, OrderLine{ItemID: item.ID, Name: item.Name, Quantity: line.Quantity})
	}
	return lines, nil
}
