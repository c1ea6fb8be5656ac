/*
catalog.go - Staff catalog maintenance

PURPOSE:
  Staff create, edit and delete items. Quantity edits reuse the same
  guarded write as the inventory ledger and trigger the same stock-out
  fan-out when an edit takes an item from >0 to <=0, so the staff feed
  stays consistent no matter which path drained the stock.
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

// =============================================================================
// CATALOG
// =============================================================================

type Catalog struct {
	items     ItemStore
	inventory *InventoryLedger
	notify    *Dispatcher
	log       *zap.Logger
}

func NewCatalog(items ItemStore, inventory *InventoryLedger, notify *Dispatcher, log *zap.Logger) *Catalog {
	return &Catalog{items: items, inventory: inventory, notify: notify, log: log}
}

// CreateItem adds a new item to the catalog. Staff only.
func (c *Catalog) CreateItem(ctx context.Context, actor Actor, item *Item) error {
	if !actor.IsStaff() {
		return ErrForbidden
	}
	if !item.Category.Valid() {
		return fmt.Errorf("category %q: %w", item.Category, ErrInvalidRange)
	}
	if item.Quantity < 0 {
		return fmt.Errorf("quantity %d: %w", item.Quantity, ErrInvalidRange)
	}
	if item.ID == "" {
		item.ID = ItemID(uuid.NewString())
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	item.Version = 1
	return c.items.CreateItem(ctx, item)
}

// UpdateItem edits an item's fields. Staff only. The write is guarded on the
// current version; a concurrent ledger write loses or wins cleanly. An edit
// that drains remaining stock fans the stock-out notice out to staff.
func (c *Catalog) UpdateItem(ctx context.Context, actor Actor, id ItemID, apply func(*Item)) (*Item, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}

	item, err := c.items.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	wasInStock := item.Quantity > 0

	apply(item)
	if !item.Category.Valid() {
		return nil, fmt.Errorf("category %q: %w", item.Category, ErrInvalidRange)
	}
	if item.Quantity < 0 {
		return nil, fmt.Errorf("quantity %d: %w", item.Quantity, ErrInvalidRange)
	}

	err = c.items.UpdateItem(ctx, item)
	if errors.Is(err, ErrVersionConflict) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}

	if wasInStock && item.Quantity <= 0 {
		msg := fmt.Sprintf("Item %q is now out of stock.", item.Name)
		key := EventKey("item", string(id), "stockout", fmt.Sprintf("%d", item.Version+1))
		if err := c.notify.FanOutStaff(ctx, msg, NotifyInventory, string(id), key); err != nil {
			c.log.Warn("stock-out fan-out failed", zap.String("item", string(id)), zap.Error(err))
		}
	}

	item.Version++
	return item, nil
}

// DeleteItem removes an item from the catalog. Staff only. Existing orders
// keep their name snapshots.
func (c *Catalog) DeleteItem(ctx context.Context, actor Actor, id ItemID) error {
	if !actor.IsStaff() {
		return ErrForbidden
	}
	return c.items.DeleteItem(ctx, id)
}

// Browse returns the catalog, optionally filtered by category.
func (c *Catalog) Browse(ctx context.Context, category Category) ([]Item, error) {
	if category != "" && !category.Valid() {
		return nil, fmt.Errorf("category %q: %w", category, ErrInvalidRange)
	}
	return c.items.ListItems(ctx, category)
}

// Item returns one catalog entry.
func (c *Catalog) Item(ctx context.Context, id ItemID) (*Item, error) {
	return c.items.GetItem(ctx, id)
}
