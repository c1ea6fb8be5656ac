package market_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulldogs/market-core/market"
)

// =============================================================================
// CART RULE TESTS
// =============================================================================

func TestCartValidator_EmptyCart_Rejected(t *testing.T) {
	// GIVEN: An empty cart
	// WHEN: Validating it
	// THEN: ErrEmptyCart

	core := newTestCore(t)

	_, err := core.Validator.Validate(context.Background(), market.Cart{})
	assert.ErrorIs(t, err, market.ErrEmptyCart)
}

func TestCartValidator_DuplicateLine_Rejected(t *testing.T) {
	// GIVEN: A cart with the same item on two lines
	// WHEN: Validating it
	// THEN: ErrDuplicateItem

	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	itemID := seedItem(t, core, staff, "Granola Bars", 10)

	cart := market.Cart{
		{ItemID: itemID, Quantity: 1},
		{ItemID: itemID, Quantity: 1},
	}
	_, err := core.Validator.Validate(context.Background(), cart)
	assert.ErrorIs(t, err, market.ErrDuplicateItem)
}

func TestCartValidator_TotalQuantityOverLimit_Rejected(t *testing.T) {
	// GIVEN: Two lines whose quantities sum past the cart limit
	// WHEN: Validating
	// THEN: ErrLimitExceeded, even though each line alone is fine

	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	a := seedItem(t, core, staff, "Soap", 10)
	b := seedItem(t, core, staff, "Notebook", 10)

	cart := market.Cart{
		{ItemID: a, Quantity: 2},
		{ItemID: b, Quantity: 2},
	}
	_, err := core.Validator.Validate(context.Background(), cart)
	assert.ErrorIs(t, err, market.ErrLimitExceeded)
}

func TestCartValidator_AtLimit_Accepted(t *testing.T) {
	// GIVEN: A cart totalling exactly the limit
	// WHEN: Validating
	// THEN: Accepted, lines carry name snapshots in cart order

	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	a := seedItem(t, core, staff, "Soap", 10)
	b := seedItem(t, core, staff, "Notebook", 10)

	cart := market.Cart{
		{ItemID: a, Quantity: 2},
		{ItemID: b, Quantity: 1},
	}
	lines, err := core.Validator.Validate(context.Background(), cart)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "Soap", lines[0].Name)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "Notebook", lines[1].Name)
}

func TestCartValidator_NonPositiveQuantity_Rejected(t *testing.T) {
	// GIVEN: A line with quantity zero
	// WHEN: Validating
	// THEN: ErrInvalidRange

	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	itemID := seedItem(t, core, staff, "Soap", 10)

	_, err := core.Validator.Validate(context.Background(), market.Cart{{ItemID: itemID, Quantity: 0}})
	assert.ErrorIs(t, err, market.ErrInvalidRange)
}

func TestCartValidator_InsufficientStock_Rejected(t *testing.T) {
	// GIVEN: An item with one unit left
	// WHEN: Validating a line asking for two
	// THEN: InsufficientStockError with the observed availability

	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	itemID := seedItem(t, core, staff, "Soap", 1)

	_, err := core.Validator.Validate(context.Background(), market.Cart{{ItemID: itemID, Quantity: 2}})

	var stockErr *market.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, itemID, stockErr.ItemID)
	assert.Equal(t, 1, stockErr.Available)
	assert.Equal(t, 2, stockErr.Requested)
	assert.ErrorIs(t, err, market.ErrInsufficientStock)
}

func TestCartValidator_UnknownItem_NotFound(t *testing.T) {
	// GIVEN: A cart referencing an item id that does not exist
	// WHEN: Validating
	// THEN: ErrNotFound

	core := newTestCore(t)

	_, err := core.Validator.Validate(context.Background(), market.Cart{{ItemID: "ghost", Quantity: 1}})
	assert.ErrorIs(t, err, market.ErrNotFound)
}
