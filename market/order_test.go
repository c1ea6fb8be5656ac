package market_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulldogs/market-core/market"
)

// =============================================================================
// CHECKOUT TESTS
// =============================================================================

func TestOrder_Create_ChargesPerDistinctLine(t *testing.T) {
	// GIVEN: A cart with two distinct items, one of them quantity 2
	// WHEN: Checking out
	// THEN: Stock drops per unit but only 2 tokens are charged

	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	student := seedStudent(t, core, "stu-1")
	soap := seedItem(t, core, staff, "Soap", 10)
	notebook := seedItem(t, core, staff, "Notebook", 10)
	ctx := context.Background()

	cart := market.Cart{
		{ItemID: soap, Quantity: 2},
		{ItemID: notebook, Quantity: 1},
	}
	order, err := core.Orders.Create(ctx, student.ID, cart, pickupSlot())
	require.NoError(t, err)

	assert.Equal(t, market.OrderPending, order.Status)
	assert.Equal(t, 2, order.TokensCharged)
	assert.Equal(t, student.ID, order.StudentID)

	balance, err := core.Tokens.Balance(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, market.DefaultQuota-2, balance)

	item, err := core.Catalog.Item(ctx, soap)
	require.NoError(t, err)
	assert.Equal(t, 8, item.Quantity)
}

func TestOrder_Create_NotifiesStaff(t *testing.T) {
	// GIVEN: A staff member and a student
	// WHEN: The student checks out
	// THEN: Staff get one order notification naming the student

	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	student := seedStudent(t, core, "stu-1")
	soap := seedItem(t, core, staff, "Soap", 10)
	ctx := context.Background()

	_, err := core.Orders.Create(ctx, student.ID, market.Cart{{ItemID: soap, Quantity: 1}}, pickupSlot())
	require.NoError(t, err)

	feed, err := core.Notify.Feed(ctx, staff.ID, market.StaffFeedLimit)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "New order received from stu-1@example.edu.", feed[0].Message)
	assert.Equal(t, market.NotifyOrder, feed[0].Category)
}

func TestOrder_Create_InsufficientTokens_FullRollback(t *testing.T) {
	// GIVEN: A student with 1 token and a cart of two distinct items
	// WHEN: Checkout fails at the token debit
	// THEN: Every reservation is rolled back and no order exists

	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	student := seedStudent(t, core, "stu-1")
	soap := seedItem(t, core, staff, "Soap", 10)
	notebook := seedItem(t, core, staff, "Notebook", 10)
	ctx := context.Background()

	require.NoError(t, core.Tokens.Set(ctx, student.ID, 1))

	cart := market.Cart{
		{ItemID: soap, Quantity: 1},
		{ItemID: notebook, Quantity: 1},
	}
	_, err := core.Orders.Create(ctx, student.ID, cart, pickupSlot())
	assert.ErrorIs(t, err, market.ErrInsufficientTokens)

	for _, id := range []market.ItemID{soap, notebook} {
		item, err := core.Catalog.Item(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 10, item.Quantity, "reservation must be rolled back")
	}

	orders, err := core.Orders.ListForStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)

	balance, err := core.Tokens.Balance(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, balance)
}

func TestOrder_Create_MidCartShortage_ReleasesEarlierLines(t *testing.T) {
	// GIVEN: The second cart line cannot be covered by stock
	// WHEN: Checkout fails at the second reservation
	// THEN: The first line's reservation is released

	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	student := seedStudent(t, core, "stu-1")
	soap := seedItem(t, core, staff, "Soap", 10)
	rare := seedItem(t, core, staff, "Rare", 1)
	ctx := context.Background()

	// Drain the rare item after validation would have seen it; simplest is
	// to reserve it out from under the order path first.
	_, err := core.Inventory.Reserve(ctx, rare, 1)
	require.NoError(t, err)

	cart := market.Cart{
		{ItemID: soap, Quantity: 1},
		{ItemID: rare, Quantity: 1},
	}
	_, err = core.Orders.Create(ctx, student.ID, cart, pickupSlot())
	assert.ErrorIs(t, err, market.ErrInsufficientStock)

	item, err := core.Catalog.Item(ctx, soap)
	require.NoError(t, err)
	assert.Equal(t, 10, item.Quantity)
}

func TestOrder_ConcurrentCheckout_LastUnit_OneWinner(t *testing.T) {
	// GIVEN: One unit left and two students racing for it
	// WHEN: Both check out concurrently
	// THEN: Exactly one order exists; the loser keeps their tokens

	core := newContendedCore(t)
	staff := seedStaff(t, core, "staff-1")
	a := seedStudent(t, core, "stu-a")
	b := seedStudent(t, core, "stu-b")
	hoodie := seedItem(t, core, staff, "Limited Hoodie", 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(map[market.UserID]error, 2)
	var mu sync.Mutex
	for _, student := range []market.Actor{a, b} {
		student := student
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := core.Orders.Create(ctx, student.ID, market.Cart{{ItemID: hoodie, Quantity: 1}}, pickupSlot())
			mu.Lock()
			errs[student.ID] = err
			mu.Unlock()
		}()
	}
	wg.Wait()

	winners := 0
	for id, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.ErrorIs(t, err, market.ErrInsufficientStock)
		balance, berr := core.Tokens.Balance(ctx, id)
		require.NoError(t, berr)
		assert.Equal(t, market.DefaultQuota, balance, "loser must keep their tokens")
	}
	assert.Equal(t, 1, winners)

	item, err := core.Catalog.Item(ctx, hoodie)
	require.NoError(t, err)
	assert.Equal(t, 0, item.Quantity)
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func createOrder(t *testing.T, core *market.Core, student market.Actor, itemID market.ItemID) *market.Order {
	t.Helper()
	order, err := core.Orders.Create(context.Background(), student.ID, market.Cart{{ItemID: itemID, Quantity: 1}}, pickupSlot())
	require.NoError(t, err)
	return order
}

func TestOrder_ForwardPath_PendingReadyCompleted(t *testing.T) {
	// GIVEN: A pending order
	// WHEN: Staff advance it to ready, then completed
	// THEN: Each step succeeds and the student is notified each time

	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	student := seedStudent(t, core, "stu-1")
	soap := seedItem(t, core, staff, "Soap", 10)
	ctx := context.Background()

	order := createOrder(t, core, student, soap)

	require.NoError(t, core.Orders.UpdateStatus(ctx, order.ID, market.OrderReady, staff))
	require.NoError(t, core.Orders.UpdateStatus(ctx, order.ID, market.OrderCompleted, staff))

	got, err := core.Orders.Get(ctx, order.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, market.OrderCompleted, got.Status)

	feed, err := core.Notify.Feed(ctx, student.ID, market.StudentFeedLimit)
	require.NoError(t, err)
	// Newest first: completed, ready, welcome.
	require.Len(t, feed, 3)
	assert.Contains(t, feed[0].Message, "completed")
	assert.Contains(t, feed[1].Message, "ready for pickup")
}

func TestOrder_SkipReady_Rejected(t *testing.T) {
	// GIVEN: A pending order
	// WHEN: Staff try to complete it directly
	// THEN: TransitionError

	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	student := seedStudent(t, core, "stu-1")
	soap := seedItem(t, core, staff, "Soap", 10)

	order := createOrder(t, core, student, soap)

	err := core.Orders.UpdateStatus(context.Background(), order.ID, market.OrderCompleted, staff)
	var trErr *market.TransitionError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, market.OrderPending, trErr.From)
	assert.ErrorIs(t, err, market.ErrInvalidTransition)
}

func TestOrder_StudentCannotAdvanceStatus(t *testing.T) {
	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	student := seedStudent(t, core, "stu-1")
	soap := seedItem(t, core, staff, "Soap", 10)

	order := createOrder(t, core, student, soap)

	err := core.Orders.UpdateStatus(context.Background(), order.ID, market.OrderReady, student)
	assert.ErrorIs(t, err, market.ErrForbidden)
}

func TestOrder_CancelViaUpdateStatus_Rejected(t *testing.T) {
	// Cancellation has its own entry point with refund semantics.

	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	student := seedStudent(t, core, "stu-1")
	soap := seedItem(t, core, staff, "Soap", 10)

	order := createOrder(t, core, student, soap)

	err := core.Orders.UpdateStatus(context.Background(), order.ID, market.OrderCancelled, staff)
	assert.ErrorIs(t, err, market.ErrInvalidTransition)
}

// =============================================================================
// CANCELLATION TESTS
// =============================================================================

func TestOrder_Cancel_RestoresStockAndTokens(t *testing.T) {
	// GIVEN: A pending order for 1 unit
	// WHEN: The owner cancels
	// THEN: Stock and tokens are restored and both sides are notified

	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	student := seedStudent(t, core, "stu-1")
	soap := seedItem(t, core, staff, "Soap", 10)
	ctx := context.Background()

	order := createOrder(t, core, student, soap)
	require.NoError(t, core.Orders.Cancel(ctx, order.ID, student))

	got, err := core.Orders.Get(ctx, order.ID, student)
	require.NoError(t, err)
	assert.Equal(t, market.OrderCancelled, got.Status)

	item, err := core.Catalog.Item(ctx, soap)
	require.NoError(t, err)
	assert.Equal(t, 10, item.Quantity)

	balance, err := core.Tokens.Balance(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, market.DefaultQuota, balance)

	studentFeed, err := core.Notify.Feed(ctx, student.ID, market.StudentFeedLimit)
	require.NoError(t, err)
	require.NotEmpty(t, studentFeed)
	assert.Contains(t, studentFeed[0].Message, "tokens have been refunded")

	staffFeed, err := core.Notify.Feed(ctx, staff.ID, market.StaffFeedLimit)
	require.NoError(t, err)
	require.Len(t, staffFeed, 2) // new-order, then cancellation
	assert.Contains(t, staffFeed[0].Message, "cancelled by the user")
}

func TestOrder_Cancel_AlreadyCancelled_NoDoubleRefund(t *testing.T) {
	// GIVEN: A cancelled order
	// WHEN: Cancelling again
	// THEN: Silent no-op; the balance does not grow

	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	student := seedStudent(t, core, "stu-1")
	soap := seedItem(t, core, staff, "Soap", 10)
	ctx := context.Background()

	order := createOrder(t, core, student, soap)
	require.NoError(t, core.Orders.Cancel(ctx, order.ID, student))
	require.NoError(t, core.Orders.Cancel(ctx, order.ID, student))

	balance, err := core.Tokens.Balance(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, market.DefaultQuota, balance)

	item, err := core.Catalog.Item(ctx, soap)
	require.NoError(t, err)
	assert.Equal(t, 10, item.Quantity)
}

func TestOrder_Cancel_CompletedOrder_Rejected(t *testing.T) {
	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	student := seedStudent(t, core, "stu-1")
	soap := seedItem(t, core, staff, "Soap", 10)
	ctx := context.Background()

	order := createOrder(t, core, student, soap)
	require.NoError(t, core.Orders.UpdateStatus(ctx, order.ID, market.OrderReady, staff))
	require.NoError(t, core.Orders.UpdateStatus(ctx, order.ID, market.OrderCompleted, staff))

	err := core.Orders.Cancel(ctx, order.ID, student)
	assert.ErrorIs(t, err, market.ErrInvalidTransition)
}

func TestOrder_Cancel_Stranger_Forbidden(t *testing.T) {
	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	student := seedStudent(t, core, "stu-1")
	other := seedStudent(t, core, "stu-2")
	soap := seedItem(t, core, staff, "Soap", 10)

	order := createOrder(t, core, student, soap)

	err := core.Orders.Cancel(context.Background(), order.ID, other)
	assert.ErrorIs(t, err, market.ErrForbidden)
}

func TestOrder_Cancel_ByStaff_RecordWordedForStaff(t *testing.T) {
	// GIVEN: A pending order
	// WHEN: Staff cancel it
	// THEN: The staff record says cancelled by staff, not by the user

	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	student := seedStudent(t, core, "stu-1")
	soap := seedItem(t, core, staff, "Soap", 10)
	ctx := context.Background()

	order := createOrder(t, core, student, soap)
	require.NoError(t, core.Orders.Cancel(ctx, order.ID, staff))

	staffFeed, err := core.Notify.Feed(ctx, staff.ID, market.StaffFeedLimit)
	require.NoError(t, err)
	require.Len(t, staffFeed, 2) // new-order, then cancellation record
	assert.Contains(t, staffFeed[0].Message, "cancelled by staff")
	assert.NotContains(t, staffFeed[0].Message, "by the user")
}

func TestOrder_ConcurrentReadyAndCancel_NeverBothFromPending(t *testing.T) {
	// GIVEN: A pending order, staff advancing it and the owner cancelling
	// WHEN: Both race, repeatedly
	// THEN: Only one guarded flip wins from pending. If the order ends
	//       cancelled the refund landed exactly once and stock is restored;
	//       if it ends ready the tokens stay spent and the stock stays
	//       reserved. (ready -> cancelled after the advance is a legal
	//       sequential outcome, not a violation.)

	core := newContendedCore(t)
	staff := seedStaff(t, core, "staff-1")
	student := seedStudent(t, core, "stu-1")
	soap := seedItem(t, core, staff, "Soap", 1000)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		require.NoError(t, core.Tokens.Set(ctx, student.ID, market.DefaultQuota))
		before, err := core.Catalog.Item(ctx, soap)
		require.NoError(t, err)

		order := createOrder(t, core, student, soap)

		var wg sync.WaitGroup
		var readyErr, cancelErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			readyErr = core.Orders.UpdateStatus(ctx, order.ID, market.OrderReady, staff)
		}()
		go func() {
			defer wg.Done()
			cancelErr = core.Orders.Cancel(ctx, order.ID, student)
		}()
		wg.Wait()

		// A losing writer may only fail because the race was decided.
		for _, err := range []error{readyErr, cancelErr} {
			if err != nil {
				assert.True(t,
					errors.Is(err, market.ErrConflict) || errors.Is(err, market.ErrInvalidTransition),
					"unexpected race error: %v", err)
			}
		}

		got, err := core.Orders.Get(ctx, order.ID, staff)
		require.NoError(t, err)

		balance, err := core.Tokens.Balance(ctx, student.ID)
		require.NoError(t, err)
		after, err := core.Catalog.Item(ctx, soap)
		require.NoError(t, err)

		switch got.Status {
		case market.OrderCancelled:
			require.NoError(t, cancelErr)
			assert.Equal(t, market.DefaultQuota, balance, "refund must land exactly once")
			assert.Equal(t, before.Quantity, after.Quantity, "stock must be restored")
		case market.OrderReady:
			require.NoError(t, readyErr)
			assert.Error(t, cancelErr, "cancel cannot also have applied")
			assert.Equal(t, market.DefaultQuota-1, balance, "no refund without a cancel")
			assert.Equal(t, before.Quantity-1, after.Quantity, "stock must stay reserved")
		default:
			t.Fatalf("order in unexpected state %q", got.Status)
		}
	}
}

// =============================================================================
// READ PATH TESTS
// =============================================================================

func TestOrder_Get_OwnerAndStaffOnly(t *testing.T) {
	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	student := seedStudent(t, core, "stu-1")
	other := seedStudent(t, core, "stu-2")
	soap := seedItem(t, core, staff, "Soap", 10)
	ctx := context.Background()

	order := createOrder(t, core, student, soap)

	_, err := core.Orders.Get(ctx, order.ID, student)
	assert.NoError(t, err)
	_, err = core.Orders.Get(ctx, order.ID, staff)
	assert.NoError(t, err)
	_, err = core.Orders.Get(ctx, order.ID, other)
	assert.ErrorIs(t, err, market.ErrForbidden)
}

func TestOrder_List_NewestFirst(t *testing.T) {
	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	student := seedStudent(t, core, "stu-1")
	soap := seedItem(t, core, staff, "Soap", 10)
	notebook := seedItem(t, core, staff, "Notebook", 10)
	ctx := context.Background()

	first := createOrder(t, core, student, soap)
	second := createOrder(t, core, student, notebook)

	orders, err := core.Orders.ListForStudent(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)
}
