package market_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulldogs/market-core/market"
)

// =============================================================================
// PROFILE TESTS
// =============================================================================

func TestRegistry_Student_GetsAccountAndWelcome(t *testing.T) {
	// GIVEN: A fresh core
	// WHEN: A student profile is created
	// THEN: They hold the quota and one welcome notification

	core := newTestCore(t)
	student := seedStudent(t, core, "stu-1")
	ctx := context.Background()

	balance, err := core.Tokens.Balance(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, market.DefaultQuota, balance)

	feed, err := core.Notify.Feed(ctx, student.ID, market.StudentFeedLimit)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, fmt.Sprintf("Welcome to Bulldogs Market! You have %d tokens to start with. Happy shopping!", market.DefaultQuota), feed[0].Message)
}

func TestRegistry_Staff_NoAccountNoWelcome(t *testing.T) {
	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	ctx := context.Background()

	_, err := core.Tokens.Balance(ctx, staff.ID)
	assert.ErrorIs(t, err, market.ErrNotFound)

	feed, err := core.Notify.Feed(ctx, staff.ID, market.StaffFeedLimit)
	require.NoError(t, err)
	assert.Empty(t, feed)
}

func TestRegistry_InvalidRole_Rejected(t *testing.T) {
	core := newTestCore(t)

	err := core.Registry.CreateProfile(context.Background(), &market.User{
		ID:   "x",
		Role: "janitor",
	})
	assert.ErrorIs(t, err, market.ErrInvalidRange)
}

func TestRegistry_Students_ListsOnlyStudents(t *testing.T) {
	core := newTestCore(t)
	seedStaff(t, core, "staff-1")
	seedStudent(t, core, "stu-1")
	seedStudent(t, core, "stu-2")

	students, err := core.Registry.Students(context.Background())
	require.NoError(t, err)
	assert.Len(t, students, 2)
}
