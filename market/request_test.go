package market_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulldogs/market-core/market"
)

// =============================================================================
// SUBMISSION TESTS
// =============================================================================

func TestTokenRequest_Submit_NotifiesStaff(t *testing.T) {
	// GIVEN: A student out of tokens
	// WHEN: They submit a request for 3 tokens
	// THEN: The request is pending and staff are notified

	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	student := seedStudent(t, core, "stu-1")
	ctx := context.Background()

	req, err := core.Requests.Submit(ctx, student.ID, "ran out before Friday", 3)
	require.NoError(t, err)
	assert.Equal(t, market.RequestPending, req.Status)
	assert.Equal(t, 3, req.Tokens)

	feed, err := core.Notify.Feed(ctx, staff.ID, market.StaffFeedLimit)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "New token request from stu-1@example.edu for 3 tokens.", feed[0].Message)
	assert.Equal(t, market.NotifyToken, feed[0].Category)
}

func TestTokenRequest_Submit_OutOfRange_Rejected(t *testing.T) {
	core := newTestCore(t)
	student := seedStudent(t, core, "stu-1")
	ctx := context.Background()

	_, err := core.Requests.Submit(ctx, student.ID, "zero", 0)
	assert.ErrorIs(t, err, market.ErrInvalidRange)

	_, err = core.Requests.Submit(ctx, student.ID, "greedy", market.MaxRequestTokens+1)
	assert.ErrorIs(t, err, market.ErrInvalidRange)
}

func TestTokenRequest_Submit_SecondPending_Rejected(t *testing.T) {
	// GIVEN: A student with a pending request
	// WHEN: They submit another
	// THEN: ErrDuplicatePending

	core := newTestCore(t)
	student := seedStudent(t, core, "stu-1")
	ctx := context.Background()

	_, err := core.Requests.Submit(ctx, student.ID, "first", 2)
	require.NoError(t, err)

	_, err = core.Requests.Submit(ctx, student.ID, "second", 2)
	assert.ErrorIs(t, err, market.ErrDuplicatePending)
}

func TestTokenRequest_Submit_AfterDecision_Allowed(t *testing.T) {
	// GIVEN: A student whose previous request was rejected
	// WHEN: They submit a new one
	// THEN: It is accepted

	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	student := seedStudent(t, core, "stu-1")
	ctx := context.Background()

	req, err := core.Requests.Submit(ctx, student.ID, "first", 2)
	require.NoError(t, err)
	require.NoError(t, core.Requests.Decide(ctx, req.ID, market.RequestRejected, staff))

	_, err = core.Requests.Submit(ctx, student.ID, "second", 2)
	assert.NoError(t, err)
}

// =============================================================================
// DECISION TESTS
// =============================================================================

func TestTokenRequest_Approve_CreditsAndNotifiesOnce(t *testing.T) {
	// GIVEN: A pending request for 4 tokens
	// WHEN: Staff approve it
	// THEN: The balance grows by 4 and the student gets one approval notice

	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	student := seedStudent(t, core, "stu-1")
	ctx := context.Background()

	req, err := core.Requests.Submit(ctx, student.ID, "field trip week", 4)
	require.NoError(t, err)

	require.NoError(t, core.Requests.Decide(ctx, req.ID, market.RequestApproved, staff))

	balance, err := core.Tokens.Balance(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, market.DefaultQuota+4, balance)

	feed, err := core.Notify.Feed(ctx, student.ID, market.StudentFeedLimit)
	require.NoError(t, err)
	require.Len(t, feed, 2) // approval, then welcome
	assert.Equal(t, "Your request for 4 additional tokens has been approved!", feed[0].Message)
}

func TestTokenRequest_Reject_NoCredit(t *testing.T) {
	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	student := seedStudent(t, core, "stu-1")
	ctx := context.Background()

	req, err := core.Requests.Submit(ctx, student.ID, "just because", 5)
	require.NoError(t, err)

	require.NoError(t, core.Requests.Decide(ctx, req.ID, market.RequestRejected, staff))

	balance, err := core.Tokens.Balance(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, market.DefaultQuota, balance)

	feed, err := core.Notify.Feed(ctx, student.ID, market.StudentFeedLimit)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, "Your request for 5 additional tokens has been rejected.", feed[0].Message)
}

func TestTokenRequest_Decide_Twice_NoDoubleCredit(t *testing.T) {
	// GIVEN: An approved request
	// WHEN: A second decision lands
	// THEN: ErrAlreadyDecided and the balance does not grow again

	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	student := seedStudent(t, core, "stu-1")
	ctx := context.Background()

	req, err := core.Requests.Submit(ctx, student.ID, "one shot", 2)
	require.NoError(t, err)

	require.NoError(t, core.Requests.Decide(ctx, req.ID, market.RequestApproved, staff))
	err = core.Requests.Decide(ctx, req.ID, market.RequestApproved, staff)
	assert.ErrorIs(t, err, market.ErrAlreadyDecided)

	balance, err := core.Tokens.Balance(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, market.DefaultQuota+2, balance)
}

func TestTokenRequest_ConcurrentDecisions_OneWinner(t *testing.T) {
	// GIVEN: Two staff members deciding the same pending request
	// WHEN: Both decisions race
	// THEN: One wins, the other sees ErrAlreadyDecided, credit lands once

	core := newContendedCore(t)
	staffA := seedStaff(t, core, "staff-a")
	staffB := seedStaff(t, core, "staff-b")
	student := seedStudent(t, core, "stu-1")
	ctx := context.Background()

	req, err := core.Requests.Submit(ctx, student.ID, "contended", 3)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, staff := range []market.Actor{staffA, staffB} {
		staff := staff
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- core.Requests.Decide(ctx, req.ID, market.RequestApproved, staff)
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for err := range results {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, market.ErrAlreadyDecided)
		}
	}
	assert.Equal(t, 1, winners)

	balance, err := core.Tokens.Balance(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, market.DefaultQuota+3, balance)
}

func TestTokenRequest_Decide_StudentForbidden(t *testing.T) {
	core := newTestCore(t)
	student := seedStudent(t, core, "stu-1")
	ctx := context.Background()

	req, err := core.Requests.Submit(ctx, student.ID, "self service", 2)
	require.NoError(t, err)

	err = core.Requests.Decide(ctx, req.ID, market.RequestApproved, student)
	assert.ErrorIs(t, err, market.ErrForbidden)
}

func TestTokenRequest_Decide_InvalidOutcome_Rejected(t *testing.T) {
	core := newTestCore(t)
	staff := seedStaff(t, core, "staff-1")
	student := seedStudent(t, core, "stu-1")
	ctx := context.Background()

	req, err := core.Requests.Submit(ctx, student.ID, "pending forever", 2)
	require.NoError(t, err)

	err = core.Requests.Decide(ctx, req.ID, market.RequestPending, staff)
	assert.ErrorIs(t, err, market.ErrInvalidRange)
}
