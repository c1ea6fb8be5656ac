package market_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bulldogs/market-core/market"
	"github.com/bulldogs/market-core/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestCore(t *testing.T) *market.Core {
	t.Helper()
	return market.NewCore(memory.New(), zap.NewNop(), market.Options{})
}

// newContendedCore raises the retry budget so heavily contended tests only
// ever fail for domain reasons, not budget exhaustion.
func newContendedCore(t *testing.T) *market.Core {
	t.Helper()
	return market.NewCore(memory.New(), zap.NewNop(), market.Options{RetryAttempts: 100})
}

func seedStudent(t *testing.T, core *market.Core, id string) market.Actor {
	t.Helper()
	err := core.Registry.CreateProfile(context.Background(), &market.User{
		ID:        market.UserID(id),
		FirstName: "Test",
		LastName:  "Student",
		Email:     id + "@example.edu",
		Role:      market.RoleStudent,
	})
	require.NoError(t, err)
	return market.Actor{ID: market.UserID(id), Role: market.RoleStudent}
}

func seedStaff(t *testing.T, core *market.Core, id string) market.Actor {
	t.Helper()
	err := core.Registry.CreateProfile(context.Background(), &market.User{
		ID:        market.UserID(id),
		FirstName: "Test",
		LastName:  "Staff",
		Email:     id + "@example.edu",
		Role:      market.RoleAdmin,
	})
	require.NoError(t, err)
	return market.Actor{ID: market.UserID(id), Role: market.RoleAdmin}
}

func seedItem(t *testing.T, core *market.Core, staff market.Actor, name string, qty int) market.ItemID {
	t.Helper()
	item := &market.Item{
		Name:     name,
		Category: market.CategoryFood,
		Quantity: qty,
	}
	require.NoError(t, core.Catalog.CreateItem(context.Background(), staff, item))
	return item.ID
}

func pickupSlot() time.Time {
	return time.Date(2026, time.September, 1, 15, 0, 0, 0, time.UTC)
}
