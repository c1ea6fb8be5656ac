/*
registry.go - Student and staff profile registry

PURPOSE:
  Records the identities the identity provider hands us. Creating a
  student profile seeds the token account with the starting quota and
  sends the welcome notification; staff profiles get neither.

  The core never verifies credentials; it trusts the id and role supplied
  at the edge.
*/
package market

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// REGISTRY
// =============================================================================

type Registry struct {
	users    UserStore
	accounts AccountStore
	notify   *Dispatcher
	log      *zap.Logger
	quota    int
}

func NewRegistry(users UserStore, accounts AccountStore, notify *Dispatcher, log *zap.Logger, quota int) *Registry {
	if quota <= 0 {
		quota = DefaultQuota
	}
	return &Registry{users: users, accounts: accounts, notify: notify, log: log, quota: quota}
}

// CreateProfile registers a user. Students additionally get a token account
// at the starting quota and a welcome notification.
func (r *Registry) CreateProfile(ctx context.Context, u *User) error {
	if !u.Role.Valid() {
		return fmt.Errorf("role %q: %w", u.Role, ErrInvalidRange)
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	if err := r.users.CreateUser(ctx, u); err != nil {
		return err
	}

	if u.Role == RoleStudent {
		if err := r.accounts.CreateAccount(ctx, u.ID, r.quota); err != nil {
			return err
		}
		msg := fmt.Sprintf("Welcome to Bulldogs Market! You have %d tokens to start with. Happy shopping!", r.quota)
		if err := r.notify.Emit(ctx, u.ID, msg, NotifySystem, "", EventKey("welcome", string(u.ID))); err != nil {
			r.log.Warn("welcome notification failed", zap.String("student", string(u.ID)), zap.Error(err))
		}
	}

	r.log.Info("profile created", zap.String("user", string(u.ID)), zap.String("role", string(u.Role)))
	return nil
}

// Profile returns one user record.
func (r *Registry) Profile(ctx context.Context, id UserID) (*User, error) {
	return r.users.GetUser(ctx, id)
}

// Students returns all student profiles. Staff view.
func (r *Registry) Students(ctx context.Context) ([]User, error) {
	return r.users.ListStudents(ctx)
}
