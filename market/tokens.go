/*
tokens.go - Token ledger: atomic debit/credit of student balances

PURPOSE:
  Owns the per-student token balance. Checkout debits it, cancellation and
  request approval credit it, the weekly reset overwrites it. Nothing else
  writes balances.

INVARIANT:
  A balance never goes negative. Debit checks the freshly-read balance and
  writes only if the record is unchanged since the read; a failed debit
  never mutates the balance.

SET vs DELTA:
  The weekly reset uses Set (balance = quota) rather than a credit delta:
  re-running the reset restates the same quota instead of stacking tokens,
  which is what makes the job idempotent.

SEE ALSO:
  - inventory.go: Same retry discipline; backoff helper lives there
  - reset.go: The weekly reset job built on Set
*/
package market

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// =============================================================================
// TOKEN LEDGER
// =============================================================================

type TokenLedger struct {
	accounts AccountStore
	log      *zap.Logger
	attempts int
}

func NewTokenLedger(accounts AccountStore, log *zap.Logger, attempts int) *TokenLedger {
	if attempts <= 0 {
		attempts = DefaultRetryAttempts
	}
	return &TokenLedger{accounts: accounts, log: log, attempts: attempts}
}

// Debit atomically decrements the student's balance by amount and returns the
// new balance. Fails with InsufficientTokensError (no write) if the balance
// is short, ErrNotFound if the account is missing, ErrConflict if the retry
// budget is exhausted.
func (l *TokenLedger) Debit(ctx context.Context, studentID UserID, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("debit amount %d: %w", amount, ErrInvalidRange)
	}

	for attempt := 0; attempt < l.attempts; attempt++ {
		acct, err := l.accounts.GetAccount(ctx, studentID)
		if err != nil {
			return 0, err
		}
		if acct.Balance < amount {
			return 0, &InsufficientTokensError{StudentID: studentID, Balance: acct.Balance, Requested: amount}
		}

		newBalance := acct.Balance - amount
		err = l.accounts.UpdateBalance(ctx, studentID, acct.Version, newBalance)
		if errors.Is(err, ErrVersionConflict) {
			backoff(attempt)
			continue
		}
		if err != nil {
			return 0, err
		}
		return newBalance, nil
	}

	l.log.Warn("token debit exhausted retry budget",
		zap.String("student", string(studentID)), zap.Int("amount", amount))
	return 0, ErrConflict
}

// Credit atomically increments the student's balance by amount and returns
// the new balance. Used for refunds and approved token requests.
func (l *TokenLedger) Credit(ctx context.Context, studentID UserID, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount %d: %w", amount, ErrInvalidRange)
	}

	for attempt := 0; attempt < l.attempts; attempt++ {
		acct, err := l.accounts.GetAccount(ctx, studentID)
		if err != nil {
			return 0, err
		}

		newBalance := acct.Balance + amount
		err = l.accounts.UpdateBalance(ctx, studentID, acct.Version, newBalance)
		if errors.Is(err, ErrVersionConflict) {
			backoff(attempt)
			continue
		}
		if err != nil {
			return 0, err
		}
		return newBalance, nil
	}

	l.log.Warn("token credit exhausted retry budget",
		zap.String("student", string(studentID)), zap.Int("amount", amount))
	return 0, ErrConflict
}

// Set overwrites the balance unconditionally. Only the weekly reset uses
// this; it must not be used where the non-negative invariant depends on the
// previous value.
func (l *TokenLedger) Set(ctx context.Context, studentID UserID, balance int) error {
	if balance < 0 {
		return fmt.Errorf("set balance %d: %w", balance, ErrInvalidRange)
	}
	return l.accounts.SetBalance(ctx, studentID, balance)
}

// Balance returns the current balance. Read-only.
func (l *TokenLedger) Balance(ctx context.Context, studentID UserID) (int, error) {
	acct, err := l.accounts.GetAccount(ctx, studentID)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}
