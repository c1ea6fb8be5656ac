/*
reset.go - Weekly token reset job

PURPOSE:
  Once a week every student's balance is overwritten to the quota. The job
  is deliberately not transactional across students: a partial failure
  leaves some accounts reset and others not, and re-running restates the
  same quota (overwrite, not delta), so the fix for a partial run is simply
  to run it again.

NOTIFICATIONS:
  One `system` notification per student per reset run. The dedup key is
  derived from the ISO week of the run, so a re-run within the same week
  does not double-notify anyone.

PARALLELISM:
  Accounts are independent, so the fan-out runs with bounded parallelism.
  The first error is returned next to the count of accounts that did reset.

SEE ALSO:
  - tokens.go: Set (overwrite) semantics
  - api/scheduler.go: The ticker that fires this at week boundaries
*/
package market

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// WEEKLY RESET
// =============================================================================

type WeeklyReset struct {
	users  UserStore
	tokens *TokenLedger
	notify *Dispatcher
	log    *zap.Logger

	// Parallelism bounds the concurrent per-student work. Zero means the
	// default of 8.
	Parallelism int

	// Now is overridable in tests; the reset-run dedup key depends on it.
	Now func() time.Time
}

func NewWeeklyReset(users UserStore, tokens *TokenLedger, notify *Dispatcher, log *zap.Logger) *WeeklyReset {
	return &WeeklyReset{users: users, tokens: tokens, notify: notify, log: log, Now: time.Now}
}

// ResetAll overwrites every student's balance to quota and notifies each of
// them. Returns how many accounts were reset and the first error, if any.
// Safe to re-run.
func (w *WeeklyReset) ResetAll(ctx context.Context, quota int) (int, error) {
	if quota < 0 {
		return 0, fmt.Errorf("quota %d: %w", quota, ErrInvalidRange)
	}

	students, err := w.users.ListStudents(ctx)
	if err != nil {
		return 0, err
	}

	year, week := w.Now().UTC().ISOWeek()
	runKey := fmt.Sprintf("reset:%d-W%02d", year, week)
	msg := fmt.Sprintf("Your weekly token balance has been reset to %d. Happy shopping!", quota)

	parallelism := w.Parallelism
	if parallelism <= 0 {
		parallelism = 8
	}

	var count atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for _, student := range students {
		student := student
		g.Go(func() error {
			if err := w.tokens.Set(gctx, student.ID, quota); err != nil {
				w.log.Error("weekly reset failed for student",
					zap.String("student", string(student.ID)), zap.Error(err))
				return err
			}
			count.Add(1)
			if err := w.notify.Emit(gctx, student.ID, msg, NotifySystem, "", EventKey(runKey, string(student.ID))); err != nil {
				w.log.Warn("reset notification failed",
					zap.String("student", string(student.ID)), zap.Error(err))
			}
			return nil
		})
	}

	err = g.Wait()
	reset := int(count.Load())
	w.log.Info("weekly token reset finished",
		zap.Int("students", len(students)),
		zap.Int("reset", reset),
		zap.Int("quota", quota),
		zap.String("run", runKey))
	return reset, err
}
