/*
scheduler.go - Weekly token reset scheduler

PURPOSE:
  Periodically checks whether a new ISO week has started and, when it
  has, resets every student balance to the weekly quota and posts the
  reset notification.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Tracks the last ISO week it reset for; a tick that lands in the same
    week is a no-op, so restarts inside a week never double-reset
  - Initialized to the current week on Start: the reset fires at the
    next week boundary, not on boot

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewResetScheduler(core, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ResetTokens endpoint (manual reset)
  - market/reset.go: WeeklyReset
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bulldogs/market-core/market"
)

// ResetScheduler drives the weekly token reset in the background.
type ResetScheduler struct {
	Core          *market.Core
	Log           *zap.Logger
	CheckInterval time.Duration
	Enabled       bool

	// Now is swappable for tests.
	Now func() time.Time

	ticker   *time.Ticker
	stop     chan bool
	wg       sync.WaitGroup
	mu       sync.Mutex
	lastYear int
	lastWeek int
}

// NewResetScheduler creates a new scheduler.
func NewResetScheduler(core *market.Core, log *zap.Logger) *ResetScheduler {
	return &ResetScheduler{
		Core:          core,
		Log:           log,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Now:           time.Now,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (rs *ResetScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Log.Info("reset scheduler disabled, not starting")
		return
	}

	// Arm at the current week so nothing fires on boot.
	rs.lastYear, rs.lastWeek = rs.Now().UTC().ISOWeek()

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	rs.Log.Info("reset scheduler started",
		zap.Duration("check_interval", rs.CheckInterval),
		zap.Int("iso_week", rs.lastWeek))
}

// Stop stops the scheduler.
func (rs *ResetScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.Log.Info("reset scheduler stopped")
	}
}

func (rs *ResetScheduler) run() {
	defer rs.wg.Done()

	for {
		select {
		case <-rs.ticker.C:
			rs.checkAndReset()
		case <-rs.stop:
			return
		}
	}
}

func (rs *ResetScheduler) checkAndReset() {
	year, week := rs.Now().UTC().ISOWeek()

	rs.mu.Lock()
	due := year != rs.lastYear || week != rs.lastWeek
	rs.mu.Unlock()
	if !due {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	count, err := rs.Core.Reset.ResetAll(ctx, rs.Core.Quota)
	if err != nil {
		// Leave lastWeek unchanged so the next tick retries.
		rs.Log.Error("weekly reset failed",
			zap.Int("iso_week", week),
			zap.Int("reset", count),
			zap.Error(err))
		return
	}

	rs.mu.Lock()
	rs.lastYear, rs.lastWeek = year, week
	rs.mu.Unlock()

	rs.Log.Info("weekly reset completed",
		zap.Int("iso_week", week),
		zap.Int("reset", count),
		zap.Int("quota", rs.Core.Quota))
}

// RunNow triggers an immediate check (for testing/admin).
func (rs *ResetScheduler) RunNow() {
	rs.checkAndReset()
}
