package background

import (
	"context"
	"log/slog"
	"time"
)

// CooldownSweeper clears elapsed lock cooldowns from account rows. The login
// path already treats an elapsed cooldown as inactive, so the sweep is pure
// hygiene: it keeps stale timestamps from accumulating, never changes what a
// caller observes, and deliberately leaves failure counters alone.
type CooldownSweeper interface {
	SweepElapsedCooldowns(ctx context.Context, before time.Time) (int64, error)
}

// CleanupManager periodically runs the cooldown sweep
type CleanupManager struct {
	accounts CooldownSweeper
	logger   *slog.Logger
	interval time.Duration
	clock    func() time.Time
	stopCh   chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	accounts CooldownSweeper,
	logger *slog.Logger,
	interval time.Duration,
	clock func() time.Time,
) *CleanupManager {
	if clock == nil {
		clock = time.Now
	}
	return &CleanupManager{
		accounts: accounts,
		logger:   logger,
		interval: interval,
		clock:    clock,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runSweep(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cooldown sweeper stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cooldown sweeper context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cleared, err := cm.accounts.SweepElapsedCooldowns(sweepCtx, cm.clock())
	if err != nil {
		cm.logger.Error("failed to sweep elapsed cooldowns", slog.Any("error", err))
		return
	}

	if cleared > 0 {
		cm.logger.Info("cooldown sweep completed", slog.Int64("rows_cleared", cleared))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
