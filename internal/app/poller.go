package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cultcreative/deck/internal/retry"
)

const defaultPollInterval = time.Second

// Refresher revalidates keys whose refresh interval has elapsed.
type Refresher interface {
	RefreshDue(ctx context.Context) (int, error)
}

// StartPoller launches a background goroutine that drives interval refresh.
// Consecutive failures back off exponentially. It returns immediately.
func StartPoller(ctx context.Context, r Refresher, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("poller")
	go func() {
		failures := 0
		for {
			failures = poll(ctx, r, failures, logger)
			timer := time.NewTimer(retry.Backoff(failures, interval))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
}

// poll runs one refresh pass and returns the updated failure count.
func poll(ctx context.Context, r Refresher, failures int, logger *zap.Logger) int {
	n, err := r.RefreshDue(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return failures
		}
		failures++
		logger.Warn("refresh failed", zap.Int("keys", n), zap.Int("failures", failures), zap.Error(err))
		return failures
	}
	if failures > 0 {
		logger.Info("refresh recovered", zap.Int("after_failures", failures))
	}
	return 0
}
