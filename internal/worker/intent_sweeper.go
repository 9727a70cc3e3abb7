// internal/worker/intent_sweeper.go
package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultSweepInterval = time.Minute

// IntentExpirer is satisfied by *usecase.IntentUsecase.
type IntentExpirer interface {
	ExpireStale(ctx context.Context, before time.Time) (int, error)
}

// IntentSweeper periodically expires quoted intents whose TTL has passed.
// Confirm and cancel apply the TTL themselves; this only keeps the store tidy.
type IntentSweeper struct {
	intents  IntentExpirer
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewIntentSweeper(intents IntentExpirer, interval time.Duration, logger *zap.Logger) *IntentSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &IntentSweeper{
		intents:  intents,
		interval: interval,
		now:      time.Now,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

func (s *IntentSweeper) Start(ctx context.Context) {
	s.logger.Info("Starting intent sweeper", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)

		case <-s.stopChan:
			s.logger.Info("Stopping intent sweeper")
			return

		case <-ctx.Done():
			s.logger.Info("Context cancelled, stopping intent sweeper")
			return
		}
	}
}

func (s *IntentSweeper) sweep(ctx context.Context) {
	n, err := s.intents.ExpireStale(ctx, s.now())
	if err != nil {
		s.logger.Error("Intent sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("Expired stale intents", zap.Int("count", n))
	}
}

func (s *IntentSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}
