package queue

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const sweepTimeout = 2 * time.Minute

// DeadLetterSweeper drops dead-lettered notification jobs once they are older
// than the retention window. Failed deliveries stay inspectable until then.
type DeadLetterSweeper struct {
	purger    DLQPurger
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger
	purged    atomic.Int64
}

// NewDeadLetterSweeper builds a sweeper. A nil purger makes every sweep a no-op.
func NewDeadLetterSweeper(purger DLQPurger, interval, retention time.Duration, logger *zap.Logger) *DeadLetterSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeadLetterSweeper{
		purger:    purger,
		interval:  interval,
		retention: retention,
		logger:    logger,
	}
}

// Run sweeps once immediately and then on every interval until ctx ends.
func (s *DeadLetterSweeper) Run(ctx context.Context) error {
	s.sweepAndLog(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweepAndLog(ctx)
		}
	}
}

// Purged reports how many dead letters this sweeper has removed.
func (s *DeadLetterSweeper) Purged() int64 {
	return s.purged.Load()
}

func (s *DeadLetterSweeper) sweepAndLog(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	n, err := s.sweep(ctx)
	if err != nil {
		s.logger.Error("dead_letter_sweep_failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("dead_letters_purged",
			zap.Int("count", n),
			zap.Duration("retention", s.retention),
			zap.Int64("total", s.Purged()))
	}
}

func (s *DeadLetterSweeper) sweep(ctx context.Context) (int, error) {
	if s.purger == nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()
	n, err := s.purger.PurgeOlderThan(ctx, s.retention)
	if err != nil {
		return 0, fmt.Errorf("purge dead letters older than %s: %w", s.retention, err)
	}
	s.purged.Add(int64(n))
	return n, nil
}
