package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const sweepBatchSize = 100

type DueCompleter interface {
	CompleteDue(ctx context.Context, now time.Time, limit int) (int, error)
}

// CompletionSweeper periodically completes confirmed bookings whose session
// has ended.
type CompletionSweeper struct {
	bookings DueCompleter
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	done     chan struct{}
}

func NewCompletionSweeper(bookings DueCompleter, interval time.Duration, logger *zap.Logger) *CompletionSweeper {
	return &CompletionSweeper{
		bookings: bookings,
		interval: interval,
		now:      time.Now,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *CompletionSweeper) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.logger.Info("starting completion sweeper", zap.Duration("interval", s.interval))
	go s.run(ctx)
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (s *CompletionSweeper) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("stopping completion sweeper")
		close(s.stopChan)
	})
	if s.started.Load() {
		<-s.done
	}
}

func (s *CompletionSweeper) run(ctx context.Context) {
	defer close(s.done)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// sweep drains due bookings in batches until a batch comes back short.
func (s *CompletionSweeper) sweep(ctx context.Context) {
	now := s.now()
	total := 0
	for {
		n, err := s.bookings.CompleteDue(ctx, now, sweepBatchSize)
		total += n
		if err != nil {
			s.logger.Error("completion sweep failed", zap.Int("completed", total), zap.Error(err))
			return
		}
		if n < sweepBatchSize {
			break
		}
	}
	if total > 0 {
		s.logger.Info("completed finished sessions", zap.Int("completed", total))
	}
}
