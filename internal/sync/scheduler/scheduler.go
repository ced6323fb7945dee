// Package scheduler provides periodic background drains for the sync engine.
//
// Reachability and foreground transitions already trigger drains, but an
// operation that failed transiently would otherwise wait for the next such
// event before retrying. The scheduler closes that gap with a fixed-interval
// drain tick.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/kimhsiao/fieldlog/internal/logging"
	syncpkg "github.com/kimhsiao/fieldlog/internal/sync"
)

// DefaultDrainInterval is how often the scheduler re-attempts pending work.
const DefaultDrainInterval = 5 * time.Minute

// Scheduler drives periodic drains on a sync engine.
type Scheduler struct {
	engine   syncpkg.EngineInterface
	interval time.Duration

	mu        sync.Mutex
	isRunning bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// New creates a Scheduler. A non-positive interval selects
// DefaultDrainInterval.
func New(engine syncpkg.EngineInterface, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultDrainInterval
	}
	return &Scheduler{
		engine:   engine,
		interval: interval,
	}
}

// Start launches the drain loop. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.drainLoop(ctx)

	logging.Info("Sync scheduler started", map[string]interface{}{
		"interval_seconds": s.interval.Seconds(),
	})
}

// Stop halts the drain loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	logging.Info("Sync scheduler stopped", nil)
}

// IsRunning reports whether the drain loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// drainLoop fires a drain attempt on every tick. The engine's own guard
// makes overlapping triggers harmless.
func (s *Scheduler) drainLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if !s.engine.IsOnline() {
				logging.Debug("Skipping scheduled drain - offline", nil)
				continue
			}
			result := s.engine.ForceDrain(ctx)
			if result.Ran && result.Processed+result.Retried+result.Failed > 0 {
				logging.Info("Scheduled drain completed", map[string]interface{}{
					"processed": result.Processed,
					"retried":   result.Retried,
					"failed":    result.Failed,
				})
			}
		}
	}
}
