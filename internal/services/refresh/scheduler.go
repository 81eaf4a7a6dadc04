package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/bobmcallan/folio/internal/common"
)

// CycleRunner is the part of the coordinator the scheduler drives
type CycleRunner interface {
	TryRunCycle(ctx context.Context) bool
}

// Scheduler fires a refresh cycle on a fixed interval. Missed ticks are not
// made up; a tick that lands on a running cycle is skipped by the coordinator.
type Scheduler struct {
	runner     CycleRunner
	interval   time.Duration
	runOnStart bool
	logger     *common.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup // in-flight cycles
}

// NewScheduler creates a scheduler. With runOnStart the first cycle fires as
// soon as Start is called instead of one interval later.
func NewScheduler(runner CycleRunner, interval time.Duration, runOnStart bool, logger *common.Logger) *Scheduler {
	return &Scheduler{
		runner:     runner,
		interval:   interval,
		runOnStart: runOnStart,
		logger:     logger,
	}
}

// Start launches the ticker loop and returns immediately. Calling Start on a
// running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.Info().
		Dur("interval", s.interval).
		Bool("run_on_start", s.runOnStart).
		Msg("Refresh scheduler: started")

	if s.runOnStart {
		s.fire(ctx)
	}
	go s.loop(ctx, s.done)
}

// Stop ends the ticker loop and waits for any cycle it started to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Refresh scheduler: stopped")
			return
		case <-ticker.C:
			s.fire(ctx)
		}
	}
}

// fire runs a cycle without blocking the ticker
func (s *Scheduler) fire(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if !s.runner.TryRunCycle(ctx) {
			s.logger.Debug().Msg("Refresh scheduler: tick skipped, cycle in progress")
		}
	}()
}
