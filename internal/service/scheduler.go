package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timmy/cryptoetl/internal/domain"
	"github.com/timmy/cryptoetl/internal/logger"
)

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	Interval   time.Duration
	RunOnStart bool
	RunTimeout time.Duration
}

// Scheduler triggers runs on a fixed interval. At most one run is active at
// any time; ticks that arrive during a run are dropped.
type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runOnStart bool
	runTimeout time.Duration
	logger     *logger.Logger

	running atomic.Bool
	wg      sync.WaitGroup

	mu       sync.RWMutex
	lifetime context.Context
}

// NewScheduler creates a new scheduler.
func NewScheduler(runner Runner, log *logger.Logger, cfg *SchedulerConfig) *Scheduler {
	s := &Scheduler{
		runner:     runner,
		interval:   time.Hour,
		runOnStart: true,
		runTimeout: 10 * time.Minute,
		logger:     log,
		lifetime:   context.Background(),
	}
	if cfg != nil {
		if cfg.Interval > 0 {
			s.interval = cfg.Interval
		}
		if cfg.RunTimeout > 0 {
			s.runTimeout = cfg.RunTimeout
		}
		s.runOnStart = cfg.RunOnStart
	}
	return s
}

// Start blocks, triggering runs until ctx is canceled, then waits for the
// in-flight run to finish. Canceling ctx also cancels that run, including
// one started through Trigger.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx = logger.Ensure(ctx, s.logger)
	ctx = logger.SetComponent(ctx, "scheduler")

	s.mu.Lock()
	s.lifetime = ctx
	s.mu.Unlock()

	logger.CtxInfo(ctx, "Scheduler started: interval=%s, run_on_start=%v", s.interval, s.runOnStart)

	if s.runOnStart {
		s.tick(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.CtxInfo(ctx, "Scheduler stopping, waiting for in-flight run")
			s.Wait()
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if err := s.launch(ctx, nil); err != nil {
		logger.CtxWarn(ctx, "Scheduled run skipped: %v", err)
	}
}

// Trigger starts a run in the background. It returns ErrRunInProgress if a
// run is already active. The run outlives ctx but not the scheduler.
func (s *Scheduler) Trigger(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.lifetimeContext(), cancel)

	err := s.launch(runCtx, func() {
		stop()
		cancel()
	})
	if err != nil {
		stop()
		cancel()
	}
	return err
}

// launch runs in the background under the overlap guard; release is called
// once the run has finished.
func (s *Scheduler) launch(ctx context.Context, release func()) error {
	if !s.running.CompareAndSwap(false, true) {
		return domain.ErrRunInProgress
	}

	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		defer s.running.Store(false)
		if release != nil {
			defer release()
		}
		s.execute(runCtx)
	}()
	return nil
}

func (s *Scheduler) lifetimeContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lifetime
}

// RunNow executes a run synchronously under the same overlap guard.
func (s *Scheduler) RunNow(ctx context.Context) (*domain.JobRun, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, domain.ErrRunInProgress
	}
	defer s.running.Store(false)

	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()
	return s.execute(runCtx)
}

func (s *Scheduler) execute(ctx context.Context) (*domain.JobRun, error) {
	job, err := s.runner.Run(ctx)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Error("ETL run failed to record")
	}
	return job, err
}

// Running reports whether a run is active.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Wait blocks until the in-flight run, if any, has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
