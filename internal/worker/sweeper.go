package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweep is a periodic job run by a Sweeper.
type Sweep func(ctx context.Context) (int, error)

// Sweeper runs a sweep on a cron schedule as a safety net for lost messages.
type Sweeper struct {
	sweep    Sweep
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	cron    *cron.Cron
	cancel  context.CancelFunc
}

func NewSweeper(sweep Sweep, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{sweep: sweep, interval: interval, logger: logger}
}

// Start schedules the sweep every interval. Returns an error if already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("sweeper is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	// SkipIfStillRunning keeps a slow Sheets API from stacking sweeps.
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := c.AddFunc(spec, func() { s.run(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule sweep %q: %w", spec, err)
	}
	c.Start()

	s.cron, s.cancel, s.running = c, cancel, true
	s.logger.InfoContext(ctx, "Export sweeper started", "interval", s.interval)
	return nil
}

// Stop cancels the schedule and waits for a running sweep or ctx.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	c, cancel := s.cron, s.cancel
	s.running = false
	s.mu.Unlock()

	done := c.Stop()
	cancel()
	select {
	case <-done.Done():
		s.logger.InfoContext(ctx, "Export sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Export sweeper stop timed out")
		return ctx.Err()
	}
}

func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow performs one sweep synchronously.
func (s *Sweeper) RunNow(ctx context.Context) {
	s.run(ctx)
}

func (s *Sweeper) run(ctx context.Context) {
	n, err := s.sweep(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Export sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "Export sweep completed", "exported", n)
	}
}
