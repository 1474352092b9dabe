package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/jmanzanog/market-sim/internal/domain"
)

// Scheduled job names.
const (
	JobSimulateMarkets        = "simulate-markets"
	JobRefreshRealInstruments = "refresh-real-instruments"
)

// ScheduleOff leaves a job registered for RunNow but never schedules it.
const ScheduleOff = "off"

// SimulationJobs is the part of SimulationService driven by the scheduler.
type SimulationJobs interface {
	SimulateAll(ctx context.Context) ([]domain.PriceChange, error)
	RefreshRealInstruments(ctx context.Context) *RefreshResult
}

// Scheduler runs the periodic simulation jobs on cron schedules. A run that is
// still in progress when its next tick fires makes that tick a no-op.
type Scheduler struct {
	cron *cron.Cron
	jobs map[string]func(ctx context.Context) error

	mu      sync.Mutex
	ctx     context.Context
	running map[string]bool
}

// NewScheduler registers both jobs. simulationSpec and refreshSpec are standard
// cron specs or "@every <duration>"; ScheduleOff disables the schedule.
func NewScheduler(jobs SimulationJobs, simulationSpec, refreshSpec string) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		ctx:     context.Background(),
		running: make(map[string]bool),
	}
	s.jobs = map[string]func(ctx context.Context) error{
		JobSimulateMarkets: func(ctx context.Context) error {
			changes, err := jobs.SimulateAll(ctx)
			slog.InfoContext(ctx, "Markets simulated", "changed", len(changes))
			return err
		},
		JobRefreshRealInstruments: func(ctx context.Context) error {
			result := jobs.RefreshRealInstruments(ctx)
			if len(result.Failed) > 0 {
				return fmt.Errorf("%d of %d instruments failed to refresh",
					len(result.Failed), len(result.Failed)+len(result.Refreshed))
			}
			return nil
		},
	}

	for name, spec := range map[string]string{
		JobSimulateMarkets:        simulationSpec,
		JobRefreshRealInstruments: refreshSpec,
	} {
		if err := s.schedule(name, spec); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) schedule(name, spec string) error {
	if spec == ScheduleOff || spec == "" {
		slog.Info("Job schedule disabled", "job", name)
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		if err := s.run(ctx, name); err != nil {
			slog.ErrorContext(ctx, "Job failed", "job", name, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
	}
	slog.Info("Job registered", "job", name, "schedule", spec)
	return nil
}

// Start begins firing scheduled jobs with ctx until Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	slog.Info("Scheduler started")
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("Scheduler stopped")
}

// RunNow executes the named job synchronously, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	if _, ok := s.jobs[name]; !ok {
		return fmt.Errorf("unknown job: %s", name)
	}
	slog.InfoContext(ctx, "Running job immediately", "job", name)
	return s.run(ctx, name)
}

// Jobs lists the registered job names.
func (s *Scheduler) Jobs() []string {
	return []string{JobSimulateMarkets, JobRefreshRealInstruments}
}

func (s *Scheduler) run(ctx context.Context, name string) error {
	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		slog.DebugContext(ctx, "Job still running, skipping", "job", name)
		return nil
	}
	s.running[name] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
	}()

	slog.DebugContext(ctx, "Running job", "job", name)
	return s.jobs[name](ctx)
}
