// Package scheduler runs a job on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "syllabuscal/internal/log"
)

// Job is the work fired on every tick.
type Job func(ctx context.Context) error

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler fires a single named job. Overlapping runs are skipped rather
// than queued.
type Scheduler struct {
	name     string
	schedule string
	job      Job
	timeout  time.Duration

	cron *cron.Cron

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New validates schedule and returns a stopped Scheduler. timeout bounds a
// single run; zero means no bound.
func New(name, schedule string, timeout time.Duration, job Job) (*Scheduler, error) {
	if _, err := cronParser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("scheduler: invalid schedule %q: %w", schedule, err)
	}
	return &Scheduler{
		name:     name,
		schedule: schedule,
		job:      job,
		timeout:  timeout,
		cron:     cron.New(cron.WithParser(cronParser)),
	}, nil
}

// Start registers the job and starts the cron ticker. Runs are cancelled
// when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if _, err := s.cron.AddFunc(s.schedule, func() {
		appLog.Debug("cron firing job", "name", s.name)
		s.RunNow()
	}); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	appLog.Info("scheduled job", "name", s.name, "schedule", s.schedule)
	s.cron.Start()
	return nil
}

// RunNow executes the job synchronously. It reports false if a run was
// already in progress.
func (s *Scheduler) RunNow() bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		appLog.Warn("job still running; skipping tick", "name", s.name)
		return false
	}
	s.running = true
	parent := s.ctx
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if parent == nil {
		parent = context.Background()
	}
	ctx := parent
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, s.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := s.job(ctx); err != nil {
		appLog.Error("job failed", err, "name", s.name, "took", time.Since(start).String())
		return true
	}
	appLog.Debug("job finished", "name", s.name, "took", time.Since(start).String())
	return true
}

// Stop halts the ticker, cancels any in-flight run and waits for it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	<-s.cron.Stop().Done()
}
