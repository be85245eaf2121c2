// Package scheduler runs the periodic extraction, cleanup and digest jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled task. Each run gets its own timeout.
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler wraps a seconds-resolution cron. Overlapping runs of the same
// job are skipped and panics are recovered.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	baseCtx context.Context
	cancel  context.CancelFunc
	entries map[string]cron.EntryID
}

// New creates a scheduler.
func New(logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		baseCtx: ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers a job. An empty spec leaves the job unscheduled.
func (s *Scheduler) Add(job Job) error {
	if job.Spec == "" {
		s.logger.Info("job disabled", "job", job.Name)
		return nil
	}
	id, err := s.cron.AddFunc(job.Spec, func() { s.runJob(job) })
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", job.Name, job.Spec, err)
	}

	s.mu.Lock()
	s.entries[job.Name] = id
	s.mu.Unlock()
	s.logger.Info("job scheduled", "job", job.Name, "spec", job.Spec)
	return nil
}

func (s *Scheduler) runJob(job Job) {
	ctx := s.baseCtx
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	start := time.Now()
	s.logger.Info("job started", "job", job.Name)
	if err := job.Run(ctx); err != nil {
		s.logger.Error("job failed", "job", job.Name, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return
	}
	s.logger.Info("job finished", "job", job.Name, "duration_ms", time.Since(start).Milliseconds())
}

// Next returns the next activation of a job, or the zero time when unknown.
func (s *Scheduler) Next(name string) time.Time {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	entry := s.cron.Entry(id)
	if entry.Next.IsZero() && entry.Schedule != nil {
		// Not started yet.
		return entry.Schedule.Next(time.Now())
	}
	return entry.Next
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started", "jobs", len(s.entries))
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
