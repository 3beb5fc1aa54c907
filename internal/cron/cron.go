package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Marga-Ghale/ora-progress-api/internal/config"
	"github.com/robfig/cron/v3"
)

// jobTimeout bounds a single run of any job.
const jobTimeout = 10 * time.Minute

type ProgressRecomputer interface {
	RecomputeAll(ctx context.Context) (int, error)
}

type InviteExpirer interface {
	ExpireInvites(ctx context.Context) (int, error)
}

type StaleTimerNotifier interface {
	NotifyStaleTimers(ctx context.Context, olderThan time.Duration) (int, error)
}

// Scheduler handles scheduled tasks
type Scheduler struct {
	cron     *cron.Cron
	cfg      *config.Config
	progress ProgressRecomputer
	invites  InviteExpirer
	timers   StaleTimerNotifier
	log      *slog.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg *config.Config, progress ProgressRecomputer, invites InviteExpirer, timers StaleTimerNotifier) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		cfg:      cfg,
		progress: progress,
		invites:  invites,
		timers:   timers,
		log:      slog.With("component", "cron"),
	}
}

// Start registers the jobs on their configured schedules and starts the
// scheduler. A malformed schedule is returned as an error.
func (s *Scheduler) Start() error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) (int, error)
	}{
		{"recompute_progress", s.cfg.RecomputeSpec, s.progress.RecomputeAll},
		{"expire_invites", s.cfg.InviteSweepSpec, s.invites.ExpireInvites},
		{"stale_timers", s.cfg.StaleTimerSpec, s.notifyStaleTimers},
	}

	for _, j := range jobs {
		if _, err := s.cron.AddFunc(j.spec, s.wrap(j.name, j.run)); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", j.name, j.spec, err)
		}
	}

	s.cron.Start()
	s.log.Info("scheduler started", "jobs", len(jobs))
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) notifyStaleTimers(ctx context.Context) (int, error) {
	return s.timers.NotifyStaleTimers(ctx, s.cfg.StaleTimerAfter)
}

// wrap turns a job into a cron func that logs its outcome.
func (s *Scheduler) wrap(name string, run func(context.Context) (int, error)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		s.runJob(ctx, name, run)
	}
}

func (s *Scheduler) runJob(ctx context.Context, name string, run func(context.Context) (int, error)) {
	start := time.Now()
	n, err := run(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "job failed", "job", name, "error", err, "duration", time.Since(start))
		return
	}
	s.log.InfoContext(ctx, "job finished", "job", name, "affected", n, "duration", time.Since(start))
}
