package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Marga-Ghale/ora-progress-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJobs struct {
	recomputed int
	expired    int
	staleAfter time.Duration
	err        error
}

func (f *fakeJobs) RecomputeAll(context.Context) (int, error) {
	f.recomputed++
	return 3, f.err
}

func (f *fakeJobs) ExpireInvites(context.Context) (int, error) {
	f.expired++
	return 1, nil
}

func (f *fakeJobs) NotifyStaleTimers(_ context.Context, olderThan time.Duration) (int, error) {
	f.staleAfter = olderThan
	return 0, nil
}

func TestScheduler_StartRejectsBadSpec(t *testing.T) {
	cfg := config.Load()
	cfg.InviteSweepSpec = "every tuesday"
	jobs := &fakeJobs{}

	err := NewScheduler(cfg, jobs, jobs, jobs).Start()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "expire_invites")
}

func TestScheduler_StartAndStop(t *testing.T) {
	cfg := config.Load()
	jobs := &fakeJobs{}
	s := NewScheduler(cfg, jobs, jobs, jobs)

	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 3)
	s.Stop()
}

func TestScheduler_JobsCallServices(t *testing.T) {
	cfg := config.Load()
	cfg.StaleTimerAfter = 8 * time.Hour
	jobs := &fakeJobs{}
	s := NewScheduler(cfg, jobs, jobs, jobs)

	s.wrap("recompute_progress", jobs.RecomputeAll)()
	s.wrap("expire_invites", jobs.ExpireInvites)()
	s.wrap("stale_timers", s.notifyStaleTimers)()

	assert.Equal(t, 1, jobs.recomputed)
	assert.Equal(t, 1, jobs.expired)
	assert.Equal(t, 8*time.Hour, jobs.staleAfter)
}

func TestScheduler_FailingJobDoesNotPanic(t *testing.T) {
	jobs := &fakeJobs{err: errors.New("db down")}
	s := NewScheduler(config.Load(), jobs, jobs, jobs)

	assert.NotPanics(t, s.wrap("recompute_progress", jobs.RecomputeAll))
}
