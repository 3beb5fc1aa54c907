package service

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/Marga-Ghale/ora-progress-api/internal/config"
	"github.com/Marga-Ghale/ora-progress-api/internal/repository"
	"github.com/Marga-Ghale/ora-progress-api/internal/types"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type event struct {
	Type    string
	Room    string
	Payload map[string]interface{}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []event
}

func (n *recordingNotifier) record(typ, room string, payload map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event{Type: typ, Room: room, Payload: payload})
}

func (n *recordingNotifier) ProgressUpdated(id string, p map[string]interface{}) {
	n.record("progress_updated", id, p)
}

func (n *recordingNotifier) TaskProgressUpdated(id string, p map[string]interface{}) {
	n.record("task_progress_updated", id, p)
}

func (n *recordingNotifier) TimerStarted(id string, p map[string]interface{}) {
	n.record("timer_started", id, p)
}

func (n *recordingNotifier) TimerStopped(id string, p map[string]interface{}) {
	n.record("timer_stopped", id, p)
}

func (n *recordingNotifier) TimerStale(id string, p map[string]interface{}) {
	n.record("timer_stale", id, p)
}

func (n *recordingNotifier) ofType(typ string) []event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []event
	for _, e := range n.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// memCache mimics db.RedisDB with glob invalidation.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
	hits int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) GetCache(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(raw, dest)
}

func (c *memCache) SetCache(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

func (c *memCache) InvalidateCache(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(c.data, k)
		}
	}
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

type stubMailer struct {
	mu      sync.Mutex
	invites []string
	stale   []string
}

func (m *stubMailer) SendInvite(to, _, _, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invites = append(m.invites, to)
	return nil
}

func (m *stubMailer) SendStaleTimer(to, _, _ string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stale = append(m.stale, to)
	return nil
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	cfg      *config.Config
	repos    *repository.Repositories
	svc      *Services
	clock    *testClock
	notifier *recordingNotifier
	cache    *memCache
	mailer   *stubMailer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		cfg:      config.Load(),
		repos:    repository.NewInMemoryRepositories(),
		clock:    &testClock{t: time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC)},
		notifier: &recordingNotifier{},
		cache:    newMemCache(),
		mailer:   &stubMailer{},
	}
	f.svc = NewServices(&ServiceDeps{
		Config:   f.cfg,
		Repos:    f.repos,
		Notifier: f.notifier,
		Cache:    f.cache,
		Mailer:   f.mailer,
		Now:      f.clock.Now,
	})
	return f
}

func (f *fixture) user(name string) string {
	f.t.Helper()
	u := &repository.User{Name: name, Email: name + "@example.com"}
	require.NoError(f.t, f.repos.UserRepo.Create(f.ctx, u))
	return u.ID
}

func (f *fixture) workspace(ownerID, name string) *repository.Workspace {
	f.t.Helper()
	ws, err := f.svc.Workspace.Create(f.ctx, ownerID, CreateWorkspaceInput{Name: name})
	require.NoError(f.t, err)
	return ws
}

// join adds userID as an active member with role.
func (f *fixture) join(workspaceID, userID, role string) {
	f.t.Helper()
	joined := f.clock.Now()
	require.NoError(f.t, f.repos.WorkspaceRepo.AddMember(f.ctx, &repository.WorkspaceMember{
		WorkspaceID: workspaceID,
		UserID:      &userID,
		Role:        role,
		Status:      types.MemberActive,
		JoinedAt:    &joined,
	}))
}

func (f *fixture) project(actorID, workspaceID, name string) *repository.Project {
	f.t.Helper()
	p, err := f.svc.Project.Create(f.ctx, actorID, workspaceID, CreateProjectInput{Name: name})
	require.NoError(f.t, err)
	return p
}

func (f *fixture) task(actorID, projectID, title string, estimated float64) *repository.Task {
	f.t.Helper()
	task, err := f.svc.Task.Create(f.ctx, actorID, projectID, CreateTaskInput{Title: title, EstimatedHours: estimated})
	require.NoError(f.t, err)
	return task
}

func (f *fixture) reloadTask(id string) *repository.Task {
	f.t.Helper()
	task, err := f.repos.TaskRepo.FindByID(f.ctx, id)
	require.NoError(f.t, err)
	require.NotNil(f.t, task)
	return task
}

func (f *fixture) reloadProject(id string) *repository.Project {
	f.t.Helper()
	p, err := f.repos.ProjectRepo.FindByID(f.ctx, id)
	require.NoError(f.t, err)
	require.NotNil(f.t, p)
	return p
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func floatPtr(v float64) *float64 { return &v }

func timePtr(v time.Time) *time.Time { return &v }
