package repository

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore backs the in-memory repositories used by STORAGE=memory and the
// service tests. A transaction holds mu for its whole duration and restores a
// snapshot of every table when fn fails.
type memStore struct {
	mu  sync.Mutex
	now func() time.Time
	seq int64

	order      map[string]int64
	users      map[string]*User
	workspaces map[string]*Workspace
	members    map[string]*WorkspaceMember
	projects   map[string]*Project
	tasks      map[string]*Task
	entries    map[string]*TimeEntry
}

func newMemStore() *memStore {
	return &memStore{
		now:        time.Now,
		order:      map[string]int64{},
		users:      map[string]*User{},
		workspaces: map[string]*Workspace{},
		members:    map[string]*WorkspaceMember{},
		projects:   map[string]*Project{},
		tasks:      map[string]*Task{},
		entries:    map[string]*TimeEntry{},
	}
}

// NewInMemoryRepositories returns repositories that keep everything in process
// memory. Constraints the Postgres schema enforces (unique email and slug, one
// running timer per user, cascading deletes) are enforced here as well.
func NewInMemoryRepositories() *Repositories {
	s := newMemStore()
	repos := s.repositories(false)
	repos.tx = s
	return repos
}

func (s *memStore) repositories(inTx bool) *Repositories {
	base := memRepo{s: s, inTx: inTx}
	return &Repositories{
		UserRepo:      &memUserRepository{base},
		WorkspaceRepo: &memWorkspaceRepository{base},
		ProjectRepo:   &memProjectRepository{base},
		TaskRepo:      &memTaskRepository{base},
		TimeEntryRepo: &memTimeEntryRepository{base},
		ReportRepo:    &memReportRepository{base},
	}
}

func (s *memStore) withTx(ctx context.Context, fn func(*Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(s.repositories(true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	seq        int64
	order      map[string]int64
	users      map[string]*User
	workspaces map[string]*Workspace
	members    map[string]*WorkspaceMember
	projects   map[string]*Project
	tasks      map[string]*Task
	entries    map[string]*TimeEntry
}

func cloneMap[T any](m map[string]*T, clone func(*T) *T) map[string]*T {
	out := make(map[string]*T, len(m))
	for k, v := range m {
		out[k] = clone(v)
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	order := make(map[string]int64, len(s.order))
	for k, v := range s.order {
		order[k] = v
	}
	return memSnapshot{
		seq:        s.seq,
		order:      order,
		users:      cloneMap(s.users, copyUser),
		workspaces: cloneMap(s.workspaces, copyWorkspace),
		members:    cloneMap(s.members, copyMember),
		projects:   cloneMap(s.projects, copyProject),
		tasks:      cloneMap(s.tasks, copyTask),
		entries:    cloneMap(s.entries, copyTimeEntry),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.seq = snap.seq
	s.order = snap.order
	s.users = snap.users
	s.workspaces = snap.workspaces
	s.members = snap.members
	s.projects = snap.projects
	s.tasks = snap.tasks
	s.entries = snap.entries
}

func (s *memStore) newID() string {
	id := uuid.NewString()
	s.seq++
	s.order[id] = s.seq
	return id
}

// before orders records by creation time, then by insertion.
func (s *memStore) before(aID string, aAt time.Time, bID string, bAt time.Time) bool {
	if !aAt.Equal(bAt) {
		return aAt.Before(bAt)
	}
	return s.order[aID] < s.order[bID]
}

type memRepo struct {
	s    *memStore
	inTx bool
}

func (r memRepo) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// ============================================
// Copies
// ============================================

func copyUser(u *User) *User {
	c := *u
	return &c
}

func copyWorkspace(ws *Workspace) *Workspace {
	c := *ws
	if ws.Settings.Extra != nil {
		c.Settings.Extra = make(map[string]interface{}, len(ws.Settings.Extra))
		for k, v := range ws.Settings.Extra {
			c.Settings.Extra[k] = v
		}
	}
	return &c
}

func copyMember(m *WorkspaceMember) *WorkspaceMember {
	c := *m
	return &c
}

func copyProject(p *Project) *Project {
	c := *p
	c.Members = append([]ProjectMember{}, p.Members...)
	return &c
}

func copyTask(t *Task) *Task {
	c := *t
	c.WatcherIDs = append([]string{}, t.WatcherIDs...)
	return &c
}

func copyTimeEntry(e *TimeEntry) *TimeEntry {
	c := *e
	return &c
}

// ============================================
// Users
// ============================================

type memUserRepository struct{ memRepo }

func (r *memUserRepository) Create(ctx context.Context, user *User) error {
	defer r.lock()()

	email := strings.ToLower(user.Email)
	for _, u := range r.s.users {
		if u.Email == email {
			return ErrDuplicate
		}
	}
	user.ID = r.s.newID()
	user.Email = email
	user.CreatedAt = r.s.now()
	r.s.users[user.ID] = copyUser(user)
	return nil
}

func (r *memUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	defer r.lock()()

	if u, ok := r.s.users[id]; ok {
		return copyUser(u), nil
	}
	return nil, nil
}

func (r *memUserRepository) FindByIDs(ctx context.Context, ids []string) ([]*User, error) {
	defer r.lock()()

	users := []*User{}
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			users = append(users, copyUser(u))
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (r *memUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	defer r.lock()()

	email = strings.ToLower(email)
	for _, u := range r.s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

// ============================================
// Workspaces
// ============================================

type memWorkspaceRepository struct{ memRepo }

func (r *memWorkspaceRepository) Create(ctx context.Context, ws *Workspace) error {
	defer r.lock()()

	for _, w := range r.s.workspaces {
		if w.Slug == ws.Slug {
			return ErrDuplicate
		}
	}
	now := r.s.now()
	ws.ID = r.s.newID()
	ws.IsActive = true
	ws.CreatedAt, ws.UpdatedAt = now, now
	r.s.workspaces[ws.ID] = copyWorkspace(ws)
	return nil
}

func (r *memWorkspaceRepository) FindByID(ctx context.Context, id string) (*Workspace, error) {
	defer r.lock()()

	if ws, ok := r.s.workspaces[id]; ok {
		return copyWorkspace(ws), nil
	}
	return nil, nil
}

func (r *memWorkspaceRepository) SlugExists(ctx context.Context, slug, excludeID string) (bool, error) {
	defer r.lock()()

	for _, ws := range r.s.workspaces {
		if ws.Slug == slug && ws.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memWorkspaceRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*Workspace, int, error) {
	defer r.lock()()

	var list []*Workspace
	for _, m := range r.s.members {
		if m.Status != "active" || m.UserID == nil || *m.UserID != userID {
			continue
		}
		if ws, ok := r.s.workspaces[m.WorkspaceID]; ok && ws.IsActive {
			list = append(list, copyWorkspace(ws))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return r.s.before(list[j].ID, list[j].CreatedAt, list[i].ID, list[i].CreatedAt)
	})
	return page(list, limit, offset), len(list), nil
}

func (r *memWorkspaceRepository) Update(ctx context.Context, ws *Workspace) error {
	defer r.lock()()

	cur, ok := r.s.workspaces[ws.ID]
	if !ok {
		return nil
	}
	for _, w := range r.s.workspaces {
		if w.Slug == ws.Slug && w.ID != ws.ID {
			return ErrDuplicate
		}
	}
	ws.OwnerID = cur.OwnerID
	ws.CreatedAt = cur.CreatedAt
	ws.UpdatedAt = r.s.now()
	r.s.workspaces[ws.ID] = copyWorkspace(ws)
	return nil
}

func (r *memWorkspaceRepository) memberConflict(m *WorkspaceMember) bool {
	for _, o := range r.s.members {
		if o.ID == m.ID {
			continue
		}
		if m.InviteToken != nil && o.InviteToken != nil && *o.InviteToken == *m.InviteToken {
			return true
		}
		if m.Status == "active" && o.Status == "active" && m.UserID != nil && o.UserID != nil &&
			o.WorkspaceID == m.WorkspaceID && *o.UserID == *m.UserID {
			return true
		}
	}
	return false
}

func (r *memWorkspaceRepository) AddMember(ctx context.Context, m *WorkspaceMember) error {
	defer r.lock()()

	if r.memberConflict(m) {
		return ErrDuplicate
	}
	now := r.s.now()
	m.ID = r.s.newID()
	m.CreatedAt, m.UpdatedAt = now, now
	r.s.members[m.ID] = copyMember(m)
	return nil
}

func (r *memWorkspaceRepository) FindMember(ctx context.Context, workspaceID, userID string) (*WorkspaceMember, error) {
	defer r.lock()()

	for _, m := range r.s.members {
		if m.WorkspaceID == workspaceID && m.Status == "active" && m.UserID != nil && *m.UserID == userID {
			return copyMember(m), nil
		}
	}
	return nil, nil
}

func (r *memWorkspaceRepository) FindPendingByToken(ctx context.Context, token string, now time.Time) (*WorkspaceMember, error) {
	defer r.lock()()

	for _, m := range r.s.members {
		if m.Status != "pending" || m.InviteToken == nil || *m.InviteToken != token {
			continue
		}
		if m.InviteExpires != nil && m.InviteExpires.After(now) {
			return copyMember(m), nil
		}
	}
	return nil, nil
}

func (r *memWorkspaceRepository) UpdateMember(ctx context.Context, m *WorkspaceMember) error {
	defer r.lock()()

	cur, ok := r.s.members[m.ID]
	if !ok {
		return nil
	}
	if r.memberConflict(m) {
		return ErrDuplicate
	}
	m.WorkspaceID = cur.WorkspaceID
	m.InvitedBy = cur.InvitedBy
	m.CreatedAt = cur.CreatedAt
	m.UpdatedAt = r.s.now()
	r.s.members[m.ID] = copyMember(m)
	return nil
}

func (r *memWorkspaceRepository) ListMembers(ctx context.Context, workspaceID string) ([]*WorkspaceMember, error) {
	defer r.lock()()

	var list []*WorkspaceMember
	for _, m := range r.s.members {
		if m.WorkspaceID == workspaceID {
			list = append(list, copyMember(m))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return r.s.before(list[i].ID, list[i].CreatedAt, list[j].ID, list[j].CreatedAt)
	})
	return list, nil
}

func (r *memWorkspaceRepository) CountActiveMembers(ctx context.Context, workspaceID string) (int, error) {
	defer r.lock()()

	count := 0
	for _, m := range r.s.members {
		if m.WorkspaceID == workspaceID && m.Status == "active" {
			count++
		}
	}
	return count, nil
}

func (r *memWorkspaceRepository) ExpireInvites(ctx context.Context, now time.Time) (int, error) {
	defer r.lock()()

	count := 0
	for _, m := range r.s.members {
		if m.Status == "pending" && m.InviteExpires != nil && !m.InviteExpires.After(now) {
			m.Status = "inactive"
			m.InviteToken = nil
			m.UpdatedAt = r.s.now()
			count++
		}
	}
	return count, nil
}

// ============================================
// Projects
// ============================================

type memProjectRepository struct{ memRepo }

func (r *memProjectRepository) Create(ctx context.Context, p *Project) error {
	defer r.lock()()

	now := r.s.now()
	p.ID = r.s.newID()
	p.CreatedAt, p.UpdatedAt = now, now
	for i := range p.Members {
		p.Members[i].JoinedAt = now
	}
	r.s.projects[p.ID] = copyProject(p)
	return nil
}

func (r *memProjectRepository) FindByID(ctx context.Context, id string) (*Project, error) {
	defer r.lock()()

	if p, ok := r.s.projects[id]; ok {
		return copyProject(p), nil
	}
	return nil, nil
}

func (r *memProjectRepository) FindByWorkspace(ctx context.Context, workspaceID string, includeArchived bool, limit, offset int) ([]*Project, int, error) {
	defer r.lock()()

	var list []*Project
	for _, p := range r.s.projects {
		if p.WorkspaceID == workspaceID && (includeArchived || !p.Archived) {
			list = append(list, copyProject(p))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return r.s.before(list[j].ID, list[j].CreatedAt, list[i].ID, list[i].CreatedAt)
	})
	return page(list, limit, offset), len(list), nil
}

func (r *memProjectRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	defer r.lock()()

	var ids []string
	for _, p := range r.s.projects {
		if p.Archived {
			continue
		}
		switch p.Status {
		case "planning", "active", "on_hold":
			ids = append(ids, p.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *memProjectRepository) ExistsByName(ctx context.Context, workspaceID, name, excludeID string) (bool, error) {
	defer r.lock()()

	for _, p := range r.s.projects {
		if p.WorkspaceID == workspaceID && !p.Archived && p.ID != excludeID && strings.EqualFold(p.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memProjectRepository) CountByWorkspace(ctx context.Context, workspaceID string) (int, error) {
	defer r.lock()()

	count := 0
	for _, p := range r.s.projects {
		if p.WorkspaceID == workspaceID && !p.Archived {
			count++
		}
	}
	return count, nil
}

func (r *memProjectRepository) Update(ctx context.Context, p *Project) error {
	defer r.lock()()

	cur, ok := r.s.projects[p.ID]
	if !ok {
		return nil
	}
	// members are managed through AddMember and RemoveMember only
	p.Members = append([]ProjectMember{}, cur.Members...)
	p.WorkspaceID = cur.WorkspaceID
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = r.s.now()
	r.s.projects[p.ID] = copyProject(p)
	return nil
}

func (r *memProjectRepository) UpdateProgress(ctx context.Context, id string, progress int, status string) error {
	defer r.lock()()

	if p, ok := r.s.projects[id]; ok {
		p.Progress = progress
		p.Status = status
		p.UpdatedAt = r.s.now()
	}
	return nil
}

func (r *memProjectRepository) Delete(ctx context.Context, id string) error {
	defer r.lock()()

	delete(r.s.projects, id)
	for tid, t := range r.s.tasks {
		if t.ProjectID == id {
			delete(r.s.tasks, tid)
		}
	}
	for eid, e := range r.s.entries {
		if e.ProjectID == id {
			delete(r.s.entries, eid)
		}
	}
	return nil
}

func (r *memProjectRepository) AddMember(ctx context.Context, projectID string, m *ProjectMember) error {
	defer r.lock()()

	p, ok := r.s.projects[projectID]
	if !ok {
		return nil
	}
	for _, existing := range p.Members {
		if existing.UserID == m.UserID {
			return ErrDuplicate
		}
	}
	m.JoinedAt = r.s.now()
	p.Members = append(p.Members, *m)
	return nil
}

func (r *memProjectRepository) RemoveMember(ctx context.Context, projectID, userID string) error {
	defer r.lock()()

	p, ok := r.s.projects[projectID]
	if !ok {
		return nil
	}
	kept := p.Members[:0]
	for _, m := range p.Members {
		if m.UserID != userID {
			kept = append(kept, m)
		}
	}
	p.Members = kept
	return nil
}

// ============================================
// Tasks
// ============================================

type memTaskRepository struct{ memRepo }

func (r *memTaskRepository) Create(ctx context.Context, t *Task) error {
	defer r.lock()()

	now := r.s.now()
	t.ID = r.s.newID()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.WatcherIDs == nil {
		t.WatcherIDs = []string{}
	}
	r.s.tasks[t.ID] = copyTask(t)
	return nil
}

func (r *memTaskRepository) FindByID(ctx context.Context, id string) (*Task, error) {
	defer r.lock()()

	if t, ok := r.s.tasks[id]; ok {
		return copyTask(t), nil
	}
	return nil, nil
}

func (r *memTaskRepository) collect(match func(*Task) bool) []*Task {
	var list []*Task
	for _, t := range r.s.tasks {
		if match(t) {
			list = append(list, copyTask(t))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return r.s.before(list[i].ID, list[i].CreatedAt, list[j].ID, list[j].CreatedAt)
	})
	return list
}

func (r *memTaskRepository) FindByProject(ctx context.Context, projectID string) ([]*Task, error) {
	defer r.lock()()
	return r.collect(func(t *Task) bool { return t.ProjectID == projectID }), nil
}

func (r *memTaskRepository) FindByWorkspace(ctx context.Context, workspaceID string) ([]*Task, error) {
	defer r.lock()()
	return r.collect(func(t *Task) bool { return t.WorkspaceID == workspaceID }), nil
}

func (r *memTaskRepository) List(ctx context.Context, f TaskFilter) ([]*Task, int, error) {
	defer r.lock()()

	list := r.collect(func(t *Task) bool {
		return (f.ProjectID == "" || t.ProjectID == f.ProjectID) &&
			(f.AssigneeID == "" || t.IsAssignee(f.AssigneeID)) &&
			(f.Status == "" || t.Status == f.Status) &&
			(f.Priority == "" || t.Priority == f.Priority)
	})
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].DueDate, list[j].DueDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	return page(list, limit, f.Offset), len(list), nil
}

func (r *memTaskRepository) Update(ctx context.Context, t *Task) error {
	defer r.lock()()

	cur, ok := r.s.tasks[t.ID]
	if !ok {
		return nil
	}
	t.WatcherIDs = append([]string{}, cur.WatcherIDs...)
	t.WorkspaceID = cur.WorkspaceID
	t.ProjectID = cur.ProjectID
	t.ReporterID = cur.ReporterID
	t.CreatedAt = cur.CreatedAt
	t.UpdatedAt = r.s.now()
	r.s.tasks[t.ID] = copyTask(t)
	return nil
}

func (r *memTaskRepository) UpdateHours(ctx context.Context, id string, logged, remaining float64) error {
	defer r.lock()()

	if t, ok := r.s.tasks[id]; ok {
		t.LoggedHours = logged
		t.RemainingHours = remaining
		t.UpdatedAt = r.s.now()
	}
	return nil
}

func (r *memTaskRepository) Delete(ctx context.Context, id string) error {
	defer r.lock()()

	delete(r.s.tasks, id)
	for eid, e := range r.s.entries {
		if e.TaskID == id {
			delete(r.s.entries, eid)
		}
	}
	return nil
}

func (r *memTaskRepository) AddWatcher(ctx context.Context, taskID, userID string) error {
	defer r.lock()()

	t, ok := r.s.tasks[taskID]
	if !ok {
		return nil
	}
	for _, id := range t.WatcherIDs {
		if id == userID {
			return nil
		}
	}
	t.WatcherIDs = append(t.WatcherIDs, userID)
	return nil
}

func (r *memTaskRepository) RemoveWatcher(ctx context.Context, taskID, userID string) error {
	defer r.lock()()

	t, ok := r.s.tasks[taskID]
	if !ok {
		return nil
	}
	kept := t.WatcherIDs[:0]
	for _, id := range t.WatcherIDs {
		if id != userID {
			kept = append(kept, id)
		}
	}
	t.WatcherIDs = kept
	return nil
}

// ============================================
// Time entries
// ============================================

type memTimeEntryRepository struct{ memRepo }

func (r *memTimeEntryRepository) runningConflict(e *TimeEntry) bool {
	if !e.IsRunning {
		return false
	}
	for _, o := range r.s.entries {
		if o.ID != e.ID && o.UserID == e.UserID && o.IsRunning {
			return true
		}
	}
	return false
}

func (r *memTimeEntryRepository) Create(ctx context.Context, e *TimeEntry) error {
	defer r.lock()()

	if r.runningConflict(e) {
		return ErrDuplicate
	}
	now := r.s.now()
	e.ID = r.s.newID()
	e.CreatedAt, e.UpdatedAt = now, now
	r.s.entries[e.ID] = copyTimeEntry(e)
	return nil
}

func (r *memTimeEntryRepository) FindByID(ctx context.Context, id string) (*TimeEntry, error) {
	defer r.lock()()

	if e, ok := r.s.entries[id]; ok {
		return copyTimeEntry(e), nil
	}
	return nil, nil
}

func (r *memTimeEntryRepository) FindRunningByUser(ctx context.Context, userID string) (*TimeEntry, error) {
	defer r.lock()()

	for _, e := range r.s.entries {
		if e.UserID == userID && e.IsRunning {
			return copyTimeEntry(e), nil
		}
	}
	return nil, nil
}

// collect returns matching entries ordered by date, oldest first.
func (r *memTimeEntryRepository) collect(match func(*TimeEntry) bool) []*TimeEntry {
	var list []*TimeEntry
	for _, e := range r.s.entries {
		if match(e) {
			list = append(list, copyTimeEntry(e))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].Date.Equal(list[j].Date) {
			return list[i].Date.Before(list[j].Date)
		}
		return r.s.before(list[i].ID, list[i].CreatedAt, list[j].ID, list[j].CreatedAt)
	})
	return list
}

func (r *memTimeEntryRepository) FindByTask(ctx context.Context, taskID string) ([]*TimeEntry, error) {
	defer r.lock()()
	return r.collect(func(e *TimeEntry) bool { return e.TaskID == taskID }), nil
}

func (r *memTimeEntryRepository) FindByProject(ctx context.Context, projectID string) ([]*TimeEntry, error) {
	defer r.lock()()
	return r.collect(func(e *TimeEntry) bool { return e.ProjectID == projectID }), nil
}

func (r *memTimeEntryRepository) FindStaleRunning(ctx context.Context, startedBefore time.Time) ([]*TimeEntry, error) {
	defer r.lock()()
	return r.collect(func(e *TimeEntry) bool {
		return e.IsRunning && e.StartTime != nil && e.StartTime.Before(startedBefore)
	}), nil
}

func matchTimeEntry(f TimeEntryFilter, e *TimeEntry) bool {
	return (f.UserID == "" || e.UserID == f.UserID) &&
		(f.WorkspaceID == "" || e.WorkspaceID == f.WorkspaceID) &&
		(f.ProjectID == "" || e.ProjectID == f.ProjectID) &&
		(f.TaskID == "" || e.TaskID == f.TaskID) &&
		(f.Billable == nil || e.Billable == *f.Billable) &&
		(f.From == nil || !e.Date.Before(*f.From)) &&
		(f.To == nil || !e.Date.After(*f.To))
}

func (r *memTimeEntryRepository) List(ctx context.Context, f TimeEntryFilter) ([]*TimeEntry, int, error) {
	defer r.lock()()

	list := r.collect(func(e *TimeEntry) bool { return matchTimeEntry(f, e) })
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	return page(list, limit, f.Offset), len(list), nil
}

func (r *memTimeEntryRepository) Summarize(ctx context.Context, f TimeEntryFilter) (*TimeSummary, error) {
	defer r.lock()()

	s := &TimeSummary{}
	for _, e := range r.s.entries {
		if !matchTimeEntry(f, e) {
			continue
		}
		s.TotalHours += e.Hours
		if e.Billable {
			s.BillableHours += e.Hours
		} else {
			s.NonBillableHours += e.Hours
		}
		s.TotalEntries++
	}
	return s, nil
}

func (r *memTimeEntryRepository) Update(ctx context.Context, e *TimeEntry) error {
	defer r.lock()()

	cur, ok := r.s.entries[e.ID]
	if !ok {
		return nil
	}
	if r.runningConflict(e) {
		return ErrDuplicate
	}
	e.UserID, e.TaskID, e.ProjectID, e.WorkspaceID = cur.UserID, cur.TaskID, cur.ProjectID, cur.WorkspaceID
	e.CreatedAt = cur.CreatedAt
	e.UpdatedAt = r.s.now()
	r.s.entries[e.ID] = copyTimeEntry(e)
	return nil
}

func (r *memTimeEntryRepository) Delete(ctx context.Context, id string) error {
	defer r.lock()()

	delete(r.s.entries, id)
	return nil
}

// ============================================
// Reports
// ============================================

type memReportRepository struct{ memRepo }

func (r *memReportRepository) TimeReport(ctx context.Context, f ReportFilter) ([]ReportRow, error) {
	defer r.lock()()

	filter := TimeEntryFilter{WorkspaceID: f.WorkspaceID, ProjectID: f.ProjectID, UserID: f.UserID, From: f.From, To: f.To}

	buckets := map[string]*ReportRow{}
	var keys []string
	for _, e := range r.s.entries {
		if !matchTimeEntry(filter, e) {
			continue
		}

		var key, label string
		switch f.GroupBy {
		case ReportDaily:
			key = e.Date.UTC().Format("2006-01-02")
		case ReportUser:
			key = e.UserID
			if u, ok := r.s.users[e.UserID]; ok {
				label = u.Name
			}
		case ReportProject:
			key = e.ProjectID
			if p, ok := r.s.projects[e.ProjectID]; ok {
				label = p.Name
			}
		}

		row, ok := buckets[key]
		if !ok {
			row = &ReportRow{Key: key, Label: label}
			buckets[key] = row
			keys = append(keys, key)
		}
		row.TotalHours += e.Hours
		if e.Billable {
			row.BillableHours += e.Hours
		} else {
			row.NonBillableHours += e.Hours
		}
		row.Entries++
	}

	report := make([]ReportRow, 0, len(keys))
	for _, k := range keys {
		row := *buckets[k]
		row.AvgHoursPerEntry = row.TotalHours / float64(row.Entries)
		report = append(report, row)
	}
	sort.Slice(report, func(i, j int) bool {
		if f.GroupBy == ReportDaily || report[i].TotalHours == report[j].TotalHours {
			return report[i].Key < report[j].Key
		}
		return report[i].TotalHours > report[j].TotalHours
	})
	return report, nil
}

func (r *memReportRepository) ExportRows(ctx context.Context, f ExportFilter) ([]ExportRow, error) {
	defer r.lock()()

	from, to := f.From, f.To
	filter := TimeEntryFilter{WorkspaceID: f.WorkspaceID, From: &from, To: &to}
	if f.BillableOnly {
		billable := true
		filter.Billable = &billable
	}

	var entries []*TimeEntry
	for _, e := range r.s.entries {
		if e.IsRunning || !matchTimeEntry(filter, e) {
			continue
		}
		if len(f.ProjectIDs) > 0 && !slices.Contains(f.ProjectIDs, e.ProjectID) {
			continue
		}
		if len(f.UserIDs) > 0 && !slices.Contains(f.UserIDs, e.UserID) {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return r.s.before(a.ID, a.CreatedAt, b.ID, b.CreatedAt)
	})

	out := make([]ExportRow, 0, len(entries))
	for _, e := range entries {
		row := ExportRow{
			EntryID: e.ID, Date: e.Date, UserID: e.UserID, ProjectID: e.ProjectID, TaskID: e.TaskID,
			Hours: e.Hours, Billable: e.Billable, Approved: e.Approved, Description: e.Description,
		}
		if u, ok := r.s.users[e.UserID]; ok {
			row.UserName = u.Name
		}
		if p, ok := r.s.projects[e.ProjectID]; ok {
			row.ProjectName = p.Name
		}
		if t, ok := r.s.tasks[e.TaskID]; ok {
			row.TaskTitle = t.Title
		}
		out = append(out, row)
	}
	return out, nil
}
