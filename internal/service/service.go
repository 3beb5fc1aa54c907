package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Marga-Ghale/ora-progress-api/internal/config"
	"github.com/Marga-Ghale/ora-progress-api/internal/repository"
)

// ============================================
// Errors
// ============================================

// Error kinds, also used as the "code" of HTTP error bodies.
const (
	KindNotFound            = "NOT_FOUND"
	KindAccessDenied        = "ACCESS_DENIED"
	KindInsufficientRole    = "INSUFFICIENT_ROLE"
	KindTimerAlreadyRunning = "TIMER_ALREADY_RUNNING"
	KindFutureDate          = "FUTURE_DATE"
	KindNotEditable         = "NOT_EDITABLE"
	KindValidation          = "VALIDATION_ERROR"
	KindQuotaExceeded       = "QUOTA_EXCEEDED"
	KindConflict            = "CONFLICT"
)

// Error is a domain error. errors.Is matches any two errors of the same Kind,
// so callers compare against the sentinels below.
type Error struct {
	Kind    string
	Message string
	Reason  string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "resource not found"}
	ErrAccessDenied        = &Error{Kind: KindAccessDenied, Message: "access denied"}
	ErrInsufficientRole    = &Error{Kind: KindInsufficientRole, Message: "insufficient role"}
	ErrTimerAlreadyRunning = &Error{Kind: KindTimerAlreadyRunning, Message: "a timer is already running"}
	ErrFutureDate          = &Error{Kind: KindFutureDate, Message: "date cannot be in the future"}
	ErrNotEditable         = &Error{Kind: KindNotEditable, Message: "time entry can no longer be edited"}
	ErrValidation          = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrQuotaExceeded       = &Error{Kind: KindQuotaExceeded, Message: "plan limit reached"}
	ErrConflict            = &Error{Kind: KindConflict, Message: "resource already exists"}
)

func notFound(what string) error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func invalid(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

func conflict(message string) error {
	return &Error{Kind: KindConflict, Message: message}
}

// Bulk request caps.
const (
	MaxBulkProgressUpdates = 50
	MaxBulkTimeEntries     = 10
)

// BulkSummary counts the outcome of a bulk request.
type BulkSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

func checkBulkSize(n, limit int) error {
	if n == 0 {
		return invalid("at least one item is required")
	}
	if n > limit {
		return invalid(fmt.Sprintf("cannot process more than %d items at once", limit))
	}
	return nil
}

// itemFailure reports a failed bulk item as (code, message). Infrastructure
// errors are logged and reported without their details.
func (e *env) itemFailure(ctx context.Context, err error) (string, string) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, de.Error()
	}
	e.log.ErrorContext(ctx, "bulk item failed", "error", err)
	return "INTERNAL_ERROR", "internal error"
}

// ============================================
// Collaborators
// ============================================

// Notifier pushes realtime events. socket.Broadcaster implements it.
type Notifier interface {
	ProgressUpdated(projectID string, payload map[string]interface{})
	TaskProgressUpdated(projectID string, payload map[string]interface{})
	TimerStarted(userID string, payload map[string]interface{})
	TimerStopped(userID string, payload map[string]interface{})
	TimerStale(userID string, payload map[string]interface{})
}

// Cache stores dashboard payloads. db.RedisDB implements it.
type Cache interface {
	GetCache(ctx context.Context, key string, dest interface{}) (bool, error)
	SetCache(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	InvalidateCache(ctx context.Context, pattern string) error
}

// Mailer delivers transactional mail. email.Service implements it.
type Mailer interface {
	SendInvite(to, workspaceName, inviterName, role, link string) error
	SendStaleTimer(to, userName, taskTitle string, startedAt time.Time) error
}

type nopNotifier struct{}

func (nopNotifier) ProgressUpdated(string, map[string]interface{})     {}
func (nopNotifier) TaskProgressUpdated(string, map[string]interface{}) {}
func (nopNotifier) TimerStarted(string, map[string]interface{})        {}
func (nopNotifier) TimerStopped(string, map[string]interface{})        {}
func (nopNotifier) TimerStale(string, map[string]interface{})          {}

// ============================================
// Services Container
// ============================================

type Services struct {
	Auth       AuthService
	Access     AccessService
	Permission PermissionService
	Progress   ProgressService
	Time       TimeTrackingService
	Workspace  WorkspaceService
	Project    ProjectService
	Task       TaskService
	Dashboard  DashboardService
}

// ServiceDeps contains all dependencies needed to create services.
// Notifier, Cache and Mailer are optional.
type ServiceDeps struct {
	Config   *config.Config
	Repos    *repository.Repositories
	Notifier Notifier
	Cache    Cache
	Mailer   Mailer
	Now      func() time.Time
}

// env is the shared plumbing every service embeds.
type env struct {
	cfg      *config.Config
	repos    *repository.Repositories
	notifier Notifier
	cache    Cache
	mailer   Mailer
	now      func() time.Time
	log      *slog.Logger
}

func (e *env) withComponent(component string) *env {
	c := *e
	c.log = slog.With("component", component)
	return &c
}

// invalidateProgress drops cached dashboards of a project and its workspace.
func (e *env) invalidateProgress(ctx context.Context, workspaceID, projectID string) {
	if e.cache == nil {
		return
	}
	patterns := []string{workspaceDashboardKey(workspaceID)}
	if projectID != "" {
		patterns = append(patterns, projectDashboardKey(projectID)+"*")
	}
	for _, p := range patterns {
		if err := e.cache.InvalidateCache(ctx, p); err != nil {
			e.log.WarnContext(ctx, "cache invalidation failed", "pattern", p, "error", err)
		}
	}
}

func NewServices(deps *ServiceDeps) *Services {
	base := &env{
		cfg:      deps.Config,
		repos:    deps.Repos,
		notifier: deps.Notifier,
		cache:    deps.Cache,
		mailer:   deps.Mailer,
		now:      deps.Now,
	}
	if base.cfg == nil {
		base.cfg = config.Load()
	}
	if base.notifier == nil {
		base.notifier = nopNotifier{}
	}
	if base.now == nil {
		base.now = time.Now
	}

	access := NewAccessService(deps.Repos)
	permission := NewPermissionService(deps.Repos, access)
	progress := newProgressService(base.withComponent("progress"), permission)

	return &Services{
		Auth:       NewAuthService(base.cfg),
		Access:     access,
		Permission: permission,
		Progress:   progress,
		Time:       newTimeTrackingService(base.withComponent("time"), permission),
		Workspace:  newWorkspaceService(base.withComponent("workspace")),
		Project:    newProjectService(base.withComponent("project"), permission, progress),
		Task:       newTaskService(base.withComponent("task"), permission, progress),
		Dashboard:  newDashboardService(base.withComponent("dashboard"), access),
	}
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
