// internal/repository/repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicate is returned when a write hits a unique constraint, including the
// one-running-timer-per-user index.
var ErrDuplicate = errors.New("duplicate record")

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ============================================
// Models / Entities
// ============================================

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// WorkspaceSettings keeps the recognized flags typed; anything else the client
// sends rides along in Extra untouched.
type WorkspaceSettings struct {
	AllowPublicJoin  bool                   `json:"allowPublicJoin"`
	RequireApproval  bool                   `json:"requireApproval"`
	AllowGuestAccess bool                   `json:"allowGuestAccess"`
	Extra            map[string]interface{} `json:"extra,omitempty"`
}

func DefaultWorkspaceSettings() WorkspaceSettings {
	return WorkspaceSettings{RequireApproval: true}
}

type Workspace struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  *string           `json:"description,omitempty"`
	Slug         string            `json:"slug"`
	OwnerID      string            `json:"ownerId"`
	Plan         string            `json:"subscriptionPlan"`
	MemberLimit  int               `json:"memberLimit"`
	ProjectLimit int               `json:"projectLimit"`
	Settings     WorkspaceSettings `json:"settings"`
	IsActive     bool              `json:"isActive"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

type WorkspaceMember struct {
	ID            string     `json:"id"`
	WorkspaceID   string     `json:"workspaceId"`
	UserID        *string    `json:"userId,omitempty"`
	Role          string     `json:"role"`
	Status        string     `json:"status"`
	InviteToken   *string    `json:"-"`
	InviteExpires *time.Time `json:"inviteExpires,omitempty"`
	InvitedBy     *string    `json:"invitedBy,omitempty"`
	JoinedAt      *time.Time `json:"joinedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type ProjectMember struct {
	UserID   string    `json:"userId"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

type Project struct {
	ID          string          `json:"id"`
	WorkspaceID string          `json:"workspaceId"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Status      string          `json:"status"`
	Priority    string          `json:"priority"`
	Progress    int             `json:"progress"`
	OwnerID     string          `json:"ownerId"`
	Members     []ProjectMember `json:"members"`
	Archived    bool            `json:"archived"`
	ArchivedAt  *time.Time      `json:"archivedAt,omitempty"`
	ArchivedBy  *string         `json:"archivedBy,omitempty"`
	StartDate   *time.Time      `json:"startDate,omitempty"`
	EndDate     *time.Time      `json:"endDate,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// IsMember reports whether userID is the owner or a listed member.
func (p *Project) IsMember(userID string) bool {
	return p.OwnerID == userID || p.MemberRole(userID) != ""
}

// MemberRole returns "" when userID is not a project member.
func (p *Project) MemberRole(userID string) string {
	for _, m := range p.Members {
		if m.UserID == userID {
			return m.Role
		}
	}
	return ""
}

type Task struct {
	ID             string     `json:"id"`
	WorkspaceID    string     `json:"workspaceId"`
	ProjectID      string     `json:"projectId"`
	Title          string     `json:"title"`
	Description    *string    `json:"description,omitempty"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	AssigneeID     *string    `json:"assigneeId,omitempty"`
	ReporterID     string     `json:"reporterId"`
	EstimatedHours float64    `json:"estimatedHours"`
	LoggedHours    float64    `json:"loggedHours"`
	RemainingHours float64    `json:"remainingHours"`
	Progress       int        `json:"progress"`
	StartDate      *time.Time `json:"startDate,omitempty"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
	CompletedDate  *time.Time `json:"completedDate,omitempty"`
	WatcherIDs     []string   `json:"watchers"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (t *Task) IsAssignee(userID string) bool {
	return t.AssigneeID != nil && *t.AssigneeID == userID
}

type TimeEntry struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	TaskID          string     `json:"taskId"`
	ProjectID       string     `json:"projectId"`
	WorkspaceID     string     `json:"workspaceId"`
	Description     string     `json:"description"`
	Hours           float64    `json:"hours"`
	Date            time.Time  `json:"date"`
	Billable        bool       `json:"billable"`
	IsRunning       bool       `json:"isRunning"`
	StartTime       *time.Time `json:"startTime,omitempty"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	Approved        bool       `json:"isApproved"`
	ApprovedBy      *string    `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	ApprovalComment string     `json:"approvalComment,omitempty"`
	Invoiced        bool       `json:"invoiced"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// IsEditable is false once the entry has been approved or invoiced.
func (e *TimeEntry) IsEditable() bool {
	return !e.Approved && !e.Invoiced
}

// ============================================
// Filters / Aggregates
// ============================================

type TaskFilter struct {
	ProjectID  string
	AssigneeID string
	Status     string
	Priority   string
	Limit      int
	Offset     int
}

type TimeEntryFilter struct {
	UserID      string
	WorkspaceID string
	ProjectID   string
	TaskID      string
	Billable    *bool
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

type TimeSummary struct {
	TotalHours       float64 `json:"totalHours"`
	BillableHours    float64 `json:"billableHours"`
	NonBillableHours float64 `json:"nonBillableHours"`
	TotalEntries     int     `json:"totalEntries"`
}

// Report groupings
const (
	ReportSummary = "summary"
	ReportDaily   = "daily"
	ReportUser    = "user"
	ReportProject = "project"
)

type ReportFilter struct {
	WorkspaceID string
	GroupBy     string
	ProjectID   string
	UserID      string
	From        *time.Time
	To          *time.Time
}

// ReportRow is one aggregated bucket. Key is the day (YYYY-MM-DD), user id or
// project id depending on the grouping, and empty for the summary.
type ReportRow struct {
	Key              string  `json:"key"`
	Label            string  `json:"label,omitempty"`
	TotalHours       float64 `json:"totalHours"`
	BillableHours    float64 `json:"billableHours"`
	NonBillableHours float64 `json:"nonBillableHours"`
	Entries          int     `json:"entries"`
	AvgHoursPerEntry float64 `json:"avgHoursPerEntry"`
}

// ExportFilter selects closed entries for an export. Empty id lists mean all.
type ExportFilter struct {
	WorkspaceID  string
	ProjectIDs   []string
	UserIDs      []string
	BillableOnly bool
	From         time.Time
	To           time.Time
}

// ExportRow is a time entry joined with the names a spreadsheet needs.
type ExportRow struct {
	EntryID     string    `json:"entryId"`
	Date        time.Time `json:"date"`
	UserID      string    `json:"userId"`
	UserName    string    `json:"userName"`
	ProjectID   string    `json:"projectId"`
	ProjectName string    `json:"projectName"`
	TaskID      string    `json:"taskId"`
	TaskTitle   string    `json:"taskTitle"`
	Hours       float64   `json:"hours"`
	Billable    bool      `json:"billable"`
	Approved    bool      `json:"isApproved"`
	Description string    `json:"description"`
}

// ============================================
// Repository Interfaces
// ============================================

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByIDs(ctx context.Context, ids []string) ([]*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}

type WorkspaceRepository interface {
	Create(ctx context.Context, workspace *Workspace) error
	FindByID(ctx context.Context, id string) (*Workspace, error)
	SlugExists(ctx context.Context, slug, excludeID string) (bool, error)
	FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*Workspace, int, error)
	Update(ctx context.Context, workspace *Workspace) error

	AddMember(ctx context.Context, member *WorkspaceMember) error
	// FindMember returns the active membership of userID, or nil.
	FindMember(ctx context.Context, workspaceID, userID string) (*WorkspaceMember, error)
	// FindPendingByToken returns a pending, unexpired invitation, or nil.
	FindPendingByToken(ctx context.Context, token string, now time.Time) (*WorkspaceMember, error)
	UpdateMember(ctx context.Context, member *WorkspaceMember) error
	ListMembers(ctx context.Context, workspaceID string) ([]*WorkspaceMember, error)
	CountActiveMembers(ctx context.Context, workspaceID string) (int, error)
	// ExpireInvites marks pending invitations past their expiry inactive.
	ExpireInvites(ctx context.Context, now time.Time) (int, error)
}

type ProjectRepository interface {
	Create(ctx context.Context, project *Project) error
	FindByID(ctx context.Context, id string) (*Project, error)
	FindByWorkspace(ctx context.Context, workspaceID string, includeArchived bool, limit, offset int) ([]*Project, int, error)
	ListActiveIDs(ctx context.Context) ([]string, error)
	ExistsByName(ctx context.Context, workspaceID, name, excludeID string) (bool, error)
	CountByWorkspace(ctx context.Context, workspaceID string) (int, error)
	Update(ctx context.Context, project *Project) error
	UpdateProgress(ctx context.Context, id string, progress int, status string) error
	// Delete removes the project with its members, tasks and time entries.
	Delete(ctx context.Context, id string) error

	AddMember(ctx context.Context, projectID string, member *ProjectMember) error
	RemoveMember(ctx context.Context, projectID, userID string) error
}

type TaskRepository interface {
	Create(ctx context.Context, task *Task) error
	FindByID(ctx context.Context, id string) (*Task, error)
	FindByProject(ctx context.Context, projectID string) ([]*Task, error)
	FindByWorkspace(ctx context.Context, workspaceID string) ([]*Task, error)
	List(ctx context.Context, filter TaskFilter) ([]*Task, int, error)
	Update(ctx context.Context, task *Task) error
	UpdateHours(ctx context.Context, id string, logged, remaining float64) error
	// Delete removes the task with its watchers and time entries.
	Delete(ctx context.Context, id string) error

	AddWatcher(ctx context.Context, taskID, userID string) error
	RemoveWatcher(ctx context.Context, taskID, userID string) error
}

type TimeEntryRepository interface {
	// Create returns ErrDuplicate when the user already has a running entry.
	Create(ctx context.Context, entry *TimeEntry) error
	FindByID(ctx context.Context, id string) (*TimeEntry, error)
	FindRunningByUser(ctx context.Context, userID string) (*TimeEntry, error)
	FindByTask(ctx context.Context, taskID string) ([]*TimeEntry, error)
	FindByProject(ctx context.Context, projectID string) ([]*TimeEntry, error)
	FindStaleRunning(ctx context.Context, startedBefore time.Time) ([]*TimeEntry, error)
	List(ctx context.Context, filter TimeEntryFilter) ([]*TimeEntry, int, error)
	Summarize(ctx context.Context, filter TimeEntryFilter) (*TimeSummary, error)
	Update(ctx context.Context, entry *TimeEntry) error
	Delete(ctx context.Context, id string) error
}

type ReportRepository interface {
	TimeReport(ctx context.Context, filter ReportFilter) ([]ReportRow, error)
	// ExportRows returns closed entries ordered by date, then creation.
	ExportRows(ctx context.Context, filter ExportFilter) ([]ExportRow, error)
}
