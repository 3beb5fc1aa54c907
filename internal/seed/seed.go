// internal/seed/seed.go
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Marga-Ghale/ora-progress-api/internal/repository"
	"github.com/Marga-Ghale/ora-progress-api/internal/service"
	"github.com/Marga-Ghale/ora-progress-api/internal/types"
)

const adminEmail = "marga.ghale@oratechnologies.io"

// Result lists what the seed created, with a development token per user.
type Result struct {
	WorkspaceID string
	ProjectIDs  []string
	Tokens      map[string]string // email -> bearer token
}

type member struct {
	name  string
	email string
	role  string
}

var team = []member{
	{"Marga Ghale", adminEmail, types.RoleWorkspaceAdmin},
	{"Bipin Dhimal", "bipin.dhimal@oratechnologies.io", types.RoleProjectManager},
	{"Kritim Kafle", "kritim.kafle@oratechnologies.io", types.RoleTeamMember},
	{"Prerak Khadka", "prerak.khadka@oratechnologies.io", types.RoleTeamMember},
}

type seedTask struct {
	title    string
	estimate float64
	assignee int // index into team
	status   string
	logged   float64
}

// SeedData creates a demo workspace through the regular services, so every
// derived value (progress, hours, statuses) is computed the normal way. It does
// nothing when the demo admin already exists.
func SeedData(ctx context.Context, repos *repository.Repositories, svc *service.Services, tokenTTL time.Duration) (*Result, error) {
	log := slog.With("component", "seed")

	existing, err := repos.UserRepo.FindByEmail(ctx, adminEmail)
	if err != nil {
		return nil, fmt.Errorf("check seed users: %w", err)
	}
	if existing != nil {
		log.Info("seed data already present, skipping")
		return nil, nil
	}

	res := &Result{Tokens: map[string]string{}}

	users := make([]*repository.User, len(team))
	for i, m := range team {
		u := &repository.User{Name: m.name, Email: m.email}
		if err := repos.UserRepo.Create(ctx, u); err != nil {
			return nil, fmt.Errorf("create user %s: %w", m.email, err)
		}
		users[i] = u

		token, err := svc.Auth.IssueToken(u.ID, tokenTTL)
		if err != nil {
			return nil, fmt.Errorf("issue token for %s: %w", m.email, err)
		}
		res.Tokens[m.email] = token
	}
	admin := users[0]

	desc := "Main company workspace for all projects"
	ws, err := svc.Workspace.Create(ctx, admin.ID, service.CreateWorkspaceInput{
		Name:        "ORA Technologies",
		Description: &desc,
		Plan:        types.PlanPro,
	})
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	res.WorkspaceID = ws.ID

	for i, m := range team[1:] {
		invite, err := svc.Workspace.GenerateInviteLink(ctx, admin.ID, ws.ID, service.InviteInput{Role: m.role})
		if err != nil {
			return nil, fmt.Errorf("invite %s: %w", m.email, err)
		}
		if _, err := svc.Workspace.JoinByInvite(ctx, users[i+1].ID, invite.Token); err != nil {
			return nil, fmt.Errorf("join %s: %w", m.email, err)
		}
	}

	projects := []struct {
		name  string
		tasks []seedTask
	}{
		{"ORA Progress Web", []seedTask{
			{"Design dashboard layout", 8, 2, types.StatusDone, 7.5},
			{"Implement timer widget", 6, 3, types.StatusInProgress, 2},
			{"Burndown chart", 10, 2, types.StatusTodo, 0},
		}},
		{"Mobile App", []seedTask{
			{"Offline time entries", 12, 3, types.StatusReview, 9},
			{"Push notifications", 5, 2, types.StatusTodo, 0},
		}},
	}

	for _, p := range projects {
		project, err := svc.Project.Create(ctx, admin.ID, ws.ID, service.CreateProjectInput{Name: p.name})
		if err != nil {
			return nil, fmt.Errorf("create project %s: %w", p.name, err)
		}
		res.ProjectIDs = append(res.ProjectIDs, project.ID)

		for _, idx := range []int{1, 2, 3} {
			role := types.ProjectRoleDeveloper
			if idx == 1 {
				role = types.ProjectRoleLead
			}
			if _, err := svc.Project.AddMember(ctx, admin.ID, project.ID, users[idx].ID, role); err != nil {
				return nil, fmt.Errorf("add member to %s: %w", p.name, err)
			}
		}

		// All tasks exist before any status is applied so the roll-up never sees
		// a lone finished task and completes the project.
		created := make([]*repository.Task, len(p.tasks))
		for i, st := range p.tasks {
			assigneeID := users[st.assignee].ID
			task, err := svc.Task.Create(ctx, admin.ID, project.ID, service.CreateTaskInput{
				Title:          st.title,
				AssigneeID:     &assigneeID,
				EstimatedHours: st.estimate,
			})
			if err != nil {
				return nil, fmt.Errorf("create task %s: %w", st.title, err)
			}
			created[i] = task
		}
		for i, st := range p.tasks {
			if err := seedWork(ctx, svc, created[i].ID, users[st.assignee].ID, st); err != nil {
				return nil, err
			}
		}
	}

	log.Info("seed data created", "workspace_id", ws.ID, "projects", len(res.ProjectIDs), "users", len(users))
	return res, nil
}

func seedWork(ctx context.Context, svc *service.Services, taskID, assigneeID string, st seedTask) error {
	if st.logged > 0 {
		if _, err := svc.Time.LogTime(ctx, assigneeID, service.LogTimeInput{
			TaskID:      taskID,
			Hours:       st.logged,
			Description: "Seeded work",
			Billable:    true,
		}); err != nil {
			return fmt.Errorf("log time on %s: %w", st.title, err)
		}
	}

	if st.status != types.StatusTodo {
		status := st.status
		if _, err := svc.Progress.UpdateTaskProgress(ctx, taskID, assigneeID, service.TaskProgressInput{Status: &status}); err != nil {
			return fmt.Errorf("update %s: %w", st.title, err)
		}
	}
	return nil
}
