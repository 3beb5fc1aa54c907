package service

import (
	"testing"

	"github.com/Marga-Ghale/ora-progress-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProject(t *testing.T) {
	f := newFixture(t)
	admin := f.user("admin")
	pm := f.user("pm")
	dev := f.user("dev")
	ws := f.workspace(admin, "Acme")
	f.join(ws.ID, pm, types.RoleProjectManager)
	f.join(ws.ID, dev, types.RoleTeamMember)

	p := f.project(pm, ws.ID, "Apollo")
	assert.Equal(t, types.ProjectPlanning, p.Status)
	assert.Equal(t, types.PriorityMedium, p.Priority)
	assert.Equal(t, pm, p.OwnerID)
	assert.Equal(t, types.ProjectRoleLead, p.MemberRole(pm))

	_, err := f.svc.Project.Create(f.ctx, admin, ws.ID, CreateProjectInput{Name: "apollo"})
	assert.ErrorIs(t, err, ErrConflict, "names are unique per workspace, case-insensitively")

	_, err = f.svc.Project.Create(f.ctx, dev, ws.ID, CreateProjectInput{Name: "Gemini"})
	assert.ErrorIs(t, err, ErrInsufficientRole)

	_, err = f.svc.Project.Create(f.ctx, admin, ws.ID, CreateProjectInput{Name: "Bad", Status: "paused"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateProject_QuotaBindsAdmins(t *testing.T) {
	f := newFixture(t)
	admin := f.user("admin")
	ws := f.workspace(admin, "Acme")
	f.project(admin, ws.ID, "One")
	f.project(admin, ws.ID, "Two")
	f.project(admin, ws.ID, "Three")

	_, err := f.svc.Project.Create(f.ctx, admin, ws.ID, CreateProjectInput{Name: "Four"})
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestProjectMembers(t *testing.T) {
	f := newFixture(t)
	admin := f.user("admin")
	dev := f.user("dev")
	stranger := f.user("stranger")
	ws := f.workspace(admin, "Acme")
	f.join(ws.ID, dev, types.RoleTeamMember)
	p := f.project(admin, ws.ID, "Apollo")

	_, err := f.svc.Project.AddMember(f.ctx, admin, p.ID, stranger, "")
	assert.ErrorIs(t, err, ErrValidation, "must belong to the workspace")

	updated, err := f.svc.Project.AddMember(f.ctx, admin, p.ID, dev, "")
	require.NoError(t, err)
	assert.Equal(t, types.ProjectRoleDeveloper, updated.MemberRole(dev))

	_, err = f.svc.Project.AddMember(f.ctx, admin, p.ID, dev, types.ProjectRoleTester)
	assert.ErrorIs(t, err, ErrConflict)

	err = f.svc.Project.RemoveMember(f.ctx, admin, p.ID, admin)
	assert.ErrorIs(t, err, ErrInsufficientRole, "owner cannot be removed")

	require.NoError(t, f.svc.Project.RemoveMember(f.ctx, admin, p.ID, dev))
	assert.ErrorIs(t, f.svc.Project.RemoveMember(f.ctx, admin, p.ID, dev), ErrNotFound)
}

func TestDeleteProject_Cascades(t *testing.T) {
	f := newFixture(t)
	admin := f.user("admin")
	pm := f.user("pm")
	ws := f.workspace(admin, "Acme")
	f.join(ws.ID, pm, types.RoleProjectManager)
	p := f.project(admin, ws.ID, "Apollo")
	task := f.task(admin, p.ID, "Build", 3)
	entry, err := f.svc.Time.LogTime(f.ctx, admin, LogTimeInput{TaskID: task.ID, Hours: 1})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Project.Delete(f.ctx, pm, p.ID), ErrInsufficientRole, "only the owner or an admin deletes")

	require.NoError(t, f.svc.Project.Delete(f.ctx, admin, p.ID))

	gone, err := f.repos.TaskRepo.FindByID(f.ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	e, err := f.repos.TimeEntryRepo.FindByID(f.ctx, entry.ID)
	require.NoError(t, err)
	assert.Nil(t, e)

	_, err = f.svc.Project.Get(f.ctx, admin, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchiveRestore(t *testing.T) {
	f := newFixture(t)
	admin := f.user("admin")
	ws := f.workspace(admin, "Acme")
	p := f.project(admin, ws.ID, "Apollo")

	archived, err := f.svc.Project.Archive(f.ctx, admin, p.ID)
	require.NoError(t, err)
	assert.True(t, archived.Archived)
	assert.Equal(t, types.ProjectCompleted, archived.Status)

	list, total, err := f.svc.Project.ListForWorkspace(f.ctx, admin, ws.ID, false, 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)

	_, total, err = f.svc.Project.ListForWorkspace(f.ctx, admin, ws.ID, true, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	// an archived name is free again until the project is restored
	f.project(admin, ws.ID, "Apollo")
	_, err = f.svc.Project.Restore(f.ctx, admin, p.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdateProject(t *testing.T) {
	f := newFixture(t)
	admin := f.user("admin")
	dev := f.user("dev")
	ws := f.workspace(admin, "Acme")
	f.join(ws.ID, dev, types.RoleTeamMember)
	p := f.project(admin, ws.ID, "Apollo")
	f.project(admin, ws.ID, "Gemini")

	_, err := f.svc.Project.Update(f.ctx, dev, p.ID, UpdateProjectInput{Name: strPtr("Mine")})
	assert.ErrorIs(t, err, ErrInsufficientRole)

	_, err = f.svc.Project.Update(f.ctx, admin, p.ID, UpdateProjectInput{Name: strPtr("gemini")})
	assert.ErrorIs(t, err, ErrConflict)

	updated, err := f.svc.Project.Update(f.ctx, admin, p.ID, UpdateProjectInput{
		Name:     strPtr("Apollo 11"),
		Priority: strPtr(types.PriorityHigh),
		Status:   strPtr(types.ProjectOnHold),
	})
	require.NoError(t, err)
	assert.Equal(t, "Apollo 11", updated.Name)
	assert.Equal(t, types.PriorityHigh, updated.Priority)
	assert.Equal(t, types.ProjectOnHold, updated.Status)
}

func TestRecomputeEndpointGated(t *testing.T) {
	f := newFixture(t)
	admin := f.user("admin")
	dev := f.user("dev")
	ws := f.workspace(admin, "Acme")
	f.join(ws.ID, dev, types.RoleTeamMember)
	p := f.project(admin, ws.ID, "Apollo")

	_, err := f.svc.Project.Recompute(f.ctx, dev, p.ID)
	assert.ErrorIs(t, err, ErrInsufficientRole)

	progress, err := f.svc.Project.Recompute(f.ctx, admin, p.ID)
	require.NoError(t, err)
	assert.Zero(t, progress)
}
