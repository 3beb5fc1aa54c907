package service

import (
	"testing"

	"github.com/Marga-Ghale/ora-progress-api/internal/repository"
	"github.com/Marga-Ghale/ora-progress-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taskFixture struct {
	*fixture
	admin   string
	dev     string
	viewer  string
	ws      *repository.Workspace
	project *repository.Project
}

func newTaskFixture(t *testing.T) *taskFixture {
	f := newFixture(t)
	tf := &taskFixture{fixture: f}
	tf.admin = f.user("admin")
	tf.dev = f.user("dev")
	tf.viewer = f.user("viewer")
	tf.ws = f.workspace(tf.admin, "Acme")
	f.join(tf.ws.ID, tf.dev, types.RoleTeamMember)
	f.join(tf.ws.ID, tf.viewer, types.RoleTeamMember)
	tf.project = f.project(tf.admin, tf.ws.ID, "Apollo")

	_, err := f.svc.Project.AddMember(f.ctx, tf.admin, tf.project.ID, tf.dev, types.ProjectRoleDeveloper)
	require.NoError(t, err)
	_, err = f.svc.Project.AddMember(f.ctx, tf.admin, tf.project.ID, tf.viewer, types.ProjectRoleViewer)
	require.NoError(t, err)
	return tf
}

func TestCreateTask_Defaults(t *testing.T) {
	f := newTaskFixture(t)

	task, err := f.svc.Task.Create(f.ctx, f.viewer, f.project.ID, CreateTaskInput{Title: " Write docs ", EstimatedHours: 6})
	require.NoError(t, err)
	assert.Equal(t, "Write docs", task.Title)
	assert.Equal(t, types.StatusTodo, task.Status)
	assert.Equal(t, types.PriorityMedium, task.Priority)
	assert.Equal(t, types.TypeTask, task.Type)
	assert.Equal(t, 6.0, task.RemainingHours)
	assert.Equal(t, f.viewer, task.ReporterID)
	assert.Equal(t, f.ws.ID, task.WorkspaceID)
}

func TestCreateTask_Validation(t *testing.T) {
	f := newTaskFixture(t)
	outsider := f.user("outsider")
	f.join(f.ws.ID, outsider, types.RoleTeamMember)

	_, err := f.svc.Task.Create(f.ctx, f.admin, f.project.ID, CreateTaskInput{Title: ""})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Task.Create(f.ctx, f.admin, f.project.ID, CreateTaskInput{Title: "x", EstimatedHours: -1})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Task.Create(f.ctx, f.admin, f.project.ID, CreateTaskInput{Title: "x", AssigneeID: &outsider})
	assert.ErrorIs(t, err, ErrValidation, "assignee must be on the project")

	_, err = f.svc.Task.Create(f.ctx, outsider, f.project.ID, CreateTaskInput{Title: "x"})
	assert.ErrorIs(t, err, ErrInsufficientRole, "only project members create tasks")
}

func TestCreateTask_DoneStatusRecomputesProject(t *testing.T) {
	f := newTaskFixture(t)

	task, err := f.svc.Task.Create(f.ctx, f.admin, f.project.ID, CreateTaskInput{Title: "Already shipped", Status: types.StatusDone, EstimatedHours: 2})
	require.NoError(t, err)
	assert.Equal(t, 100, task.Progress)
	assert.NotNil(t, task.CompletedDate)

	assert.Equal(t, 100, f.reloadProject(f.project.ID).Progress)
}

func TestUpdateTask(t *testing.T) {
	f := newTaskFixture(t)
	task := f.fixture.task(f.admin, f.project.ID, "Build", 10)

	_, err := f.svc.Task.Update(f.ctx, f.viewer, task.ID, UpdateTaskInput{Title: strPtr("mine")})
	assert.ErrorIs(t, err, ErrInsufficientRole)

	assigned, err := f.svc.Task.Update(f.ctx, f.dev, task.ID, UpdateTaskInput{
		AssigneeID: &f.dev,
		Priority:   strPtr(types.PriorityHigh),
	})
	require.NoError(t, err)
	assert.True(t, assigned.IsAssignee(f.dev))
	assert.Equal(t, types.PriorityHigh, assigned.Priority)

	updated, err := f.svc.Task.Update(f.ctx, f.dev, task.ID, UpdateTaskInput{
		TaskProgressInput: TaskProgressInput{Status: strPtr(types.StatusInProgress), Progress: intPtr(40)},
	})
	require.NoError(t, err)
	assert.Equal(t, 6.0, updated.RemainingHours)
	assert.NotNil(t, updated.StartDate)
	assert.Equal(t, 40, f.reloadProject(f.project.ID).Progress)

	_, err = f.svc.Task.Update(f.ctx, f.admin, task.ID, UpdateTaskInput{AssigneeID: strPtr("nobody")})
	assert.ErrorIs(t, err, ErrValidation)

	unassigned, err := f.svc.Task.Update(f.ctx, f.admin, task.ID, UpdateTaskInput{AssigneeID: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, unassigned.AssigneeID)
}

func TestUpdateTask_ProgressFieldsUseProgressRule(t *testing.T) {
	f := newTaskFixture(t)
	task := f.fixture.task(f.admin, f.project.ID, "Build", 10)

	// A project developer may edit the task but is neither assignee nor
	// reporter, so status and progress stay out of reach.
	_, err := f.svc.Task.Update(f.ctx, f.dev, task.ID, UpdateTaskInput{
		TaskProgressInput: TaskProgressInput{Status: strPtr(types.StatusDone)},
	})
	assert.ErrorIs(t, err, ErrInsufficientRole)

	_, err = f.svc.Progress.UpdateTaskProgress(f.ctx, task.ID, f.dev, TaskProgressInput{Status: strPtr(types.StatusDone)})
	assert.ErrorIs(t, err, ErrInsufficientRole)

	reloaded := f.reloadTask(task.ID)
	assert.Equal(t, types.StatusTodo, reloaded.Status)
	assert.Equal(t, 0, f.reloadProject(f.project.ID).Progress)

	_, err = f.svc.Task.Update(f.ctx, f.dev, task.ID, UpdateTaskInput{Title: strPtr("Build v2")})
	require.NoError(t, err, "plain edits still follow update_task")
}

func TestUpdateTask_EstimateChangeRederivesRemaining(t *testing.T) {
	f := newTaskFixture(t)
	task := f.fixture.task(f.admin, f.project.ID, "Build", 4)
	_, err := f.svc.Time.LogTime(f.ctx, f.dev, LogTimeInput{TaskID: task.ID, Hours: 1})
	require.NoError(t, err)

	updated, err := f.svc.Task.Update(f.ctx, f.admin, task.ID, UpdateTaskInput{EstimatedHours: floatPtr(8)})
	require.NoError(t, err)
	assert.Equal(t, 7.0, updated.RemainingHours)
	assert.Equal(t, 1.0, updated.LoggedHours)
}

func TestDeleteTask(t *testing.T) {
	f := newTaskFixture(t)
	mine, err := f.svc.Task.Create(f.ctx, f.dev, f.project.ID, CreateTaskInput{Title: "Mine", EstimatedHours: 1})
	require.NoError(t, err)
	theirs := f.fixture.task(f.admin, f.project.ID, "Theirs", 1)
	_, err = f.svc.Progress.UpdateTaskProgress(f.ctx, theirs.ID, f.admin, TaskProgressInput{Status: strPtr(types.StatusDone)})
	require.NoError(t, err)
	assert.Equal(t, 50, f.reloadProject(f.project.ID).Progress)

	assert.ErrorIs(t, f.svc.Task.Delete(f.ctx, f.dev, theirs.ID), ErrInsufficientRole)
	require.NoError(t, f.svc.Task.Delete(f.ctx, f.dev, mine.ID))

	assert.Equal(t, 100, f.reloadProject(f.project.ID).Progress)
	_, err = f.svc.Task.Get(f.ctx, f.dev, mine.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTasks(t *testing.T) {
	f := newTaskFixture(t)
	_, err := f.svc.Task.Create(f.ctx, f.admin, f.project.ID, CreateTaskInput{Title: "a", AssigneeID: &f.dev, Priority: types.PriorityHigh})
	require.NoError(t, err)
	_, err = f.svc.Task.Create(f.ctx, f.admin, f.project.ID, CreateTaskInput{Title: "b", AssigneeID: &f.dev})
	require.NoError(t, err)
	_, err = f.svc.Task.Create(f.ctx, f.admin, f.project.ID, CreateTaskInput{Title: "c"})
	require.NoError(t, err)

	all, total, err := f.svc.Task.ListForProject(f.ctx, f.viewer, f.project.ID, repository.TaskFilter{}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 2)

	high, total, err := f.svc.Task.ListForProject(f.ctx, f.viewer, f.project.ID, repository.TaskFilter{Priority: types.PriorityHigh}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "a", high[0].Title)

	mine, total, err := f.svc.Task.ListForUser(f.ctx, f.dev, "", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, mine, 2)

	_, _, err = f.svc.Task.ListForProject(f.ctx, f.viewer, f.project.ID, repository.TaskFilter{Status: "blocked"}, 1, 20)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestWatchers(t *testing.T) {
	f := newTaskFixture(t)
	task := f.fixture.task(f.admin, f.project.ID, "Build", 1)

	watched, err := f.svc.Task.AddWatcher(f.ctx, f.viewer, task.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{f.viewer}, watched.WatcherIDs)

	watched, err = f.svc.Task.AddWatcher(f.ctx, f.viewer, task.ID, f.viewer)
	require.NoError(t, err)
	assert.Len(t, watched.WatcherIDs, 1, "adding twice is a no-op")

	assert.ErrorIs(t, f.svc.Task.RemoveWatcher(f.ctx, f.dev, task.ID, f.viewer), ErrInsufficientRole)
	require.NoError(t, f.svc.Task.RemoveWatcher(f.ctx, f.admin, task.ID, f.viewer))

	assert.Empty(t, f.reloadTask(task.ID).WatcherIDs)
}
