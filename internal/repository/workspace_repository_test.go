package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var workspaceCols = []string{
	"id", "name", "description", "slug", "owner_id", "plan", "member_limit", "project_limit",
	"settings", "is_active", "created_at", "updated_at",
}

func TestWorkspaceRepository_FindByID(t *testing.T) {
	t.Run("decodes settings", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewWorkspaceRepository(db)

		now := time.Now()
		rows := sqlmock.NewRows(workspaceCols).AddRow(
			"ws1", "Acme", nil, "acme", "u1", "free", 5, 3,
			[]byte(`{"allowPublicJoin":true,"requireApproval":false,"extra":{"theme":"dark"}}`),
			true, now, now,
		)
		mock.ExpectQuery("SELECT (.+) FROM workspaces WHERE id").
			WithArgs("ws1").
			WillReturnRows(rows)

		ws, err := repo.FindByID(context.Background(), "ws1")
		require.NoError(t, err)
		require.NotNil(t, ws)
		assert.Equal(t, "acme", ws.Slug)
		assert.True(t, ws.Settings.AllowPublicJoin)
		assert.False(t, ws.Settings.RequireApproval)
		assert.Equal(t, "dark", ws.Settings.Extra["theme"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing workspace", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewWorkspaceRepository(db)

		mock.ExpectQuery("SELECT (.+) FROM workspaces WHERE id").
			WithArgs("nope").
			WillReturnRows(sqlmock.NewRows(workspaceCols))

		ws, err := repo.FindByID(context.Background(), "nope")
		require.NoError(t, err)
		assert.Nil(t, ws)
	})
}

func TestWorkspaceRepository_SlugExists(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewWorkspaceRepository(db)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("acme", "").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.SlugExists(context.Background(), "acme", "")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkspaceRepository_ExpireInvites(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewWorkspaceRepository(db)

	now := time.Now()
	mock.ExpectExec("UPDATE workspace_members SET status = 'inactive'").
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.ExpireInvites(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
