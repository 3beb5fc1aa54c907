package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestWithTx_RollsBackWhenTaskUpdateFails(t *testing.T) {
	db, mock := setupMockDB(t)
	repos := NewRepositories(nil, db)
	ctx := context.Background()

	start := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	entry := &TimeEntry{ID: "e1", TaskID: "t1", Hours: 1, Date: start, StartTime: &start, EndTime: &end}

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE time_entries SET`).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(end))
	mock.ExpectExec(`UPDATE tasks SET logged_hours`).
		WithArgs("t1", 1.0, 3.0).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repos.WithTx(ctx, func(tx *Repositories) error {
		if err := tx.TimeEntryRepo.Update(ctx, entry); err != nil {
			return err
		}
		return tx.TaskRepo.UpdateHours(ctx, "t1", 1, 3)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_Commits(t *testing.T) {
	db, mock := setupMockDB(t)
	repos := NewRepositories(nil, db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE tasks SET logged_hours`).
		WithArgs("t1", 2.0, 2.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repos.WithTx(ctx, func(tx *Repositories) error {
		return tx.TaskRepo.UpdateHours(ctx, "t1", 2, 2)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
