package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_Create(t *testing.T) {
	t.Run("lowercases email", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewUserRepository(db)

		now := time.Now()
		mock.ExpectQuery("INSERT INTO users").
			WithArgs("Ada", "ada@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("u1", now))

		user := &User{Name: "Ada", Email: "Ada@Example.com"}
		require.NoError(t, repo.Create(context.Background(), user))
		assert.Equal(t, "u1", user.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectQuery("INSERT INTO users").
			WillReturnError(&pgconn.PgError{Code: "23505"})

		err := repo.Create(context.Background(), &User{Name: "Ada", Email: "ada@example.com"})
		assert.ErrorIs(t, err, ErrDuplicate)
	})
}

func TestUserRepository_FindByID_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT id, name, email, created_at FROM users").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "created_at"}))

	user, err := repo.FindByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}
