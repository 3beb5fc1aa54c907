package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repositories struct {
	// Transactional repositories (database/sql)
	UserRepo      UserRepository
	WorkspaceRepo WorkspaceRepository
	ProjectRepo   ProjectRepository
	TaskRepo      TaskRepository
	TimeEntryRepo TimeEntryRepository

	// Read-only reporting (pgxpool)
	ReportRepo ReportRepository

	tx transactor
}

type transactor interface {
	withTx(ctx context.Context, fn func(*Repositories) error) error
}

// WithTx runs fn against repositories bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise. Calls made on
// the repositories passed to fn never open a nested transaction.
func (r *Repositories) WithTx(ctx context.Context, fn func(tx *Repositories) error) error {
	if r.tx == nil {
		return fn(r)
	}
	return r.tx.withTx(ctx, fn)
}

func NewRepositories(pool *pgxpool.Pool, db *sql.DB) *Repositories {
	repos := newSQLRepositories(db)
	repos.ReportRepo = NewReportRepository(pool)
	repos.tx = &sqlTransactor{db: db, reports: repos.ReportRepo}
	return repos
}

func newSQLRepositories(db DBTX) *Repositories {
	return &Repositories{
		UserRepo:      NewUserRepository(db),
		WorkspaceRepo: NewWorkspaceRepository(db),
		ProjectRepo:   NewProjectRepository(db),
		TaskRepo:      NewTaskRepository(db),
		TimeEntryRepo: NewTimeEntryRepository(db),
	}
}

type sqlTransactor struct {
	db      *sql.DB
	reports ReportRepository
}

func (t *sqlTransactor) withTx(ctx context.Context, fn func(*Repositories) error) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	repos := newSQLRepositories(tx)
	repos.ReportRepo = t.reports

	if err := fn(repos); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
