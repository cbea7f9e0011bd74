package storage

import (
	"database/sql"

	_ "github.com/lib/pq"
)

type PostgresRepository struct {
	sqlStore
}

func NewPostgresRepository(connStr string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	repo := &PostgresRepository{sqlStore{db: db, numbered: true}}
	if err := repo.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

func (r *PostgresRepository) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS focus_sessions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		target_end_at TIMESTAMPTZ NOT NULL,
		is_paused BOOLEAN NOT NULL DEFAULT FALSE,
		remaining_seconds INTEGER NOT NULL DEFAULT 0,
		paused_at TIMESTAMPTZ,
		ended_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_focus_account_status ON focus_sessions(account_id, status);
	CREATE INDEX IF NOT EXISTS idx_focus_task ON focus_sessions(account_id, task_id);
	`

	_, err := r.db.Exec(schema)
	return err
}
