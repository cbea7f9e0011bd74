package storage

import (
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	sqlStore
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// each connection to :memory: is its own database
	if strings.Contains(dbPath, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	repo := &SQLiteRepository{sqlStore{db: db}}
	if err := repo.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

func (r *SQLiteRepository) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS focus_sessions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		target_end_at DATETIME NOT NULL,
		is_paused BOOLEAN NOT NULL DEFAULT 0,
		remaining_seconds INTEGER NOT NULL DEFAULT 0,
		paused_at DATETIME,
		ended_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_focus_account_status ON focus_sessions(account_id, status);
	CREATE INDEX IF NOT EXISTS idx_focus_task ON focus_sessions(account_id, task_id);
	`

	_, err := r.db.Exec(schema)
	return err
}
