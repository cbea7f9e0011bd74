package storage

import (
	"context"
	"fmt"
)

type Repository interface {
	Create(ctx context.Context, record *SessionRecord) error

	Get(ctx context.Context, id string) (*SessionRecord, error)

	// FindRunning returns the running session of accountID for taskID,
	// or ErrNotFound.
	FindRunning(ctx context.Context, accountID, taskID string) (*SessionRecord, error)

	Update(ctx context.Context, record *SessionRecord) error

	ListRunning(ctx context.Context, accountID string) ([]SessionRecord, error)

	// CountCompleted returns how many sessions of accountID for taskID
	// ran to completion.
	CountCompleted(ctx context.Context, accountID, taskID string) (int, error)

	// CompletedByTask returns the completed-session count of every task
	// of accountID that has at least one.
	CompletedByTask(ctx context.Context, accountID string) (map[string]int, error)

	Close() error
}

// Open returns the repository for driver ("sqlite3" or "postgres").
func Open(driver, dsn string) (Repository, error) {
	switch driver {
	case "sqlite3", "sqlite":
		repo, err := NewSQLiteRepository(dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return repo, nil
	case "postgres", "postgresql":
		repo, err := NewPostgresRepository(dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
