// Package cache is the durable local mirror of session snapshots. It is
// written only by the machine that owns a task and read back by the
// reconciliation pass after a restart.
package cache

import (
	"context"
	"errors"
	"strings"

	"github.com/hperssn/focussync/internal/domain"
)

// KeyPrefix namespaces snapshot keys.
const KeyPrefix = "pomodoro:"

// ErrMalformed reports a stored value that could not be decoded. The
// entry has already been dropped when it is returned.
var ErrMalformed = errors.New("malformed cache entry")

type Cache interface {
	Get(ctx context.Context, taskID string) (domain.Snapshot, bool, error)
	Put(ctx context.Context, taskID string, snap domain.Snapshot) error
	Delete(ctx context.Context, taskID string) error
	// DeleteIfSession removes the entry only while it still belongs to
	// sessionID.
	DeleteIfSession(ctx context.Context, taskID, sessionID string) error
	Keys(ctx context.Context) ([]string, error)
}

func Key(taskID string) string {
	return KeyPrefix + taskID
}

// TaskID extracts the task id from a cache key.
func TaskID(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, KeyPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
