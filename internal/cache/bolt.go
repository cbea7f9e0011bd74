package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hperssn/focussync/internal/domain"
	"go.etcd.io/bbolt"
)

const snapshotBucket = "snapshots"

// Bolt is a BoltDB-backed Cache.
type Bolt struct {
	db *bbolt.DB
}

// Open opens (or creates) the cache file at path.
func Open(path string) (*Bolt, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("cache path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	c := &Bolt{db: db}
	if err := c.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Bolt) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Bolt) Get(ctx context.Context, taskID string) (domain.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, false, err
	}
	if strings.TrimSpace(taskID) == "" {
		return domain.Snapshot{}, false, domain.ErrEmptyTaskID
	}

	var payload []byte
	err := c.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(snapshotBucket))
		if bucket == nil {
			return fmt.Errorf("snapshot bucket is missing")
		}
		if v := bucket.Get([]byte(Key(taskID))); v != nil {
			payload = bytes.Clone(v)
		}
		return nil
	})
	if err != nil {
		return domain.Snapshot{}, false, err
	}
	if payload == nil {
		return domain.Snapshot{}, false, nil
	}

	snap, err := decode(taskID, payload)
	if err != nil {
		if delErr := c.Delete(ctx, taskID); delErr != nil {
			return domain.Snapshot{}, false, fmt.Errorf("drop malformed entry %s: %w", taskID, delErr)
		}
		return domain.Snapshot{}, false, fmt.Errorf("%w %s: %v", ErrMalformed, Key(taskID), err)
	}
	return snap, true, nil
}

func (c *Bolt) Put(ctx context.Context, taskID string, snap domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snap.TaskID = taskID
	if err := snap.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	return c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(snapshotBucket))
		if bucket == nil {
			return fmt.Errorf("snapshot bucket is missing")
		}
		return bucket.Put([]byte(Key(taskID)), payload)
	})
}

func (c *Bolt) Delete(ctx context.Context, taskID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(snapshotBucket))
		if bucket == nil {
			return fmt.Errorf("snapshot bucket is missing")
		}
		return bucket.Delete([]byte(Key(taskID)))
	})
}

func (c *Bolt) DeleteIfSession(ctx context.Context, taskID, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(snapshotBucket))
		if bucket == nil {
			return fmt.Errorf("snapshot bucket is missing")
		}
		key := []byte(Key(taskID))
		payload := bucket.Get(key)
		if payload == nil {
			return nil
		}
		var stored struct {
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(payload, &stored); err == nil && stored.SessionID != sessionID {
			return nil
		}
		return bucket.Delete(key)
	})
}

func (c *Bolt) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ids []string
	err := c.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(snapshotBucket))
		if bucket == nil {
			return fmt.Errorf("snapshot bucket is missing")
		}
		prefix := []byte(KeyPrefix)
		cur := bucket.Cursor()
		for k, _ := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cur.Next() {
			if id, ok := TaskID(string(k)); ok {
				ids = append(ids, id)
			}
		}
		return nil
	})
	return ids, err
}

func (c *Bolt) ensureBuckets() error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(snapshotBucket)); err != nil {
			return fmt.Errorf("create snapshot bucket: %w", err)
		}
		return nil
	})
}

func decode(taskID string, payload []byte) (domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return domain.Snapshot{}, err
	}
	snap.TaskID = taskID
	if err := snap.Validate(); err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}

var _ Cache = (*Bolt)(nil)
