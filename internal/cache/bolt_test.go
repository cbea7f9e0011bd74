package cache

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/hperssn/focussync/internal/domain"
	"go.etcd.io/bbolt"
)

func openTestCache(t *testing.T) (*Bolt, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, path
}

func TestBoltPutGet(t *testing.T) {
	c, _ := openTestCache(t)
	ctx := context.Background()
	target := time.Date(2026, 3, 1, 10, 25, 0, 0, time.UTC)

	snap := domain.Snapshot{SessionID: "s-1", TargetAt: target, DurationSeconds: 1500, RemainingSeconds: 1500}
	if err := c.Put(ctx, "t1", snap); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := c.Get(ctx, "t1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.TaskID != "t1" || got.SessionID != "s-1" || !got.TargetAt.Equal(target) || got.RemainingSeconds != 1500 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}

	if _, ok, err := c.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("get missing: ok=%v err=%v", ok, err)
	}
}

func TestBoltDurableAcrossReopen(t *testing.T) {
	c, path := openTestCache(t)
	ctx := context.Background()

	if err := c.Put(ctx, "t1", domain.Snapshot{DurationSeconds: 60, RemainingSeconds: 42, IsPaused: true}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, ok, err := reopened.Get(ctx, "t1")
	if err != nil || !ok {
		t.Fatalf("get after reopen: ok=%v err=%v", ok, err)
	}
	if !got.IsPaused || got.RemainingSeconds != 42 {
		t.Fatalf("unexpected snapshot after reopen: %+v", got)
	}
}

func TestBoltKeysAndDelete(t *testing.T) {
	c, _ := openTestCache(t)
	ctx := context.Background()

	for _, id := range []string{"b", "a", "c"} {
		if err := c.Put(ctx, id, domain.Snapshot{DurationSeconds: 10, RemainingSeconds: 10}); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}
	if err := c.Delete(ctx, "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	keys, err := c.Keys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	slices.Sort(keys)
	if !slices.Equal(keys, []string{"a", "c"}) {
		t.Fatalf("keys = %v want [a c]", keys)
	}
}

func TestBoltMalformedEntryDropped(t *testing.T) {
	c, _ := openTestCache(t)
	ctx := context.Background()

	err := c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(snapshotBucket)).Put([]byte(Key("bad")), []byte("{not json"))
	})
	if err != nil {
		t.Fatalf("seed malformed: %v", err)
	}

	if _, ok, err := c.Get(ctx, "bad"); !errors.Is(err, ErrMalformed) || ok {
		t.Fatalf("get malformed: ok=%v err=%v want ErrMalformed", ok, err)
	}
	keys, _ := c.Keys(ctx)
	if len(keys) != 0 {
		t.Fatalf("malformed entry should be dropped, keys = %v", keys)
	}
}

func TestBoltDeleteIfSession(t *testing.T) {
	c, _ := openTestCache(t)
	ctx := context.Background()

	if err := c.Put(ctx, "t1", domain.Snapshot{SessionID: "new", DurationSeconds: 10, RemainingSeconds: 10}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := c.DeleteIfSession(ctx, "t1", "old"); err != nil {
		t.Fatalf("delete if session: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "t1"); !ok {
		t.Fatalf("entry for a newer session should survive")
	}
	if err := c.DeleteIfSession(ctx, "t1", "new"); err != nil {
		t.Fatalf("delete if session: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "t1"); ok {
		t.Fatalf("entry should be deleted")
	}
}

func TestTaskID(t *testing.T) {
	if id, ok := TaskID("pomodoro:42"); !ok || id != "42" {
		t.Fatalf("TaskID = %q, %v", id, ok)
	}
	if _, ok := TaskID("other:42"); ok {
		t.Fatalf("foreign key should not parse")
	}
}

func TestBoltDeleteIfSessionKeepsPendingEntry(t *testing.T) {
	c, _ := openTestCache(t)
	ctx := context.Background()

	if err := c.Put(ctx, "t1", domain.Snapshot{DurationSeconds: 10, RemainingSeconds: 10}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := c.DeleteIfSession(ctx, "t1", "finished"); err != nil {
		t.Fatalf("delete if session: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "t1"); !ok {
		t.Fatalf("entry of a session not yet confirmed by the store should survive")
	}
}
