package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hperssn/focussync/internal/cache"
	"github.com/hperssn/focussync/internal/clock"
	"github.com/hperssn/focussync/internal/domain"
	"github.com/hperssn/focussync/internal/wire"
)

var (
	testStart  = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	errOffline = errors.New("offline")
)

// fakeRemote mimics the session store closely enough for the machine:
// it hands out ids, echoes targets and remembers paused counters.
type fakeRemote struct {
	mu     sync.Mutex
	clock  *clock.Fake
	calls  []string
	nextID int
	paused map[string]int

	startErr    error
	pauseErr    error
	resumeErr   error
	completeErr error
}

func newFakeRemote(c *clock.Fake) *fakeRemote {
	return &fakeRemote{clock: c, paused: make(map[string]int)}
}

func (f *fakeRemote) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) Start(_ context.Context, req wire.StartRequest) (wire.StartResponse, error) {
	f.record("start:" + req.TaskID)
	if f.startErr != nil {
		return wire.StartResponse{}, f.startErr
	}

	f.mu.Lock()
	f.nextID++
	id := fmt.Sprintf("s-%d", f.nextID)
	f.mu.Unlock()

	now := f.clock.Now()
	target := now.Add(time.Duration(req.DurationSeconds) * time.Second)
	if req.TargetEndAt != "" {
		end, err := clock.ParseTimestamp(req.TargetEndAt)
		if err != nil {
			return wire.StartResponse{}, err
		}
		target = end
	}
	return wire.StartResponse{OK: true, SessionID: id, TargetAt: clock.Format(target)}, nil
}

func (f *fakeRemote) Pause(_ context.Context, sessionID string, remaining int) error {
	f.record(fmt.Sprintf("pause:%s:%d", sessionID, remaining))
	if f.pauseErr != nil {
		return f.pauseErr
	}
	f.mu.Lock()
	f.paused[sessionID] = remaining
	f.mu.Unlock()
	return nil
}

func (f *fakeRemote) Resume(_ context.Context, sessionID string) (wire.ResumeResponse, error) {
	f.record("resume:" + sessionID)
	if f.resumeErr != nil {
		return wire.ResumeResponse{}, f.resumeErr
	}
	f.mu.Lock()
	remaining := f.paused[sessionID]
	f.mu.Unlock()
	target := f.clock.Now().Add(time.Duration(remaining) * time.Second)
	return wire.ResumeResponse{OK: true, TargetAt: clock.Format(target)}, nil
}

func (f *fakeRemote) Complete(_ context.Context, sessionID string) error {
	f.record("complete:" + sessionID)
	return f.completeErr
}

// queue holds dispatched remote calls until run is called.
type queue struct {
	mu  sync.Mutex
	fns []func()
}

func (q *queue) dispatch(fn func()) {
	q.mu.Lock()
	q.fns = append(q.fns, fn)
	q.mu.Unlock()
}

func (q *queue) run() {
	for {
		q.mu.Lock()
		if len(q.fns) == 0 {
			q.mu.Unlock()
			return
		}
		fn := q.fns[0]
		q.fns = q.fns[1:]
		q.mu.Unlock()
		fn()
	}
}

type harness struct {
	registry *Registry
	remote   *fakeRemote
	sched    *ManualScheduler
	clock    *clock.Fake
	cache    *cache.Bolt
}

func inline(fn func()) { fn() }

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{
		sched: NewManualScheduler(),
		clock: clock.NewFake(testStart),
		cache: store,
	}
	h.remote = newFakeRemote(h.clock)

	base := []Option{
		WithClock(h.clock),
		WithScheduler(h.sched),
		WithDispatch(inline),
		WithLogger(log.New(io.Discard, "", 0)),
	}
	h.registry = NewRegistry(store, h.remote, append(base, opts...)...)
	return h
}

// advance moves the clock one second per tick and fires the scheduler.
func (h *harness) advance(ticks int) {
	for i := 0; i < ticks; i++ {
		h.clock.Advance(time.Second)
		h.sched.Tick()
	}
}

func (h *harness) cached(t *testing.T, taskID string) (domain.Snapshot, bool) {
	t.Helper()
	snap, ok, err := h.cache.Get(context.Background(), taskID)
	if err != nil {
		t.Fatalf("cache get %s: %v", taskID, err)
	}
	return snap, ok
}

func (h *harness) view(t *testing.T, taskID string) View {
	t.Helper()
	v, ok := h.registry.Get(taskID)
	if !ok {
		t.Fatalf("expected a live session for %s", taskID)
	}
	return v
}
