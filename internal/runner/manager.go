package runner

import (
	"errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hperssn/focussync/internal/cache"
	"github.com/hperssn/focussync/internal/clock"
	"github.com/hperssn/focussync/internal/domain"
)

var (
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionActive   = errors.New("session already active")
)

// Registry owns the live machines of one process, keyed by task id. It
// is created by whatever owns the session lifecycle and torn down with
// Close.
type Registry struct {
	mu       sync.Mutex
	machines map[string]*Machine

	deps            *deps
	defaultDuration int
	inflight        sync.WaitGroup
	ownedScheduler  *TickerScheduler
}

type Option func(*Registry)

func WithClock(c clock.Clock) Option {
	return func(r *Registry) { r.deps.clock = c }
}

// WithScheduler replaces the default one-second TickerScheduler.
func WithScheduler(s Scheduler) Option {
	return func(r *Registry) { r.deps.sched = s }
}

// WithDispatch replaces how remote calls are run. The default runs each
// call on its own goroutine and Close waits for them.
func WithDispatch(dispatch func(func())) Option {
	return func(r *Registry) { r.deps.dispatch = dispatch }
}

func WithLogger(l *log.Logger) Option {
	return func(r *Registry) { r.deps.logger = l }
}

// WithDefaultDuration sets the duration used when a start names neither
// a valid duration nor a finish time.
func WithDefaultDuration(seconds int) Option {
	return func(r *Registry) {
		if domain.ValidDuration(seconds) {
			r.defaultDuration = seconds
		}
	}
}

func NewRegistry(store cache.Cache, remote Remote, opts ...Option) *Registry {
	r := &Registry{
		machines:        make(map[string]*Machine),
		defaultDuration: domain.DefaultDurationSeconds,
		deps: &deps{
			clock:  clock.System,
			cache:  store,
			remote: remote,
			logger: log.Default(),
		},
	}
	r.deps.dispatch = r.goDispatch
	r.deps.onComplete = r.remove

	for _, opt := range opts {
		opt(r)
	}
	if r.deps.sched == nil {
		r.ownedScheduler = NewTickerScheduler(time.Second)
		r.deps.sched = r.ownedScheduler
	}
	return r
}

func (r *Registry) goDispatch(fn func()) {
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		fn()
	}()
}

// Start begins a session for taskID, creating its machine on first use.
func (r *Registry) Start(taskID string, in domain.StartInput) error {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return domain.ErrEmptyTaskID
	}

	r.mu.Lock()
	m, exists := r.machines[taskID]
	if !exists {
		m = newMachine(r.deps, taskID, r.defaultDuration)
		r.machines[taskID] = m
	}
	r.mu.Unlock()

	return m.Start(in)
}

// StartOrResume resumes a paused session and starts one otherwise.
func (r *Registry) StartOrResume(taskID string, in domain.StartInput) error {
	if m, ok := r.lookup(taskID); ok && m.State() == StatePaused {
		return m.Resume()
	}
	return r.Start(taskID, in)
}

func (r *Registry) Pause(taskID string) error {
	m, ok := r.lookup(taskID)
	if !ok {
		return ErrSessionNotFound
	}
	return m.Pause()
}

func (r *Registry) Resume(taskID string) error {
	m, ok := r.lookup(taskID)
	if !ok {
		return ErrSessionNotFound
	}
	return m.Resume()
}

func (r *Registry) Complete(taskID string) error {
	m, ok := r.lookup(taskID)
	if !ok {
		return ErrSessionNotFound
	}
	return m.Complete()
}

func (r *Registry) Reset(taskID string) error {
	m, ok := r.lookup(taskID)
	if !ok {
		return ErrSessionNotFound
	}
	return m.Reset()
}

// TaskCanceled stops the countdown of a task whose status was set to
// canceled. Tasks without a timer are ignored.
func (r *Registry) TaskCanceled(taskID string) error {
	m, ok := r.lookup(taskID)
	if !ok {
		return nil
	}
	return m.Pause()
}

// Restore installs a machine for a reconciled snapshot.
func (r *Registry) Restore(snap domain.Snapshot, remaining int) error {
	if err := snap.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.machines[snap.TaskID]; exists {
		return ErrSessionExists
	}
	r.machines[snap.TaskID] = newRestoredMachine(r.deps, snap, remaining, r.defaultDuration)
	return nil
}

// Has reports whether a live machine owns taskID.
func (r *Registry) Has(taskID string) bool {
	_, ok := r.lookup(taskID)
	return ok
}

func (r *Registry) Get(taskID string) (View, bool) {
	m, ok := r.lookup(taskID)
	if !ok {
		return View{}, false
	}
	return m.View(), true
}

// List returns the views of all live machines ordered by task id.
func (r *Registry) List() []View {
	r.mu.Lock()
	machines := make([]*Machine, 0, len(r.machines))
	for _, m := range r.machines {
		machines = append(machines, m)
	}
	r.mu.Unlock()

	views := make([]View, 0, len(machines))
	for _, m := range machines {
		views = append(views, m.View())
	}
	sort.Slice(views, func(i, j int) bool { return views[i].TaskID < views[j].TaskID })
	return views
}

// Close stops every countdown, checkpoints live sessions and waits for
// in-flight remote calls.
func (r *Registry) Close() {
	r.mu.Lock()
	machines := make([]*Machine, 0, len(r.machines))
	for _, m := range r.machines {
		machines = append(machines, m)
	}
	r.mu.Unlock()

	for _, m := range machines {
		m.stop()
	}
	if r.ownedScheduler != nil {
		r.ownedScheduler.Stop()
	}
	r.inflight.Wait()
}

func (r *Registry) lookup(taskID string) (*Machine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.machines[strings.TrimSpace(taskID)]
	return m, ok
}

func (r *Registry) remove(m *Machine, lineage uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.machines[m.taskID]; ok && current == m && m.finished(lineage) {
		delete(r.machines, m.taskID)
	}
}
