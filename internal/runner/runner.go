package runner

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/hperssn/focussync/internal/cache"
	"github.com/hperssn/focussync/internal/clock"
	"github.com/hperssn/focussync/internal/domain"
	"github.com/hperssn/focussync/internal/wire"
)

// checkpointEvery is the number of ticks between cache checkpoints.
const checkpointEvery = 5

type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Remote is the part of the session store a machine talks to.
type Remote interface {
	Start(ctx context.Context, req wire.StartRequest) (wire.StartResponse, error)
	Pause(ctx context.Context, sessionID string, remaining int) error
	Resume(ctx context.Context, sessionID string) (wire.ResumeResponse, error)
	Complete(ctx context.Context, sessionID string) error
}

// View is what the presentation layer renders for one task.
type View struct {
	TaskID           string
	SessionID        string
	State            State
	DurationSeconds  int
	RemainingSeconds int
	TargetAt         time.Time
	Text             string
	Progress         float64
}

type deps struct {
	clock      clock.Clock
	cache      cache.Cache
	remote     Remote
	sched      Scheduler
	dispatch   func(func())
	logger     *log.Logger
	onComplete func(m *Machine, lineage uint64)
}

// Machine is the state machine of one task's focus session. Local
// transitions are applied and persisted under the lock; remote calls run
// afterwards on the dispatcher and may only refine the state they were
// issued for.
type Machine struct {
	mu sync.Mutex
	*deps

	taskID          string
	defaultDuration int

	state State
	snap  domain.Snapshot
	ticks int

	// lineage changes when a new session begins or the task is reset;
	// epoch changes on every transition.
	lineage uint64
	epoch   uint64

	// startPending holds the lineage whose start call has not answered
	// yet. pausedUnsent marks a pause the store never heard about.
	startPending uint64
	pausedUnsent bool

	cancelTick func()
}

func newMachine(d *deps, taskID string, defaultDuration int) *Machine {
	return &Machine{
		deps:            d,
		taskID:          taskID,
		defaultDuration: defaultDuration,
		snap: domain.Snapshot{
			TaskID:           taskID,
			DurationSeconds:  defaultDuration,
			RemainingSeconds: defaultDuration,
		},
	}
}

// newRestoredMachine seeds a machine from a reconciled snapshot.
func newRestoredMachine(d *deps, snap domain.Snapshot, remaining, defaultDuration int) *Machine {
	m := newMachine(d, snap.TaskID, defaultDuration)
	m.lineage = 1
	m.epoch = 1

	m.snap = snap
	m.snap.RemainingSeconds = remaining
	if m.snap.DurationSeconds < 1 {
		m.snap.DurationSeconds = remaining
	}

	if snap.IsPaused {
		m.state = StatePaused
		m.snap.TargetAt = time.Time{}
	} else {
		m.state = StateRunning
		if m.snap.TargetAt.IsZero() {
			m.snap.TargetAt = m.clock.Now().Add(time.Duration(remaining) * time.Second)
		}
		m.startTickLocked()
	}
	m.persistLocked()
	return m
}

func (m *Machine) TaskID() string { return m.taskID }

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	return View{
		TaskID:           m.taskID,
		SessionID:        m.snap.SessionID,
		State:            m.state,
		DurationSeconds:  m.snap.DurationSeconds,
		RemainingSeconds: m.snap.RemainingSeconds,
		TargetAt:         m.snap.TargetAt,
		Text:             domain.FormatRemaining(m.snap.RemainingSeconds),
		Progress:         domain.Progress(m.snap.DurationSeconds, m.snap.RemainingSeconds),
	}
}

// Start begins a new session from Idle. It returns ErrSessionActive when
// a session is already running or paused.
func (m *Machine) Start(in domain.StartInput) error {
	m.mu.Lock()
	if m.state == StateRunning || m.state == StatePaused {
		m.mu.Unlock()
		return ErrSessionActive
	}

	plan := domain.PlanStart(in, m.defaultDuration, m.clock.Now())
	m.lineage++
	m.epoch++
	lineage, epoch := m.lineage, m.epoch

	m.state = StateRunning
	m.ticks = 0
	m.startPending = lineage
	m.pausedUnsent = false
	m.snap = domain.Snapshot{
		TaskID:           m.taskID,
		TargetAt:         plan.TargetAt,
		DurationSeconds:  plan.DurationSeconds,
		RemainingSeconds: plan.RemainingSeconds,
	}
	m.startTickLocked()
	m.persistLocked()

	req := wire.StartRequest{TaskID: m.taskID}
	if plan.TargetEndAt != "" {
		req.TargetEndAt = plan.TargetEndAt
	} else {
		req.DurationSeconds = plan.DurationSeconds
	}
	m.mu.Unlock()

	m.dispatch(func() {
		resp, err := m.remote.Start(context.Background(), req)
		m.applyStart(lineage, epoch, resp, err)
	})
	return nil
}

func (m *Machine) applyStart(lineage, epoch uint64, resp wire.StartResponse, err error) {
	m.mu.Lock()
	if m.startPending == lineage {
		m.startPending = 0
	}
	if m.lineage != lineage {
		m.mu.Unlock()
		if err == nil {
			m.logger.Printf("start %s: discarding stale session %s", m.taskID, resp.SessionID)
		}
		return
	}
	if err != nil {
		completed := m.state == StateCompleted
		m.mu.Unlock()
		m.logger.Printf("start %s: keeping local session: %v", m.taskID, err)
		if completed {
			m.dropCompleted(lineage)
		}
		return
	}

	m.snap.SessionID = resp.SessionID
	sid := resp.SessionID
	var follow func()
	switch m.state {
	case StateRunning:
		switch {
		case m.epoch == epoch:
			if target, err := clock.ParseTimestamp(resp.TargetAt); err == nil {
				m.adoptTargetLocked(target)
			}
		case m.pausedUnsent:
			// Paused and resumed before the store knew the session: replay
			// both so its target matches ours.
			remaining := clock.SecondsUntil(m.snap.TargetAt, m.clock.Now())
			current := m.epoch
			follow = func() {
				m.sendPause(sid, remaining)
				resp, err := m.remote.Resume(context.Background(), sid)
				m.applyResume(sid, current, resp, err)
			}
		}
		m.pausedUnsent = false
		m.persistLocked()
	case StatePaused:
		// The pause happened before the store knew the session.
		m.pausedUnsent = false
		m.persistLocked()
		remaining := m.snap.RemainingSeconds
		follow = func() { m.sendPause(sid, remaining) }
	case StateCompleted:
		m.persistLocked()
		follow = func() {
			m.sendComplete(sid)
			m.finishComplete(lineage)
		}
	}
	m.mu.Unlock()

	if follow != nil {
		follow()
	}
}

// Pause freezes a running session. It is a no-op in any other state.
func (m *Machine) Pause() error {
	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return nil
	}

	m.stopTickLocked()
	m.state = StatePaused
	m.epoch++
	m.snap.IsPaused = true
	m.snap.TargetAt = time.Time{}
	m.persistLocked()

	sid, remaining := m.snap.SessionID, m.snap.RemainingSeconds
	if sid == "" {
		m.pausedUnsent = true
	}
	m.mu.Unlock()

	if sid != "" {
		m.dispatch(func() { m.sendPause(sid, remaining) })
	}
	return nil
}

func (m *Machine) sendPause(sid string, remaining int) {
	if err := m.remote.Pause(context.Background(), sid, remaining); err != nil {
		m.logger.Printf("pause %s: %v", m.taskID, err)
	}
}

// Resume restarts a paused session. It is a no-op in any other state.
func (m *Machine) Resume() error {
	m.mu.Lock()
	if m.state != StatePaused {
		m.mu.Unlock()
		return nil
	}

	m.state = StateRunning
	m.epoch++
	epoch := m.epoch
	m.ticks = 0
	m.snap.IsPaused = false
	m.snap.TargetAt = m.clock.Now().Add(time.Duration(m.snap.RemainingSeconds) * time.Second)
	m.startTickLocked()
	m.persistLocked()

	sid := m.snap.SessionID
	m.mu.Unlock()

	if sid != "" {
		m.dispatch(func() {
			resp, err := m.remote.Resume(context.Background(), sid)
			m.applyResume(sid, epoch, resp, err)
		})
	}
	return nil
}

func (m *Machine) applyResume(sid string, epoch uint64, resp wire.ResumeResponse, err error) {
	if err != nil {
		m.logger.Printf("resume %s: keeping local target: %v", m.taskID, err)
		return
	}
	target, err := clock.ParseTimestamp(resp.TargetAt)
	if err != nil {
		m.logger.Printf("resume %s: ignoring target %q", m.taskID, resp.TargetAt)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snap.SessionID != sid || m.state != StateRunning || m.epoch != epoch {
		m.logger.Printf("resume %s: discarding stale response for %s", m.taskID, sid)
		return
	}
	m.adoptTargetLocked(target)
	m.persistLocked()
}

// Complete ends a running or paused session.
func (m *Machine) Complete() error {
	m.mu.Lock()
	after := m.completeLocked()
	m.mu.Unlock()

	after()
	return nil
}

// completeLocked applies the transition and returns the work that has to
// happen once the lock is released. The cache keeps a zero-remaining
// tombstone, and the machine stays registered, until the store has been
// told; reconciliation treats the tombstone as expired.
func (m *Machine) completeLocked() func() {
	if m.state != StateRunning && m.state != StatePaused {
		return func() {}
	}

	m.stopTickLocked()
	m.state = StateCompleted
	m.epoch++
	m.pausedUnsent = false
	m.snap.RemainingSeconds = 0
	m.snap.TargetAt = time.Time{}
	m.snap.IsPaused = false

	lineage := m.lineage
	sid := m.snap.SessionID
	switch {
	case sid != "":
		m.persistLocked()
		return func() {
			m.dispatch(func() {
				m.sendComplete(sid)
				m.finishComplete(lineage)
			})
		}
	case m.startPending == lineage:
		// applyStart sends the complete once the id is known.
		m.persistLocked()
		return func() {}
	default:
		return func() { m.dropCompleted(lineage) }
	}
}

func (m *Machine) sendComplete(sid string) {
	if err := m.remote.Complete(context.Background(), sid); err != nil {
		m.logger.Printf("complete %s: %v", m.taskID, err)
		return
	}
	if err := m.cache.DeleteIfSession(context.Background(), m.taskID, sid); err != nil {
		m.logger.Printf("complete %s: drop cache entry: %v", m.taskID, err)
	}
}

// dropCompleted forgets a session the store never learned about.
func (m *Machine) dropCompleted(lineage uint64) {
	m.mu.Lock()
	if m.state != StateCompleted || m.lineage != lineage {
		m.mu.Unlock()
		return
	}
	if err := m.cache.Delete(context.Background(), m.taskID); err != nil {
		m.logger.Printf("complete %s: drop cache entry: %v", m.taskID, err)
	}
	m.mu.Unlock()
	m.finishComplete(lineage)
}

func (m *Machine) finishComplete(lineage uint64) {
	if m.onComplete != nil {
		m.onComplete(m, lineage)
	}
}

// finished reports whether the session of lineage ended and nothing new
// began since.
func (m *Machine) finished(lineage uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateCompleted && m.lineage == lineage
}

// Reset abandons the session locally and returns to Idle. The session
// store is not told.
func (m *Machine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateIdle {
		return nil
	}

	m.stopTickLocked()
	m.state = StateIdle
	m.lineage++
	m.epoch++
	m.ticks = 0
	m.pausedUnsent = false
	m.snap = domain.Snapshot{
		TaskID:           m.taskID,
		DurationSeconds:  m.snap.DurationSeconds,
		RemainingSeconds: m.snap.DurationSeconds,
	}
	if err := m.cache.Delete(context.Background(), m.taskID); err != nil {
		m.logger.Printf("reset %s: drop cache entry: %v", m.taskID, err)
	}
	return nil
}

func (m *Machine) tick() {
	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return
	}

	now := m.clock.Now()
	m.ticks++
	m.snap.RemainingSeconds--

	// Ticks lost while the process was suspended are recovered from the
	// anchored target; a one second lag is normal scheduling jitter.
	if !m.snap.TargetAt.IsZero() {
		if derived := clock.SecondsUntil(m.snap.TargetAt, now); derived < m.snap.RemainingSeconds-1 {
			m.snap.RemainingSeconds = derived
		}
	}

	if m.snap.RemainingSeconds <= 0 {
		after := m.completeLocked()
		m.mu.Unlock()
		after()
		return
	}

	if m.ticks%checkpointEvery == 0 {
		m.snap.TargetAt = now.Add(time.Duration(m.snap.RemainingSeconds) * time.Second)
		m.persistLocked()
	}
	m.mu.Unlock()
}

// stop cancels the tick and writes a final checkpoint. Used when the
// owning registry shuts down; the session itself keeps its state.
func (m *Machine) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopTickLocked()
	if m.state == StateRunning || m.state == StatePaused {
		m.persistLocked()
	}
}

func (m *Machine) adoptTargetLocked(target time.Time) {
	m.snap.TargetAt = target
	m.snap.RemainingSeconds = clock.SecondsUntil(target, m.clock.Now())
}

func (m *Machine) startTickLocked() {
	m.stopTickLocked()
	m.cancelTick = m.sched.Every(m.taskID, m.tick)
}

func (m *Machine) stopTickLocked() {
	if m.cancelTick != nil {
		m.cancelTick()
		m.cancelTick = nil
	}
}

func (m *Machine) persistLocked() {
	if err := m.cache.Put(context.Background(), m.taskID, m.snap); err != nil {
		m.logger.Printf("persist %s: %v", m.taskID, err)
	}
}
