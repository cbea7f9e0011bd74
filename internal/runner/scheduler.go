package runner

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler runs one periodic callback per key. Registering a key again
// replaces its callback. The returned cancel func is idempotent and only
// removes its own registration.
type Scheduler interface {
	Every(key string, fn func()) (cancel func())
}

type registration struct {
	id uint64
	fn func()
}

type callbacks struct {
	mu     sync.Mutex
	nextID uint64
	byKey  map[string]registration
}

func (c *callbacks) add(key string, fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.byKey == nil {
		c.byKey = make(map[string]registration)
	}
	c.nextID++
	id := c.nextID
	c.byKey[key] = registration{id: id, fn: fn}

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if reg, ok := c.byKey[key]; ok && reg.id == id {
			delete(c.byKey, key)
		}
	}
}

// due returns the callbacks in key order so one pass is deterministic.
func (c *callbacks) due() []func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.byKey))
	for k := range c.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fns := make([]func(), 0, len(keys))
	for _, k := range keys {
		fns = append(fns, c.byKey[k].fn)
	}
	return fns
}

func (c *callbacks) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byKey)
}

// TickerScheduler drives every registered callback from a single
// goroutine, one pass per interval.
type TickerScheduler struct {
	callbacks

	interval time.Duration
	startup  sync.Once
	shutdown sync.Once
	started  atomic.Bool
	stop     chan struct{}
	done     chan struct{}
}

func NewTickerScheduler(interval time.Duration) *TickerScheduler {
	if interval <= 0 {
		interval = time.Second
	}
	return &TickerScheduler{
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *TickerScheduler) Every(key string, fn func()) func() {
	s.startup.Do(func() {
		s.started.Store(true)
		go s.loop()
	})
	return s.add(key, fn)
}

func (s *TickerScheduler) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, fn := range s.due() {
				fn()
			}
		case <-s.stop:
			return
		}
	}
}

// Stop ends the loop and drops every registered callback.
func (s *TickerScheduler) Stop() {
	s.shutdown.Do(func() {
		s.startup.Do(func() {})
		s.mu.Lock()
		s.byKey = nil
		s.mu.Unlock()
		close(s.stop)
	})
	if s.started.Load() {
		<-s.done
	}
}

// ManualScheduler fires callbacks only when Tick is called.
type ManualScheduler struct {
	callbacks
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (s *ManualScheduler) Every(key string, fn func()) func() {
	return s.add(key, fn)
}

// Tick runs one pass over the registered callbacks.
func (s *ManualScheduler) Tick() {
	for _, fn := range s.due() {
		fn()
	}
}

// Active reports how many callbacks are registered.
func (s *ManualScheduler) Active() int {
	return s.len()
}
