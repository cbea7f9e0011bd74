package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/hperssn/focussync/internal/cache"
	"github.com/hperssn/focussync/internal/clock"
	"github.com/hperssn/focussync/internal/domain"
	"github.com/hperssn/focussync/internal/wire"
)

type Lister interface {
	ListActive(ctx context.Context) ([]wire.ActiveSession, error)
}

// Registry is where restored sessions are installed.
type Registry interface {
	Has(taskID string) bool
	Restore(snap domain.Snapshot, remaining int) error
}

// Report summarizes one reconciliation pass by task id.
type Report struct {
	Merged   []string
	Restored []string
	Expired  []string
	Dropped  []string
	// RemoteErr is set when the store could not be asked; the pass then
	// ran on the local cache alone.
	RemoteErr error
}

type Engine struct {
	cache    cache.Cache
	lister   Lister
	registry Registry
	clock    clock.Clock
	logger   *log.Logger
}

type Option func(*Engine)

func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(store cache.Cache, lister Lister, registry Registry, opts ...Option) *Engine {
	e := &Engine{
		cache:    store,
		lister:   lister,
		registry: registry,
		clock:    clock.System,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run merges the store's active sessions into the cache and restores
// every cached session that still has time left. Tasks already owned by
// a live machine are left alone, so Run may be repeated.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	var report Report

	sessions, err := e.lister.ListActive(ctx)
	if err != nil {
		report.RemoteErr = err
		e.logger.Printf("reconcile: list active sessions: %v", err)
	}

	for _, s := range sessions {
		if s.TaskID == "" || e.registry.Has(s.TaskID) {
			continue
		}
		local, ok := e.load(ctx, s.TaskID, &report)
		var prev *domain.Snapshot
		if ok {
			prev = &local
		}
		if err := e.cache.Put(ctx, s.TaskID, Merge(prev, s)); err != nil {
			e.logger.Printf("reconcile: store %s: %v", s.TaskID, err)
			continue
		}
		report.Merged = append(report.Merged, s.TaskID)
	}

	taskIDs, err := e.cache.Keys(ctx)
	if err != nil {
		return report, fmt.Errorf("list cached sessions: %w", err)
	}

	now := e.clock.Now()
	for _, taskID := range taskIDs {
		if e.registry.Has(taskID) {
			continue
		}
		snap, ok := e.load(ctx, taskID, &report)
		if !ok {
			continue
		}

		remaining := Canonical(snap, now)
		if remaining <= 0 {
			if err := e.cache.Delete(ctx, taskID); err != nil {
				e.logger.Printf("reconcile: drop expired %s: %v", taskID, err)
			}
			report.Expired = append(report.Expired, taskID)
			continue
		}

		if err := e.registry.Restore(snap, remaining); err != nil {
			e.logger.Printf("reconcile: restore %s: %v", taskID, err)
			continue
		}
		report.Restored = append(report.Restored, taskID)
	}

	return report, nil
}

func (e *Engine) load(ctx context.Context, taskID string, report *Report) (domain.Snapshot, bool) {
	snap, ok, err := e.cache.Get(ctx, taskID)
	switch {
	case errors.Is(err, cache.ErrMalformed):
		e.logger.Printf("reconcile: %v", err)
		report.Dropped = append(report.Dropped, taskID)
		return domain.Snapshot{}, false
	case err != nil:
		e.logger.Printf("reconcile: read %s: %v", taskID, err)
		return domain.Snapshot{}, false
	}
	return snap, ok
}
