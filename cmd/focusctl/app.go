package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/hperssn/focussync/internal/cache"
	"github.com/hperssn/focussync/internal/config"
	"github.com/hperssn/focussync/internal/reconcile"
	"github.com/hperssn/focussync/internal/remote"
	"github.com/hperssn/focussync/internal/runner"
)

// app is one page load: everything a command needs, reconciled with
// the session store before the command runs.
type app struct {
	cfg      *config.Client
	logger   *log.Logger
	cache    *cache.Bolt
	client   *remote.Client
	registry *runner.Registry
	engine   *reconcile.Engine
	report   reconcile.Report
}

func openApp(ctx context.Context, opts *globalOptions, stderr io.Writer) (*app, error) {
	cfg, err := config.LoadClient(opts.configPath)
	if err != nil {
		return nil, err
	}

	logger := log.New(io.Discard, "", 0)
	if opts.verbose {
		logger = log.New(stderr, "focusctl: ", log.Ltime)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.CachePath), 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	store, err := cache.Open(cfg.CachePath)
	if err != nil {
		return nil, err
	}

	client := remote.NewClient(cfg.ServerURL, cfg.Account, cfg.RequestTimeout)
	registry := runner.NewRegistry(store, client,
		runner.WithLogger(logger),
		runner.WithDefaultDuration(cfg.DefaultDurationSeconds()),
	)
	engine := reconcile.NewEngine(store, client, registry, reconcile.WithLogger(logger))

	a := &app{
		cfg:      cfg,
		logger:   logger,
		cache:    store,
		client:   client,
		registry: registry,
		engine:   engine,
	}
	if err := a.reconcile(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) reconcile(ctx context.Context) error {
	report, err := a.engine.Run(ctx)
	if err != nil {
		return err
	}
	a.report = report
	return nil
}

// offline reports whether the last reconciliation ran without the store.
func (a *app) offline() bool {
	return a.report.RemoteErr != nil
}

// pomodoros returns the completed-session counts, or nil when the store
// is out of reach.
func (a *app) pomodoros(ctx context.Context) map[string]int {
	if a.offline() {
		return nil
	}
	counts, err := a.client.Pomodoros(ctx)
	if err != nil {
		a.logger.Printf("pomodoro counts: %v", err)
		return nil
	}
	return counts
}

// close checkpoints every timer and waits for pending store calls.
func (a *app) close() {
	a.registry.Close()
	if err := a.cache.Close(); err != nil {
		a.logger.Printf("close cache: %v", err)
	}
}

func (a *app) pause(taskID string) error    { return a.registry.Pause(taskID) }
func (a *app) resume(taskID string) error   { return a.registry.Resume(taskID) }
func (a *app) complete(taskID string) error { return a.registry.Complete(taskID) }
func (a *app) reset(taskID string) error    { return a.registry.Reset(taskID) }

func (a *app) cancelTask(taskID string) error {
	return a.registry.TaskCanceled(taskID)
}
