package main

import (
	"fmt"

	"github.com/c0deZ3R0/productsync/scheduler"
	"github.com/c0deZ3R0/productsync/storage/sqlite"
	"github.com/c0deZ3R0/productsync/synckit"
	"github.com/c0deZ3R0/productsync/transport/httptransport"
)

// components are the long-lived handles a command works with.
type components struct {
	store   *sqlite.Store
	client  *httptransport.Client
	engine  *synckit.Engine
	metrics *synckit.CountingMetricsCollector
}

func (a *app) open() (*components, error) {
	storeCfg := sqlite.DefaultConfig(a.cfg.Store.Path)
	storeCfg.EnableWAL = a.cfg.Store.EnableWAL
	storeCfg.Logger = a.logger.With("component", "sqlite-store")
	store, err := sqlite.New(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	client := httptransport.NewClient(a.cfg.Remote.BaseURL,
		httptransport.WithTimeout(a.cfg.Remote.Timeout),
		httptransport.WithImageBaseURL(a.cfg.Remote.ImageBaseURL),
		httptransport.WithMaxResponseSize(a.cfg.Remote.MaxResponseSize),
		httptransport.WithLogger(a.logger.With("component", "remote")),
	)

	metrics := synckit.NewCountingMetricsCollector()
	engine, err := synckit.NewEngine(store, client,
		synckit.WithLogger(a.logger),
		synckit.WithMetricsCollector(metrics),
	)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &components{store: store, client: client, engine: engine, metrics: metrics}, nil
}

func (c *components) Close() error {
	c.engine.Close()
	return c.store.Close()
}

func (a *app) schedulerConfig() scheduler.Config {
	s := a.cfg.Scheduler
	return scheduler.Config{
		Interval:       s.Interval,
		InitialBackoff: s.InitialBackoff,
		Multiplier:     s.Multiplier,
		MaxBackoff:     s.MaxBackoff,
		MaxAttempts:    s.MaxAttempts,
		Retention:      s.Retention,
		Constraints:    synckit.Constraints{RequireNetwork: s.RequireNetwork},
	}
}

// openStatusStore returns nil when status persistence is disabled.
func (a *app) openStatusStore() (*scheduler.StatusStore, error) {
	if a.cfg.Scheduler.StatusPath == "" {
		return nil, nil
	}
	return scheduler.OpenStatusStore(a.cfg.Scheduler.StatusPath)
}

func (a *app) newScheduler(c *components, status *scheduler.StatusStore) *scheduler.Scheduler {
	opts := []scheduler.Option{
		scheduler.WithConfig(a.schedulerConfig()),
		scheduler.WithLogger(a.logger.With("component", "scheduler")),
		scheduler.WithNetworkChecker(scheduler.RemoteProbe{Pinger: c.client}),
	}
	if status != nil {
		opts = append(opts, scheduler.WithStatusStore(status))
	}
	return scheduler.New(c.engine, opts...)
}
