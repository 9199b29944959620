// Package app wires configuration, logging, storage, transport, and the
// watch service together and owns the process lifecycle.
package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"subwatch/internal/config"
	"subwatch/internal/eventbus"
	"subwatch/internal/fetch"
	"subwatch/internal/render"
	"subwatch/internal/storage"
	"subwatch/internal/transport/telegram"
	"subwatch/internal/watch"
	"subwatch/pkg/logx"
)

type App struct {
	cfgMgr  *config.Manager
	logSvc  *logx.Service
	log     logx.Logger
	bus     eventbus.Bus
	store   storage.Store
	watcher *watch.Service
	cron    *cron.Cron

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	ticking atomic.Bool // overlap guard: one run in flight at a time
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(loggingConfig(cfg.Logging))
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("storage is required (baselines): set storage.driver")
	}

	pollTimeout, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}

	fetchTimeout, err := config.ParseDurationField("fetch.timeout", cfg.Fetch.Timeout)
	if err != nil {
		return nil, err
	}
	fetcher, err := fetch.NewClient(fetch.Config{
		BaseURL:   cfg.Fetch.BaseURL,
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   fetchTimeout,
		Attempts:  cfg.Fetch.Attempts,
	}, log.With(logx.String("comp", "fetch")))
	if err != nil {
		return nil, err
	}

	renderTimeout, err := config.ParseDurationField("render.timeout", cfg.Render.Timeout)
	if err != nil {
		return nil, err
	}
	renderer, err := render.New(render.Config{
		Endpoint: cfg.Render.Endpoint,
		Timeout:  renderTimeout,
	}, log.With(logx.String("comp", "render")))
	if err != nil {
		return nil, err
	}

	sendTimeout, err := config.ParseDurationField("dispatch.send_timeout", cfg.Dispatch.SendTimeout)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	watcher := watch.New(watch.Config{
		PostPageURL: cfg.Render.PostPageURL,
		LivePageURL: cfg.Render.LivePageURL,
		Selector:    cfg.Render.Selector,
		RatePerSec:  cfg.Dispatch.RatePerSec,
		SendTimeout: sendTimeout,
	}, store, fetcher, renderer, adapter, bus, log.With(logx.String("comp", "watch")))
	watcher.Apply(subscription(cfg.Subscriptions))

	return &App{
		cfgMgr:  mgr,
		logSvc:  logSvc,
		log:     log,
		bus:     bus,
		store:   store,
		watcher: watcher,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	rctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	cfg := a.cfgMgr.Get()

	// Config hot reload: re-apply logging and subscription lists.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgMgr.Watch(rctx)
	}()
	updates := a.cfgMgr.Subscribe(1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgMgr.Unsubscribe(updates)
		for {
			select {
			case <-rctx.Done():
				return
			case next, ok := <-updates:
				if !ok {
					return
				}
				a.logSvc.Apply(loggingConfig(next.Logging))
				a.watcher.Apply(subscription(next.Subscriptions))
				a.log.Info("applied reloaded config")
			}
		}
	}()

	if cfg.Scheduler.Enabled {
		loc := time.Local
		if tz := cfg.Scheduler.Timezone; tz != "" {
			l, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("scheduler.timezone: %w", err)
			}
			loc = l
		}
		a.cron = cron.New(cron.WithLocation(loc))
		if _, err := a.cron.AddFunc(cronSpec(cfg.Scheduler.Spec), func() {
			a.tick(rctx, false)
		}); err != nil {
			return fmt.Errorf("scheduler.spec: %w", err)
		}
		a.cron.Start()
	}

	// First run after start only establishes baselines.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.tick(rctx, true)
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("subwatch started", logx.Bool("scheduler", cfg.Scheduler.Enabled))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if a.cron != nil {
		cronCtx := a.cron.Stop()
		select {
		case <-cronCtx.Done():
		case <-ctx.Done():
		}
	}
	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logSvc.Close()
	return nil
}

// tick runs one subscription pass, skipping the tick if the previous run is
// still in flight (no overlapping runs per account).
func (a *App) tick(ctx context.Context, bootstrap bool) {
	if !a.ticking.CompareAndSwap(false, true) {
		a.log.Warn("previous run still in flight; skipping tick")
		return
	}
	defer a.ticking.Store(false)
	a.watcher.Run(ctx, bootstrap)
}

// cronSpec accepts either a Go duration ("5m") or a cron expression.
func cronSpec(raw string) string {
	if _, err := time.ParseDuration(raw); err == nil {
		return "@every " + raw
	}
	return raw
}

func loggingConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
	}
}

func subscription(c config.SubscriptionConfig) watch.Subscription {
	sub := watch.Subscription{Enabled: c.Enabled}
	for _, g := range c.Groups {
		sub.Groups = append(sub.Groups, watch.Group{
			Chats: g.Chats,
			Posts: g.Posts,
			Lives: g.Lives,
		})
	}
	return sub
}
