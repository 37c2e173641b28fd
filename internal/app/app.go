// Package app wires configuration, logging, storage, the chat client, the
// monitors and the command surface into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"statuswatch/internal/commands"
	"statuswatch/internal/config"
	"statuswatch/internal/eventbus"
	"statuswatch/internal/monitor"
	"statuswatch/internal/observability/debug"
	rtsup "statuswatch/internal/runtime/supervisor"
	"statuswatch/internal/schedule"
	"statuswatch/internal/source"
	"statuswatch/internal/storage"
	"statuswatch/internal/transport"
	"statuswatch/internal/transport/telegram"
	"statuswatch/pkg/logx"
)

type StopReason string

const (
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
)

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	reg   *prometheus.Registry

	client   transport.Client
	monitors *monitor.Supervisor
	cmdm     *commands.Manager
	debug    *debug.Server
	notify   *notifier

	updates chan transport.Update
}

type Option func(*options)

type options struct {
	client transport.Client
}

// WithClient replaces the Telegram client, e.g. with a fake in tests.
func WithClient(c transport.Client) Option { return func(o *options) { o.client = c } }

func New(cfgPath string, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	client := o.client
	if client == nil {
		if strings.TrimSpace(cfg.Telegram.Token) == "" {
			return nil, fmt.Errorf("telegram.token is empty (or set %s)", config.TokenEnv)
		}
		ad, err := telegram.New(telegram.Config{
			Token:       cfg.Telegram.Token,
			PollTimeout: cfg.Telegram.PollTimeoutOrDefault(),
		}, logx.NewConsole("INFO").With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, err
		}
		client = ad
	}

	// Bootstrap with chat logging off, set the target, then apply the final
	// config so Apply does not warn about a missing target.
	logCfg := loggingConfig(cfg)
	chatEnabled := logCfg.Chat.Enabled
	logCfg.Chat.Enabled = false
	logSvc, root := logx.New(logCfg, client)
	logSvc.SetChatTarget(cfg.Telegram.LogChatID(), cfg.Logging.Chat.ThreadID)
	logCfg.Chat.Enabled = chatEnabled
	logSvc.Apply(logCfg)
	log := root.With(logx.String("comp", "app"))

	busyTimeout, _ := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, root.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitor.NewMetrics(reg)
	bus := eventbus.New()

	sched, err := schedule.ParseSchedule(cfg.Monitor.ScheduleOrDefault())
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	fetchTimeout, notifyTimeout := cfg.Monitor.Timeouts()
	sink := monitor.NewChatSink(client, monitor.ChatSinkConfig{
		RatePerSec: cfg.Monitor.SendRate(),
		RetryMax:   2,
	})
	monitors := monitor.NewSupervisor(store, sink, monitor.SupervisorConfig{
		Poller: monitor.PollerConfig{
			Schedule:      sched,
			FetchTimeout:  fetchTimeout,
			NotifyTimeout: notifyTimeout,
		},
		RefreshOnOpen: true,
	},
		monitor.WithLogger(root.With(logx.String("comp", "monitor"))),
		monitor.WithMetrics(metrics),
		monitor.WithBus(bus),
	)

	descs, unknown, err := source.Descriptors(cfg.Monitor, source.NewClient(cfg.Monitor.UserAgentOrDefault()))
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	if len(unknown) > 0 {
		log.Warn("unknown service keys in monitor.only/disable", logx.String("keys", strings.Join(unknown, ",")))
	}
	for _, d := range descs {
		if _, err := monitors.Register(d); err != nil {
			_ = store.Close()
			_ = logSvc.Close()
			return nil, err
		}
	}

	cmdm := commands.NewManager(client, store, monitors,
		commands.WithLogger(root.With(logx.String("comp", "commands"))),
		commands.WithOwners(cfg.Telegram.OwnerUserIDs),
	)

	var dbg *debug.Server
	if cfg.Debug != nil && cfg.Debug.Enabled {
		dbg = debug.New(debug.FromConfig(cfg.Debug), reg, func() error { return nil }, root.With(logx.String("comp", "debug")))
	}

	return &App{
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		reg:      reg,
		client:   client,
		monitors: monitors,
		cmdm:     cmdm,
		debug:    dbg,
		notify:   newNotifier(root.With(logx.String("comp", "systemd"))),
		updates:  make(chan transport.Update, 256),
	}, nil
}

func loggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    cfg.Logging.Chat.Enabled,
			ThreadID:   cfg.Logging.Chat.ThreadID,
			MinLevel:   cfg.Logging.Chat.MinLevel,
			RatePerSec: cfg.Logging.Chat.RatePerSec,
		},
	}
}

// Logger returns the root application logger.
func (a *App) Logger() logx.Logger { return a.log }

// Done is closed when the app supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	// Hot reload is transactional: validate before commit and publish.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return config.Validate(cfg)
	})

	if err := a.client.Start(a.sup.Context(), a.updates); err != nil {
		return fmt.Errorf("start chat client: %w", err)
	}
	if a.debug != nil {
		if err := a.debug.Start(a.sup.Context()); err != nil {
			// optional surface; keep running without it
			a.log.Error("debug server failed to start", logx.Err(err))
			a.debug = nil
		}
	}

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})
	a.startReporter()
	a.startReload()
	a.sup.Go("config.watch", func(c context.Context) error {
		err := a.cfgm.Watch(c)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := a.monitors.Start(a.sup.Context(), a.client.Ready()); err != nil {
		return err
	}

	a.notify.ready()
	a.sup.Go0("systemd.watchdog", a.notify.watchdog)
	a.log.Info("app started", logx.Int("services", len(a.monitors.Status())))
	return nil
}

// Run starts the app and blocks until ctx ends or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		_ = a.Stop(context.Background(), StopFatalError)
		return err
	}
	<-a.Done()
	reason := StopSignal
	if ctx.Err() == nil {
		reason = StopFatalError
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = a.Stop(stopCtx, reason)
	if reason == StopFatalError {
		return a.Err()
	}
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.closeResources()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.notify.stopping()

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	a.step(ctx, "monitors", 5*time.Second, a.monitors.Stop)
	a.step(ctx, "debug", time.Second, func(c context.Context) error {
		if a.debug == nil {
			return nil
		}
		return a.debug.Stop(c)
	})
	a.step(ctx, "client", 2*time.Second, a.client.Stop)
	a.step(ctx, "supervisor", 2*time.Second, a.sup.Wait)
	a.step(ctx, "storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	_ = a.logs.Close()
	return nil
}

func (a *App) closeResources() {
	_ = a.store.Close()
	_ = a.logs.Close()
}

// step runs one shutdown step with an upper bound so one component cannot
// stall the whole stop. It never extends the caller's deadline.
func (a *App) step(ctx context.Context, name string, limit time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		limit = min(limit, time.Until(dl))
	}
	if limit <= 0 {
		a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Duration("elapsed", time.Since(start)),
		)
	}
}
