package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cadence/internal/config"
	"cadence/internal/eventbus"
	"cadence/internal/observability/debugsrv"
	"cadence/internal/runtime/supervisor"
	"cadence/internal/storage"
	"cadence/internal/task/autosave"
	"cadence/internal/task/engine"
	"cadence/internal/task/scheduler"
	logx "cadence/pkg/logx"
	"cadence/pkg/systemdmanager"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Options tweak process behavior that does not belong in the config file.
type Options struct {
	// RunAllOnStart dispatches every job once, paced by scheduler.run_all_delay,
	// before the tick driver starts. It is OR-ed with scheduler.run_all_on_start.
	RunAllOnStart bool
	// Clock overrides the scheduler clock.
	Clock scheduler.Clock
}

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor
	// driver is separate so that Stop can halt ticking before the final save.
	driver *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	units *systemdmanager.Manager

	registry *scheduler.Registry
	engine   *engine.Service
	sched    *scheduler.Scheduler
	autosave *autosave.Service
	debug    *debugsrv.Service

	opts Options

	mu       sync.Mutex
	applied  *config.Config
	prepared bool
}

func New(cfgPath string, opts Options) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	bus := eventbus.New()

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log)
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	units := systemdmanager.New()
	registry := scheduler.NewRegistry()
	if err := registerBuiltins(registry, log, units); err != nil {
		return nil, err
	}

	a := &App{
		cfgm:     cfgm,
		log:      log.With(logx.String("comp", "app")),
		logs:     logSvc,
		bus:      bus,
		store:    store,
		units:    units,
		registry: registry,
		opts:     opts,
		applied:  cfg,
	}
	if err := a.validate(cfg); err != nil {
		a.closeStore()
		return nil, err
	}

	schedCfg, _ := mapSchedulerConfig(cfg)
	a.engine = engine.New(mapEngineConfig(cfg), log, bus)
	schedOpts := []scheduler.Option{
		scheduler.WithConfig(schedCfg),
		scheduler.WithExecutor(a.engine),
		scheduler.WithRegistry(registry),
		scheduler.WithBus(bus),
		scheduler.WithLogger(log),
	}
	if opts.Clock != nil {
		schedOpts = append(schedOpts, scheduler.WithClock(opts.Clock))
	}
	a.sched = scheduler.New(schedOpts...)
	a.autosave = autosave.New(mapAutosaveConfig(cfg), a.sched, store, log, bus)
	debugCfg, _ := mapDebugConfig(cfg)
	a.debug = debugsrv.New(debugCfg, log, func() any { return a.Status() })
	return a, nil
}

func (a *App) Scheduler() *scheduler.Scheduler { return a.sched }
func (a *App) Engine() *engine.Service         { return a.engine }
func (a *App) Autosave() *autosave.Service     { return a.autosave }
func (a *App) Registry() *scheduler.Registry   { return a.registry }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// validate is the semantic check shared by startup and hot reload.
func (a *App) validate(cfg *config.Config) error { return validateConfig(a.registry, cfg) }

// Validate loads the file at cfgPath and runs every startup check without
// opening storage or starting anything.
func Validate(cfgPath string) (*config.Config, error) {
	cfg, err := config.NewConfigManager(cfgPath).Parse()
	if err != nil {
		return nil, err
	}
	reg := scheduler.NewRegistry()
	if err := registerBuiltins(reg, logx.Nop(), systemdmanager.New()); err != nil {
		return nil, err
	}
	if err := validateConfig(reg, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(reg *scheduler.Registry, cfg *config.Config) error {
	var errs []error
	if !logx.ValidLevel(cfg.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}
	if !logx.ValidFormat(cfg.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q (valid: pretty, json)", cfg.Logging.Format))
	}
	if _, err := mapSchedulerConfig(cfg); err != nil {
		errs = append(errs, fmt.Errorf("scheduler: %w", err))
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		errs = append(errs, err)
	}
	if cfg.Snapshot.Enabled {
		if _, err := autosave.ParseTrigger(cfg.Snapshot.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("snapshot.schedule: %w", err))
		}
	}
	if _, err := mapDebugConfig(cfg); err != nil {
		errs = append(errs, err)
	}
	if err := validateJobs(reg, cfg.Jobs); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.NewSupervisor(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error { return a.validate(cfg) })

	a.engine.Start(a.sup.Context())

	if err := a.Prepare(ctx); err != nil {
		return err
	}

	cfg := a.currentConfig()
	if a.opts.RunAllOnStart || cfg.Scheduler.RunAllOnStart {
		delay, _ := config.ParseDurationField("scheduler.run_all_delay", cfg.Scheduler.RunAllDelay)
		if err := a.sched.RunAll(ctx, delay); err != nil {
			return fmt.Errorf("run all: %w", err)
		}
	}

	a.driver = supervisor.NewSupervisor(a.sup.Context(), supervisor.WithLogger(a.log))
	a.driver.GoRestart("scheduler.driver", a.sched.RunForever, supervisor.WithRestartBackoff(time.Second, 30*time.Second))

	if err := a.autosave.Start(a.sup.Context()); err != nil {
		return fmt.Errorf("autosave: %w", err)
	}

	// Debug-level event trail; components subscribe themselves for real work.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Trace("event", logx.String("type", e.Type), logx.Any("data", e.Data))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							next = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(c, next)
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.debug.Start(a.sup.Context())
	a.sup.Go0("systemd.watchdog", func(c context.Context) { watchdog(c, a.log) })

	sdNotify(a.log, daemon.SdNotifyReady)
	a.log.Info("app started", logx.Int("jobs", a.sched.Len()))
	return nil
}

// Prepare restores the saved snapshot (when enabled) and binds the declared
// jobs that were not restored. Start calls it; on its own it lets callers
// inspect the resulting schedule without running anything.
func (a *App) Prepare(ctx context.Context) error {
	a.mu.Lock()
	if a.prepared {
		a.mu.Unlock()
		return nil
	}
	a.prepared = true
	cfg := a.applied
	a.mu.Unlock()

	if cfg.Snapshot.Restore && a.store != nil {
		if _, err := a.sched.LoadFrom(ctx, a.store, cfg.Snapshot.KeepExisting); err != nil {
			return fmt.Errorf("restore schedule: %w", err)
		}
	}
	bound, err := bindDeclared(a.sched, cfg.Jobs, a.log)
	if err != nil {
		return fmt.Errorf("bind jobs: %w", err)
	}
	a.log.Info("jobs ready", logx.Int("declared", len(cfg.Jobs)), logx.Int("bound", bound), logx.Int("total", a.sched.Len()))
	return nil
}

func (a *App) currentConfig() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.applied
}

// applyConfig live-applies a validated reload.
func (a *App) applyConfig(ctx context.Context, next *config.Config) {
	a.mu.Lock()
	prev := a.applied
	a.applied = next
	a.mu.Unlock()

	sections, attrs, jobsChanged := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	for _, s := range sections {
		if s == "storage" {
			a.log.Warn("storage config changed; restart required for changes to take effect")
		}
	}

	a.logs.Apply(mapLogConfig(next))
	if sc, err := mapSchedulerConfig(next); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	} else {
		a.sched.Apply(sc)
	}
	a.engine.Apply(mapEngineConfig(next))
	if err := a.autosave.Apply(ctx, mapAutosaveConfig(next)); err != nil {
		a.log.Warn("autosave reconfigure failed", logx.Err(err))
	}
	if dc, err := mapDebugConfig(next); err != nil {
		a.log.Warn("invalid debug config; keeping previous", logx.Err(err))
	} else {
		a.debug.Reconfigure(a.sup.Context(), dc)
	}
	if len(jobsChanged) > 0 {
		if err := reconcileJobs(a.sched, next.Jobs, jobsChanged, a.log); err != nil {
			a.log.Warn("some declared jobs could not be bound", logx.Err(err))
		}
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.closeStore()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	sdNotify(a.log, daemon.SdNotifyStopping)

	// Helper: run a shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if max > 0 {
			var cancel context.CancelFunc
			// WithTimeout never extends the caller's deadline.
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

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
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Err(stepCtx.Err()))
		}
	}

	// Halt ticking first so the final snapshot is not raced by a dispatch.
	step("driver", 3*time.Second, func(c context.Context) error {
		if a.driver == nil {
			return nil
		}
		return a.driver.Stop(c)
	})
	step("autosave", 3*time.Second, a.autosave.Stop)
	step("engine", 5*time.Second, a.engine.Stop)
	step("debug", 2*time.Second, func(c context.Context) error {
		a.debug.Stop(c)
		return nil
	})

	a.sup.Cancel()
	step("supervisor", 2*time.Second, a.sup.Wait)
	step("storage", time.Second, func(context.Context) error { return a.closeStore() })
	step("systemd", time.Second, func(context.Context) error { return a.units.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

func (a *App) closeStore() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}
