package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"pagewatch/internal/browser"
	"pagewatch/internal/config"
	"pagewatch/internal/monitor"
	"pagewatch/internal/notifier"
	"pagewatch/internal/runtime/supervisor"
	"pagewatch/internal/scheduler"
	logx "pagewatch/pkg/logx"
	"pagewatch/pkg/systemd"
)

// Options are the process-level inputs that do not come from the config file.
type Options struct {
	ConfigPath string
	// EnvFile is loaded into the environment before the config is parsed.
	// EnvFileRequired makes a missing file fatal.
	EnvFile         string
	EnvFileRequired bool
	// DryRun delivers alerts to the log instead of the chat.
	DryRun bool
	// LogOutput defaults to stdout.
	LogOutput io.Writer
	// Fetcher replaces the headless browser (tests).
	Fetcher monitor.Fetcher
}

// App owns the process-scoped components: the chat session, the browser
// fetcher, the monitor and the scheduler.
type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	sd   *systemd.Notifier

	fetcher monitor.Fetcher
	notif   monitor.Notifier
	mon     *monitor.Monitor
	sched   *scheduler.Scheduler
}

// New loads the configuration and builds every component. The chat login
// happens here, so a bad token fails New.
func New(ctx context.Context, opts Options) (*App, error) {
	if err := config.LoadEnvFile(opts.EnvFile, opts.EnvFileRequired); err != nil {
		return nil, err
	}

	cfgm := config.NewManager(opts.ConfigPath)
	cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error { return validateConfig(cfg) })
	cfg, err := cfgm.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var (
		logSvc *logx.Service
		root   logx.Logger
	)
	if opts.LogOutput != nil {
		logSvc, root = logx.NewTo(mapLogConfig(cfg), opts.LogOutput)
	} else {
		logSvc, root = logx.New(mapLogConfig(cfg))
	}
	log := root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root.With(logx.String("comp", "config")))

	fetcher := opts.Fetcher
	if fetcher == nil {
		bcfg, err := mapBrowserConfig(cfg)
		if err != nil {
			return nil, err
		}
		fetcher = browser.New(bcfg, root.With(logx.String("comp", "browser")))
	}

	notif, err := newNotifier(cfg, opts.DryRun, root.With(logx.String("comp", "notifier")))
	if err != nil {
		return nil, err
	}

	settings, err := mapMonitorSettings(cfg)
	if err != nil {
		return nil, err
	}
	mon := monitor.New(settings, fetcher, notif, root.With(logx.String("comp", "monitor")))

	sched, err := scheduler.New(mapSchedulerConfig(cfg), func(ctx context.Context) {
		mon.RunCycle(ctx)
	}, root.With(logx.String("comp", "scheduler")))
	if err != nil {
		return nil, err
	}

	log.Info("configured",
		logx.String("url", settings.URL),
		logx.String("attr", settings.Attribute),
		logx.String("expected", settings.Expected),
		logx.String("config", cfgm.Path()),
		logx.String("notifier", notifierName(notif)),
		logx.Bool("dry_run", opts.DryRun),
	)

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		sd:      systemd.New(root.With(logx.String("comp", "systemd"))),
		fetcher: fetcher,
		notif:   notif,
		mon:     mon,
		sched:   sched,
	}, nil
}

func newNotifier(cfg *config.Config, dryRun bool, log logx.Logger) (monitor.Notifier, error) {
	if dryRun {
		log.Info("dry run: alerts go to the log only")
		return notifier.NewLogOnly(log), nil
	}
	if strings.TrimSpace(cfg.Chat.Token) == "" {
		log.Warn("no bot token configured: alerts go to the log only")
		return notifier.NewLogOnly(log), nil
	}
	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	tg, err := notifier.NewTelegram(ncfg, log)
	if err != nil {
		return nil, err
	}
	return tg, nil
}

// notifierName describes the alert sink for logs.
func notifierName(n monitor.Notifier) string {
	if tg, ok := n.(*notifier.Telegram); ok {
		return "telegram:@" + tg.Identity()
	}
	return "log"
}

// Monitor exposes the check pipeline (used by the one-shot check command).
func (a *App) Monitor() *monitor.Monitor { return a.mon }

// CheckOnce runs a single check cycle outside the scheduler.
func (a *App) CheckOnce(ctx context.Context) monitor.Result {
	return a.mon.RunCycle(ctx)
}

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

// Start starts the scheduler (first check runs immediately), the config
// watcher and the systemd watchdog. It does not block.
func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return nil
	}
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.sched.Start(a.sup.Context())

	sub := a.cfgm.Subscribe(4)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		a.sd.RunWatchdog(c, func() bool {
			return a.sched.Healthy(stuckAfter(a.mon.Settings()))
		})
	})

	a.sd.Ready()
	a.sd.Status("watching " + a.mon.Settings().URL)
	a.log.Info("app started")
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// coalesce bursts
		drain:
			for {
				select {
				case newer, ok := <-sub:
					if !ok {
						return
					}
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			a.apply(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

// apply pushes a validated config to the live components.
func (a *App) apply(oldCfg, newCfg *config.Config) {
	sections, attrs, restart := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if len(restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect",
			logx.String("sections", strings.Join(restart, ",")))
	}

	a.logs.Apply(mapLogConfig(newCfg))

	if s, err := mapMonitorSettings(newCfg); err != nil {
		a.log.Warn("invalid target config; keeping previous", logx.Err(err))
	} else {
		a.mon.Apply(s)
		a.sd.Status("watching " + s.URL)
	}

	if err := a.sched.Apply(mapSchedulerConfig(newCfg)); err != nil {
		a.log.Warn("invalid schedule config; keeping previous", logx.Err(err))
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// Stop stops the scheduler (waiting for a running check) and every supervised
// goroutine, bounded by ctx.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	start := time.Now()
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.Stopping()

	a.sup.Cancel()
	if err := a.sched.Stop(ctx); err != nil {
		a.log.Warn("scheduler stop", logx.Err(err))
	}
	err := a.sup.Wait(ctx)
	if err != nil {
		a.log.Warn("supervisor stop", logx.Err(err))
	}
	cycles, alerts := a.mon.Counts()
	runs, skipped := a.sched.Stats()
	a.log.Info("stopped",
		logx.Duration("took", time.Since(start)),
		logx.Int64("cycles", int64(cycles)),
		logx.Int64("alerts", int64(alerts)),
		logx.Int64("scheduled_runs", int64(runs)),
		logx.Int64("skipped_runs", int64(skipped)),
	)
	return err
}
