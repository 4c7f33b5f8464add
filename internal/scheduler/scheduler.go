package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"pagewatch/internal/runtime/supervisor"
	logx "pagewatch/pkg/logx"
)

const DefaultInterval = 60 * time.Second

// Job is one unit of scheduled work. It must honour ctx cancellation.
type Job func(ctx context.Context)

// Config controls the scheduler.
type Config struct {
	// Interval is the fixed delay between the end of one run and the start of the next.
	Interval time.Duration
	// Schedule overrides Interval when set (see ParseSchedule).
	Schedule string
	// Timezone is the IANA zone used for cron schedules ("" = Local).
	Timezone string
}

// Scheduler runs a Job immediately on Start and then repeatedly until Stop.
type Scheduler struct {
	job    Job
	log    logx.Logger
	parser cron.Parser

	mu       sync.Mutex
	cfg      Config
	spec     ParsedSpec
	interval time.Duration
	sup      *supervisor.Supervisor
	c        *cron.Cron
	reset    chan struct{}

	busy     atomic.Bool
	progress atomic.Int64
	lastEnd  atomic.Int64
	runs     atomic.Uint64
	skipped  atomic.Uint64
}

func New(cfg Config, job Job, log logx.Logger) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("scheduler: job required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Scheduler{
		job: job,
		log: log,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		reset:  make(chan struct{}, 1),
	}
	spec, err := s.resolve(cfg)
	if err != nil {
		return nil, err
	}
	s.cfg = cfg
	s.spec = spec
	s.interval = spec.Every
	return s, nil
}

// Validate reports whether cfg would be accepted by New.
func Validate(cfg Config) error {
	s := &Scheduler{parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)}
	_, err := s.resolve(cfg)
	return err
}

func (s *Scheduler) resolve(cfg Config) (ParsedSpec, error) {
	if strings.TrimSpace(cfg.Schedule) == "" {
		every := cfg.Interval
		if every <= 0 {
			every = DefaultInterval
		}
		return ParsedSpec{Kind: SpecInterval, Every: every, Source: "interval"}, nil
	}
	ps, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return ParsedSpec{}, err
	}
	if ps.Kind == SpecCron {
		if _, err := s.parser.Parse(ps.Cron); err != nil {
			return ParsedSpec{}, fmt.Errorf("invalid cron %q: %w", ps.Cron, err)
		}
	}
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return ParsedSpec{}, fmt.Errorf("invalid timezone %q: %w", tz, err)
		}
	}
	return ps, nil
}

// Start runs the job once immediately and arms the schedule. It returns at once.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil {
		return
	}
	s.sup = supervisor.New(ctx, supervisor.WithLogger(s.log))
	s.touch()

	switch s.spec.Kind {
	case SpecCron:
		loc := s.loadLocationLocked()
		s.c = cron.New(
			cron.WithParser(s.parser),
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger{log: s.log}),
			cron.WithChain(cron.Recover(cronLogger{log: s.log}), cron.SkipIfStillRunning(cronLogger{log: s.log})),
		)
		runCtx := s.sup.Context()
		if _, err := s.c.AddFunc(s.spec.Cron, func() { s.runOnce(runCtx, "cron") }); err != nil {
			// resolve already parsed the expression
			s.log.Error("cron register failed", logx.String("spec", s.spec.Cron), logx.Err(err))
		}
		s.sup.Go0("first-run", func(ctx context.Context) { s.runOnce(ctx, "startup") })
		s.c.Start()
		args := []logx.Field{logx.String("spec", s.spec.Cron), logx.String("tz", loc.String())}
		if next := s.previewNextRunsLocked(loc, 3); next != "" {
			args = append(args, logx.String("next", next))
		}
		s.log.Info("scheduler started", args...)
	default:
		s.sup.Go0("interval-loop", s.loop)
		s.log.Info("scheduler started", logx.Duration("interval", s.interval), logx.String("source", s.spec.Source))
	}
}

// Stop stops triggering and waits for the running job (if any) to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	start := time.Now()
	s.mu.Lock()
	sup, c := s.sup, s.c
	s.sup, s.c = nil, nil
	s.mu.Unlock()
	if sup == nil {
		return nil
	}

	sup.Cancel()
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	err := sup.Wait(ctx)
	s.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
	return err
}

// Apply updates the interval for the next wait. Switching between interval and
// cron mode, or changing the cron expression, needs a restart.
func (s *Scheduler) Apply(cfg Config) error {
	spec, err := s.resolve(cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if spec.Kind == SpecCron || s.spec.Kind == SpecCron {
		if spec != s.spec || strings.TrimSpace(cfg.Timezone) != strings.TrimSpace(s.cfg.Timezone) {
			s.log.Warn("schedule change requires restart",
				logx.String("current", s.describeLocked()),
				logx.String("requested", strings.TrimSpace(cfg.Schedule)),
			)
		}
		return nil
	}
	if spec.Every == s.interval {
		s.cfg = cfg
		return nil
	}

	s.log.Info("interval updated", logx.Duration("from", s.interval), logx.Duration("to", spec.Every))
	s.cfg = cfg
	s.spec = spec
	s.interval = spec.Every
	select {
	case s.reset <- struct{}{}:
	default:
	}
	return nil
}

// Interval returns the current fixed delay (zero in cron mode).
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spec.Kind == SpecCron {
		return 0
	}
	return s.interval
}

// LastProgress is the time the scheduler last started or finished a run (or was started).
func (s *Scheduler) LastProgress() time.Time {
	ns := s.progress.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Busy reports whether a run is in progress.
func (s *Scheduler) Busy() bool { return s.busy.Load() }

// Healthy reports false only when a run has been in progress longer than stuckAfter.
func (s *Scheduler) Healthy(stuckAfter time.Duration) bool {
	if !s.Busy() || stuckAfter <= 0 {
		return true
	}
	return time.Since(s.LastProgress()) <= stuckAfter
}

// Stats returns completed and skipped run counts.
func (s *Scheduler) Stats() (runs, skipped uint64) {
	return s.runs.Load(), s.skipped.Load()
}

func (s *Scheduler) loop(ctx context.Context) {
	s.runOnce(ctx, "startup")

	timer := time.NewTimer(s.Interval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.reset:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.remaining())
		case <-timer.C:
			s.runOnce(ctx, "interval")
			timer.Reset(s.Interval())
		}
	}
}

// remaining is the rest of the current delay measured from the last completed run.
func (s *Scheduler) remaining() time.Duration {
	end := s.lastEnd.Load()
	if end == 0 {
		return s.Interval()
	}
	d := s.Interval() - time.Since(time.Unix(0, end))
	if d < 0 {
		return 0
	}
	return d
}

func (s *Scheduler) runOnce(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	if !s.busy.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.log.Warn("previous run still active; trigger skipped", logx.String("trigger", trigger))
		return
	}
	s.touch()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job panicked", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
		s.runs.Add(1)
		s.lastEnd.Store(time.Now().UnixNano())
		s.touch()
		s.busy.Store(false)
	}()

	s.log.Debug("run started", logx.String("trigger", trigger))
	s.job(ctx)
}

func (s *Scheduler) touch() { s.progress.Store(time.Now().UnixNano()) }

func (s *Scheduler) describeLocked() string {
	if s.spec.Kind == SpecCron {
		return "cron " + s.spec.Cron
	}
	return "every " + s.interval.String()
}

func (s *Scheduler) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// previewNextRunsLocked returns a short list of upcoming run times, only when
// debug logging is on.
func (s *Scheduler) previewNextRunsLocked(loc *time.Location, n int) string {
	if !s.log.Enabled(logx.LevelDebug) || n <= 0 {
		return ""
	}
	sched, err := s.parser.Parse(s.spec.Cron)
	if err != nil {
		return ""
	}
	t := time.Now().In(loc)
	var b strings.Builder
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}
