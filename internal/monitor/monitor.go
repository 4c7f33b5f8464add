package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"pagewatch/internal/marker"
	logx "pagewatch/pkg/logx"
)

const (
	DefaultCycleTimeout  = 2 * time.Minute
	DefaultNotifyTimeout = 15 * time.Second
)

// Fetcher returns the rendered HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Notifier delivers one alert message.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Settings are read at the start of every cycle and may be replaced between cycles.
type Settings struct {
	Target
	CycleTimeout  time.Duration
	NotifyTimeout time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.Attribute == "" {
		s.Attribute = marker.DefaultAttribute
	}
	if s.CycleTimeout <= 0 {
		s.CycleTimeout = DefaultCycleTimeout
	}
	if s.NotifyTimeout <= 0 {
		s.NotifyTimeout = DefaultNotifyTimeout
	}
	return s
}

// Result describes one completed cycle.
type Result struct {
	ID          string
	Target      Target
	Observation marker.Observation
	Decision    Decision
	// Err is the fetch or parse failure, if any.
	Err error
	// NotifyErr is the delivery failure, if any. It is logged and otherwise dropped.
	NotifyErr error
	Started   time.Time
	Elapsed   time.Duration
}

// Monitor runs check cycles: fetch, extract, decide, notify.
type Monitor struct {
	fetcher  Fetcher
	notifier Notifier
	log      logx.Logger

	settings atomic.Pointer[Settings]
	cycles   atomic.Uint64
	alerts   atomic.Uint64
}

func New(s Settings, f Fetcher, n Notifier, log logx.Logger) *Monitor {
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &Monitor{fetcher: f, notifier: n, log: log}
	m.Apply(s)
	return m
}

// Apply replaces the settings used by the next cycle. A running cycle keeps its snapshot.
func (m *Monitor) Apply(s Settings) {
	s = s.withDefaults()
	m.settings.Store(&s)
}

func (m *Monitor) Settings() Settings { return *m.settings.Load() }

// Counts reports the number of cycles run and alerts raised since start.
func (m *Monitor) Counts() (cycles, alerts uint64) {
	return m.cycles.Load(), m.alerts.Load()
}

// RunCycle performs one check. It never panics and never returns an error:
// every failure ends up in the Result and, for fetch failures, in an alert.
func (m *Monitor) RunCycle(ctx context.Context) Result {
	s := m.Settings()
	res := Result{
		ID:      uuid.NewString(),
		Target:  s.Target,
		Started: time.Now(),
	}
	log := m.log.With(logx.String("cycle", res.ID), logx.String("url", s.URL))
	log.Debug("check started")

	res.Observation, res.Err = m.observe(ctx, s, log)
	if err := ctx.Err(); err != nil {
		res.Decision = Decision{Kind: KindCanceled}
		if res.Err == nil {
			res.Err = err
		}
		res.Elapsed = time.Since(res.Started)
		log.Info("check canceled", logx.Err(res.Err), logx.Duration("elapsed", res.Elapsed))
		return res
	}
	res.Decision = Decide(s.Target, res.Observation, res.Err)
	m.cycles.Add(1)

	if !res.Decision.Alert() {
		log.Info("marker matches expected value",
			logx.String("attr", s.Attribute),
			logx.String("value", res.Observation.Value),
			logx.Duration("elapsed", time.Since(res.Started)),
		)
		res.Elapsed = time.Since(res.Started)
		return res
	}

	m.alerts.Add(1)
	log.Warn("alert raised",
		logx.String("kind", string(res.Decision.Kind)),
		logx.String("observed", res.Observation.String()),
		logx.String("message", res.Decision.Message),
	)

	res.NotifyErr = m.deliver(ctx, s, res.Decision.Message)
	if res.NotifyErr != nil {
		log.Error("notify failed", logx.Err(res.NotifyErr))
	}
	res.Elapsed = time.Since(res.Started)
	return res
}

func (m *Monitor) observe(ctx context.Context, s Settings, log logx.Logger) (obs marker.Observation, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic during check", logx.Any("panic", r))
			obs, err = marker.Observation{}, fmt.Errorf("panic during check: %v", r)
		}
	}()

	fctx, cancel := context.WithTimeout(ctx, s.CycleTimeout)
	defer cancel()

	doc, err := m.fetcher.Fetch(fctx, s.URL)
	if err != nil {
		if ctx.Err() == nil && errors.Is(fctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("check timed out after %s: %w", s.CycleTimeout, err)
		}
		return marker.Observation{}, err
	}
	return marker.Extract(doc, s.Attribute)
}

func (m *Monitor) deliver(ctx context.Context, s Settings, text string) (err error) {
	if m.notifier == nil {
		return errors.New("no notifier configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during notify: %v", r)
		}
	}()

	nctx, cancel := context.WithTimeout(ctx, s.NotifyTimeout)
	defer cancel()
	return m.notifier.Notify(nctx, text)
}
