package app

import (
	"time"

	"pagewatch/internal/browser"
	"pagewatch/internal/config"
	"pagewatch/internal/monitor"
	"pagewatch/internal/notifier"
	"pagewatch/internal/scheduler"
	logx "pagewatch/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}
}

func mapBrowserConfig(cfg *config.Config) (browser.Config, error) {
	b := cfg.Browser
	nav, err := config.ParseDurationOrDefault("browser.navigation_timeout", b.NavigationTimeout, browser.DefaultNavigationTimeout)
	if err != nil {
		return browser.Config{}, err
	}
	// "0s" is a valid settle delay
	settle, err := config.ParseDurationField("browser.settle_delay", b.SettleDelay)
	if err != nil {
		return browser.Config{}, err
	}
	idle, err := config.ParseDurationOrDefault("browser.idle_window", b.IdleWindow, browser.DefaultIdleWindow)
	if err != nil {
		return browser.Config{}, err
	}
	return browser.Config{
		ExecPath:          b.ExecPath,
		Headless:          b.HeadlessEnabled(),
		Args:              append([]string(nil), b.Args...),
		NavigationTimeout: nav,
		IdleConnections:   b.IdleConnections,
		IdleWindow:        idle,
		SettleDelay:       settle,
	}, nil
}

func mapMonitorSettings(cfg *config.Config) (monitor.Settings, error) {
	t := cfg.Target
	cycle, err := config.ParseDurationOrDefault("target.cycle_timeout", t.CycleTimeout, monitor.DefaultCycleTimeout)
	if err != nil {
		return monitor.Settings{}, err
	}
	notify, err := config.ParseDurationOrDefault("target.notify_timeout", t.NotifyTimeout, monitor.DefaultNotifyTimeout)
	if err != nil {
		return monitor.Settings{}, err
	}
	return monitor.Settings{
		Target: monitor.Target{
			URL:       t.URL,
			Attribute: t.Attribute,
			Expected:  t.Expected,
		},
		CycleTimeout:  cycle,
		NotifyTimeout: notify,
	}, nil
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Interval: time.Duration(cfg.Schedule.IntervalMS) * time.Millisecond,
		Schedule: cfg.Schedule.Spec,
		Timezone: cfg.Schedule.Timezone,
	}
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	c := cfg.Chat
	timeout, err := config.ParseDurationOrDefault("chat.timeout", c.Timeout, notifier.DefaultTimeout)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Token:       c.Token,
		Destination: c.Destination,
		APIURL:      c.APIURL,
		RatePerSec:  c.RatePerSec,
		Timeout:     timeout,
	}, nil
}

// validateConfig is installed as the config manager's validator: it rejects
// configs that would fail when mapped onto components.
func validateConfig(cfg *config.Config) error {
	if _, err := mapBrowserConfig(cfg); err != nil {
		return err
	}
	if _, err := mapMonitorSettings(cfg); err != nil {
		return err
	}
	if _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	return scheduler.Validate(mapSchedulerConfig(cfg))
}

// stuckAfter is how long a single cycle may run before the watchdog treats
// the process as hung.
func stuckAfter(s monitor.Settings) time.Duration {
	return s.CycleTimeout + s.NotifyTimeout + 30*time.Second
}
