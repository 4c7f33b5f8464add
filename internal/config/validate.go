package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	logx "pagewatch/pkg/logx"
)

// Validate checks values that do not depend on other packages. Schedule
// expressions are checked by the caller's validator.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	raw := strings.TrimSpace(cfg.Target.URL)
	if raw == "" {
		return errors.New("target.url required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("target.url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "file") || (u.Scheme != "file" && u.Host == "") {
		return fmt.Errorf("target.url: %q is not an http(s) URL", raw)
	}
	if strings.TrimSpace(cfg.Target.Attribute) == "" {
		return errors.New("target.attribute required")
	}

	durations := []struct{ path, raw string }{
		{"target.cycle_timeout", cfg.Target.CycleTimeout},
		{"target.notify_timeout", cfg.Target.NotifyTimeout},
		{"browser.navigation_timeout", cfg.Browser.NavigationTimeout},
		{"browser.settle_delay", cfg.Browser.SettleDelay},
		{"browser.idle_window", cfg.Browser.IdleWindow},
		{"chat.timeout", cfg.Chat.Timeout},
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			return err
		}
	}

	if cfg.Browser.IdleConnections < 0 {
		return errors.New("browser.idle_connections must be >= 0")
	}
	if cfg.Schedule.IntervalMS < 0 {
		return errors.New("schedule.interval_ms must be >= 0")
	}
	if cfg.Chat.RatePerSec < 0 {
		return errors.New("chat.rate_per_sec must be >= 0")
	}
	if cfg.Chat.Token != "" && strings.TrimSpace(cfg.Chat.Destination) == "" {
		return errors.New("chat.destination required when chat.token is set")
	}

	if lvl := strings.TrimSpace(cfg.Logging.Level); lvl != "" && !logx.ValidLevel(lvl) {
		return fmt.Errorf("logging.level: unknown level %q", lvl)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: %q (use console or json)", cfg.Logging.Format)
	}
	return nil
}
