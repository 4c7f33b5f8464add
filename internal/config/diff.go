package config

import (
	"slices"
	"strings"

	logx "pagewatch/pkg/logx"
)

// SummarizeConfigChange returns (1) the changed sections, (2) safe structured
// fields for logging (the bot token is never included), and (3) the changed
// sections that only take effect after a restart.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	restart := make([]string, 0, 2)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Target != newCfg.Target {
		changed = append(changed, "target")
		attrs = append(attrs,
			logx.String("target.url", newCfg.Target.URL),
			logx.String("target.attribute", newCfg.Target.Attribute),
			logx.String("target.expected", newCfg.Target.Expected),
			logx.String("target.cycle_timeout", newCfg.Target.CycleTimeout),
			logx.String("target.notify_timeout", newCfg.Target.NotifyTimeout),
		)
	}

	ob, nb := oldCfg.Browser, newCfg.Browser
	if ob.ExecPath != nb.ExecPath ||
		ob.HeadlessEnabled() != nb.HeadlessEnabled() ||
		!slices.Equal(ob.Args, nb.Args) ||
		ob.NavigationTimeout != nb.NavigationTimeout ||
		ob.SettleDelay != nb.SettleDelay ||
		ob.IdleConnections != nb.IdleConnections ||
		ob.IdleWindow != nb.IdleWindow {
		changed = append(changed, "browser")
		restart = append(restart, "browser")
		attrs = append(attrs,
			logx.String("browser.exec_path", nb.ExecPath),
			logx.Bool("browser.headless", nb.HeadlessEnabled()),
			logx.Int("browser.args", len(nb.Args)),
			logx.String("browser.settle_delay", nb.SettleDelay),
		)
	}

	if oldCfg.Schedule != newCfg.Schedule {
		changed = append(changed, "schedule")
		attrs = append(attrs,
			logx.Int64("schedule.interval_ms", newCfg.Schedule.IntervalMS),
			logx.String("schedule.spec", strings.TrimSpace(newCfg.Schedule.Spec)),
			logx.String("schedule.timezone", strings.TrimSpace(newCfg.Schedule.Timezone)),
		)
	}

	// never log the token itself
	oc, nc := oldCfg.Chat, newCfg.Chat
	if oc.Token != nc.Token ||
		oc.Destination != nc.Destination ||
		oc.APIURL != nc.APIURL ||
		oc.RatePerSec != nc.RatePerSec ||
		oc.Timeout != nc.Timeout {
		changed = append(changed, "chat")
		restart = append(restart, "chat")
		attrs = append(attrs,
			logx.Bool("chat.token_set", strings.TrimSpace(nc.Token) != ""),
			logx.Bool("chat.token_changed", oc.Token != nc.Token),
			logx.String("chat.destination", nc.Destination),
			logx.Bool("chat.api_url_set", strings.TrimSpace(nc.APIURL) != ""),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.String("logging.format", newCfg.Logging.Format),
		)
	}

	return changed, attrs, restart
}
