package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables recognised by the overlay.
const (
	EnvWebsiteURL        = "WEBSITE_URL"
	EnvMarkerAttribute   = "MARKER_ATTRIBUTE"
	EnvExpectedValue     = "EXPECTED_VALUE"
	EnvCycleTimeout      = "CYCLE_TIMEOUT"
	EnvNotifyTimeout     = "NOTIFY_TIMEOUT"
	EnvChromeBin         = "CHROME_BIN"
	EnvHeadless          = "HEADLESS"
	EnvBrowserArgs       = "BROWSER_ARGS"
	EnvNavigationTimeout = "NAVIGATION_TIMEOUT"
	EnvSettleDelay       = "SETTLE_DELAY"
	EnvCheckIntervalMS   = "CHECK_INTERVAL_MS"
	EnvSchedule          = "SCHEDULE"
	EnvScheduleTimezone  = "SCHEDULE_TIMEZONE"
	EnvBotToken          = "BOT_TOKEN"
	EnvChannelID         = "CHANNEL_ID"
	EnvTelegramAPIURL    = "TELEGRAM_API_URL"
	EnvLogLevel          = "LOG_LEVEL"
	EnvLogFormat         = "LOG_FORMAT"
)

// DefaultEnvFile is read when no env file is given explicitly.
const DefaultEnvFile = ".env"

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadEnvFile loads KEY=VALUE pairs into the process environment without
// overriding variables that are already set. A missing file is an error only
// when required is true.
func LoadEnvFile(path string, required bool) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays environment values on cfg. Unset or blank variables are ignored.
func applyEnv(cfg *Config, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}
	str := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	str(EnvWebsiteURL, &cfg.Target.URL)
	str(EnvMarkerAttribute, &cfg.Target.Attribute)
	str(EnvExpectedValue, &cfg.Target.Expected)
	str(EnvCycleTimeout, &cfg.Target.CycleTimeout)
	str(EnvNotifyTimeout, &cfg.Target.NotifyTimeout)

	str(EnvChromeBin, &cfg.Browser.ExecPath)
	str(EnvNavigationTimeout, &cfg.Browser.NavigationTimeout)
	str(EnvSettleDelay, &cfg.Browser.SettleDelay)
	if v, ok := get(EnvHeadless); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: invalid bool %q", EnvHeadless, v)
		}
		cfg.Browser.Headless = &b
	}
	if v, ok := get(EnvBrowserArgs); ok {
		cfg.Browser.Args = strings.Fields(v)
	}

	if v, ok := get(EnvCheckIntervalMS); ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", EnvCheckIntervalMS, v)
		}
		cfg.Schedule.IntervalMS = ms
	}
	str(EnvSchedule, &cfg.Schedule.Spec)
	str(EnvScheduleTimezone, &cfg.Schedule.Timezone)

	str(EnvBotToken, &cfg.Chat.Token)
	str(EnvChannelID, &cfg.Chat.Destination)
	str(EnvTelegramAPIURL, &cfg.Chat.APIURL)

	str(EnvLogLevel, &cfg.Logging.Level)
	str(EnvLogFormat, &cfg.Logging.Format)
	return nil
}
