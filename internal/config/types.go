package config

// Config is the raw, file-shaped configuration. Durations are Go duration
// strings ("500ms", "10s", "2m") and are parsed where they are used.
//
// Precedence: Defaults() < config file < .env file < process environment.
type Config struct {
	Target   TargetConfig   `json:"target"`
	Browser  BrowserConfig  `json:"browser"`
	Schedule ScheduleConfig `json:"schedule"`
	Chat     ChatConfig     `json:"chat"`
	Logging  LoggingConfig  `json:"logging"`
}

// TargetConfig describes the watched page and marker. Hot-reloadable.
type TargetConfig struct {
	URL       string `json:"url"`
	Attribute string `json:"attribute,omitempty"`
	// Expected is the sentinel value; any other value raises an alert.
	Expected      string `json:"expected,omitempty"`
	CycleTimeout  string `json:"cycle_timeout,omitempty"`
	NotifyTimeout string `json:"notify_timeout,omitempty"`
}

// BrowserConfig controls the headless browser. Changes need a restart.
type BrowserConfig struct {
	ExecPath string `json:"exec_path,omitempty"`
	// Headless is a pointer so an omitted key keeps the default (true).
	Headless          *bool    `json:"headless,omitempty"`
	Args              []string `json:"args,omitempty"`
	NavigationTimeout string   `json:"navigation_timeout,omitempty"`
	SettleDelay       string   `json:"settle_delay,omitempty"`
	IdleConnections   int      `json:"idle_connections,omitempty"`
	IdleWindow        string   `json:"idle_window,omitempty"`
}

func (b BrowserConfig) HeadlessEnabled() bool {
	return b.Headless == nil || *b.Headless
}

// ScheduleConfig controls when checks run.
//
// IntervalMS is the fixed delay between checks. Spec, when set, overrides it
// and accepts a Go duration, HH:MM or a cron expression.
type ScheduleConfig struct {
	IntervalMS int64  `json:"interval_ms,omitempty"`
	Spec       string `json:"spec,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
}

// ChatConfig controls alert delivery. An empty token selects log-only delivery.
// Changes need a restart.
type ChatConfig struct {
	Token       string  `json:"token,omitempty"`
	Destination string  `json:"destination,omitempty"`
	APIURL      string  `json:"api_url,omitempty"`
	RatePerSec  float64 `json:"rate_per_sec,omitempty"`
	Timeout     string  `json:"timeout,omitempty"`
}

type LoggingConfig struct {
	Level  string `json:"level,omitempty"`
	Format string `json:"format,omitempty"` // console | json
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() *Config {
	return &Config{
		Target: TargetConfig{
			URL:           "https://www.example.com",
			Attribute:     "data-test-id",
			Expected:      "coming-soon",
			CycleTimeout:  "2m",
			NotifyTimeout: "15s",
		},
		Browser: BrowserConfig{
			NavigationTimeout: "30s",
			SettleDelay:       "10s",
			IdleConnections:   2,
			IdleWindow:        "500ms",
		},
		Schedule: ScheduleConfig{
			IntervalMS: 60000,
		},
		Chat: ChatConfig{
			RatePerSec: 1,
			Timeout:    "10s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
