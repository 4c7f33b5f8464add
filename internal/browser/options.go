package browser

import (
	"sort"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// Config controls how pages are rendered.
type Config struct {
	// ExecPath overrides chromedp's browser discovery (CHROME_BIN).
	ExecPath string
	Headless bool
	// Args are extra Chrome switches, "name" or "name=value", leading dashes optional.
	Args []string

	// NavigationTimeout bounds navigation plus the network-idle wait. 0 disables it.
	NavigationTimeout time.Duration
	// IdleConnections is the number of in-flight requests still considered idle.
	IdleConnections int
	// IdleWindow is how long the network must stay idle.
	IdleWindow time.Duration
	// SettleDelay is waited after network idle so client-side rendering can finish.
	SettleDelay time.Duration
}

const (
	DefaultNavigationTimeout = 30 * time.Second
	DefaultIdleConnections   = 2
	DefaultIdleWindow        = 500 * time.Millisecond
	DefaultSettleDelay       = 10 * time.Second
)

// DefaultConfig mirrors puppeteer's "networkidle2" plus a 10s settle delay.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		NavigationTimeout: DefaultNavigationTimeout,
		IdleConnections:   DefaultIdleConnections,
		IdleWindow:        DefaultIdleWindow,
		SettleDelay:       DefaultSettleDelay,
	}
}

func (c Config) withDefaults() Config {
	if c.IdleConnections < 0 {
		c.IdleConnections = 0
	}
	if c.IdleWindow <= 0 {
		c.IdleWindow = DefaultIdleWindow
	}
	if c.NavigationTimeout < 0 {
		c.NavigationTimeout = 0
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	return c
}

// containerFlags is the baseline switch set. The sandbox switches are needed in
// containers that run without the privileges Chrome's sandbox requires.
var containerFlags = map[string]interface{}{
	"no-sandbox":                          true,
	"disable-setuid-sandbox":              true,
	"disable-dev-shm-usage":               true,
	"disable-accelerated-2d-canvas":       true,
	"no-first-run":                        true,
	"no-zygote":                           true,
	"disable-gpu":                         true,
	"no-default-browser-check":            true,
	"disable-background-networking":       true,
	"disable-extensions":                  true,
	"disable-sync":                        true,
	"metrics-recording-only":              true,
	"mute-audio":                          true,
	"hide-scrollbars":                     true,
	"disable-popup-blocking":              true,
	"disable-renderer-backgrounding":      true,
	"disable-background-timer-throttling": true,
}

// flags returns the final Chrome switch set for cfg. User args win over defaults.
func flags(cfg Config) map[string]interface{} {
	out := make(map[string]interface{}, len(containerFlags)+len(cfg.Args)+1)
	for k, v := range containerFlags {
		out[k] = v
	}
	out["headless"] = cfg.Headless
	for _, arg := range cfg.Args {
		arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
		if arg == "" {
			continue
		}
		key, value, found := strings.Cut(arg, "=")
		if found {
			out[key] = value
		} else {
			out[key] = true
		}
	}
	return out
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	fl := flags(cfg)
	keys := make([]string, 0, len(fl))
	for k := range fl {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	opts := make([]chromedp.ExecAllocatorOption, 0, len(keys)+1)
	for _, k := range keys {
		opts = append(opts, chromedp.Flag(k, fl[k]))
	}
	if p := strings.TrimSpace(cfg.ExecPath); p != "" {
		opts = append(opts, chromedp.ExecPath(p))
	}
	return opts
}
