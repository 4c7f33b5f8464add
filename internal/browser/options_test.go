package browser

import (
	"testing"
	"time"
)

func TestFlagsDefaults(t *testing.T) {
	t.Parallel()
	fl := flags(DefaultConfig())
	for _, k := range []string{"no-sandbox", "disable-setuid-sandbox", "disable-dev-shm-usage", "no-zygote", "disable-gpu"} {
		if fl[k] != true {
			t.Fatalf("flag %q = %v, want true", k, fl[k])
		}
	}
	if fl["headless"] != true {
		t.Fatalf("headless = %v, want true", fl["headless"])
	}
}

func TestFlagsUserArgs(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Headless = false
	cfg.Args = []string{"--single-process", "window-size=1280,800", "  ", "--disable-gpu=false"}
	fl := flags(cfg)

	if fl["headless"] != false {
		t.Fatalf("headless = %v, want false", fl["headless"])
	}
	if fl["single-process"] != true {
		t.Fatalf("single-process = %v", fl["single-process"])
	}
	if fl["window-size"] != "1280,800" {
		t.Fatalf("window-size = %v", fl["window-size"])
	}
	if fl["disable-gpu"] != "false" {
		t.Fatalf("user arg should override default, got %v", fl["disable-gpu"])
	}
	if _, ok := fl[""]; ok {
		t.Fatal("blank arg produced an empty flag")
	}
}

func TestAllocatorOptionsExecPath(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	base := len(allocatorOptions(cfg))
	cfg.ExecPath = "/usr/bin/chromium"
	if got := len(allocatorOptions(cfg)); got != base+1 {
		t.Fatalf("len(options) = %d, want %d", got, base+1)
	}
}

func TestWithDefaults(t *testing.T) {
	t.Parallel()
	c := Config{IdleConnections: -1, IdleWindow: 0, NavigationTimeout: -time.Second, SettleDelay: -time.Second}.withDefaults()
	if c.IdleConnections != 0 || c.IdleWindow != DefaultIdleWindow || c.NavigationTimeout != 0 || c.SettleDelay != 0 {
		t.Fatalf("unexpected normalized config: %+v", c)
	}
}
