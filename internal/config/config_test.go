package config

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	logx "pagewatch/pkg/logx"
)

func envMap(kv map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := kv[k]
		return v, ok
	}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

func newTestManager(path string, env map[string]string) *Manager {
	m := NewManager(path)
	m.SetLookup(envMap(env))
	return m
}

func TestParseDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := newTestManager("", nil).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Target.URL != "https://www.example.com" || cfg.Target.Expected != "coming-soon" || cfg.Target.Attribute != "data-test-id" {
		t.Fatalf("unexpected target defaults: %+v", cfg.Target)
	}
	if cfg.Schedule.IntervalMS != 60000 {
		t.Fatalf("interval_ms = %d", cfg.Schedule.IntervalMS)
	}
	if !cfg.Browser.HeadlessEnabled() {
		t.Fatalf("headless must default to true")
	}
	if cfg.Chat.Token != "" {
		t.Fatalf("token must default to empty")
	}
}

func TestParseFileFormats(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	jsonPath := writeFile(t, dir, "c.json", `{
  "target": {"url": "https://shop.test/drop", "expected": "soon"},
  "browser": {"headless": false, "args": ["window-size=1280,800"]},
  "schedule": {"interval_ms": 5000}
}`)
	yamlPath := writeFile(t, dir, "c.yaml", `
target:
  url: https://shop.test/drop
  expected: soon
browser:
  headless: false
  args: ["window-size=1280,800"]
schedule:
  interval_ms: 5000
`)

	for _, p := range []string{jsonPath, yamlPath} {
		cfg, err := newTestManager(p, nil).Parse()
		if err != nil {
			t.Fatalf("Parse(%s): %v", filepath.Base(p), err)
		}
		if cfg.Target.URL != "https://shop.test/drop" || cfg.Target.Expected != "soon" {
			t.Fatalf("%s: target = %+v", filepath.Base(p), cfg.Target)
		}
		// omitted keys keep their defaults
		if cfg.Target.Attribute != "data-test-id" || cfg.Target.CycleTimeout != "2m" {
			t.Fatalf("%s: defaults lost: %+v", filepath.Base(p), cfg.Target)
		}
		if cfg.Browser.HeadlessEnabled() || len(cfg.Browser.Args) != 1 {
			t.Fatalf("%s: browser = %+v", filepath.Base(p), cfg.Browser)
		}
		if cfg.Schedule.IntervalMS != 5000 {
			t.Fatalf("%s: interval_ms = %d", filepath.Base(p), cfg.Schedule.IntervalMS)
		}
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	cases := []struct {
		name string
		file string
		body string
		env  map[string]string
	}{
		{name: "unknown key", file: "a.json", body: `{"target":{"url":"https://x.test","colour":"red"}}`},
		{name: "unknown yaml key", file: "b.yaml", body: "pages: [1, 2]\n"},
		{name: "trailing data", file: "c.json", body: `{} {}`},
		{name: "bad duration", file: "d.json", body: `{"browser":{"settle_delay":"soon"}}`},
		{name: "negative interval", file: "e.json", body: `{"schedule":{"interval_ms":-1}}`},
		{name: "not http", file: "f.json", body: `{"target":{"url":"ftp://x.test"}}`},
		{name: "token without destination", file: "g.json", body: `{"chat":{"token":"1:a"}}`},
		{name: "bad level", file: "h.json", body: `{"logging":{"level":"loud"}}`},
		{name: "bad env int", file: "i.json", body: `{}`, env: map[string]string{EnvCheckIntervalMS: "often"}},
		{name: "bad env bool", file: "j.json", body: `{}`, env: map[string]string{EnvHeadless: "maybe"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := writeFile(t, dir, tc.file, tc.body)
			if _, err := newTestManager(p, tc.env).Parse(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	if _, err := newTestManager(filepath.Join(dir, "missing.json"), nil).Parse(); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "c.json", `{"target":{"url":"https://file.test"},"schedule":{"interval_ms":5000}}`)

	cfg, err := newTestManager(p, map[string]string{
		EnvWebsiteURL:      "https://env.test/page",
		EnvCheckIntervalMS: "1500",
		EnvBotToken:        "123:abc",
		EnvChannelID:       "@drops",
		EnvHeadless:        "false",
		EnvBrowserArgs:     "lang=en-US  window-size=800,600",
		EnvExpectedValue:   "   ",
	}).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Target.URL != "https://env.test/page" || cfg.Schedule.IntervalMS != 1500 {
		t.Fatalf("env not applied: %+v %+v", cfg.Target, cfg.Schedule)
	}
	if cfg.Chat.Token != "123:abc" || cfg.Chat.Destination != "@drops" {
		t.Fatalf("chat = %+v", cfg.Chat)
	}
	if cfg.Browser.HeadlessEnabled() || len(cfg.Browser.Args) != 2 {
		t.Fatalf("browser = %+v", cfg.Browser)
	}
	// blank env values are ignored
	if cfg.Target.Expected != "coming-soon" {
		t.Fatalf("expected = %q", cfg.Target.Expected)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, ".env", "PAGEWATCH_TEST_A=from-file\nPAGEWATCH_TEST_B=from-file\n")

	t.Setenv("PAGEWATCH_TEST_A", "from-process")
	t.Setenv("PAGEWATCH_TEST_B", "")
	os.Unsetenv("PAGEWATCH_TEST_B")

	if err := LoadEnvFile(p, true); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("PAGEWATCH_TEST_A"); got != "from-process" {
		t.Fatalf("process env overridden: %q", got)
	}
	if got := os.Getenv("PAGEWATCH_TEST_B"); got != "from-file" {
		t.Fatalf("file value not loaded: %q", got)
	}

	if err := LoadEnvFile(filepath.Join(dir, "nope.env"), false); err != nil {
		t.Fatalf("optional missing file: %v", err)
	}
	if err := LoadEnvFile(filepath.Join(dir, "nope.env"), true); err == nil {
		t.Fatalf("required missing file: expected error")
	}
}

func TestReload(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "c.json", `{"target":{"url":"https://a.test"}}`)
	m := newTestManager(p, nil)
	if _, err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	if ok, err := m.Reload(context.Background()); ok || err != nil {
		t.Fatalf("unchanged reload = %v, %v", ok, err)
	}

	writeFile(t, filepath.Dir(p), "c.json", `{"target":{"url":"https://b.test"}}`)
	if ok, err := m.Reload(context.Background()); !ok || err != nil {
		t.Fatalf("changed reload = %v, %v", ok, err)
	}
	select {
	case cfg := <-sub:
		if cfg.Target.URL != "https://b.test" {
			t.Fatalf("published url = %q", cfg.Target.URL)
		}
	default:
		t.Fatalf("nothing published")
	}

	m.SetValidator(func(_ context.Context, cfg *Config) error {
		if strings.Contains(cfg.Target.URL, "c.test") {
			return errors.New("no c")
		}
		return nil
	})
	writeFile(t, filepath.Dir(p), "c.json", `{"target":{"url":"https://c.test"}}`)
	if ok, err := m.Reload(context.Background()); ok || err == nil {
		t.Fatalf("rejected reload = %v, %v", ok, err)
	}
	if got := m.Get().Target.URL; got != "https://b.test" {
		t.Fatalf("committed url after rejection = %q", got)
	}

	writeFile(t, filepath.Dir(p), "c.json", `{"target":{"url":""}}`)
	if _, err := m.Reload(context.Background()); err == nil {
		t.Fatalf("invalid file: expected error")
	}
}

func TestPublishKeepsNewest(t *testing.T) {
	t.Parallel()
	m := newTestManager("", nil)
	sub := m.Subscribe(1)

	a, b := Defaults(), Defaults()
	b.Target.URL = "https://newest.test"
	m.publish(a)
	m.publish(b)

	if got := <-sub; got != b {
		t.Fatalf("subscriber got stale config")
	}
	m.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatalf("channel not closed after Unsubscribe")
	}
}

func TestWatchPublishesFileChange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "c.yaml", "target:\n  url: https://a.test\n")
	m := newTestManager(p, nil)
	logs := &lockedBuffer{}
	_, log := logx.NewTo(logx.Config{Level: "debug", Format: "json"}, logs)
	m.SetLogger(log)
	if _, err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sub := m.Subscribe(4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	ready := time.Now().Add(5 * time.Second)
	for !strings.Contains(logs.String(), "config watcher started") {
		if time.Now().After(ready) {
			t.Fatalf("watcher did not start: %s", logs.String())
		}
		time.Sleep(10 * time.Millisecond)
	}

	writeFile(t, dir, "c.yaml", "target:\n  url: https://b.test\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-sub:
			if cfg.Target.URL == "https://b.test" {
				return
			}
		case <-deadline:
			t.Fatalf("no config published after file change")
		}
	}
}

func TestWatchWithoutFile(t *testing.T) {
	t.Parallel()
	if err := newTestManager("", nil).Watch(context.Background()); err != nil {
		t.Fatalf("Watch: %v", err)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()

	oldCfg := Defaults()
	newCfg := Defaults()
	newCfg.Chat.Token = "999:super-secret"
	newCfg.Chat.Destination = "-100"
	newCfg.Target.Expected = "sold-out"
	off := false
	newCfg.Browser.Headless = &off

	changed, attrs, restart := SummarizeConfigChange(oldCfg, newCfg)
	if strings.Join(changed, ",") != "target,browser,chat" {
		t.Fatalf("changed = %v", changed)
	}
	if strings.Join(restart, ",") != "browser,chat" {
		t.Fatalf("restart = %v", restart)
	}
	var buf bytes.Buffer
	_, log := logx.NewTo(logx.Config{Level: "debug", Format: "json"}, &buf)
	log.Info("config reloaded", attrs...)
	if strings.Contains(buf.String(), "super-secret") {
		t.Fatalf("token leaked into log fields: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "chat.token_changed") {
		t.Fatalf("missing chat fields: %s", buf.String())
	}

	changed, _, restart = SummarizeConfigChange(oldCfg, Defaults())
	if len(changed) != 0 || len(restart) != 0 {
		t.Fatalf("identical configs reported changes: %v %v", changed, restart)
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want time.Duration
		err  bool
	}{
		{raw: "", want: time.Second},
		{raw: "0s", want: time.Second},
		{raw: "250ms", want: 250 * time.Millisecond},
		{raw: "-1s", err: true},
		{raw: "ten", err: true},
	}
	for _, tc := range cases {
		got, err := ParseDurationOrDefault("x", tc.raw, time.Second)
		if tc.err {
			if err == nil {
				t.Fatalf("%q: expected error", tc.raw)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %s, %v", tc.raw, got, err)
		}
	}
}
