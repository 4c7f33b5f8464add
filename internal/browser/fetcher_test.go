package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"pagewatch/internal/marker"
	logx "pagewatch/pkg/logx"
)

// chromeOrSkip returns a browser binary or skips the test.
func chromeOrSkip(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests disabled in -short mode")
	}
	if p := strings.TrimSpace(os.Getenv("CHROME_BIN")); p != "" {
		return p
	}
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no Chrome/Chromium binary found")
	return ""
}

func testConfig(execPath string) Config {
	cfg := DefaultConfig()
	cfg.ExecPath = execPath
	cfg.SettleDelay = 300 * time.Millisecond
	cfg.IdleWindow = 100 * time.Millisecond
	cfg.NavigationTimeout = 20 * time.Second
	return cfg
}

func TestFetchRendersClientSideMarker(t *testing.T) {
	execPath := chromeOrSkip(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<!doctype html><html><body>
<div id="root"></div>
<script>
setTimeout(function () {
  var b = document.createElement("button");
  b.setAttribute("data-test-id", "launched");
  document.getElementById("root").appendChild(b);
}, 50);
</script>
</body></html>`)
	}))
	t.Cleanup(srv.Close)

	f := New(testConfig(execPath), logx.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	doc, err := f.Fetch(ctx, srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	obs, err := marker.Extract(doc, marker.DefaultAttribute)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if !obs.Found || obs.Value != "launched" {
		t.Fatalf("observation = %+v, want launched", obs)
	}
	if got := f.Active(); got != 0 {
		t.Fatalf("Active() after Fetch = %d, want 0", got)
	}
}

func TestFetchFailureReleasesBrowser(t *testing.T) {
	execPath := chromeOrSkip(t)

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // connection refused from now on

	f := New(testConfig(execPath), logx.Nop())
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		doc, err := f.Fetch(ctx, url)
		cancel()
		if err == nil {
			t.Fatalf("run %d: Fetch() succeeded against a closed server", i)
		}
		if doc != "" {
			t.Fatalf("run %d: got partial document on error", i)
		}
		if got := f.Active(); got != 0 {
			t.Fatalf("run %d: Active() = %d, want 0", i, got)
		}
	}
}

func TestFetchLaunchFailure(t *testing.T) {
	t.Parallel()

	cfg := testConfig("/nonexistent/chrome")
	f := New(cfg, logx.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	type result struct {
		doc string
		err error
	}
	done := make(chan result, 1)
	go func() {
		doc, err := f.Fetch(ctx, "http://127.0.0.1:1/")
		done <- result{doc, err}
	}()

	select {
	case res := <-done:
		if res.err == nil {
			t.Fatalf("Fetch() succeeded with a missing browser binary")
		}
		if res.doc != "" {
			t.Fatalf("Fetch() doc = %q, want empty", res.doc)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Fetch() did not return after launch failure")
	}
	if got := f.Active(); got != 0 {
		t.Fatalf("Active() = %d, want 0", got)
	}

	// the slot must be free for the next check
	acquired := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctx, "http://127.0.0.1:1/")
		acquired <- err
	}()
	select {
	case err := <-acquired:
		if err == nil {
			t.Fatalf("second Fetch() succeeded with a missing browser binary")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("second Fetch() blocked on the browser slot")
	}
}
