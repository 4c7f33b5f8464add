package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"

	logx "pagewatch/pkg/logx"
)

// ErrEmptyDocument is returned when the browser produced no markup at all.
var ErrEmptyDocument = errors.New("browser returned an empty document")

// Fetcher renders pages in a fresh headless browser per call.
//
// It is safe for concurrent use; concurrent calls queue behind a single browser slot.
type Fetcher struct {
	cfg Config
	log logx.Logger

	slot   *semaphore.Weighted
	active atomic.Int32
}

func New(cfg Config, log logx.Logger) *Fetcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Fetcher{
		cfg:  cfg.withDefaults(),
		log:  log,
		slot: semaphore.NewWeighted(1),
	}
}

// Active returns the number of browser instances currently alive.
func (f *Fetcher) Active() int { return int(f.active.Load()) }

// Fetch loads url, waits for network idle and the settle delay, and returns the
// rendered document. On error the returned HTML is always empty. The browser
// process has exited by the time Fetch returns.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := f.slot.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("wait for browser slot: %w", err)
	}
	defer f.slot.Release(1)

	start := time.Now()
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOptions(f.cfg)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			f.log.Debug("cdp: " + fmt.Sprintf(format, args...))
		}),
	)

	f.active.Add(1)
	defer func() {
		// Graceful close only when a browser process is attached. After a failed
		// launch chromedp never releases the allocation, and Cancel followed by
		// cancelTab would block forever.
		if launched(tabCtx) {
			if err := chromedp.Cancel(tabCtx); err != nil && !errors.Is(err, context.Canceled) {
				f.log.Debug("browser close failed", logx.Err(err))
			}
		}
		cancelTab()
		cancelAlloc()
		f.active.Add(-1)
		f.log.Debug("browser released", logx.Duration("took", time.Since(start)))
	}()

	idle := newInflight()
	chromedp.ListenTarget(tabCtx, idle.observe)

	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		return "", fmt.Errorf("launch browser: %w", err)
	}
	f.log.Debug("browser launched", logx.Duration("took", time.Since(start)))

	navCtx, cancelNav := tabCtx, context.CancelFunc(func() {})
	if f.cfg.NavigationTimeout > 0 {
		navCtx, cancelNav = context.WithTimeout(tabCtx, f.cfg.NavigationTimeout)
	}
	defer cancelNav()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return "", fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := idle.waitIdle(navCtx, f.cfg.IdleConnections, f.cfg.IdleWindow); err != nil {
		return "", fmt.Errorf("wait for network idle on %s: %w", url, err)
	}
	f.log.Debug("network idle", logx.Int("inflight", idle.count()), logx.Duration("took", time.Since(start)))

	if d := f.cfg.SettleDelay; d > 0 {
		t := time.NewTimer(d)
		select {
		case <-tabCtx.Done():
			t.Stop()
			return "", fmt.Errorf("settle delay: %w", tabCtx.Err())
		case <-t.C:
		}
	}

	var doc string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &doc, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("capture html: %w", err)
	}
	if strings.TrimSpace(doc) == "" {
		return "", ErrEmptyDocument
	}
	f.log.Debug("page rendered", logx.Int("bytes", len(doc)), logx.Duration("took", time.Since(start)))
	return doc, nil
}

// launched reports whether ctx has a running browser attached.
func launched(ctx context.Context) bool {
	c := chromedp.FromContext(ctx)
	return c != nil && c.Browser != nil
}
