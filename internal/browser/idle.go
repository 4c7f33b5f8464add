package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
)

// inflight counts network requests that have started but not finished, fed by
// CDP network events.
type inflight struct {
	mu   sync.Mutex
	reqs map[network.RequestID]struct{}
}

func newInflight() *inflight {
	return &inflight{reqs: map[network.RequestID]struct{}{}}
}

// observe is installed as a chromedp target listener. It runs on the target's
// event loop and must not block.
func (t *inflight) observe(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		// Redirects reuse the request ID; the set keeps them counted once.
		t.mu.Lock()
		t.reqs[e.RequestID] = struct{}{}
		t.mu.Unlock()
	case *network.EventLoadingFinished:
		t.done(e.RequestID)
	case *network.EventLoadingFailed:
		t.done(e.RequestID)
	}
}

func (t *inflight) done(id network.RequestID) {
	t.mu.Lock()
	delete(t.reqs, id)
	t.mu.Unlock()
}

func (t *inflight) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.reqs)
}

// waitIdle returns once at most maxInflight requests have been pending for a
// continuous window, or when ctx is done.
func (t *inflight) waitIdle(ctx context.Context, maxInflight int, window time.Duration) error {
	tick := window / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	quietSince := time.Now()
	for {
		if t.count() > maxInflight {
			quietSince = time.Now()
		} else if time.Since(quietSince) >= window {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
