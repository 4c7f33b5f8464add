// Package browser renders a page in a short-lived headless Chrome and returns
// the resulting DOM as HTML.
//
// Every Fetch launches its own browser process with a throw-away profile and
// tears it down before returning, on success and on failure alike. A weighted
// semaphore keeps at most one browser alive per Fetcher.
package browser
