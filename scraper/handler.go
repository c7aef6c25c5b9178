package scraper

import (
	"context"
	"math/rand"
	"time"

	"ncr_ingest/config"
	"ncr_ingest/httputil"
	"ncr_ingest/ingest"
)

// NewFetcher selects the page fetcher implementation. The plain HTTP fetcher
// is the default; the browser fetcher survives sites that reject bare
// clients outright.
func NewFetcher(cfg *config.FetcherConfig, clients *httputil.Clients) ingest.PageFetcher {
	switch cfg.Handler {
	case "browser":
		return NewBrowserHandler(cfg)
	default:
		return NewHTTPHandler(cfg, clients)
	}
}

// jitterSleep pauses between DelayMinMS and DelayMaxMS, returning early on
// cancellation. Inter-page pacing is the main rate-limit defence.
func jitterSleep(ctx context.Context, minMS, maxMS int) error {
	if maxMS <= minMS {
		maxMS = minMS + 1
	}
	d := time.Duration(minMS+rand.Intn(maxMS-minMS)) * time.Millisecond
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
