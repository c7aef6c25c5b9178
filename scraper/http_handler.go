package scraper

import (
	"context"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"

	"ncr_ingest/config"
	"ncr_ingest/httputil"
	"ncr_ingest/ingest"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// HTTPHandler fetches listing pages with a plain HTTP client and parses
// the result card markup directly.
type HTTPHandler struct {
	cfg     *config.FetcherConfig
	client  *http.Client
	fetched bool
}

func NewHTTPHandler(cfg *config.FetcherConfig, clients *httputil.Clients) *HTTPHandler {
	return &HTTPHandler{cfg: cfg, client: clients.Scraping}
}

func (h *HTTPHandler) Fetch(ctx context.Context, city *config.CityConfig, page int) ingest.FetchOutcome {
	// No delay before the very first request of a run.
	if h.fetched {
		if err := jitterSleep(ctx, h.cfg.DelayMinMS, h.cfg.DelayMaxMS); err != nil {
			return ingest.Fatal(err.Error())
		}
	}
	h.fetched = true

	pageURL := fmt.Sprintf(city.URLTemplate, page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ingest.Fatal(fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ingest.Fatal(ctx.Err().Error())
		}
		return ingest.Transient(fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusForbidden:
		return ingest.Blocked(fmt.Sprintf("HTTP %d on %s", resp.StatusCode, pageURL))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return ingest.Transient(fmt.Sprintf("HTTP %d on %s", resp.StatusCode, pageURL))
	case resp.StatusCode == http.StatusNotFound:
		return ingest.Empty()
	default:
		return ingest.Transient(fmt.Sprintf("unexpected HTTP %d on %s", resp.StatusCode, pageURL))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ingest.Transient(fmt.Sprintf("parse page: %v", err))
	}
	if pageBlocked(doc) {
		return ingest.Blocked(fmt.Sprintf("challenge page served for %s page %d", city.Name, page))
	}

	return ingest.Records(extractListings(doc, city.Name))
}

func (h *HTTPHandler) Close() {
	h.client.CloseIdleConnections()
}
