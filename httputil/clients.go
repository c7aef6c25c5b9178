package httputil

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"
)

type Clients struct {
	Scraping *http.Client // optionally proxied, for the listing site
}

// NewClients builds the HTTP client used by the fetchers. When proxyURL is
// empty the scraping client goes direct. HTTP/2 is disabled on the scraping
// transport; the target site fingerprints h2 clients more aggressively.
func NewClients(proxyURL string) *Clients {
	transport := &http.Transport{
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
	}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}

	return &Clients{
		Scraping: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}
