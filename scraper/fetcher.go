package scraper

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"realestate_ai/config"
	"realestate_ai/httputil"
)

const maxPageSize = 10 * 1024 * 1024

// Fetcher downloads one page and returns its raw HTML.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
	Close() error
}

// selfPaced is implemented by fetchers that enforce the site delay
// themselves, so the orchestrator does not sleep on top of them.
type selfPaced interface {
	SelfPaced() bool
}

// StatusError is returned for any non-200 response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Code)
}

// NewFetcher picks the fetcher named by the site config.
func NewFetcher(site *config.SiteConfig, clients *httputil.Clients) (Fetcher, error) {
	switch site.Fetcher {
	case config.FetcherHTTP, "":
		return NewHTTPFetcher(clients.Scraping, site.Headers), nil
	case config.FetcherColly:
		return NewCollyFetcher(site, clients.ProxyURL)
	case config.FetcherBrowser:
		return NewBrowserFetcher(site, clients.ProxyURL), nil
	}
	return nil, fmt.Errorf("site %s: unknown fetcher %q", site.ID, site.Fetcher)
}

// politeDelay is the site delay plus a random share of its jitter.
func politeDelay(site *config.SiteConfig) time.Duration {
	d := site.Delay()
	if j := site.Jitter(); j > 0 {
		d += time.Duration(rand.Int63n(int64(j) + 1))
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
