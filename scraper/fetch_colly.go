package scraper

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"realestate_ai/config"
)

// CollyFetcher fetches through a colly collector whose limit rule carries
// the site delay and jitter.
type CollyFetcher struct {
	base    *colly.Collector
	headers map[string]string
}

func NewCollyFetcher(site *config.SiteConfig, proxy *url.URL) (*CollyFetcher, error) {
	opts := []colly.CollectorOption{
		colly.MaxBodySize(maxPageSize),
		colly.AllowURLRevisit(),
		colly.DetectCharset(),
	}
	if ua := site.Headers["User-Agent"]; ua != "" {
		opts = append(opts, colly.UserAgent(ua))
	}
	if base, err := url.Parse(site.BaseURL); err == nil && base.Hostname() != "" {
		opts = append(opts, colly.AllowedDomains(base.Hostname()))
	}

	c := colly.NewCollector(opts...)
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       site.Delay(),
		RandomDelay: site.Jitter(),
	}); err != nil {
		return nil, fmt.Errorf("colly limit: %w", err)
	}
	c.SetRequestTimeout(30 * time.Second)

	if proxy != nil {
		if err := c.SetProxy(proxy.String()); err != nil {
			return nil, fmt.Errorf("colly proxy: %w", err)
		}
	}

	return &CollyFetcher{base: c, headers: site.Headers}, nil
}

func (f *CollyFetcher) Fetch(ctx context.Context, target string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Clones share the backend, so the limit rule spans all fetches.
	c := f.base.Clone()

	var body []byte
	var fetchErr error

	c.OnRequest(func(r *colly.Request) {
		for k, v := range f.headers {
			r.Headers.Set(k, v)
		}
	})
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = &StatusError{URL: target, Code: r.StatusCode}
			return
		}
		fetchErr = fmt.Errorf("GET %s: %w", target, err)
	})

	if err := c.Visit(target); err != nil && fetchErr == nil {
		fetchErr = fmt.Errorf("visit %s: %w", target, err)
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	return body, nil
}

func (f *CollyFetcher) SelfPaced() bool {
	return true
}

func (f *CollyFetcher) Close() error {
	return nil
}
