package httputil

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type Clients struct {
	Scraping *http.Client // optionally proxied, for listing and search pages
	ProxyURL *url.URL
}

// NewClients builds the shared HTTP clients. An empty proxyURL disables
// the proxy.
func NewClients(proxyURL string) (*Clients, error) {
	transport := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
	}

	var proxy *url.URL
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		proxy = u
		transport.Proxy = http.ProxyURL(u)
	}

	scraping := &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
		// Expired ads redirect to search results; the caller sees the 3xx.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &Clients{
		Scraping: scraping,
		ProxyURL: proxy,
	}, nil
}
