package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPFetcher issues plain GET requests with the site's headers.
type HTTPFetcher struct {
	client  *http.Client
	headers map[string]string
}

func NewHTTPFetcher(client *http.Client, headers map[string]string) *HTTPFetcher {
	return &HTTPFetcher{client: client, headers: headers}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return body, nil
}

func (f *HTTPFetcher) Close() error {
	return nil
}
