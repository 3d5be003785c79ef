package scraper

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/playwright-community/playwright-go"
	"realestate_ai/config"
)

// BrowserFetcher renders pages in a persistent Chromium profile. The
// browser starts on first use and lives until Close.
type BrowserFetcher struct {
	site  *config.SiteConfig
	proxy *url.URL

	mu          sync.Mutex
	pw          *playwright.Playwright
	context     playwright.BrowserContext
	initialized bool
}

func NewBrowserFetcher(site *config.SiteConfig, proxy *url.URL) *BrowserFetcher {
	return &BrowserFetcher{site: site, proxy: proxy}
}

func (f *BrowserFetcher) ensureBrowser() error {
	if f.initialized {
		return nil
	}

	var err error
	f.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	cwd, _ := os.Getwd()
	userDataDir := filepath.Join(cwd, "browser_data", f.site.ID)

	opts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless:         playwright.Bool(true),
		ExtraHttpHeaders: f.site.Headers,
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	}
	if ua := f.site.Headers["User-Agent"]; ua != "" {
		opts.UserAgent = playwright.String(ua)
	}
	if f.proxy != nil {
		p := &playwright.Proxy{Server: f.proxy.Scheme + "://" + f.proxy.Host}
		if user := f.proxy.User; user != nil {
			p.Username = playwright.String(user.Username())
			if pass, ok := user.Password(); ok {
				p.Password = playwright.String(pass)
			}
		}
		opts.Proxy = p
	}

	f.context, err = f.pw.Chromium.LaunchPersistentContext(userDataDir, opts)
	if err != nil {
		f.pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	f.initialized = true
	return nil
}

func (f *BrowserFetcher) Fetch(ctx context.Context, target string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ensureBrowser(); err != nil {
		return nil, err
	}

	page, err := f.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	resp, err := page.Goto(target, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return nil, fmt.Errorf("navigate %s: %w", target, err)
	}
	if resp != nil && resp.Status() != 200 {
		return nil, &StatusError{URL: target, Code: resp.Status()}
	}

	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("read content %s: %w", target, err)
	}
	return []byte(html), nil
}

func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.initialized {
		return nil
	}
	if err := f.context.Close(); err != nil {
		log.Printf("Browser: close context: %v", err)
	}
	f.initialized = false
	return f.pw.Stop()
}
