package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"realestate_ai/config"
	"realestate_ai/httputil"
	"realestate_ai/logging"
	"realestate_ai/models"
	"realestate_ai/parser"
	"realestate_ai/storage"
)

// ErrBusy is returned when a run is requested while another is in progress.
var ErrBusy = errors.New("scrape already running")

// Ledger is the operational store that records runs, logs and commands.
type Ledger interface {
	CreateRun(run *models.ScrapeRun) (int64, error)
	UpdateRun(run *models.ScrapeRun) error
	UpdateSiteStats(siteID string) error
	Log(runID *int64, level models.LogLevel, component, message, siteID string) error
	GetResumePage(siteID string) (int, error)
	SetResumePage(siteID string, page int) error
	ClearResumePage(siteID string) error
	ParseCommandParams(cmd *models.Command) (*models.CommandParams, error)
}

// PageStore tracks stored pages and known bronze ads.
type PageStore interface {
	BronzeExists(ctx context.Context, source string, adID int64) (bool, error)
	InsertHTMLFile(ctx context.Context, f *models.HTMLFile) error
	MarkHTMLFileProcessed(ctx context.Context, id int64, adID *int64) error
}

type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

type Ingester interface {
	Ingest(ctx context.Context, p *models.ParsedListing) (*models.BronzeListing, error)
}

type Orchestrator struct {
	cfg     *config.Config
	ledger  Ledger
	pages   PageStore
	objects ObjectStore
	ingest  Ingester
	clients *httputil.Clients

	fetchMu  sync.Mutex
	fetchers map[string]Fetcher

	mu     sync.Mutex
	paused atomic.Bool
}

func NewOrchestrator(cfg *config.Config, ledger Ledger, pages PageStore, objects ObjectStore, ingest Ingester, clients *httputil.Clients) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		ledger:   ledger,
		pages:    pages,
		objects:  objects,
		ingest:   ingest,
		clients:  clients,
		fetchers: make(map[string]Fetcher),
	}
}

// SetFetcher overrides the fetcher used for a site.
func (o *Orchestrator) SetFetcher(siteID string, f Fetcher) {
	o.fetchMu.Lock()
	defer o.fetchMu.Unlock()
	o.fetchers[siteID] = f
}

func (o *Orchestrator) fetcher(site *config.SiteConfig) (Fetcher, error) {
	o.fetchMu.Lock()
	defer o.fetchMu.Unlock()

	if f, ok := o.fetchers[site.ID]; ok {
		return f, nil
	}
	f, err := NewFetcher(site, o.clients)
	if err != nil {
		return nil, err
	}
	o.fetchers[site.ID] = f
	return f, nil
}

func (o *Orchestrator) RunAll(ctx context.Context) error {
	if o.paused.Load() {
		log.Println("Scraper is paused, skipping run")
		return nil
	}

	for _, siteID := range o.GetSiteIDs() {
		if err := o.RunSite(ctx, siteID); err != nil {
			log.Printf("Error running site %s: %v", siteID, err)
		}
	}
	return nil
}

// runState carries the stop counters of one run.
type runState struct {
	run      *models.ScrapeRun
	site     *config.SiteConfig
	fetcher  Fetcher
	pace     bool
	newItems int
	repeated int
}

func (st *runState) done() bool {
	if st.site.MaxItems > 0 && st.newItems >= st.site.MaxItems {
		return true
	}
	if st.site.MaxRepeated > 0 && st.repeated >= st.site.MaxRepeated {
		return true
	}
	return false
}

// RunSite walks the site's search pages, stores every new listing page in
// object storage and ingests its parsed payload into bronze. Runs never
// overlap; a second call while one is active returns ErrBusy.
func (o *Orchestrator) RunSite(ctx context.Context, siteID string) error {
	site, ok := o.cfg.Sites[siteID]
	if !ok {
		return fmt.Errorf("unknown site: %s", siteID)
	}

	if !o.mu.TryLock() {
		return ErrBusy
	}
	defer o.mu.Unlock()

	f, err := o.fetcher(site)
	if err != nil {
		return err
	}

	run := &models.ScrapeRun{
		SiteID:    siteID,
		Kind:      models.RunKindScrape,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	runID, err := o.ledger.CreateRun(run)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	run.ID = runID

	defer func() {
		now := time.Now()
		run.FinishedAt = &now
		if err := o.ledger.UpdateRun(run); err != nil {
			log.Printf("Warning: failed to update run %d: %v", run.ID, err)
		}
		if err := o.ledger.UpdateSiteStats(siteID); err != nil {
			log.Printf("Warning: failed to update stats for %s: %v", siteID, err)
		}
	}()

	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Starting scrape for %s", site.Name), siteID)

	st := &runState{run: run, site: site, fetcher: f, pace: !isSelfPaced(f)}
	if err := o.walk(ctx, st); err != nil {
		run.Status = models.RunStatusFailed
		run.ErrorsCount++
		o.log(run.ID, models.LogLevelError, fmt.Sprintf("Scrape failed: %v", err), siteID)
		return err
	}

	run.Status = models.RunStatusCompleted
	o.log(run.ID, models.LogLevelInfo,
		fmt.Sprintf("Completed: %d pages, %d found, %d saved, %d new, %d skipped, %d errors",
			run.PagesVisited, run.ListingsFound, run.HTMLSaved, run.ListingsNew, run.ListingsSkipped, run.ErrorsCount), siteID)
	return nil
}

func (o *Orchestrator) walk(ctx context.Context, st *runState) error {
	siteID := st.site.ID

	first, err := st.fetcher.Fetch(ctx, st.site.SearchURL)
	if err != nil {
		return fmt.Errorf("search page: %w", err)
	}
	params, ok := parser.ParseSearchParams(string(first))
	if !ok {
		return fmt.Errorf("search page %s has no pagination data", st.site.SearchURL)
	}

	pages := params.PageCount
	if st.site.MaxPages > 0 && pages > st.site.MaxPages {
		pages = st.site.MaxPages
	}

	start := 1
	if resume, err := o.ledger.GetResumePage(siteID); err != nil {
		log.Printf("Warning: failed to read resume page for %s: %v", siteID, err)
	} else if resume > 1 && resume <= pages {
		start = resume
		o.log(st.run.ID, models.LogLevelInfo, fmt.Sprintf("Resuming from page %d", start), siteID)
	}

	o.log(st.run.ID, models.LogLevelInfo,
		fmt.Sprintf("%d results over %d pages, walking %d-%d", params.ResultCount, params.PageCount, start, pages), siteID)

	for page := start; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		html := first
		if page > 1 {
			if err := o.pause(ctx, st); err != nil {
				return err
			}
			html, err = st.fetcher.Fetch(ctx, parser.PageURL(st.site.SearchURL, page))
			if err != nil {
				return fmt.Errorf("search page %d: %w", page, err)
			}
		}
		st.run.PagesVisited++

		summaries := parser.ParseSearchPage(string(html), st.site.BaseURL)
		st.run.ListingsFound += len(summaries)
		o.log(st.run.ID, models.LogLevelInfo, fmt.Sprintf("Page %d: %d listings", page, len(summaries)), siteID)

		for i := range summaries {
			if err := o.processSummary(ctx, st, &summaries[i]); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				st.run.ErrorsCount++
				o.log(st.run.ID, models.LogLevelError, fmt.Sprintf("Listing %s: %v", summaries[i].URL, err), siteID)
			}
			if st.done() {
				o.log(st.run.ID, models.LogLevelInfo,
					fmt.Sprintf("Stopping: %d new, %d already known", st.newItems, st.repeated), siteID)
				o.clearResume(siteID)
				return nil
			}
		}

		if page < pages {
			if err := o.ledger.SetResumePage(siteID, page+1); err != nil {
				log.Printf("Warning: failed to save resume page for %s: %v", siteID, err)
			}
		}
	}

	o.clearResume(siteID)
	return nil
}

func (o *Orchestrator) processSummary(ctx context.Context, st *runState, s *models.ListingSummary) error {
	if s.AdID != nil {
		known, err := o.pages.BronzeExists(ctx, models.SourceOtodom, *s.AdID)
		if err != nil {
			return fmt.Errorf("bronze lookup: %w", err)
		}
		if known {
			st.repeated++
			st.run.ListingsSkipped++
			return nil
		}
	}

	if err := o.pause(ctx, st); err != nil {
		return err
	}
	body, err := st.fetcher.Fetch(ctx, s.URL)
	if err != nil {
		return err
	}

	scrapedAt := time.Now().UTC()
	key := storage.HTMLKey(scrapedAt, s.OfferID)
	if err := o.objects.Upload(ctx, key, body, "text/html"); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	file := &models.HTMLFile{OfferID: s.OfferID, URL: s.URL, MinioKey: key, ScrapedAt: scrapedAt}
	if err := o.pages.InsertHTMLFile(ctx, file); err != nil {
		return fmt.Errorf("record %s: %w", key, err)
	}
	st.run.HTMLSaved++
	logging.Debugf("Saved %s (%d bytes) as %s", s.URL, len(body), key)

	parsed := parser.Parse(string(body))
	if parsed.AdID == nil {
		o.log(st.run.ID, models.LogLevelWarn,
			fmt.Sprintf("No listing data in %s (next data present: %t)", s.URL, parsed.NextDataPresent), st.site.ID)
		return o.pages.MarkHTMLFileProcessed(ctx, file.ID, nil)
	}

	if s.AdID == nil || *s.AdID != *parsed.AdID {
		known, err := o.pages.BronzeExists(ctx, parsed.Source, *parsed.AdID)
		if err != nil {
			return fmt.Errorf("bronze lookup: %w", err)
		}
		if known {
			st.repeated++
			st.run.ListingsSkipped++
			return o.pages.MarkHTMLFileProcessed(ctx, file.ID, parsed.AdID)
		}
	}

	b, err := o.ingest.Ingest(ctx, parsed)
	if err != nil {
		return err
	}
	st.newItems++
	st.run.ListingsNew++
	return o.pages.MarkHTMLFileProcessed(ctx, file.ID, &b.AdID)
}

func (o *Orchestrator) pause(ctx context.Context, st *runState) error {
	if !st.pace {
		return ctx.Err()
	}
	return sleepCtx(ctx, politeDelay(st.site))
}

func (o *Orchestrator) clearResume(siteID string) {
	if err := o.ledger.ClearResumePage(siteID); err != nil {
		log.Printf("Warning: failed to clear resume page for %s: %v", siteID, err)
	}
}

func isSelfPaced(f Fetcher) bool {
	sp, ok := f.(selfPaced)
	return ok && sp.SelfPaced()
}

func (o *Orchestrator) HandleCommand(ctx context.Context, cmd *models.Command) error {
	params, err := o.ledger.ParseCommandParams(cmd)
	if err != nil {
		return err
	}

	switch cmd.Command {
	case models.CmdScrapeNow:
		return o.RunAll(ctx)
	case models.CmdScrapeSite:
		if params.Site != "" {
			return o.RunSite(ctx, params.Site)
		}
		return o.RunAll(ctx)
	case models.CmdPause:
		o.paused.Store(true)
		log.Println("Scraper paused")
	case models.CmdResume:
		o.paused.Store(false)
		log.Println("Scraper resumed")
	default:
		return fmt.Errorf("unknown command: %s", cmd.Command)
	}
	return nil
}

func (o *Orchestrator) IsPaused() bool {
	return o.paused.Load()
}

func (o *Orchestrator) log(runID int64, level models.LogLevel, message, siteID string) {
	log.Printf("[%s] %s: %s", level, siteID, message)
	if err := o.ledger.Log(&runID, level, "scraper", message, siteID); err != nil {
		log.Printf("Warning: failed to persist log line: %v", err)
	}
}

func (o *Orchestrator) GetSiteIDs() []string {
	ids := make([]string, 0, len(o.cfg.Sites))
	for id := range o.cfg.Sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (o *Orchestrator) MarshalStatus() ([]byte, error) {
	status := map[string]any{
		"paused": o.IsPaused(),
		"sites":  o.GetSiteIDs(),
	}
	return json.Marshal(status)
}

// Close shuts down every fetcher started by the orchestrator.
func (o *Orchestrator) Close() error {
	o.fetchMu.Lock()
	defer o.fetchMu.Unlock()

	var errs []error
	for id, f := range o.fetchers {
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	o.fetchers = make(map[string]Fetcher)
	return errors.Join(errs...)
}
