package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate_ai/config"
	"realestate_ai/models"
	"realestate_ai/parser"
)

const (
	testSearchURL = "https://www.otodom.pl/pl/wyniki/sprzedaz/mieszkanie/malopolskie/krakow"
	cardFull      = "https://www.otodom.pl/pl/oferta/mieszkanie-3-pok-ID4pQr1"
	cardNoAd      = "https://www.otodom.pl/pl/oferta/dom-ID4zz"
	cardUnknown   = "https://www.otodom.pl/pl/oferta/kawalerka-ID5"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "parser", "testdata", name))
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string][]byte
	fetched []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, url)
	if body, ok := f.pages[url]; ok {
		return body, nil
	}
	return nil, &StatusError{URL: url, Code: 404}
}

func (f *fakeFetcher) SelfPaced() bool { return true }
func (f *fakeFetcher) Close() error { return nil }

func (f *fakeFetcher) count(url string) int {
	n := 0
	for _, u := range f.fetched {
		if u == url {
			n++
		}
	}
	return n
}

type fakeLedger struct {
	runs    []*models.ScrapeRun
	logs    []string
	resume  map[string]int
	resumes []int
	cleared int
}

func (l *fakeLedger) CreateRun(run *models.ScrapeRun) (int64, error) {
	l.runs = append(l.runs, run)
	return int64(len(l.runs)), nil
}

func (l *fakeLedger) UpdateRun(run *models.ScrapeRun) error { return nil }
func (l *fakeLedger) UpdateSiteStats(siteID string) error { return nil }
func (l *fakeLedger) GetResumePage(siteID string) (int, error) { return l.resume[siteID], nil }

func (l *fakeLedger) Log(runID *int64, level models.LogLevel, component, message, siteID string) error {
	l.logs = append(l.logs, string(level)+" "+component+" "+message)
	return nil
}

func (l *fakeLedger) SetResumePage(siteID string, page int) error {
	l.resumes = append(l.resumes, page)
	return nil
}

func (l *fakeLedger) ClearResumePage(siteID string) error {
	l.cleared++
	return nil
}

func (l *fakeLedger) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	var p models.CommandParams
	if len(cmd.Params) > 0 {
		if err := json.Unmarshal(cmd.Params, &p); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

type processed struct {
	id   int64
	adID *int64
}

// fakeStore stands in for Postgres, object storage and the bronze service.
type fakeStore struct {
	known     map[int64]bool
	files     []*models.HTMLFile
	processed []processed
	uploads   map[string]string
	ingested  []int64
}

func newFakeStore(known ...int64) *fakeStore {
	s := &fakeStore{known: map[int64]bool{}, uploads: map[string]string{}}
	for _, id := range known {
		s.known[id] = true
	}
	return s
}

func (s *fakeStore) BronzeExists(ctx context.Context, source string, adID int64) (bool, error) {
	return s.known[adID], nil
}

func (s *fakeStore) InsertHTMLFile(ctx context.Context, f *models.HTMLFile) error {
	f.ID = int64(len(s.files) + 1)
	s.files = append(s.files, f)
	return nil
}

func (s *fakeStore) MarkHTMLFileProcessed(ctx context.Context, id int64, adID *int64) error {
	s.processed = append(s.processed, processed{id: id, adID: adID})
	return nil
}

func (s *fakeStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	s.uploads[key] = contentType
	return nil
}

func (s *fakeStore) Ingest(ctx context.Context, p *models.ParsedListing) (*models.BronzeListing, error) {
	b, err := models.NewBronzeListing(p)
	if err != nil {
		return nil, err
	}
	s.known[b.AdID] = true
	s.ingested = append(s.ingested, b.AdID)
	return b, nil
}

func testSite() *config.SiteConfig {
	return &config.SiteConfig{
		ID:        "otodom",
		Name:      "Otodom",
		BaseURL:   "https://www.otodom.pl",
		SearchURL: testSearchURL,
		MaxPages:  1,
	}
}

func newTestOrchestrator(t *testing.T, site *config.SiteConfig, store *fakeStore) (*Orchestrator, *fakeFetcher, *fakeLedger) {
	t.Helper()
	search := loadFixture(t, "search_page.html")
	full := loadFixture(t, "listing_full.html")

	f := &fakeFetcher{pages: map[string][]byte{
		testSearchURL: search,
		cardFull:      full,
		cardNoAd:      loadFixture(t, "listing_no_ad.html"),
		cardUnknown:   full,
	}}
	ledger := &fakeLedger{resume: map[string]int{}}
	cfg := &config.Config{Sites: map[string]*config.SiteConfig{site.ID: site}}

	o := NewOrchestrator(cfg, ledger, store, store, store, nil)
	o.SetFetcher(site.ID, f)
	return o, f, ledger
}

func TestRunSite_IngestsNewListings(t *testing.T) {
	store := newFakeStore()
	o, f, ledger := newTestOrchestrator(t, testSite(), store)

	require.NoError(t, o.RunSite(context.Background(), "otodom"))

	require.Len(t, ledger.runs, 1)
	run := ledger.runs[0]
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, models.RunKindScrape, run.Kind)
	assert.NotNil(t, run.FinishedAt)
	assert.Equal(t, 1, run.PagesVisited)
	assert.Equal(t, 3, run.ListingsFound)
	assert.Equal(t, 3, run.HTMLSaved)
	assert.Equal(t, 1, run.ListingsNew)
	// The third card carries no impression id and turns out to be the same ad.
	assert.Equal(t, 1, run.ListingsSkipped)
	assert.Equal(t, 0, run.ErrorsCount)

	assert.Equal(t, []int64{66123456}, store.ingested)
	require.Len(t, store.files, 3)
	for _, file := range store.files {
		assert.True(t, strings.HasPrefix(file.MinioKey, "listings/"), file.MinioKey)
		assert.Equal(t, "text/html", store.uploads[file.MinioKey])
	}
	assert.Equal(t, "Dom z ogrodem_", store.files[1].OfferID)

	require.Len(t, store.processed, 3)
	require.NotNil(t, store.processed[0].adID)
	assert.EqualValues(t, 66123456, *store.processed[0].adID)
	assert.Nil(t, store.processed[1].adID, "degraded page is marked without an ad")
	require.NotNil(t, store.processed[2].adID)

	assert.Equal(t, 1, f.count(testSearchURL))
	assert.Equal(t, 1, ledger.cleared)
	assert.Empty(t, ledger.resumes)
}

func TestRunSite_SkipsKnownAdsWithoutFetching(t *testing.T) {
	store := newFakeStore(66123456, 66123457)
	o, f, ledger := newTestOrchestrator(t, testSite(), store)

	require.NoError(t, o.RunSite(context.Background(), "otodom"))

	run := ledger.runs[0]
	assert.Equal(t, 0, f.count(cardFull))
	assert.Equal(t, 0, f.count(cardNoAd))
	assert.Equal(t, 1, f.count(cardUnknown))
	assert.Equal(t, 3, run.ListingsSkipped)
	assert.Equal(t, 0, run.ListingsNew)
	assert.Equal(t, 1, run.HTMLSaved)
	assert.Empty(t, store.ingested)
}

func TestRunSite_StopLimits(t *testing.T) {
	tests := []struct {
		name        string
		known       []int64
		maxItems    int
		maxRepeated int
		wantSaved   int
		wantNew     int
	}{
		{"max items", nil, 1, 0, 1, 1},
		{"max repeated", []int64{66123456}, 0, 1, 0, 0},
		{"no limits", nil, 0, 0, 3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := testSite()
			site.MaxItems = tt.maxItems
			site.MaxRepeated = tt.maxRepeated

			o, _, ledger := newTestOrchestrator(t, site, newFakeStore(tt.known...))
			require.NoError(t, o.RunSite(context.Background(), "otodom"))

			run := ledger.runs[0]
			assert.Equal(t, models.RunStatusCompleted, run.Status)
			assert.Equal(t, tt.wantSaved, run.HTMLSaved)
			assert.Equal(t, tt.wantNew, run.ListingsNew)
			assert.Equal(t, 1, ledger.cleared)
		})
	}
}

func TestRunSite_ListingErrorsDoNotAbort(t *testing.T) {
	store := newFakeStore()
	o, f, ledger := newTestOrchestrator(t, testSite(), store)
	delete(f.pages, cardFull)

	require.NoError(t, o.RunSite(context.Background(), "otodom"))

	run := ledger.runs[0]
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.ErrorsCount)
	assert.Equal(t, 2, run.HTMLSaved)
	assert.Equal(t, []int64{66123456}, store.ingested, "the unlabelled card still ingests the ad")
}

func TestRunSite_SearchFailure(t *testing.T) {
	o, f, ledger := newTestOrchestrator(t, testSite(), newFakeStore())
	delete(f.pages, testSearchURL)

	err := o.RunSite(context.Background(), "otodom")
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 404, se.Code)
	assert.Equal(t, models.RunStatusFailed, ledger.runs[0].Status)
}

func TestRunSite_ResumesFromSavedPage(t *testing.T) {
	site := testSite()
	site.MaxPages = 3
	store := newFakeStore(66123456, 66123457)
	o, f, ledger := newTestOrchestrator(t, site, store)
	ledger.resume["otodom"] = 2
	f.pages[parser.PageURL(testSearchURL, 2)] = f.pages[testSearchURL]
	f.pages[parser.PageURL(testSearchURL, 3)] = f.pages[testSearchURL]

	require.NoError(t, o.RunSite(context.Background(), "otodom"))

	assert.Equal(t, 1, f.count(parser.PageURL(testSearchURL, 2)))
	assert.Equal(t, 1, f.count(parser.PageURL(testSearchURL, 3)))
	assert.Equal(t, 2, ledger.runs[0].PagesVisited)
	assert.Equal(t, []int{3}, ledger.resumes)
	assert.Equal(t, 1, ledger.cleared)
}

func TestRunSite_Errors(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, testSite(), newFakeStore())

	assert.ErrorContains(t, o.RunSite(context.Background(), "nope"), "unknown site")

	o.mu.Lock()
	assert.ErrorIs(t, o.RunSite(context.Background(), "otodom"), ErrBusy)
	o.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, o.RunSite(ctx, "otodom"), context.Canceled)
}

func TestHandleCommand(t *testing.T) {
	o, f, ledger := newTestOrchestrator(t, testSite(), newFakeStore())
	ctx := context.Background()

	require.NoError(t, o.HandleCommand(ctx, &models.Command{Command: models.CmdPause}))
	assert.True(t, o.IsPaused())

	require.NoError(t, o.HandleCommand(ctx, &models.Command{Command: models.CmdScrapeNow}))
	assert.Empty(t, f.fetched, "paused scraper does not run")

	require.NoError(t, o.HandleCommand(ctx, &models.Command{Command: models.CmdResume}))
	assert.False(t, o.IsPaused())

	cmd := &models.Command{Command: models.CmdScrapeSite, Params: json.RawMessage(`{"site":"otodom"}`)}
	require.NoError(t, o.HandleCommand(ctx, cmd))
	assert.Len(t, ledger.runs, 1)

	assert.Error(t, o.HandleCommand(ctx, &models.Command{Command: "explode"}))
}

func TestMarshalStatus(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, testSite(), newFakeStore())
	data, err := o.MarshalStatus()
	require.NoError(t, err)
	assert.JSONEq(t, `{"paused":false,"sites":["otodom"]}`, string(data))
}
