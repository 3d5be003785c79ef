package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"realestate_ai/models"
)

func TestRenderBronze(t *testing.T) {
	status := "active"
	url := "https://www.otodom.pl/pl/oferta/mieszkanie-3-pokojowe-z-balkonem-i-widokiem-na-wawel-ID4pQr1"
	modified := time.Date(2025, 2, 1, 12, 30, 0, 0, time.UTC)

	var buf bytes.Buffer
	renderBronze(&buf, []*models.BronzeListing{{
		ID: 7, Source: "otodom", AdID: 66123456, Status: &status, URL: &url,
		ModifiedAt: &modified, IngestedAt: modified,
	}})

	out := buf.String()
	assert.Contains(t, out, "66123456")
	assert.Contains(t, out, "active")
	assert.Contains(t, out, "2025-02-01 12:30")
	assert.Contains(t, out, "...")
	assert.NotContains(t, out, "ID4pQr1", "long urls are truncated")
}

func TestRenderRuns(t *testing.T) {
	start := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(95 * time.Second)

	var buf bytes.Buffer
	renderRuns(&buf, []models.ScrapeRun{
		{ID: 1, SiteID: "otodom", Kind: models.RunKindScrape, Status: models.RunStatusCompleted, StartedAt: start, FinishedAt: &end, ListingsNew: 4},
		{ID: 2, SiteID: "otodom", Kind: models.RunKindScrape, Status: models.RunStatusRunning, StartedAt: end},
	})

	out := buf.String()
	assert.Contains(t, out, "1m35s")
	assert.Contains(t, out, "Running...")
	assert.Contains(t, out, "completed")
}

func TestRenderStats(t *testing.T) {
	var buf bytes.Buffer
	renderStats(&buf, []*models.SiteStats{{SiteID: "otodom", TotalRuns: 4, SuccessRate: 0.75, AvgRunDurationSec: 120}})

	out := buf.String()
	assert.Contains(t, out, "75%")
	assert.Contains(t, out, "2m0s")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"Kraków Podgórze", 9, "Kraków..."},
		{"exactly", 7, "exactly"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, truncate(tt.in, tt.n))
		})
	}
}
