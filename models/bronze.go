package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// BronzeListing is one row of listings_bronze: the parsed payload plus the
// bookkeeping columns used for upserts and lookups.
type BronzeListing struct {
	ID         int64           `json:"id" db:"id"`
	Source     string          `json:"source" db:"source" validate:"required,max=32"`
	AdID       int64           `json:"ad_id" db:"ad_id" validate:"gt=0"`
	URL        *string         `json:"url" db:"url" validate:"omitempty,url"`
	Status     *string         `json:"status" db:"status" validate:"omitempty,max=32"`
	CreatedAt  *time.Time      `json:"created_at" db:"created_at"`
	ModifiedAt *time.Time      `json:"modified_at" db:"modified_at"`
	PushedUpAt *time.Time      `json:"pushed_up_at" db:"pushed_up_at"`
	Payload    json.RawMessage `json:"payload" db:"payload" validate:"required"`
	IngestedAt time.Time       `json:"ingested_at" db:"ingested_at"`
}

// BronzeFilter narrows LoadBronze lookups. Zero fields are ignored.
type BronzeFilter struct {
	Source string
	AdID   int64
	Status string
	Limit  int
}

// NewBronzeListing builds the storage envelope for a parsed listing.
// Source and status are normalized to trimmed lower case and the three
// timestamps are parsed from the payload's ISO strings.
func NewBronzeListing(p *ParsedListing) (*BronzeListing, error) {
	if p == nil {
		return nil, fmt.Errorf("nil payload")
	}
	if p.AdID == nil {
		return nil, fmt.Errorf("payload has no ad_id")
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	b := &BronzeListing{
		Source:  strings.ToLower(strings.TrimSpace(p.Source)),
		AdID:    *p.AdID,
		URL:     p.URL,
		Payload: payload,
	}
	if p.Status != nil {
		status := strings.ToLower(strings.TrimSpace(*p.Status))
		b.Status = &status
	}

	for _, ts := range []struct {
		name string
		src  *string
		dst  **time.Time
	}{
		{"created_at", p.CreatedAt, &b.CreatedAt},
		{"modified_at", p.ModifiedAt, &b.ModifiedAt},
		{"pushed_up_at", p.PushedUpAt, &b.PushedUpAt},
	} {
		t, err := ParseTimestamp(ts.src)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ts.name, err)
		}
		*ts.dst = t
	}

	return b, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp. Values without an offset are
// taken as UTC. Nil or blank input yields nil.
func ParseTimestamp(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid timestamp %q", v)
}

// HTMLFile records one raw page stored in object storage.
type HTMLFile struct {
	ID        int64     `json:"id" db:"id"`
	OfferID   string    `json:"offer_id" db:"offer_id"`
	URL       string    `json:"url" db:"url"`
	MinioKey  string    `json:"minio_key" db:"minio_key"`
	ScrapedAt time.Time `json:"scraped_at" db:"scraped_at"`
}

// ListingSummary is one organic result card from a search page.
type ListingSummary struct {
	AdID    *int64 `json:"ad_id"`
	OfferID string `json:"offer_id"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Address string `json:"address"`
}

// SearchParams is the pagination block of a search page.
type SearchParams struct {
	PageCount      int `json:"page_count"`
	ResultCount    int `json:"result_count"`
	ResultsPerPage int `json:"results_per_page"`
}
