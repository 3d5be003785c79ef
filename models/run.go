package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type RunKind string

const (
	RunKindScrape  RunKind = "scrape"
	RunKindReparse RunKind = "reparse"
	RunKindSilver  RunKind = "silver"
)

type ScrapeRun struct {
	ID              int64      `json:"id" db:"id"`
	SiteID          string     `json:"site_id" db:"site_id"`
	Kind            RunKind    `json:"kind" db:"kind"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	FinishedAt      *time.Time `json:"finished_at" db:"finished_at"`
	Status          RunStatus  `json:"status" db:"status"`
	PagesVisited    int        `json:"pages_visited" db:"pages_visited"`
	ListingsFound   int        `json:"listings_found" db:"listings_found"`
	HTMLSaved       int        `json:"html_saved" db:"html_saved"`
	ListingsNew     int        `json:"listings_new" db:"listings_new"`
	ListingsSkipped int        `json:"listings_skipped" db:"listings_skipped"`
	ErrorsCount     int        `json:"errors_count" db:"errors_count"`
}

type SiteStats struct {
	SiteID            string     `json:"site_id" db:"site_id"`
	LastRunAt         *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunStatus     string     `json:"last_run_status" db:"last_run_status"`
	TotalRuns         int        `json:"total_runs" db:"total_runs"`
	TotalListingsNew  int        `json:"total_listings_new" db:"total_listings_new"`
	SuccessRate       float64    `json:"success_rate" db:"success_rate"`
	AvgRunDurationSec int        `json:"avg_run_duration_sec" db:"avg_run_duration_sec"`
}
