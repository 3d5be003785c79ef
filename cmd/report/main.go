package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"realestate_ai/config"
	"realestate_ai/models"
	"realestate_ai/storage"
)

var (
	limit   = flag.Int("limit", 20, "Number of bronze rows and runs to show")
	source  = flag.String("source", "", "Filter bronze rows by source")
	status  = flag.String("status", "", "Filter bronze rows by status")
	adID    = flag.Int64("ad", 0, "Show a single ad id")
	enqueue = flag.String("enqueue", "", "Queue a daemon command (scrape_now, scrape_site, reparse, rebuild_silver, pause, resume)")
	site    = flag.String("site", "", "Site id for -enqueue scrape_site")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()

	if *enqueue != "" {
		id, err := sqliteStore.EnqueueCommand(models.CommandType(*enqueue), &models.CommandParams{Site: *site})
		if err != nil {
			log.Fatalf("Failed to enqueue %s: %v", *enqueue, err)
		}
		fmt.Printf("Queued command %d: %s\n", id, *enqueue)
		return
	}

	ctx := context.Background()
	pgStore, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()

	listings, err := pgStore.LoadBronze(ctx, models.BronzeFilter{Source: *source, Status: *status, AdID: *adID, Limit: *limit})
	if err != nil {
		log.Fatalf("Failed to load bronze: %v", err)
	}
	total, err := pgStore.CountBronze(ctx)
	if err != nil {
		log.Fatalf("Failed to count bronze: %v", err)
	}
	silverRows, err := pgStore.CountSilver(ctx, cfg.SilverTable)
	if err != nil {
		log.Fatalf("Failed to count %s: %v", cfg.SilverTable, err)
	}

	fmt.Printf("Bronze: %d rows, %s: %d rows\n\n", total, cfg.SilverTable, silverRows)
	renderBronze(os.Stdout, listings)

	runs, err := sqliteStore.RecentRuns(*limit)
	if err != nil {
		log.Fatalf("Failed to load runs: %v", err)
	}
	fmt.Println()
	renderRuns(os.Stdout, runs)

	var stats []*models.SiteStats
	for id := range cfg.Sites {
		st, err := sqliteStore.GetSiteStats(id)
		if err != nil {
			log.Printf("Warning: stats for %s: %v", id, err)
			continue
		}
		if st != nil {
			stats = append(stats, st)
		}
	}
	if len(stats) > 0 {
		fmt.Println()
		renderStats(os.Stdout, stats)
	}
}

func renderBronze(w io.Writer, listings []*models.BronzeListing) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"ID", "Source", "Ad ID", "Status", "Modified", "Ingested", "URL"})

	for _, l := range listings {
		t.AppendRow(table.Row{
			l.ID, l.Source, l.AdID, deref(l.Status), formatTime(l.ModifiedAt),
			l.IngestedAt.Format("2006-01-02 15:04"), truncate(deref(l.URL), 60),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Shown", len(listings)})
	t.Render()
}

func renderRuns(w io.Writer, runs []models.ScrapeRun) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Run", "Site", "Kind", "Status", "Pages", "Found", "Saved", "New", "Skipped", "Errors", "Duration", "Started At"})

	for _, r := range runs {
		duration := "Running..."
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		t.AppendRow(table.Row{
			r.ID, r.SiteID, r.Kind, r.Status, r.PagesVisited, r.ListingsFound, r.HTMLSaved,
			r.ListingsNew, r.ListingsSkipped, r.ErrorsCount, duration, r.StartedAt.Format("2006-01-02 15:04:05"),
		})
	}
	t.Render()
}

func renderStats(w io.Writer, stats []*models.SiteStats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Site", "Last Run", "Last Status", "Runs", "New Listings", "Success", "Avg Duration"})

	for _, s := range stats {
		t.AppendRow(table.Row{
			s.SiteID, formatTime(s.LastRunAt), s.LastRunStatus, s.TotalRuns, s.TotalListingsNew,
			fmt.Sprintf("%.0f%%", s.SuccessRate*100), (time.Duration(s.AvgRunDurationSec) * time.Second).String(),
		})
	}
	t.Render()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
