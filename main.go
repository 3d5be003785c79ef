package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"realestate_ai/config"
	"realestate_ai/httputil"
	"realestate_ai/logging"
	"realestate_ai/models"
	"realestate_ai/scheduler"
	"realestate_ai/scraper"
	"realestate_ai/services"
	"realestate_ai/storage"
	"realestate_ai/workers"
)

var (
	scrapeNow   = flag.Bool("scrape", false, "Run scrape once and exit")
	siteID      = flag.String("site", "", "Limit -scrape to one site id")
	rebuildNow  = flag.Bool("silver", false, "Rebuild the silver table once and exit")
	reparseNow  = flag.Bool("reparse", false, "Reparse pending stored pages once and exit")
	reparseSize = flag.Int("batch", 0, "Batch size for -reparse (default REPARSE_BATCH)")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogFile, 0)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}
	logging.SetLevel(cfg.LogLevel)

	log.Println("Starting realestate_ai...")
	log.Printf("Loaded %d site configs", len(cfg.Sites))
	for id, site := range cfg.Sites {
		log.Printf("  - %s (%s, fetcher %s)", site.Name, id, site.Fetcher)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgStore, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()
	log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.DatabaseURL))

	if err := pgStore.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	bronze := services.NewBronzeService(pgStore)
	silver := services.NewSilverService(pgStore, cfg.SilverTable)

	if *rebuildNow {
		log.Println("Rebuilding silver...")
		res, err := silver.Rebuild(ctx)
		if err != nil {
			log.Fatalf("Silver rebuild failed: %v", err)
		}
		log.Printf("Silver complete: %d rows, %d failed", res.Written, len(res.Failed))
		return
	}

	objects, err := storage.NewObjectStore(ctx, storage.S3Config{
		Bucket:          cfg.MinIO.Bucket,
		Region:          cfg.MinIO.Region,
		Endpoint:        cfg.MinIO.Endpoint,
		AccessKeyID:     cfg.MinIO.AccessKey,
		SecretAccessKey: cfg.MinIO.SecretKey,
	})
	if err != nil {
		log.Fatalf("Failed to create object store: %v", err)
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		log.Fatalf("Failed to ensure bucket %s: %v", objects.Bucket(), err)
	}
	log.Printf("Object store bucket: %s", objects.Bucket())

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	reparseWorker := workers.NewReparseWorker(pgStore, objects, bronze)
	reparseWorker.SetLogger(func(level models.LogLevel, component, message string) {
		sqliteStore.Log(nil, level, component, message, "")
	})

	if *reparseNow {
		size := *reparseSize
		if size <= 0 {
			size = cfg.Scheduler.ReparseBatch
		}
		stats, err := reparseWorker.ProcessBatch(ctx, size)
		if err != nil {
			log.Fatalf("Reparse failed: %v", err)
		}
		log.Printf("Reparse complete: %d of %d pending ingested", stats.Ingested, stats.Pending)
		return
	}

	clients, err := httputil.NewClients(cfg.Scraper.ProxyURL)
	if err != nil {
		log.Fatalf("Failed to create HTTP clients: %v", err)
	}
	if clients.ProxyURL != nil {
		log.Printf("Proxy: %s", clients.ProxyURL.Host)
	}

	orchestrator := scraper.NewOrchestrator(cfg, sqliteStore, pgStore, objects, bronze, clients)
	defer orchestrator.Close()

	if *scrapeNow {
		log.Println("Running scrape...")
		if *siteID != "" {
			err = orchestrator.RunSite(ctx, *siteID)
		} else {
			err = orchestrator.RunAll(ctx)
		}
		if err != nil {
			log.Fatalf("Scrape failed: %v", err)
		}
		log.Println("Scrape complete!")
		return
	}

	// Daemon mode
	sched := scheduler.New(cfg, orchestrator, sqliteStore)
	sched.SetWorkers(reparseWorker, silver)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	go reparseWorker.Run(ctx, cfg.Scheduler.ReparseBatch, cfg.Scheduler.ReparseEvery)
	log.Printf("Reparse worker started (batch %d every %s)", cfg.Scheduler.ReparseBatch, cfg.Scheduler.ReparseEvery)

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	sched.Stop()
	log.Println("Goodbye!")
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	// Simple mask - find :// and mask until @
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
