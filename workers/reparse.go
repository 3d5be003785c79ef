package workers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"realestate_ai/logging"
	"realestate_ai/models"
	"realestate_ai/parser"
	"realestate_ai/services"
)

// PageQueue is the html_files view the reparse worker drains.
type PageQueue interface {
	PendingHTMLFiles(ctx context.Context, limit int) ([]models.HTMLFile, error)
	MarkHTMLFileProcessed(ctx context.Context, id int64, adID *int64) error
}

type Downloader interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

type Ingester interface {
	Ingest(ctx context.Context, p *models.ParsedListing) (*models.BronzeListing, error)
}

// ReparseStats counts the outcome of one batch.
type ReparseStats struct {
	Pending  int
	Ingested int
	Degraded int
	Invalid  int
	Failed   int
}

// ReparseWorker parses raw pages that are stored in object storage but
// never made it into bronze, e.g. after a crash or a parser fix.
type ReparseWorker struct {
	queue     PageQueue
	objects   Downloader
	ingest    Ingester
	triggerCh chan struct{}
	logFunc   LogFunc
}

func NewReparseWorker(queue PageQueue, objects Downloader, ingest Ingester) *ReparseWorker {
	return &ReparseWorker{
		queue:     queue,
		objects:   objects,
		ingest:    ingest,
		triggerCh: make(chan struct{}, 1),
		logFunc:   NoOpLogger,
	}
}

func (w *ReparseWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to run immediately
func (w *ReparseWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

func (w *ReparseWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Reparse worker stopping")
			return
		case <-ticker.C:
			w.ProcessBatch(ctx, batchSize)
		case <-w.triggerCh:
			log.Println("Reparse worker triggered manually")
			w.ProcessBatch(ctx, batchSize)
		}
	}
}

// ProcessBatch reparses up to batchSize pending pages. Pages that cannot
// produce a bronze row are marked processed; transient failures stay
// pending for the next batch.
func (w *ReparseWorker) ProcessBatch(ctx context.Context, batchSize int) (ReparseStats, error) {
	var stats ReparseStats

	files, err := w.queue.PendingHTMLFiles(ctx, batchSize)
	if err != nil {
		log.Printf("Reparse: query error: %v", err)
		return stats, fmt.Errorf("pending html files: %w", err)
	}
	stats.Pending = len(files)
	if len(files) == 0 {
		return stats, nil
	}

	log.Printf("Reparse: processing %d stored pages", len(files))

	for _, f := range files {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		adID, err := w.reparse(ctx, &f)
		switch {
		case err == nil && adID == nil:
			stats.Degraded++
			w.logFunc(models.LogLevelWarn, "reparse", fmt.Sprintf("No listing data in %s", f.MinioKey))
		case err == nil:
			stats.Ingested++
		case errors.Is(err, services.ErrInvalid):
			stats.Invalid++
			w.logFunc(models.LogLevelWarn, "reparse", fmt.Sprintf("Invalid listing in %s: %v", f.MinioKey, err))
		default:
			stats.Failed++
			log.Printf("Reparse: %s: %v", f.MinioKey, err)
			w.logFunc(models.LogLevelError, "reparse", fmt.Sprintf("%s: %v", f.MinioKey, err))
			continue
		}

		if err := w.queue.MarkHTMLFileProcessed(ctx, f.ID, adID); err != nil {
			stats.Failed++
			log.Printf("Reparse: mark %d processed: %v", f.ID, err)
		}
	}

	msg := fmt.Sprintf("Batch complete: %d ingested, %d degraded, %d invalid, %d failed",
		stats.Ingested, stats.Degraded, stats.Invalid, stats.Failed)
	log.Printf("Reparse: %s", msg)
	w.logFunc(models.LogLevelInfo, "reparse", msg)
	return stats, nil
}

func (w *ReparseWorker) reparse(ctx context.Context, f *models.HTMLFile) (*int64, error) {
	body, err := w.objects.Download(ctx, f.MinioKey)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}

	parsed := parser.ParseReader(bytes.NewReader(body))
	logging.Debugf("Reparse: %s -> ad %v", f.MinioKey, parsed.AdID != nil)
	if parsed.AdID == nil {
		return nil, nil
	}

	b, err := w.ingest.Ingest(ctx, parsed)
	if err != nil {
		return parsed.AdID, err
	}
	return &b.AdID, nil
}
