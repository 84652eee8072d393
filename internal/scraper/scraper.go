// Package scraper runs the extraction pipeline: every candidate URL is
// fetched, parsed once, run through the field extractor and written to
// storage as exactly one record.
package scraper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/masahif/prodscrape/internal/config"
)

// reportInterval is how often progress is logged during a run
const reportInterval = 10 * time.Second

// Scraper drives the per-URL pipeline
type Scraper struct {
	config    *config.Config
	processor PageProcessor
	storage   Storage

	stats      Stats
	statsMutex sync.RWMutex
	storeMutex sync.Mutex
}

// NewScraper creates a scraper. Up to cfg.Concurrency pages are processed
// at once; storage writes are always serialized.
func NewScraper(cfg *config.Config, processor PageProcessor, storage Storage) *Scraper {
	return &Scraper{
		config:    cfg,
		processor: processor,
		storage:   storage,
	}
}

// Run processes every URL once and returns the run statistics. Per-URL
// failures never stop the run; only cancellation of ctx does, in which
// case URLs not yet started get no record and ctx.Err() is returned.
func (s *Scraper) Run(ctx context.Context, urls []string) (Stats, error) {
	s.statsMutex.Lock()
	s.stats = Stats{URLs: len(urls), StartTime: time.Now()}
	s.statsMutex.Unlock()

	slog.Info("Starting scraper", "urls", len(urls), "concurrency", s.config.Concurrency)

	reporterCtx, stopReporter := context.WithCancel(ctx)
	reporterDone := make(chan struct{})
	go func() {
		defer close(reporterDone)
		s.statsReporter(reporterCtx)
	}()

	limit := s.config.Concurrency
	if limit <= 0 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, url := range urls {
		if gctx.Err() != nil {
			break
		}
		i, url := i, url
		g.Go(func() error {
			s.processURL(gctx, i, url)
			return nil
		})
	}
	_ = g.Wait()

	stopReporter()
	<-reporterDone

	stats := s.GetStats()
	slog.Info("Scraping completed",
		"urls", stats.URLs,
		"processed", stats.Processed,
		"complete", stats.Complete,
		"partial", stats.Partial,
		"failed", stats.Failed,
		"field_errors", stats.FieldErrors,
		"storage_errors", stats.StorageErrors,
		"downloaded", humanize.Bytes(uint64(stats.Bytes)),
		"duration", stats.Duration.Round(time.Millisecond))

	if err := ctx.Err(); err != nil {
		slog.Warn("Scraping cancelled", "unprocessed", stats.URLs-stats.Processed)
		return stats, err
	}
	return stats, nil
}

// GetStats returns current run statistics
func (s *Scraper) GetStats() Stats {
	s.statsMutex.RLock()
	defer s.statsMutex.RUnlock()

	stats := s.stats
	stats.Duration = time.Since(stats.StartTime)
	return stats
}

// processURL runs one URL through the processor and stores the outcome
func (s *Scraper) processURL(ctx context.Context, index int, url string) {
	result := s.processor.Process(ctx, url)
	storageErrors := s.save(result)
	s.recordResult(result, storageErrors)

	rec := result.Record
	if rec.Failed {
		slog.Warn("Page failed", "index", index, "url", url, "error", rec.Cause)
		return
	}
	slog.Info("Processed page", "index", index, "url", url, "status", rec.Status(), "missing_fields", len(result.Errors))
}

// save writes the record and then its error lines. It returns how many
// storage writes failed.
func (s *Scraper) save(result *PageResult) int {
	s.storeMutex.Lock()
	defer s.storeMutex.Unlock()

	failures := 0
	if err := s.storage.SaveRecord(result.Record); err != nil {
		slog.Error("Failed to save record", "url", result.Record.URL, "error", err)
		failures++
	}

	for _, scrapeErr := range result.Errors {
		if err := s.storage.SaveError(scrapeErr); err != nil {
			slog.Error("Failed to save error line", "url", scrapeErr.URL, "field", string(scrapeErr.Field), "error", err)
			failures++
		}
	}
	return failures
}

func (s *Scraper) recordResult(result *PageResult, storageErrors int) {
	s.statsMutex.Lock()
	defer s.statsMutex.Unlock()

	s.stats.Processed++
	s.stats.Bytes += result.Bytes
	s.stats.StorageErrors += storageErrors

	switch result.Record.Status() {
	case StatusComplete:
		s.stats.Complete++
	case StatusPartial:
		s.stats.Partial++
		s.stats.FieldErrors += len(result.Errors)
	case StatusFailed:
		s.stats.Failed++
	}
}

// statsReporter periodically reports progress until ctx is done
func (s *Scraper) statsReporter(ctx context.Context) {
	ticker := time.NewTicker(reportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := s.GetStats()
			slog.Info("Scraping progress",
				"processed", stats.Processed,
				"total", stats.URLs,
				"failed", stats.Failed,
				"downloaded", humanize.Bytes(uint64(stats.Bytes)),
				"duration", stats.Duration.Round(time.Second))
		}
	}
}
