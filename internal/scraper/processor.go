package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/masahif/prodscrape/internal/extractor"
)

// DefaultPageProcessor fetches a page, parses it once and runs the field
// extractor against it
type DefaultPageProcessor struct {
	fetcher    Fetcher
	extractor  *extractor.Extractor
	titleBrand string
}

// NewPageProcessor creates a page processor. titleBrand, when non-empty,
// turns on "<brand> <SKU> - <title>" display titles.
func NewPageProcessor(fetcher Fetcher, ex *extractor.Extractor, titleBrand string) PageProcessor {
	return &DefaultPageProcessor{
		fetcher:    fetcher,
		extractor:  ex,
		titleBrand: titleBrand,
	}
}

// Process processes a single page. It always returns a record; fetch and
// parse failures degrade it instead of returning an error.
func (p *DefaultPageProcessor) Process(ctx context.Context, url string) *PageResult {
	resp, err := p.fetcher.Get(ctx, url)
	if err != nil {
		return failedResult(url, err, 0)
	}
	if err := resp.Err(); err != nil {
		return failedResult(url, err, resp.RawSize)
	}

	// Relative image paths resolve against where the page actually lives
	base := url
	if resp.FinalURL != "" {
		base = resp.FinalURL
	}

	doc, err := extractor.Parse(base, resp.Body)
	if err != nil {
		return failedResult(url, err, resp.RawSize)
	}

	product, fieldErrs := p.extractor.Extract(url, doc)
	now := time.Now().UTC()

	result := &PageResult{
		Record: &Record{
			URL:       url,
			Product:   product,
			Title:     product.DisplayTitle(p.titleBrand),
			ScrapedAt: now,
		},
		Bytes: resp.RawSize,
	}

	for _, fe := range fieldErrs {
		result.Errors = append(result.Errors, &ScrapeError{
			URL:        fe.URL,
			Field:      fe.Field,
			Cause:      fe.Err,
			OccurredAt: now,
		})
	}

	slog.Debug("Extracted page", "url", url, "status", result.Record.Status(),
		"missing_fields", len(fieldErrs), "content_type", resp.ContentType,
		"ttfb", resp.Metrics.TTFB, "download_time", resp.Metrics.DownloadTime)

	return result
}

func failedResult(url string, cause error, size int64) *PageResult {
	now := time.Now().UTC()
	return &PageResult{
		Record: &Record{
			URL:       url,
			Failed:    true,
			Cause:     cause,
			ScrapedAt: now,
		},
		Errors: []*ScrapeError{{
			URL:        url,
			Cause:      cause,
			OccurredAt: now,
		}},
		Bytes: size,
	}
}
