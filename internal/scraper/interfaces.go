package scraper

import (
	"context"

	"github.com/masahif/prodscrape/internal/fetch"
)

// PageProcessor turns one candidate URL into a record
type PageProcessor interface {
	Process(ctx context.Context, url string) *PageResult
}

// Storage receives records and error-log lines. The scraper serializes
// calls, so implementations need no locking of their own.
type Storage interface {
	SaveRecord(rec *Record) error
	SaveError(err *ScrapeError) error
	Close() error
}

// PageResult is the outcome of processing a single page
type PageResult struct {
	Record *Record
	Errors []*ScrapeError
	Bytes  int64 // Response size on the wire
}

// Fetcher performs the page GET
type Fetcher interface {
	Get(ctx context.Context, url string) (*fetch.Response, error)
}
