package scraper

import (
	"fmt"
	"time"

	"github.com/masahif/prodscrape/internal/extractor"
)

// FailureMarker replaces the fields of a record whose page could not be
// fetched or parsed
const FailureMarker = "FAILURE - SEE LOGS"

// Header is the first row of the result file
var Header = []string{"URL", "SKU", "TITLE", "DESCRIPTION", "UPC", "IMAGE_PATH(s)"}

// Record statuses
const (
	StatusComplete = "complete" // every field found
	StatusPartial  = "partial"  // at least one field missing
	StatusFailed   = "failed"   // fetch or parse failure
)

// Record is the output unit for one candidate URL
type Record struct {
	URL       string
	Product   *extractor.Product // nil when Failed
	Title     string             // Display title, composed when a brand is configured
	Failed    bool
	Cause     error // Why the record is degraded
	ScrapedAt time.Time
}

// Status classifies the record
func (r *Record) Status() string {
	if r.Failed || r.Product == nil {
		return StatusFailed
	}
	p := r.Product
	if p.SKU.Found && p.Title.Found && p.Description.Found && p.UPC.Found && p.Images.Found {
		return StatusComplete
	}
	return StatusPartial
}

// Columns returns the record as a result-file row. Positions are fixed;
// missing fields are empty strings.
func (r *Record) Columns() []string {
	if r.Failed || r.Product == nil {
		return []string{r.URL, FailureMarker, "", "", "", ""}
	}
	p := r.Product
	return []string{
		r.URL,
		p.SKU.String(),
		r.Title,
		p.Description.String(),
		p.UPC.String(),
		p.Images.String(),
	}
}

// ScrapeError is one line of the error log
type ScrapeError struct {
	URL        string
	Field      extractor.Field // Empty when the whole page failed
	Cause      error
	OccurredAt time.Time
}

func (e *ScrapeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("URL %s failed, no additional processing. %v", e.URL, e.Cause)
	}
	return fmt.Sprintf("URL %s failed to parse the %s. %v", e.URL, e.Field, e.Cause)
}

func (e *ScrapeError) Unwrap() error {
	return e.Cause
}

// Stats summarizes a run
type Stats struct {
	URLs          int
	Processed     int
	Complete      int
	Partial       int
	Failed        int
	FieldErrors   int
	StorageErrors int
	Bytes         int64
	StartTime     time.Time
	Duration      time.Duration
}
