package storage

import (
	"errors"

	"github.com/masahif/prodscrape/internal/scraper"
)

// Multi fans every write out to several storages. A failure in one does not
// skip the others.
type Multi []scraper.Storage

func (m Multi) SaveRecord(rec *scraper.Record) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.SaveRecord(rec))
	}
	return errors.Join(errs...)
}

func (m Multi) SaveError(e *scraper.ScrapeError) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.SaveError(e))
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
