package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"github.com/masahif/prodscrape/internal/scraper"
)

// FileStorage writes the result CSV and the plain-text error log. Both are
// Windows-1252 encoded to match the storefront's charset; characters with
// no Windows-1252 form are written as '?' and logged.
type FileStorage struct {
	results    *os.File
	resultsEnc *transform.Writer
	csv        *csv.Writer

	errors    *os.File
	errorsEnc *transform.Writer
}

// replacementChar stands in for runes Windows-1252 cannot encode
const replacementChar = '?'

func encodable(r rune) bool {
	_, ok := charmap.Windows1252.EncodeRune(r)
	return ok
}

func newEncoder(w io.Writer) *transform.Writer {
	replace := runes.Map(func(r rune) rune {
		if encodable(r) {
			return r
		}
		return replacementChar
	})
	return transform.NewWriter(w, transform.Chain(replace, charmap.Windows1252.NewEncoder()))
}

// unencodable counts the runes of s that will be replaced
func unencodable(s string) int {
	n := 0
	for _, r := range s {
		if !encodable(r) {
			n++
		}
	}
	return n
}

// NewFileStorage truncates resultPath and writes the header row, and opens
// errorPath for appending. Both handles stay open for the whole run.
func NewFileStorage(resultPath, errorPath string) (*FileStorage, error) {
	results, err := os.OpenFile(resultPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open result file: %w", err)
	}

	errFile, err := os.OpenFile(errorPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		_ = results.Close()
		return nil, fmt.Errorf("failed to open error file: %w", err)
	}

	s := &FileStorage{
		results:   results,
		errors:    errFile,
		errorsEnc: newEncoder(errFile),
	}
	s.resultsEnc = newEncoder(results)
	s.csv = csv.NewWriter(s.resultsEnc)
	s.csv.UseCRLF = true

	if err := s.writeRow(scraper.Header); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	return s, nil
}

// SaveRecord appends one row and flushes it
func (s *FileStorage) SaveRecord(rec *scraper.Record) error {
	row := rec.Columns()
	for i, col := range row {
		if n := unencodable(col); n > 0 {
			slog.Warn("Replaced characters with no Windows-1252 form",
				"url", rec.URL, "column", scraper.Header[i], "replaced", n)
		}
	}
	return s.writeRow(row)
}

func (s *FileStorage) writeRow(row []string) error {
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.csv.Flush()
	return s.csv.Error()
}

// SaveError appends one line to the error log
func (s *FileStorage) SaveError(e *scraper.ScrapeError) error {
	if _, err := io.WriteString(s.errorsEnc, e.Error()+"\n"); err != nil {
		return fmt.Errorf("failed to write error line: %w", err)
	}
	return nil
}

// Close flushes both encoders and closes the files
func (s *FileStorage) Close() error {
	s.csv.Flush()
	return errors.Join(
		s.csv.Error(),
		s.resultsEnc.Close(),
		s.results.Close(),
		s.errorsEnc.Close(),
		s.errors.Close(),
	)
}
