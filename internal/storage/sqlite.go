// Package storage provides the output sinks for scrape runs: the result
// CSV and error log files, and an optional SQLite copy of each run.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/masahif/prodscrape/internal/extractor"
	"github.com/masahif/prodscrape/internal/scraper"
	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"
)

// ErrNoRun is returned when records are saved before BeginRun
var ErrNoRun = errors.New("no run started")

// SQLiteStorage implements scraper.Storage using SQLite
type SQLiteStorage struct {
	db    *sql.DB
	runID string
}

// RunSummary is the stored state of one run
type RunSummary struct {
	ID       string
	Source   string
	URLCount int
	Products int
	Failed   int
	Errors   int
	Finished bool
}

// NewSQLiteStorage opens dbPath and creates the schema
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection; the scraper already serializes writes
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	storage := &SQLiteStorage{db: db}

	if err := storage.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// InitSchema creates the database schema
func (s *SQLiteStorage) InitSchema() error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginRun records a new run; subsequent saves are attached to it
func (s *SQLiteStorage) BeginRun(runID, source string, urlCount int) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, source, url_count, started_at)
		VALUES (?, ?, ?, ?)
	`, runID, source, urlCount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to begin run: %w", err)
	}
	s.runID = runID
	return nil
}

// FinishRun stores the final counts of the current run
func (s *SQLiteStorage) FinishRun(stats scraper.Stats) error {
	if s.runID == "" {
		return ErrNoRun
	}
	_, err := s.db.Exec(`
		UPDATE runs SET
			finished_at = ?,
			complete_count = ?,
			partial_count = ?,
			failed_count = ?
		WHERE id = ?
	`, time.Now().UTC(), stats.Complete, stats.Partial, stats.Failed, s.runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

func nullable(v extractor.Value) sql.NullString {
	return sql.NullString{String: v.Text, Valid: v.Found}
}

// SaveRecord inserts one product row
func (s *SQLiteStorage) SaveRecord(rec *scraper.Record) error {
	if s.runID == "" {
		return ErrNoRun
	}

	var sku, title, description, upc, images, reason sql.NullString
	if p := rec.Product; p != nil && !rec.Failed {
		sku = nullable(p.SKU)
		title = sql.NullString{String: rec.Title, Valid: p.Title.Found}
		description = nullable(p.Description)
		upc = nullable(p.UPC)
		images = nullable(p.Images)
	}
	if rec.Cause != nil {
		reason = sql.NullString{String: rec.Cause.Error(), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO products (
			run_id, url, status, sku, title, description, upc,
			image_paths, failure_reason, scraped_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.runID,
		rec.URL,
		rec.Status(),
		sku,
		title,
		description,
		upc,
		images,
		reason,
		rec.ScrapedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// SaveError inserts one error row
func (s *SQLiteStorage) SaveError(e *scraper.ScrapeError) error {
	if s.runID == "" {
		return ErrNoRun
	}

	field := sql.NullString{String: string(e.Field), Valid: e.Field != ""}
	_, err := s.db.Exec(`
		INSERT INTO scrape_errors (run_id, url, field, message, occurred_at)
		VALUES (?, ?, ?, ?, ?)
	`, s.runID, e.URL, field, e.Error(), e.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to save error: %w", err)
	}
	return nil
}

// GetRunSummary returns the stored counts for runID
func (s *SQLiteStorage) GetRunSummary(runID string) (*RunSummary, error) {
	summary := &RunSummary{ID: runID}

	err := s.db.QueryRow(`
		SELECT
			r.source,
			r.url_count,
			r.finished_at IS NOT NULL,
			(SELECT COUNT(*) FROM products p WHERE p.run_id = r.id),
			(SELECT COUNT(*) FROM products p WHERE p.run_id = r.id AND p.status = 'failed'),
			(SELECT COUNT(*) FROM scrape_errors e WHERE e.run_id = r.id)
		FROM runs r
		WHERE r.id = ?
	`, runID).Scan(
		&summary.Source,
		&summary.URLCount,
		&summary.Finished,
		&summary.Products,
		&summary.Failed,
		&summary.Errors,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run summary: %w", err)
	}

	return summary, nil
}

// GetProduct returns the stored fields of url in runID; missing fields come
// back as NotFound
func (s *SQLiteStorage) GetProduct(runID, url string) (status string, product *extractor.Product, err error) {
	var sku, title, description, upc, images sql.NullString
	err = s.db.QueryRow(`
		SELECT status, sku, title, description, upc, image_paths
		FROM products
		WHERE run_id = ? AND url = ?
	`, runID, url).Scan(&status, &sku, &title, &description, &upc, &images)
	if err == sql.ErrNoRows {
		return "", nil, fmt.Errorf("product %s not found", url)
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to get product: %w", err)
	}

	value := func(ns sql.NullString) extractor.Value {
		if !ns.Valid {
			return extractor.NotFound
		}
		return extractor.Found(ns.String)
	}

	return status, &extractor.Product{
		SKU:         value(sku),
		Title:       value(title),
		Description: value(description),
		UPC:         value(upc),
		Images:      value(images),
	}, nil
}
