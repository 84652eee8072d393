package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masahif/prodscrape/internal/extractor"
	"github.com/masahif/prodscrape/internal/scraper"
)

func openSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "products.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteRequiresRun(t *testing.T) {
	s := openSQLite(t)

	assert.ErrorIs(t, s.SaveRecord(sampleRecord("https://shop.example.com/p/1")), ErrNoRun)
	assert.ErrorIs(t, s.SaveError(&scraper.ScrapeError{URL: "u", Cause: errors.New("x")}), ErrNoRun)
	assert.ErrorIs(t, s.FinishRun(scraper.Stats{}), ErrNoRun)
}

func TestSQLiteRun(t *testing.T) {
	s := openSQLite(t)
	const runID = "3f1c9a52-6c1e-4d8e-9c35-8f0c2b7a1d44"

	require.NoError(t, s.BeginRun(runID, "zap", 2))

	require.NoError(t, s.SaveRecord(sampleRecord("https://shop.example.com/p/1")))
	require.NoError(t, s.SaveError(&scraper.ScrapeError{
		URL:        "https://shop.example.com/p/1",
		Field:      extractor.FieldUPC,
		Cause:      extractor.ErrNotFound,
		OccurredAt: time.Now().UTC(),
	}))

	cause := errors.New("connection refused")
	require.NoError(t, s.SaveRecord(&scraper.Record{
		URL:       "https://shop.example.com/p/2",
		Failed:    true,
		Cause:     cause,
		ScrapedAt: time.Now().UTC(),
	}))
	require.NoError(t, s.SaveError(&scraper.ScrapeError{
		URL:        "https://shop.example.com/p/2",
		Cause:      cause,
		OccurredAt: time.Now().UTC(),
	}))

	summary, err := s.GetRunSummary(runID)
	require.NoError(t, err)
	assert.False(t, summary.Finished)
	assert.Equal(t, "zap", summary.Source)
	assert.Equal(t, 2, summary.URLCount)
	assert.Equal(t, 2, summary.Products)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Errors)

	require.NoError(t, s.FinishRun(scraper.Stats{Partial: 1, Failed: 1}))
	summary, err = s.GetRunSummary(runID)
	require.NoError(t, err)
	assert.True(t, summary.Finished)

	status, p, err := s.GetProduct(runID, "https://shop.example.com/p/1")
	require.NoError(t, err)
	assert.Equal(t, scraper.StatusPartial, status)
	assert.Equal(t, extractor.Found("TP-1042"), p.SKU)
	assert.Equal(t, extractor.NotFound, p.UPC)

	status, p, err = s.GetProduct(runID, "https://shop.example.com/p/2")
	require.NoError(t, err)
	assert.Equal(t, scraper.StatusFailed, status)
	assert.Equal(t, extractor.NotFound, p.SKU)
}

func TestSQLiteSeparateRuns(t *testing.T) {
	s := openSQLite(t)

	require.NoError(t, s.BeginRun("run-1", "zap", 1))
	require.NoError(t, s.SaveRecord(sampleRecord("https://shop.example.com/p/1")))

	require.NoError(t, s.BeginRun("run-2", "sitemap", 1))
	require.NoError(t, s.SaveRecord(sampleRecord("https://shop.example.com/p/1")))

	for _, id := range []string{"run-1", "run-2"} {
		summary, err := s.GetRunSummary(id)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Products, id)
	}

	_, err := s.GetRunSummary("run-3")
	assert.Error(t, err)
}
