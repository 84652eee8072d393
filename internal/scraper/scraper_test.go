package scraper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masahif/prodscrape/internal/config"
	"github.com/masahif/prodscrape/internal/extractor"
)

// MockStorage collects everything the scraper writes
type MockStorage struct {
	mu       sync.Mutex
	records  []*Record
	errors   []*ScrapeError
	inFlight int32
	overlap  bool
	failSave bool
}

func (m *MockStorage) enter() {
	if atomic.AddInt32(&m.inFlight, 1) > 1 {
		m.overlap = true
	}
	time.Sleep(time.Millisecond)
}

func (m *MockStorage) leave() {
	atomic.AddInt32(&m.inFlight, -1)
}

func (m *MockStorage) SaveRecord(rec *Record) error {
	m.enter()
	defer m.leave()
	if m.failSave {
		return errors.New("disk full")
	}
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
	return nil
}

func (m *MockStorage) SaveError(e *ScrapeError) error {
	m.enter()
	defer m.leave()
	m.mu.Lock()
	m.errors = append(m.errors, e)
	m.mu.Unlock()
	return nil
}

func (m *MockStorage) Close() error { return nil }

func (m *MockStorage) recordURLs() []string {
	urls := make([]string, 0, len(m.records))
	for _, rec := range m.records {
		urls = append(urls, rec.URL)
	}
	sort.Strings(urls)
	return urls
}

func testConfig(concurrency int) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Concurrency = concurrency
	cfg.RequestTimeout = 5 * time.Second
	return cfg
}

func TestRunEndToEnd(t *testing.T) {
	server := newShop(t)
	urls := []string{
		server.URL + "/full",
		server.URL + "/missing-page",
		server.URL + "/no-upc",
	}

	store := &MockStorage{}
	s := NewScraper(testConfig(1), newTestProcessor(""), store)

	stats, err := s.Run(context.Background(), urls)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.URLs)
	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 1, stats.Complete)
	assert.Equal(t, 1, stats.Partial)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.FieldErrors)

	require.Len(t, store.records, 3)
	// concurrency 1 keeps input order
	for i, rec := range store.records {
		assert.Equal(t, urls[i], rec.URL)
	}
	assert.Equal(t, StatusComplete, store.records[0].Status())
	assert.Equal(t, []string{urls[1], FailureMarker, "", "", "", ""}, store.records[1].Columns())
	assert.Equal(t, "", store.records[2].Columns()[4])

	require.Len(t, store.errors, 2)
	assert.Equal(t, fmt.Sprintf("URL %s failed, no additional processing. unexpected status 404 Not Found", urls[1]),
		store.errors[0].Error())
	assert.Equal(t, urls[2], store.errors[1].URL)
	assert.Equal(t, "UPC", string(store.errors[1].Field))
}

// slowProcessor tracks how many pages are in flight at once
type slowProcessor struct {
	inFlight int32
	peak     int32
}

func (p *slowProcessor) Process(ctx context.Context, url string) *PageResult {
	n := atomic.AddInt32(&p.inFlight, 1)
	for {
		peak := atomic.LoadInt32(&p.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&p.peak, peak, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	atomic.AddInt32(&p.inFlight, -1)

	if url == "bad" {
		return failedResult(url, errors.New("connection refused"), 0)
	}
	return &PageResult{
		Record: &Record{URL: url, Product: &extractor.Product{SKU: extractor.Found(url)}},
		Bytes:  100,
	}
}

func TestRunConcurrencyLimit(t *testing.T) {
	tests := []struct {
		name        string
		concurrency int
		urls        int
	}{
		{"sequential", 1, 5},
		{"three workers", 3, 12},
		{"more workers than urls", 10, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			urls := make([]string, tt.urls)
			for i := range urls {
				urls[i] = fmt.Sprintf("https://shop.example.com/p/%d", i)
			}

			proc := &slowProcessor{}
			store := &MockStorage{}
			s := NewScraper(testConfig(tt.concurrency), proc, store)

			stats, err := s.Run(context.Background(), urls)
			require.NoError(t, err)

			assert.Equal(t, tt.urls, stats.Processed)
			assert.Equal(t, int64(100*tt.urls), stats.Bytes)
			assert.LessOrEqual(t, int(proc.peak), tt.concurrency)
			assert.False(t, store.overlap, "storage calls overlapped")

			want := append([]string(nil), urls...)
			sort.Strings(want)
			assert.Equal(t, want, store.recordURLs())
		})
	}
}

func TestRunSerializesStorage(t *testing.T) {
	urls := []string{"a", "bad", "c", "bad", "e", "f"}

	store := &MockStorage{}
	s := NewScraper(testConfig(6), &slowProcessor{}, store)

	stats, err := s.Run(context.Background(), urls)
	require.NoError(t, err)

	assert.False(t, store.overlap, "storage calls overlapped")
	assert.Equal(t, 2, stats.Failed)
	assert.Len(t, store.errors, 2)
}

func TestRunStorageFailureDoesNotStop(t *testing.T) {
	store := &MockStorage{failSave: true}
	s := NewScraper(testConfig(2), &slowProcessor{}, store)

	stats, err := s.Run(context.Background(), []string{"a", "b", "bad"})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 3, stats.StorageErrors)
	assert.Len(t, store.errors, 1)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &MockStorage{}
	s := NewScraper(testConfig(1), &slowProcessor{}, store)

	stats, err := s.Run(ctx, []string{"a", "b", "c"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.Processed)
	assert.Empty(t, store.records)
}

func TestRunEmpty(t *testing.T) {
	s := NewScraper(testConfig(1), &slowProcessor{}, &MockStorage{})

	stats, err := s.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, stats.Processed)
}

func TestRecordStatus(t *testing.T) {
	r := &Record{URL: "u", Failed: true, Cause: errors.New("x")}
	assert.Equal(t, StatusFailed, r.Status())
	assert.Equal(t, []string{"u", FailureMarker, "", "", "", ""}, r.Columns())
}
