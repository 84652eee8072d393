package source

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

const (
	// TruthyMarker must appear in a spider line for its URL to be used
	TruthyMarker = "true"
	// NoiseMarker excludes listing-sort permutations (case-insensitive)
	NoiseMarker = "sorting"
	// urlColumn is the zero-based comma column holding the URL
	urlColumn = 2
)

// ReadCrawlLog reads a ZAP spider export. The file is decoded as
// Windows-1252, the storefront's charset.
func ReadCrawlLog(path string) (*URLSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open crawl log: %w", err)
	}
	defer func() { _ = f.Close() }()

	urls, err := ParseCrawlLog(charmap.Windows1252.NewDecoder().Reader(f))
	if err != nil {
		return nil, fmt.Errorf("failed to read crawl log %s: %w", path, err)
	}
	return urls, nil
}

// ParseCrawlLog collects URLs from UTF-8 spider lines. A line qualifies
// when it contains TruthyMarker, does not contain NoiseMarker in any case,
// and has a non-empty URL column.
func ParseCrawlLog(r io.Reader) (*URLSet, error) {
	urls := NewURLSet()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lines, skipped := 0, 0
	for scanner.Scan() {
		lines++
		line := scanner.Text()

		if !strings.Contains(line, TruthyMarker) {
			continue
		}
		if strings.Contains(strings.ToLower(line), NoiseMarker) {
			skipped++
			continue
		}

		cols := strings.Split(line, ",")
		if len(cols) <= urlColumn {
			skipped++
			continue
		}

		urls.Add(cols[urlColumn])
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	slog.Debug("Parsed crawl log", "lines", lines, "skipped", skipped, "urls", urls.Len())
	return urls, nil
}
