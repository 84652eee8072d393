package source

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/masahif/prodscrape/internal/fetch"
)

// sitemapLinkIndex is the position of the link element inside each entry
const sitemapLinkIndex = 4

// ErrEmptySitemap is returned when a feed parses but yields no URLs
var ErrEmptySitemap = errors.New("sitemap contains no product URLs")

// Getter fetches a URL
type Getter interface {
	Get(ctx context.Context, url string) (*fetch.Response, error)
}

type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []xmlNode  `xml:",any"`
}

func (n *xmlNode) attr(local string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// FetchSitemap downloads and parses the feed at feedURL. Every failure is
// returned: without a URL list there is nothing to scrape.
func FetchSitemap(ctx context.Context, g Getter, feedURL string) (*URLSet, error) {
	resp, err := g.Get(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sitemap: %w", err)
	}
	if err := resp.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch sitemap %s: %w", feedURL, err)
	}

	urls, err := ParseSitemap(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse sitemap %s: %w", feedURL, err)
	}
	return urls, nil
}

// ParseSitemap reads a UTF-8 feed. For each top-level entry the URL is the
// href attribute of its fifth child element; entries without one are
// skipped.
func ParseSitemap(r io.Reader) (*URLSet, error) {
	dec := xml.NewDecoder(r)
	// Bodies are already UTF-8; ignore the declared encoding.
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var root xmlNode
	if err := dec.Decode(&root); err != nil {
		return nil, err
	}

	urls := NewURLSet()
	for i := range root.Children {
		entry := &root.Children[i]
		if len(entry.Children) <= sitemapLinkIndex {
			slog.Debug("Skipping sitemap entry", "element", entry.XMLName.Local, "children", len(entry.Children))
			continue
		}
		href, ok := entry.Children[sitemapLinkIndex].attr("href")
		if !ok {
			slog.Debug("Skipping sitemap entry without href", "element", entry.XMLName.Local)
			continue
		}
		urls.Add(href)
	}

	if urls.Len() == 0 {
		return nil, ErrEmptySitemap
	}
	return urls, nil
}
