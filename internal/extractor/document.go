// Package extractor holds the selector rules for the product page template
// and the field extractor that isolates their failures.
package extractor

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is a parsed product page. It is built once per URL and shared
// read-only by every rule; nothing may mutate the tree after Parse returns.
type Document struct {
	url   *url.URL
	root  *html.Node
	query *goquery.Document
}

// Parse builds a Document from a UTF-8 page body
func Parse(pageURL string, body []byte) (*Document, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}

	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return &Document{
		url:   u,
		root:  root,
		query: goquery.NewDocumentFromNode(root),
	}, nil
}

// Root returns the tree root for XPath queries
func (d *Document) Root() *html.Node {
	return d.root
}

// Query returns a CSS selector view over the same tree
func (d *Document) Query() *goquery.Document {
	return d.query
}

// Resolve makes ref absolute against the page URL. Unparseable refs fall
// back to plain "scheme://host" + ref concatenation.
func (d *Document) Resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	u, err := url.Parse(ref)
	if err != nil {
		return d.url.Scheme + "://" + d.url.Host + ref
	}
	return d.url.ResolveReference(u).String()
}
