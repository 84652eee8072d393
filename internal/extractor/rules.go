package extractor

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Field names a product attribute. The string form is what the error log
// prints after "failed to parse the".
type Field string

const (
	FieldSKU         Field = "SKU"
	FieldTitle       Field = "TITLE"
	FieldDescription Field = "DESCRIPTION"
	FieldUPC         Field = "UPC"
	FieldImages      Field = "Image Path(s)"
)

var (
	// ErrNotFound is wrapped by every strategy that finds no value
	ErrNotFound = errors.New("element not found")
	// ErrSKURequired is returned by the image rule when the page has no SKU
	ErrSKURequired = errors.New("image selection requires the page SKU")
)

// Value is a field result: either Found(text) or NotFound
type Value struct {
	Text  string
	Found bool
}

// NotFound is the zero Value
var NotFound = Value{}

// Found wraps a located value
func Found(text string) Value {
	return Value{Text: text, Found: true}
}

// String returns the text, empty when missing
func (v Value) String() string {
	return v.Text
}

// Strategy is one way of locating a field
type Strategy func(doc *Document) (string, error)

// Rule locates one field in a Document
type Rule interface {
	Field() Field
	Extract(doc *Document) (string, error)
}

// Chain is a Rule that tries its strategies in order; the first success wins
type Chain struct {
	field      Field
	strategies []Strategy
}

// NewChain returns a Rule for field backed by the given strategies
func NewChain(field Field, strategies ...Strategy) *Chain {
	return &Chain{field: field, strategies: strategies}
}

// Field implements Rule
func (c *Chain) Field() Field {
	return c.field
}

// Extract implements Rule. When every strategy fails the returned error
// carries all of their causes.
func (c *Chain) Extract(doc *Document) (string, error) {
	var errs strategyErrors
	for _, strategy := range c.strategies {
		value, err := strategy(doc)
		if err == nil {
			return value, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", ErrNotFound
	}
	return "", errs
}

type strategyErrors []error

func (e strategyErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e strategyErrors) Unwrap() []error {
	return e
}

// FirstText returns the first non-blank text of the nodes matched by expr
func FirstText(expr *xpath.Expr) Strategy {
	return func(doc *Document) (string, error) {
		for _, n := range htmlquery.QuerySelectorAll(doc.Root(), expr) {
			if text := strings.TrimSpace(htmlquery.InnerText(n)); text != "" {
				return text, nil
			}
		}
		return "", fmt.Errorf("no text at %s: %w", expr, ErrNotFound)
	}
}

// ContainerText reads the direct text of the element matched by expr.
// Emphasis runs (strong, b, em) split the text into several nodes, so they
// are spliced back in reading order.
func ContainerText(expr *xpath.Expr) Strategy {
	return func(doc *Document) (string, error) {
		container := htmlquery.QuerySelector(doc.Root(), expr)
		if container == nil {
			return "", fmt.Errorf("no container at %s: %w", expr, ErrNotFound)
		}

		var b strings.Builder
		for c := container.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case c.Type == html.TextNode:
				b.WriteString(c.Data)
			case c.Type != html.ElementNode:
			case c.DataAtom == atom.Strong, c.DataAtom == atom.B, c.DataAtom == atom.Em:
				b.WriteString(htmlquery.InnerText(c))
			case c.DataAtom == atom.Br:
				b.WriteString(" ")
			}
		}

		text := collapseSpace(b.String())
		if text == "" {
			return "", fmt.Errorf("empty container at %s: %w", expr, ErrNotFound)
		}
		return text, nil
	}
}

// MatchingText returns the first node text, in document order, that
// contains a match for pattern. The whole trimmed text is returned.
func MatchingText(expr *xpath.Expr, pattern *regexp.Regexp) Strategy {
	return func(doc *Document) (string, error) {
		nodes := htmlquery.QuerySelectorAll(doc.Root(), expr)
		for _, n := range nodes {
			text := strings.TrimSpace(htmlquery.InnerText(n))
			if pattern.MatchString(text) {
				return text, nil
			}
		}
		return "", fmt.Errorf("none of %d values at %s match %s: %w", len(nodes), expr, pattern, ErrNotFound)
	}
}

// ImageTier collects every image matched by selector whose resolved,
// lower-cased URL contains marker, tier and sku. Duplicates are dropped and
// document order is kept.
func ImageTier(selector, marker, tier, sku, sep string) Strategy {
	sku = strings.ToLower(sku)
	return func(doc *Document) (string, error) {
		var images []string
		seen := make(map[string]struct{})

		doc.Query().Find(selector).Each(func(_ int, s *goquery.Selection) {
			src, ok := s.Attr("src")
			if !ok || strings.TrimSpace(src) == "" {
				return
			}

			candidate := strings.ToLower(doc.Resolve(src))
			// Resolving escapes the path; match against the literal text
			literal := candidate
			if unescaped, err := url.PathUnescape(candidate); err == nil {
				literal = unescaped
			}
			if !strings.Contains(literal, marker) ||
				!strings.Contains(literal, tier) ||
				!strings.Contains(literal, sku) {
				return
			}

			if _, dup := seen[candidate]; dup {
				return
			}
			seen[candidate] = struct{}{}
			images = append(images, candidate)
		})

		if len(images) == 0 {
			return "", fmt.Errorf("no %s %s image for sku %q: %w", tier, marker, sku, ErrNotFound)
		}
		return strings.Join(images, sep), nil
	}
}

func failWith(err error) Strategy {
	return func(*Document) (string, error) {
		return "", err
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
