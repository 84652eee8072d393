// Package source produces the candidate URL set from a ZAP spider export
// or a sitemap feed.
package source

import (
	"sort"
	"strings"
)

// URLSet is a deduplicated set of candidate URLs
type URLSet struct {
	urls map[string]struct{}
}

// NewURLSet creates an empty set
func NewURLSet() *URLSet {
	return &URLSet{urls: make(map[string]struct{})}
}

// NormalizeURL trims surrounding whitespace and quotes and strips the
// query string
func NormalizeURL(raw string) string {
	u := strings.Trim(raw, " \t\r\n\"")
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	return u
}

// Add normalizes raw and inserts it. It reports whether the URL was new.
func (s *URLSet) Add(raw string) bool {
	u := NormalizeURL(raw)
	if u == "" {
		return false
	}
	if _, ok := s.urls[u]; ok {
		return false
	}
	s.urls[u] = struct{}{}
	return true
}

// Len returns the number of distinct URLs
func (s *URLSet) Len() int {
	return len(s.urls)
}

// URLs returns the set sorted, so a single run processes URLs in a stable
// order
func (s *URLSet) URLs() []string {
	urls := make([]string, 0, len(s.urls))
	for u := range s.urls {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}
