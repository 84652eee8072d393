// Package fetch performs the single blocking GET used for product pages and
// sitemap feeds. Bodies are decoded to UTF-8 from the response charset.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"

	"golang.org/x/net/html/charset"
)

// Client handles HTTP requests with basic timing metrics
type Client struct {
	client    *http.Client
	userAgent string
}

// Metrics contains timing for one request
type Metrics struct {
	TTFB         time.Duration // Time to First Byte
	DownloadTime time.Duration // Total download time
}

// Response contains the decoded body and metrics
type Response struct {
	StatusCode  int
	Body        []byte // UTF-8
	RawSize     int64  // Bytes read off the wire before decoding
	ContentType string
	FinalURL    string // After following redirects
	Metrics     Metrics
}

// StatusError reports a response with a 4xx or 5xx status
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Err returns a *StatusError when the status code is 400 or above
func (r *Response) Err() error {
	if r.StatusCode >= http.StatusBadRequest {
		return &StatusError{URL: r.FinalURL, StatusCode: r.StatusCode}
	}
	return nil
}

// NewClient creates a new HTTP client. timeout bounds each request,
// including reading the body.
func NewClient(userAgent string, timeout time.Duration) *Client {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return &Client{
		client:    client,
		userAgent: userAgent,
	}
}

// Get performs an HTTP GET request. The body is transcoded to UTF-8 using
// the Content-Type charset, a BOM, or a <meta charset> prescan, in that
// order. Non-2xx responses are returned without error; use Response.Err.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	var firstByteTime time.Time
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() {
			firstByteTime = time.Now()
		},
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	startTime := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var metrics Metrics
	if !firstByteTime.IsZero() {
		metrics.TTFB = firstByteTime.Sub(startTime)
	}

	contentType := resp.Header.Get("Content-Type")
	counter := &countingReader{r: resp.Body}

	utf8Reader, err := charset.NewReader(counter, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to determine charset: %w", err)
	}

	body, err := io.ReadAll(utf8Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	metrics.DownloadTime = time.Since(startTime)

	return &Response{
		StatusCode:  resp.StatusCode,
		Body:        body,
		RawSize:     counter.n,
		ContentType: contentType,
		FinalURL:    resp.Request.URL.String(),
		Metrics:     metrics,
	}, nil
}

// Close closes idle connections
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
