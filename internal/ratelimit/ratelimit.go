// Package ratelimit provides a paced HTTP client for the media server.
//
// Requests are spaced so no more than the configured number start per
// second. A 429 answer is reported as a RateLimitError carrying the server's
// Retry-After hint; the request is not repeated.
package ratelimit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Config holds configuration for the paced HTTP client.
type Config struct {
	// RequestsPerSecond caps how many requests start per second.
	// Default: 5
	RequestsPerSecond float64

	// Timeout bounds each request including reading the response headers.
	// Default: 30 seconds
	Timeout time.Duration

	// Stats is an optional stats tracker for recording rate limit events.
	Stats *Stats

	// Service name for error messages.
	Service string
}

// Client is an HTTP client that paces outgoing requests.
type Client struct {
	httpClient *http.Client
	interval   time.Duration
	stats      *Stats
	service    string

	mu   sync.Mutex
	next time.Time
}

// NewClient creates a new paced HTTP client with the given configuration.
func NewClient(cfg Config) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		interval:   time.Duration(float64(time.Second) / rps),
		stats:      cfg.Stats,
		service:    cfg.Service,
	}
}

// Do performs an HTTP request once its slot comes up. Headers in header are
// copied onto the request.
func (c *Client) Do(ctx context.Context, method, url string, body io.Reader, header http.Header) (*http.Response, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	var length int64 = -1
	if body != nil {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
		length = int64(len(data))
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if length >= 0 {
		req.ContentLength = length
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		_ = resp.Body.Close()
		if c.stats != nil {
			c.stats.RecordRateLimit()
		}
		rle := &RateLimitError{Service: c.service}
		if d := ParseRetryAfter(resp.Header.Get("Retry-After")); d != nil {
			rle.RetryAfter = *d
		}
		return nil, rle
	}

	return resp, nil
}

// wait reserves the next request slot and sleeps until it starts.
func (c *Client) wait(ctx context.Context) error {
	c.mu.Lock()
	now := time.Now()
	start := c.next
	if start.Before(now) {
		start = now
	}
	c.next = start.Add(c.interval)
	c.mu.Unlock()

	delay := time.Until(start)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Interval returns the minimum spacing between request starts.
func (c *Client) Interval() time.Duration {
	return c.interval
}

// RateLimitError is returned when the server answers 429.
type RateLimitError struct {
	Service    string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	service := e.Service
	if service == "" {
		service = "server"
	}
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limit exceeded, retry after %s", service, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limit exceeded", service)
}

// ParseRetryAfter parses the Retry-After header value.
// It supports both seconds format (integer) and HTTP-date format.
// Returns nil if the value is invalid or empty.
func ParseRetryAfter(value string) *time.Duration {
	if value == "" {
		return nil
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds < 0 {
			return nil
		}
		d := time.Duration(seconds) * time.Second
		return &d
	}

	if t, err := http.ParseTime(value); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return &d
	}

	return nil
}

// Stats tracks rate limit statistics.
type Stats struct {
	mu              sync.RWMutex
	rateLimitCount  int64
	lastRateLimitAt time.Time
}

// NewStats creates a new Stats instance.
func NewStats() *Stats {
	return &Stats{}
}

// RecordRateLimit records a rate limit event.
func (s *Stats) RecordRateLimit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimitCount++
	s.lastRateLimitAt = time.Now()
}

// RateLimitCount returns the total number of rate limit events.
func (s *Stats) RateLimitCount() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rateLimitCount
}

// LastRateLimitTime returns the time of the last rate limit event.
func (s *Stats) LastRateLimitTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRateLimitAt
}
