// Package fetch downloads pages from the admissions site.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	fetchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neuyz_fetch_requests_total",
		Help: "The total number of upstream page fetches by outcome",
	}, []string{"outcome"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "neuyz_fetch_duration_seconds",
		Help:    "Duration of upstream page fetches",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // Start at 10ms, double each bucket, 12 buckets
	})
)

// MaxBodySize caps the size of a single page body
const MaxBodySize = 8 * 1024 * 1024

// StatusError is returned when the upstream answers with a non-2xx status
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.StatusCode)
}

// HTTPFetcher fetches pages over plain HTTP. There is no retry.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
		},
		userAgent: userAgent,
	}
}

// Fetch returns the body of the page at rawURL as a string
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	fetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		fetchRequests.WithLabelValues("error").Inc()
		return "", fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fetchRequests.WithLabelValues("status").Inc()
		return "", &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		fetchRequests.WithLabelValues("error").Inc()
		return "", fmt.Errorf("reading response from %s: %w", rawURL, err)
	}
	if len(body) > MaxBodySize {
		fetchRequests.WithLabelValues("too_large").Inc()
		return "", fmt.Errorf("response from %s exceeds %d bytes", rawURL, MaxBodySize)
	}

	fetchRequests.WithLabelValues("ok").Inc()
	log.WithFields(log.Fields{
		"url":     rawURL,
		"bytes":   len(body),
		"latency": time.Since(start),
	}).Debug("Fetched page")

	return string(body), nil
}
