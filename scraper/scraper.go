// Package scraper handles fetching and parsing storefront product pages.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/codeGROOVE-dev/retry"
)

// RequestTimeout bounds a single product page request.
const RequestTimeout = 10 * time.Second

// FetchError describes a failed product page fetch: a timeout, a non-2xx
// response (Status set), or a network error.
type FetchError struct {
	Err     error
	URL     string
	Status  int
	Timeout bool
}

func (e *FetchError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("fetch %s: timeout", e.URL)
	case e.Status != 0:
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Status)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// AsFetchError extracts a FetchError from an error chain.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	ok := errors.As(err, &fe)
	return fe, ok
}

// Scraper fetches and parses product pages.
type Scraper struct {
	client *http.Client
	logger *slog.Logger
}

// New creates a new scraper. The client's timeout bounds each request;
// callers normally pass one configured with RequestTimeout.
func New(client *http.Client, logger *slog.Logger) *Scraper {
	return &Scraper{
		client: client,
		logger: logger,
	}
}

// Product fetches a product page and returns the parsed document.
// Transient failures are retried; the returned error is always a FetchError.
func (s *Scraper) Product(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var doc *goquery.Document
	var lastErr error

	err := retry.Do(
		func() error {
			lastErr = s.fetchOnce(ctx, pageURL, &doc)
			return lastErr
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(time.Minute),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Info("Retrying fetch after error", "attempt", n, "error", err)
		}),
	)
	if err != nil {
		// retry.Do aggregates attempt errors; report the last attempt's.
		if fe, ok := AsFetchError(lastErr); ok {
			return nil, fe
		}
		// Context cancellation surfaces from retry directly.
		return nil, &FetchError{URL: pageURL, Err: err, Timeout: isTimeout(err)}
	}

	return doc, nil
}

func (s *Scraper) fetchOnce(ctx context.Context, pageURL string, doc **goquery.Document) error {
	s.logger.Info("HTTP request starting",
		"method", "GET",
		"url", pageURL,
		"purpose", "fetch_product_page")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return retry.Unrecoverable(&FetchError{URL: pageURL, Err: err})
	}

	// Static browser-like identity. No cookies, no session: stock
	// state must be inferable from the server-rendered HTML.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	startTime := time.Now()
	resp, err := s.client.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Warn("HTTP request failed, will retry",
			"url", pageURL,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return &FetchError{URL: pageURL, Err: err, Timeout: isTimeout(err)}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	s.logger.Info("HTTP request completed",
		"url", pageURL,
		"status_code", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
		"content_length", resp.ContentLength)

	if resp.StatusCode != http.StatusOK {
		fe := &FetchError{URL: pageURL, Status: resp.StatusCode}
		// A 4xx won't fix itself within a sweep; surface it now and
		// let the next sweep try again.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return retry.Unrecoverable(fe)
		}
		s.logger.Warn("HTTP request returned non-OK status, will retry", "status_code", resp.StatusCode)
		return fe
	}

	*doc, err = goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		s.logger.Error("Failed to parse HTML", "error", err)
		return retry.Unrecoverable(&FetchError{URL: pageURL, Err: err})
	}

	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
