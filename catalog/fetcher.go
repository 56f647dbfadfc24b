package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/signalsfoundry/orbit-attitude-sim/internal/logging"
)

// DefaultMaxTries bounds fetch attempts, including the first.
const DefaultMaxTries = 5

// Fetcher retrieves a catalog listing over HTTP, retrying transient failures
// with exponential backoff.
type Fetcher struct {
	sourceURL  string
	httpClient *http.Client
	maxTries   uint
	backOff    backoff.BackOff
	log        logging.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the default 30s-timeout client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if c != nil {
			f.httpClient = c
		}
	}
}

// WithMaxTries sets the attempt limit. Values below 1 mean a single attempt.
func WithMaxTries(n int) FetcherOption {
	return func(f *Fetcher) {
		if n < 1 {
			n = 1
		}
		f.maxTries = uint(n)
	}
}

// WithBackOff replaces the exponential retry schedule.
func WithBackOff(b backoff.BackOff) FetcherOption {
	return func(f *Fetcher) {
		if b != nil {
			f.backOff = b
		}
	}
}

// WithFetchLogger sets the logger used for retry warnings.
func WithFetchLogger(l logging.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.log = l
		}
	}
}

// NewFetcher creates a Fetcher for sourceURL.
func NewFetcher(sourceURL string, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		sourceURL:  sourceURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxTries:   DefaultMaxTries,
		log:        logging.Noop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SourceURL returns the configured source URL.
func (f *Fetcher) SourceURL() string { return f.sourceURL }

// Fetch performs the HTTP GET. Network errors and 5xx/429 responses are
// retried; other non-200 responses fail immediately.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	b := f.backOff
	if b == nil {
		b = backoff.NewExponentialBackOff()
	}

	attempt := 0
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		attempt++
		data, err := f.fetchOnce(ctx)
		if err != nil {
			f.log.Warn(ctx, "catalog fetch failed",
				logging.String("url", f.sourceURL),
				logging.Int("attempt", attempt),
				logging.Err(err),
			)
		}
		return data, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(f.maxTries))
	if err != nil {
		return nil, fmt.Errorf("fetch catalog from %s: %w", f.sourceURL, err)
	}
	return body, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.sourceURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status code %d", resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}

// FetchRecords fetches and parses the listing.
func (f *Fetcher) FetchRecords(ctx context.Context) ([]Record, error) {
	body, err := f.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	s := NewStore()
	if _, err := s.AddAll(Records(bytes.NewReader(body))); err != nil {
		return nil, fmt.Errorf("parse catalog from %s: %w", f.sourceURL, err)
	}
	f.log.Debug(ctx, "fetched catalog",
		logging.String("url", f.sourceURL),
		logging.Int("records", s.Len()),
		logging.Int("bytes", len(body)),
	)
	return s.List(), nil
}
