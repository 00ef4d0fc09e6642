package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxFeedSize bounds the size of one feed document
const maxFeedSize = 64 << 20

var ErrTransport = errors.New("feed transport failure")

type FetcherInterface interface {
	FetchFeed(ctx context.Context, pattern string) ([]byte, error)
}

// Fetcher retrieves the aggregator feed of one domain name pattern
type Fetcher struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewFetcher creates a fetcher for feeds under baseURL, e.g. https://crt.sh/atom
func NewFetcher(baseURL, userAgent string, httpClient *http.Client) FetcherInterface {
	return &Fetcher{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: httpClient,
	}
}

// FeedURL returns the feed address for pattern. Expiry filtering is left to
// the aggregator, so the feed is requested unfiltered.
func (f *Fetcher) FeedURL(pattern string) string {
	separator := "?"
	if strings.Contains(f.baseURL, "?") {
		separator = "&"
	}
	return f.baseURL + separator + "identity=" + url.QueryEscape(pattern)
}

// FetchFeed performs a GET of the feed. Any non-200 response is an error.
func (f *Fetcher) FetchFeed(ctx context.Context, pattern string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.FeedURL(pattern), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/atom+xml, application/xml;q=0.9, */*;q=0.1")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrTransport, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrTransport, err)
	}

	return body, nil
}
