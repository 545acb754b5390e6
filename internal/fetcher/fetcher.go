// Package fetcher implements the two-tier fetch strategy: a lightweight
// request-based tier with a rendering-based fallback, deduplicated against
// the shared visited set and retried under a bounded jittered backoff.
package fetcher

import (
	"context"
	"time"
)

// Page is the raw result of fetching one listing URL.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
	Rendered   bool
}

// PageFetcher fetches a URL and returns its body plus metadata.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}
