package headless

import (
	"context"
	"errors"

	"github.com/skillmap/harvester/internal/fetcher"
)

// Noop implements fetcher.PageFetcher but always returns an error to
// indicate that headless browsing is disabled in the current deployment.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch returns an error since this is a stub implementation.
func (Noop) Fetch(_ context.Context, _ string) (fetcher.Page, error) {
	return fetcher.Page{}, errors.New("headless fetcher not configured")
}
