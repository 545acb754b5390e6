package headless

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
)

func TestNewChromedpLimiterValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewChromedp(Config{MaxParallel: -1}); err == nil {
		t.Fatal("expected error for negative max parallel")
	}
	f, err := NewChromedp(Config{MaxParallel: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()
	if cap(f.limiter) != 2 {
		t.Fatalf("expected limiter capacity 2, got %d", cap(f.limiter))
	}
}

func TestFetcherNavTimeoutDefault(t *testing.T) {
	t.Parallel()

	f := &Fetcher{}
	if got := f.navTimeout(); got != 45*time.Second {
		t.Fatalf("expected default nav timeout, got %v", got)
	}
	f.cfg.NavigationTimeout = time.Second
	if got := f.navTimeout(); got != time.Second {
		t.Fatalf("expected override to be used, got %v", got)
	}
}

func TestScrollActionsCount(t *testing.T) {
	t.Parallel()

	f := &Fetcher{cfg: Config{ScrollCount: 3}}
	if got := len(f.scrollActions()); got != 6 {
		t.Fatalf("expected scroll+sleep pairs, got %d actions", got)
	}
	f.cfg.ScrollCount = 0
	if got := len(f.scrollActions()); got != 0 {
		t.Fatalf("expected no actions, got %d", got)
	}
}

func TestResponseMetaCaptureAndFallbacks(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.capture(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status: 204,
			URL:    "https://example.com/rendered",
		},
	})
	status, url := meta.snapshotWithFallbacks("https://req", "")
	if status != 204 || url != "https://example.com/rendered" {
		t.Fatalf("unexpected snapshot values: status=%d url=%s", status, url)
	}

	meta = newResponseMeta()
	status, url = meta.snapshotWithFallbacks("https://req", "https://final")
	if status != http.StatusOK || url != "https://final" {
		t.Fatalf("expected fallback values, got status=%d url=%s", status, url)
	}
}

func TestNoopFetcherError(t *testing.T) {
	t.Parallel()

	f := NewNoop()
	if _, err := f.Fetch(context.Background(), "https://example.com"); err == nil {
		t.Fatal("expected error from noop fetcher")
	}
}
