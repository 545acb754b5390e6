package fetcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/skillmap/harvester/internal/harvest"
	"github.com/skillmap/harvester/internal/metrics"
	"github.com/skillmap/harvester/internal/retry"
)

// Outcome is the result of harvesting one site+keyword listing.
type Outcome struct {
	Records  []harvest.RawJobRecord
	Skipped  bool
	Rendered bool
}

// Strategy drives the two-tier fetch for a site+keyword pair: probe with
// the request tier first, promote to the render tier only when the probe
// parses zero records. Listing URLs already in the visited set are skipped
// without any network traffic.
type Strategy struct {
	probe   PageFetcher
	render  PageFetcher
	visited harvest.VisitedSet
	archive harvest.Archiver
	policy  retry.Policy
	logger  *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rates    map[string]float64
}

// NewStrategy builds a Strategy. render may be nil when headless fetching
// is disabled; archive may be nil when raw page archiving is disabled.
// siteRates maps site name to requests per second.
func NewStrategy(
	probe PageFetcher,
	render PageFetcher,
	visited harvest.VisitedSet,
	archive harvest.Archiver,
	policy retry.Policy,
	siteRates map[string]float64,
	logger *zap.Logger,
) *Strategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Strategy{
		probe:    probe,
		render:   render,
		visited:  visited,
		archive:  archive,
		policy:   policy,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
		rates:    siteRates,
	}
}

// Harvest fetches and parses the listing page for one site+keyword pair.
// The URL is marked visited after any attempt that reached the site, so a
// page that renders to zero records is not refetched by a later request.
func (s *Strategy) Harvest(ctx context.Context, adapter harvest.SourceAdapter, keyword string) (Outcome, error) {
	url := adapter.SearchURL(keyword)
	site := adapter.Name()
	log := s.logger.With(zap.String("site", site), zap.String("keyword", keyword))

	seen, err := s.visited.Contains(ctx, harvest.ContentID(url))
	if err != nil {
		return Outcome{}, fmt.Errorf("visited check: %w", err)
	}
	if seen {
		log.Debug("listing already visited, skipping", zap.String("url", url))
		return Outcome{Skipped: true}, nil
	}

	if err := s.waitTurn(ctx, site); err != nil {
		return Outcome{}, err
	}

	var outcome Outcome
	err = retry.Do(ctx, s.policy, func(ctx context.Context) error {
		out, attemptErr := s.attempt(ctx, adapter, url, log)
		if attemptErr != nil {
			log.Warn("fetch attempt failed", zap.Error(attemptErr))
			return attemptErr
		}
		outcome = out
		return nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("fetch %s: %w", url, err)
	}

	if markErr := s.visited.Add(ctx, harvest.ContentID(url)); markErr != nil {
		log.Warn("visited mark failed", zap.Error(markErr))
	}
	return outcome, nil
}

// attempt performs one probe and, when it yields nothing, one render.
func (s *Strategy) attempt(ctx context.Context, adapter harvest.SourceAdapter, url string, log *zap.Logger) (Outcome, error) {
	site := adapter.Name()

	page, err := s.probe.Fetch(ctx, url)
	if err != nil {
		return Outcome{}, err
	}
	metrics.ObservePage(site, "request")
	records := adapter.Parse(page.Body, url)

	if len(records) == 0 && s.render != nil {
		log.Debug("probe parsed nothing, promoting to render tier", zap.String("url", url))
		page, err = s.render.Fetch(ctx, url)
		if err != nil {
			return Outcome{}, err
		}
		metrics.ObservePage(site, "render")
		records = adapter.Parse(page.Body, url)
	}

	s.archivePage(ctx, site, url, page, log)
	return Outcome{Records: records, Rendered: page.Rendered}, nil
}

func (s *Strategy) archivePage(ctx context.Context, site, url string, page Page, log *zap.Logger) {
	if s.archive == nil || len(page.Body) == 0 {
		return
	}
	if err := s.archive.Put(ctx, site, harvest.ContentID(url), page.Body); err != nil {
		log.Warn("page archive failed", zap.Error(err))
	}
}

// waitTurn blocks until the site's limiter allows another request. Sites
// without a configured rate proceed immediately.
func (s *Strategy) waitTurn(ctx context.Context, site string) error {
	limiter := s.limiterFor(site)
	if limiter == nil {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

func (s *Strategy) limiterFor(site string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limiter, ok := s.limiters[site]; ok {
		return limiter
	}
	rps, ok := s.rates[site]
	if !ok || rps <= 0 {
		return nil
	}
	limiter := rate.NewLimiter(rate.Limit(rps), 1)
	s.limiters[site] = limiter
	return limiter
}
