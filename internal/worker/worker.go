// Package worker implements the harvest pipeline execution loop:
// dequeue, fetch, normalize, gate, persist.
package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/skillmap/harvester/internal/fetcher"
	"github.com/skillmap/harvester/internal/harvest"
	"github.com/skillmap/harvester/internal/metrics"
)

// Config controls Worker behavior.
type Config struct {
	// MaxAttempts bounds how often a failed request is requeued before
	// it is reported as permanently failed.
	MaxAttempts int
	// MaxRecordsDefault caps collected records per request when the
	// request itself does not.
	MaxRecordsDefault int
}

// Harvester fetches and parses one site+keyword listing.
type Harvester interface {
	Harvest(ctx context.Context, adapter harvest.SourceAdapter, keyword string) (fetcher.Outcome, error)
}

// AdapterRegistry resolves site names to adapters.
type AdapterRegistry interface {
	Lookup(site string) (harvest.SourceAdapter, bool)
}

// Normalizer converts raw records to canonical postings.
type Normalizer interface {
	Normalize(raw harvest.RawJobRecord) harvest.JobPosting
}

// Gate filters postings before persistence.
type Gate interface {
	Filter(ctx context.Context, postings []harvest.JobPosting, filter harvest.AIFilter) []harvest.JobPosting
}

// Worker consumes crawl requests and executes the pipeline.
type Worker struct {
	queue      harvest.Queue
	registry   AdapterRegistry
	harvester  Harvester
	normalizer Normalizer
	gate       Gate
	store      harvest.DocumentStore
	runs       harvest.RunStore
	publisher  harvest.Publisher
	clock      harvest.Clock
	cfg        Config
	logger     *zap.Logger
}

// New constructs a Worker.
func New(
	queue harvest.Queue,
	registry AdapterRegistry,
	harvester Harvester,
	normalizer Normalizer,
	gate Gate,
	store harvest.DocumentStore,
	runs harvest.RunStore,
	publisher harvest.Publisher,
	clock harvest.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if clock == nil {
		clock = harvest.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.MaxRecordsDefault <= 0 {
		cfg.MaxRecordsDefault = 50
	}
	return &Worker{
		queue:      queue,
		registry:   registry,
		harvester:  harvester,
		normalizer: normalizer,
		gate:       gate,
		store:      store,
		runs:       runs,
		publisher:  publisher,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run blocks, consuming requests until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		req, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued crawl request",
			zap.String("run_id", req.RunID),
			zap.String("site", req.Site),
			zap.Int("attempt", req.Attempt),
		)
		w.process(ctx, req)
	}
}

// process runs the pipeline for one request. A dequeued request is never
// silently lost: it either completes, is requeued, or is reported as
// permanently failed on the run summary.
func (w *Worker) process(ctx context.Context, req harvest.CrawlRequest) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	if !req.Submitted.IsZero() {
		metrics.ObserveQueueWait(w.clock.Now().Sub(req.Submitted))
	}

	log := w.logger.With(zap.String("run_id", req.RunID), zap.String("site", req.Site))

	adapter, ok := w.registry.Lookup(req.Site)
	if !ok {
		w.finishRequest(ctx, req, harvest.RunCounters{Errored: 1},
			fmt.Sprintf("unknown site %q", req.Site))
		return
	}

	counters, fetchErr := w.collect(ctx, req, adapter, log)
	if fetchErr != nil {
		if ctx.Err() != nil {
			// Shutdown, not a site failure; the request stays queued in
			// the next run's sense only if requeue succeeds. Try anyway.
			log.Warn("shutdown during request, requeueing", zap.Error(fetchErr))
		}
		w.retryOrFail(ctx, req, counters, fetchErr, log)
		return
	}

	w.finishRequest(ctx, req, counters, "")
}

// collect harvests all keywords of the request and pushes every record
// through normalize, gate and persist. Partial progress survives a later
// keyword's fetch failure; the returned error reflects the first
// transport failure so the caller can retry the request.
func (w *Worker) collect(
	ctx context.Context,
	req harvest.CrawlRequest,
	adapter harvest.SourceAdapter,
	log *zap.Logger,
) (harvest.RunCounters, error) {
	counters := harvest.RunCounters{}
	maxRecords := req.MaxRecords
	if maxRecords <= 0 {
		maxRecords = w.cfg.MaxRecordsDefault
	}

	var raw []harvest.RawJobRecord
	var firstErr error
	for _, keyword := range req.Keywords {
		if len(raw) >= maxRecords {
			break
		}
		out, err := w.harvester.Harvest(ctx, adapter, keyword)
		if err != nil {
			counters.Errored++
			if firstErr == nil {
				firstErr = err
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if out.Skipped {
			continue
		}
		if room := maxRecords - len(raw); len(out.Records) > room {
			out.Records = out.Records[:room]
		}
		raw = append(raw, out.Records...)
	}
	counters.Crawled = len(raw)
	metrics.ObserveRecords(req.Site, "crawled", len(raw))

	if len(raw) == 0 {
		return counters, firstErr
	}

	postings := make([]harvest.JobPosting, 0, len(raw))
	for _, record := range raw {
		postings = append(postings, w.normalizer.Normalize(record))
	}
	counters.Normalized = len(postings)
	metrics.ObserveRecords(req.Site, "normalized", len(postings))

	accepted := w.gate.Filter(ctx, postings, req.AIFilter)
	counters.Accepted = len(accepted)
	metrics.ObserveRecords(req.Site, "accepted", len(accepted))

	// Each record is written independently; one failure is counted,
	// never propagated to the rest of the batch.
	for _, posting := range accepted {
		outcome, err := w.store.Upsert(ctx, posting)
		if err != nil {
			counters.Errored++
			log.Warn("posting upsert failed",
				zap.String("id", posting.ID),
				zap.Error(err),
			)
			continue
		}
		counters.Persisted++
		metrics.ObserveUpsert(string(outcome))
	}
	metrics.ObserveRecords(req.Site, "persisted", counters.Persisted)

	// Records were collected; a keyword-level fetch failure is already
	// counted and must not trigger a whole-request retry.
	return counters, nil
}

// retryOrFail requeues a transiently failed request up to the attempt
// bound, then reports it as permanently failed.
func (w *Worker) retryOrFail(
	ctx context.Context,
	req harvest.CrawlRequest,
	counters harvest.RunCounters,
	cause error,
	log *zap.Logger,
) {
	if req.Attempt+1 < w.cfg.MaxAttempts {
		requeue := req
		requeue.Attempt++
		if err := w.queue.Enqueue(ctx, requeue); err != nil {
			log.Error("requeue failed, reporting request as failed", zap.Error(err))
			w.finishRequest(ctx, req, counters, fmt.Sprintf("requeue failed: %v (cause: %v)", err, cause))
			return
		}
		log.Info("request requeued",
			zap.Int("attempt", requeue.Attempt),
			zap.Error(cause),
		)
		w.updateRun(ctx, req.RunID, func(s *harvest.RunSummary) {
			s.Counters = addCounters(s.Counters, counters)
		})
		return
	}
	w.finishRequest(ctx, req, counters, fmt.Sprintf("request failed after %d attempts: %v", w.cfg.MaxAttempts, cause))
}

// finishRequest folds the request's counters into the run summary,
// decrements the pending count and closes out the run when this was the
// last outstanding request.
func (w *Worker) finishRequest(ctx context.Context, req harvest.CrawlRequest, counters harvest.RunCounters, failure string) {
	if failure != "" {
		w.logger.Error("crawl request failed",
			zap.String("run_id", req.RunID),
			zap.String("site", req.Site),
			zap.String("reason", failure),
		)
	}

	updated, ok := w.updateRun(ctx, req.RunID, func(s *harvest.RunSummary) {
		s.Counters = addCounters(s.Counters, counters)
		if s.Pending > 0 {
			s.Pending--
		}
		if failure != "" {
			s.Error = failure
		}
		if s.Pending == 0 {
			now := w.clock.Now()
			s.FinishedAt = &now
			if s.Error != "" {
				s.Status = harvest.RunFailed
			} else {
				s.Status = harvest.RunCompleted
			}
		} else {
			s.Status = harvest.RunRunning
		}
	})

	if ok && updated.Pending == 0 && w.publisher != nil {
		if err := w.publisher.Publish(ctx, updated); err != nil {
			w.logger.Warn("run summary publish failed",
				zap.String("run_id", req.RunID),
				zap.Error(err),
			)
		}
	}
}

// updateRun applies the mutation through the store's atomic update so
// concurrent workers finishing requests of the same run never lose each
// other's writes. ok reports whether the update was stored.
func (w *Worker) updateRun(ctx context.Context, runID string, apply func(*harvest.RunSummary)) (harvest.RunSummary, bool) {
	if w.runs == nil || runID == "" {
		return harvest.RunSummary{}, false
	}
	summary, err := w.runs.UpdateSummary(ctx, runID, apply)
	if err != nil {
		w.logger.Warn("run summary update failed", zap.String("run_id", runID), zap.Error(err))
		return harvest.RunSummary{}, false
	}
	return summary, true
}

func addCounters(a, b harvest.RunCounters) harvest.RunCounters {
	return harvest.RunCounters{
		Crawled:    a.Crawled + b.Crawled,
		Normalized: a.Normalized + b.Normalized,
		Accepted:   a.Accepted + b.Accepted,
		Persisted:  a.Persisted + b.Persisted,
		Errored:    a.Errored + b.Errored,
	}
}
