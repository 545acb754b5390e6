// Package quality gates normalized postings before persistence: a
// deterministic completeness floor, then an optional batched AI judgment.
package quality

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/skillmap/harvester/internal/ai"
	"github.com/skillmap/harvester/internal/harvest"
	"github.com/skillmap/harvester/internal/metrics"
	"github.com/skillmap/harvester/internal/retry"
)

// Config controls the gate.
type Config struct {
	// MinQuality is the deterministic floor in [0,1]. Records below it
	// are dropped without spending AI budget.
	MinQuality float64
	// MinAIScore accepts records scoring at or above it (0-100).
	MinAIScore int
	// NeutralScore is assigned to a whole batch when the judgment call
	// ultimately fails. It must pass MinAIScore so a service outage
	// never drops records.
	NeutralScore int
	BatchSize    int
	BatchDelay   time.Duration
	Policy       retry.Policy
}

// Gate filters postings. The AI step is advisory: it runs only when the
// request asks for it and a judge is configured, and its failures always
// degrade to the neutral score.
type Gate struct {
	cfg     Config
	judge   harvest.Judge
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New builds a Gate. judge may be nil when the AI service is disabled.
func New(cfg Config, judge harvest.Judge, logger *zap.Logger) *Gate {
	if cfg.MinQuality <= 0 {
		cfg.MinQuality = 0.5
	}
	if cfg.MinAIScore <= 0 {
		cfg.MinAIScore = 70
	}
	if cfg.NeutralScore <= 0 {
		cfg.NeutralScore = 75
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = retry.QuotaPolicy(5, 5*time.Second)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.BatchDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.BatchDelay), 1)
	}
	return &Gate{cfg: cfg, judge: judge, limiter: limiter, logger: logger}
}

// Filter returns the postings that pass the gate, annotated with their
// AI score when the AI step ran. Order is preserved.
func (g *Gate) Filter(ctx context.Context, postings []harvest.JobPosting, filter harvest.AIFilter) []harvest.JobPosting {
	passed := make([]harvest.JobPosting, 0, len(postings))
	for _, p := range postings {
		if p.QualityScore < g.cfg.MinQuality {
			g.logger.Debug("posting below quality floor",
				zap.String("id", p.ID),
				zap.Float64("score", p.QualityScore),
			)
			continue
		}
		passed = append(passed, p)
	}

	if !filter.Enabled || g.judge == nil || len(passed) == 0 {
		return passed
	}

	minScore := g.cfg.MinAIScore
	if filter.MinScore > 0 {
		minScore = filter.MinScore
	}

	accepted := make([]harvest.JobPosting, 0, len(passed))
	for start := 0; start < len(passed); start += g.cfg.BatchSize {
		end := start + g.cfg.BatchSize
		if end > len(passed) {
			end = len(passed)
		}
		batch := passed[start:end]

		scores := g.scoreBatch(ctx, batch)
		for i := range batch {
			score := scores[i]
			batch[i].AIScore = &score
			if score >= minScore {
				accepted = append(accepted, batch[i])
			} else {
				g.logger.Debug("posting rejected by ai judgment",
					zap.String("id", batch[i].ID),
					zap.Int("score", score),
				)
			}
		}
	}
	return accepted
}

// scoreBatch judges one batch, retrying rate-limit signals under the
// quota policy. Any terminal failure yields the neutral score for every
// record in the batch.
func (g *Gate) scoreBatch(ctx context.Context, batch []harvest.JobPosting) []int {
	if err := g.waitTurn(ctx); err != nil {
		return g.neutral(len(batch))
	}

	summaries := make([]harvest.RecordSummary, len(batch))
	for i, p := range batch {
		summaries[i] = harvest.RecordSummary{
			Title:    p.JobTitle,
			Company:  p.CompanyName,
			Category: p.JobCategory,
			Keywords: p.Keywords,
		}
	}

	var scores []int
	err := retry.Do(ctx, g.cfg.Policy, func(ctx context.Context) error {
		result, callErr := g.judge.ScoreBatch(ctx, summaries)
		if callErr != nil {
			if errors.Is(callErr, ai.ErrRateLimited) {
				g.logger.Warn("ai service rate limited, backing off")
				return callErr
			}
			// Malformed output and transport failures gain nothing
			// from the quota backoff.
			return retry.Permanent{Err: callErr}
		}
		scores = result
		return nil
	})
	if err != nil {
		g.logger.Warn("ai judgment failed, using neutral score",
			zap.Int("batch_size", len(batch)),
			zap.Error(err),
		)
		metrics.ObserveAIBatch("degraded")
		return g.neutral(len(batch))
	}
	// A judge that returns the wrong number of scores is treated like any
	// other failure: the whole batch degrades to the neutral score.
	if len(scores) != len(batch) {
		g.logger.Warn("ai judgment returned wrong score count, using neutral score",
			zap.Int("batch_size", len(batch)),
			zap.Int("scores", len(scores)),
		)
		metrics.ObserveAIBatch("degraded")
		return g.neutral(len(batch))
	}
	metrics.ObserveAIBatch("scored")
	return scores
}

func (g *Gate) waitTurn(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	return g.limiter.Wait(ctx)
}

func (g *Gate) neutral(n int) []int {
	scores := make([]int, n)
	for i := range scores {
		scores[i] = g.cfg.NeutralScore
	}
	return scores
}
