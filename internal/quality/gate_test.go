package quality

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skillmap/harvester/internal/ai"
	"github.com/skillmap/harvester/internal/harvest"
	"github.com/skillmap/harvester/internal/metrics"
	"github.com/skillmap/harvester/internal/retry"
)

type scriptedJudge struct {
	scores [][]int
	errs   []error
	calls  int
}

func (j *scriptedJudge) ScoreBatch(_ context.Context, summaries []harvest.RecordSummary) ([]int, error) {
	i := j.calls
	j.calls++
	if i < len(j.errs) && j.errs[i] != nil {
		return nil, j.errs[i]
	}
	if i < len(j.scores) {
		return j.scores[i], nil
	}
	scores := make([]int, len(summaries))
	for k := range scores {
		scores[k] = 80
	}
	return scores, nil
}

func (j *scriptedJudge) ExpandKeywords(context.Context, string, string) ([]string, error) {
	return nil, errors.New("not used")
}

func quickGateConfig() Config {
	return Config{
		Policy: retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
	}
}

func postings(scores ...float64) []harvest.JobPosting {
	out := make([]harvest.JobPosting, len(scores))
	for i, s := range scores {
		out[i] = harvest.JobPosting{
			ID:           harvest.ContentID(string(rune('a' + i))),
			JobTitle:     "백엔드 개발자",
			CompanyName:  "네이버",
			JobCategory:  "IT/개발",
			QualityScore: s,
		}
	}
	return out
}

func TestFilterFloorOnly(t *testing.T) {
	metrics.Init()

	g := New(quickGateConfig(), nil, nil)
	out := g.Filter(context.Background(), postings(0.75, 0.3, 0.5), harvest.AIFilter{})
	require.Len(t, out, 2)
	for _, p := range out {
		require.GreaterOrEqual(t, p.QualityScore, 0.5)
		require.Nil(t, p.AIScore)
	}
}

func TestFilterAIAcceptsAndRejects(t *testing.T) {
	metrics.Init()

	judge := &scriptedJudge{scores: [][]int{{90, 40}}}
	g := New(quickGateConfig(), judge, nil)

	out := g.Filter(context.Background(), postings(0.8, 0.8), harvest.AIFilter{Enabled: true})
	require.Len(t, out, 1)
	require.NotNil(t, out[0].AIScore)
	require.Equal(t, 90, *out[0].AIScore)
	require.Equal(t, 1, judge.calls)
}

func TestFilterAIBatchesBySize(t *testing.T) {
	metrics.Init()

	judge := &scriptedJudge{}
	cfg := quickGateConfig()
	cfg.BatchSize = 5
	g := New(cfg, judge, nil)

	out := g.Filter(context.Background(), postings(0.8, 0.8, 0.8, 0.8, 0.8, 0.8, 0.8), harvest.AIFilter{Enabled: true})
	require.Len(t, out, 7)
	require.Equal(t, 2, judge.calls)
}

func TestFilterRateLimitedEveryAttemptDegradesToNeutral(t *testing.T) {
	metrics.Init()

	// The judge is rate limited on every attempt up to the retry bound:
	// every record in the batch gets the neutral score and none are
	// dropped for this reason.
	judge := &scriptedJudge{errs: []error{ai.ErrRateLimited, ai.ErrRateLimited, ai.ErrRateLimited}}
	g := New(quickGateConfig(), judge, nil)

	out := g.Filter(context.Background(), postings(0.8, 0.8, 0.8), harvest.AIFilter{Enabled: true})
	require.Len(t, out, 3)
	for _, p := range out {
		require.NotNil(t, p.AIScore)
		require.Equal(t, 75, *p.AIScore)
	}
	require.Equal(t, 3, judge.calls)
}

func TestFilterMalformedResponseDoesNotRetry(t *testing.T) {
	metrics.Init()

	judge := &scriptedJudge{errs: []error{errors.New("malformed score response")}}
	g := New(quickGateConfig(), judge, nil)

	out := g.Filter(context.Background(), postings(0.8), harvest.AIFilter{Enabled: true})
	require.Len(t, out, 1)
	require.Equal(t, 75, *out[0].AIScore)
	// A malformed response is not retried under the quota policy.
	require.Equal(t, 1, judge.calls)
}

func TestFilterShortScoreBatchDegradesToNeutral(t *testing.T) {
	metrics.Init()

	// A judge returning too few scores for the batch must not panic or
	// misattribute scores; the whole batch degrades to neutral.
	judge := &scriptedJudge{scores: [][]int{{90}}}
	g := New(quickGateConfig(), judge, nil)

	out := g.Filter(context.Background(), postings(0.8, 0.8, 0.8), harvest.AIFilter{Enabled: true})
	require.Len(t, out, 3)
	for _, p := range out {
		require.NotNil(t, p.AIScore)
		require.Equal(t, 75, *p.AIScore)
	}
}

func TestFilterRateLimitThenSuccess(t *testing.T) {
	metrics.Init()

	judge := &scriptedJudge{
		errs:   []error{ai.ErrRateLimited, nil},
		scores: [][]int{nil, {95}},
	}
	g := New(quickGateConfig(), judge, nil)

	out := g.Filter(context.Background(), postings(0.8), harvest.AIFilter{Enabled: true})
	require.Len(t, out, 1)
	require.Equal(t, 95, *out[0].AIScore)
	require.Equal(t, 2, judge.calls)
}

func TestFilterPerRequestMinScoreOverride(t *testing.T) {
	metrics.Init()

	judge := &scriptedJudge{scores: [][]int{{80, 92}}}
	g := New(quickGateConfig(), judge, nil)

	out := g.Filter(context.Background(), postings(0.8, 0.8), harvest.AIFilter{Enabled: true, MinScore: 90})
	require.Len(t, out, 1)
	require.Equal(t, 92, *out[0].AIScore)
}

func TestFilterEmptyInput(t *testing.T) {
	metrics.Init()

	g := New(quickGateConfig(), &scriptedJudge{}, nil)
	require.Empty(t, g.Filter(context.Background(), nil, harvest.AIFilter{Enabled: true}))
}
