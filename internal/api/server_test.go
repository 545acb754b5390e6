package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skillmap/harvester/internal/harvest"
	"github.com/skillmap/harvester/internal/metrics"
	"github.com/skillmap/harvester/internal/store"
)

type fakeQueue struct {
	enqueued []harvest.CrawlRequest
	failOn   string
}

func (q *fakeQueue) Enqueue(_ context.Context, req harvest.CrawlRequest) error {
	if q.failOn != "" && req.Site == q.failOn {
		return errors.New("queue unavailable")
	}
	q.enqueued = append(q.enqueued, req)
	return nil
}

func (q *fakeQueue) Dequeue(ctx context.Context) (harvest.CrawlRequest, error) {
	<-ctx.Done()
	return harvest.CrawlRequest{}, ctx.Err()
}

type memRunStore struct {
	summaries map[string]harvest.RunSummary
}

func (m *memRunStore) SetSummary(_ context.Context, summary harvest.RunSummary) error {
	m.summaries[summary.RunID] = summary
	return nil
}

func (m *memRunStore) GetSummary(_ context.Context, runID string) (harvest.RunSummary, error) {
	s, ok := m.summaries[runID]
	if !ok {
		return harvest.RunSummary{}, store.ErrRunNotFound
	}
	return s, nil
}

func (m *memRunStore) UpdateSummary(_ context.Context, runID string, apply func(*harvest.RunSummary)) (harvest.RunSummary, error) {
	s, ok := m.summaries[runID]
	if !ok {
		return harvest.RunSummary{}, store.ErrRunNotFound
	}
	apply(&s)
	m.summaries[runID] = s
	return s, nil
}

type fakeCatalog struct{ names []string }

func (c *fakeCatalog) Lookup(site string) (harvest.SourceAdapter, bool) {
	for _, n := range c.names {
		if n == site {
			return nil, true
		}
	}
	return nil, false
}

func (c *fakeCatalog) Names() []string { return append([]string(nil), c.names...) }

type expandingJudge struct{}

func (expandingJudge) ScoreBatch(context.Context, []harvest.RecordSummary) ([]int, error) {
	return nil, nil
}

func (expandingJudge) ExpandKeywords(_ context.Context, base, _ string) ([]string, error) {
	return []string{base, base + "-related"}, nil
}

type apiFixture struct {
	queue  *fakeQueue
	runs   *memRunStore
	server *Server
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	metrics.Init()

	f := &apiFixture{
		queue: &fakeQueue{},
		runs:  &memRunStore{summaries: map[string]harvest.RunSummary{}},
	}
	f.server = NewServer(
		f.queue,
		f.runs,
		&fakeCatalog{names: []string{"jobkorea", "saramin"}},
		expandingJudge{},
		harvest.SystemClock{},
		Config{MaxRecordsDefault: 50, DefaultPriority: 5},
		nil,
	)
	return f
}

func (f *apiFixture) post(t *testing.T, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSubmitCrawl(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.post(t, "/v1/crawl", map[string]any{
		"sites":    []string{"saramin"},
		"keywords": []string{"python"},
		"priority": 8,
		"ai":       map[string]any{"enabled": true, "min_score": 80},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RunID)

	require.Len(t, f.queue.enqueued, 1)
	item := f.queue.enqueued[0]
	require.Equal(t, resp.RunID, item.RunID)
	require.Equal(t, "saramin", item.Site)
	require.Equal(t, []string{"python"}, item.Keywords)
	require.Equal(t, 8, item.Priority)
	require.True(t, item.AIFilter.Enabled)
	require.Equal(t, 80, item.AIFilter.MinScore)

	summary := f.runs.summaries[resp.RunID]
	require.Equal(t, harvest.RunPending, summary.Status)
	require.Equal(t, 1, summary.Pending)
}

func TestSubmitCrawlDefaultsToAllSites(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.post(t, "/v1/crawl", map[string]any{"keywords": []string{"python"}})
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, f.queue.enqueued, 2)

	var resp struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, f.runs.summaries[resp.RunID].Pending)
}

func TestSubmitCrawlValidation(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.post(t, "/v1/crawl", map[string]any{"sites": []string{"saramin"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.post(t, "/v1/crawl", map[string]any{
		"sites":    []string{"no-such-board"},
		"keywords": []string{"python"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/crawl", bytes.NewReader([]byte("{not json")))
	recRaw := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(recRaw, req)
	require.Equal(t, http.StatusBadRequest, recRaw.Code)

	require.Empty(t, f.queue.enqueued)
}

func TestSubmitCrawlEnqueueFailureFailsRun(t *testing.T) {
	f := newAPIFixture(t)
	f.queue.failOn = "saramin"

	rec := f.post(t, "/v1/crawl", map[string]any{
		"sites":    []string{"jobkorea", "saramin"},
		"keywords": []string{"python"},
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	// One request made it to the queue before the failure; the run is
	// marked failed with pending cut to what was actually enqueued.
	require.Len(t, f.queue.enqueued, 1)
	summary := f.runs.summaries[f.queue.enqueued[0].RunID]
	require.Equal(t, harvest.RunFailed, summary.Status)
	require.Equal(t, 1, summary.Pending)
	require.Contains(t, summary.Error, "enqueue saramin")
	require.Nil(t, summary.FinishedAt)
}

func TestSubmitCrawlNothingEnqueuedFinishesRun(t *testing.T) {
	f := newAPIFixture(t)
	f.queue.failOn = "jobkorea"

	rec := f.post(t, "/v1/crawl", map[string]any{
		"sites":    []string{"jobkorea"},
		"keywords": []string{"python"},
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Empty(t, f.queue.enqueued)

	require.Len(t, f.runs.summaries, 1)
	for _, summary := range f.runs.summaries {
		require.Equal(t, harvest.RunFailed, summary.Status)
		require.Zero(t, summary.Pending)
		require.NotNil(t, summary.FinishedAt)
	}
}

func TestSubmitCrawlExpandsKeywords(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.post(t, "/v1/crawl", map[string]any{
		"sites":           []string{"saramin"},
		"keywords":        []string{"python"},
		"expand_keywords": true,
		"category":        "IT/개발",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, f.queue.enqueued, 1)
	require.Equal(t, []string{"python", "python-related"}, f.queue.enqueued[0].Keywords)
}

func TestGetRun(t *testing.T) {
	f := newAPIFixture(t)
	f.runs.summaries["run-1"] = harvest.RunSummary{
		RunID:     "run-1",
		Status:    harvest.RunCompleted,
		StartedAt: time.Unix(1700000000, 0).UTC(),
	}

	rec := f.get(t, "/v1/runs/run-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary harvest.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, harvest.RunCompleted, summary.Status)

	rec = f.get(t, "/v1/runs/unknown")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndSites(t *testing.T) {
	f := newAPIFixture(t)

	require.Equal(t, http.StatusOK, f.get(t, "/healthz").Code)
	require.Equal(t, http.StatusOK, f.get(t, "/readyz").Code)

	rec := f.get(t, "/v1/sites")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, []string{"jobkorea", "saramin"}, resp["sites"])
}
