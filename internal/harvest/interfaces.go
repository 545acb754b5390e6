package harvest

import (
	"context"
	"time"
)

// Queue is the durable priority queue feeding the worker pool.
type Queue interface {
	Enqueue(ctx context.Context, req CrawlRequest) error
	// Dequeue blocks until a request is available or ctx is done.
	// Strictly higher priorities drain first; FIFO within a level.
	Dequeue(ctx context.Context) (CrawlRequest, error)
}

// VisitedSet deduplicates listing URLs across workers and runs.
type VisitedSet interface {
	Add(ctx context.Context, id string) error
	Contains(ctx context.Context, id string) (bool, error)
}

// DocumentStore persists canonical postings keyed by content ID.
type DocumentStore interface {
	Upsert(ctx context.Context, posting JobPosting) (UpsertOutcome, error)
}

// RunStore keeps per-run status summaries.
type RunStore interface {
	SetSummary(ctx context.Context, summary RunSummary) error
	GetSummary(ctx context.Context, runID string) (RunSummary, error)
	// UpdateSummary applies the mutation atomically with respect to other
	// concurrent updates of the same run and returns the stored result.
	UpdateSummary(ctx context.Context, runID string, apply func(*RunSummary)) (RunSummary, error)
}

// SourceAdapter binds one job board: it builds the deterministic search
// URL for a keyword and extracts raw records from fetched markup.
type SourceAdapter interface {
	Name() string
	SearchURL(keyword string) string
	Parse(body []byte, baseURL string) []RawJobRecord
}

// RecordSummary is the compact projection of a posting sent to the AI
// judging service.
type RecordSummary struct {
	Title    string   `json:"title"`
	Company  string   `json:"company"`
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
}

// Judge is the external AI judging/expansion service boundary.
type Judge interface {
	// ScoreBatch returns one 0-100 suitability score per summary, in
	// input order.
	ScoreBatch(ctx context.Context, summaries []RecordSummary) ([]int, error)
	// ExpandKeywords returns related search keywords for a base keyword.
	ExpandKeywords(ctx context.Context, base, category string) ([]string, error)
}

// Publisher emits finished run summaries to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, summary RunSummary) error
}

// Archiver stores raw fetched listing pages for replay and debugging.
type Archiver interface {
	Put(ctx context.Context, site, hash string, body []byte) error
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }
