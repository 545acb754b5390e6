// Package harvest defines the domain types and contracts shared across
// the crawl pipeline.
package harvest

import (
	"crypto/md5" //nolint:gosec // content addressing, not security
	"encoding/hex"
	"time"
)

// RunStatus tracks the lifecycle of one crawl run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// AIFilter carries the optional AI-judgment parameters of a request.
type AIFilter struct {
	Enabled  bool `json:"enabled"`
	MinScore int  `json:"min_score,omitempty"`
}

// CrawlRequest is one unit of queued work: harvest these keywords from
// one site. It is immutable after creation; a retried request is a fresh
// enqueue with Attempt incremented.
type CrawlRequest struct {
	RunID      string    `json:"run_id"`
	Site       string    `json:"site"`
	Keywords   []string  `json:"keywords"`
	MaxRecords int       `json:"max_records"`
	Priority   int       `json:"priority"`
	AIFilter   AIFilter  `json:"ai_filter"`
	Attempt    int       `json:"attempt"`
	Submitted  time.Time `json:"submitted"`
}

// RawJobRecord is one listing as scraped, before normalization. All
// fields are source text; nothing is trimmed or canonical yet.
type RawJobRecord struct {
	Title      string   `json:"title"`
	Company    string   `json:"company"`
	Location   string   `json:"location"`
	Experience string   `json:"experience"`
	Salary     string   `json:"salary"`
	Deadline   string   `json:"deadline"`
	URL        string   `json:"url"`
	Tags       []string `json:"tags"`
	Site       string   `json:"site"`
}

// SalaryRange is the canonical compensation range in won. Min <= Max
// whenever both are nonzero.
type SalaryRange struct {
	Min        int64 `json:"min"`
	Max        int64 `json:"max"`
	Negotiable bool  `json:"negotiable"`
}

// JobPosting is the canonical record the pipeline produces and persists.
type JobPosting struct {
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	URL             string      `json:"url"`
	CompanyName     string      `json:"company_name"`
	WorkLocation    string      `json:"work_location"`
	JobTitle        string      `json:"job_title"`
	JobCategory     string      `json:"job_category"`
	ExperienceLevel string      `json:"experience_level"`
	SalaryRange     SalaryRange `json:"salary_range"`
	Keywords        []string    `json:"keywords"`
	Deadline        *time.Time  `json:"deadline,omitempty"`
	ScrapedAt       time.Time   `json:"scraped_at"`
	IsActive        bool        `json:"is_active"`
	QualityScore    float64     `json:"quality_score"`
	AIScore         *int        `json:"ai_score,omitempty"`
	NormalizeError  string      `json:"normalization_error,omitempty"`
}

// UpsertOutcome reports what a document store write did.
type UpsertOutcome string

const (
	UpsertInserted  UpsertOutcome = "inserted"
	UpsertUpdated   UpsertOutcome = "updated"
	UpsertUnchanged UpsertOutcome = "unchanged"
)

// RunCounters aggregate per-run pipeline stage totals.
type RunCounters struct {
	Crawled    int `json:"crawled"`
	Normalized int `json:"normalized"`
	Accepted   int `json:"accepted"`
	Persisted  int `json:"persisted"`
	Errored    int `json:"errored"`
}

// RunSummary is the durable status record of one crawl run. Pending
// counts the enqueued requests not yet finished; the run completes when
// it reaches zero.
type RunSummary struct {
	RunID      string      `json:"run_id"`
	Status     RunStatus   `json:"status"`
	Sites      []string    `json:"sites"`
	Keywords   []string    `json:"keywords"`
	Pending    int         `json:"pending"`
	Counters   RunCounters `json:"counters"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// ContentID derives the stable identifier of a posting from its source
// URL. Two crawls of the same URL always yield the same ID.
func ContentID(sourceURL string) string {
	sum := md5.Sum([]byte(sourceURL)) //nolint:gosec // content addressing, not security
	return hex.EncodeToString(sum[:])
}
