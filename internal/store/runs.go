package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skillmap/harvester/internal/harvest"
)

// ErrRunNotFound reports a run ID with no stored summary, usually an
// unknown or expired run.
var ErrRunNotFound = errors.New("run not found")

// RunStore keeps per-run summaries in Redis under a TTL so finished runs
// age out on their own.
type RunStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ harvest.RunStore = (*RunStore)(nil)

// NewRunStore builds a RunStore over an existing client.
func NewRunStore(client *redis.Client, prefix string, ttl time.Duration) *RunStore {
	if prefix == "" {
		prefix = "harvest:run:"
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &RunStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RunStore) key(runID string) string {
	return s.prefix + runID
}

// SetSummary writes the full summary, refreshing the TTL.
func (s *RunStore) SetSummary(ctx context.Context, summary harvest.RunSummary) error {
	if summary.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}
	if err := s.client.Set(ctx, s.key(summary.RunID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store run summary: %w", err)
	}
	return nil
}

// updateRetries bounds the optimistic-transaction retry loop. Contention
// on one run key is at most the worker pool size, so conflicts are rare
// and short-lived.
const updateRetries = 8

// UpdateSummary applies the mutation under a WATCH/MULTI transaction so
// two workers finishing requests of the same run never lose each other's
// pending decrement or counters. The write is retried when a concurrent
// update invalidates the watched key.
func (s *RunStore) UpdateSummary(ctx context.Context, runID string, apply func(*harvest.RunSummary)) (harvest.RunSummary, error) {
	key := s.key(runID)
	var updated harvest.RunSummary

	txn := func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrRunNotFound
		}
		if err != nil {
			return fmt.Errorf("load run summary: %w", err)
		}
		var summary harvest.RunSummary
		if err := json.Unmarshal(payload, &summary); err != nil {
			return fmt.Errorf("decode run summary: %w", err)
		}

		apply(&summary)

		out, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("marshal run summary: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		updated = summary
		return nil
	}

	for i := 0; i < updateRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return harvest.RunSummary{}, err
	}
	return harvest.RunSummary{}, fmt.Errorf("update run summary: contention on run %s", runID)
}

// GetSummary loads one run's summary.
func (s *RunStore) GetSummary(ctx context.Context, runID string) (harvest.RunSummary, error) {
	payload, err := s.client.Get(ctx, s.key(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return harvest.RunSummary{}, ErrRunNotFound
	}
	if err != nil {
		return harvest.RunSummary{}, fmt.Errorf("load run summary: %w", err)
	}
	var summary harvest.RunSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return harvest.RunSummary{}, fmt.Errorf("decode run summary: %w", err)
	}
	return summary, nil
}
