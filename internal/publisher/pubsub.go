// Package publisher emits finished run summaries for downstream
// consumers.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/skillmap/harvester/internal/harvest"
)

// PubSub publishes run summaries to a Google Cloud Pub/Sub topic.
type PubSub struct {
	topic  *pubsub.Topic
	logger *zap.Logger
}

// NewPubSub builds a publisher for one topic.
func NewPubSub(ctx context.Context, projectID, topicName string, logger *zap.Logger) (*PubSub, error) {
	if projectID == "" || topicName == "" {
		return nil, fmt.Errorf("project id and topic name are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &PubSub{topic: client.Topic(topicName), logger: logger}, nil
}

// Publish marshals the summary to JSON and publishes it, waiting for the
// server acknowledgment.
func (p *PubSub) Publish(ctx context.Context, summary harvest.RunSummary) error {
	if p == nil || p.topic == nil {
		return fmt.Errorf("pubsub publisher is not configured")
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"run_id": summary.RunID,
			"status": string(summary.Status),
		},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("publish run summary: %w", err)
	}
	p.logger.Debug("run summary published",
		zap.String("run_id", summary.RunID),
		zap.String("message_id", id),
	)
	return nil
}

// Stop flushes pending messages.
func (p *PubSub) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}
