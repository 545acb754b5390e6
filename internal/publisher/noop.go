package publisher

import (
	"context"

	"github.com/skillmap/harvester/internal/harvest"
)

// Noop discards run summaries; used when no Pub/Sub project is
// configured.
type Noop struct{}

// NewNoop creates a Noop publisher.
func NewNoop() *Noop {
	return &Noop{}
}

// Publish does nothing.
func (Noop) Publish(context.Context, harvest.RunSummary) error {
	return nil
}
