package archive

import "context"

// Noop discards page bodies; used when no archive bucket is configured.
type Noop struct{}

// NewNoop creates a Noop archive.
func NewNoop() *Noop {
	return &Noop{}
}

// Put does nothing.
func (Noop) Put(context.Context, string, string, []byte) error {
	return nil
}
