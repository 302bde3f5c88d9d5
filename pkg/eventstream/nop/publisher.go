// Package nop provides the disabled-mode eventstream publisher.
package nop

import (
	"context"

	"github.com/loomworks/loom/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and when no
// event backend is configured.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishBranchEvent validates input and otherwise does nothing.
func (p *Publisher) PublishBranchEvent(_ context.Context, event *eventstream.BranchEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
