package eventstream

import (
	"context"
	"errors"
)

// ErrNilEvent indicates a nil event payload was provided to a publisher.
var ErrNilEvent = errors.New("nil branch event")

// Publisher publishes branch lifecycle events to an event stream backend.
type Publisher interface {
	PublishBranchEvent(ctx context.Context, event *BranchEvent) error
	Close() error
}
