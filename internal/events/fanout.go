package events

import (
	"context"

	"go.uber.org/zap"
)

// Fanout forwards each event to every publisher. Failures are logged and do not
// stop delivery to the remaining publishers.
type Fanout struct {
	publishers []Publisher
	logger     *zap.Logger
}

// NewFanout combines the non-nil publishers.
func NewFanout(logger *zap.Logger, publishers ...Publisher) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	active := make([]Publisher, 0, len(publishers))
	for _, publisher := range publishers {
		if publisher != nil {
			active = append(active, publisher)
		}
	}
	return &Fanout{publishers: active, logger: logger}
}

// Publish always returns nil; individual failures are logged.
func (f *Fanout) Publish(ctx context.Context, event Event) error {
	for _, publisher := range f.publishers {
		if err := publisher.Publish(ctx, event); err != nil {
			f.logger.Warn("event publish failed",
				zap.String("event_type", string(event.Type)),
				zap.String("proposal_id", event.ProposalID),
				zap.Error(err))
		}
	}
	return nil
}
