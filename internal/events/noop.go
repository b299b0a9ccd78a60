package events

import (
	"context"
	"log/slog"

	"task-planner/internal/logger"
)

// NoopPublisher only logs; used when NATS is not configured.
type NoopPublisher struct {
	logger *slog.Logger
}

func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{logger: logger.With("noop_publisher")}
}

func (p *NoopPublisher) TaskChanged(ctx context.Context, e Event) error {
	p.logger.DebugContext(ctx, "task changed (noop)", "kind", e.Kind, "task_id", e.TaskID)
	return nil
}

var _ Publisher = (*NoopPublisher)(nil)
