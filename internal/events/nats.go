package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"task-planner/internal/logger"
)

// NATSPublisher publishes task events on tasks.<user_id>.<kind>.
type NATSPublisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// Connect dials NATS with reconnect-forever semantics.
func Connect(url string) (*nats.Conn, error) {
	log := logger.With("nats")
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{
		nc:     nc,
		logger: logger.With("nats_publisher"),
	}
}

// Subject returns the subject an event is published on.
func Subject(e Event) string {
	return fmt.Sprintf("tasks.%s.%s", e.UserID, e.Kind)
}

func (p *NATSPublisher) TaskChanged(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal task event: %w", err)
	}
	if err := p.nc.Publish(Subject(e), data); err != nil {
		return fmt.Errorf("publish task event: %w", err)
	}
	p.logger.DebugContext(ctx, "task event sent", "subject", Subject(e))
	return nil
}

var _ Publisher = (*NATSPublisher)(nil)
