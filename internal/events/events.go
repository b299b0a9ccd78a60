package events

import (
	"context"
	"time"
)

// Kind names what happened to a task.
type Kind string

const (
	TaskCreated   Kind = "created"
	TaskUpdated   Kind = "updated"
	TaskPatched   Kind = "patched"
	TaskCompleted Kind = "completed"
	TaskDeleted   Kind = "deleted"
)

// Event is published after every committed write to a task.
type Event struct {
	Kind      Kind      `json:"kind"`
	UserID    string    `json:"user_id"`
	TaskID    string    `json:"task_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher fans task changes out to interested parties.
type Publisher interface {
	TaskChanged(ctx context.Context, e Event) error
}

// Multi publishes to every publisher, returning the first error.
type Multi []Publisher

func (m Multi) TaskChanged(ctx context.Context, e Event) error {
	var first error
	for _, p := range m {
		if err := p.TaskChanged(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ Publisher = Multi(nil)
