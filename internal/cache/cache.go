package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by GetJSON when the key is absent.
var ErrMiss = errors.New("cache miss")

// Cache stores JSON-encoded values with a TTL.
type Cache interface {
	GetJSON(ctx context.Context, key string, target interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Noop never stores anything.
type Noop struct{}

func (Noop) GetJSON(context.Context, string, interface{}) error { return ErrMiss }

func (Noop) SetJSON(context.Context, string, interface{}, time.Duration) error { return nil }

var _ Cache = Noop{}
