package messaging

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("broker is closed")

// Broker moves raw payloads over named channels.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe delivers messages until ctx is done or the broker closes.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}
