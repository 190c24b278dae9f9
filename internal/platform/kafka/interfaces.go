package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Producer publishes messages to one topic.
type Producer interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

// Consumer reads messages from one topic as part of a consumer group.
type Consumer interface {
	ReadMessage(ctx context.Context) (*kafka.Message, error)
	Close() error
}
