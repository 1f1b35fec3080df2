// Package queue holds the message-queue transports used by message actions.
package queue

import (
	"context"
	"time"
)

// Message is one record received from a topic.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       string
	Value     string
	Time      time.Time
}

// StartOffset selects where a reader begins on a topic.
type StartOffset string

const (
	OffsetLatest   StartOffset = "latest"
	OffsetEarliest StartOffset = "earliest"
)

// Bus publishes and consumes messages on a host's topics.
type Bus interface {
	// Publish returns once the broker has acknowledged every message.
	Publish(ctx context.Context, host, topic string, messages []string) error
	// ReadOne blocks until the first message arrives or ctx is done.
	ReadOne(ctx context.Context, host, topic string, from StartOffset) (Message, error)
}
