package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryBus is an in-process Bus. Readers waiting at the latest offset only
// see messages published after they subscribed.
type MemoryBus struct {
	mu      sync.Mutex
	topics  map[string][]Message
	waiters map[string][]chan Message
	// PublishErr, when set, is returned by Publish.
	PublishErr error
}

// NewMemoryBus creates an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		topics:  map[string][]Message{},
		waiters: map[string][]chan Message{},
	}
}

func memoryKey(host, topic string) string {
	return host + "/" + topic
}

// Publish stores the messages and wakes pending readers.
func (b *MemoryBus) Publish(ctx context.Context, host, topic string, messages []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.PublishErr != nil {
		return b.PublishErr
	}
	key := memoryKey(host, topic)
	for _, value := range messages {
		msg := Message{
			Topic:  topic,
			Offset: int64(len(b.topics[key])),
			Value:  value,
			Time:   time.Now(),
		}
		b.topics[key] = append(b.topics[key], msg)
		for _, ch := range b.waiters[key] {
			ch <- msg
		}
		b.waiters[key] = nil
	}
	return nil
}

// ReadOne returns the first stored message for earliest, or waits for the next publish.
func (b *MemoryBus) ReadOne(ctx context.Context, host, topic string, from StartOffset) (Message, error) {
	key := memoryKey(host, topic)
	b.mu.Lock()
	if from == OffsetEarliest && len(b.topics[key]) > 0 {
		msg := b.topics[key][0]
		b.mu.Unlock()
		return msg, nil
	}
	ch := make(chan Message, 1)
	b.waiters[key] = append(b.waiters[key], ch)
	b.mu.Unlock()

	select {
	case msg := <-ch:
		return msg, nil
	case <-ctx.Done():
		b.removeWaiter(key, ch)
		return Message{}, ctx.Err()
	}
}

// Messages returns a copy of everything published to topic.
func (b *MemoryBus) Messages(host, topic string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.topics[memoryKey(host, topic)]...)
}

func (b *MemoryBus) removeWaiter(key string, ch chan Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	waiters := b.waiters[key]
	for i, w := range waiters {
		if w == ch {
			b.waiters[key] = append(waiters[:i], waiters[i+1:]...)
			return
		}
	}
}
