package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaBus talks to Kafka brokers. Host may hold a comma separated broker list.
type KafkaBus struct {
	// ClientID is reported to the brokers.
	ClientID string
}

// NewKafkaBus returns a Kafka-backed Bus.
func NewKafkaBus(clientID string) *KafkaBus {
	return &KafkaBus{ClientID: clientID}
}

// Publish writes messages with RequireOne acknowledgements.
func (b *KafkaBus) Publish(ctx context.Context, host, topic string, messages []string) error {
	brokers := splitBrokers(host)
	if len(brokers) == 0 {
		return fmt.Errorf("no kafka brokers in %q", host)
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Transport:              &kafka.Transport{ClientID: b.ClientID},
	}
	defer w.Close()

	now := time.Now()
	msgs := make([]kafka.Message, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, kafka.Message{Value: []byte(m), Time: now})
	}
	if err := w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write %s: %w", topic, err)
	}
	return nil
}

// ReadOne reads the first message from partition 0 of topic.
func (b *KafkaBus) ReadOne(ctx context.Context, host, topic string, from StartOffset) (Message, error) {
	brokers := splitBrokers(host)
	if len(brokers) == 0 {
		return Message{}, fmt.Errorf("no kafka brokers in %q", host)
	}
	start := kafka.LastOffset
	if from == OffsetEarliest {
		start = kafka.FirstOffset
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		MaxWait: 250 * time.Millisecond,
		Dialer:  &kafka.Dialer{ClientID: b.ClientID, Timeout: 10 * time.Second},
	})
	defer r.Close()
	// StartOffset only applies to group readers; seek explicitly.
	if err := r.SetOffset(start); err != nil {
		return Message{}, fmt.Errorf("kafka seek %s: %w", topic, err)
	}

	m, err := r.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Message{}, err
		}
		return Message{}, fmt.Errorf("kafka read %s: %w", topic, err)
	}
	return Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       string(m.Key),
		Value:     string(m.Value),
		Time:      m.Time,
	}, nil
}

func splitBrokers(host string) []string {
	var out []string
	for _, part := range strings.Split(host, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
