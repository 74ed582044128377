package notify

import (
	"context"

	"github.com/701789262a/backend-dailychat/provider"
)

// JSONSender is the part of the kafka producer the sink needs.
type JSONSender interface {
	SendJSON(ctx context.Context, topic, key string, value interface{}) error
}

// KafkaSink publishes events keyed by clip hash, so every event for one
// clip lands on the same partition.
type KafkaSink struct {
	producer JSONSender
	topic    string
}

var _ provider.Sink[Event] = (*KafkaSink)(nil)

// NewKafkaSink publishes to topic, or to the producer's default topic
// when topic is empty.
func NewKafkaSink(p JSONSender, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

func (k *KafkaSink) Name() string                       { return "kafka" }
func (k *KafkaSink) IsAvailable(_ context.Context) bool { return k.producer != nil }

func (k *KafkaSink) Send(ctx context.Context, ev Event) error {
	return k.producer.SendJSON(ctx, k.topic, ev.Clip, ev)
}
