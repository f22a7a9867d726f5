// Package hook holds the post-call hooks run when a call.ended event arrives.
package hook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"dunning/internal/calls"
	"dunning/internal/webhook"
	id "dunning/pkg/domain"
)

// Noop is the default hook when nothing downstream is configured.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) OnCallEnded(context.Context, webhook.SafeData) error { return nil }

// Producer is the subset of *kgo.Client the Kafka hook needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaHook publishes the safe payload of every ended call, keyed by call id
// so one call's events stay on one partition.
type KafkaHook struct {
	producer Producer
	topic    string
}

// NewKafkaHook publishes to topic, or to the client's default produce topic
// when topic is empty.
func NewKafkaHook(producer Producer, topic string) *KafkaHook {
	return &KafkaHook{producer: producer, topic: topic}
}

func (h *KafkaHook) Name() string { return "kafka" }

func (h *KafkaHook) OnCallEnded(ctx context.Context, data webhook.SafeData) error {
	value, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode call.completed: %w", err)
	}
	rec := &kgo.Record{
		Topic: h.topic,
		Key:   []byte(data.CallID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte("call.completed")},
		},
	}
	if err := h.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce call.completed: %w", err)
	}
	return nil
}

// Completer records call artifacts once a call has ended.
type Completer interface {
	Complete(ctx context.Context, callID id.CallID, fallback id.ResidentID) (*calls.Attempt, error)
}

// CallLog fetches the ended call's artifacts from the provider and writes the
// call log row. A row already written by the polling path counts as done.
type CallLog struct {
	completer Completer
}

func NewCallLog(completer Completer) *CallLog {
	return &CallLog{completer: completer}
}

func (h *CallLog) Name() string { return "call_log" }

// OnCallEnded fails when the provider does not report the call as ended yet,
// so a redelivery of the event can try again.
func (h *CallLog) OnCallEnded(ctx context.Context, data webhook.SafeData) error {
	attempt, err := h.completer.Complete(ctx, data.CallID, "")
	if err != nil {
		return err
	}
	if attempt == nil || attempt.State != calls.StateCompleted {
		return fmt.Errorf("call %s has not ended at the provider yet", data.CallID)
	}
	return nil
}
