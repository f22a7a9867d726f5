package hook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"dunning/internal/calls"
	"dunning/internal/webhook"
	id "dunning/pkg/domain"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	var out kgo.ProduceResults
	for _, r := range rs {
		p.records = append(p.records, r)
		out = append(out, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return out
}

func safe() webhook.SafeData {
	d := 184.0
	return webhook.SafeData{
		CallID:       "call-1",
		EventType:    webhook.EventCallEnded,
		Timestamp:    time.Date(2025, 5, 1, 16, 0, 0, 0, time.UTC),
		CallDuration: &d,
		ActionItems:  []any{},
	}
}

func TestKafkaHook(t *testing.T) {
	p := &fakeProducer{}
	h := NewKafkaHook(p, "dunning.call-events")

	require.NoError(t, h.OnCallEnded(context.Background(), safe()))
	require.Len(t, p.records, 1)
	rec := p.records[0]
	assert.Equal(t, "dunning.call-events", rec.Topic)
	assert.Equal(t, "call-1", string(rec.Key))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Value, &body))
	assert.Equal(t, float64(184), body["call_duration"])
}

func TestKafkaHook_ProduceError(t *testing.T) {
	p := &fakeProducer{err: errors.New("NOT_LEADER_FOR_PARTITION")}
	err := NewKafkaHook(p, "").OnCallEnded(context.Background(), safe())
	assert.ErrorContains(t, err, "produce call.completed")
}

type fakeCompleter struct {
	callID id.CallID
	state  calls.State
	err    error
}

func (f *fakeCompleter) Complete(_ context.Context, callID id.CallID, _ id.ResidentID) (*calls.Attempt, error) {
	f.callID = callID
	if f.err != nil {
		return nil, f.err
	}
	state := f.state
	if state == "" {
		state = calls.StateCompleted
	}
	return &calls.Attempt{CallID: callID, State: state}, nil
}

func TestCallLog(t *testing.T) {
	c := &fakeCompleter{}
	require.NoError(t, NewCallLog(c).OnCallEnded(context.Background(), safe()))
	assert.Equal(t, id.CallID("call-1"), c.callID)

	c.err = errors.New("provider timeout")
	assert.Error(t, NewCallLog(c).OnCallEnded(context.Background(), safe()))
}

func TestCallLog_NotEndedAtProviderIsAnError(t *testing.T) {
	c := &fakeCompleter{state: calls.StatePending}
	err := NewCallLog(c).OnCallEnded(context.Background(), safe())
	assert.ErrorContains(t, err, "has not ended")
}

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop{}.OnCallEnded(context.Background(), safe()))
}
