package voice

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "dunning/pkg/domain"
)

type namedProvider struct{ name string }

func (p namedProvider) Name() string { return p.name }
func (namedProvider) InitiateCall(context.Context, CallRequest) (id.CallID, error) {
	return "", nil
}
func (namedProvider) RetrieveCallDetails(context.Context, id.CallID) (*CallDetails, error) {
	return nil, nil
}
func (namedProvider) Transcript(*CallDetails) *string       { return StringPtr("hello") }
func (namedProvider) Analysis(*CallDetails) json.RawMessage { return nil }
func (namedProvider) RecordingURL(*CallDetails) *string     { return nil }
func (namedProvider) Cost(*CallDetails) *float64            { return nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(namedProvider{"vapi"}))
	require.NoError(t, r.Register(namedProvider{"retell"}))
	assert.Error(t, r.Register(namedProvider{"vapi"}))

	p, ok := r.Get("retell")
	require.True(t, ok)
	assert.Equal(t, "retell", p.Name())

	_, ok = r.Get("bland")
	assert.False(t, ok)
	assert.Equal(t, []string{"retell", "vapi"}, r.Names())
}

func TestExtractArtifacts(t *testing.T) {
	a := ExtractArtifacts(namedProvider{"vapi"}, &CallDetails{})
	require.NotNil(t, a.Transcript)
	assert.Equal(t, "hello", *a.Transcript)
	assert.Nil(t, a.RecordingURL)
	assert.Nil(t, a.Cost)
}

func TestStringPtr(t *testing.T) {
	assert.Nil(t, StringPtr(""))
	assert.Equal(t, "x", *StringPtr("x"))
}
