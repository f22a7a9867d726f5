// Package contract holds the behavior every voice.Provider adapter must show
// against a recorded provider fixture.
package contract

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"dunning/internal/providers"
	"dunning/internal/providers/voice"
	id "dunning/pkg/domain"
)

// Expectation is what the fixture server is known to return.
type Expectation struct {
	CallID       id.CallID
	Transcript   string
	RecordingURL string
	Cost         float64
	ErrorPayload string
}

// Suite runs the shared contract. Healthy points at a fixture server that
// succeeds; Failing points at one that answers every request with a 5xx
// carrying ErrorPayload.
type Suite struct {
	Healthy voice.Provider
	Failing voice.Provider
	Request voice.CallRequest
	Want    Expectation
}

func (s *Suite) Run(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	t.Run("initiate returns the provider call id", func(t *testing.T) {
		callID, err := s.Healthy.InitiateCall(ctx, s.Request)
		if err != nil {
			t.Fatalf("initiate failed: %v", err)
		}
		if callID != s.Want.CallID {
			t.Errorf("expected call id %s, got %s", s.Want.CallID, callID)
		}
	})

	t.Run("details carry the call id and terminal status", func(t *testing.T) {
		d, err := s.Healthy.RetrieveCallDetails(ctx, s.Want.CallID)
		if err != nil {
			t.Fatalf("retrieve failed: %v", err)
		}
		if d.CallID != s.Want.CallID {
			t.Errorf("expected call id %s, got %s", s.Want.CallID, d.CallID)
		}
		if !d.Ended {
			t.Errorf("expected ended call, status %q", d.Status)
		}

		a := voice.ExtractArtifacts(s.Healthy, d)
		if a.Transcript == nil || *a.Transcript != s.Want.Transcript {
			t.Errorf("unexpected transcript %v", a.Transcript)
		}
		if a.RecordingURL == nil || *a.RecordingURL != s.Want.RecordingURL {
			t.Errorf("unexpected recording url %v", a.RecordingURL)
		}
		if a.Cost == nil || *a.Cost != s.Want.Cost {
			t.Errorf("unexpected cost %v", a.Cost)
		}
		if len(a.Analysis) == 0 {
			t.Error("expected analysis payload")
		}
	})

	t.Run("missing artifacts are nil", func(t *testing.T) {
		sparse := &voice.CallDetails{Raw: json.RawMessage(`{}`)}
		a := voice.ExtractArtifacts(s.Healthy, sparse)
		if a.Transcript != nil || a.RecordingURL != nil || a.Cost != nil || a.Analysis != nil {
			t.Errorf("expected empty artifacts, got %+v", a)
		}
	})

	t.Run("provider failures surface the payload", func(t *testing.T) {
		_, err := s.Failing.InitiateCall(ctx, s.Request)
		var pe *providers.ProviderError
		if !errors.As(err, &pe) {
			t.Fatalf("expected ProviderError, got %v", err)
		}
		if pe.ProviderID != s.Failing.Name() {
			t.Errorf("expected provider %s, got %s", s.Failing.Name(), pe.ProviderID)
		}
		if pe.Category != providers.ErrorProviderOutage {
			t.Errorf("expected provider_outage, got %s", pe.Category)
		}
		if !strings.Contains(pe.Message, s.Want.ErrorPayload) {
			t.Errorf("payload %q not surfaced in %q", s.Want.ErrorPayload, pe.Message)
		}

		_, err = s.Failing.RetrieveCallDetails(ctx, s.Want.CallID)
		if providers.GetCategory(err) != providers.ErrorProviderOutage {
			t.Errorf("expected provider_outage on retrieve, got %v", err)
		}
	})
}
