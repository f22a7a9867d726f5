// Package voice defines the single interface every outbound voice-agent
// provider implements, plus a registry to select one by name.
package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	id "dunning/pkg/domain"
)

// CallRequest is what the orchestrator hands a provider to place a call.
// Only what the agent script needs is included.
type CallRequest struct {
	ResidentID    id.ResidentID
	ContactName   string
	ContactNumber string
	ResidentName  string
	FacilityName  string
	Balance       id.Cents
	DueDate       string
	PayerDesc     string
}

// CallDetails is a provider's call record. Raw keeps the full payload so
// artifact extraction stays provider specific.
type CallDetails struct {
	CallID         id.CallID
	ResidentID     id.ResidentID
	Status         string
	Ended          bool
	CustomerNumber string
	Raw            json.RawMessage
}

//go:generate mockgen -source=provider.go -destination=mocks/provider_mock.go -package=mocks Provider

// Provider places calls and reads their artifacts back. Artifact accessors
// return nil when the provider did not include the field.
type Provider interface {
	Name() string
	InitiateCall(ctx context.Context, req CallRequest) (id.CallID, error)
	RetrieveCallDetails(ctx context.Context, callID id.CallID) (*CallDetails, error)
	Transcript(d *CallDetails) *string
	Analysis(d *CallDetails) json.RawMessage
	RecordingURL(d *CallDetails) *string
	Cost(d *CallDetails) *float64
}

// Artifacts is the post-call data persisted with a call attempt.
type Artifacts struct {
	Transcript   *string
	Analysis     json.RawMessage
	RecordingURL *string
	Cost         *float64
}

// ExtractArtifacts reads every artifact from d.
func ExtractArtifacts(p Provider, d *CallDetails) Artifacts {
	return Artifacts{
		Transcript:   p.Transcript(d),
		Analysis:     p.Analysis(d),
		RecordingURL: p.RecordingURL(d),
		Cost:         p.Cost(d),
	}
}

// Registry maintains the configured providers by name.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider to the registry
func (r *Registry) Register(p Provider) error {
	name := p.Name()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("voice provider %s already registered", name)
	}
	r.providers[name] = p
	return nil
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// StringPtr returns nil for empty strings.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
