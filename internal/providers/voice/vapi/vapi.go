// Package vapi adapts the Vapi REST API to voice.Provider.
package vapi

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"

	"dunning/internal/platform/config"
	"dunning/internal/providers"
	"dunning/internal/providers/voice"
	id "dunning/pkg/domain"
)

const Name = config.VoiceProviderVapi

// Provider places calls through a Vapi workflow attached to a phone number.
type Provider struct {
	http          *resty.Client
	workflowID    string
	phoneNumberID string
}

// New constructs a Vapi provider. Requests are never retried here.
func New(cfg config.VapiConfig, timeout time.Duration) *Provider {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Provider{http: client, workflowID: cfg.WorkflowID, phoneNumberID: cfg.PhoneNumberID}
}

func (p *Provider) Name() string { return Name }

type customer struct {
	Number     string `json:"number"`
	Name       string `json:"name,omitempty"`
	ExternalID string `json:"externalId,omitempty"`
}

type createCallRequest struct {
	WorkflowID    string   `json:"workflowId,omitempty"`
	PhoneNumberID string   `json:"phoneNumberId"`
	Customer      customer `json:"customer"`
	Name          string   `json:"name"`
}

type createCallResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// InitiateCall sends only the contact's number, spoken name and the resident
// id. The workflow fetches anything else through the verification tools.
func (p *Provider) InitiateCall(ctx context.Context, req voice.CallRequest) (id.CallID, error) {
	var out createCallResponse
	resp, err := p.http.R().
		SetContext(ctx).
		SetBody(createCallRequest{
			WorkflowID:    p.workflowID,
			PhoneNumberID: p.phoneNumberID,
			Customer: customer{
				Number:     req.ContactNumber,
				Name:       req.ContactName,
				ExternalID: req.ResidentID.String(),
			},
			Name: "Debt Call " + req.ResidentID.String(),
		}).
		Post("/call")
	if err != nil {
		return "", providers.FromTransport(Name, "initiate_call", err)
	}
	if resp.IsError() {
		return "", providers.FromStatus(Name, "initiate_call", resp.StatusCode(), resp.String())
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil || out.ID == "" {
		return "", providers.NewProviderError(providers.ErrorBadData, Name, "initiate_call", "response missing call id", nil)
	}
	return id.CallID(out.ID), nil
}

type callDetails struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	Cost     *float64 `json:"cost"`
	Customer struct {
		Number     string `json:"number"`
		ExternalID string `json:"externalId"`
	} `json:"customer"`
	Artifact struct {
		Transcript string `json:"transcript"`
		Recording  struct {
			StereoURL string `json:"stereoUrl"`
			Mono      struct {
				CombinedURL string `json:"combinedUrl"`
			} `json:"mono"`
		} `json:"recording"`
		RecordingURL string `json:"recordingUrl"`
	} `json:"artifact"`
	Analysis json.RawMessage `json:"analysis"`
}

func (p *Provider) RetrieveCallDetails(ctx context.Context, callID id.CallID) (*voice.CallDetails, error) {
	resp, err := p.http.R().
		SetContext(ctx).
		SetPathParam("id", callID.String()).
		Get("/call/{id}")
	if err != nil {
		return nil, providers.FromTransport(Name, "retrieve_call", err)
	}
	if resp.IsError() {
		return nil, providers.FromStatus(Name, "retrieve_call", resp.StatusCode(), resp.String())
	}
	var d callDetails
	if err := json.Unmarshal(resp.Body(), &d); err != nil {
		return nil, providers.NewProviderError(providers.ErrorBadData, Name, "retrieve_call", "malformed call payload", err)
	}
	return &voice.CallDetails{
		CallID:         id.CallID(d.ID),
		ResidentID:     id.ResidentID(d.Customer.ExternalID),
		Status:         d.Status,
		Ended:          d.Status == "ended",
		CustomerNumber: d.Customer.Number,
		Raw:            json.RawMessage(resp.Body()),
	}, nil
}

func decode(d *voice.CallDetails) callDetails {
	var out callDetails
	if d != nil {
		_ = json.Unmarshal(d.Raw, &out)
	}
	return out
}

func (p *Provider) Transcript(d *voice.CallDetails) *string {
	return voice.StringPtr(decode(d).Artifact.Transcript)
}

func (p *Provider) Analysis(d *voice.CallDetails) json.RawMessage {
	a := decode(d).Analysis
	if len(a) == 0 || string(a) == "null" {
		return nil
	}
	return a
}

// RecordingURL prefers the stereo recording and falls back to the mono mix.
func (p *Provider) RecordingURL(d *voice.CallDetails) *string {
	rec := decode(d).Artifact
	for _, u := range []string{rec.Recording.StereoURL, rec.Recording.Mono.CombinedURL, rec.RecordingURL} {
		if u != "" {
			return &u
		}
	}
	return nil
}

func (p *Provider) Cost(d *voice.CallDetails) *float64 {
	return decode(d).Cost
}
