// Package retell adapts the Retell AI REST API to voice.Provider.
package retell

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

const Name = config.VoiceProviderRetell

// Provider places calls from a Retell number with an agent or workflow override.
type Provider struct {
	http       *resty.Client
	fromNumber string
	agentID    string
	workflowID string
}

func New(cfg config.RetellConfig, timeout time.Duration) *Provider {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Provider{
		http:       client,
		fromNumber: cfg.FromNumber,
		agentID:    cfg.AgentID,
		workflowID: cfg.WorkflowID,
	}
}

func (p *Provider) Name() string { return Name }

type createCallRequest struct {
	FromNumber         string            `json:"from_number"`
	ToNumber           string            `json:"to_number"`
	OverrideAgentID    string            `json:"override_agent_id,omitempty"`
	OverrideWorkflowID string            `json:"override_workflow_id,omitempty"`
	DynamicVariables   map[string]string `json:"retell_llm_dynamic_variables,omitempty"`
}

type createCallResponse struct {
	CallID     string `json:"call_id"`
	CallStatus string `json:"call_status"`
}

// InitiateCall passes the script variables as Retell dynamic variables. An
// agent override wins over a workflow override.
func (p *Provider) InitiateCall(ctx context.Context, req voice.CallRequest) (id.CallID, error) {
	body := createCallRequest{
		FromNumber: p.fromNumber,
		ToNumber:   req.ContactNumber,
		DynamicVariables: map[string]string{
			"resident_id":   req.ResidentID.String(),
			"resident_name": req.ResidentName,
			"contact_name":  req.ContactName,
			"facility_name": req.FacilityName,
			"balance":       req.Balance.String(),
			"due_date":      req.DueDate,
			"payer_desc":    req.PayerDesc,
		},
	}
	if p.agentID != "" {
		body.OverrideAgentID = p.agentID
	} else {
		body.OverrideWorkflowID = p.workflowID
	}

	var out createCallResponse
	resp, err := p.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/v2/create-phone-call")
	if err != nil {
		return "", providers.FromTransport(Name, "initiate_call", err)
	}
	if resp.IsError() {
		return "", providers.FromStatus(Name, "initiate_call", resp.StatusCode(), resp.String())
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil || out.CallID == "" {
		return "", providers.NewProviderError(providers.ErrorBadData, Name, "initiate_call", "response missing call_id", nil)
	}
	return id.CallID(out.CallID), nil
}

type callDetails struct {
	CallID       string            `json:"call_id"`
	CallStatus   string            `json:"call_status"`
	ToNumber     string            `json:"to_number"`
	Transcript   string            `json:"transcript"`
	RecordingURL string            `json:"recording_url"`
	CallAnalysis json.RawMessage   `json:"call_analysis"`
	Variables    map[string]string `json:"retell_llm_dynamic_variables"`
	CallCost     *struct {
		CombinedCost float64 `json:"combined_cost"`
	} `json:"call_cost"`
}

func (p *Provider) RetrieveCallDetails(ctx context.Context, callID id.CallID) (*voice.CallDetails, error) {
	resp, err := p.http.R().
		SetContext(ctx).
		SetPathParam("id", callID.String()).
		Get("/v2/get-call/{id}")
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
		CallID:         id.CallID(d.CallID),
		ResidentID:     id.ResidentID(d.Variables["resident_id"]),
		Status:         d.CallStatus,
		Ended:          d.CallStatus == "ended" || d.CallStatus == "error",
		CustomerNumber: d.ToNumber,
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
	return voice.StringPtr(decode(d).Transcript)
}

func (p *Provider) Analysis(d *voice.CallDetails) json.RawMessage {
	a := decode(d).CallAnalysis
	if len(a) == 0 || string(a) == "null" {
		return nil
	}
	return a
}

func (p *Provider) RecordingURL(d *voice.CallDetails) *string {
	return voice.StringPtr(decode(d).RecordingURL)
}

// Cost converts Retell's combined cost, reported in cents, to dollars.
func (p *Provider) Cost(d *voice.CallDetails) *float64 {
	c := decode(d).CallCost
	if c == nil {
		return nil
	}
	dollars := c.CombinedCost / 100
	return &dollars
}
