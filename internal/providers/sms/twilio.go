// Package sms sends text messages through Twilio's REST API.
package sms

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"

	"dunning/internal/platform/config"
	"dunning/internal/providers"
)

const ProviderName = "twilio"

// Twilio sends SMS from a single configured number.
type Twilio struct {
	http       *resty.Client
	accountSID string
	from       string
}

func NewTwilio(cfg config.TwilioConfig, timeout time.Duration) *Twilio {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken).
		SetHeader("Accept", "application/json")
	return &Twilio{http: client, accountSID: cfg.AccountSID, from: cfg.FromNumber}
}

type messageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// Send delivers body to the number and returns Twilio's message SID.
func (t *Twilio) Send(ctx context.Context, to, body string) (string, error) {
	resp, err := t.http.R().
		SetContext(ctx).
		SetPathParam("sid", t.accountSID).
		SetFormData(map[string]string{
			"To":   to,
			"From": t.from,
			"Body": body,
		}).
		Post("/2010-04-01/Accounts/{sid}/Messages.json")
	if err != nil {
		return "", providers.FromTransport(ProviderName, "send_sms", err)
	}
	if resp.IsError() {
		return "", providers.FromStatus(ProviderName, "send_sms", resp.StatusCode(), resp.String())
	}
	var out messageResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil || out.SID == "" {
		return "", providers.NewProviderError(providers.ErrorBadData, ProviderName, "send_sms", "response missing message sid", err)
	}
	return out.SID, nil
}
