package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"dunning/internal/calls"
	"dunning/internal/platform/metrics"
	"dunning/internal/records"
	id "dunning/pkg/domain"
	dErrors "dunning/pkg/domain-errors"
	"dunning/pkg/platform/httputil"
	"dunning/pkg/requestcontext"
)

// Service starts calls and reads recorded ones.
type Service interface {
	Initiate(ctx context.Context, residentID id.ResidentID) (*calls.Attempt, error)
	Lookup(ctx context.Context, callID id.CallID) (*records.CallAttempt, error)
}

// Handler exposes outbound call initiation to operators. Completion arrives
// through the provider webhook.
type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{service: service, logger: logger, metrics: metrics}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/calls", h.handleInitiate)
	r.Get("/calls/{call_id}", h.handleGet)
}

type initiateRequest struct {
	ResidentID string `json:"resident_id"`
}

func (req *initiateRequest) Validate() error {
	req.ResidentID = strings.TrimSpace(req.ResidentID)
	if req.ResidentID == "" {
		return dErrors.New(dErrors.CodeValidation, "resident_id is required")
	}
	return nil
}

type attemptResponse struct {
	CallID     string `json:"call_id,omitempty"`
	ResidentID string `json:"resident_id"`
	Provider   string `json:"provider"`
	State      string `json:"state"`
	Reason     string `json:"reason,omitempty"`
}

type callLogResponse struct {
	CallID        string   `json:"call_id"`
	ResidentID    string   `json:"resident_id"`
	Provider      string   `json:"provider"`
	Status        string   `json:"status"`
	Cost          *float64 `json:"cost,omitempty"`
	RecordingURL  *string  `json:"recording_url,omitempty"`
	HasTranscript bool     `json:"has_transcript"`
	CreatedAt     string   `json:"created_at"`
}

func (h *Handler) handleInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[initiateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	residentID, err := id.ParseResidentID(req.ResidentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	attempt, err := h.service.Initiate(ctx, residentID)
	if err != nil {
		// the provider's rejection is part of the answer; other failures only carry their code
		if attempt != nil && attempt.State == calls.StateFailed && dErrors.HasCode(err, dErrors.CodeProvider) {
			httputil.WriteJSON(w, http.StatusBadGateway, toAttemptResponse(attempt))
			return
		}
		if !dErrors.HasCode(err, dErrors.CodeNotFound) && !dErrors.HasCode(err, dErrors.CodeComplianceRejected) {
			h.logger.ErrorContext(ctx, "call initiation failed",
				"request_id", requestID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, toAttemptResponse(attempt))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callID, err := id.ParseCallID(chi.URLParam(r, "call_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.Lookup(ctx, callID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, callLogResponse{
		CallID:        c.CallID.String(),
		ResidentID:    c.ResidentID.String(),
		Provider:      c.Provider,
		Status:        c.Status,
		Cost:          c.Cost,
		RecordingURL:  c.RecordingURL,
		HasTranscript: c.Transcript != nil,
		CreatedAt:     c.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func toAttemptResponse(a *calls.Attempt) attemptResponse {
	return attemptResponse{
		CallID:     a.CallID.String(),
		ResidentID: a.ResidentID.String(),
		Provider:   a.Provider,
		State:      string(a.State),
		Reason:     a.Reason,
	}
}
