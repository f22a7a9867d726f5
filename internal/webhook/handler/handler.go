package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"dunning/internal/platform/metrics"
	"dunning/internal/webhook"
	id "dunning/pkg/domain"
	dErrors "dunning/pkg/domain-errors"
	"dunning/pkg/platform/httputil"
	"dunning/pkg/requestcontext"
)

type Service interface {
	Ingest(ctx context.Context, ev webhook.Event) (*webhook.Ack, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{service: service, logger: logger, metrics: metrics}
}

// Register mounts the provider callback. The route must sit behind the
// webhook secret middleware.
func (h *Handler) Register(r chi.Router) {
	r.Post("/webhook", h.handleWebhook)
}

type eventRequest struct {
	EventType string         `json:"event_type"`
	CallID    string         `json:"call_id"`
	Data      map[string]any `json:"data"`
	Metadata  map[string]any `json:"metadata"`
}

func (req *eventRequest) Validate() error {
	req.EventType = strings.TrimSpace(req.EventType)
	req.CallID = strings.TrimSpace(req.CallID)
	if req.EventType == "" {
		return dErrors.New(dErrors.CodeValidation, "event_type is required")
	}
	if req.CallID == "" {
		return dErrors.New(dErrors.CodeValidation, "call_id is required")
	}
	return nil
}

type ackResponse struct {
	Status    string `json:"status"`
	EventID   int64  `json:"event_id,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[eventRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		h.metrics.IncWebhookEvent("unknown", "rejected")
		return
	}

	ack, err := h.service.Ingest(ctx, webhook.Event{
		EventType: req.EventType,
		CallID:    id.CallID(req.CallID),
		Data:      req.Data,
		Metadata:  req.Metadata,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "webhook ingestion failed",
			"request_id", requestID,
			"call_id", req.CallID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ackResponse{Status: "received", EventID: ack.EventID, Duplicate: ack.Duplicate})
}
