package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"dunning/internal/platform/metrics"
	"dunning/internal/records"
	"dunning/internal/scheduling"
	id "dunning/pkg/domain"
	dErrors "dunning/pkg/domain-errors"
	"dunning/pkg/platform/httputil"
	"dunning/pkg/requestcontext"
)

type Service interface {
	Book(ctx context.Context, req scheduling.Request) (*records.Appointment, error)
}

// Handler exposes appointment booking to the voice agent.
type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{service: service, logger: logger, metrics: metrics}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/appointments", h.handleBook)
}

type bookRequest struct {
	CallID          string `json:"call_id"`
	ResidentID      string `json:"resident_id"`
	ContactEmail    string `json:"contact_email"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Title           string `json:"title"`
	Description     string `json:"description"`

	start time.Time
}

func (req *bookRequest) Validate() error {
	req.ResidentID = strings.TrimSpace(req.ResidentID)
	req.ContactEmail = strings.TrimSpace(req.ContactEmail)
	if req.ResidentID == "" {
		return dErrors.New(dErrors.CodeValidation, "resident_id is required")
	}
	if req.ContactEmail == "" {
		return dErrors.New(dErrors.CodeValidation, "contact_email is required")
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "start_time must be RFC 3339 with an offset")
	}
	req.start = start
	return nil
}

type appointmentResponse struct {
	AppointmentID   int64  `json:"appointment_id"`
	CallID          string `json:"call_id,omitempty"`
	ResidentID      string `json:"resident_id"`
	CalendarEventID string `json:"calendar_event_id"`
	Title           string `json:"title"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
}

func (h *Handler) handleBook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[bookRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	residentID, err := id.ParseResidentID(req.ResidentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	appt, err := h.service.Book(ctx, scheduling.Request{
		CallID:          id.CallID(strings.TrimSpace(req.CallID)),
		ResidentID:      residentID,
		ContactEmail:    req.ContactEmail,
		Start:           req.start,
		DurationMinutes: req.DurationMinutes,
		Title:           req.Title,
		Description:     req.Description,
	})
	if err != nil {
		switch dErrors.CodeOf(err) {
		case dErrors.CodeConflict, dErrors.CodeComplianceRejected, dErrors.CodeValidation:
		default:
			h.logger.ErrorContext(ctx, "appointment booking failed",
				"request_id", requestID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, appointmentResponse{
		AppointmentID:   appt.AppointmentID,
		CallID:          appt.CallID.String(),
		ResidentID:      appt.ResidentID.String(),
		CalendarEventID: appt.CalendarEventID.String(),
		Title:           appt.Title,
		StartTime:       appt.StartTime.Format(time.RFC3339),
		EndTime:         appt.EndTime.Format(time.RFC3339),
	})
}
