package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dunning/internal/platform/metrics"
	"dunning/internal/records"
	id "dunning/pkg/domain"
	"dunning/pkg/platform/httputil"
	"dunning/pkg/requestcontext"
)

type Service interface {
	Lookup(ctx context.Context, f records.ResidentFilter) (*records.Resident, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{service: service, logger: logger, metrics: metrics}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/lookup-contact", h.handleLookup)
}

type lookupRequest struct {
	ResidentID   string `json:"resident_id"`
	ResidentName string `json:"resident_name"`
	DateOfBirth  string `json:"date_of_birth"`
	ContactName  string `json:"contact_name"`
}

type lookupResponse struct {
	ResidentID    string   `json:"resident_id"`
	ResidentName  string   `json:"resident_name"`
	ContactName   string   `json:"contact_name"`
	ContactNumber string   `json:"contact_number"`
	Balance       id.Cents `json:"balance"`
	DueDate       string   `json:"due_date,omitempty"`
	FacilityName  string   `json:"facility_name"`
	FacilityCode  string   `json:"facility_code"`
	PayerDesc     string   `json:"payer_desc"`
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[lookupRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.service.Lookup(ctx, records.ResidentFilter{
		ResidentID:   req.ResidentID,
		ResidentName: req.ResidentName,
		DateOfBirth:  req.DateOfBirth,
		ContactName:  req.ContactName,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := lookupResponse{
		ResidentID:    res.ResidentID.String(),
		ResidentName:  res.FullName(),
		ContactName:   res.ContactName(),
		ContactNumber: res.ContactNumber,
		Balance:       res.Balance,
		FacilityName:  res.FacilityName,
		FacilityCode:  res.FacilityCode,
		PayerDesc:     res.PayerDesc,
	}
	if res.DueDate != nil {
		// read aloud by the agent, so month and day only
		resp.DueDate = res.DueDate.Format("January 02")
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
