package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"dunning/internal/platform/metrics"
	"dunning/internal/verification"
	id "dunning/pkg/domain"
	dErrors "dunning/pkg/domain-errors"
	"dunning/pkg/platform/httputil"
	"dunning/pkg/requestcontext"
)

// Service verifies identity claims.
type Service interface {
	Verify(ctx context.Context, claim verification.Claim) (*verification.Result, error)
}

// Handler exposes identity verification to the voice agent.
type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{service: service, logger: logger, metrics: metrics}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/verify-identity", h.handleVerify)
}

type verifyRequest struct {
	ResidentID string `json:"resident_id"`
	FirstName  string `json:"resident_fname"`
	LastName   string `json:"resident_lname"`
	DOB        string `json:"resident_dob"`
}

func (req *verifyRequest) Validate() error {
	req.ResidentID = strings.TrimSpace(req.ResidentID)
	if req.ResidentID == "" {
		return dErrors.New(dErrors.CodeValidation, "resident_id is required")
	}
	if strings.TrimSpace(req.DOB) == "" {
		return dErrors.New(dErrors.CodeValidation, "resident_dob is required")
	}
	return nil
}

type verifyDetails struct {
	FirstNameScore int  `json:"fname_score"`
	LastNameScore  int  `json:"lname_score"`
	DOBMatch       bool `json:"dob_match"`
}

type verifyResponse struct {
	ResidentID    string        `json:"resident_id"`
	IsVerified    bool          `json:"is_verified"`
	Message       string        `json:"message"`
	Details       verifyDetails `json:"details"`
	DueBalance    *id.Cents     `json:"due_balance,omitempty"`
	DueDate       string        `json:"due_date,omitempty"`
	Pronunciation string        `json:"due_date_pronunciation,omitempty"`
	PayerDesc     string        `json:"payer_desc,omitempty"`
	FacilityName  string        `json:"facility_name,omitempty"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[verifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	residentID, err := id.ParseResidentID(req.ResidentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.Verify(ctx, verification.Claim{
		ResidentID:  residentID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DateOfBirth: req.DOB,
	})
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "identity verification failed",
				"request_id", requestID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(res))
}

func toResponse(res *verification.Result) verifyResponse {
	resp := verifyResponse{
		ResidentID: res.ResidentID.String(),
		IsVerified: res.Verified,
		Message:    res.Message(),
		Details: verifyDetails{
			FirstNameScore: res.FirstNameScore,
			LastNameScore:  res.LastNameScore,
			DOBMatch:       res.DOBMatch,
		},
	}
	if d := res.Disclosure; d != nil {
		balance := d.Balance
		resp.DueBalance = &balance
		if d.DueDate != nil {
			resp.DueDate = d.DueDate.Format("2006-01-02")
		}
		resp.Pronunciation = d.Pronunciation
		resp.PayerDesc = d.PayerDesc
		resp.FacilityName = d.FacilityName
	}
	return resp
}
