package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"dunning/internal/outreach"
	"dunning/internal/platform/metrics"
	"dunning/internal/records"
	id "dunning/pkg/domain"
	dErrors "dunning/pkg/domain-errors"
	"dunning/pkg/platform/httputil"
	"dunning/pkg/requestcontext"
)

// Listing bounds.
const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

type Service interface {
	SendSMS(ctx context.Context, req outreach.SMSRequest) (*outreach.SMSResult, error)
	ScheduleCall(ctx context.Context, req outreach.ScheduleRequest) (*records.Reminder, error)
	RescheduleCall(ctx context.Context, req outreach.ScheduleRequest) (*records.Reminder, error)
	RecordNotes(ctx context.Context, req outreach.NotesRequest) (*records.ConversationNote, error)
	ProcessPayment(ctx context.Context, req outreach.PaymentRequest) (*records.Payment, error)
	ListCallLogs(ctx context.Context, limit int) ([]records.CallAttempt, error)
	ListReminders(ctx context.Context, limit int) ([]records.Reminder, error)
	ListPayments(ctx context.Context, limit int) ([]records.Payment, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{service: service, logger: logger, metrics: metrics}
}

// Register mounts the agent-facing actions.
func (h *Handler) Register(r chi.Router) {
	r.Post("/send-sms", h.handleSendSMS)
	r.Post("/reminder-calls", h.handleSchedule)
	r.Post("/reminder-calls/reschedule", h.handleReschedule)
	r.Post("/notes", h.handleNotes)
	r.Post("/payments", h.handlePayment)
}

// RegisterListings mounts the read-only operator listings.
func (h *Handler) RegisterListings(r chi.Router) {
	r.Get("/call-logs", h.handleListCallLogs)
	r.Get("/reminders", h.handleListReminders)
	r.Get("/payments", h.handleListPayments)
}

type smsRequest struct {
	ContactNumber string      `json:"contact_number"`
	ContactName   string      `json:"contact_name"`
	ResidentID    string      `json:"resident_id"`
	ResidentName  string      `json:"resident_name"`
	Balance       json.Number `json:"balance"`
	DueDate       string      `json:"due_date"`
	FacilityName  string      `json:"facility_name"`

	balance id.Cents
}

func (req *smsRequest) Validate() error {
	req.ContactNumber = strings.TrimSpace(req.ContactNumber)
	req.ResidentID = strings.TrimSpace(req.ResidentID)
	if req.ContactNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "contact_number is required")
	}
	balance, err := id.ParseCents(req.Balance.String())
	if err != nil {
		return err
	}
	req.balance = balance
	return nil
}

type scheduleRequest struct {
	ResidentID   string `json:"resident_id"`
	ContactName  string `json:"contact_name"`
	ScheduleTime string `json:"schedule_time"`

	at time.Time
}

func (req *scheduleRequest) Validate() error {
	req.ResidentID = strings.TrimSpace(req.ResidentID)
	if req.ResidentID == "" {
		return dErrors.New(dErrors.CodeValidation, "resident_id is required")
	}
	at, err := time.Parse(time.RFC3339, strings.TrimSpace(req.ScheduleTime))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "schedule_time must be RFC 3339 with an offset")
	}
	req.at = at
	return nil
}

type notesRequest struct {
	CallID     string `json:"call_id"`
	ResidentID string `json:"resident_id"`
	Notes      string `json:"notes"`
}

func (req *notesRequest) Validate() error {
	req.CallID = strings.TrimSpace(req.CallID)
	req.ResidentID = strings.TrimSpace(req.ResidentID)
	if req.CallID == "" {
		return dErrors.New(dErrors.CodeValidation, "call_id is required")
	}
	return nil
}

type paymentRequest struct {
	ResidentID string      `json:"resident_id"`
	Method     string      `json:"payment_method"`
	Amount     json.Number `json:"amount"`

	cents id.Cents
}

func (req *paymentRequest) Validate() error {
	req.ResidentID = strings.TrimSpace(req.ResidentID)
	req.Method = strings.ToLower(strings.TrimSpace(req.Method))
	if req.ResidentID == "" {
		return dErrors.New(dErrors.CodeValidation, "resident_id is required")
	}
	cents, err := id.ParseCents(req.Amount.String())
	if err != nil {
		return err
	}
	req.cents = cents
	return nil
}

type smsResponse struct {
	MessageID  string `json:"message_id"`
	ReminderID int64  `json:"reminder_id"`
	Message    string `json:"message"`
}

type reminderResponse struct {
	ReminderID   int64  `json:"reminder_id"`
	ResidentID   string `json:"resident_id,omitempty"`
	ContactName  string `json:"contact_name,omitempty"`
	Type         string `json:"reminder_type"`
	ScheduleTime string `json:"schedule_time"`
	MessageID    string `json:"message_id,omitempty"`
	Supersedes   *int64 `json:"supersedes,omitempty"`
	CreatedAt    string `json:"created_at"`
}

type noteResponse struct {
	NoteID int64  `json:"note_id"`
	CallID string `json:"call_id"`
}

type paymentResponse struct {
	PaymentID  int64    `json:"payment_id"`
	ResidentID string   `json:"resident_id"`
	Amount     id.Cents `json:"amount"`
	Method     string   `json:"payment_method"`
	Status     string   `json:"status"`
	CreatedAt  string   `json:"created_at"`
}

type callLogResponse struct {
	CallID       string   `json:"call_id"`
	ResidentID   string   `json:"resident_id,omitempty"`
	Phone        string   `json:"phone"`
	Direction    string   `json:"type"`
	Provider     string   `json:"provider"`
	Status       string   `json:"status"`
	Cost         *float64 `json:"cost,omitempty"`
	RecordingURL *string  `json:"recording_url,omitempty"`
	CreatedAt    string   `json:"created_at"`
}

func (h *Handler) handleSendSMS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[smsRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.service.SendSMS(ctx, outreach.SMSRequest{
		ContactNumber: req.ContactNumber,
		ContactName:   req.ContactName,
		ResidentID:    id.ResidentID(req.ResidentID),
		ResidentName:  req.ResidentName,
		Balance:       req.balance,
		DueDate:       req.DueDate,
		FacilityName:  req.FacilityName,
	})
	if err != nil {
		h.writeError(ctx, w, "send sms failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, smsResponse{
		MessageID:  res.MessageID,
		ReminderID: res.ReminderID,
		Message:    "SMS sent successfully",
	})
}

func (h *Handler) handleSchedule(w http.ResponseWriter, r *http.Request) {
	h.schedule(w, r, h.service.ScheduleCall)
}

func (h *Handler) handleReschedule(w http.ResponseWriter, r *http.Request) {
	h.schedule(w, r, h.service.RescheduleCall)
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request, fn func(context.Context, outreach.ScheduleRequest) (*records.Reminder, error)) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[scheduleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	residentID, err := id.ParseResidentID(req.ResidentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reminder, err := fn(ctx, outreach.ScheduleRequest{
		ResidentID:   residentID,
		ContactName:  req.ContactName,
		ScheduleTime: req.at,
	})
	if err != nil {
		h.writeError(ctx, w, "reminder call scheduling failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toReminderResponse(*reminder))
}

func (h *Handler) handleNotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[notesRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	callID, err := id.ParseCallID(req.CallID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	note, err := h.service.RecordNotes(ctx, outreach.NotesRequest{
		CallID:     callID,
		ResidentID: id.ResidentID(req.ResidentID),
		Notes:      req.Notes,
	})
	if err != nil {
		h.writeError(ctx, w, "record notes failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, noteResponse{NoteID: note.NoteID, CallID: note.CallID.String()})
}

func (h *Handler) handlePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[paymentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	p, err := h.service.ProcessPayment(ctx, outreach.PaymentRequest{
		ResidentID: id.ResidentID(req.ResidentID),
		Method:     req.Method,
		Amount:     req.cents,
	})
	if err != nil {
		h.writeError(ctx, w, "payment recording failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toPaymentResponse(*p))
}

func (h *Handler) handleListCallLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryLimit(r, DefaultListLimit, MaxListLimit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rows, err := h.service.ListCallLogs(r.Context(), limit)
	if err != nil {
		h.writeError(r.Context(), w, "list call logs failed", err)
		return
	}
	out := make([]callLogResponse, 0, len(rows))
	for _, c := range rows {
		out = append(out, callLogResponse{
			CallID:       c.CallID.String(),
			ResidentID:   c.ResidentID.String(),
			Phone:        c.Phone,
			Direction:    c.Direction,
			Provider:     c.Provider,
			Status:       c.Status,
			Cost:         c.Cost,
			RecordingURL: c.RecordingURL,
			CreatedAt:    c.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleListReminders(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryLimit(r, DefaultListLimit, MaxListLimit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rows, err := h.service.ListReminders(r.Context(), limit)
	if err != nil {
		h.writeError(r.Context(), w, "list reminders failed", err)
		return
	}
	out := make([]reminderResponse, 0, len(rows))
	for _, rem := range rows {
		out = append(out, toReminderResponse(rem))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryLimit(r, DefaultListLimit, MaxListLimit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rows, err := h.service.ListPayments(r.Context(), limit)
	if err != nil {
		h.writeError(r.Context(), w, "list payments failed", err)
		return
	}
	out := make([]paymentResponse, 0, len(rows))
	for _, p := range rows {
		out = append(out, toPaymentResponse(p))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// writeError logs unexpected failures; client and compliance errors are
// already recorded by the service.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeValidation, dErrors.CodeBadRequest, dErrors.CodeComplianceRejected, dErrors.CodeNotFound:
	default:
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

func toReminderResponse(r records.Reminder) reminderResponse {
	resp := reminderResponse{
		ReminderID:   r.ReminderID,
		ContactName:  r.ContactName,
		Type:         string(r.Type),
		ScheduleTime: r.ScheduleTime.Format(time.RFC3339),
		MessageID:    r.MessageID,
		Supersedes:   r.Supersedes,
		CreatedAt:    r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.ResidentID != nil {
		resp.ResidentID = r.ResidentID.String()
	}
	return resp
}

func toPaymentResponse(p records.Payment) paymentResponse {
	return paymentResponse{
		PaymentID:  p.PaymentID,
		ResidentID: p.ResidentID.String(),
		Amount:     p.Amount,
		Method:     p.Method,
		Status:     p.Status,
		CreatedAt:  p.CreatedAt.UTC().Format(time.RFC3339),
	}
}
