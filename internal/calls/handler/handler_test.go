package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dunning/internal/calls"
	"dunning/internal/records"
	id "dunning/pkg/domain"
	dErrors "dunning/pkg/domain-errors"
	"dunning/pkg/testutil"
)

type stubService struct {
	attempt  *calls.Attempt
	err      error
	row      *records.CallAttempt
	resident id.ResidentID
}

func (s *stubService) Initiate(_ context.Context, residentID id.ResidentID) (*calls.Attempt, error) {
	s.resident = residentID
	return s.attempt, s.err
}

func (s *stubService) Lookup(_ context.Context, callID id.CallID) (*records.CallAttempt, error) {
	if s.row == nil || s.row.CallID != callID {
		return nil, dErrors.New(dErrors.CodeNotFound, "call not found")
	}
	return s.row, nil
}

func newRouter(svc Service) chi.Router {
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)), nil).Register(r)
	return r
}

func TestHandleInitiate(t *testing.T) {
	t.Run("pending call is accepted", func(t *testing.T) {
		svc := &stubService{attempt: &calls.Attempt{CallID: "call-1", ResidentID: "600999", Provider: "vapi", State: calls.StatePending}}
		req := testutil.NewJSONRequest(t, http.MethodPost, "/calls", map[string]string{"resident_id": "600999"})
		rr := testutil.DoRequest(newRouter(svc), req)

		require.Equal(t, http.StatusAccepted, rr.Code)
		body := testutil.UnmarshalResponse[attemptResponse](t, rr)
		assert.Equal(t, "call-1", body.CallID)
		assert.Equal(t, "pending", body.State)
		assert.Equal(t, id.ResidentID("600999"), svc.resident)
	})

	t.Run("missing resident id is a validation error", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/calls", map[string]string{"resident_id": " "})
		rr := testutil.DoRequest(newRouter(&stubService{}), req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	t.Run("compliance rejection is forbidden", func(t *testing.T) {
		svc := &stubService{
			attempt: &calls.Attempt{ResidentID: "600999", State: calls.StateFailed, Reason: calls.ReasonNotCompliant},
			err:     dErrors.New(dErrors.CodeComplianceRejected, "call contact is only permitted between 08:00 and 21:00 recipient local time"),
		}
		req := testutil.NewJSONRequest(t, http.MethodPost, "/calls", map[string]string{"resident_id": "600999"})
		rr := testutil.DoRequest(newRouter(svc), req)
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, string(dErrors.CodeComplianceRejected))
	})

	t.Run("provider rejection returns the failed attempt", func(t *testing.T) {
		svc := &stubService{
			attempt: &calls.Attempt{ResidentID: "600999", Provider: "retell", State: calls.StateFailed, Reason: `{"error":"invalid from_number"}`},
			err:     dErrors.New(dErrors.CodeProvider, "voice provider failed to create call"),
		}
		req := testutil.NewJSONRequest(t, http.MethodPost, "/calls", map[string]string{"resident_id": "600999"})
		rr := testutil.DoRequest(newRouter(svc), req)

		require.Equal(t, http.StatusBadGateway, rr.Code)
		body := testutil.UnmarshalResponse[attemptResponse](t, rr)
		assert.Equal(t, "failed", body.State)
		assert.Contains(t, body.Reason, "invalid from_number")
	})
}

func TestHandleGet(t *testing.T) {
	cost := 0.12
	svc := &stubService{row: &records.CallAttempt{
		CallID:     "call-1",
		ResidentID: "600999",
		Provider:   "vapi",
		Status:     "ended",
		Cost:       &cost,
		CreatedAt:  time.Date(2025, 5, 1, 16, 0, 0, 0, time.UTC),
	}}

	rr := testutil.DoRequest(newRouter(svc), testutil.NewRequest(t, http.MethodGet, "/calls/call-1"))
	require.Equal(t, http.StatusOK, rr.Code)
	body := testutil.UnmarshalResponse[callLogResponse](t, rr)
	assert.Equal(t, "ended", body.Status)
	assert.False(t, body.HasTranscript)
	assert.Equal(t, "2025-05-01T16:00:00Z", body.CreatedAt)

	rr = testutil.DoRequest(newRouter(svc), testutil.NewRequest(t, http.MethodGet, "/calls/call-2"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
