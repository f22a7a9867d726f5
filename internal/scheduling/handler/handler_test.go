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

	"dunning/internal/records"
	"dunning/internal/scheduling"
	dErrors "dunning/pkg/domain-errors"
	"dunning/pkg/testutil"
)

type stubService struct {
	err error
	got scheduling.Request
}

func (s *stubService) Book(_ context.Context, req scheduling.Request) (*records.Appointment, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &records.Appointment{
		AppointmentID:   7,
		CallID:          req.CallID,
		ResidentID:      req.ResidentID,
		CalendarEventID: "evt-1",
		Title:           req.Title,
		StartTime:       req.Start,
		EndTime:         req.End(),
	}, nil
}

func newRouter(svc Service) chi.Router {
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)), nil).Register(r)
	return r
}

func body() map[string]any {
	return map[string]any{
		"call_id":          "call-1",
		"resident_id":      "600999",
		"contact_email":    "emma@example.com",
		"start_time":       "2025-05-02T10:00:00-06:00",
		"duration_minutes": 45,
		"title":            "Payment plan review",
	}
}

func TestHandleBook(t *testing.T) {
	t.Run("booked appointment is created", func(t *testing.T) {
		svc := &stubService{}
		rr := testutil.DoRequest(newRouter(svc), testutil.NewJSONRequest(t, http.MethodPost, "/appointments", body()))

		require.Equal(t, http.StatusCreated, rr.Code)
		resp := testutil.UnmarshalResponse[appointmentResponse](t, rr)
		assert.Equal(t, "evt-1", resp.CalendarEventID)
		assert.Equal(t, "2025-05-02T10:45:00-06:00", resp.EndTime)
		assert.Equal(t, 45, svc.got.DurationMinutes)
		assert.True(t, svc.got.Start.Equal(time.Date(2025, 5, 2, 16, 0, 0, 0, time.UTC)))
	})

	t.Run("start time without offset is rejected", func(t *testing.T) {
		b := body()
		b["start_time"] = "2025-05-02 10:00"
		rr := testutil.DoRequest(newRouter(&stubService{}), testutil.NewJSONRequest(t, http.MethodPost, "/appointments", b))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	t.Run("conflict maps to 409", func(t *testing.T) {
		svc := &stubService{err: dErrors.New(dErrors.CodeConflict, "requested time overlaps an existing appointment")}
		rr := testutil.DoRequest(newRouter(svc), testutil.NewJSONRequest(t, http.MethodPost, "/appointments", body()))
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, string(dErrors.CodeConflict))
	})

	t.Run("calendar outage maps to 502 without detail", func(t *testing.T) {
		svc := &stubService{err: dErrors.New(dErrors.CodeProvider, "calendar provider failed to list events")}
		rr := testutil.DoRequest(newRouter(svc), testutil.NewJSONRequest(t, http.MethodPost, "/appointments", body()))
		assert.Equal(t, http.StatusBadGateway, rr.Code)
		assert.Empty(t, testutil.ErrorBody(t, rr).ErrorDescription)
	})
}
