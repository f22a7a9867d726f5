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

	"dunning/internal/verification"
	id "dunning/pkg/domain"
	dErrors "dunning/pkg/domain-errors"
	"dunning/pkg/testutil"
)

type stubService struct {
	result *verification.Result
	err    error
	claim  verification.Claim
}

func (s *stubService) Verify(_ context.Context, claim verification.Claim) (*verification.Result, error) {
	s.claim = claim
	return s.result, s.err
}

func newRouter(svc Service) chi.Router {
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)), nil).Register(r)
	return r
}

func TestHandleVerify(t *testing.T) {
	due := time.Date(2025, time.May, 31, 0, 0, 0, 0, time.UTC)

	t.Run("verified response carries disclosure", func(t *testing.T) {
		svc := &stubService{result: &verification.Result{
			ResidentID:     "600999",
			Verified:       true,
			FirstNameScore: 100,
			LastNameScore:  93,
			NameMatch:      true,
			DOBMatch:       true,
			Disclosure: &verification.Disclosure{
				Balance:       id.Cents(123456),
				DueDate:       &due,
				Pronunciation: "thirty first May, two thousand twenty five",
				FacilityName:  "Provo Care",
			},
		}}
		req := testutil.NewJSONRequest(t, http.MethodPost, "/verify-identity", map[string]string{
			"resident_id":    " 600999 ",
			"resident_fname": "Liam",
			"resident_lname": "Johnsen",
			"resident_dob":   "25 March, 1986",
		})
		rr := testutil.DoRequest(newRouter(svc), req)

		require.Equal(t, http.StatusOK, rr.Code)
		body := testutil.UnmarshalResponse[map[string]any](t, rr)
		assert.Equal(t, true, (*body)["is_verified"])
		assert.Equal(t, "1234.56", (*body)["due_balance"])
		assert.Equal(t, "2025-05-31", (*body)["due_date"])
		assert.Equal(t, "thirty first May, two thousand twenty five", (*body)["due_date_pronunciation"])
		assert.Equal(t, id.ResidentID("600999"), svc.claim.ResidentID)
	})

	t.Run("unverified response omits financial fields", func(t *testing.T) {
		svc := &stubService{result: &verification.Result{ResidentID: "600999", NameMatch: true}}
		req := testutil.NewJSONRequest(t, http.MethodPost, "/verify-identity", map[string]string{
			"resident_id":  "600999",
			"resident_dob": "1990-01-01",
		})
		rr := testutil.DoRequest(newRouter(svc), req)

		require.Equal(t, http.StatusOK, rr.Code)
		body := testutil.UnmarshalResponse[map[string]any](t, rr)
		assert.Equal(t, "Verification failed: Incorrect DOB", (*body)["message"])
		for _, k := range []string{"due_balance", "due_date", "due_date_pronunciation", "payer_desc", "facility_name"} {
			assert.NotContains(t, *body, k)
		}
	})

	t.Run("unknown resident is 404", func(t *testing.T) {
		svc := &stubService{err: dErrors.New(dErrors.CodeNotFound, "resident not found")}
		req := testutil.NewJSONRequest(t, http.MethodPost, "/verify-identity", map[string]string{
			"resident_id":  "ZZZ",
			"resident_dob": "1986-03-25",
		})
		rr := testutil.DoRequest(newRouter(svc), req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("missing resident_id is rejected before the service", func(t *testing.T) {
		svc := &stubService{}
		req := testutil.NewJSONRequest(t, http.MethodPost, "/verify-identity", map[string]string{"resident_dob": "1986-03-25"})
		rr := testutil.DoRequest(newRouter(svc), req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Empty(t, svc.claim.ResidentID)
	})

	t.Run("internal failure discloses nothing", func(t *testing.T) {
		svc := &stubService{err: dErrors.Wrap(assert.AnError, dErrors.CodeInternal, "verification failed")}
		req := testutil.NewJSONRequest(t, http.MethodPost, "/verify-identity", map[string]string{
			"resident_id":  "600999",
			"resident_dob": "1986-03-25",
		})
		rr := testutil.DoRequest(newRouter(svc), req)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "verification failed")
	})
}
