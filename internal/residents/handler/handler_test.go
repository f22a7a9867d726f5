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
	"dunning/internal/residents"
	dErrors "dunning/pkg/domain-errors"
	"dunning/pkg/testutil"
)

func newRouter(svc Service) chi.Router {
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)), nil).Register(r)
	return r
}

func TestHandleLookup(t *testing.T) {
	due := time.Date(2025, time.May, 31, 0, 0, 0, 0, time.UTC)
	store := records.NewMemory()
	require.NoError(t, store.UpsertResident(context.Background(), records.Resident{
		ResidentID:       "600999",
		FirstName:        "Liam",
		LastName:         "Johnson",
		ContactFirstName: "Emma",
		ContactLastName:  "Johnson",
		ContactNumber:    "+18015550100",
		Balance:          123456,
		DueDate:          &due,
		FacilityName:     "Provo Care",
		FacilityCode:     "PC01",
	}))
	router := newRouter(residents.NewService(store, nil))

	testutil.Given(t, "a resident with a contact on file", func(t *testing.T) {
		testutil.When(t, "the agent looks up by contact first name", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/lookup-contact", map[string]string{"contact_name": "emma"}))
			testutil.Then(t, "the summary is returned with a spoken due date", func(t *testing.T) {
				require.Equal(t, http.StatusOK, rr.Code)
				body := testutil.UnmarshalResponse[lookupResponse](t, rr)
				assert.Equal(t, "Liam Johnson", body.ResidentName)
				assert.Equal(t, "May 31", body.DueDate)
				assert.Equal(t, "1234.56", body.Balance.String())
			})
		})

		testutil.When(t, "no filter is given", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/lookup-contact", map[string]string{}))
			testutil.Then(t, "the request is invalid", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeValidation))
			})
		})

		testutil.When(t, "the resident id is unknown", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/lookup-contact", map[string]string{"resident_id": "ZZZ"}))
			testutil.Then(t, "nothing is disclosed", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusNotFound, string(dErrors.CodeNotFound))
			})
		})
	})
}
