package residents_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dunning/internal/records"
	"dunning/internal/residents"
	dErrors "dunning/pkg/domain-errors"
)

func seeded(t *testing.T) *records.MemoryStore {
	t.Helper()
	store := records.NewMemory()
	for _, r := range []records.Resident{
		{ResidentID: "600999", FirstName: "Liam", LastName: "Johnson", ContactFirstName: "Emma", ContactLastName: "Johnson", DateOfBirth: "1986-03-25"},
		{ResidentID: "600100", FirstName: "Olivia", LastName: "Smith", ContactFirstName: "Noah", ContactLastName: "Smith", DateOfBirth: "1950-01-02"},
	} {
		require.NoError(t, store.UpsertResident(context.Background(), r))
	}
	return store
}

func TestLookup(t *testing.T) {
	svc := residents.NewService(seeded(t), nil)
	ctx := context.Background()

	cases := []struct {
		name   string
		filter records.ResidentFilter
		want   string
	}{
		{"by id", records.ResidentFilter{ResidentID: " 600999 "}, "600999"},
		{"by partial name, any case", records.ResidentFilter{ResidentName: "olivia  SMITH"}, "600100"},
		{"by contact name", records.ResidentFilter{ContactName: "emma"}, "600999"},
		{"spoken date of birth is normalized", records.ResidentFilter{DateOfBirth: "March 25th, 1986"}, "600999"},
		{"every filter must match", records.ResidentFilter{ResidentName: "Liam", DateOfBirth: "1986-03-25"}, "600999"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := svc.Lookup(ctx, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, r.ResidentID.String())
		})
	}

	t.Run("no filter is a validation error", func(t *testing.T) {
		_, err := svc.Lookup(ctx, records.ResidentFilter{ResidentName: "   "})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("mismatched filters are not found", func(t *testing.T) {
		_, err := svc.Lookup(ctx, records.ResidentFilter{ResidentName: "Liam", DateOfBirth: "1950-01-02"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

type failingSearch struct{}

func (failingSearch) SearchResidents(context.Context, records.ResidentFilter, int) ([]records.Resident, error) {
	return nil, errors.New("pq: connection refused")
}

func TestLookup_StorageFailure(t *testing.T) {
	_, err := residents.NewService(failingSearch{}, nil).Lookup(context.Background(), records.ResidentFilter{ResidentID: "1"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeStorage))
}
