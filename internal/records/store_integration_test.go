//go:build integration

package records_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dunning/internal/records"
	id "dunning/pkg/domain"
	"dunning/pkg/platform/sentinel"
	txcontext "dunning/pkg/platform/tx"
	"dunning/pkg/testutil/containers"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *records.PostgresStore
	ctx   context.Context
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = records.NewPostgres(s.pg.DB)
	s.ctx = context.Background()
}

func (s *PostgresIntegrationSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(s.ctx,
		"call_events", "conversation_notes", "call_logs", "appointments",
		"payments", "reminders", "residents", "audit_events",
	))
}

func (s *PostgresIntegrationSuite) seedResident() records.Resident {
	due := time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)
	r := records.Resident{
		ResidentID:       "600999",
		FirstName:        "Liam",
		LastName:         "Johnson",
		ContactFirstName: "Ava",
		ContactLastName:  "Johnson",
		ContactNumber:    "+18015550100",
		DateOfBirth:      "1986-03-25",
		Balance:          id.Cents(123456),
		DueDate:          &due,
		FacilityName:     "Provo Care",
		UpdatedAt:        time.Now().UTC(),
	}
	s.Require().NoError(s.store.UpsertResident(s.ctx, r))
	return r
}

func (s *PostgresIntegrationSuite) TestResidentRoundTrip() {
	s.seedResident()

	got, err := s.store.FindResident(s.ctx, "600999")
	s.Require().NoError(err)
	s.Equal("Liam Johnson", got.FullName())
	s.Equal(id.Cents(123456), got.Balance)

	found, err := s.store.SearchResidents(s.ctx, records.ResidentFilter{ResidentName: "LIAM"}, 10)
	s.Require().NoError(err)
	s.Len(found, 1)
}

func (s *PostgresIntegrationSuite) TestRescheduleChainsReminders() {
	s.seedResident()
	rid := id.ResidentID("600999")
	at := time.Date(2025, 5, 2, 16, 0, 0, 0, time.UTC)

	first, err := s.store.InsertReminder(s.ctx, records.Reminder{ResidentID: &rid, Type: records.ReminderCall, ScheduleTime: at, CreatedAt: at})
	s.Require().NoError(err)
	second, err := s.store.InsertReminder(s.ctx, records.Reminder{ResidentID: &rid, Type: records.ReminderCall, ScheduleTime: at.Add(24 * time.Hour), Supersedes: &first.ReminderID, CreatedAt: at.Add(time.Minute)})
	s.Require().NoError(err)

	latest, err := s.store.LatestReminder(s.ctx, rid, records.ReminderCall)
	s.Require().NoError(err)
	s.Equal(second.ReminderID, latest.ReminderID)
	s.Require().NotNil(latest.Supersedes)
	s.Equal(first.ReminderID, *latest.Supersedes)
}

func (s *PostgresIntegrationSuite) TestCallEventDedup() {
	e := records.CallEvent{
		CallID:     "call_1",
		EventType:  "call.ended",
		EventHash:  "abc",
		SafeData:   json.RawMessage(`{"call_id":"call_1"}`),
		ReceivedAt: time.Now().UTC(),
	}
	_, err := s.store.InsertCallEvent(s.ctx, e)
	s.Require().NoError(err)
	_, err = s.store.InsertCallEvent(s.ctx, e)
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)

	events, err := s.store.ListCallEvents(s.ctx, "call_1")
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *PostgresIntegrationSuite) TestRollbackDiscardsWrites() {
	runner := txcontext.NewRunner(s.pg.DB, 5*time.Second)
	err := runner.RunInTx(s.ctx, func(ctx context.Context) error {
		s.Require().NoError(s.store.InsertCallAttempt(ctx, records.CallAttempt{CallID: "call_tx", CreatedAt: time.Now().UTC()}))
		return sentinel.ErrConflict
	})
	s.ErrorIs(err, sentinel.ErrConflict)

	_, err = s.store.FindCallAttempt(s.ctx, "call_tx")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
