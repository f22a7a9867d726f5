package records

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "dunning/pkg/domain"
	"dunning/pkg/platform/sentinel"
)

type PostgresStoreSuite struct {
	suite.Suite
	mock  sqlmock.Sqlmock
	store *PostgresStore
	ctx   context.Context
	now   time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupTest() {
	db, mock, err := sqlmock.New()
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })
	s.mock = mock
	s.store = NewPostgres(db)
	s.ctx = context.Background()
	s.now = time.Date(2025, 5, 1, 15, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
}

func residentRow() []string {
	return []string{
		"resident_id", "first_name", "last_name", "contact_first_name", "contact_last_name",
		"contact_number", "date_of_birth", "balance", "due_date", "facility_name",
		"facility_code", "payer_desc", "updated_at",
	}
}

func (s *PostgresStoreSuite) TestFindResident() {
	s.Run("found", func() {
		due := time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)
		rows := sqlmock.NewRows(residentRow()).AddRow(
			"600999", "Liam", "Johnson", "Ava", "Johnson",
			"+18015550100", "1986-03-25", "1234.56", due, "Provo Care",
			"PC01", "Medicaid", s.now,
		)
		s.mock.ExpectQuery("SELECT (.+) FROM residents WHERE resident_id = \\$1").
			WithArgs("600999").
			WillReturnRows(rows)

		r, err := s.store.FindResident(s.ctx, id.ResidentID("600999"))
		s.Require().NoError(err)
		s.Equal("Liam Johnson", r.FullName())
		s.Equal(id.Cents(123456), r.Balance)
		s.Require().NotNil(r.DueDate)
		s.True(r.DueDate.Equal(due))
	})

	s.Run("missing row is ErrNotFound", func() {
		s.mock.ExpectQuery("SELECT (.+) FROM residents").
			WithArgs("ZZZ").
			WillReturnRows(sqlmock.NewRows(residentRow()))

		_, err := s.store.FindResident(s.ctx, id.ResidentID("ZZZ"))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestSearchResidents() {
	s.mock.ExpectQuery("WHERE lower\\(first_name \\|\\| ' ' \\|\\| last_name\\) LIKE (.+) AND date_of_birth = \\$2 ORDER BY resident_id LIMIT \\$3").
		WithArgs("liam", "1986-03-25", 10).
		WillReturnRows(sqlmock.NewRows(residentRow()))

	out, err := s.store.SearchResidents(s.ctx, ResidentFilter{ResidentName: "liam", DateOfBirth: "1986-03-25"}, 10)
	s.Require().NoError(err)
	s.Empty(out)
}

func (s *PostgresStoreSuite) TestSearchResidents_WildcardsMatchLiterally() {
	s.mock.ExpectQuery(`WHERE lower\(contact_first_name \|\| ' ' \|\| contact_last_name\) LIKE (.+) ESCAPE '\\' ORDER BY`).
		WithArgs(`\_`, 10).
		WillReturnRows(sqlmock.NewRows(residentRow()))

	out, err := s.store.SearchResidents(s.ctx, ResidentFilter{ContactName: "_"}, 10)
	s.Require().NoError(err)
	s.Empty(out)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `o\_neil`, escapeLike("o_neil"))
	assert.Equal(t, `a\\b`, escapeLike(`a\b`))
	assert.Equal(t, "emma", escapeLike("emma"))
}

func (s *PostgresStoreSuite) TestSearchResidents_RequiresFilter() {
	_, err := s.store.SearchResidents(s.ctx, ResidentFilter{}, 10)
	s.Error(err)
}

func (s *PostgresStoreSuite) TestInsertReminder() {
	rid := id.ResidentID("600999")
	s.mock.ExpectQuery("INSERT INTO reminders").
		WithArgs("600999", "Ava Johnson", "call", s.now, sqlmock.AnyArg(), sqlmock.AnyArg(), s.now).
		WillReturnRows(sqlmock.NewRows([]string{"reminder_id"}).AddRow(int64(41)))

	r, err := s.store.InsertReminder(s.ctx, Reminder{
		ResidentID:   &rid,
		ContactName:  "Ava Johnson",
		Type:         ReminderCall,
		ScheduleTime: s.now,
		CreatedAt:    s.now,
	})
	s.Require().NoError(err)
	s.Equal(int64(41), r.ReminderID)
}

func (s *PostgresStoreSuite) TestInsertCallAttempt() {
	s.Run("first insert", func() {
		s.mock.ExpectExec("INSERT INTO call_logs (.+) ON CONFLICT \\(call_id\\) DO NOTHING").
			WillReturnResult(sqlmock.NewResult(0, 1))

		cost := 0.42
		err := s.store.InsertCallAttempt(s.ctx, CallAttempt{CallID: "call_1", Cost: &cost, CreatedAt: s.now})
		s.NoError(err)
	})

	s.Run("duplicate call_id", func() {
		s.mock.ExpectExec("INSERT INTO call_logs").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := s.store.InsertCallAttempt(s.ctx, CallAttempt{CallID: "call_1", CreatedAt: s.now})
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})
}

func (s *PostgresStoreSuite) TestInsertAppointment_UniqueViolation() {
	s.mock.ExpectQuery("INSERT INTO appointments").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := s.store.InsertAppointment(s.ctx, Appointment{CalendarEventID: "evt_1"})
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestInsertCallEvent() {
	s.Run("new event", func() {
		s.mock.ExpectQuery("INSERT INTO call_events (.+) ON CONFLICT \\(event_hash\\) DO NOTHING RETURNING event_id").
			WithArgs("call_1", "call.ended", "hash-1", sqlmock.AnyArg(), sqlmock.AnyArg(), s.now).
			WillReturnRows(sqlmock.NewRows([]string{"event_id"}).AddRow(int64(7)))

		e, err := s.store.InsertCallEvent(s.ctx, CallEvent{
			CallID:     "call_1",
			EventType:  "call.ended",
			EventHash:  "hash-1",
			SafeData:   json.RawMessage(`{"call_id":"call_1"}`),
			ReceivedAt: s.now,
		})
		s.Require().NoError(err)
		s.Equal(int64(7), e.EventID)
	})

	s.Run("redelivery", func() {
		s.mock.ExpectQuery("INSERT INTO call_events").
			WillReturnRows(sqlmock.NewRows([]string{"event_id"}))

		_, err := s.store.InsertCallEvent(s.ctx, CallEvent{CallID: "call_1", EventHash: "hash-1", SafeData: json.RawMessage(`{}`)})
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})
}

func (s *PostgresStoreSuite) TestListPayments() {
	rows := sqlmock.NewRows([]string{"payment_id", "resident_id", "amount", "method", "status", "created_at"}).
		AddRow(int64(2), "600999", "50.00", "online", "processed", s.now).
		AddRow(int64(1), "600999", "25.50", "phone", "processed", s.now.Add(-time.Hour))
	s.mock.ExpectQuery("SELECT (.+) FROM payments ORDER BY created_at DESC").
		WithArgs(100).
		WillReturnRows(rows)

	out, err := s.store.ListPayments(s.ctx, 100)
	s.Require().NoError(err)
	s.Require().Len(out, 2)
	s.Equal(id.Cents(5000), out[0].Amount)
	s.Equal(id.Cents(2550), out[1].Amount)
}

func TestPqCode(t *testing.T) {
	assert.Equal(t, "23505", pqCode(&pq.Error{Code: "23505"}))
	assert.Equal(t, "", pqCode(assert.AnError))
	require.NotPanics(t, func() { _ = pqCode(nil) })
}
